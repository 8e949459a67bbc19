package rule

import (
	"fmt"
	"path/filepath"

	"github.com/kurtbuilds/cook/pkg/kdl"
)

// Handler materializes rules (or hosts) from one document node into the
// state. Handlers are registered per tag; adding a resource kind is one
// Register call.
type Handler func(st *State, node *kdl.Node, ctx *Context) error

// Registry maps declarative tag names to handlers.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a tag to a handler. Registering a tag twice is an error.
func (r *Registry) Register(tag string, h Handler) error {
	if _, ok := r.handlers[tag]; ok {
		return fmt.Errorf("tag %q registered twice", tag)
	}
	r.handlers[tag] = h
	return nil
}

// MustRegister is Register for init-time wiring, where a duplicate tag is a
// programmer error.
func (r *Registry) MustRegister(tag string, h Handler) {
	if err := r.Register(tag, h); err != nil {
		panic(err)
	}
}

// Lookup returns the handler for a tag.
func (r *Registry) Lookup(tag string) (Handler, bool) {
	h, ok := r.handlers[tag]
	return h, ok
}

// Context is load-time metadata: the canonicalized root directory and the
// registry in effect. Relative paths in documents resolve against Root.
type Context struct {
	Root     string
	Registry *Registry
}

// LocalPath resolves a document path against the root.
func (c *Context) LocalPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Root, path)
}

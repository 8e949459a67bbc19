// Package loader reads declarative documents under a root directory and
// materializes the desired state through the keyword registry.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kurtbuilds/cook/pkg/kdl"
	"github.com/kurtbuilds/cook/pkg/log"
	"github.com/kurtbuilds/cook/pkg/rule"
)

// LoadError marks failures before any remote contact: unreadable roots,
// parse failures, unknown tags, wrong entry types. The CLI maps it to a
// distinct exit code.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string { return e.Err.Error() }
func (e *LoadError) Unwrap() error { return e.Err }

func loadErrorf(format string, args ...any) error {
	return &LoadError{Err: fmt.Errorf(format, args...)}
}

// Load canonicalizes root, parses every accepted document directly under it
// (sorted by name, so repeated loads see the same order), and dispatches
// each top-level node through the registry. Rules keep declaration order;
// host declarations accumulate separately.
func Load(root string, reg *rule.Registry) (*rule.State, *rule.Context, error) {
	ctx, err := NewContext(root, reg)
	if err != nil {
		return nil, nil, err
	}
	canonical := ctx.Root

	entries, err := os.ReadDir(canonical)
	if err != nil {
		return nil, nil, loadErrorf("read root %s: %w", canonical, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && accepted(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	logger := log.WithComponent("loader")
	state := rule.NewState()
	for _, name := range names {
		path := filepath.Join(canonical, name)
		contents, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, loadErrorf("read %s: %w", path, err)
		}
		fileState, err := parseDocument(string(contents), path, ctx)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug().
			Str("file", name).
			Int("rules", len(fileState.Rules)).
			Int("hosts", len(fileState.Hosts)).
			Msg("loaded document")
		state.Merge(fileState)
	}
	return state, ctx, nil
}

// NewContext canonicalizes root and pairs it with the registry.
func NewContext(root string, reg *rule.Registry) (*rule.Context, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, loadErrorf("resolve root %s: %w", root, err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, loadErrorf("canonicalize root %s: %w", root, err)
	}
	return &rule.Context{Root: canonical, Registry: reg}, nil
}

// ParseSnippet materializes rules from a single inline document, used by
// one-shot commands.
func ParseSnippet(snippet string, ctx *rule.Context) (*rule.State, error) {
	return parseDocument(snippet, "<argv>", ctx)
}

func parseDocument(contents, path string, ctx *rule.Context) (*rule.State, error) {
	doc, err := kdl.Parse(contents)
	if err != nil {
		return nil, loadErrorf("parse %s: %w", path, err)
	}
	state := rule.NewState()
	for _, node := range doc.Nodes {
		handler, ok := ctx.Registry.Lookup(node.Name)
		if !ok {
			return nil, loadErrorf("%s: unknown tag %q", path, node.Name)
		}
		if err := handler(state, node, ctx); err != nil {
			return nil, &LoadError{Err: fmt.Errorf("%s: %w", path, err)}
		}
	}
	return state, nil
}

// accepted reports whether a file under the root is a declarative document.
// Other names (main.py, main.ts, Cargo.toml) are reserved for future loader
// backends and skipped here.
func accepted(name string) bool {
	return name == "Cookfile" || strings.HasSuffix(name, ".kdl")
}

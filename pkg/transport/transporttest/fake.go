// Package transporttest provides an in-memory Transport for rule and
// reconciler tests: scripted command results, recorded calls and writes.
package transporttest

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/kurtbuilds/cook/pkg/types"
)

// Call is one recorded Run invocation.
type Call struct {
	Argv  []string
	Stdin []byte
}

// Command renders the call as a shell-ish string for assertions.
func (c Call) Command() string {
	return strings.Join(c.Argv, " ")
}

// Fake implements transport.Transport against in-memory state. The zero
// value of RunFunc answers every command with exit 0 and empty output.
type Fake struct {
	Name string

	// RunFunc scripts command results. Nil means every command succeeds
	// with no output.
	RunFunc func(argv []string) (types.CommandResult, error)

	// PutErr fails every Put/PutStream when set.
	PutErr error

	// Stats answers Stat calls by exact path.
	Stats map[string]types.FileInfo

	// AgentPath is returned by ProbeAgent.
	AgentPath string

	// PlatformValue is returned by Platform.
	PlatformValue types.Platform

	mu     sync.Mutex
	calls  []Call
	puts   map[string][]byte
	closed bool
}

// New returns a fake transport identifying as host name.
func New(name string) *Fake {
	return &Fake{
		Name:  name,
		Stats: make(map[string]types.FileInfo),
		puts:  make(map[string][]byte),
	}
}

func (f *Fake) Host() string { return f.Name }

func (f *Fake) Run(_ context.Context, argv []string, stdin io.Reader) (types.CommandResult, error) {
	call := Call{Argv: argv}
	if stdin != nil {
		call.Stdin, _ = io.ReadAll(stdin)
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if f.RunFunc != nil {
		return f.RunFunc(argv)
	}
	return types.CommandResult{}, nil
}

func (f *Fake) Put(_ context.Context, remotePath string, data []byte) error {
	if f.PutErr != nil {
		return f.PutErr
	}
	f.mu.Lock()
	f.puts[remotePath] = append([]byte(nil), data...)
	f.mu.Unlock()
	return nil
}

func (f *Fake) PutStream(ctx context.Context, remotePath string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return f.Put(ctx, remotePath, data)
}

func (f *Fake) Stat(_ context.Context, remotePath string) (types.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if info, ok := f.Stats[remotePath]; ok {
		return info, nil
	}
	if data, ok := f.puts[remotePath]; ok {
		return types.FileInfo{Exists: true, IsFile: true, Size: int64(len(data))}, nil
	}
	return types.FileInfo{}, nil
}

func (f *Fake) ProbeAgent(context.Context) (string, error) {
	return f.AgentPath, nil
}

func (f *Fake) Platform(context.Context) (types.Platform, error) {
	return f.PlatformValue, nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Calls returns the recorded Run invocations in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Written returns the bytes written to remotePath, if any.
func (f *Fake) Written(remotePath string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.puts[remotePath]
	return data, ok
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

package transport

import (
	"context"
	"io"

	"github.com/kurtbuilds/cook/pkg/types"
)

// Transport owns one connection to one host: command execution plus a
// file-transfer sidechannel. Implementations multiplex logical sessions over
// a single connection so a host running many rules pays one handshake.
type Transport interface {
	// Run executes argv on the remote host and blocks for the result.
	// A non-zero exit is reported in the result, not as an error; the error
	// return is reserved for transport failures.
	Run(ctx context.Context, argv []string, stdin io.Reader) (types.CommandResult, error)

	// Put writes data to remotePath, creating missing parent directories.
	Put(ctx context.Context, remotePath string, data []byte) error

	// PutStream writes from r to remotePath, creating missing parents.
	PutStream(ctx context.Context, remotePath string, r io.Reader) error

	// Stat describes the remote path. A missing path is not an error; it
	// reports Exists=false.
	Stat(ctx context.Context, remotePath string) (types.FileInfo, error)

	// ProbeAgent looks for an on-host agent binary. It returns the path, or
	// "" when no agent is installed.
	ProbeAgent(ctx context.Context) (string, error)

	// Platform derives the host's target triple.
	Platform(ctx context.Context) (types.Platform, error)

	// Host returns the destination this transport is connected to.
	Host() string

	Close() error
}

// agentProbePath is prepended to PATH when probing for the agent binary.
const agentProbePath = "/usr/local/bin:/usr/bin:/opt/cook:$HOME/.cargo/bin"

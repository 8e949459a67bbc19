package resource

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurtbuilds/cook/pkg/transport/transporttest"
	"github.com/kurtbuilds/cook/pkg/types"
)

// shaAnswering simulates a host filesystem for sha256sum and test probes:
// files written through the fake become visible to subsequent checks.
func shaAnswering(f *transporttest.Fake) func(argv []string) (types.CommandResult, error) {
	return func(argv []string) (types.CommandResult, error) {
		switch argv[0] {
		case "sha256sum":
			if data, ok := f.Written(argv[1]); ok {
				out := fmt.Sprintf("%s  %s\n", sha256Hex(data), argv[1])
				return types.CommandResult{Stdout: []byte(out)}, nil
			}
			return types.CommandResult{ExitCode: 1, Stderr: []byte("No such file or directory")}, nil
		case "test":
			if _, ok := f.Written(argv[2]); ok {
				return types.CommandResult{}, nil
			}
			return types.CommandResult{ExitCode: 1}, nil
		}
		return types.CommandResult{}, nil
	}
}

func TestFileSpecCheckMissing(t *testing.T) {
	fake := transporttest.New("alice")
	fake.RunFunc = shaAnswering(fake)

	spec := FileWithContent("/etc/hello", []byte("hi\n"))
	assert.Equal(t, "98ea6e4f216f2fb4b69fff9b3a44842c38686ca685f3f55dc48c5d3fb1107be4", spec.SHA256)

	mods, err := spec.CheckRemote(context.Background(), fake)
	require.NoError(t, err)
	require.Len(t, mods, 1)

	missing, ok := mods[0].(*MissingFile)
	require.True(t, ok)
	assert.Equal(t, "/etc/hello", missing.File.Path)
	assert.Equal(t, []byte("hi\n"), missing.File.Content)
}

func TestFileSpecConvergence(t *testing.T) {
	fake := transporttest.New("alice")
	fake.RunFunc = shaAnswering(fake)

	spec := FileWithContent("/etc/hello", []byte("hi\n"))

	mods, err := spec.CheckRemote(context.Background(), fake)
	require.NoError(t, err)
	require.Len(t, mods, 1)

	require.NoError(t, mods[0].ApplyRemote(context.Background(), fake))
	data, ok := fake.Written("/etc/hello")
	require.True(t, ok)
	assert.Equal(t, []byte("hi\n"), data)

	// Applying the modification converges the rule: the next check is empty.
	mods, err = spec.CheckRemote(context.Background(), fake)
	require.NoError(t, err)
	assert.Empty(t, mods)
}

func TestFileSpecApplyAttrs(t *testing.T) {
	fake := transporttest.New("alice")

	spec := FileWithContent("/etc/app.conf", []byte("x=1\n"))
	spec.Mode = 0o600
	spec.Owner = "app"
	spec.Group = "app"

	m := &MissingFile{File: *spec}
	require.NoError(t, m.ApplyRemote(context.Background(), fake))

	var commands []string
	for _, call := range fake.Calls() {
		commands = append(commands, call.Command())
	}
	assert.Contains(t, commands, "chmod 600 /etc/app.conf")
	assert.Contains(t, commands, "chown -h app:app /etc/app.conf")
}

func TestFileSpecApplyUnlinksSymlink(t *testing.T) {
	fake := transporttest.New("alice")
	fake.Stats["/etc/hello"] = types.FileInfo{Exists: true, IsSymlink: true}

	m := &MissingFile{File: *FileWithContent("/etc/hello", []byte("hi\n"))}
	require.NoError(t, m.ApplyRemote(context.Background(), fake))

	var commands []string
	for _, call := range fake.Calls() {
		commands = append(commands, call.Command())
	}
	assert.Contains(t, commands, "rm -f /etc/hello")
}

func TestFileSpecURL(t *testing.T) {
	fake := transporttest.New("alice")
	fake.RunFunc = func(argv []string) (types.CommandResult, error) {
		if argv[0] == "test" {
			return types.CommandResult{ExitCode: 1}, nil
		}
		return types.CommandResult{}, nil
	}

	spec := &FileSpec{Path: "/usr/local/bin/tool", URL: "https://example.com/tool", Mode: 0o755}
	mods, err := spec.CheckRemote(context.Background(), fake)
	require.NoError(t, err)
	require.Len(t, mods, 1)

	require.NoError(t, mods[0].ApplyRemote(context.Background(), fake))

	var commands []string
	for _, call := range fake.Calls() {
		commands = append(commands, call.Command())
	}
	assert.Contains(t, commands, "mkdir -p /usr/local/bin")
	assert.Contains(t, commands, "curl -fsSL -o /usr/local/bin/tool https://example.com/tool")
	assert.Contains(t, commands, "chmod 755 /usr/local/bin/tool")
}

func TestFileSpecURLChecksumMismatch(t *testing.T) {
	fake := transporttest.New("alice")
	fake.RunFunc = func(argv []string) (types.CommandResult, error) {
		if argv[0] == "sha256sum" {
			return types.CommandResult{Stdout: []byte("deadbeef  /usr/local/bin/tool\n")}, nil
		}
		return types.CommandResult{}, nil
	}

	m := &MissingFile{File: FileSpec{
		Path:   "/usr/local/bin/tool",
		URL:    "https://example.com/tool",
		SHA256: "0000000000000000000000000000000000000000000000000000000000000000",
	}}
	err := m.ApplyRemote(context.Background(), fake)
	assert.ErrorContains(t, err, "does not match sha256")
}

func TestFileSpecDirectory(t *testing.T) {
	fake := transporttest.New("alice")
	fake.RunFunc = func(argv []string) (types.CommandResult, error) {
		if argv[0] == "test" {
			return types.CommandResult{ExitCode: 1}, nil
		}
		return types.CommandResult{}, nil
	}

	spec := &FileSpec{Path: "/srv/app", Dir: true, Mode: 0o750}
	mods, err := spec.CheckRemote(context.Background(), fake)
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, "create directory /srv/app", mods[0].Human())

	require.NoError(t, mods[0].ApplyRemote(context.Background(), fake))
	var commands []string
	for _, call := range fake.Calls() {
		commands = append(commands, call.Command())
	}
	assert.Contains(t, commands, "mkdir -p /srv/app")
	assert.Contains(t, commands, "chmod 750 /srv/app")
}

func TestFileSpecSymlink(t *testing.T) {
	fake := transporttest.New("alice")
	fake.RunFunc = func(argv []string) (types.CommandResult, error) {
		if argv[0] == "readlink" {
			return types.CommandResult{Stdout: []byte("/old/target\n")}, nil
		}
		return types.CommandResult{}, nil
	}

	spec := &FileSpec{Path: "/etc/alternatives/editor", Link: "/usr/bin/vim"}
	mods, err := spec.CheckRemote(context.Background(), fake)
	require.NoError(t, err)
	require.Len(t, mods, 1)

	require.NoError(t, mods[0].ApplyRemote(context.Background(), fake))
	var commands []string
	for _, call := range fake.Calls() {
		commands = append(commands, call.Command())
	}
	assert.Contains(t, commands, "ln -sfn /usr/bin/vim /etc/alternatives/editor")
}

func TestFileSpecSymlinkMatches(t *testing.T) {
	fake := transporttest.New("alice")
	fake.RunFunc = func(argv []string) (types.CommandResult, error) {
		return types.CommandResult{Stdout: []byte("/usr/bin/vim\n")}, nil
	}

	spec := &FileSpec{Path: "/etc/alternatives/editor", Link: "/usr/bin/vim"}
	mods, err := spec.CheckRemote(context.Background(), fake)
	require.NoError(t, err)
	assert.Empty(t, mods)
}

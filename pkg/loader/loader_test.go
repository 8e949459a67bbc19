package loader

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurtbuilds/cook/pkg/resource"
	"github.com/kurtbuilds/cook/pkg/rule"
)

func newTestRegistry(t *testing.T) *rule.Registry {
	t.Helper()
	reg := rule.NewRegistry()
	resource.RegisterAll(reg)
	return reg
}

func writeRoot(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
	}
	return root
}

func TestLoadFileAndHost(t *testing.T) {
	root := writeRoot(t, map[string]string{
		"hosts.kdl": "host \"alice\"\n",
		"site.kdl":  "file \"/etc/hello\" content=\"hi\\n\"\n",
	})

	state, ctx, err := Load(root, newTestRegistry(t))
	require.NoError(t, err)
	assert.NotEmpty(t, ctx.Root)
	assert.True(t, filepath.IsAbs(ctx.Root))

	assert.Equal(t, []string{"alice"}, state.HostNames())
	require.Len(t, state.Rules, 1)

	spec, ok := state.Rules[0].(*resource.FileSpec)
	require.True(t, ok)
	assert.Equal(t, "/etc/hello", spec.Path)
	assert.Equal(t, "98ea6e4f216f2fb4b69fff9b3a44842c38686ca685f3f55dc48c5d3fb1107be4", spec.SHA256)
}

func TestLoadDeterministic(t *testing.T) {
	root := writeRoot(t, map[string]string{
		"hosts.kdl": "host \"alice\"\nhost \"bob\"\n",
		"site.kdl":  "package \"jq\" \"curl\"\nuser \"deploy\" \"is_login\"\n",
		"Cookfile":  "file \"/etc/motd\" content=\"welcome\\n\"\n",
	})
	reg := newTestRegistry(t)

	first, _, err := Load(root, reg)
	require.NoError(t, err)
	second, _, err := Load(root, reg)
	require.NoError(t, err)

	var a, b bytes.Buffer
	require.NoError(t, first.Serialize(&a))
	require.NoError(t, second.Serialize(&b))
	assert.Equal(t, a.String(), b.String())
	assert.Equal(t, first.HostNames(), second.HostNames())
}

func TestLoadPreservesDeclarationOrder(t *testing.T) {
	root := writeRoot(t, map[string]string{
		"a.kdl": "package \"one\"\npackage \"two\"\n",
		"b.kdl": "package \"three\"\n",
	})

	state, _, err := Load(root, newTestRegistry(t))
	require.NoError(t, err)
	require.Len(t, state.Rules, 3)

	var names []string
	for _, r := range state.Rules {
		names = append(names, r.Identifier())
	}
	assert.Equal(t, []string{"one", "two", "three"}, names)
}

func TestLoadUnknownTag(t *testing.T) {
	root := writeRoot(t, map[string]string{
		"site.kdl": "mystery \"what\"\n",
	})

	_, _, err := Load(root, newTestRegistry(t))
	require.Error(t, err)
	assert.ErrorContains(t, err, "mystery")
	assert.ErrorContains(t, err, "site.kdl")

	var loadErr *LoadError
	assert.True(t, errors.As(err, &loadErr))
}

func TestLoadIgnoresForeignFiles(t *testing.T) {
	root := writeRoot(t, map[string]string{
		"site.kdl":   "package \"jq\"\n",
		"main.py":    "print('hi')\n",
		"main.ts":    "console.log('hi')\n",
		"Cargo.toml": "[package]\nname = \"x\"\n",
		"notes.txt":  "not a document\n",
	})

	state, _, err := Load(root, newTestRegistry(t))
	require.NoError(t, err)
	assert.Len(t, state.Rules, 1)
}

func TestLoadParseError(t *testing.T) {
	root := writeRoot(t, map[string]string{
		"site.kdl": "file \"/etc/unterminated\n",
	})

	_, _, err := Load(root, newTestRegistry(t))
	require.Error(t, err)
	var loadErr *LoadError
	assert.True(t, errors.As(err, &loadErr))
}

func TestParseSnippet(t *testing.T) {
	ctx, err := NewContext(t.TempDir(), newTestRegistry(t))
	require.NoError(t, err)

	state, err := ParseSnippet(`package jq`, ctx)
	require.NoError(t, err)
	require.Len(t, state.Rules, 1)
	assert.Equal(t, "jq", state.Rules[0].Identifier())
}

func TestLoadCopyExpansion(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dist", "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "dist", "a.js"), []byte("a\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "dist", "a.js.map"), []byte("{}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "dist", "sub", "b.js"), []byte("b\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "site.kdl"),
		[]byte("cp \"dist\" \"/srv/app\" {\n\texclude \"*.map\"\n}\n"), 0o644))

	state, _, err := Load(root, newTestRegistry(t))
	require.NoError(t, err)
	require.Len(t, state.Rules, 2)

	var paths []string
	for _, r := range state.Rules {
		paths = append(paths, r.Identifier())
	}
	assert.ElementsMatch(t, []string{"/srv/app/a.js", "/srv/app/sub/b.js"}, paths)
}

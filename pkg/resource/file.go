package resource

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kurtbuilds/cook/pkg/kdl"
	"github.com/kurtbuilds/cook/pkg/rule"
	"github.com/kurtbuilds/cook/pkg/transport"
)

// FileSpec asserts a remote path: a regular file with exact content (inline
// bytes or a URL to fetch), a directory, or a symlink. Path is a remote
// absolute path.
type FileSpec struct {
	Path    string `json:"path"`
	Mode    uint32 `json:"mode,omitempty"`
	Owner   string `json:"owner,omitempty"`
	Group   string `json:"group,omitempty"`
	Content []byte `json:"content,omitempty"`
	SHA256  string `json:"sha256,omitempty"`
	URL     string `json:"url,omitempty"`
	Dir     bool   `json:"dir,omitempty"`
	Link    string `json:"link,omitempty"`
}

// FileWithContent builds a content-variant FileSpec with its hash computed
// up front, so equality checks never re-read local files.
func FileWithContent(path string, content []byte) *FileSpec {
	return &FileSpec{
		Path:    path,
		Content: content,
		SHA256:  sha256Hex(content),
	}
}

func (f *FileSpec) Identifier() string { return f.Path }
func (f *FileSpec) Kind() string       { return "file" }

func (f *FileSpec) MarshalJSON() ([]byte, error) {
	type alias FileSpec
	return json.Marshal(struct {
		Rule string `json:"rule"`
		*alias
	}{f.Kind(), (*alias)(f)})
}

func (f *FileSpec) CheckRemote(ctx context.Context, t transport.Transport) ([]rule.Modification, error) {
	switch {
	case f.Dir:
		result, err := t.Run(ctx, []string{"test", "-d", f.Path}, nil)
		if err != nil {
			return nil, err
		}
		if result.Success() {
			return nil, nil
		}
	case f.Link != "":
		result, err := t.Run(ctx, []string{"readlink", f.Path}, nil)
		if err != nil {
			return nil, err
		}
		if result.Success() && result.Out() == f.Link {
			return nil, nil
		}
	case f.URL != "":
		result, err := t.Run(ctx, []string{"test", "-f", f.Path}, nil)
		if err != nil {
			return nil, err
		}
		if result.Success() {
			return nil, nil
		}
	default:
		result, err := t.Run(ctx, []string{"sha256sum", f.Path}, nil)
		if err != nil {
			return nil, err
		}
		if result.Success() && firstField(result.Out()) == f.SHA256 {
			return nil, nil
		}
	}
	return []rule.Modification{&MissingFile{File: *f}}, nil
}

// MissingFile is the corrective action for any FileSpec variant that does
// not match the host. It carries the full spec, content included.
type MissingFile struct {
	File FileSpec `json:"file"`
}

func (m *MissingFile) Kind() string { return "missing_file" }

func (m *MissingFile) Human() string {
	f := &m.File
	switch {
	case f.Dir:
		return fmt.Sprintf("create directory %s", f.Path)
	case f.Link != "":
		return fmt.Sprintf("symlink %s -> %s", f.Path, f.Link)
	case f.URL != "":
		return fmt.Sprintf("download %s from %s", f.Path, f.URL)
	default:
		return fmt.Sprintf("write %s (%d bytes)", f.Path, len(f.Content))
	}
}

func (m *MissingFile) MarshalJSON() ([]byte, error) {
	type alias MissingFile
	return json.Marshal((*alias)(m))
}

func (m *MissingFile) ApplyRemote(ctx context.Context, t transport.Transport) error {
	f := &m.File
	switch {
	case f.Dir:
		if err := runChecked(ctx, t, "mkdir", "-p", f.Path); err != nil {
			return err
		}
	case f.Link != "":
		if err := runChecked(ctx, t, "ln", "-sfn", f.Link, f.Path); err != nil {
			return err
		}
		// Mode is meaningless on a symlink; ownership alone applies below.
	case f.URL != "":
		if err := runChecked(ctx, t, "mkdir", "-p", parentDir(f.Path)); err != nil {
			return err
		}
		if err := runChecked(ctx, t, "curl", "-fsSL", "-o", f.Path, f.URL); err != nil {
			return err
		}
		if f.SHA256 != "" {
			result, err := t.Run(ctx, []string{"sha256sum", f.Path}, nil)
			if err != nil {
				return err
			}
			if !result.Success() || firstField(result.Out()) != f.SHA256 {
				return fmt.Errorf("%s: downloaded content does not match sha256 %s", f.Path, f.SHA256)
			}
		}
	default:
		// A symlink at the target would make the SFTP write follow it;
		// unlink first.
		info, err := t.Stat(ctx, f.Path)
		if err != nil {
			return err
		}
		if info.IsSymlink {
			if err := runChecked(ctx, t, "rm", "-f", f.Path); err != nil {
				return err
			}
		}
		if err := t.Put(ctx, f.Path, f.Content); err != nil {
			return err
		}
	}
	return m.applyAttrs(ctx, t)
}

// applyAttrs sets mode and ownership after the path exists.
func (m *MissingFile) applyAttrs(ctx context.Context, t transport.Transport) error {
	f := &m.File
	if f.Mode != 0 && f.Link == "" {
		if err := runChecked(ctx, t, "chmod", strconv.FormatUint(uint64(f.Mode), 8), f.Path); err != nil {
			return err
		}
	}
	if f.Owner != "" || f.Group != "" {
		spec := f.Owner
		if f.Group != "" {
			spec += ":" + f.Group
		}
		if err := runChecked(ctx, t, "chown", "-h", spec, f.Path); err != nil {
			return err
		}
	}
	return nil
}

// fileAttrKeys are the attributes a file node understands.
var fileAttrKeys = map[string]bool{
	"content": true,
	"src":     true,
	"url":     true,
	"link":    true,
	"mode":    true,
	"owner":   true,
	"group":   true,
	"sha256":  true,
}

// fileHandler materializes a FileSpec from a file node. The first argument
// is the remote path; the remaining attributes may be written as child
// nodes (content "hi"), keyword argument pairs (content "hi" on one line),
// or properties (content="hi"). A trailing slash on the path asserts a
// directory.
func fileHandler(st *rule.State, node *kdl.Node, ctx *rule.Context) error {
	path, err := node.StringArg(0)
	if err != nil {
		return err
	}
	attrs, err := fileAttrs(node)
	if err != nil {
		return err
	}

	spec := &FileSpec{Path: path}
	if strings.HasSuffix(path, "/") && path != "/" {
		spec.Path = strings.TrimSuffix(path, "/")
		spec.Dir = true
	}

	content, haveContent, err := fileContent(attrs, node.Name, ctx)
	if err != nil {
		return err
	}
	url := attrString(attrs, "url")
	link := attrString(attrs, "link")
	spec.Owner = attrString(attrs, "owner")
	spec.Group = attrString(attrs, "group")
	if spec.Mode, err = attrMode(attrs, node.Name); err != nil {
		return err
	}

	switch {
	case spec.Dir:
		if haveContent || url != "" || link != "" {
			return fmt.Errorf("file %s: a directory cannot carry content, url, or link", path)
		}
	case link != "":
		spec.Link = link
	case url != "":
		spec.URL = url
		spec.SHA256 = attrString(attrs, "sha256")
	default:
		// Inline content, possibly empty: the file exists with exactly
		// these bytes.
		spec.Content = content
		spec.SHA256 = sha256Hex(content)
	}

	st.AddRule(spec)
	return nil
}

// fileAttrs flattens the three equivalent attribute spellings into one map.
// Keyword argument pairs are read first, then child nodes, then properties;
// later spellings win.
func fileAttrs(node *kdl.Node) (map[string]kdl.Value, error) {
	attrs := make(map[string]kdl.Value)
	args := node.Args[1:]
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].AsString()
		if !ok || !fileAttrKeys[key] {
			return nil, fmt.Errorf("%s: unexpected argument %s", node.Name, args[i])
		}
		if i+1 >= len(args) {
			return nil, fmt.Errorf("%s: attribute %s has no value", node.Name, key)
		}
		attrs[key] = args[i+1]
	}
	for _, child := range node.Children {
		if !fileAttrKeys[child.Name] {
			return nil, fmt.Errorf("%s: unknown child node %q", node.Name, child.Name)
		}
		if len(child.Args) != 1 {
			return nil, fmt.Errorf("%s: attribute %s takes one value", node.Name, child.Name)
		}
		attrs[child.Name] = child.Args[0]
	}
	for key, v := range node.Props {
		if !fileAttrKeys[key] {
			return nil, fmt.Errorf("%s: unknown property %q", node.Name, key)
		}
		attrs[key] = v
	}
	return attrs, nil
}

func attrString(attrs map[string]kdl.Value, key string) string {
	if v, ok := attrs[key]; ok {
		if s, ok := v.AsString(); ok {
			return s
		}
	}
	return ""
}

// fileContent resolves inline content or a local src file.
func fileContent(attrs map[string]kdl.Value, nodeName string, ctx *rule.Context) ([]byte, bool, error) {
	if v, ok := attrs["content"]; ok {
		s, ok := v.AsString()
		if !ok {
			return nil, false, fmt.Errorf("%s: content is %s, expected a string", nodeName, v)
		}
		return []byte(s), true, nil
	}
	if v, ok := attrs["src"]; ok {
		src, ok := v.AsString()
		if !ok {
			return nil, false, fmt.Errorf("%s: src is %s, expected a string", nodeName, v)
		}
		data, err := os.ReadFile(ctx.LocalPath(src))
		if err != nil {
			return nil, false, fmt.Errorf("%s: read src: %w", nodeName, err)
		}
		return data, true, nil
	}
	return nil, false, nil
}

// attrMode parses the mode attribute. String values are octal ("0644");
// bare integers are read as octal digits, matching how operators write
// modes.
func attrMode(attrs map[string]kdl.Value, nodeName string) (uint32, error) {
	v, ok := attrs["mode"]
	if !ok {
		return 0, nil
	}
	var digits string
	switch v.Kind {
	case kdl.StringValue:
		digits = v.Str
	case kdl.IntValue:
		digits = strconv.FormatInt(v.Int, 10)
	default:
		return 0, fmt.Errorf("%s: mode is %s, expected an octal mode", nodeName, v)
	}
	mode, err := strconv.ParseUint(digits, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid mode %q", nodeName, digits)
	}
	return uint32(mode), nil
}

// runChecked runs argv and converts a non-zero exit into an error carrying
// stderr.
func runChecked(ctx context.Context, t transport.Transport, argv ...string) error {
	result, err := t.Run(ctx, argv, nil)
	if err != nil {
		return err
	}
	if !result.Success() {
		return fmt.Errorf("%s exited %d: %s", strings.Join(argv, " "), result.ExitCode, strings.TrimSpace(string(result.Stderr)))
	}
	return nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// parentDir is filepath.Dir for remote (always slash-separated) paths.
func parentDir(path string) string {
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return "/"
	}
	return path[:i]
}

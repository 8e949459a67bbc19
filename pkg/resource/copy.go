package resource

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kurtbuilds/cook/pkg/kdl"
	"github.com/kurtbuilds/cook/pkg/rule"
)

// cp expands entirely at load time into FileSpecs: local content is read and
// hashed now, not at check time. Big trees balloon the rule list; that is
// accepted at this system's scale.
func copyHandler(st *rule.State, node *kdl.Node, ctx *rule.Context) error {
	src, err := node.StringArg(0)
	if err != nil {
		return err
	}
	dst, err := node.StringArg(1)
	if err != nil {
		return err
	}

	var includes, excludes []string
	for _, child := range node.Children {
		var patterns *[]string
		switch child.Name {
		case "include":
			patterns = &includes
		case "exclude":
			patterns = &excludes
		default:
			return fmt.Errorf("cp: unknown child node %q", child.Name)
		}
		for i := range child.Args {
			p, err := child.StringArg(i)
			if err != nil {
				return err
			}
			*patterns = append(*patterns, p)
		}
	}

	specs, err := expandCopy(ctx, src, dst, includes, excludes)
	if err != nil {
		return err
	}
	for _, spec := range specs {
		st.AddRule(spec)
	}
	return nil
}

// expandCopy produces one FileSpec per local file. A file src copies to dst
// (or into dst when dst has a trailing slash); a directory src walks
// recursively, filtering each file's src-relative path through the
// include/exclude globs.
func expandCopy(ctx *rule.Context, src, dst string, includes, excludes []string) ([]*FileSpec, error) {
	local := ctx.LocalPath(src)
	info, err := os.Stat(local)
	if err != nil {
		return nil, fmt.Errorf("cp %s: %w", src, err)
	}

	if info.Mode().IsRegular() {
		target := dst
		if strings.HasSuffix(dst, "/") {
			target = path.Join(dst, filepath.Base(local))
		}
		content, err := os.ReadFile(local)
		if err != nil {
			return nil, fmt.Errorf("cp %s: %w", src, err)
		}
		return []*FileSpec{FileWithContent(target, content)}, nil
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("cp %s: not a regular file or directory", src)
	}

	var specs []*FileSpec
	err = filepath.WalkDir(local, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(local, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !included(rel, includes, excludes) {
			return nil
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		specs = append(specs, FileWithContent(path.Join(dst, rel), content))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cp %s: %w", src, err)
	}
	return specs, nil
}

// included applies the glob filter law: excluded ancestors always lose, an
// empty include list accepts everything else.
func included(rel string, includes, excludes []string) bool {
	if matchAny(rel, excludes) {
		return false
	}
	if len(includes) == 0 {
		return true
	}
	return matchAny(rel, includes)
}

// matchAny rewrites each user pattern to **/<pattern> and matches it against
// the path and every ancestor, so exclude "node_modules" works at any depth
// without an anchor.
func matchAny(rel string, patterns []string) bool {
	for _, p := range patterns {
		pattern := "**/" + strings.TrimSuffix(p, "/")
		for _, candidate := range selfAndAncestors(rel) {
			if ok, err := doublestar.Match(pattern, candidate); err == nil && ok {
				return true
			}
		}
	}
	return false
}

// selfAndAncestors returns every prefix path of rel, shortest first, ending
// with rel itself.
func selfAndAncestors(rel string) []string {
	parts := strings.Split(rel, "/")
	out := make([]string, 0, len(parts))
	for i := 1; i <= len(parts); i++ {
		out = append(out, strings.Join(parts[:i], "/"))
	}
	return out
}

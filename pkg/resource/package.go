package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kurtbuilds/cook/pkg/kdl"
	"github.com/kurtbuilds/cook/pkg/rule"
	"github.com/kurtbuilds/cook/pkg/transport"
)

// PackageSpec asserts that a package is installed. The package manager is
// apt; non-Debian targets are out of reach until a manager abstraction
// exists.
type PackageSpec struct {
	Name string `json:"name"`
}

func (p *PackageSpec) Identifier() string { return p.Name }
func (p *PackageSpec) Kind() string       { return "package" }

func (p *PackageSpec) MarshalJSON() ([]byte, error) {
	type alias PackageSpec
	return json.Marshal(struct {
		Rule string `json:"rule"`
		*alias
	}{p.Kind(), (*alias)(p)})
}

func (p *PackageSpec) CheckRemote(ctx context.Context, t transport.Transport) ([]rule.Modification, error) {
	result, err := t.Run(ctx, []string{"apt", "-qq", "list", p.Name}, nil)
	if err != nil {
		return nil, err
	}
	if strings.Contains(string(result.Stdout), p.Name) {
		return nil, nil
	}
	return []rule.Modification{&AddPackage{Package: *p}}, nil
}

// AddPackage installs the named package.
type AddPackage struct {
	Package PackageSpec `json:"package"`
}

func (m *AddPackage) Kind() string { return "add_package" }

func (m *AddPackage) Human() string {
	return fmt.Sprintf("install package %s", m.Package.Name)
}

func (m *AddPackage) MarshalJSON() ([]byte, error) {
	type alias AddPackage
	return json.Marshal((*alias)(m))
}

func (m *AddPackage) ApplyRemote(ctx context.Context, t transport.Transport) error {
	return runChecked(ctx, t, "apt", "install", "-y", m.Package.Name)
}

// packageHandler accepts one or more package names per node.
func packageHandler(st *rule.State, node *kdl.Node, _ *rule.Context) error {
	if len(node.Args) == 0 {
		return fmt.Errorf("package: at least one package name required")
	}
	for i := range node.Args {
		name, err := node.StringArg(i)
		if err != nil {
			return err
		}
		st.AddRule(&PackageSpec{Name: name})
	}
	return nil
}

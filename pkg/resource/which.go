package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kurtbuilds/cook/pkg/kdl"
	"github.com/kurtbuilds/cook/pkg/rule"
	"github.com/kurtbuilds/cook/pkg/transport"
)

// WhichSpec asserts that an executable is on the remote PATH; when it is
// missing, Script installs it.
type WhichSpec struct {
	Bin    string `json:"bin"`
	Script string `json:"script,omitempty"`
}

func (w *WhichSpec) Identifier() string { return w.Bin }
func (w *WhichSpec) Kind() string       { return "which" }

func (w *WhichSpec) MarshalJSON() ([]byte, error) {
	type alias WhichSpec
	return json.Marshal(struct {
		Rule string `json:"rule"`
		*alias
	}{w.Kind(), (*alias)(w)})
}

func (w *WhichSpec) CheckRemote(ctx context.Context, t transport.Transport) ([]rule.Modification, error) {
	result, err := t.Run(ctx, []string{"which", w.Bin}, nil)
	if err != nil {
		return nil, err
	}
	if result.Success() {
		return nil, nil
	}
	if w.Script == "" {
		return nil, fmt.Errorf("which %s: executable missing and no install script given", w.Bin)
	}
	return []rule.Modification{&RunScript{Bin: w.Bin, Script: w.Script}}, nil
}

// RunScript executes the install script on the remote host.
type RunScript struct {
	Bin    string `json:"bin"`
	Script string `json:"script"`
}

func (m *RunScript) Kind() string { return "run_script" }

func (m *RunScript) Human() string {
	return fmt.Sprintf("run install script for %s", m.Bin)
}

func (m *RunScript) MarshalJSON() ([]byte, error) {
	type alias RunScript
	return json.Marshal((*alias)(m))
}

func (m *RunScript) ApplyRemote(ctx context.Context, t transport.Transport) error {
	return runChecked(ctx, t, "sh", "-c", m.Script)
}

// whichHandler reads the binary name and an install script: inline as the
// second argument, or from a local file via script_file.
func whichHandler(st *rule.State, node *kdl.Node, ctx *rule.Context) error {
	bin, err := node.StringArg(0)
	if err != nil {
		return err
	}
	spec := &WhichSpec{Bin: bin}
	if len(node.Args) > 1 {
		if spec.Script, err = node.StringArg(1); err != nil {
			return err
		}
	}
	if scriptFile, ok, err := node.StringProp("script_file"); err != nil {
		return err
	} else if ok {
		data, err := os.ReadFile(ctx.LocalPath(scriptFile))
		if err != nil {
			return fmt.Errorf("which %s: read script file: %w", bin, err)
		}
		spec.Script = string(data)
	}
	st.AddRule(spec)
	return nil
}

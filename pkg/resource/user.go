package resource

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kurtbuilds/cook/pkg/kdl"
	"github.com/kurtbuilds/cook/pkg/rule"
	"github.com/kurtbuilds/cook/pkg/transport"
)

// UserSpec asserts that a user exists. IsLogin users get a home directory.
type UserSpec struct {
	Name    string `json:"name"`
	IsLogin bool   `json:"is_login,omitempty"`
}

func (u *UserSpec) Identifier() string { return u.Name }
func (u *UserSpec) Kind() string       { return "user" }

func (u *UserSpec) MarshalJSON() ([]byte, error) {
	type alias UserSpec
	return json.Marshal(struct {
		Rule string `json:"rule"`
		*alias
	}{u.Kind(), (*alias)(u)})
}

func (u *UserSpec) CheckRemote(ctx context.Context, t transport.Transport) ([]rule.Modification, error) {
	result, err := t.Run(ctx, []string{"id", u.Name}, nil)
	if err != nil {
		return nil, err
	}
	if result.Success() {
		return nil, nil
	}
	return []rule.Modification{&AddUser{User: *u}}, nil
}

// AddUser creates the user with useradd.
type AddUser struct {
	User UserSpec `json:"user"`
}

func (m *AddUser) Kind() string { return "add_user" }

func (m *AddUser) Human() string {
	return fmt.Sprintf("add user %s", m.User.Name)
}

func (m *AddUser) MarshalJSON() ([]byte, error) {
	type alias AddUser
	return json.Marshal((*alias)(m))
}

func (m *AddUser) ApplyRemote(ctx context.Context, t transport.Transport) error {
	argv := []string{"useradd"}
	if m.User.IsLogin {
		argv = append(argv, "-m")
	}
	argv = append(argv, m.User.Name)
	return runChecked(ctx, t, argv...)
}

// userHandler reads the user name plus optional flags: a bare "is_login"
// argument or an is_login property.
func userHandler(st *rule.State, node *kdl.Node, _ *rule.Context) error {
	name, err := node.StringArg(0)
	if err != nil {
		return err
	}
	spec := &UserSpec{Name: name}
	for i := 1; i < len(node.Args); i++ {
		flag, err := node.StringArg(i)
		if err != nil {
			return err
		}
		if flag != "is_login" {
			return fmt.Errorf("user %s: unknown flag %q", name, flag)
		}
		spec.IsLogin = true
	}
	if v, ok := node.Prop("is_login"); ok {
		if v.Kind != kdl.BoolValue {
			return fmt.Errorf("user %s: is_login is %s, expected a bool", name, v)
		}
		spec.IsLogin = v.Bool
	}
	st.AddRule(spec)
	return nil
}

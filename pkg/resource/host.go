package resource

import (
	"github.com/kurtbuilds/cook/pkg/kdl"
	"github.com/kurtbuilds/cook/pkg/rule"
	"github.com/kurtbuilds/cook/pkg/types"
)

// hostHandler routes host nodes to the state's host list rather than its
// rule list; a host declaration generates no modifications. Arguments after
// the name are role labels.
func hostHandler(st *rule.State, node *kdl.Node, _ *rule.Context) error {
	name, err := node.StringArg(0)
	if err != nil {
		return err
	}
	host := types.Host{Name: name}
	for i := 1; i < len(node.Args); i++ {
		role, err := node.StringArg(i)
		if err != nil {
			return err
		}
		host.Roles = append(host.Roles, role)
	}
	st.AddHost(host)
	return nil
}

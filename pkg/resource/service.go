package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/kurtbuilds/cook/pkg/kdl"
	"github.com/kurtbuilds/cook/pkg/rule"
	"github.com/kurtbuilds/cook/pkg/transport"
)

// ServiceSpec asserts that a systemd unit file exists with exactly the given
// content. The unit is restarted whenever the file changes.
type ServiceSpec struct {
	Name        string `json:"name"`
	UnitContent string `json:"unit_content"`
}

func (s *ServiceSpec) Identifier() string { return s.Name }
func (s *ServiceSpec) Kind() string       { return "service" }

func (s *ServiceSpec) unitPath() string {
	return fmt.Sprintf("/etc/systemd/system/%s.service", s.Name)
}

func (s *ServiceSpec) MarshalJSON() ([]byte, error) {
	type alias ServiceSpec
	return json.Marshal(struct {
		Rule string `json:"rule"`
		*alias
	}{s.Kind(), (*alias)(s)})
}

func (s *ServiceSpec) CheckRemote(ctx context.Context, t transport.Transport) ([]rule.Modification, error) {
	localSHA := sha256Hex([]byte(s.UnitContent))
	change := []rule.Modification{&NewService{
		Name:        s.Name,
		UnitContent: s.UnitContent,
		SHA256:      localSHA,
	}}

	listed, err := t.Run(ctx, []string{"systemctl", "list-unit-files", s.Name + ".service"}, nil)
	if err != nil {
		return nil, err
	}
	exists := listed.Success() && strings.Contains(string(listed.Stdout), s.Name+".service")
	if !exists {
		return change, nil
	}

	sum, err := t.Run(ctx, []string{"sha256sum", s.unitPath()}, nil)
	if err != nil {
		return nil, err
	}
	if !sum.Success() {
		return nil, fmt.Errorf("service %s: sha256sum %s exited %d: %s",
			s.Name, s.unitPath(), sum.ExitCode, strings.TrimSpace(string(sum.Stderr)))
	}
	if firstField(sum.Out()) != localSHA {
		return change, nil
	}
	return nil, nil
}

// NewService writes the unit file and restarts the service.
type NewService struct {
	Name        string `json:"name"`
	UnitContent string `json:"unit_content"`
	SHA256      string `json:"sha256"`
}

func (m *NewService) Kind() string { return "new_service" }

func (m *NewService) Human() string {
	return fmt.Sprintf("install service %s and restart", m.Name)
}

func (m *NewService) MarshalJSON() ([]byte, error) {
	type alias NewService
	return json.Marshal((*alias)(m))
}

func (m *NewService) ApplyRemote(ctx context.Context, t transport.Transport) error {
	spec := ServiceSpec{Name: m.Name}
	if err := t.Put(ctx, spec.unitPath(), []byte(m.UnitContent)); err != nil {
		return err
	}
	if err := runChecked(ctx, t, "systemctl", "daemon-reload"); err != nil {
		return err
	}
	return runChecked(ctx, t, "systemctl", "restart", m.Name)
}

// serviceHandler reads the service name and a local unit file path; the unit
// content is captured at load time.
func serviceHandler(st *rule.State, node *kdl.Node, ctx *rule.Context) error {
	name, err := node.StringArg(0)
	if err != nil {
		return err
	}
	unitFile, err := node.StringArg(1)
	if err != nil {
		return err
	}
	content, err := os.ReadFile(ctx.LocalPath(unitFile))
	if err != nil {
		return fmt.Errorf("service %s: read unit file: %w", name, err)
	}
	st.AddRule(&ServiceSpec{Name: name, UnitContent: string(content)})
	return nil
}

package rule

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/kurtbuilds/cook/pkg/types"
)

// State is the desired world: rules in declaration order (which is apply
// order) plus the hosts declared in documents. It is immutable once the
// loader finishes; host tasks only read it.
type State struct {
	Rules []Rule
	Hosts []types.Host
}

// NewState returns an empty state.
func NewState() *State {
	return &State{}
}

// AddRule appends a rule. No deduplication: an identical rule applied twice
// is a no-op the second time because the first converged the host.
func (s *State) AddRule(r Rule) {
	s.Rules = append(s.Rules, r)
}

// AddHost records a declared host. Hosts union by name: declaring the same
// host in several documents yields one entry.
func (s *State) AddHost(h types.Host) {
	for i, existing := range s.Hosts {
		if existing.Name == h.Name {
			s.Hosts[i].Roles = append(s.Hosts[i].Roles, h.Roles...)
			return
		}
	}
	s.Hosts = append(s.Hosts, h)
}

// Merge appends other's rules (order preserved) and unions its hosts.
func (s *State) Merge(other *State) {
	s.Rules = append(s.Rules, other.Rules...)
	for _, h := range other.Hosts {
		s.AddHost(h)
	}
}

// HostNames returns the declared host names, used to default --host.
func (s *State) HostNames() []string {
	names := make([]string, 0, len(s.Hosts))
	for _, h := range s.Hosts {
		names = append(names, h.Name)
	}
	return names
}

// Serialize writes every rule as one JSON value per line: a stream of JSON
// values, not an array.
func (s *State) Serialize(w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, r := range s.Rules {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("serialize rule %s %q: %w", r.Kind(), r.Identifier(), err)
		}
	}
	return nil
}

// Package rule defines the polymorphic rule/modification contracts, the
// keyword registry the loader dispatches through, and the aggregated desired
// state for a run.
package rule

import (
	"context"
	"encoding/json"

	"github.com/kurtbuilds/cook/pkg/transport"
)

// Rule is a declarative assertion about one resource on a host.
type Rule interface {
	// Identifier is a debug label, unique within the rule's kind.
	Identifier() string

	// Kind is the serialization discriminator and dispatch tag.
	Kind() string

	// CheckRemote observes the host and returns the ordered modifications
	// that would bring it to the desired state. An empty slice means the
	// host already matches. Checks must not change the host.
	CheckRemote(ctx context.Context, t transport.Transport) ([]Modification, error)

	// Rules serialize themselves; the JSON form carries the kind
	// discriminator under the "rule" key.
	json.Marshaler
}

// Modification is one self-contained corrective action. It carries all data
// needed to apply it, so the event stream doubles as an apply plan.
type Modification interface {
	// Kind is the event discriminator.
	Kind() string

	// ApplyRemote effects the change on the host.
	ApplyRemote(ctx context.Context, t transport.Transport) error

	// Human is the single-line human-readable form.
	Human() string

	json.Marshaler
}

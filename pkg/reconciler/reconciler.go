// Package reconciler drives each host from observed state to desired state:
// check every rule in order, apply the resulting modifications, emit every
// modification and a summary to the event sink.
package reconciler

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kurtbuilds/cook/pkg/events"
	"github.com/kurtbuilds/cook/pkg/log"
	"github.com/kurtbuilds/cook/pkg/rule"
	"github.com/kurtbuilds/cook/pkg/transport"
	"github.com/kurtbuilds/cook/pkg/types"
)

// Connector opens a transport to one host.
type Connector func(ctx context.Context, host string) (transport.Transport, error)

// Config carries the run-wide settings shared by all host tasks.
type Config struct {
	Method types.Method
	Sink   *events.Sink

	// Connect defaults to the SSH transport.
	Connect Connector

	// CheckOnly emits modifications without applying them (preview).
	CheckOnly bool
}

// Reconciler runs one state against many hosts. State is read-only here;
// each host task owns its transport.
type Reconciler struct {
	state  *rule.State
	cfg    Config
	logger zerolog.Logger
}

// New creates a reconciler for the loaded state.
func New(state *rule.State, cfg Config) *Reconciler {
	if cfg.Connect == nil {
		cfg.Connect = func(ctx context.Context, host string) (transport.Transport, error) {
			return transport.Connect(ctx, host)
		}
	}
	if cfg.Method == "" {
		cfg.Method = types.MethodAuto
	}
	return &Reconciler{
		state:  state,
		cfg:    cfg,
		logger: log.WithComponent("reconciler"),
	}
}

// Run reconciles every host concurrently, one task per host. Hosts are
// independent: a failure terminates only its own task and is reported as an
// error event plus a non-nil HostResult.Err. Results keep the input order.
func (r *Reconciler) Run(ctx context.Context, hosts []string) []types.HostResult {
	results := make([]types.HostResult, len(hosts))
	var wg sync.WaitGroup
	for i, host := range hosts {
		wg.Add(1)
		go func(i int, host string) {
			defer wg.Done()
			count, err := r.runHost(ctx, host)
			results[i] = types.HostResult{Host: host, Modifications: count, Err: err}
			if err != nil {
				if sinkErr := r.cfg.Sink.Error(host, err); sinkErr != nil {
					r.logger.Error().Err(sinkErr).Str("host", host).Msg("failed to emit error event")
				}
			}
		}(i, host)
	}
	wg.Wait()
	return results
}

// runHost is one host task: connect, check each rule, apply its
// modifications in order, summarize. Rule i fully completes before rule
// i+1 begins. Cancellation is honored between rules, never mid-apply.
func (r *Reconciler) runHost(ctx context.Context, host string) (int, error) {
	logger := log.WithHost(host)

	t, err := r.cfg.Connect(ctx, host)
	if err != nil {
		return 0, fmt.Errorf("connect: %w", err)
	}
	defer t.Close()

	if err := r.selectMethod(ctx, t, logger); err != nil {
		return 0, err
	}

	count := 0
	for _, rl := range r.state.Rules {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		logger.Debug().Str("rule", rl.Kind()).Str("id", rl.Identifier()).Msg("checking")
		mods, err := rl.CheckRemote(ctx, t)
		if err != nil {
			return count, fmt.Errorf("check %s %q: %w", rl.Kind(), rl.Identifier(), err)
		}
		for _, m := range mods {
			if err := r.cfg.Sink.Modification(host, m); err != nil {
				return count, fmt.Errorf("emit %s: %w", m.Kind(), err)
			}
			if !r.cfg.CheckOnly {
				// A started apply runs to completion even if ctx is cancelled.
				if err := m.ApplyRemote(context.WithoutCancel(ctx), t); err != nil {
					return count, fmt.Errorf("apply %s for %s %q: %w", m.Kind(), rl.Kind(), rl.Identifier(), err)
				}
			}
			count++
		}
	}

	if err := r.cfg.Sink.Summary(host, count); err != nil {
		return count, fmt.Errorf("emit summary: %w", err)
	}
	return count, nil
}

// selectMethod resolves auto/ssh/agent for this host. The agent execution
// path is not wired yet; a found agent still drives the host over
// shell+SFTP with identical semantics.
func (r *Reconciler) selectMethod(ctx context.Context, t transport.Transport, logger zerolog.Logger) error {
	switch r.cfg.Method {
	case types.MethodSSH:
		return nil
	case types.MethodAgent:
		path, err := t.ProbeAgent(ctx)
		if err != nil {
			return fmt.Errorf("probe agent: %w", err)
		}
		if path == "" {
			return fmt.Errorf("method agent: no agent binary found on host")
		}
		logger.Debug().Str("agent", path).Msg("agent found")
		return nil
	default: // auto
		path, err := t.ProbeAgent(ctx)
		if err != nil {
			return fmt.Errorf("probe agent: %w", err)
		}
		if path != "" {
			logger.Debug().Str("agent", path).Msg("agent found")
		}
		return nil
	}
}

/*
Package reconciler ensures actual host state matches the declared state.

One reconciliation run drives every target host once: connect, check each
rule in declaration order, apply the modifications each check returns, and
emit the event stream. There is no persistent orchestrator state; the only
state that survives a run lives on the hosts themselves.

# Architecture

	               ┌─────────── State (read-only) ───────────┐
	               │  rules in declaration order + hosts      │
	               └───────┬──────────────┬───────────────────┘
	                       │              │
	              ┌────────▼───────┐ ┌────▼───────────┐
	              │  host task a   │ │  host task b   │   one goroutine
	              │  transport a   │ │  transport b   │   per host
	              └────────┬───────┘ └────┬───────────┘
	                       │              │
	               check → emit → apply, rule by rule
	                       │              │
	               ┌───────▼──────────────▼───────────┐
	               │        events.Sink (shared)       │
	               │  atomic per-event writes          │
	               └───────────────────────────────────┘

# Ordering and isolation

Within one host, rule i fully completes before rule i+1 begins, and a rule's
modifications apply in the order its check returned them. Hosts are
independent: a failure terminates only that host's task, is reported as an
error event, and leaves prior modifications applied (no rollback).
Cancellation is honored between rules, never mid-apply.
*/
package reconciler

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kurtbuilds/cook/pkg/events"
	"github.com/kurtbuilds/cook/pkg/loader"
	"github.com/kurtbuilds/cook/pkg/reconciler"
	"github.com/kurtbuilds/cook/pkg/types"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Reconcile all hosts against the declared state",
	Long: `Load the specification under the root and converge every target host:
check each rule, apply the resulting modifications in order, and emit one
event per modification plus a per-host summary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := gatherOptions(cmd)
		if err != nil {
			return err
		}

		state, _, err := loader.Load(opts.root, newRegistry())
		if err != nil {
			return err
		}
		hosts, err := resolveHosts(opts, state)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sink := events.NewSink(os.Stdout, opts.format)
		recon := reconciler.New(state, reconciler.Config{
			Method: opts.method,
			Sink:   sink,
		})
		results := recon.Run(ctx, hosts)

		if types.Failed(results) {
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
				}
			}
			return fmt.Errorf("%d of %d host(s) failed", failed, len(results))
		}
		return nil
	},
}

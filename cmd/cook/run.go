package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kurtbuilds/cook/pkg/events"
	"github.com/kurtbuilds/cook/pkg/loader"
	"github.com/kurtbuilds/cook/pkg/reconciler"
	"github.com/kurtbuilds/cook/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run TAG [ARG...]",
	Short: "Reconcile a single rule given on the command line",
	Long: `Parse one declarative node from the arguments and reconcile it against
the target hosts, e.g.:

  cook run package jq
  cook run cp dist /srv/app/
  cook run file /etc/motd content="managed by cook"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := gatherOptions(cmd)
		if err != nil {
			return err
		}

		ctx, err := loader.NewContext(opts.root, newRegistry())
		if err != nil {
			return err
		}
		state, err := loader.ParseSnippet(snippetFromArgs(args), ctx)
		if err != nil {
			return err
		}
		hosts, err := resolveHosts(opts, state)
		if err != nil {
			return err
		}

		runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sink := events.NewSink(os.Stdout, opts.format)
		recon := reconciler.New(state, reconciler.Config{
			Method: opts.method,
			Sink:   sink,
		})
		results := recon.Run(runCtx, hosts)

		if types.Failed(results) {
			return fmt.Errorf("reconcile failed")
		}
		return nil
	},
}

// snippetFromArgs rebuilds a parseable node from shell-split arguments. The
// shell already stripped quoting, so arguments with whitespace or quotes are
// re-quoted; key=value arguments keep the key bare.
func snippetFromArgs(args []string) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = quoteArg(arg)
	}
	return strings.Join(parts, " ")
}

func quoteArg(arg string) string {
	if !strings.ContainsAny(arg, " \t\n\"\\{};") {
		return arg
	}
	if i := strings.Index(arg, "="); i > 0 && !strings.ContainsAny(arg[:i], " \t\n\"\\{};") {
		return arg[:i] + "=" + strconv.Quote(arg[i+1:])
	}
	return strconv.Quote(arg)
}

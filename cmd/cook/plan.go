package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kurtbuilds/cook/pkg/loader"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Parse specification files and print the rule set",
	Long: `Parse every Cookfile and *.kdl document under the root and print the
materialized rules as a stream of JSON values. No remote connections are
made.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := gatherOptions(cmd)
		if err != nil {
			return err
		}

		state, _, err := loader.Load(opts.root, newRegistry())
		if err != nil {
			return err
		}

		if err := state.Serialize(os.Stdout); err != nil {
			return err
		}
		for _, host := range state.HostNames() {
			fmt.Fprintf(os.Stderr, "host: %s\n", host)
		}
		return nil
	},
}

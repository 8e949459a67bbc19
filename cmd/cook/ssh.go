package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/kurtbuilds/cook/pkg/loader"
)

var sshCmd = &cobra.Command{
	Use:   "ssh",
	Short: "Open an interactive shell on the first target host",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := gatherOptions(cmd)
		if err != nil {
			return err
		}

		hosts := opts.hosts
		if len(hosts) == 0 {
			state, _, err := loader.Load(opts.root, newRegistry())
			if err != nil {
				return err
			}
			hosts = state.HostNames()
		}
		if len(hosts) == 0 {
			return fmt.Errorf("no hosts: pass --host or declare host nodes in the specification")
		}

		ssh := exec.Command("ssh", hosts[0])
		ssh.Stdin = os.Stdin
		ssh.Stdout = os.Stdout
		ssh.Stderr = os.Stderr
		return ssh.Run()
	},
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kurtbuilds/cook/pkg/loader"
	"github.com/kurtbuilds/cook/pkg/transport"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Detect each host's platform and plan agent deployment",
	Long: `Connect to every target host, derive its target triple, and report
where the agent binary would be installed. Binary transfer itself is not
implemented yet; hosts keep being driven over shell+SFTP.`,
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

		installDir, _ := cmd.Flags().GetString("install-dir")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		failed := 0
		for _, host := range hosts {
			if err := planInstall(ctx, host, installDir); err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", host, err)
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d host(s) failed", failed, len(hosts))
		}
		return nil
	},
}

func planInstall(ctx context.Context, host, installDir string) error {
	t, err := transport.Connect(ctx, host)
	if err != nil {
		return err
	}
	defer t.Close()

	platform, err := t.Platform(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s: platform %s\n", host, platform.Triple())

	agentPath, err := t.ProbeAgent(ctx)
	if err != nil {
		return err
	}
	if agentPath != "" {
		fmt.Printf("%s: agent already installed at %s\n", host, agentPath)
		return nil
	}
	fmt.Printf("%s: would install cook-%s to %s (binary transfer not implemented)\n",
		host, platform.Triple(), installDir)
	return nil
}

func init() {
	installCmd.Flags().StringP("install-dir", "d", "/usr/local/bin", "Installation directory on remote hosts")
}

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kurtbuilds/cook/pkg/loader"
	"github.com/kurtbuilds/cook/pkg/log"
	"github.com/kurtbuilds/cook/pkg/resource"
	"github.com/kurtbuilds/cook/pkg/rule"
	"github.com/kurtbuilds/cook/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var loadErr *loader.LoadError
		if errors.As(err, &loadErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cook",
	Short: "Cook - declarative configuration management over SSH",
	Long: `Cook converges remote hosts against a declared desired state:
files with exact contents, installed packages, users, systemd services,
and executables on PATH. Desired state is read from Cookfile and *.kdl
documents; each host is diffed and corrected over a multiplexed SSH
connection with an SFTP sidechannel.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Cook version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	// Global flags; each has a COOK_* environment override.
	rootCmd.PersistentFlags().String("root", envOr("COOK_ROOT", "."), "Directory to scan for specification files")
	rootCmd.PersistentFlags().StringSliceP("host", "H", envHosts(), "Target host (repeatable; defaults to hosts declared in documents)")
	rootCmd.PersistentFlags().String("method", envOr("COOK_METHOD", string(types.MethodAuto)), "Execution method (auto, ssh, agent)")
	rootCmd.PersistentFlags().String("format", envOr("COOK_FORMAT", string(types.FormatHuman)), "Event output format (human, json)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	// Initialize logging before command execution
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sshCmd)
	rootCmd.AddCommand(installCmd)
}

func initLogging() {
	verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	log.Init(log.Config{
		Level:      level,
		JSONOutput: logJSON,
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envHosts() []string {
	v := os.Getenv("COOK_HOST")
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}

// newRegistry builds the keyword registry with every resource kind bound.
func newRegistry() *rule.Registry {
	reg := rule.NewRegistry()
	resource.RegisterAll(reg)
	return reg
}

// options are the resolved global settings for one command invocation.
// Precedence: flag > environment > .cook.yaml > built-in default.
type options struct {
	root   string
	hosts  []string
	method types.Method
	format types.Format
}

func gatherOptions(cmd *cobra.Command) (options, error) {
	flags := cmd.Flags()
	root, _ := flags.GetString("root")
	hosts, _ := flags.GetStringSlice("host")
	methodStr, _ := flags.GetString("method")
	formatStr, _ := flags.GetString("format")

	defaults, err := readDefaults(root)
	if err != nil {
		return options{}, err
	}
	if len(hosts) == 0 {
		hosts = defaults.Hosts
	}
	if !flags.Changed("method") && os.Getenv("COOK_METHOD") == "" && defaults.Method != "" {
		methodStr = defaults.Method
	}
	if !flags.Changed("format") && os.Getenv("COOK_FORMAT") == "" && defaults.Format != "" {
		formatStr = defaults.Format
	}

	method, err := types.ParseMethod(methodStr)
	if err != nil {
		return options{}, err
	}
	format, err := types.ParseFormat(formatStr)
	if err != nil {
		return options{}, err
	}
	return options{root: root, hosts: hosts, method: method, format: format}, nil
}

// resolveHosts prefers explicitly given hosts, then hosts declared in the
// loaded documents.
func resolveHosts(opts options, state *rule.State) ([]string, error) {
	if len(opts.hosts) > 0 {
		return opts.hosts, nil
	}
	declared := state.HostNames()
	if len(declared) == 0 {
		return nil, fmt.Errorf("no hosts: pass --host or declare host nodes in the specification")
	}
	return declared, nil
}

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var (
	configPath string
	outputJSON bool
	verbose    bool
	debugLog   bool
	logFormat  string
	noProgress bool
)

// Execute runs the root cobra command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ksinstall",
		Short:         "Install, update and run the kubescape scanner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to the configuration file (default <install dir>/ksinstall.yaml)")
	flags.BoolVar(&outputJSON, "json", false, "Output machine-readable JSON")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log progress messages")
	flags.BoolVar(&debugLog, "debug", false, "Log debug messages")
	flags.StringVar(&logFormat, "log-format", "", "Log format: text, json or logfmt")
	flags.BoolVar(&noProgress, "no-progress", false, "Disable interactive progress output")

	cmd.AddCommand(newInstallCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newFrameworksCmd())
	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDoctorCmd())

	return cmd
}

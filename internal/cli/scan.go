package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ksinstall/internal/paths"
	"ksinstall/internal/scan"
	"ksinstall/internal/store"
)

var (
	scanSet        []string
	scanFrameworks []string
	scanOutput     string
	scanNoHistory  bool
	scanKubeCtx    string
	scanKubeconfig string
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan manifests or a cluster with the active frameworks",
	}

	flags := cmd.PersistentFlags()
	flags.StringArrayVar(&scanSet, "set", nil, "Scanner flag override as name=value (repeatable)")
	flags.StringSliceVar(&scanFrameworks, "frameworks", nil, "Frameworks to scan with; overrides the config")
	flags.StringVarP(&scanOutput, "output", "o", "", "Write the report to a file instead of stdout")
	flags.BoolVar(&scanNoHistory, "no-history", false, "Do not record the scan in the history database")

	cmd.AddCommand(&cobra.Command{
		Use:   "file <path>",
		Short: "Scan a manifest file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, func(inv *scan.Invoker, overrides []scan.Flag) scan.Report {
				return inv.ScanFile(cmd.Context(), args[0], overrides)
			})
		},
	})

	clusterCmd := &cobra.Command{
		Use:   "cluster",
		Short: "Scan the cluster of a kubeconfig context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd, func(inv *scan.Invoker, overrides []scan.Flag) scan.Report {
				return inv.ScanCluster(cmd.Context(), scanKubeCtx, scanKubeconfig, overrides)
			})
		},
	}
	clusterCmd.Flags().StringVar(&scanKubeCtx, "context", "", "Kubeconfig context to scan")
	clusterCmd.Flags().StringVar(&scanKubeconfig, "kubeconfig", "", "Path to the kubeconfig file")
	cmd.AddCommand(clusterCmd)

	return cmd
}

type scanFunc func(inv *scan.Invoker, overrides []scan.Flag) scan.Report

func runScan(cmd *cobra.Command, do scanFunc) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	overrides, err := parseOverrides(scanSet)
	if err != nil {
		return err
	}
	if len(scanFrameworks) > 0 {
		a.cfg.ScanFrameworks = normalizeArgs(scanFrameworks)
	}

	m := a.newManager(nil)
	if !m.Setup(cmd.Context()) {
		return m.Err()
	}

	var history scan.Recorder
	if !scanNoHistory {
		if st := a.openHistory(); st != nil {
			defer st.Close()
			history = st
		}
	}

	inv, err := m.Invoker(history)
	if err != nil {
		return err
	}
	report := do(inv, overrides)

	if err := writeReport(cmd, report); err != nil {
		return err
	}
	if len(report) == 0 {
		return errors.New("scan produced no report; rerun with --debug for details")
	}
	if !outputJSON && scanOutput != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d controls evaluated, report written to %s\n", scan.ControlCount(report), scanOutput)
	}
	return nil
}

// parseOverrides reads --set values. "name=" with nothing after the equals
// sign is rejected; a bare "name" sets a boolean flag.
func parseOverrides(values []string) ([]scan.Flag, error) {
	out := make([]scan.Flag, 0, len(values))
	for _, v := range values {
		f := scan.ParseFlag(v)
		if f.Name == "" {
			continue
		}
		if strings.Contains(v, "=") && strings.TrimSpace(f.Value) == "" {
			return nil, fmt.Errorf("--set %s: empty value; use %q for a boolean flag", strings.TrimSpace(v), f.Name)
		}
		out = append(out, f)
	}
	return out, nil
}

func writeReport(cmd *cobra.Command, report scan.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if strings.TrimSpace(scanOutput) == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	if err := os.WriteFile(paths.Expand(scanOutput), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// openHistory returns nil when the history database is unavailable.
func (a *app) openHistory() *store.Store {
	dir, err := a.installDir()
	if err != nil {
		a.logger.Warn("history disabled", "err", err)
		return nil
	}
	st, err := store.Open(paths.HistoryFile(dir))
	if err != nil {
		a.logger.Warn("history disabled", "err", err)
		return nil
	}
	return st
}

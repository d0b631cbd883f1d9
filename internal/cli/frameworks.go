package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"ksinstall/internal/config"
	"ksinstall/internal/frameworks"
	"ksinstall/internal/tui"
)

var listAvailable bool

func newFrameworksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "frameworks",
		Aliases: []string{"fw"},
		Short:   "Inspect and download compliance frameworks",
	}

	cmd.AddCommand(newFrameworksListCmd())
	cmd.AddCommand(newFrameworksDownloadCmd())
	cmd.AddCommand(newFrameworksControlCmd())
	return cmd
}

func newFrameworksListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List frameworks on disk, or upstream with --available",
		Args:  cobra.NoArgs,
		RunE:  runFrameworksList,
	}
	cmd.Flags().BoolVar(&listAvailable, "available", false, "Ask the scanner which frameworks upstream offers")
	return cmd
}

type frameworkRow struct {
	Name      string `json:"name"`
	Installed bool   `json:"installed"`
	Active    bool   `json:"active"`
	Location  string `json:"location,omitempty"`
}

func runFrameworksList(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	catalog, _, err := a.onDiskCatalog()
	if err != nil {
		return err
	}

	names := catalog.Names()
	if listAvailable {
		m := a.newManager(nil)
		if !m.Setup(cmd.Context()) {
			return m.Err()
		}
		prov, err := m.Provisioner()
		if err != nil {
			return err
		}
		if names, err = prov.ListAvailable(cmd.Context()); err != nil {
			return err
		}
		if catalog, err = m.Catalog(); err != nil {
			return err
		}
	}

	rows := make([]frameworkRow, 0, len(names))
	for _, name := range names {
		row := frameworkRow{Name: name}
		if fw, ok := catalog.Get(name); ok {
			row.Installed = true
			row.Active = fw.IsInstalled
			row.Location = fw.Location
		}
		rows = append(rows, row)
	}

	if outputJSON {
		return writeJSON(cmd, rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "(no frameworks)")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tON DISK\tACTIVE\tLOCATION")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, yesNo(r.Installed), yesNo(r.Active), nonEmptyOrDash(r.Location))
	}
	return w.Flush()
}

func newFrameworksDownloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download [name...|all]",
		Short: "Download frameworks into the framework directory",
		RunE:  runFrameworksDownload,
	}
}

type downloadResult struct {
	Downloaded []string `json:"downloaded"`
	Failed     []string `json:"failed,omitempty"`
}

func runFrameworksDownload(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	m := a.newManager(nil)
	if !m.Setup(cmd.Context()) {
		return m.Err()
	}
	prov, err := m.Provisioner()
	if err != nil {
		return err
	}
	catalog, err := m.Catalog()
	if err != nil {
		return err
	}

	var (
		downloaded []frameworks.Framework
		dlErr      error
	)
	names := normalizeArgs(args)
	switch {
	case len(names) == 0 || config.ContainsAll(names):
		dlErr = a.console.Slow("Downloading all frameworks", func() error {
			downloaded, err = prov.DownloadAll(cmd.Context())
			return err
		})
	case tui.DetectMode(cmd.ErrOrStderr(), noProgress, outputJSON) == tui.ModeTUI:
		model := tui.NewFrameworkModel("Downloading frameworks", names)
		dlErr = tui.RunWithWork(cmd.Context(), cmd.ErrOrStderr(), model, func(ctx context.Context, send func(tea.Msg)) error {
			var err error
			downloaded, err = prov.DownloadSelected(ctx, names, tui.NewFrameworkReporter(send))
			return err
		})
	default:
		downloaded, dlErr = prov.DownloadSelected(cmd.Context(), names, logReporter{logger: a.logger})
	}
	catalog.Merge(downloaded)

	result := downloadResult{Failed: frameworks.FailedNames(dlErr)}
	for _, fw := range downloaded {
		result.Downloaded = append(result.Downloaded, fw.Name)
	}
	if outputJSON {
		if err := writeJSON(cmd, result); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "downloaded: %s\n", nonEmptyOrDash(strings.Join(result.Downloaded, ", ")))
	}
	if dlErr != nil {
		if len(result.Failed) > 0 {
			return fmt.Errorf("frameworks failed to download: %s", strings.Join(result.Failed, ", "))
		}
		return dlErr
	}
	return nil
}

// logReporter reports framework downloads as log lines.
type logReporter struct {
	logger *log.Logger
}

func (r logReporter) Start(name string) {
	r.logger.Info("downloading framework", "name", name)
}

func (r logReporter) Complete(name string, fw frameworks.Framework, err error) {
	if err != nil {
		r.logger.Error("framework download failed", "name", name, "err", err)
		return
	}
	r.logger.Info("framework downloaded", "name", name, "path", fw.Location)
}

func newFrameworksControlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "control <id>",
		Short: "Show a control's description and remediation from the local bundles",
		Args:  cobra.ExactArgs(1),
		RunE:  runFrameworksControl,
	}
}

func runFrameworksControl(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	catalog, dir, err := a.onDiskCatalog()
	if err != nil {
		return err
	}
	ctrl, ok := catalog.Control(args[0])
	if !ok {
		return fmt.Errorf("control %s not found in %s", args[0], dir)
	}
	if outputJSON {
		return writeJSON(cmd, ctrl)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s\n\n", ctrl.ID, ctrl.Name)
	fmt.Fprintf(out, "Description:\n  %s\n\n", nonEmptyOrDash(ctrl.Description))
	fmt.Fprintf(out, "Remediation:\n  %s\n", nonEmptyOrDash(ctrl.Remediation))
	return nil
}

func normalizeArgs(args []string) []string {
	var out []string
	seen := make(map[string]bool, len(args))
	for _, arg := range args {
		for _, name := range strings.Split(arg, ",") {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"ksinstall/internal/config"
	"ksinstall/internal/frameworks"
	"ksinstall/internal/paths"
	"ksinstall/internal/runner"
	"ksinstall/internal/tools"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check installation health",
		RunE:  runDoctor,
	}
}

type healthCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warning", "error"
	Summary string `json:"summary"`
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	var checks []healthCheck

	results := a.cfg.Validate()
	checks = append(checks, checkConfig(results))
	if config.HasErrors(results) {
		return writeDoctorResult(cmd, a.cfgPath, checks)
	}

	tp, err := paths.ResolveTool(a.cfg.InstallDir)
	if err != nil {
		checks = append(checks, healthCheck{Name: "Kubescape", Status: "error", Summary: err.Error()})
		return writeDoctorResult(cmd, a.cfgPath, checks)
	}

	det := &tools.Detector{Runner: runner.CmdRunner{}, Logger: a.printer()}
	checks = append(checks, checkBinary(ctx, det, tp.FullPath))
	checks = append(checks, checkManifest(tp.BaseDir))

	catalog, dir, err := a.onDiskCatalog()
	if err != nil {
		checks = append(checks, healthCheck{Name: "Frameworks", Status: "error", Summary: err.Error()})
	} else {
		checks = append(checks, checkFrameworks(a.cfg, catalog, dir))
	}

	checks = append(checks, checkRegistry(ctx, a.releaseClient()))
	return writeDoctorResult(cmd, a.cfgPath, checks)
}

func checkConfig(results []config.ValidationResult) healthCheck {
	if len(results) == 0 {
		return healthCheck{Name: "Config", Status: "ok", Summary: "valid"}
	}
	var msgs []string
	for _, r := range results {
		msgs = append(msgs, r.Message)
	}
	status := "warning"
	if config.HasErrors(results) {
		status = "error"
	}
	return healthCheck{Name: "Config", Status: status, Summary: joinComma(msgs)}
}

func checkBinary(ctx context.Context, det *tools.Detector, path string) healthCheck {
	if !det.IsInstalled(ctx, path) {
		return healthCheck{Name: "Kubescape", Status: "error", Summary: "not installed at " + path + "; run ksinstall install"}
	}
	version, _, err := det.ReadVersion(ctx, path)
	if err != nil {
		return healthCheck{Name: "Kubescape", Status: "error", Summary: err.Error()}
	}
	if version == tools.UnknownVersion {
		return healthCheck{Name: "Kubescape", Status: "warning", Summary: "installed but reports no version"}
	}
	protocol := "legacy output"
	if tools.UsesJSONOutput(version) {
		protocol = "json output"
	}
	return healthCheck{Name: "Kubescape", Status: "ok", Summary: joinComma([]string{version, protocol})}
}

func checkManifest(installDir string) healthCheck {
	m, ok, err := tools.LoadManifest(installDir)
	switch {
	case err != nil:
		return healthCheck{Name: "Manifest", Status: "error", Summary: err.Error()}
	case !ok:
		return healthCheck{Name: "Manifest", Status: "warning", Summary: "no install recorded; binary was not installed by ksinstall"}
	}
	match, err := m.VerifyChecksum()
	if err != nil {
		return healthCheck{Name: "Manifest", Status: "error", Summary: err.Error()}
	}
	if !match {
		return healthCheck{Name: "Manifest", Status: "error", Summary: "binary checksum differs from the recorded install"}
	}
	return healthCheck{Name: "Manifest", Status: "ok", Summary: fmt.Sprintf("%s installed %s", m.Version, m.InstalledAt)}
}

func checkFrameworks(cfg config.Config, catalog *frameworks.Catalog, dir string) healthCheck {
	if catalog.Len() == 0 {
		return healthCheck{Name: "Frameworks", Status: "warning", Summary: "none found in " + dir}
	}
	summary := fmt.Sprintf("%d on disk, %d active", catalog.Len(), len(catalog.Active()))
	if !cfg.RequiresAll() {
		if missing := catalog.Missing(cfg.RequiredFrameworks); len(missing) > 0 {
			return healthCheck{Name: "Frameworks", Status: "warning", Summary: summary + "; missing " + strings.Join(missing, ", ")}
		}
	}
	return healthCheck{Name: "Frameworks", Status: "ok", Summary: summary}
}

func checkRegistry(ctx context.Context, releases tools.LatestTagger) healthCheck {
	tag, err := releases.LatestTag(ctx)
	if err != nil {
		return healthCheck{Name: "Registry", Status: "warning", Summary: "unreachable: " + err.Error()}
	}
	return healthCheck{Name: "Registry", Status: "ok", Summary: "latest " + tag}
}

func writeDoctorResult(cmd *cobra.Command, cfgPath string, checks []healthCheck) error {
	if outputJSON {
		return writeJSON(cmd, checks)
	}

	bold := lipgloss.NewStyle().Bold(true).Inline(true)
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Inline(true)
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Inline(true)
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Inline(true)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, bold.Render("INSTALL HEALTH:")+" "+cfgPath)

	for _, c := range checks {
		var statusStr string
		switch c.Status {
		case "ok":
			statusStr = green.Render("OK")
		case "warning":
			statusStr = yellow.Render("WARN")
		case "error":
			statusStr = red.Render("ERROR")
		}
		fmt.Fprintf(out, "  %-12s %s    %s\n", c.Name+":", statusStr, c.Summary)
	}
	return nil
}

func joinComma(items []string) string {
	return strings.Join(items, ", ")
}

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ksinstall/internal/config"
	"ksinstall/internal/frameworks"
	"ksinstall/internal/manager"
	"ksinstall/internal/paths"
	"ksinstall/internal/tools"
)

var (
	installVersion string
	installForce   bool
)

func newInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install or update kubescape and the required frameworks",
		Args:  cobra.NoArgs,
		RunE:  runInstall,
	}

	cmd.Flags().StringVar(&installVersion, "version", "", "Version to install (latest or vX.Y.Z); overrides the config")
	cmd.Flags().BoolVar(&installForce, "force", false, "Remove the current binary before installing")
	return cmd
}

type installSummary struct {
	Path       string   `json:"path"`
	Version    string   `json:"version"`
	IsLatest   bool     `json:"is_latest"`
	Installed  bool     `json:"installed"`
	Frameworks []string `json:"frameworks"`
	Active     []string `json:"active"`
	Failed     []string `json:"failed,omitempty"`
}

func runInstall(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if strings.TrimSpace(installVersion) != "" {
		a.cfg.Version = installVersion
		a.cfg.ApplyDefaults()
	}
	if installForce {
		if err := removeInstall(a.cfg); err != nil {
			return err
		}
	}

	m := a.newManager(nil)
	if !m.Setup(cmd.Context()) {
		return m.Err()
	}

	summary, err := summarize(m)
	if err != nil {
		return err
	}
	if outputJSON {
		return writeJSON(cmd, summary)
	}

	out := cmd.OutOrStdout()
	status := "up to date"
	if summary.Installed {
		status = "installed"
	}
	fmt.Fprintf(out, "kubescape %s %s at %s\n", summary.Version, status, summary.Path)
	fmt.Fprintf(out, "frameworks: %s\n", nonEmptyOrDash(strings.Join(summary.Frameworks, ", ")))
	fmt.Fprintf(out, "active:     %s\n", nonEmptyOrDash(strings.Join(summary.Active, ", ")))
	if len(summary.Failed) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: frameworks failed to download: %s\n", strings.Join(summary.Failed, ", "))
	}
	return nil
}

func summarize(m *manager.Manager) (installSummary, error) {
	tp, err := m.ToolPath()
	if err != nil {
		return installSummary{}, err
	}
	version, err := m.Version()
	if err != nil {
		return installSummary{}, err
	}
	installed, err := m.Installed()
	if err != nil {
		return installSummary{}, err
	}
	catalog, err := m.Catalog()
	if err != nil {
		return installSummary{}, err
	}
	return installSummary{
		Path:       tp.FullPath,
		Version:    version.Version,
		IsLatest:   version.IsLatest,
		Installed:  installed,
		Frameworks: catalog.Names(),
		Active:     catalog.Active(),
		Failed:     frameworks.FailedNames(m.ProvisionErr()),
	}, nil
}

// removeInstall deletes the binary and its manifest so the next setup
// downloads again.
func removeInstall(cfg config.Config) error {
	tp, err := paths.ResolveTool(cfg.InstallDir)
	if err != nil {
		return err
	}
	for _, path := range []string{tp.FullPath, tools.ManifestPath(tp.BaseDir)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}
	return nil
}

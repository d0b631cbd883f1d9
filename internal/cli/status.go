package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ksinstall/internal/frameworks"
	"ksinstall/internal/paths"
	"ksinstall/internal/runner"
	"ksinstall/internal/tools"
)

var statusOffline bool

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the installed kubescape and frameworks without changing anything",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
	cmd.Flags().BoolVar(&statusOffline, "offline", false, "Skip the latest release lookup")
	return cmd
}

type statusReport struct {
	Path        string          `json:"path"`
	Installed   bool            `json:"installed"`
	Version     string          `json:"version,omitempty"`
	Requested   string          `json:"requested"`
	LatestTag   string          `json:"latest_tag,omitempty"`
	NeedsUpdate bool            `json:"needs_update"`
	Manifest    *tools.Manifest `json:"manifest,omitempty"`
	ChecksumOK  *bool           `json:"checksum_ok,omitempty"`
	Protocol    string          `json:"protocol,omitempty"`
	Frameworks  []string        `json:"frameworks"`
	Active      []string        `json:"active"`
	Missing     []string        `json:"missing,omitempty"`
	// Bundles carries the on-disk location of each cataloged framework.
	Bundles []frameworks.Framework `json:"bundles"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := collectStatus(cmd, a)
	if err != nil {
		return err
	}
	if outputJSON {
		return writeJSON(cmd, report)
	}
	writeStatusTable(cmd, report)
	return nil
}

func collectStatus(cmd *cobra.Command, a *app) (statusReport, error) {
	tp, err := paths.ResolveTool(a.cfg.InstallDir)
	if err != nil {
		return statusReport{}, err
	}

	det := &tools.Detector{Runner: runner.CmdRunner{}, Logger: a.printer()}
	if !statusOffline {
		det.Releases = a.releaseClient()
	}
	rec, err := det.Reconcile(cmd.Context(), tp.FullPath, a.cfg.Version)
	if err != nil {
		return statusReport{}, err
	}

	report := statusReport{
		Path:        tp.FullPath,
		Installed:   rec.Installed,
		Requested:   a.cfg.Version,
		LatestTag:   rec.LatestTag,
		NeedsUpdate: rec.NeedsUpdate,
	}
	if rec.Installed {
		report.Version = rec.Current.Version
		if tools.UsesJSONOutput(rec.Current.Version) {
			report.Protocol = "json"
		} else {
			report.Protocol = "legacy"
		}
	}

	if manifest, ok, err := tools.LoadManifest(tp.BaseDir); err != nil {
		a.logger.Warn("manifest unreadable", "err", err)
	} else if ok {
		report.Manifest = &manifest
		if match, err := manifest.VerifyChecksum(); err == nil {
			report.ChecksumOK = &match
		}
	}

	catalog, _, err := a.onDiskCatalog()
	if err != nil {
		return statusReport{}, err
	}
	report.Frameworks = catalog.Names()
	report.Active = catalog.Active()
	report.Bundles = catalog.Frameworks()
	if !a.cfg.RequiresAll() {
		report.Missing = catalog.Missing(a.cfg.RequiredFrameworks)
	}
	return report, nil
}

func writeStatusTable(cmd *cobra.Command, r statusReport) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintf(w, "Path:\t%s\n", r.Path)
	fmt.Fprintf(w, "Installed:\t%t\n", r.Installed)
	fmt.Fprintf(w, "Version:\t%s\n", nonEmptyOrDash(r.Version))
	fmt.Fprintf(w, "Requested:\t%s\n", r.Requested)
	fmt.Fprintf(w, "Latest:\t%s\n", nonEmptyOrDash(r.LatestTag))
	fmt.Fprintf(w, "Needs update:\t%t\n", r.NeedsUpdate)
	fmt.Fprintf(w, "Output protocol:\t%s\n", nonEmptyOrDash(r.Protocol))
	if r.ChecksumOK != nil {
		fmt.Fprintf(w, "Checksum:\t%s\n", map[bool]string{true: "ok", false: "MISMATCH"}[*r.ChecksumOK])
	}
	fmt.Fprintf(w, "Frameworks:\t%s\n", nonEmptyOrDash(strings.Join(r.Frameworks, ", ")))
	fmt.Fprintf(w, "Active:\t%s\n", nonEmptyOrDash(strings.Join(r.Active, ", ")))
	if len(r.Missing) > 0 {
		fmt.Fprintf(w, "Missing:\t%s\n", strings.Join(r.Missing, ", "))
	}
	w.Flush()
}

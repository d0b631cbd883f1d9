package cli

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"ksinstall/internal/config"
	"ksinstall/internal/frameworks"
	"ksinstall/internal/logx"
	"ksinstall/internal/manager"
	"ksinstall/internal/paths"
	"ksinstall/internal/runner"
	"ksinstall/internal/tools"
	"ksinstall/internal/tui"
	"ksinstall/internal/ui"
)

// app bundles the per-invocation configuration, logger and console.
type app struct {
	cfg     config.Config
	cfgPath string
	logger  *log.Logger
	console *ui.Console
	logFile *os.File
	errOut  io.Writer
}

func loadApp(cmd *cobra.Command) (*app, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	applyLogFlags(&cfg)

	a := &app{cfg: cfg, cfgPath: path, errOut: cmd.ErrOrStderr()}
	w := a.errOut
	if cfg.Log.FileEnabled() {
		if dir, err := paths.ResolveDir(cfg.InstallDir); err == nil {
			if f, _, err := logx.NewFile(paths.LogsDir(dir)); err == nil {
				a.logFile = f
				w = logx.Tee(w, f)
			}
		}
	}
	a.logger = logx.Setup(w, logx.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	interactive := tui.DetectMode(a.errOut, noProgress, outputJSON) == tui.ModeTUI
	a.console = ui.NewConsole(a.logger, a.errOut, interactive)
	return a, nil
}

func (a *app) Close() {
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

func resolveConfigPath() (string, error) {
	if strings.TrimSpace(configPath) != "" {
		return paths.Expand(configPath), nil
	}
	dir, err := paths.DefaultInstallDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, config.FileName), nil
}

func applyLogFlags(cfg *config.Config) {
	switch {
	case debugLog:
		cfg.Log.Level = "debug"
	case verbose:
		cfg.Log.Level = "info"
	}
	if strings.TrimSpace(logFormat) != "" {
		cfg.Log.Format = logFormat
	}
}

func (a *app) printer() logx.Printer {
	return logx.DebugPrinter(a.logger)
}

func (a *app) installDir() (string, error) {
	return paths.ResolveDir(a.cfg.InstallDir)
}

// releaseClient returns the registry client with its on-disk cache.
func (a *app) releaseClient() *tools.ReleaseClient {
	client := tools.NewReleaseClient(a.cfg.GitHub.APIURL, a.cfg.GitHub.Repo, tools.ResolveToken(a.cfg.GitHub.TokenEnv))
	if dir, err := a.installDir(); err == nil {
		client.Cache = tools.NewReleaseCache(dir, a.cfg.GitHub.Repo, a.cfg.ReleaseCacheTTL)
	}
	return client
}

func (a *app) newManager(reporter frameworks.Reporter) *manager.Manager {
	printer := a.printer()
	return manager.New(manager.Options{
		Config:     a.cfg,
		Runner:     runner.CmdRunner{},
		UI:         a.console,
		Logger:     printer,
		Releases:   a.releaseClient(),
		Downloader: tools.NewDownloader(nil, logx.ErrorPrinter(a.logger)),
		Reporter:   reporter,
	})
}

// onDiskCatalog reads the framework bundles without touching the scanner.
func (a *app) onDiskCatalog() (*frameworks.Catalog, string, error) {
	dir, err := paths.FrameworkDir(a.cfg.InstallDir, a.cfg.FrameworksDir)
	if err != nil {
		return nil, "", err
	}
	found, err := frameworks.ScanDir(dir)
	if err != nil {
		return nil, dir, err
	}
	catalog := frameworks.NewCatalog()
	catalog.Merge(found)
	catalog.Activate(a.cfg.ScanFrameworks)
	return catalog, dir, nil
}

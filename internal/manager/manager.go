// Package manager sequences path resolution, version reconciliation,
// installation and framework provisioning into one idempotent setup.
package manager

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"ksinstall/internal/config"
	"ksinstall/internal/frameworks"
	"ksinstall/internal/paths"
	"ksinstall/internal/protocol"
	"ksinstall/internal/runner"
	"ksinstall/internal/scan"
	"ksinstall/internal/tools"
	"ksinstall/internal/ui"
)

// Logger is the logging surface of the manager.
type Logger interface {
	Printf(format string, v ...any)
}

type noopLogger struct{}

func (noopLogger) Printf(string, ...any) {}

// ReleaseSource answers latest-release queries.
type ReleaseSource interface {
	LatestTag(ctx context.Context) (string, error)
	LatestDownloadBase(ctx context.Context) (string, error)
}

// Downloader fetches the scanner binary. An empty result means failure.
type Downloader interface {
	Download(ctx context.Context, url, targetDir, fileName string, progress func(tools.Progress), makeExecutable bool) string
}

// Options wires a Manager. Zero fields get production defaults.
type Options struct {
	Config     config.Config
	Runner     runner.Runner
	UI         ui.UI
	Logger     Logger
	Releases   ReleaseSource
	Downloader Downloader
	// Reporter receives selective framework download progress.
	Reporter frameworks.Reporter

	GOOS   string
	GOARCH string
}

// Manager owns the installed scanner state. Setup runs at most once
// successfully; accessors fail with tools.ErrNotInstalled until then.
type Manager struct {
	mu    sync.Mutex
	state State
	err   error

	cfg        config.Config
	runner     runner.Runner
	ui         ui.UI
	logger     Logger
	releases   ReleaseSource
	downloader Downloader
	reporter   frameworks.Reporter
	goos       string
	goarch     string

	toolPath     paths.ToolPath
	version      tools.InstalledVersion
	parser       protocol.Parser
	frameworkDir string
	catalog      *frameworks.Catalog
	provisionErr error
	installed    bool
}

// New builds a Manager in the Uninitialized state.
func New(opts Options) *Manager {
	m := &Manager{
		cfg:        opts.Config,
		runner:     opts.Runner,
		ui:         opts.UI,
		logger:     opts.Logger,
		releases:   opts.Releases,
		downloader: opts.Downloader,
		reporter:   opts.Reporter,
		goos:       opts.GOOS,
		goarch:     opts.GOARCH,
	}
	if m.runner == nil {
		m.runner = runner.CmdRunner{}
	}
	if m.ui == nil {
		m.ui = ui.Discard{}
	}
	if m.logger == nil {
		m.logger = noopLogger{}
	}
	if m.releases == nil {
		m.releases = tools.NewReleaseClient(m.cfg.GitHub.APIURL, m.cfg.GitHub.Repo, "")
	}
	if m.downloader == nil {
		m.downloader = tools.NewDownloader(nil, m.logger)
	}
	if m.goos == "" {
		m.goos = runtime.GOOS
	}
	if m.goarch == "" {
		m.goarch = runtime.GOARCH
	}
	return m
}

// Setup brings the scanner and its frameworks to a usable state. It
// returns true once ready; later calls return true without side effects.
// On failure the error is kept in Err and a later call retries.
func (m *Manager) Setup(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Ready {
		return true
	}
	m.state = Initializing
	if err := m.setup(ctx); err != nil {
		m.state = Failed
		m.err = err
		m.ui.Error(fmt.Sprintf("kubescape setup failed: %v", err))
		return false
	}
	m.state = Ready
	m.err = nil
	return true
}

func (m *Manager) setup(ctx context.Context) error {
	tp, err := paths.ResolveTool(m.cfg.InstallDir)
	if err != nil {
		return fmt.Errorf("resolve install path: %w", err)
	}
	m.ui.Debug(fmt.Sprintf("kubescape path: %s", tp.FullPath))

	detector := &tools.Detector{Runner: m.runner, Releases: m.releases, Logger: m.logger}
	rec, err := detector.Reconcile(ctx, tp.FullPath, m.cfg.Version)
	if err != nil {
		return err
	}
	if rec.Installed && rec.LatestTag == "" && m.cfg.WantsLatest() {
		m.ui.Info("could not reach the release registry; keeping the installed kubescape")
	}

	version := rec.Current
	m.installed = false
	if rec.NeedsUpdate {
		if rec.Installed {
			m.ui.Info(fmt.Sprintf("updating kubescape %s to %s", rec.Current.Version, m.requestedLabel(rec)))
		} else {
			m.ui.Info(fmt.Sprintf("installing kubescape %s", m.requestedLabel(rec)))
		}
		if err := m.install(ctx, tp); err != nil {
			return err
		}
		m.installed = true
		version, err = detector.Detect(ctx, tp.FullPath, m.cfg.Version)
		if err != nil {
			return fmt.Errorf("verify installed kubescape: %w", err)
		}
	}

	parser := protocol.ForVersion(version.Version)
	m.logger.Printf("kubescape %s uses %s output", version.Version, parser.Name())

	fwDir, err := paths.FrameworkDir(m.cfg.InstallDir, m.cfg.FrameworksDir)
	if err != nil {
		return fmt.Errorf("resolve framework dir: %w", err)
	}

	m.toolPath = tp
	m.version = version
	m.parser = parser
	m.frameworkDir = fwDir
	m.catalog, m.provisionErr = m.provision(ctx, tp, fwDir, parser)
	return nil
}

func (m *Manager) requestedLabel(rec tools.Reconciliation) string {
	if m.cfg.WantsLatest() && rec.LatestTag != "" {
		return rec.LatestTag
	}
	return m.cfg.Version
}

// install downloads the platform asset into the tool path under the
// install lock and records the manifest.
func (m *Manager) install(ctx context.Context, tp paths.ToolPath) error {
	asset, err := tools.AssetName(m.goos, m.goarch)
	if err != nil {
		return err
	}

	var base string
	if m.cfg.WantsLatest() {
		base, err = m.releases.LatestDownloadBase(ctx)
		if err != nil {
			return fmt.Errorf("resolve latest release: %w", err)
		}
	} else {
		base = tools.VersionDownloadBase(m.cfg.GitHub.APIURL, m.cfg.GitHub.Repo, m.cfg.Version)
	}
	url := tools.AssetURL(base, asset)

	unlock, err := tools.AcquireInstallLock(ctx, tp.BaseDir)
	if err != nil {
		return err
	}
	defer unlock()

	var dest string
	err = m.ui.Progress(ctx, "Downloading kubescape", true, func(ctx context.Context, report func(tools.Progress)) error {
		dest = m.downloader.Download(ctx, url, tp.BaseDir, filepath.Base(tp.FullPath), report, true)
		if dest == "" {
			return tools.ErrDownloadFailed
		}
		return nil
	})
	if err != nil {
		m.ui.ShowHelpLink("Install kubescape manually", tools.InstallDocsURL)
		for _, hint := range tools.InstallHints() {
			m.ui.Info(hint)
		}
		return fmt.Errorf("install kubescape from %s: %w", url, err)
	}

	version := m.cfg.Version
	if m.cfg.WantsLatest() {
		version = tools.ExtractVersion(base)
	}
	manifest, err := tools.NewManifest(version, dest, asset)
	if err == nil {
		err = tools.SaveManifest(tp.BaseDir, manifest)
	}
	if err != nil {
		m.logger.Printf("write install manifest: %v", err)
	}
	return nil
}

// provision builds the catalog from disk, then downloads what is missing.
// Download failures are reported and returned but never abort setup.
func (m *Manager) provision(ctx context.Context, tp paths.ToolPath, fwDir string, parser protocol.Parser) (*frameworks.Catalog, error) {
	catalog := frameworks.NewCatalog()
	onDisk, err := frameworks.ScanDir(fwDir)
	if err != nil {
		m.logger.Printf("scan framework dir: %v", err)
	}
	catalog.Merge(onDisk)
	m.ui.Debug(fmt.Sprintf("found %d frameworks in %s", len(onDisk), fwDir))

	prov := &frameworks.Provisioner{
		Runner:      m.runner,
		Binary:      tp.FullPath,
		Dir:         fwDir,
		Parser:      parser,
		Concurrency: m.cfg.DownloadConcurrency,
		Logger:      m.logger,
	}

	var provisionErr error
	if m.cfg.RequiresAll() {
		provisionErr = m.provisionAll(ctx, prov, catalog)
	} else if missing := catalog.Missing(m.cfg.RequiredFrameworks); len(missing) > 0 {
		m.ui.Info(fmt.Sprintf("downloading frameworks: %s", strings.Join(missing, ", ")))
		downloaded, err := prov.DownloadSelected(ctx, missing, m.reporter)
		catalog.Merge(downloaded)
		if err != nil {
			m.ui.Error(fmt.Sprintf("failed to download frameworks: %s", strings.Join(frameworks.FailedNames(err), ", ")))
			provisionErr = err
		}
	}

	if unknown := catalog.Activate(m.cfg.ScanFrameworks); len(unknown) > 0 {
		m.ui.Error(fmt.Sprintf("scan frameworks not available: %s", strings.Join(unknown, ", ")))
	}
	return catalog, provisionErr
}

func (m *Manager) provisionAll(ctx context.Context, prov *frameworks.Provisioner, catalog *frameworks.Catalog) error {
	var available []string
	listErr := m.ui.Slow("Listing available frameworks", func() error {
		var err error
		available, err = prov.ListAvailable(ctx)
		return err
	})
	if listErr != nil {
		m.logger.Printf("list frameworks: %v", listErr)
	} else if len(catalog.Missing(available)) == 0 {
		return nil
	}

	var downloaded []frameworks.Framework
	err := m.ui.Slow("Downloading all frameworks", func() error {
		var err error
		downloaded, err = prov.DownloadAll(ctx)
		return err
	})
	if err != nil {
		m.ui.Error(fmt.Sprintf("bulk framework download failed: %v", err))
		return err
	}
	catalog.Merge(downloaded)
	return nil
}

// State reports the lifecycle position.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the error of the last failed Setup.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Manager) ready() error {
	if m.state != Ready {
		return tools.ErrNotInstalled
	}
	return nil
}

// ToolPath returns the resolved scanner location.
func (m *Manager) ToolPath() (paths.ToolPath, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(); err != nil {
		return paths.ToolPath{}, err
	}
	return m.toolPath, nil
}

// Version returns the detected scanner version.
func (m *Manager) Version() (tools.InstalledVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(); err != nil {
		return tools.InstalledVersion{}, err
	}
	return m.version, nil
}

// Installed reports whether the last Setup downloaded the binary.
func (m *Manager) Installed() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(); err != nil {
		return false, err
	}
	return m.installed, nil
}

// Catalog returns the framework catalog.
func (m *Manager) Catalog() (*frameworks.Catalog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(); err != nil {
		return nil, err
	}
	return m.catalog, nil
}

// FrameworkDir returns the directory holding framework bundles.
func (m *Manager) FrameworkDir() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(); err != nil {
		return "", err
	}
	return m.frameworkDir, nil
}

// ProvisionErr returns framework download failures from the last Setup.
func (m *Manager) ProvisionErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.provisionErr
}

// Provisioner returns a framework provisioner bound to the installed scanner.
func (m *Manager) Provisioner() (*frameworks.Provisioner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(); err != nil {
		return nil, err
	}
	return &frameworks.Provisioner{
		Runner:      m.runner,
		Binary:      m.toolPath.FullPath,
		Dir:         m.frameworkDir,
		Parser:      m.parser,
		Concurrency: m.cfg.DownloadConcurrency,
		Logger:      m.logger,
	}, nil
}

// Invoker returns a scan invoker using the active frameworks. history may
// be nil.
func (m *Manager) Invoker(history scan.Recorder) (*scan.Invoker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(); err != nil {
		return nil, err
	}
	return &scan.Invoker{
		Runner:       m.runner,
		Binary:       m.toolPath.FullPath,
		FrameworkDir: m.frameworkDir,
		Catalog:      m.catalog,
		Parser:       m.parser,
		Logger:       m.logger,
		Errors:       m.ui,
		History:      history,
	}, nil
}

// ScanFile scans a manifest file with the active frameworks.
func (m *Manager) ScanFile(ctx context.Context, path string, overrides []scan.Flag) (scan.Report, error) {
	inv, err := m.Invoker(nil)
	if err != nil {
		return nil, err
	}
	return inv.ScanFile(ctx, path, overrides), nil
}

// ScanCluster scans a live cluster with the active frameworks.
func (m *Manager) ScanCluster(ctx context.Context, kubeContext, kubeconfig string, overrides []scan.Flag) (scan.Report, error) {
	inv, err := m.Invoker(nil)
	if err != nil {
		return nil, err
	}
	return inv.ScanCluster(ctx, kubeContext, kubeconfig, overrides), nil
}

// IsNotInstalled reports whether err means setup has not completed.
func IsNotInstalled(err error) bool {
	return errors.Is(err, tools.ErrNotInstalled)
}

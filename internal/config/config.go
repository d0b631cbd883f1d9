package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ksinstall/internal/paths"
)

const (
	// LatestVersion requests whatever release upstream currently marks latest.
	LatestVersion = "latest"
	// AllFrameworks selects every framework for download or scanning.
	AllFrameworks = "all"

	// FileName is the default configuration file name inside the install dir.
	FileName = "ksinstall.yaml"

	EnvVersion = "KSINSTALL_VERSION"
)

// Config captures the setup and scan configuration for the managed scanner.
type Config struct {
	Version             string        `yaml:"version"`
	InstallDir          string        `yaml:"install_dir,omitempty"`
	FrameworksDir       string        `yaml:"frameworks_dir,omitempty"`
	RequiredFrameworks  []string      `yaml:"required_frameworks,omitempty"`
	ScanFrameworks      []string      `yaml:"scan_frameworks,omitempty"`
	DownloadConcurrency int           `yaml:"download_concurrency,omitempty"`
	ReleaseCacheTTL     time.Duration `yaml:"release_cache_ttl,omitempty"`
	GitHub              GitHubConfig  `yaml:"github"`
	Log                 LogConfig     `yaml:"log"`
}

// GitHubConfig points the release fetcher at the upstream registry.
type GitHubConfig struct {
	APIURL   string `yaml:"api_url,omitempty"`
	Repo     string `yaml:"repo,omitempty"`
	TokenEnv string `yaml:"token_env,omitempty"`
}

// LogConfig controls logger level, format and the optional per-run file.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
	File   *bool  `yaml:"file,omitempty"`
}

// FileEnabled returns the effective per-run log file flag.
func (l LogConfig) FileEnabled() bool {
	if l.File == nil {
		return false
	}
	return *l.File
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Version:             LatestVersion,
		InstallDir:          "~/.kubescape",
		ScanFrameworks:      []string{AllFrameworks},
		DownloadConcurrency: 4,
		ReleaseCacheTTL:     time.Hour,
		GitHub: GitHubConfig{
			APIURL:   "https://api.github.com",
			Repo:     "kubescape/kubescape",
			TokenEnv: "GITHUB_TOKEN",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
			File:   boolPtr(false),
		},
	}
}

// Load reads the YAML configuration from disk if it exists, otherwise returns
// the default configuration. Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		contents, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(contents, &cfg); err != nil {
				return Config{}, fmt.Errorf("unmarshal config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg.ApplyEnv()
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyEnv lets KSINSTALL_VERSION and KSINSTALL_DIR override the file.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvVersion)); v != "" {
		c.Version = v
	}
	if v := strings.TrimSpace(os.Getenv(paths.EnvInstallDir)); v != "" {
		c.InstallDir = v
	}
}

// ApplyDefaults ensures fields fall back to sensible defaults when the YAML
// omits them, and normalizes framework names to lower case.
func (c *Config) ApplyDefaults() {
	defaults := Default()

	c.Version = strings.TrimSpace(c.Version)
	if c.Version == "" {
		c.Version = defaults.Version
	}
	if strings.EqualFold(c.Version, LatestVersion) {
		c.Version = LatestVersion
	}
	if strings.TrimSpace(c.InstallDir) == "" {
		c.InstallDir = defaults.InstallDir
	}
	if c.DownloadConcurrency <= 0 {
		c.DownloadConcurrency = defaults.DownloadConcurrency
	}
	if c.ReleaseCacheTTL < 0 {
		c.ReleaseCacheTTL = 0
	}
	if c.GitHub.APIURL == "" {
		c.GitHub.APIURL = defaults.GitHub.APIURL
	}
	if c.GitHub.Repo == "" {
		c.GitHub.Repo = defaults.GitHub.Repo
	}
	if c.GitHub.TokenEnv == "" {
		c.GitHub.TokenEnv = defaults.GitHub.TokenEnv
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.Log.File == nil {
		c.Log.File = defaults.Log.File
	}

	c.RequiredFrameworks = normalizeNames(c.RequiredFrameworks)
	c.ScanFrameworks = normalizeNames(c.ScanFrameworks)
}

// WantsLatest reports whether the configured version is the latest sentinel.
func (c Config) WantsLatest() bool {
	return c.Version == LatestVersion
}

// RequiresAll reports whether every upstream framework must be provisioned.
func (c Config) RequiresAll() bool {
	return ContainsAll(c.RequiredFrameworks)
}

// ContainsAll reports whether names holds the "all" sentinel.
func ContainsAll(names []string) bool {
	for _, name := range names {
		if strings.EqualFold(strings.TrimSpace(name), AllFrameworks) {
			return true
		}
	}
	return false
}

// Marshal returns the YAML encoding of the configuration.
func (c Config) Marshal() ([]byte, error) {
	buf, err := yaml.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf, nil
}

func normalizeNames(names []string) []string {
	if len(names) == 0 {
		return names
	}
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func boolPtr(v bool) *bool {
	return &v
}

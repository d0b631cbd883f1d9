package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv(EnvVersion, "")
	t.Setenv("KSINSTALL_DIR", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.WantsLatest() {
		t.Fatalf("expected latest version, got %q", cfg.Version)
	}
	if cfg.InstallDir != "~/.kubescape" {
		t.Fatalf("unexpected install dir %q", cfg.InstallDir)
	}
	if len(cfg.ScanFrameworks) != 1 || cfg.ScanFrameworks[0] != AllFrameworks {
		t.Fatalf("expected scan frameworks [all], got %v", cfg.ScanFrameworks)
	}
	if cfg.ReleaseCacheTTL != time.Hour {
		t.Fatalf("expected 1h release cache ttl, got %s", cfg.ReleaseCacheTTL)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	t.Setenv(EnvVersion, "")
	t.Setenv("KSINSTALL_DIR", "")

	path := filepath.Join(t.TempDir(), FileName)
	data := `version: v2.0.150
install_dir: /opt/kubescape
frameworks_dir: $HOME/frameworks
required_frameworks: [NSA, mitre, nsa]
scan_frameworks: [nsa]
release_cache_ttl: 10m
log:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Version != "v2.0.150" || cfg.WantsLatest() {
		t.Fatalf("unexpected version %q", cfg.Version)
	}
	if got := cfg.RequiredFrameworks; len(got) != 2 || got[0] != "nsa" || got[1] != "mitre" {
		t.Fatalf("expected normalized required frameworks, got %v", got)
	}
	if cfg.ReleaseCacheTTL != 10*time.Minute {
		t.Fatalf("expected 10m ttl, got %s", cfg.ReleaseCacheTTL)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "debug" {
		t.Fatalf("unexpected log config %+v", cfg.Log)
	}
	if cfg.GitHub.Repo != "kubescape/kubescape" {
		t.Fatalf("expected default repo, got %q", cfg.GitHub.Repo)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("version: [unterminated"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected unmarshal error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvVersion, "v3.0.1")
	t.Setenv("KSINSTALL_DIR", "/srv/ks")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Version != "v3.0.1" {
		t.Fatalf("expected env version, got %q", cfg.Version)
	}
	if cfg.InstallDir != "/srv/ks" {
		t.Fatalf("expected env install dir, got %q", cfg.InstallDir)
	}
}

func TestLatestSentinelCaseInsensitive(t *testing.T) {
	cfg := Config{Version: "LATEST"}
	cfg.ApplyDefaults()
	if !cfg.WantsLatest() {
		t.Fatalf("expected LATEST to normalize, got %q", cfg.Version)
	}
}

func TestContainsAll(t *testing.T) {
	if !ContainsAll([]string{"nsa", "All"}) {
		t.Fatal("expected All to match sentinel")
	}
	if ContainsAll([]string{"nsa"}) {
		t.Fatal("unexpected sentinel match")
	}
	if ContainsAll(nil) {
		t.Fatal("nil list should not contain sentinel")
	}
}

func TestMarshalRoundTripKeepsVersion(t *testing.T) {
	cfg := Default()
	cfg.Version = "v2.1.0"
	data, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(EnvVersion, "")
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Version != "v2.1.0" {
		t.Fatalf("expected v2.1.0, got %q", loaded.Version)
	}
}

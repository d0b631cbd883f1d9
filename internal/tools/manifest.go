package tools

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const manifestFileName = "manifest.json"

// Manifest records the binary installed by the last successful install.
type Manifest struct {
	Version     string `json:"version"`
	Path        string `json:"path"`
	Asset       string `json:"asset,omitempty"`
	Checksum    string `json:"checksum,omitempty"`
	InstalledAt string `json:"installed_at,omitempty"`
}

// NewManifest describes the binary at path and stamps the install time.
func NewManifest(version, path, asset string) (Manifest, error) {
	sum, err := ComputeChecksum(path)
	if err != nil {
		return Manifest{}, err
	}
	return Manifest{
		Version:     version,
		Path:        path,
		Asset:       asset,
		Checksum:    sum,
		InstalledAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// ManifestPath returns the manifest location inside the install directory.
func ManifestPath(installDir string) string {
	return filepath.Join(installDir, manifestFileName)
}

// LoadManifest reads the manifest. ok is false when no install was recorded.
func LoadManifest(installDir string) (Manifest, bool, error) {
	contents, err := os.ReadFile(ManifestPath(installDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{}, false, nil
		}
		return Manifest{}, false, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(contents, &m); err != nil {
		return Manifest{}, false, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return m, true, nil
}

// SaveManifest atomically replaces the manifest.
func SaveManifest(installDir string, m Manifest) error {
	path := ManifestPath(installDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare manifest directory: %w", err)
	}

	buf, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "manifest-*.json")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return fmt.Errorf("write manifest temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close manifest temp: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}

// VerifyChecksum reports whether the file at path still matches the
// recorded checksum. An empty checksum always matches.
func (m Manifest) VerifyChecksum() (bool, error) {
	if m.Checksum == "" {
		return true, nil
	}
	sum, err := ComputeChecksum(m.Path)
	if err != nil {
		return false, err
	}
	return sum == m.Checksum, nil
}

// ComputeChecksum returns the hex SHA-256 of the file at path.
func ComputeChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for checksum: %w", err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

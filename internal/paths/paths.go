package paths

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

// BinaryName is the base name of the managed scanner executable.
const BinaryName = "kubescape"

// EnvInstallDir overrides the default install directory when set.
const EnvInstallDir = "KSINSTALL_DIR"

// ToolPath captures the canonical on-disk location of the scanner binary.
type ToolPath struct {
	FullPath string `json:"full_path"`
	BaseDir  string `json:"base_dir"`
}

// ResolveTool decodes and expands baseDir and joins it with the platform
// executable name. It does not check that anything exists on disk.
func ResolveTool(baseDir string) (ToolPath, error) {
	dir, err := ResolveDir(baseDir)
	if err != nil {
		return ToolPath{}, err
	}
	return ToolPath{
		FullPath: filepath.Join(dir, ExecutableName(BinaryName)),
		BaseDir:  dir,
	}, nil
}

// ResolveDir turns a user supplied directory (possibly URL-encoded, possibly
// using ~ or $VAR shorthand) into a clean absolute path.
func ResolveDir(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("resolve directory: empty path")
	}
	if decoded, err := url.PathUnescape(value); err == nil {
		value = decoded
	}
	abs, err := filepath.Abs(Expand(value))
	if err != nil {
		return "", fmt.Errorf("resolve directory %q: %w", value, err)
	}
	return filepath.Clean(abs), nil
}

var envToken = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

// Expand replaces a leading ~ with the user home directory and every $NAME
// token with its environment value. Unset variables are left as written.
func Expand(value string) string {
	if value == "~" || strings.HasPrefix(value, "~/") || strings.HasPrefix(value, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			value = home + value[1:]
		}
	}
	return envToken.ReplaceAllStringFunc(value, func(token string) string {
		if v, ok := os.LookupEnv(token[1:]); ok {
			return v
		}
		return token
	})
}

// ExecutableName appends the Windows executable suffix when required.
func ExecutableName(base string) string {
	return executableNameFor(runtime.GOOS, base)
}

func executableNameFor(goos, base string) string {
	if goos == "windows" {
		return base + ".exe"
	}
	return base
}

// DefaultInstallDir returns the per-user directory holding the scanner and
// its framework bundles (~/.kubescape unless KSINSTALL_DIR is set).
func DefaultInstallDir() (string, error) {
	if override, ok := os.LookupEnv(EnvInstallDir); ok && strings.TrimSpace(override) != "" {
		return ResolveDir(override)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("detect user home: %w", err)
	}
	return filepath.Join(home, ".kubescape"), nil
}

// FrameworkDir returns the custom framework directory when configured, or
// the install directory otherwise.
func FrameworkDir(installDir, custom string) (string, error) {
	if strings.TrimSpace(custom) != "" {
		return ResolveDir(custom)
	}
	return ResolveDir(installDir)
}

// LogsDir returns the directory holding per-run log files.
func LogsDir(installDir string) string {
	return filepath.Join(installDir, "logs")
}

// HistoryFile returns the location of the scan history database.
func HistoryFile(installDir string) string {
	return filepath.Join(installDir, "history.db")
}

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// DirExists reports whether a path exists and is a directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

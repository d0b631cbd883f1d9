package tools

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"ksinstall/internal/runner"
)

const (
	// LatestVersion is the sentinel requesting the newest upstream release.
	LatestVersion = "latest"
	// UnknownVersion is reported when the scanner prints no version token.
	UnknownVersion = "unknown"
	// JSONOutputVersion is the first scanner release that logs results as
	// JSON lines on stderr.
	JSONOutputVersion = "v2.0.150"

	skipUpdateEnv = "KUBESCAPE_SKIP_UPDATE_CHECK"
)

var versionToken = regexp.MustCompile(`v\d+\.\d+\.\d+`)

// InstalledVersion is the detected scanner version and whether it matched
// the upstream latest tag when checked.
type InstalledVersion struct {
	Version  string `json:"version"`
	IsLatest bool   `json:"is_latest"`
}

// LatestTagger reports the newest upstream release tag.
type LatestTagger interface {
	LatestTag(ctx context.Context) (string, error)
}

// Detector probes an installed scanner binary.
type Detector struct {
	Runner   runner.Runner
	Releases LatestTagger
	Logger   Logger
}

func (d *Detector) logf(format string, v ...any) {
	if d.Logger != nil {
		d.Logger.Printf(format, v...)
	}
}

// IsInstalled runs the help subcommand. Any spawn error or non-zero exit
// means the binary is missing, corrupt or not executable.
func (d *Detector) IsInstalled(ctx context.Context, path string) bool {
	_, err := d.Runner.Run(ctx, runner.Spec{
		Command: path,
		Args:    []string{"--help"},
		Env:     map[string]string{skipUpdateEnv: "true"},
	})
	if err != nil {
		d.logf("install probe %s: %v", path, err)
		return false
	}
	return true
}

// ReadVersion returns the version token printed on stdout and, when an
// older scanner printed an update notice on stderr, the version it offers.
// A missing version token yields UnknownVersion rather than an error.
func (d *Detector) ReadVersion(ctx context.Context, path string) (string, string, error) {
	res, err := d.Runner.Run(ctx, runner.Spec{
		Command: path,
		Args:    []string{"version"},
		Env:     map[string]string{skipUpdateEnv: "true"},
	})
	if err != nil {
		return "", "", fmt.Errorf("%w: %s version: %v", ErrSubprocessFailed, path, err)
	}

	version := ExtractVersion(string(res.Stdout))
	if version == "" {
		d.logf("no version token in %q", strings.TrimSpace(string(res.Stdout)))
		version = UnknownVersion
	}
	return version, UpdateNotice(string(res.Stderr), version), nil
}

// UpdateNotice returns the first version token in an update notice that
// differs from current. The notice names the current version first.
func UpdateNotice(stderr, current string) string {
	for _, tok := range versionToken.FindAllString(stderr, -1) {
		if tok != current {
			return tok
		}
	}
	return ""
}

// Detect reads the installed version and decides whether it is the latest.
// For a concrete requested version IsLatest is always false.
func (d *Detector) Detect(ctx context.Context, path, requested string) (InstalledVersion, error) {
	iv, _, err := d.detect(ctx, path, requested)
	return iv, err
}

func (d *Detector) detect(ctx context.Context, path, requested string) (InstalledVersion, string, error) {
	if !d.IsInstalled(ctx, path) {
		return InstalledVersion{}, "", ErrNotInstalled
	}
	version, notice, err := d.ReadVersion(ctx, path)
	if err != nil {
		return InstalledVersion{}, "", err
	}
	iv := InstalledVersion{Version: version}
	if !strings.EqualFold(requested, LatestVersion) {
		return iv, "", nil
	}

	latest := ""
	if d.Releases != nil {
		tag, err := d.Releases.LatestTag(ctx)
		if err != nil {
			d.logf("latest release lookup failed: %v", err)
		} else {
			latest = tag
		}
	}
	if latest == "" && notice != "" {
		// Older scanners announce a newer release on stderr.
		latest = notice
	}
	iv.IsLatest = latest != "" && latest == version
	return iv, latest, nil
}

// Reconciliation is the outcome of comparing the installed scanner with the
// requested version.
type Reconciliation struct {
	Installed   bool
	Current     InstalledVersion
	LatestTag   string
	NeedsUpdate bool
}

// Reconcile probes path and decides whether an install is needed.
func (d *Detector) Reconcile(ctx context.Context, path, requested string) (Reconciliation, error) {
	iv, latest, err := d.detect(ctx, path, requested)
	if errors.Is(err, ErrNotInstalled) {
		return Reconciliation{NeedsUpdate: true}, nil
	}
	if err != nil {
		return Reconciliation{}, err
	}
	return Reconciliation{
		Installed:   true,
		Current:     iv,
		LatestTag:   latest,
		NeedsUpdate: NeedsUpdate(true, iv.Version, requested, latest),
	}, nil
}

// NeedsUpdate applies the reconciliation rules. An empty latestTag with the
// latest sentinel means the registry was unreachable and the installed
// binary is kept.
func NeedsUpdate(installed bool, detected, requested, latestTag string) bool {
	if !installed {
		return true
	}
	if requested == detected {
		return false
	}
	if strings.EqualFold(requested, LatestVersion) {
		if latestTag == "" {
			return false
		}
		return detected != latestTag
	}
	return true
}

// ExtractVersion returns the first vMAJOR.MINOR.PATCH token in text.
func ExtractVersion(text string) string {
	return versionToken.FindString(text)
}

// UsesJSONOutput reports whether version logs framework results as JSON
// lines. Unknown versions report false.
func UsesJSONOutput(version string) bool {
	if ExtractVersion(version) == "" {
		return false
	}
	return MeetsMinimum(version, JSONOutputVersion)
}

// MeetsMinimum reports whether version is at least minimum, comparing the
// numeric components in order.
func MeetsMinimum(version, minimum string) bool {
	if minimum == "" {
		return true
	}
	if version == "" {
		return false
	}

	vParts := numericParts(version)
	mParts := numericParts(minimum)
	for len(vParts) < len(mParts) {
		vParts = append(vParts, 0)
	}
	for len(mParts) < len(vParts) {
		mParts = append(mParts, 0)
	}
	for i := 0; i < len(vParts) && i < len(mParts); i++ {
		if vParts[i] > mParts[i] {
			return true
		}
		if vParts[i] < mParts[i] {
			return false
		}
	}
	return true
}

func numericParts(version string) []int {
	var parts []int
	current := strings.Builder{}
	for _, r := range version {
		if r >= '0' && r <= '9' {
			current.WriteRune(r)
			continue
		}
		if current.Len() > 0 {
			val, _ := strconv.Atoi(current.String())
			parts = append(parts, val)
			current.Reset()
		}
	}
	if current.Len() > 0 {
		val, _ := strconv.Atoi(current.String())
		parts = append(parts, val)
	}
	return parts
}

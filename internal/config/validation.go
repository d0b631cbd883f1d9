package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
)

// ValidationResult captures a single validation finding.
type ValidationResult struct {
	Level   string `json:"level"` // "error" or "warning"
	Message string `json:"message"`
}

var (
	versionPattern   = regexp.MustCompile(`^v\d+\.\d+\.\d+$`)
	repoPattern      = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)
	frameworkPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`)
)

// Validate checks the configuration and returns structured results. An
// empty slice means the configuration is usable as is.
func (c Config) Validate() []ValidationResult {
	var results []ValidationResult
	results = append(results, c.validateVersion()...)
	results = append(results, c.validateFrameworks()...)
	results = append(results, c.validateGitHub()...)
	results = append(results, c.validateLog()...)
	return results
}

// HasErrors reports whether any result is an error.
func HasErrors(results []ValidationResult) bool {
	for _, r := range results {
		if r.Level == "error" {
			return true
		}
	}
	return false
}

func (c Config) validateVersion() []ValidationResult {
	if c.WantsLatest() || versionPattern.MatchString(c.Version) {
		return nil
	}
	return []ValidationResult{{
		Level:   "error",
		Message: fmt.Sprintf("version %q must be %q or look like v1.2.3", c.Version, LatestVersion),
	}}
}

func (c Config) validateFrameworks() []ValidationResult {
	var results []ValidationResult
	check := func(field string, names []string) {
		for _, name := range names {
			if name == AllFrameworks {
				if len(names) > 1 {
					results = append(results, ValidationResult{
						Level:   "warning",
						Message: fmt.Sprintf("%s lists %q alongside explicit names; explicit names are ignored", field, AllFrameworks),
					})
				}
				continue
			}
			if !frameworkPattern.MatchString(name) {
				results = append(results, ValidationResult{
					Level:   "error",
					Message: fmt.Sprintf("%s contains invalid framework name %q", field, name),
				})
			}
		}
	}
	check("required_frameworks", c.RequiredFrameworks)
	check("scan_frameworks", c.ScanFrameworks)

	if c.DownloadConcurrency > 16 {
		results = append(results, ValidationResult{
			Level:   "warning",
			Message: fmt.Sprintf("download_concurrency %d is high; upstream may throttle", c.DownloadConcurrency),
		})
	}
	return results
}

func (c Config) validateGitHub() []ValidationResult {
	var results []ValidationResult
	if u, err := url.Parse(c.GitHub.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("github.api_url %q is not an absolute URL", c.GitHub.APIURL),
		})
	}
	if !repoPattern.MatchString(c.GitHub.Repo) {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("github.repo %q must look like owner/name", c.GitHub.Repo),
		})
	}
	return results
}

func (c Config) validateLog() []ValidationResult {
	var results []ValidationResult
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("log.level %q is not a known level", c.Log.Level),
		})
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json", "logfmt":
	default:
		results = append(results, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("log.format %q must be text, json or logfmt", c.Log.Format),
		})
	}
	return results
}

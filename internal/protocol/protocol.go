// Package protocol parses the scanner's machine readable output. The scanner
// switched from quoted text on stdout to JSON lines on stderr at
// tools.JSONOutputVersion; a Parser is picked once per detected version.
package protocol

import (
	"strings"

	"ksinstall/internal/tools"
)

// Artifact is one downloaded item reported by the scanner.
type Artifact struct {
	Kind string
	Name string
	Path string
}

// KindFramework marks framework bundles among downloaded artifacts.
const KindFramework = "framework"

// Parser reads download results and diagnostics for one output generation.
type Parser interface {
	Name() string
	// Artifacts extracts every artifact reported by a download command.
	Artifacts(stdout, stderr []byte) []Artifact
	// Diagnostics returns error and fatal messages the scanner logged.
	Diagnostics(stdout, stderr []byte) []string
}

// ForVersion selects the parser for version. Versions without a
// recognizable token get the sniffing parser.
func ForVersion(version string) Parser {
	if tools.ExtractVersion(version) == "" {
		return Sniff{}
	}
	if tools.UsesJSONOutput(version) {
		return JSONLines{}
	}
	return Legacy{}
}

// Frameworks keeps framework artifacts, lower-cases their names and drops
// duplicates, keeping the first path seen.
func Frameworks(artifacts []Artifact) []Artifact {
	seen := make(map[string]bool, len(artifacts))
	out := make([]Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		if a.Kind != KindFramework {
			continue
		}
		a.Name = strings.ToLower(strings.TrimSpace(a.Name))
		if a.Name == "" || a.Path == "" || seen[a.Name] {
			continue
		}
		seen[a.Name] = true
		out = append(out, a)
	}
	return out
}

func lines(data []byte) []string {
	raw := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	out := raw[:0]
	for _, line := range raw {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

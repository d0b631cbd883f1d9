package protocol

import (
	"encoding/json"
	"strings"
)

// JSONLines parses the structured log protocol of v2.0.150 and later, one
// JSON object per stderr line:
//
//	{"level":"info","msg":"Downloaded","artifact":"framework","name":"nsa","path":"/home/u/.kubescape/nsa.json"}
type JSONLines struct{}

type logLine struct {
	Level    string `json:"level"`
	Msg      string `json:"msg"`
	Error    string `json:"error"`
	Artifact string `json:"artifact"`
	Name     string `json:"name"`
	Path     string `json:"path"`
}

func (JSONLines) Name() string { return "json" }

func (JSONLines) Artifacts(stdout, stderr []byte) []Artifact {
	var out []Artifact
	for _, entry := range decodeLogLines(append(lines(stderr), lines(stdout)...)) {
		if entry.Name == "" || entry.Path == "" || entry.Artifact == "" {
			continue
		}
		out = append(out, Artifact{
			Kind: strings.ToLower(entry.Artifact),
			Name: entry.Name,
			Path: entry.Path,
		})
	}
	return out
}

func (JSONLines) Diagnostics(stdout, stderr []byte) []string {
	var out []string
	for _, entry := range decodeLogLines(append(lines(stderr), lines(stdout)...)) {
		switch strings.ToLower(entry.Level) {
		case "error", "fatal":
			msg := entry.Msg
			if entry.Error != "" {
				msg += ": " + entry.Error
			}
			out = append(out, msg)
		}
	}
	return out
}

// decodeLogLines skips lines that are not JSON objects.
func decodeLogLines(in []string) []logLine {
	var out []logLine
	for _, line := range in {
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var entry logLine
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// Sniff handles output whose version is unknown: JSON lines are preferred
// when any are present, otherwise the legacy grammar is applied.
type Sniff struct{}

func (Sniff) Name() string { return "sniff" }

func (Sniff) Artifacts(stdout, stderr []byte) []Artifact {
	if hasJSONLines(stdout, stderr) {
		return JSONLines{}.Artifacts(stdout, stderr)
	}
	return Legacy{}.Artifacts(stdout, stderr)
}

func (Sniff) Diagnostics(stdout, stderr []byte) []string {
	if hasJSONLines(stdout, stderr) {
		return JSONLines{}.Diagnostics(stdout, stderr)
	}
	return Legacy{}.Diagnostics(stdout, stderr)
}

func hasJSONLines(stdout, stderr []byte) bool {
	return len(decodeLogLines(append(lines(stderr), lines(stdout)...))) > 0
}

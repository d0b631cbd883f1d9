package protocol

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ksinstall/internal/tools"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return data
}

func TestForVersion(t *testing.T) {
	tests := map[string]string{
		"v2.0.149":           "legacy",
		"v2.0.150":           "json",
		"v3.0.1":             "json",
		"v1.0.137":           "legacy",
		tools.UnknownVersion: "sniff",
		"":                   "sniff",
	}
	for version, want := range tests {
		if got := ForVersion(version).Name(); got != want {
			t.Errorf("ForVersion(%q) = %s, want %s", version, got, want)
		}
	}
}

func TestLegacyBulkFixture(t *testing.T) {
	got := Frameworks(Legacy{}.Artifacts(readFixture(t, "legacy_download_artifacts.txt"), nil))

	want := []Artifact{
		{Kind: KindFramework, Name: "allcontrols", Path: "/home/dev/.kubescape/allcontrols.json"},
		{Kind: KindFramework, Name: "nsa", Path: "/home/dev/.kubescape/nsa.json"},
		{Kind: KindFramework, Name: "mitre", Path: "/home/dev/.kubescape/mitre.json"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d frameworks, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("artifact %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestLegacyLineGrammar(t *testing.T) {
	tests := []struct {
		line string
		ok   bool
		name string
		path string
	}{
		{"'nsa' downloaded successfully and saved at: '/tmp/nsa.json'", true, "nsa", "/tmp/nsa.json"},
		{"[success] 'nsa' downloaded successfully and saved at: '/tmp/nsa.json'", true, "nsa", "/tmp/nsa.json"},
		{`'cis' downloaded successfully and saved at: 'C:\Users\dev\.kubescape\cis.json'`, true, "cis", `C:\Users\dev\.kubescape\cis.json`},
		{"'nsa' downloaded successfully and saved at: '/tmp/nsa.json", false, "", ""},
		{"'nsa' failed to download: 'timeout'", false, "", ""},
		{"nsa downloaded successfully", false, "", ""},
		{"'' downloaded successfully and saved at: '/tmp/x.json'", false, "", ""},
		{"'nsa' downloaded successfully and saved at: '/tmp/nsa.json' extra", false, "", ""},
	}
	for _, tt := range tests {
		a, ok := parseLegacyLine(tt.line)
		if ok != tt.ok {
			t.Errorf("%q: ok=%v, want %v", tt.line, ok, tt.ok)
			continue
		}
		if ok && (a.Name != tt.name || a.Path != tt.path) {
			t.Errorf("%q: got %+v", tt.line, a)
		}
	}
}

func TestJSONLinesFixture(t *testing.T) {
	stderr := readFixture(t, "json_download_artifacts.txt")
	p := JSONLines{}

	all := p.Artifacts(nil, stderr)
	if len(all) != 4 {
		t.Fatalf("expected 4 artifacts, got %d: %+v", len(all), all)
	}

	got := Frameworks(all)
	if len(got) != 2 || got[0].Name != "nsa" || got[1].Name != "mitre" {
		t.Fatalf("unexpected frameworks %+v", got)
	}

	diags := p.Diagnostics(nil, stderr)
	if len(diags) != 1 || diags[0] != "failed to download attack tracks: status 503" {
		t.Fatalf("unexpected diagnostics %v", diags)
	}
}

func TestJSONLinesIgnoresLegacyText(t *testing.T) {
	if got := (JSONLines{}).Artifacts(readFixture(t, "legacy_download_artifacts.txt"), nil); len(got) != 0 {
		t.Fatalf("expected no artifacts from legacy text, got %+v", got)
	}
}

func TestSniffPicksGeneration(t *testing.T) {
	legacy := Frameworks(Sniff{}.Artifacts(readFixture(t, "legacy_download_artifacts.txt"), nil))
	if len(legacy) != 3 {
		t.Fatalf("expected legacy frameworks, got %+v", legacy)
	}
	modern := Frameworks(Sniff{}.Artifacts(nil, readFixture(t, "json_download_artifacts.txt")))
	if len(modern) != 2 {
		t.Fatalf("expected json frameworks, got %+v", modern)
	}
}

func TestLegacyDiagnostics(t *testing.T) {
	stderr := []byte("[info] starting\n[error] failed to pull framework nsa\n[fatal] giving up\n")
	diags := Legacy{}.Diagnostics(nil, stderr)
	if len(diags) != 2 || diags[0] != "failed to pull framework nsa" || diags[1] != "giving up" {
		t.Fatalf("unexpected diagnostics %v", diags)
	}
}

func TestFrameworksDeduplicates(t *testing.T) {
	got := Frameworks([]Artifact{
		{Kind: KindFramework, Name: "NSA", Path: "/a"},
		{Kind: KindFramework, Name: "nsa", Path: "/b"},
		{Kind: "exceptions", Name: "exceptions", Path: "/c"},
	})
	if len(got) != 1 || got[0].Path != "/a" {
		t.Fatalf("expected first nsa only, got %+v", got)
	}
}

func TestParseFrameworkList(t *testing.T) {
	names, err := ParseFrameworkList([]byte(`["AllControls","NSA","MITRE","nsa"]`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(names) != 3 || names[0] != "allcontrols" || names[1] != "nsa" || names[2] != "mitre" {
		t.Fatalf("unexpected names %v", names)
	}

	names, err = ParseFrameworkList([]byte("Supported frameworks:\n  * NSA\n  * MITRE\n"))
	if err != nil {
		t.Fatalf("parse bullets: %v", err)
	}
	if len(names) != 2 || names[0] != "nsa" {
		t.Fatalf("unexpected names %v", names)
	}

	if _, err := ParseFrameworkList([]byte("[broken")); !errors.Is(err, tools.ErrMalformedOutput) {
		t.Fatalf("expected malformed output, got %v", err)
	}
	if _, err := ParseFrameworkList(nil); !errors.Is(err, tools.ErrMalformedOutput) {
		t.Fatalf("expected malformed output for empty list, got %v", err)
	}
}

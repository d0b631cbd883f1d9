package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"ksinstall/internal/frameworks"
	"ksinstall/internal/protocol"
	"ksinstall/internal/runner"
	"ksinstall/internal/store"
)

const sampleReport = `{
  "summaryDetails": {
    "controls": {
      "C-0001": {"controlID": "C-0001", "name": "Forbidden Container Registries", "status": "failed"},
      "C-0404": {"controlID": "C-0404", "status": "passed"}
    }
  }
}`

type fakeRunner struct {
	report  string
	exitErr error
	stderr  string
	spec    runner.Spec
	output  string
}

func (f *fakeRunner) Run(_ context.Context, spec runner.Spec) (runner.Result, error) {
	f.spec = spec
	for i, arg := range spec.Args {
		if arg == "--output" && i+1 < len(spec.Args) {
			f.output = spec.Args[i+1]
		}
	}
	if f.report != "" && f.output != "" {
		if err := os.WriteFile(f.output, []byte(f.report), 0o644); err != nil {
			return runner.Result{}, err
		}
	}
	res := runner.Result{Stderr: []byte(f.stderr)}
	if f.exitErr != nil {
		res.ExitCode = 1
	}
	return res, f.exitErr
}

type memoryHistory struct {
	runs []store.Run
}

func (m *memoryHistory) Record(_ context.Context, run store.Run) (int64, error) {
	m.runs = append(m.runs, run)
	return int64(len(m.runs)), nil
}

type captureLogger struct {
	lines []string
}

func (c *captureLogger) Printf(format string, v ...any) {
	c.lines = append(c.lines, format)
}

type errorSink struct {
	msgs []string
}

func (e *errorSink) Error(msg string) {
	e.msgs = append(e.msgs, msg)
}

func testCatalog(t *testing.T) (*frameworks.Catalog, string) {
	t.Helper()
	dir := t.TempDir()
	bundle := `{"controls":[{"controlID":"C-0001","description":"d","remediation":"use an allowed registry"}]}`
	if err := os.WriteFile(filepath.Join(dir, "nsa.json"), []byte(bundle), 0o644); err != nil {
		t.Fatalf("write bundle: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "mitre.json"), []byte(`{"controls":[]}`), 0o644); err != nil {
		t.Fatalf("write bundle: %v", err)
	}
	found, err := frameworks.ScanDir(dir)
	if err != nil {
		t.Fatalf("scan dir: %v", err)
	}
	c := frameworks.NewCatalog()
	c.Merge(found)
	c.Activate([]string{"all"})
	return c, dir
}

func TestScanFileBuildsCommandAndEnriches(t *testing.T) {
	catalog, dir := testCatalog(t)
	fr := &fakeRunner{report: sampleReport}
	history := &memoryHistory{}
	inv := &Invoker{Runner: fr, Binary: "/opt/kubescape", FrameworkDir: dir, Catalog: catalog, History: history, TempDir: t.TempDir()}

	report := inv.ScanFile(context.Background(), "/work/deploy.yaml", nil)

	wantArgs := []string{
		"scan", "framework", "mitre,nsa", "/work/deploy.yaml",
		"--format", "json",
		"--output", fr.output,
		"--use-artifacts-from", dir,
		"--keep-local",
	}
	if !reflect.DeepEqual(fr.spec.Args, wantArgs) {
		t.Fatalf("unexpected args\n got %v\nwant %v", fr.spec.Args, wantArgs)
	}
	if fr.spec.Command != "/opt/kubescape" {
		t.Fatalf("unexpected command %s", fr.spec.Command)
	}

	ctrl := report["summaryDetails"].(map[string]any)["controls"].(map[string]any)["C-0001"].(map[string]any)
	if ctrl["description"] != "d" || ctrl["remediation"] != "use an allowed registry" {
		t.Fatalf("expected enrichment, got %v", ctrl)
	}
	other := report["summaryDetails"].(map[string]any)["controls"].(map[string]any)["C-0404"].(map[string]any)
	if _, ok := other["description"]; ok {
		t.Fatalf("unmatched control should stay unenriched, got %v", other)
	}

	if _, err := os.Stat(filepath.Dir(fr.output)); !os.IsNotExist(err) {
		t.Fatalf("expected temp dir removed, stat err=%v", err)
	}

	if len(history.runs) != 1 {
		t.Fatalf("expected one history record, got %d", len(history.runs))
	}
	run := history.runs[0]
	if run.Kind != KindFile || run.Controls != 2 || !reflect.DeepEqual(run.Frameworks, []string{"mitre", "nsa"}) {
		t.Fatalf("unexpected history record %+v", run)
	}
}

func TestScanClusterInjectsKubeconfig(t *testing.T) {
	catalog, dir := testCatalog(t)
	catalog.Activate([]string{"nsa"})
	fr := &fakeRunner{report: sampleReport}
	inv := &Invoker{Runner: fr, Binary: "kubescape", FrameworkDir: dir, Catalog: catalog, TempDir: t.TempDir()}

	inv.ScanCluster(context.Background(), "kind-dev", "/home/dev/.kube/config", []Flag{{Name: "severity-threshold", Value: "high"}})

	if fr.spec.Env["KUBECONFIG"] != "/home/dev/.kube/config" {
		t.Fatalf("expected KUBECONFIG in env, got %v", fr.spec.Env)
	}
	args := strings.Join(fr.spec.Args, " ")
	if !strings.HasPrefix(args, "scan framework nsa --format json") {
		t.Fatalf("unexpected args %s", args)
	}
	if !strings.Contains(args, "--kube-context kind-dev --severity-threshold high") {
		t.Fatalf("expected context then override flags, got %s", args)
	}
}

func TestScanOverridesReplaceDefaults(t *testing.T) {
	fr := &fakeRunner{report: sampleReport}
	inv := &Invoker{Runner: fr, Binary: "kubescape", TempDir: t.TempDir()}

	inv.ScanFile(context.Background(), "/work/a.yaml", []Flag{
		{Name: "format", Value: "sarif"},
		{Name: "--format", Value: "json"},
		{Name: "verbose"},
	})

	args := strings.Join(fr.spec.Args, " ")
	if strings.Count(args, "--format") != 1 || !strings.Contains(args, "--format json") {
		t.Fatalf("expected a single last-write-wins format flag, got %s", args)
	}
	if !strings.HasSuffix(args, "--keep-local --verbose") {
		t.Fatalf("expected new flag appended, got %s", args)
	}
	if strings.Contains(args, "framework") {
		t.Fatalf("no active frameworks should scan with defaults, got %s", args)
	}
}

func TestScanNonZeroExitStillReadsResult(t *testing.T) {
	fr := &fakeRunner{
		report:  sampleReport,
		exitErr: errors.New("exit status 1"),
		stderr:  `{"level":"error","msg":"compliance score below threshold"}`,
	}
	logger := &captureLogger{}
	sink := &errorSink{}
	inv := &Invoker{Runner: fr, Binary: "kubescape", Parser: protocol.JSONLines{}, Logger: logger, Errors: sink, TempDir: t.TempDir()}

	report := inv.ScanFile(context.Background(), "/work/a.yaml", nil)
	if ControlCount(report) != 2 {
		t.Fatalf("expected report despite non-zero exit, got %v", report)
	}
	if len(logger.lines) < 2 {
		t.Fatalf("expected exit and diagnostic to be logged, got %v", logger.lines)
	}
	want := []string{
		"kubescape scan exited with 1: exit status 1",
		"kubescape: compliance score below threshold",
	}
	if !reflect.DeepEqual(sink.msgs, want) {
		t.Fatalf("expected errors %v, got %v", want, sink.msgs)
	}
}

func TestScanMissingResultYieldsEmptyReport(t *testing.T) {
	fr := &fakeRunner{exitErr: errors.New("exec: not found")}
	sink := &errorSink{}
	inv := &Invoker{Runner: fr, Binary: "kubescape", Errors: sink, TempDir: t.TempDir()}

	report := inv.ScanFile(context.Background(), "/work/a.yaml", nil)
	if report == nil || len(report) != 0 {
		t.Fatalf("expected empty report, got %v", report)
	}
	if len(sink.msgs) != 2 || !strings.HasPrefix(sink.msgs[1], "read scan result:") {
		t.Fatalf("expected exit and missing result reported, got %v", sink.msgs)
	}
}

func TestScanMalformedResultYieldsEmptyReport(t *testing.T) {
	fr := &fakeRunner{report: "{not json"}
	sink := &errorSink{}
	inv := &Invoker{Runner: fr, Binary: "kubescape", Errors: sink, TempDir: t.TempDir()}

	if report := inv.ScanFile(context.Background(), "/work/a.yaml", nil); len(report) != 0 {
		t.Fatalf("expected empty report, got %v", report)
	}
	if len(sink.msgs) != 1 || !strings.HasPrefix(sink.msgs[0], "parse scan result:") {
		t.Fatalf("expected parse failure reported, got %v", sink.msgs)
	}
}

func TestMergeFlags(t *testing.T) {
	got := mergeFlags(
		[]Flag{{Name: "format", Value: "json"}, {Name: "keep-local"}},
		[]Flag{{Name: "zeta", Value: "1"}, {Name: "alpha", Value: "2"}, {Name: "format", Value: "pdf"}, {Name: "zeta", Value: "3"}},
	)
	want := []Flag{{Name: "format", Value: "pdf"}, {Name: "keep-local"}, {Name: "alpha", Value: "2"}, {Name: "zeta", Value: "3"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMergeFlagsKeepsValuedDefault(t *testing.T) {
	got := mergeFlags(
		[]Flag{{Name: "format", Value: "json"}, {Name: "keep-local"}},
		[]Flag{{Name: "format"}, {Name: "keep-local"}},
	)
	want := []Flag{{Name: "format", Value: "json"}, {Name: "keep-local"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if args := renderFlags(got); !reflect.DeepEqual(args, []string{"--format", "json", "--keep-local"}) {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestParseFlag(t *testing.T) {
	tests := map[string]Flag{
		"--severity-threshold=high": {Name: "severity-threshold", Value: "high"},
		"verbose":                   {Name: "verbose"},
		"exclude-namespaces=a,b":    {Name: "exclude-namespaces", Value: "a,b"},
	}
	for in, want := range tests {
		if got := ParseFlag(in); got != want {
			t.Errorf("ParseFlag(%q) = %+v, want %+v", in, got, want)
		}
	}
}

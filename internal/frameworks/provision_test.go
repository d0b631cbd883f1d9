package frameworks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"testing"

	"ksinstall/internal/protocol"
	"ksinstall/internal/runner"
	"ksinstall/internal/tools"
)

// fakeRunner emulates the scanner's framework subcommands.
type fakeRunner struct {
	mu        sync.Mutex
	failNames map[string]bool
	jsonLogs  bool
	bulkOut   string
	listOut   string
	calls     [][]string
}

func (f *fakeRunner) Run(_ context.Context, spec runner.Spec) (runner.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), spec.Args...))
	f.mu.Unlock()

	args := spec.Args
	switch {
	case len(args) >= 2 && args[0] == "list" && args[1] == "frameworks":
		return runner.Result{Stdout: []byte(f.listOut)}, nil
	case len(args) == 5 && args[0] == "download" && args[1] == "framework":
		name, target := args[2], args[4]
		if f.failNames[name] {
			stderr := fmt.Sprintf(`{"level":"error","msg":"failed to download framework","error":"%s not found"}`, name)
			return runner.Result{Stderr: []byte(stderr), ExitCode: 1}, errors.New("exit status 1")
		}
		if err := os.WriteFile(target, []byte(`{"controls":[]}`), 0o644); err != nil {
			return runner.Result{}, err
		}
		if f.jsonLogs {
			line := fmt.Sprintf(`{"level":"info","msg":"Downloaded","artifact":"framework","name":"%s","path":"%s"}`, name, target)
			return runner.Result{Stderr: []byte(line + "\n")}, nil
		}
		line := fmt.Sprintf("'%s' downloaded successfully and saved at: '%s'\n", name, target)
		return runner.Result{Stdout: []byte(line)}, nil
	case len(args) == 4 && args[0] == "download" && args[1] == "artifacts":
		return runner.Result{Stdout: []byte(f.bulkOut)}, nil
	}
	return runner.Result{}, fmt.Errorf("fake runner: unexpected args %v", args)
}

type recordingReporter struct {
	mu        sync.Mutex
	started   []string
	completed map[string]error
}

func (r *recordingReporter) Start(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, name)
}

func (r *recordingReporter) Complete(name string, _ Framework, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completed == nil {
		r.completed = map[string]error{}
	}
	r.completed[name] = err
}

func TestDownloadSelectedPartialFailure(t *testing.T) {
	dir := t.TempDir()
	fr := &fakeRunner{failNames: map[string]bool{"mitre": true}, jsonLogs: true}
	p := &Provisioner{Runner: fr, Binary: "kubescape", Dir: dir, Parser: protocol.JSONLines{}}
	rep := &recordingReporter{}

	got, err := p.DownloadSelected(context.Background(), []string{"nsa", "mitre"}, rep)
	if err == nil {
		t.Fatal("expected failure for mitre")
	}

	var de *DownloadError
	if !errors.As(err, &de) || de.Name != "mitre" {
		t.Fatalf("expected DownloadError for mitre, got %v", err)
	}
	if !errors.Is(err, tools.ErrSubprocessFailed) {
		t.Fatalf("expected subprocess failure, got %v", err)
	}
	if names := FailedNames(err); !reflect.DeepEqual(names, []string{"mitre"}) {
		t.Fatalf("unexpected failed names %v", names)
	}

	if len(got) != 1 || got[0].Name != "nsa" || got[0].Location != filepath.Join(dir, "nsa.json") {
		t.Fatalf("expected nsa downloaded, got %+v", got)
	}

	c := NewCatalog()
	c.Merge(got)
	if _, ok := c.Get("nsa"); !ok {
		t.Fatal("catalog should contain nsa")
	}
	if _, ok := c.Get("mitre"); ok {
		t.Fatal("catalog should not contain mitre")
	}

	sort.Strings(rep.started)
	if !reflect.DeepEqual(rep.started, []string{"mitre", "nsa"}) {
		t.Fatalf("unexpected started %v", rep.started)
	}
	if rep.completed["nsa"] != nil || rep.completed["mitre"] == nil {
		t.Fatalf("unexpected completions %v", rep.completed)
	}
}

func TestDownloadSelectedLegacyOutput(t *testing.T) {
	dir := t.TempDir()
	p := &Provisioner{Runner: &fakeRunner{}, Binary: "kubescape", Dir: dir, Parser: protocol.Legacy{}, Concurrency: 1}

	got, err := p.DownloadSelected(context.Background(), []string{"nsa", "cis"}, nil)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if len(got) != 2 || got[0].Name != "nsa" || got[1].Name != "cis" {
		t.Fatalf("unexpected frameworks %+v", got)
	}
}

func TestDownloadSelectedTrustsOutputFile(t *testing.T) {
	dir := t.TempDir()
	// Legacy parser cannot read JSON lines, so the output path is used.
	p := &Provisioner{Runner: &fakeRunner{jsonLogs: true}, Binary: "kubescape", Dir: dir, Parser: protocol.Legacy{}}

	got, err := p.DownloadSelected(context.Background(), []string{"nsa"}, nil)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if len(got) != 1 || got[0].Location != filepath.Join(dir, "nsa.json") {
		t.Fatalf("unexpected frameworks %+v", got)
	}
}

func TestDownloadAll(t *testing.T) {
	bulk := `'controls-inputs' downloaded successfully and saved at: '/k/controls-inputs.json'
'nsa' downloaded successfully and saved at: '/k/nsa.json'
'mitre' downloaded successfully and saved at: '/k/mitre.json'
`
	p := &Provisioner{Runner: &fakeRunner{bulkOut: bulk}, Binary: "kubescape", Dir: t.TempDir()}

	got, err := p.DownloadAll(context.Background())
	if err != nil {
		t.Fatalf("download all: %v", err)
	}
	want := []Framework{{Name: "nsa", Location: "/k/nsa.json"}, {Name: "mitre", Location: "/k/mitre.json"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestListAvailable(t *testing.T) {
	p := &Provisioner{Runner: &fakeRunner{listOut: `["NSA","MITRE"]`}, Binary: "kubescape"}
	names, err := p.ListAvailable(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"nsa", "mitre"}) {
		t.Fatalf("unexpected names %v", names)
	}
}

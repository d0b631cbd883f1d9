package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"ksinstall/internal/paths"
	"ksinstall/internal/store"
)

func TestHistoryListsRecordedScans(t *testing.T) {
	installDir, _ := useConfig(t, "")

	st, err := store.Open(paths.HistoryFile(installDir))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err = st.Record(context.Background(), store.Run{
		Kind:       "file",
		Target:     "/work/deploy.yaml",
		Frameworks: []string{"mitre", "nsa"},
		Controls:   12,
		StartedAt:  start,
		EndedAt:    start.Add(1500 * time.Millisecond),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	st.Close()

	cmd := newHistoryCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("history: %v", err)
	}

	got := stdout.String()
	for _, want := range []string{"TARGET", "/work/deploy.yaml", "mitre,nsa", "1.5s"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in output:\n%s", want, got)
		}
	}
}

func TestHistoryEmpty(t *testing.T) {
	useConfig(t, "")

	cmd := newHistoryCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(stdout.String(), "no scans recorded") {
		t.Fatalf("unexpected output %q", stdout.String())
	}
}

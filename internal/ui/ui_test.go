package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"ksinstall/internal/tools"
)

func testConsole(interactive bool) (*Console, *bytes.Buffer, *bytes.Buffer) {
	var logs, out bytes.Buffer
	logger := log.NewWithOptions(&logs, log.Options{Level: log.DebugLevel})
	return NewConsole(logger, &out, interactive), &logs, &out
}

func TestConsoleMessages(t *testing.T) {
	c, logs, out := testConsole(false)
	c.Info("installing kubescape")
	c.Error("download failed")
	c.Debug("details")
	c.ShowHelpLink("Install manually", tools.InstallDocsURL)

	for _, want := range []string{"installing kubescape", "download failed", "details"} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("expected %q in logs %q", want, logs.String())
		}
	}
	if !strings.Contains(out.String(), tools.InstallDocsURL) {
		t.Fatalf("expected help link, got %q", out.String())
	}
}

func TestConsoleSlowReturnsWorkResult(t *testing.T) {
	for _, interactive := range []bool{false, true} {
		c, _, _ := testConsole(interactive)
		want := errors.New("boom")
		if err := c.Slow("listing", func() error { return want }); !errors.Is(err, want) {
			t.Fatalf("interactive=%v: expected work error, got %v", interactive, err)
		}
	}
}

func TestConsoleProgressDrawsBar(t *testing.T) {
	c, _, out := testConsole(true)

	err := c.Progress(context.Background(), "Downloading kubescape", true, func(ctx context.Context, report func(tools.Progress)) error {
		report(tools.Progress{Received: 512, Total: 1024, Fraction: 0.5})
		report(tools.Progress{Received: 1024, Total: 1024, Fraction: 1})
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if !strings.Contains(out.String(), "Downloading kubescape") {
		t.Fatalf("expected bar description in output, got %q", out.String())
	}
}

func TestDiscardProgress(t *testing.T) {
	calls := 0
	err := Discard{}.Progress(context.Background(), "x", false, func(_ context.Context, report func(tools.Progress)) error {
		report(tools.Progress{Indeterminate: true})
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("expected work to run once, calls=%d err=%v", calls, err)
	}
}

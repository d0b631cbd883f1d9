package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ksinstall/internal/frameworks"
	"ksinstall/internal/paths"
	"ksinstall/internal/protocol"
	"ksinstall/internal/runner"
	"ksinstall/internal/store"
)

const (
	KindFile    = "file"
	KindCluster = "cluster"

	resultFileName = "result.json"
)

// Logger is the logging surface of the invoker.
type Logger interface {
	Printf(format string, v ...any)
}

type noopLogger struct{}

func (noopLogger) Printf(string, ...any) {}

// ErrorSink receives scan failures meant for the user.
type ErrorSink interface {
	Error(msg string)
}

// Recorder persists scan history.
type Recorder interface {
	Record(ctx context.Context, run store.Run) (int64, error)
}

// Invoker runs scans with the provisioned scanner and frameworks.
type Invoker struct {
	Runner       runner.Runner
	Binary       string
	FrameworkDir string
	Catalog      *frameworks.Catalog
	Parser       protocol.Parser
	Logger       Logger
	// Errors is optional; failures are always logged.
	Errors ErrorSink
	// History is optional.
	History Recorder
	// TempDir is the parent of per-scan temp dirs; empty uses os.TempDir.
	TempDir string
}

func (i *Invoker) logger() Logger {
	if i.Logger == nil {
		return noopLogger{}
	}
	return i.Logger
}

// fail logs a scan failure and forwards it to the error sink.
func (i *Invoker) fail(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	i.logger().Printf("%s", msg)
	if i.Errors != nil {
		i.Errors.Error(msg)
	}
}

// ScanFile scans one manifest file. Failures yield an empty report.
func (i *Invoker) ScanFile(ctx context.Context, path string, overrides []Flag) Report {
	resolved := path
	if abs, err := filepath.Abs(paths.Expand(path)); err == nil {
		resolved = abs
	}
	return i.scan(ctx, KindFile, resolved, nil, nil, overrides)
}

// ScanCluster scans the cluster behind kubeContext. A non-empty kubeconfig
// is handed to the scanner through KUBECONFIG.
func (i *Invoker) ScanCluster(ctx context.Context, kubeContext, kubeconfig string, overrides []Flag) Report {
	var extra []Flag
	if kubeContext != "" {
		extra = append(extra, Flag{Name: "kube-context", Value: kubeContext})
	}
	var env map[string]string
	if kubeconfig != "" {
		env = map[string]string{"KUBECONFIG": paths.Expand(kubeconfig)}
	}
	target := kubeContext
	if target == "" {
		target = "current-context"
	}
	return i.scan(ctx, KindCluster, target, extra, env, overrides)
}

func (i *Invoker) scan(ctx context.Context, kind, target string, extra []Flag, env map[string]string, overrides []Flag) Report {
	started := time.Now()
	active := i.activeFrameworks()

	tmp, err := os.MkdirTemp(i.TempDir, "ksinstall-scan-")
	if err != nil {
		i.fail("create scan temp dir: %v", err)
		return Report{}
	}
	defer os.RemoveAll(tmp)

	defaults := []Flag{
		{Name: "format", Value: "json"},
		{Name: "output", Value: filepath.Join(tmp, resultFileName)},
	}
	if i.FrameworkDir != "" {
		defaults = append(defaults, Flag{Name: "use-artifacts-from", Value: i.FrameworkDir})
	}
	defaults = append(defaults, Flag{Name: "keep-local"})
	defaults = append(defaults, extra...)
	flags := mergeFlags(defaults, overrides)

	args := []string{"scan"}
	if len(active) > 0 {
		args = append(args, "framework", strings.Join(active, ","))
	}
	if kind == KindFile {
		args = append(args, target)
	}
	args = append(args, renderFlags(flags)...)

	res, runErr := i.Runner.Run(ctx, runner.Spec{Command: i.Binary, Args: args, Env: env})
	if runErr != nil {
		// The result file may still be valid after a non-zero exit.
		i.fail("kubescape scan exited with %d: %v", res.ExitCode, runErr)
		if i.Parser != nil {
			for _, msg := range i.Parser.Diagnostics(res.Stdout, res.Stderr) {
				i.fail("kubescape: %s", msg)
			}
		}
	}

	report, err := readReport(flagValue(flags, "output"))
	if err != nil {
		i.fail("%v", err)
	}
	if i.Catalog != nil {
		Enrich(report, i.Catalog.Control)
	}

	i.record(ctx, store.Run{
		Kind:       kind,
		Target:     target,
		Frameworks: active,
		ExitCode:   res.ExitCode,
		Error:      errString(runErr),
		Controls:   ControlCount(report),
		StartedAt:  started,
		EndedAt:    time.Now(),
	})
	return report
}

func (i *Invoker) activeFrameworks() []string {
	if i.Catalog == nil {
		return nil
	}
	return i.Catalog.Active()
}

func (i *Invoker) record(ctx context.Context, run store.Run) {
	if i.History == nil {
		return
	}
	if _, err := i.History.Record(ctx, run); err != nil {
		i.logger().Printf("record scan history: %v", err)
	}
}

// readReport returns an empty report alongside any error.
func readReport(path string) (Report, error) {
	if path == "" {
		return Report{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("read scan result: %w", err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return Report{}, fmt.Errorf("parse scan result: %w", err)
	}
	if report == nil {
		return Report{}, fmt.Errorf("parse scan result: not a JSON object")
	}
	return report, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

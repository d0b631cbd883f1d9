package frameworks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"ksinstall/internal/protocol"
	"ksinstall/internal/runner"
	"ksinstall/internal/tools"
)

// DownloadError is the failure of one framework download.
type DownloadError struct {
	Name string
	Err  error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("framework %s: %v", e.Name, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// FailedNames lists the frameworks named by DownloadErrors inside err.
func FailedNames(err error) []string {
	if err == nil {
		return nil
	}
	var out []string
	var walk func(error)
	walk = func(e error) {
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
			return
		}
		var de *DownloadError
		if errors.As(e, &de) {
			out = append(out, de.Name)
		}
	}
	walk(err)
	return out
}

// Reporter receives per-framework download progress.
type Reporter interface {
	Start(name string)
	Complete(name string, fw Framework, err error)
}

type noopReporter struct{}

func (noopReporter) Start(string)                      {}
func (noopReporter) Complete(string, Framework, error) {}

// Logger is the logging surface used while provisioning.
type Logger interface {
	Printf(format string, v ...any)
}

type noopLogger struct{}

func (noopLogger) Printf(string, ...any) {}

// Provisioner drives the scanner's framework subcommands.
type Provisioner struct {
	Runner runner.Runner
	Binary string
	Dir    string
	Parser protocol.Parser
	// Concurrency bounds parallel selective downloads; <= 0 means 4.
	Concurrency int
	Logger      Logger
}

func (p *Provisioner) logger() Logger {
	if p.Logger == nil {
		return noopLogger{}
	}
	return p.Logger
}

func (p *Provisioner) parser() protocol.Parser {
	if p.Parser == nil {
		return protocol.Sniff{}
	}
	return p.Parser
}

// ListAvailable asks the scanner which frameworks upstream offers. Failures
// are returned to the caller.
func (p *Provisioner) ListAvailable(ctx context.Context) ([]string, error) {
	res, err := p.Runner.Run(ctx, runner.Spec{
		Command: p.Binary,
		Args:    []string{"list", "frameworks", "--format", "json"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list frameworks: %v", tools.ErrSubprocessFailed, err)
	}
	return protocol.ParseFrameworkList(res.Stdout)
}

// DownloadSelected downloads each named framework concurrently. Every
// download runs to completion; successes are returned and failures are
// joined as *DownloadError values.
func (p *Provisioner) DownloadSelected(ctx context.Context, names []string, rep Reporter) ([]Framework, error) {
	if rep == nil {
		rep = noopReporter{}
	}
	limit := p.Concurrency
	if limit <= 0 {
		limit = 4
	}
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare framework dir: %w", err)
	}

	results := make([]Framework, len(names))
	errs := make([]error, len(names))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, name := range names {
		g.Go(func() error {
			rep.Start(name)
			fw, err := p.downloadOne(ctx, name)
			if err != nil {
				errs[i] = &DownloadError{Name: name, Err: err}
				p.logger().Printf("framework %s download failed: %v", name, err)
			} else {
				results[i] = fw
			}
			rep.Complete(name, fw, errs[i])
			return nil
		})
	}
	_ = g.Wait()

	var ok []Framework
	for i := range names {
		if errs[i] == nil {
			ok = append(ok, results[i])
		}
	}
	return ok, errors.Join(errs...)
}

func (p *Provisioner) downloadOne(ctx context.Context, name string) (Framework, error) {
	name = normalize(name)
	target := filepath.Join(p.Dir, name+BundleExt)
	res, err := p.Runner.Run(ctx, runner.Spec{
		Command: p.Binary,
		Args:    []string{"download", "framework", name, "--output", target},
	})
	if err != nil {
		msg := strings.Join(p.parser().Diagnostics(res.Stdout, res.Stderr), "; ")
		if msg == "" {
			msg = err.Error()
		}
		return Framework{}, fmt.Errorf("%w: %s", tools.ErrSubprocessFailed, msg)
	}

	for _, a := range protocol.Frameworks(p.parser().Artifacts(res.Stdout, res.Stderr)) {
		if a.Name == name {
			return Framework{Name: name, Location: a.Path}, nil
		}
	}
	// Some releases print nothing on success; trust the requested output path.
	if info, err := os.Stat(target); err == nil && info.Mode().IsRegular() {
		return Framework{Name: name, Location: target}, nil
	}
	return Framework{}, fmt.Errorf("%w: no download result for %s", tools.ErrMalformedOutput, name)
}

// DownloadAll runs the bulk artifact download and returns every framework
// it reported. Non-framework artifacts are ignored.
func (p *Provisioner) DownloadAll(ctx context.Context) ([]Framework, error) {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare framework dir: %w", err)
	}
	res, err := p.Runner.Run(ctx, runner.Spec{
		Command: p.Binary,
		Args:    []string{"download", "artifacts", "--output", p.Dir},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: download artifacts: %v", tools.ErrSubprocessFailed, err)
	}

	artifacts := protocol.Frameworks(p.parser().Artifacts(res.Stdout, res.Stderr))
	out := make([]Framework, 0, len(artifacts))
	for _, a := range artifacts {
		out = append(out, Framework{Name: a.Name, Location: a.Path})
	}
	return out, nil
}

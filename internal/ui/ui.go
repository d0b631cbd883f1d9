// Package ui is the outward feedback surface of the installer: message
// sinks, help links and wrappers for long running work.
package ui

import (
	"context"

	"ksinstall/internal/tools"
)

// UI is implemented by every front end the manager reports to. The Slow and
// Progress wrappers return whatever the wrapped work returns.
type UI interface {
	Info(msg string)
	Error(msg string)
	Debug(msg string)
	ShowHelpLink(topic, url string)
	Slow(title string, work func() error) error
	Progress(ctx context.Context, title string, cancellable bool, work func(ctx context.Context, report func(tools.Progress)) error) error
}

// Discard runs work without any feedback.
type Discard struct{}

func (Discard) Info(string)                 {}
func (Discard) Error(string)                {}
func (Discard) Debug(string)                {}
func (Discard) ShowHelpLink(string, string) {}

func (Discard) Slow(_ string, work func() error) error { return work() }

func (Discard) Progress(ctx context.Context, _ string, _ bool, work func(context.Context, func(tools.Progress)) error) error {
	return work(ctx, func(tools.Progress) {})
}

var _ UI = Discard{}

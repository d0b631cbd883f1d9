package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/schollz/progressbar/v3"

	"ksinstall/internal/tools"
)

var linkStyle = lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("4"))

// Console reports through a charmbracelet logger and draws progress bars on
// Out when Interactive is set.
type Console struct {
	Logger      *log.Logger
	Out         io.Writer
	Interactive bool
}

// NewConsole returns a console UI writing bars to out.
func NewConsole(logger *log.Logger, out io.Writer, interactive bool) *Console {
	if out == nil {
		out = os.Stderr
	}
	return &Console{Logger: logger, Out: out, Interactive: interactive}
}

func (c *Console) Info(msg string)  { c.Logger.Info(msg) }
func (c *Console) Error(msg string) { c.Logger.Error(msg) }
func (c *Console) Debug(msg string) { c.Logger.Debug(msg) }

func (c *Console) ShowHelpLink(topic, url string) {
	fmt.Fprintf(c.Out, "%s: %s\n", topic, linkStyle.Render(url))
}

// Slow shows a spinner while work runs.
func (c *Console) Slow(title string, work func() error) error {
	if !c.Interactive {
		c.Logger.Info(title)
		return work()
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(c.Out),
		progressbar.OptionSetDescription(title),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	err := work()
	close(done)
	wg.Wait()
	_ = bar.Finish()
	return err
}

// Progress draws a byte progress bar fed by report. When cancellable, an
// interrupt signal cancels the context handed to work.
func (c *Console) Progress(ctx context.Context, title string, cancellable bool, work func(ctx context.Context, report func(tools.Progress)) error) error {
	if cancellable {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
	}
	if !c.Interactive {
		c.Logger.Info(title)
		return work(ctx, func(tools.Progress) {})
	}

	var (
		mu  sync.Mutex
		bar *progressbar.ProgressBar
	)
	report := func(p tools.Progress) {
		mu.Lock()
		defer mu.Unlock()
		if bar == nil {
			max := p.Total
			if p.Indeterminate {
				max = -1
			}
			bar = progressbar.NewOptions64(max,
				progressbar.OptionSetWriter(c.Out),
				progressbar.OptionSetDescription(title),
				progressbar.OptionShowBytes(true),
				progressbar.OptionSetWidth(40),
				progressbar.OptionThrottle(65*time.Millisecond),
				progressbar.OptionSpinnerType(14),
				progressbar.OptionSetRenderBlankState(true),
				progressbar.OptionClearOnFinish(),
			)
		}
		_ = bar.Set64(p.Received)
	}

	err := work(ctx, report)

	mu.Lock()
	if bar != nil {
		if err != nil {
			_ = bar.Clear()
		} else {
			_ = bar.Finish()
		}
	}
	mu.Unlock()
	return err
}

var _ UI = (*Console)(nil)

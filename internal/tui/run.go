package tui

import (
	"context"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// RunWithWork runs the model while work executes in a goroutine and returns
// the work's error. Quitting the display cancels the context handed to
// work, and RunWithWork waits for work to return either way.
func RunWithWork(ctx context.Context, out io.Writer, model ProgressModel, work func(ctx context.Context, send func(tea.Msg)) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(model, tea.WithOutput(out))
	workErr := make(chan error, 1)

	go func() {
		// Let the event loop draw the first frame.
		time.Sleep(50 * time.Millisecond)

		err := work(ctx, func(msg tea.Msg) {
			p.Send(msg)
			time.Sleep(5 * time.Millisecond)
		})
		workErr <- err
		p.Send(WorkDoneMsg{})
	}()

	finalModel, err := p.Run()
	cancel()
	werr := <-workErr
	if err != nil {
		return err
	}
	if m, ok := finalModel.(ProgressModel); ok && m.Err() != nil {
		return m.Err()
	}
	return werr
}

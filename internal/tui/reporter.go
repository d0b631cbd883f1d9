package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"ksinstall/internal/frameworks"
)

// Framework table column headers.
const (
	ColFramework = "FRAMEWORK"
	ColStatus    = "STATUS"
	ColDetail    = "DETAIL"
)

// FrameworkColumns is the column layout of the framework download table.
func FrameworkColumns() []Column {
	return []Column{
		{Header: ColFramework, Width: 16},
		{Header: ColStatus, Width: 12},
		{Header: ColDetail, Width: 48},
	}
}

// NewFrameworkModel builds a table with one pending row per framework.
func NewFrameworkModel(title string, names []string) ProgressModel {
	m := NewProgressModel(title, FrameworkColumns())
	for _, name := range names {
		m.AddRow(name, []string{name, StatusPending, ""})
	}
	return m
}

// FrameworkReporter turns provisioning events into row updates.
type FrameworkReporter struct {
	send func(tea.Msg)
}

// NewFrameworkReporter reports through send, usually tea.Program.Send.
func NewFrameworkReporter(send func(tea.Msg)) *FrameworkReporter {
	return &FrameworkReporter{send: send}
}

func (r *FrameworkReporter) Start(name string) {
	r.send(RowUpdateMsg{
		Key:    name,
		Fields: map[string]string{ColStatus: StatusDownloading},
	})
}

func (r *FrameworkReporter) Complete(name string, fw frameworks.Framework, err error) {
	if err != nil {
		r.send(RowUpdateMsg{
			Key:    name,
			Fields: map[string]string{ColStatus: StatusError, ColDetail: err.Error()},
		})
		return
	}
	r.send(RowUpdateMsg{
		Key:    name,
		Fields: map[string]string{ColStatus: StatusDownloaded, ColDetail: fw.Location},
	})
}

var _ frameworks.Reporter = (*FrameworkReporter)(nil)

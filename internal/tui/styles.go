package tui

import "github.com/charmbracelet/lipgloss"

// Row statuses used by the framework table.
const (
	StatusPending     = "pending"
	StatusDownloading = "downloading"
	StatusDownloaded  = "downloaded"
	StatusPresent     = "present"
	StatusError       = "error"
)

var (
	// HeaderStyle styles the column header row.
	HeaderStyle = lipgloss.NewStyle().Bold(true)

	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))

	statusStyles = map[string]lipgloss.Style{
		StatusDownloaded:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		StatusPresent:     lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		StatusDownloading: lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		StatusError:       lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		StatusPending:     lipgloss.NewStyle().Faint(true),
	}
)

// StatusStyle returns the lipgloss style for a row status.
func StatusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return lipgloss.NewStyle()
}

// terminal reports whether a status means the row will not change again.
func terminal(status string) bool {
	switch status {
	case StatusDownloaded, StatusPresent, StatusError:
		return true
	}
	return false
}

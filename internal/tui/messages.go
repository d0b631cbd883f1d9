package tui

// RowUpdateMsg sets fields of the row with the given key, by column header.
type RowUpdateMsg struct {
	Key    string
	Fields map[string]string
}

// WorkDoneMsg signals that the background work has returned.
type WorkDoneMsg struct{}

// ErrorMsg aborts the display with a fatal error.
type ErrorMsg struct {
	Err error
}

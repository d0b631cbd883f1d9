package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Options configures the process logger.
type Options struct {
	Level  string
	Format string
	// Prefix is shown before every message in text mode.
	Prefix string
}

// New builds a charmbracelet logger writing to w. Unknown levels fall back
// to warn, unknown formats to text.
func New(w io.Writer, opts Options) *log.Logger {
	level, err := log.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil {
		level = log.WarnLevel
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          opts.Prefix,
		ReportTimestamp: level <= log.DebugLevel,
		TimeFormat:      time.Kitchen,
	})

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		logger.SetFormatter(log.JSONFormatter)
	case "logfmt":
		logger.SetFormatter(log.LogfmtFormatter)
	default:
		logger.SetFormatter(log.TextFormatter)
	}
	return logger
}

// Setup builds a logger with New and installs it as the package default so
// log.Info and friends route through it.
func Setup(w io.Writer, opts Options) *log.Logger {
	logger := New(w, opts)
	log.SetDefault(logger)
	return logger
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// NewFile opens a timestamped log file inside dir. The returned closer should
// be closed when logging is no longer needed.
func NewFile(dir string) (*os.File, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("ensure logs directory: %w", err)
	}

	filename := time.Now().Format("20060102-150405") + ".log"
	filePath := filepath.Join(dir, filename)
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, "", fmt.Errorf("open log file: %w", err)
	}
	return file, filePath, nil
}

// Tee returns a writer that copies to both the terminal and the log file.
// A nil file returns w unchanged.
func Tee(w io.Writer, file io.Writer) io.Writer {
	if file == nil {
		return w
	}
	return io.MultiWriter(w, file)
}

// Printer adapts a leveled logger to components that only call Printf.
type Printer struct {
	Logger *log.Logger
	Level  log.Level
}

func (p Printer) Printf(format string, v ...any) {
	p.Logger.Logf(p.Level, format, v...)
}

// DebugPrinter routes Printf calls to logger at debug level.
func DebugPrinter(logger *log.Logger) Printer {
	return Printer{Logger: logger, Level: log.DebugLevel}
}

// ErrorPrinter routes Printf calls to logger at error level, for components
// whose only messages are failures.
func ErrorPrinter(logger *log.Logger) Printer {
	return Printer{Logger: logger, Level: log.ErrorLevel}
}

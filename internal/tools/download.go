package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
)

// Progress is one download progress sample. Fraction is only meaningful
// when Indeterminate is false.
type Progress struct {
	Received      int64
	Total         int64
	Fraction      float64
	Indeterminate bool
}

func newProgress(received, total int64) Progress {
	if total <= 0 {
		return Progress{Received: received, Total: total, Indeterminate: true}
	}
	frac := float64(received) / float64(total)
	if frac > 1 {
		frac = 1
	}
	return Progress{Received: received, Total: total, Fraction: frac}
}

// Logger is the minimal logging surface used by the tools package.
type Logger interface {
	Printf(format string, v ...any)
}

type noopLogger struct{}

func (noopLogger) Printf(string, ...any) {}

// Downloader streams remote assets to disk.
type Downloader struct {
	Client *http.Client
	Logger Logger

	chunkSize int
}

// NewDownloader returns a Downloader using client, or http.DefaultClient.
func NewDownloader(client *http.Client, logger Logger) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Downloader{Client: client, Logger: logger}
}

// Download fetches url into targetDir/fileName, reporting progress after
// every chunk. Every failure, cancellation included, is logged and reported
// as an empty path; a partially written file is removed.
func (d *Downloader) Download(ctx context.Context, url, targetDir, fileName string, progress func(Progress), makeExecutable bool) string {
	dest, err := d.fetch(ctx, url, targetDir, fileName, progress, makeExecutable)
	if err != nil {
		d.logger().Printf("download %s failed: %v", url, err)
		return ""
	}
	return dest
}

func (d *Downloader) logger() Logger {
	if d.Logger == nil {
		return noopLogger{}
	}
	return d.Logger
}

func (d *Downloader) fetch(ctx context.Context, url, targetDir, fileName string, progress func(Progress), makeExecutable bool) (string, error) {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: prepare download destination: %v", ErrDownloadFailed, err)
	}
	dest := filepath.Join(targetDir, fileName)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", ErrDownloadFailed, err)
	}
	req.Header.Set("User-Agent", userAgent)

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: unexpected status %s", ErrDownloadFailed, resp.Status)
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return "", fmt.Errorf("%w: empty response body", ErrDownloadFailed)
	}

	tmpFile, err := os.CreateTemp(targetDir, "download-*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %v", ErrDownloadFailed, err)
	}
	tmpPath := tmpFile.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := copyWithProgress(tmpFile, resp.Body, resp.ContentLength, d.chunk(), progress); err != nil {
		tmpFile.Close()
		return "", fmt.Errorf("%w: write %s: %v", ErrDownloadFailed, fileName, err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("%w: close temp file: %v", ErrDownloadFailed, err)
	}

	if makeExecutable && runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0o755); err != nil {
			return "", fmt.Errorf("%w: chmod %s: %v", ErrDownloadFailed, fileName, err)
		}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return "", fmt.Errorf("%w: finalize download: %v", ErrDownloadFailed, err)
	}
	committed = true
	return dest, nil
}

func (d *Downloader) chunk() int {
	if d.chunkSize > 0 {
		return d.chunkSize
	}
	return 32 * 1024
}

func copyWithProgress(dst io.Writer, src io.Reader, total int64, chunk int, progress func(Progress)) error {
	buf := make([]byte, chunk)
	var received int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return err
			}
			received += int64(n)
			if progress != nil {
				progress(newProgress(received, total))
			}
		}
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

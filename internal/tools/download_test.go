package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// failingBody yields n bytes and then a read error.
type failingBody struct {
	remaining int
}

func (b *failingBody) Read(p []byte) (int, error) {
	if b.remaining <= 0 {
		return 0, errors.New("connection reset")
	}
	n := len(p)
	if n > b.remaining {
		n = b.remaining
	}
	for i := 0; i < n; i++ {
		p[i] = 'x'
	}
	b.remaining -= n
	return n, nil
}

func (b *failingBody) Close() error { return nil }

func TestDownloadSuccess(t *testing.T) {
	payload := bytes.Repeat([]byte("k"), 100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "nested", "bin")
	d := NewDownloader(srv.Client(), nil)
	d.chunkSize = 10

	var samples []Progress
	got := d.Download(context.Background(), srv.URL+"/kubescape-ubuntu-latest", dir, "kubescape", func(p Progress) {
		samples = append(samples, p)
	}, true)

	want := filepath.Join(dir, "kubescape")
	if got != want {
		t.Fatalf("expected %s, got %q", want, got)
	}
	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatal("downloaded content mismatch")
	}
	if len(samples) == 0 {
		t.Fatal("expected progress samples")
	}
	last := samples[len(samples)-1]
	if last.Indeterminate || last.Fraction != 1 || last.Received != 100 {
		t.Fatalf("unexpected final sample %+v", last)
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].Fraction < samples[i-1].Fraction {
			t.Fatalf("progress went backwards: %+v", samples)
		}
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(got)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if info.Mode().Perm()&0o111 == 0 {
			t.Fatalf("expected executable bits, got %v", info.Mode())
		}
	}
}

func TestDownloadUnknownLengthIsIndeterminate(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode:    http.StatusOK,
			Status:        "200 OK",
			Body:          io.NopCloser(strings.NewReader("framework bytes")),
			ContentLength: -1,
			Request:       r,
		}, nil
	})}

	var samples []Progress
	d := NewDownloader(client, nil)
	got := d.Download(context.Background(), "https://example.invalid/asset", t.TempDir(), "asset", func(p Progress) {
		samples = append(samples, p)
	}, false)
	if got == "" {
		t.Fatal("expected download to succeed")
	}
	for _, p := range samples {
		if !p.Indeterminate {
			t.Fatalf("expected indeterminate samples, got %+v", p)
		}
		if p.Fraction != 0 {
			t.Fatalf("indeterminate sample carries fraction %v", p.Fraction)
		}
	}
}

func TestDownloadMidStreamErrorRemovesPartialFile(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode:    http.StatusOK,
			Status:        "200 OK",
			Body:          &failingBody{remaining: 64},
			ContentLength: 1024,
			Request:       r,
		}, nil
	})}

	dir := t.TempDir()
	var logged bytes.Buffer
	d := NewDownloader(client, printfLogger{&logged})
	d.chunkSize = 16

	got := d.Download(context.Background(), "https://example.invalid/asset", dir, "kubescape", nil, true)
	if got != "" {
		t.Fatalf("expected empty path, got %q", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected partial file to be removed, found %d entries", len(entries))
	}
	if !strings.Contains(logged.String(), "connection reset") {
		t.Fatalf("expected failure to be logged, got %q", logged.String())
	}
}

func TestDownloadNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	if got := NewDownloader(srv.Client(), nil).Download(context.Background(), srv.URL+"/missing", t.TempDir(), "x", nil, false); got != "" {
		t.Fatalf("expected empty path, got %q", got)
	}
}

func TestDownloadCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	if got := NewDownloader(srv.Client(), nil).Download(ctx, srv.URL, dir, "x", nil, false); got != "" {
		t.Fatalf("expected empty path after cancellation, got %q", got)
	}
	if ok, _ := fileExists(filepath.Join(dir, "x")); ok {
		t.Fatal("cancelled download left a file behind")
	}
}

func TestNewProgress(t *testing.T) {
	if p := newProgress(50, 100); p.Fraction != 0.5 || p.Indeterminate {
		t.Fatalf("unexpected %+v", p)
	}
	if p := newProgress(50, 0); !p.Indeterminate {
		t.Fatalf("expected indeterminate, got %+v", p)
	}
	if p := newProgress(150, 100); p.Fraction != 1 {
		t.Fatalf("expected clamp to 1, got %+v", p)
	}
}

type printfLogger struct{ w io.Writer }

func (l printfLogger) Printf(format string, v ...any) {
	_, _ = io.WriteString(l.w, strings.TrimSpace(fmt.Sprintf(format, v...))+"\n")
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

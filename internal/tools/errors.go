package tools

import "errors"

var (
	// ErrNotInstalled marks access to the scanner before it was confirmed present.
	ErrNotInstalled = errors.New("kubescape is not installed")
	// ErrDownloadFailed covers network, filesystem or cancellation faults while
	// retrieving the binary or a framework bundle.
	ErrDownloadFailed = errors.New("download failed")
	// ErrSubprocessFailed marks a non-zero exit or spawn error from the scanner.
	ErrSubprocessFailed = errors.New("kubescape command failed")
	// ErrMalformedOutput marks output from the registry or the scanner that
	// could not be parsed.
	ErrMalformedOutput = errors.New("malformed output")
)

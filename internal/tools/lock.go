package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StaleLockAge is how old a lock file may get before it is treated as left
// behind by a process that died mid install.
const StaleLockAge = 10 * time.Minute

// AcquireInstallLock takes an exclusive lock file inside dir so concurrent
// processes do not replace the binary at the same time. It waits until the
// lock is free, stale, or ctx is done. The returned func releases the lock.
func AcquireInstallLock(ctx context.Context, dir string) (func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare install dir: %w", err)
	}

	lockPath := filepath.Join(dir, "kubescape.lock")
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			_ = f.Close()
			return func() { _ = os.Remove(lockPath) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if removeStaleLock(lockPath) {
			continue
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func removeStaleLock(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		// Released between the open and the stat.
		return errors.Is(err, os.ErrNotExist)
	}
	if time.Since(info.ModTime()) < StaleLockAge {
		return false
	}
	return os.Remove(path) == nil
}

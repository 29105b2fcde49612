package fs

import (
	"context"
	"fmt"
	"os"
	"time"
)

// fileLock is a cross-process lock backed by an exclusively created file.
type fileLock struct {
	path    string
	timeout time.Duration
}

func newFileLock(path string, timeout time.Duration) *fileLock {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &fileLock{path: path, timeout: timeout}
}

// Acquire blocks until the lock is held, the timeout passes or ctx is done.
func (l *fileLock) Acquire(ctx context.Context) (func(), error) {
	deadline := time.Now().Add(l.timeout)
	for {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL, 0666)
		if err == nil {
			f.Close()
			return func() { os.Remove(l.path) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("lock %s held for more than %s", l.path, l.timeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

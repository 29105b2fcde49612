// Package atomicfile writes files through a temp file and rename, so readers
// never observe a partially written file.
package atomicfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// TempFilePrefix is the prefix used for temporary files.
const TempFilePrefix = "casebook-tmp-"

// Write streams r into filename atomically and returns the number of bytes written.
func Write(filename string, r io.Reader, perm os.FileMode) (int64, error) {
	dir := filepath.Dir(filename)

	// Same directory as the target so the rename stays atomic.
	tmpFile, err := os.CreateTemp(dir, TempFilePrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmpFile.Name())

	n, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return 0, fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return 0, fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpFile.Name(), perm); err != nil {
		return 0, fmt.Errorf("failed to chmod temp file: %w", err)
	}

	if err := os.Rename(tmpFile.Name(), filename); err != nil {
		return 0, fmt.Errorf("failed to rename temp file to %s: %w", filename, err)
	}

	return n, nil
}

// WriteFile is Write for an in-memory payload.
func WriteFile(filename string, data []byte, perm os.FileMode) error {
	_, err := Write(filename, bytes.NewReader(data), perm)
	return err
}

package atomicfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestWrite(t *testing.T) {
	t.Run("Creates New File", func(t *testing.T) {
		tmpDir := t.TempDir()
		filename := filepath.Join(tmpDir, "test.txt")

		n, err := Write(filename, strings.NewReader("hello atomic"), 0644)
		if err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if n != int64(len("hello atomic")) {
			t.Errorf("expected %d bytes, got %d", len("hello atomic"), n)
		}

		got, err := os.ReadFile(filename)
		if err != nil {
			t.Fatalf("Failed to read file: %v", err)
		}
		if string(got) != "hello atomic" {
			t.Errorf("Expected content 'hello atomic', got '%s'", string(got))
		}
	})

	t.Run("Overwrites Existing File", func(t *testing.T) {
		tmpDir := t.TempDir()
		filename := filepath.Join(tmpDir, "test.txt")

		if err := os.WriteFile(filename, []byte("initial"), 0644); err != nil {
			t.Fatalf("Setup failed: %v", err)
		}
		if err := WriteFile(filename, []byte("overwritten"), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}

		got, err := os.ReadFile(filename)
		if err != nil {
			t.Fatalf("Failed to read file: %v", err)
		}
		if string(got) != "overwritten" {
			t.Errorf("Expected content 'overwritten', got '%s'", string(got))
		}
	})

	t.Run("Failed Copy Leaves Target Untouched", func(t *testing.T) {
		tmpDir := t.TempDir()
		filename := filepath.Join(tmpDir, "test.txt")
		if err := os.WriteFile(filename, []byte("keep"), 0644); err != nil {
			t.Fatalf("Setup failed: %v", err)
		}

		if _, err := Write(filename, failingReader{}, 0644); err == nil {
			t.Fatal("expected error from failing reader")
		}

		got, _ := os.ReadFile(filename)
		if string(got) != "keep" {
			t.Errorf("target was modified: %q", got)
		}

		entries, _ := os.ReadDir(tmpDir)
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), TempFilePrefix) {
				t.Errorf("temp file left behind: %s", e.Name())
			}
		}
	})
}

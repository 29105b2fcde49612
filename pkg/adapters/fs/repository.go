// Package fs stores records in a single file inside the vault directory.
// Every write rewrites the file atomically under a cross-process lock, so
// several casebook processes may share one vault.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/casebook/internal/atomicfile"
	"github.com/aretw0/casebook/pkg/core"
)

const (
	// DefaultFileName is the records file created inside the vault.
	DefaultFileName = "records.yaml"
	// DefaultSystemDir holds lock files and other bookkeeping.
	DefaultSystemDir = ".casebook"
)

// Config holds the configuration for the filesystem repository.
type Config struct {
	Path      string
	FileName  string // records file, relative to Path; extension selects the format
	SystemDir string // e.g. ".casebook"
	MustExist bool
	Logger    *slog.Logger
	// LockTimeout bounds how long a write waits for another process. Zero means 5s.
	LockTimeout time.Duration
}

// Repository implements core.Repository on top of one records file.
type Repository struct {
	Path   string
	config Config
	codec  Serializer
	lock   *fileLock
	logger *slog.Logger

	mu        sync.RWMutex
	count     int
	lastWrite *time.Time
}

// NewRepository creates a new filesystem-backed repository.
func NewRepository(config Config) (*Repository, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("vault path is required")
	}
	if config.FileName == "" {
		config.FileName = DefaultFileName
	}
	if config.SystemDir == "" {
		config.SystemDir = DefaultSystemDir
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	codec, err := SerializerFor(config.FileName)
	if err != nil {
		return nil, err
	}
	lockPath := filepath.Join(config.Path, config.SystemDir, "records.lock")
	return &Repository{
		Path:   config.Path,
		config: config,
		codec:  codec,
		lock:   newFileLock(lockPath, config.LockTimeout),
		logger: config.Logger,
	}, nil
}

// File returns the absolute path of the records file.
func (r *Repository) File() string {
	return filepath.Join(r.Path, r.config.FileName)
}

// Initialize creates the vault and system directories.
func (r *Repository) Initialize(ctx context.Context) error {
	if r.config.MustExist {
		info, err := os.Stat(r.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("vault path does not exist: %s", r.Path)
		}
		if err != nil {
			return fmt.Errorf("failed to stat vault: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", r.Path)
		}
	} else if err := os.MkdirAll(r.Path, 0755); err != nil {
		return fmt.Errorf("failed to create vault directory: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(r.Path, r.config.SystemDir), 0755); err != nil {
		return fmt.Errorf("failed to create system directory: %w", err)
	}
	return nil
}

// Load returns every stored record in insertion order. A missing records
// file is an empty vault.
func (r *Repository) Load(ctx context.Context) ([]core.Record, error) {
	records, err := r.read()
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.count = len(records)
	r.mu.Unlock()
	return records, nil
}

// Save inserts or replaces a record. A replaced record keeps its position.
func (r *Repository) Save(ctx context.Context, rec core.Record) error {
	if rec.ID.IsZero() {
		return fmt.Errorf("record has no ID")
	}
	return r.modify(ctx, "save", func(records []core.Record) ([]core.Record, error) {
		for i := range records {
			if records[i].ID == rec.ID {
				records[i] = rec
				return records, nil
			}
		}
		return append(records, rec), nil
	})
}

// Replace overwrites a record in place. It fails with core.ErrNotFound when
// the file no longer holds the record, e.g. after another process deleted it.
func (r *Repository) Replace(ctx context.Context, rec core.Record) error {
	return r.modify(ctx, "replace", func(records []core.Record) ([]core.Record, error) {
		for i := range records {
			if records[i].ID == rec.ID {
				records[i] = rec
				return records, nil
			}
		}
		return nil, fmt.Errorf("replace %s: %w", rec.ID, core.ErrNotFound)
	})
}

// Delete removes a record. Deleting an absent record is not an error.
func (r *Repository) Delete(ctx context.Context, id core.ID) error {
	return r.modify(ctx, "delete", func(records []core.Record) ([]core.Record, error) {
		for i := range records {
			if records[i].ID == id {
				return append(records[:i], records[i+1:]...), nil
			}
		}
		return records, nil
	})
}

// modify performs a locked read-modify-write of the records file. The file
// is re-read under the lock so writes from other processes are kept.
func (r *Repository) modify(ctx context.Context, op string, fn func([]core.Record) ([]core.Record, error)) error {
	unlock, err := r.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire records lock: %w", err)
	}
	defer unlock()

	records, err := r.read()
	if err != nil {
		return err
	}
	if records, err = fn(records); err != nil {
		return err
	}

	data, err := r.codec.Serialize(records)
	if err != nil {
		return fmt.Errorf("failed to serialize records: %w", err)
	}
	if err := atomicfile.WriteFile(r.File(), data, 0644); err != nil {
		return fmt.Errorf("%w: %s records: %w", core.ErrIO, op, err)
	}

	now := time.Now()
	r.mu.Lock()
	r.count = len(records)
	r.lastWrite = &now
	r.mu.Unlock()

	r.logger.Debug("records file written", "op", op, "file", r.config.FileName, "records", len(records))
	return nil
}

func (r *Repository) read() ([]core.Record, error) {
	f, err := os.Open(r.File())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: open records: %w", core.ErrIO, err)
	}
	defer f.Close()

	records, err := r.codec.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", r.config.FileName, err)
	}
	return records, nil
}

var _ core.Repository = (*Repository)(nil)
var _ core.Replacer = (*Repository)(nil)

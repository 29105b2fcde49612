package casebook

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/casebook/internal/platform"
	"github.com/aretw0/casebook/pkg/asset"
	"github.com/aretw0/casebook/pkg/core"
	"github.com/aretw0/casebook/pkg/reconcile"
	"github.com/aretw0/casebook/pkg/session"
)

// --- Types ---

// App is an opened vault.
type App = platform.App

// Record is a case record.
type Record = core.Record

// ID identifies a record.
type ID = core.ID

// Snapshot is the ordered record collection at one instant.
type Snapshot = core.Snapshot

// Session is an edit session on one record.
type Session = session.Session

// Op is one step of a reconcile edit script.
type Op = reconcile.Op

// Config is the content of casebook.yaml.
type Config = platform.Config

// --- Errors ---

var (
	ErrNotFound    = core.ErrNotFound
	ErrIO          = core.ErrIO
	ErrGrantDenied = core.ErrGrantDenied
	ErrReadOnly    = core.ErrReadOnly
)

// --- Configuration ---

// Option defines a functional option for configuring casebook.
type Option = platform.Option

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithRepository allows injecting a custom storage adapter.
func WithRepository(repo core.Repository) Option {
	return platform.WithRepository(repo)
}

// WithAdapter selects the storage adapter by name ("fs", "sqlite", "memory").
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithAssetDir sets the photo directory.
func WithAssetDir(dir string) Option {
	return platform.WithAssetDir(dir)
}

// WithSystemDir allows specifying the hidden directory name (e.g. ".casebook").
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithRecordsFile sets the records file name of the fs adapter.
func WithRecordsFile(name string) Option {
	return platform.WithRecordsFile(name)
}

// WithAssetMirror sets where captured photos are copied.
func WithAssetMirror(m asset.Mirror) Option {
	return platform.WithAssetMirror(m)
}

// WithMetrics registers store metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return platform.WithMetrics(reg)
}

// WithReadOnly enables read-only mode.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithMustExist ensures the vault directory must already exist.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithDevSafety controls the `go run`/`go test` sandbox.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithCaptureSettle sets how long a photo must stay unchanged before a capture completes.
func WithCaptureSettle(d time.Duration) Option {
	return platform.WithCaptureSettle(d)
}

// --- Factory ---

// New opens (creating if needed) the vault at path.
func New(ctx context.Context, path string, opts ...Option) (*App, error) {
	return platform.New(ctx, path, opts...)
}

// --- Helpers ---

// Diff computes the edit script turning prev into next.
func Diff(prev, next []Record) []Op {
	return reconcile.Diff(prev, next)
}

// NewestFirst returns records in reverse insertion order for display.
func NewestFirst(records []Record) []Record {
	return reconcile.NewestFirst(records)
}

// ParseID parses the textual form of a record id.
func ParseID(s string) (ID, error) {
	return core.ParseID(s)
}

// FindVaultRoot looks upwards for a vault root indicator.
func FindVaultRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}

// IsDevRun checks if the current process is running via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

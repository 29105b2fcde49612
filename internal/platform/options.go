package platform

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/casebook/pkg/asset"
	"github.com/aretw0/casebook/pkg/core"
)

// Adapter names accepted by WithAdapter.
const (
	AdapterFS     = "fs"
	AdapterSQLite = "sqlite"
	AdapterMemory = "memory"
)

// options holds the internal configuration for a casebook App.
type options struct {
	repository  core.Repository
	logger      *slog.Logger
	adapter     string
	assetDir    string
	systemDir   string
	recordsFile string
	mirror      asset.Mirror
	registerer  prometheus.Registerer
	readOnly    bool
	mustExist   bool
	forceTemp   bool
	devSafety   bool
	settle      time.Duration
	noConfig    bool
}

// Option defines a functional option for configuring casebook.
type Option func(*options)

// defaultOptions returns the default configuration. The adapter is left
// empty so the vault config file can choose it.
func defaultOptions() *options {
	return &options{
		systemDir: DefaultSystemDir,
		devSafety: true,
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRepository allows injecting a custom storage adapter (e.g. a mock).
// If provided, the adapter setting is ignored.
func WithRepository(repo core.Repository) Option {
	return func(o *options) {
		o.repository = repo
	}
}

// WithAdapter selects the storage adapter by name: "fs", "sqlite" or "memory".
// Defaults to the vault config, then "fs".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithAssetDir sets the photo directory. Relative paths are resolved
// against the vault. Defaults to "photos".
func WithAssetDir(dir string) Option {
	return func(o *options) {
		o.assetDir = dir
	}
}

// WithSystemDir allows specifying the hidden directory name (e.g. ".casebook").
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.systemDir = name
	}
}

// WithRecordsFile sets the records file of the fs adapter. The extension
// selects the format (.yaml or .json).
func WithRecordsFile(name string) Option {
	return func(o *options) {
		o.recordsFile = name
	}
}

// WithAssetMirror sets where captured photos are copied. It overrides any
// mirror configured in the vault config or environment.
func WithAssetMirror(m asset.Mirror) Option {
	return func(o *options) {
		o.mirror = m
	}
}

// WithMetrics registers store metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithReadOnly enables read-only mode.
// In this mode:
// 1. Store mutations return core.ErrReadOnly.
// 2. Initialization (mkdir, schema) is skipped.
// 3. The dev sandbox is bypassed (uses the real path).
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.readOnly = enabled
	}
}

// WithMustExist ensures the vault directory must already exist.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.mustExist = must
	}
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.forceTemp = force
	}
}

// WithDevSafety controls the sandbox used when running via `go run` or
// `go test`. By default (true) the vault is re-rooted into a temporary
// directory to prevent accidental data loss.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.devSafety = enabled
	}
}

// WithCaptureSettle sets how long a photo file must stay unchanged before a
// pending capture completes.
func WithCaptureSettle(d time.Duration) Option {
	return func(o *options) {
		o.settle = d
	}
}

// WithoutConfigFile ignores casebook.yaml in the vault.
func WithoutConfigFile() Option {
	return func(o *options) {
		o.noConfig = true
	}
}

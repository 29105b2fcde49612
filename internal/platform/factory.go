package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/casebook/pkg/adapters/fs"
	"github.com/aretw0/casebook/pkg/adapters/metrics"
	"github.com/aretw0/casebook/pkg/adapters/s3"
	"github.com/aretw0/casebook/pkg/adapters/sqlite"
	"github.com/aretw0/casebook/pkg/asset"
	"github.com/aretw0/casebook/pkg/core"
	"github.com/aretw0/casebook/pkg/session"
)

// App is a wired casebook vault: the record store plus the photo manager.
// Its lifecycle belongs to the caller that created it.
type App struct {
	Root       string
	Store      *core.Store
	Assets     *asset.Manager
	Repository core.Repository
	Config     Config

	logger *slog.Logger
}

// New opens the vault at path.
//
//	app, err := casebook.New("./vault", casebook.WithAdapter("sqlite"))
//
// The path is adapter-independent: fs keeps the records file in it, sqlite
// keeps its database in the system directory.
func New(ctx context.Context, path string, opts ...Option) (*App, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	root := resolveRoot(path, o)

	var cfg Config
	if !o.noConfig {
		var err error
		if cfg, err = LoadConfig(root); err != nil {
			return nil, err
		}
	}

	repo, err := initRepository(ctx, root, cfg, o)
	if err != nil {
		return nil, err
	}

	storeOpts := []core.Option{
		core.WithLogger(o.logger),
		core.WithReadOnly(o.readOnly),
	}
	if o.registerer != nil {
		col, err := metrics.New(o.registerer)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		storeOpts = append(storeOpts, core.WithMetrics(col))
	}

	store, err := core.NewStore(ctx, repo, storeOpts...)
	if err != nil {
		if c, ok := repo.(core.Closer); ok {
			_ = c.Close()
		}
		return nil, err
	}

	mirror, err := resolveMirror(ctx, cfg, o)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	assetDir := firstNonEmpty(o.assetDir, cfg.AssetDir, DefaultAssetDir)
	if !filepath.IsAbs(assetDir) {
		assetDir = filepath.Join(root, assetDir)
	}
	assets, err := asset.NewManager(asset.Config{
		Root:   assetDir,
		Logger: o.logger,
		Mirror: mirror,
		Settle: o.settle,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	o.logger.Debug("vault opened", "root", root, "records", store.Len(), "assets", assetDir)
	return &App{
		Root:       root,
		Store:      store,
		Assets:     assets,
		Repository: repo,
		Config:     cfg,
		logger:     o.logger,
	}, nil
}

// Close releases the repository.
func (a *App) Close() error {
	return a.Store.Close()
}

// OpenSession starts an edit session for id.
func (a *App) OpenSession(ctx context.Context, id core.ID) (*session.Session, error) {
	return session.Open(ctx, a.Store, a.Assets, id, session.WithLogger(a.logger))
}

// Delete removes the record and its photo.
func (a *App) Delete(ctx context.Context, id core.ID) error {
	if err := a.Store.Delete(ctx, id); err != nil {
		return err
	}
	return a.Assets.Remove(ctx, id)
}

// Orphans returns the ids of photos whose record no longer exists.
func (a *App) Orphans() ([]core.ID, error) {
	ids, err := a.Assets.List()
	if err != nil {
		return nil, err
	}
	var orphans []core.ID
	for _, id := range ids {
		if _, err := a.Store.Get(id); errors.Is(err, core.ErrNotFound) {
			orphans = append(orphans, id)
		}
	}
	return orphans, nil
}

// Prune deletes orphaned photos and returns their ids.
func (a *App) Prune(ctx context.Context) ([]core.ID, error) {
	orphans, err := a.Orphans()
	if err != nil {
		return nil, err
	}
	for _, id := range orphans {
		if err := a.Assets.Remove(ctx, id); err != nil {
			return nil, err
		}
		a.logger.Debug("orphan photo removed", "id", id)
	}
	return orphans, nil
}

func resolveRoot(path string, o *options) string {
	bypassSafety := o.readOnly || !o.devSafety
	useTemp := o.forceTemp || (IsDevRun() && !bypassSafety)
	root := ResolveVaultPath(path, useTemp)

	if useTemp {
		o.logger.Warn("running in SAFE MODE (Dev/Test)", "original_path", path, "resolved_path", root)
	} else if IsDevRun() && o.readOnly {
		o.logger.Debug("running in READ-ONLY mode (bypassing dev sandbox)", "path", root)
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return root
}

// initRepository builds and initializes the repository selected by the
// options or the vault config. The memory adapter has no repository.
func initRepository(ctx context.Context, root string, cfg Config, o *options) (core.Repository, error) {
	if o.repository != nil {
		return o.repository, nil
	}

	var repo core.Repository
	switch adapter := firstNonEmpty(o.adapter, cfg.Adapter, AdapterFS); adapter {
	case AdapterMemory:
		return nil, nil
	case AdapterFS:
		fsRepo, err := fs.NewRepository(fs.Config{
			Path:      root,
			FileName:  firstNonEmpty(o.recordsFile, cfg.RecordsFile),
			SystemDir: o.systemDir,
			MustExist: o.mustExist || o.readOnly,
			Logger:    o.logger,
		})
		if err != nil {
			return nil, err
		}
		repo = fsRepo
	case AdapterSQLite:
		dbRepo, err := sqlite.Open(filepath.Join(root, o.systemDir, sqlite.DefaultFileName), o.logger)
		if err != nil {
			return nil, err
		}
		repo = dbRepo
	default:
		return nil, fmt.Errorf("unknown adapter: %s", adapter)
	}

	if o.readOnly {
		return repo, nil
	}
	if err := repo.Initialize(ctx); err != nil {
		if c, ok := repo.(core.Closer); ok {
			_ = c.Close()
		}
		return nil, err
	}
	return repo, nil
}

func resolveMirror(ctx context.Context, cfg Config, o *options) (asset.Mirror, error) {
	if o.mirror != nil {
		return o.mirror, nil
	}
	mc, ok := cfg.mirrorConfig()
	if !ok {
		return nil, nil
	}
	mc.Logger = o.logger
	m, err := s3.New(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("failed to configure photo mirror: %w", err)
	}
	return m, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

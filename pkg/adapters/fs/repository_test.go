package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/casebook/pkg/adapters/fs"
	"github.com/aretw0/casebook/pkg/core"
)

// setupRepo creates an initialized repository inside a fresh vault.
func setupRepo(t *testing.T, opts ...func(*fs.Config)) (*fs.Repository, string) {
	t.Helper()

	vaultPath := filepath.Join(t.TempDir(), "vault")
	cfg := fs.Config{Path: vaultPath}
	for _, opt := range opts {
		opt(&cfg)
	}

	repo, err := fs.NewRepository(cfg)
	require.NoError(t, err)
	require.NoError(t, repo.Initialize(context.Background()))
	return repo, vaultPath
}

func record(title string) core.Record {
	r := core.NewRecord()
	r.Title = title
	return r
}

func TestInitialize(t *testing.T) {
	t.Run("Creates Directory if Missing", func(t *testing.T) {
		_, path := setupRepo(t)
		info, err := os.Stat(filepath.Join(path, fs.DefaultSystemDir))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("Fails if MustExist and Missing", func(t *testing.T) {
		repo, err := fs.NewRepository(fs.Config{
			Path:      filepath.Join(t.TempDir(), "missing"),
			MustExist: true,
		})
		require.NoError(t, err)
		assert.Error(t, repo.Initialize(context.Background()))
	})

	t.Run("Rejects Unknown Format", func(t *testing.T) {
		_, err := fs.NewRepository(fs.Config{Path: t.TempDir(), FileName: "records.csv"})
		assert.Error(t, err)
	})
}

func TestLoad_EmptyVault(t *testing.T) {
	repo, _ := setupRepo(t)
	records, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSaveLoad_PreservesOrderAndPosition(t *testing.T) {
	for _, name := range []string{"records.yaml", "records.json"} {
		t.Run(name, func(t *testing.T) {
			repo, _ := setupRepo(t, func(c *fs.Config) { c.FileName = name })
			ctx := context.Background()

			a, b, c := record("a"), record("b"), record("c")
			for _, r := range []core.Record{a, b, c} {
				require.NoError(t, repo.Save(ctx, r))
			}

			b.Title = "b2"
			b.Solved = true
			b.Suspect = "Plum"
			require.NoError(t, repo.Save(ctx, b))

			records, err := repo.Load(ctx)
			require.NoError(t, err)
			require.Len(t, records, 3)
			assert.Equal(t, a.ID, records[0].ID)
			assert.True(t, b.Equal(records[1]), "got %+v", records[1])
			assert.Equal(t, c.ID, records[2].ID)
		})
	}
}

func TestDelete(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	a, b := record("a"), record("b")
	require.NoError(t, repo.Save(ctx, a))
	require.NoError(t, repo.Save(ctx, b))

	require.NoError(t, repo.Delete(ctx, a.ID))
	require.NoError(t, repo.Delete(ctx, a.ID))

	records, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, b.ID, records[0].ID)
}

func TestSave_RejectsZeroID(t *testing.T) {
	repo, _ := setupRepo(t)
	assert.Error(t, repo.Save(context.Background(), core.Record{Title: "orphan"}))
}

func TestLoad_CorruptFile(t *testing.T) {
	repo, _ := setupRepo(t)
	require.NoError(t, os.WriteFile(repo.File(), []byte("records: [unterminated"), 0644))

	_, err := repo.Load(context.Background())
	assert.Error(t, err)
}

func TestLoad_NewerVersionRejected(t *testing.T) {
	repo, _ := setupRepo(t)
	require.NoError(t, os.WriteFile(repo.File(), []byte("version: 99\nrecords: []\n"), 0644))

	_, err := repo.Load(context.Background())
	assert.Error(t, err)
}

func TestSave_KeepsWritesFromOtherProcesses(t *testing.T) {
	repo1, path := setupRepo(t)
	repo2, err := fs.NewRepository(fs.Config{Path: path})
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo1.Save(ctx, record("one")))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, repo2.Save(ctx, record("two")))
		}()
	}
	wg.Wait()

	records, err := repo1.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 20)
}

func TestSave_WaitsForLock(t *testing.T) {
	repo, path := setupRepo(t, func(c *fs.Config) { c.LockTimeout = 50 * time.Millisecond })
	lockPath := filepath.Join(path, fs.DefaultSystemDir, "records.lock")
	require.NoError(t, os.WriteFile(lockPath, nil, 0644))

	err := repo.Save(context.Background(), record("blocked"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "lock"))

	require.NoError(t, os.Remove(lockPath))
	assert.NoError(t, repo.Save(context.Background(), record("free")))
}

func TestStore_WithFSRepository(t *testing.T) {
	repo, path := setupRepo(t)
	ctx := context.Background()

	store, err := core.NewStore(ctx, repo)
	require.NoError(t, err)
	a, err := store.Create(ctx)
	require.NoError(t, err)
	a.Title = "persisted"
	require.NoError(t, store.Update(ctx, a))
	_, err = store.Create(ctx)
	require.NoError(t, err)

	reopened, err := fs.NewRepository(fs.Config{Path: path})
	require.NoError(t, err)
	again, err := core.NewStore(ctx, reopened)
	require.NoError(t, err)
	assert.True(t, store.List().Equal(again.List()))

	state := repo.State().(fs.RepositoryState)
	assert.Equal(t, 2, state.Records)
	assert.NotNil(t, state.LastWrite)
}

func TestStore_UpdateDoesNotResurrectRecordDeletedElsewhere(t *testing.T) {
	repo, path := setupRepo(t)
	ctx := context.Background()

	store, err := core.NewStore(ctx, repo)
	require.NoError(t, err)
	a, err := store.Create(ctx)
	require.NoError(t, err)
	b, err := store.Create(ctx)
	require.NoError(t, err)

	other, err := fs.NewRepository(fs.Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, other.Delete(ctx, a.ID))

	a.Title = "stale edit"
	err = store.Update(ctx, a)
	require.ErrorIs(t, err, core.ErrNotFound)

	records, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, b.ID, records[0].ID)

	got, err := store.Get(a.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Title)
}

package core_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/casebook/pkg/core"
)

// MockRepository implements core.Repository in memory and can be told to fail.
type MockRepository struct {
	mu       sync.Mutex
	records  []core.Record
	failSave bool
	saves    int
}

func (m *MockRepository) Initialize(ctx context.Context) error { return nil }

func (m *MockRepository) Load(ctx context.Context) ([]core.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Record(nil), m.records...), nil
}

func (m *MockRepository) Save(ctx context.Context, r core.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errors.New("disk full")
	}
	m.saves++
	for i := range m.records {
		if m.records[i].ID == r.ID {
			m.records[i] = r
			return nil
		}
	}
	m.records = append(m.records, r)
	return nil
}

func (m *MockRepository) Delete(ctx context.Context, id core.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return nil
}

func newStore(t *testing.T) *core.Store {
	t.Helper()
	s, err := core.NewStore(context.Background(), nil)
	require.NoError(t, err)
	return s
}

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	r, err := s.Create(ctx)
	require.NoError(t, err)
	assert.False(t, r.ID.IsZero())
	assert.Empty(t, r.Title)
	assert.False(t, r.HasSuspect())

	got, err := s.Get(r.ID)
	require.NoError(t, err)
	assert.True(t, got.Equal(r))

	r.Title = "Stolen stapler"
	r.Solved = true
	require.NoError(t, s.Update(ctx, r))

	got, err = s.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Stolen stapler", got.Title)
	assert.True(t, got.Solved)

	require.NoError(t, s.Delete(ctx, r.ID))
	_, err = s.Get(r.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Empty(t, s.List())
}

func TestStore_UpdateKeepsPosition(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a, _ := s.Create(ctx)
	b, _ := s.Create(ctx)
	c, _ := s.Create(ctx)

	b.Title = "changed"
	require.NoError(t, s.Update(ctx, b))

	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, []core.ID{a.ID, b.ID, c.ID}, []core.ID{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, "changed", list[1].Title)
}

// TestStore_ReferenceModel replays random operation sequences against a
// plain slice model and compares the resulting lists.
func TestStore_ReferenceModel(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		s := newStore(t)
		var model []core.Record

		for step := 0; step < 60; step++ {
			switch op := rng.Intn(4); {
			case op == 0 || len(model) == 0:
				r, err := s.Create(ctx)
				require.NoError(t, err)
				model = append(model, r)
			case op == 1 || op == 2:
				i := rng.Intn(len(model))
				r := model[i]
				r.Title = randomTitle(rng)
				r.Solved = rng.Intn(2) == 0
				require.NoError(t, s.Update(ctx, r))
				model[i] = r
			default:
				i := rng.Intn(len(model))
				require.NoError(t, s.Delete(ctx, model[i].ID))
				model = append(model[:i], model[i+1:]...)
			}
		}

		assert.True(t, core.Snapshot(model).Equal(s.List()), "round %d diverged", round)
	}
}

func TestStore_UpdateMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	existing, _ := s.Create(ctx)

	feed := s.SubscribeCollection()
	defer feed.Close()
	_, ok, err := feed.TryNext()
	require.NoError(t, err)
	require.True(t, ok)

	before := s.List()
	err = s.Update(ctx, core.Record{ID: core.NewID(), Title: "ghost"})
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.True(t, before.Equal(s.List()))

	_, ok, err = feed.TryNext()
	require.NoError(t, err)
	assert.False(t, ok, "failed update must not notify")

	got, _ := s.Get(existing.ID)
	assert.True(t, got.Equal(existing))
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	r, _ := s.Create(ctx)

	feed := s.SubscribeCollection()
	defer feed.Close()
	_, _, _ = feed.TryNext()

	require.NoError(t, s.Delete(ctx, r.ID))
	snap, ok, err := feed.TryNext()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, snap)

	require.NoError(t, s.Delete(ctx, r.ID))
	_, ok, err = feed.TryNext()
	require.NoError(t, err)
	assert.False(t, ok, "second delete must not notify")
}

func TestStore_RepositoryFailureLeavesStateIntact(t *testing.T) {
	ctx := context.Background()
	repo := &MockRepository{}
	s, err := core.NewStore(ctx, repo)
	require.NoError(t, err)

	r, err := s.Create(ctx)
	require.NoError(t, err)

	feed := s.SubscribeCollection()
	defer feed.Close()
	_, _, _ = feed.TryNext()

	repo.failSave = true
	changed := r
	changed.Title = "never stored"
	err = s.Update(ctx, changed)
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrNotFound)

	got, _ := s.Get(r.ID)
	assert.True(t, got.Equal(r))

	_, err = s.Create(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, s.Len())

	_, ok, _ := feed.TryNext()
	assert.False(t, ok)
}

func TestStore_LoadsInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	first, second := core.NewRecord(), core.NewRecord()
	first.Title, second.Title = "first", "second"
	repo := &MockRepository{records: []core.Record{first, second}}

	s, err := core.NewStore(ctx, repo)
	require.NoError(t, err)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Title)
	assert.Equal(t, "second", list[1].Title)

	third, err := s.Create(ctx)
	require.NoError(t, err)
	reloaded, err := core.NewStore(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, third.ID, reloaded.List()[2].ID)
}

func TestStore_LoadRejectsDuplicates(t *testing.T) {
	r := core.NewRecord()
	_, err := core.NewStore(context.Background(), &MockRepository{records: []core.Record{r, r}})
	assert.Error(t, err)
}

func TestStore_ReadOnly(t *testing.T) {
	ctx := context.Background()
	s, err := core.NewStore(ctx, nil, core.WithReadOnly(true))
	require.NoError(t, err)

	_, err = s.Create(ctx)
	assert.ErrorIs(t, err, core.ErrReadOnly)
	assert.ErrorIs(t, s.Delete(ctx, core.NewID()), core.ErrReadOnly)
}

func TestStore_ConcurrentWritersAndSubscribers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s := newStore(t)

	const writers, perWriter = 4, 50
	var readers sync.WaitGroup
	for i := 0; i < 3; i++ {
		feed := s.SubscribeCollection()
		readers.Add(1)
		go func() {
			defer readers.Done()
			defer feed.Close()
			var last uint64
			for {
				snap, err := feed.Next(ctx)
				if err != nil {
					return
				}
				v := feed.Delivered()
				assert.GreaterOrEqual(t, v, last)
				last = v
				if len(snap) == writers*perWriter {
					return
				}
			}
		}()
	}

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				r, err := s.Create(ctx)
				if !assert.NoError(t, err) {
					return
				}
				r.Title = "concurrent"
				assert.NoError(t, s.Update(ctx, r))
				_ = s.List()
			}
		}()
	}
	wg.Wait()
	readers.Wait()
	assert.Equal(t, writers*perWriter, s.Len())
}

func randomTitle(rng *rand.Rand) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, 1+rng.Intn(8))
	for i := range b {
		b[i] = letters[rng.Intn(len(letters))]
	}
	return string(b)
}

func TestStore_ReloadPublishesOutsideChanges(t *testing.T) {
	ctx := context.Background()
	repo := &MockRepository{}
	store, err := core.NewStore(ctx, repo)
	require.NoError(t, err)

	a, err := store.Create(ctx)
	require.NoError(t, err)
	b, err := store.Create(ctx)
	require.NoError(t, err)

	changed, err := store.Reload(ctx)
	require.NoError(t, err)
	assert.False(t, changed)

	collection := store.SubscribeCollection()
	defer collection.Close()
	_, _, _ = collection.TryNext()
	recA, err := store.SubscribeRecord(a.ID)
	require.NoError(t, err)
	_, _, _ = recA.TryNext()
	recB, err := store.SubscribeRecord(b.ID)
	require.NoError(t, err)
	_, _, _ = recB.TryNext()

	// Another process edits a, deletes b and adds c.
	edited := a
	edited.Title = "edited elsewhere"
	c := core.NewRecord()
	repo.mu.Lock()
	repo.records = []core.Record{edited, c}
	repo.mu.Unlock()

	changed, err = store.Reload(ctx)
	require.NoError(t, err)
	assert.True(t, changed)

	snap, ok, err := collection.TryNext()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, snap.Equal(core.Snapshot{edited, c}))
	assert.True(t, store.List().Equal(snap))

	upd, ok, err := recA.TryNext()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "edited elsewhere", upd.Record.Title)

	upd, ok, err = recB.TryNext()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, upd.Deleted)

	changed, err = store.Reload(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
	_, ok, _ = collection.TryNext()
	assert.False(t, ok)
}

func TestStore_ReloadWithoutRepository(t *testing.T) {
	store, err := core.NewStore(context.Background(), nil)
	require.NoError(t, err)
	changed, err := store.Reload(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
}

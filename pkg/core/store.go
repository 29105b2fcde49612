package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Store is the identity-keyed table of Records plus their insertion-ordered index.
// It is the single source of truth; every mutation is persisted through the
// Repository before it becomes visible, then published to live feeds.
//
// Records cross the Store boundary as values: callers may modify what they
// receive without affecting the Store or other subscribers.
type Store struct {
	mu       sync.RWMutex
	repo     Repository
	table    map[ID]Record
	index    []ID
	version  uint64
	hub      *Hub
	logger   *slog.Logger
	metrics  Metrics
	readOnly bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used by the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics registers a Metrics sink for mutations and feed activity.
func WithMetrics(m Metrics) Option {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithReadOnly rejects every mutation with ErrReadOnly.
func WithReadOnly(enabled bool) Option {
	return func(s *Store) {
		s.readOnly = enabled
	}
}

// NewStore creates a Store backed by repo and loads its persisted records.
// A nil repo keeps the records in memory only.
func NewStore(ctx context.Context, repo Repository, opts ...Option) (*Store, error) {
	s := &Store{
		repo:    repo,
		table:   make(map[ID]Record),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = newHub(s.metrics)

	if repo == nil {
		return s, nil
	}

	table, index, err := load(ctx, repo)
	if err != nil {
		return nil, err
	}
	s.table, s.index = table, index
	s.logger.Debug("store loaded", "records", len(s.index))
	return s, nil
}

func load(ctx context.Context, repo Repository) (map[ID]Record, []ID, error) {
	records, err := repo.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load records: %w", err)
	}
	table := make(map[ID]Record, len(records))
	index := make([]ID, 0, len(records))
	for _, r := range records {
		if r.ID.IsZero() {
			return nil, nil, fmt.Errorf("failed to load records: record with empty id")
		}
		if _, dup := table[r.ID]; dup {
			return nil, nil, fmt.Errorf("failed to load records: duplicate id %s", r.ID)
		}
		table[r.ID] = r
		index = append(index, r.ID)
	}
	return table, index, nil
}

// Reload re-reads the repository and publishes whatever changed behind the
// store's back, e.g. writes by another process sharing the vault. It reports
// whether anything changed. A store without repository never changes.
func (s *Store) Reload(ctx context.Context) (bool, error) {
	if s.repo == nil {
		return false, nil
	}

	s.mu.Lock()
	table, index, err := load(ctx, s.repo)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}

	var updated []Record
	var deleted []Record
	for id, old := range s.table {
		cur, ok := table[id]
		switch {
		case !ok:
			deleted = append(deleted, old)
		case !cur.Equal(old):
			updated = append(updated, cur)
		}
	}
	reordered := len(index) != len(s.index)
	for i := 0; !reordered && i < len(index); i++ {
		reordered = index[i] != s.index[i]
	}
	if !reordered && len(updated) == 0 && len(deleted) == 0 {
		s.mu.Unlock()
		return false, nil
	}

	s.table, s.index = table, index
	version, snap := s.commitLocked()
	s.mu.Unlock()

	s.logger.Debug("store reloaded", "records", len(snap), "updated", len(updated), "deleted", len(deleted), "version", version)
	for _, r := range updated {
		s.hub.publishRecord(r.ID, version, RecordUpdate{Record: r})
	}
	for _, r := range deleted {
		s.hub.publishRecord(r.ID, version, RecordUpdate{Record: r, Deleted: true})
	}
	s.hub.publishCollection(version, snap)
	return true, nil
}

// Create allocates a fresh Record with default fields, appends it to the
// index and publishes the new collection snapshot.
func (s *Store) Create(ctx context.Context) (Record, error) {
	r := NewRecord()

	s.mu.Lock()
	if s.readOnly {
		s.mu.Unlock()
		s.metrics.ObserveMutation("create", ErrReadOnly)
		return Record{}, ErrReadOnly
	}
	if err := s.persist(ctx, r); err != nil {
		s.mu.Unlock()
		s.metrics.ObserveMutation("create", err)
		return Record{}, err
	}
	s.table[r.ID] = r
	s.index = append(s.index, r.ID)
	version, snap := s.commitLocked()
	s.mu.Unlock()

	s.logger.Debug("record created", "id", r.ID, "version", version)
	s.metrics.ObserveMutation("create", nil)
	s.hub.publishCollection(version, snap)
	return r, nil
}

// Get returns the record stored under id.
func (s *Store) Get(id ID) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.table[id]
	if !ok {
		return Record{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return r, nil
}

// Update replaces the stored record at r.ID as one unit, keeping its position.
// It fails with ErrNotFound when no such record exists, leaving every feed untouched.
func (s *Store) Update(ctx context.Context, r Record) error {
	s.mu.Lock()
	if s.readOnly {
		s.mu.Unlock()
		s.metrics.ObserveMutation("update", ErrReadOnly)
		return ErrReadOnly
	}
	if _, ok := s.table[r.ID]; !ok {
		s.mu.Unlock()
		err := fmt.Errorf("update %s: %w", r.ID, ErrNotFound)
		s.metrics.ObserveMutation("update", err)
		return err
	}
	if err := s.persistReplace(ctx, r); err != nil {
		s.mu.Unlock()
		s.metrics.ObserveMutation("update", err)
		return err
	}
	s.table[r.ID] = r
	version, snap := s.commitLocked()
	s.mu.Unlock()

	s.logger.Debug("record updated", "id", r.ID, "version", version)
	s.metrics.ObserveMutation("update", nil)
	s.hub.publishRecord(r.ID, version, RecordUpdate{Record: r})
	s.hub.publishCollection(version, snap)
	return nil
}

// Delete removes the record and its index position.
// Deleting an absent id is a no-op and publishes nothing.
func (s *Store) Delete(ctx context.Context, id ID) error {
	s.mu.Lock()
	if s.readOnly {
		s.mu.Unlock()
		s.metrics.ObserveMutation("delete", ErrReadOnly)
		return ErrReadOnly
	}
	last, ok := s.table[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	if s.repo != nil {
		if err := s.repo.Delete(ctx, id); err != nil {
			s.mu.Unlock()
			err = fmt.Errorf("failed to delete record %s: %w", id, err)
			s.metrics.ObserveMutation("delete", err)
			return err
		}
	}
	delete(s.table, id)
	for i, cur := range s.index {
		if cur == id {
			s.index = append(s.index[:i:i], s.index[i+1:]...)
			break
		}
	}
	version, snap := s.commitLocked()
	s.mu.Unlock()

	s.logger.Debug("record deleted", "id", id, "version", version)
	s.metrics.ObserveMutation("delete", nil)
	s.hub.publishRecord(id, version, RecordUpdate{Record: last, Deleted: true})
	s.hub.publishCollection(version, snap)
	return nil
}

// List returns the full snapshot in insertion order.
func (s *Store) List() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// SubscribeCollection returns a feed that immediately holds the current
// snapshot and then every later one. Close the feed to unsubscribe.
func (s *Store) SubscribeCollection() *Feed[Snapshot] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hub.addCollection(s.version, s.snapshotLocked())
}

// SubscribeRecord returns a feed for a single record. It ends after
// delivering a Deleted update.
func (s *Store) SubscribeRecord(id ID) (*Feed[RecordUpdate], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.table[id]
	if !ok {
		return nil, fmt.Errorf("subscribe %s: %w", id, ErrNotFound)
	}
	return s.hub.addRecord(id, s.version, RecordUpdate{Record: r}), nil
}

// Close releases the underlying repository, if it holds resources.
func (s *Store) Close() error {
	if c, ok := s.repo.(Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *Store) persist(ctx context.Context, r Record) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.Save(ctx, r); err != nil {
		return fmt.Errorf("failed to persist record %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) persistReplace(ctx context.Context, r Record) error {
	rp, ok := s.repo.(Replacer)
	if !ok {
		return s.persist(ctx, r)
	}
	if err := rp.Replace(ctx, r); err != nil {
		return fmt.Errorf("failed to persist record %s: %w", r.ID, err)
	}
	return nil
}

// commitLocked bumps the version and captures the snapshot to publish.
// The returned snapshot is never mutated afterwards.
func (s *Store) commitLocked() (uint64, Snapshot) {
	s.version++
	return s.version, s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := make(Snapshot, len(s.index))
	for i, id := range s.index {
		snap[i] = s.table[id]
	}
	return snap
}

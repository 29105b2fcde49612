// Package session implements the edit session: a detached working copy of one
// record with explicit commit points and guaranteed asset cleanup on teardown.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/casebook/pkg/core"
	"github.com/aretw0/casebook/pkg/picker"
)

// State is the position of a session in its lifecycle.
type State int

const (
	StateLoading State = iota
	// StateReady: loaded, working copy equals the stored record.
	StateReady
	StateDirty
	// StateClean: a commit has written the working copy back.
	StateClean
	StateCommitted
	StateDiscarded
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateDirty:
		return "dirty"
	case StateClean:
		return "clean"
	case StateCommitted:
		return "committed"
	case StateDiscarded:
		return "discarded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the session has been torn down.
func (s State) Terminal() bool { return s == StateCommitted || s == StateDiscarded }

// ErrNotEditable is returned when editing a session that is loading or closed.
var ErrNotEditable = errors.New("session is not editable")

// Store is the part of core.Store a session needs.
type Store interface {
	Get(id core.ID) (core.Record, error)
	Update(ctx context.Context, r core.Record) error
	SubscribeRecord(id core.ID) (*core.Feed[core.RecordUpdate], error)
}

// Assets is the part of asset.Manager a session needs.
type Assets interface {
	PathFor(id core.ID) string
	Exists(id core.ID) bool
	RevokeAll(id core.ID) int
}

// Session edits one record. Edits only touch the working copy; Commit writes
// it back. Close always commits pending edits and then revokes every asset
// grant of the record, exactly once.
type Session struct {
	id     core.ID
	store  Store
	assets Assets
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	base    core.Record
	working core.Record
	deleted bool
	feed    *core.Feed[core.RecordUpdate]
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a session for id in the Loading state.
func New(store Store, assets Assets, id core.ID, opts ...Option) *Session {
	s := &Session{
		id:     id,
		store:  store,
		assets: assets,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		state:  StateLoading,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a session and loads it. If loading fails the session is torn
// down before the error is returned.
func Open(ctx context.Context, store Store, assets Assets, id core.ID, opts ...Option) (*Session, error) {
	s := New(store, assets, id, opts...)
	if err := s.Load(ctx); err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	return s, nil
}

// Load reads the record and starts following its feed so the working copy
// tracks outside changes while there are no local edits.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateLoading {
		return fmt.Errorf("load %s: session is %s", s.id, s.state)
	}
	r, err := s.store.Get(s.id)
	if err != nil {
		return err
	}
	feed, err := s.store.SubscribeRecord(s.id)
	if err != nil {
		return err
	}
	s.base, s.working = r, r
	s.feed = feed
	s.state = StateReady

	lifecycle.Go(ctx, func(ctx context.Context) error {
		return s.follow(ctx, feed)
	}, lifecycle.WithErrorHandler(func(err error) {
		s.logger.Error("session feed failed", "id", s.id, "error", err)
	}))

	s.logger.Debug("session opened", "id", s.id)
	return nil
}

func (s *Session) follow(ctx context.Context, feed *core.Feed[core.RecordUpdate]) error {
	for {
		upd, err := feed.Next(ctx)
		if err != nil {
			if errors.Is(err, core.ErrFeedClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.apply(upd)
	}
}

func (s *Session) apply(upd core.RecordUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return
	}
	if upd.Deleted {
		s.deleted = true
		return
	}
	s.base = upd.Record
	if s.state != StateDirty {
		s.working = upd.Record
	}
}

// ID returns the record id.
func (s *Session) ID() core.ID { return s.id }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Record returns a copy of the working copy.
func (s *Session) Record() core.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.working
}

// Deleted reports whether the record was deleted from the store while the
// session was open.
func (s *Session) Deleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleted
}

// Edit applies fn to the working copy. The id cannot be changed.
func (s *Session) Edit(fn func(r *core.Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateReady, StateClean, StateDirty:
	default:
		return fmt.Errorf("edit %s: %w (%s)", s.id, ErrNotEditable, s.state)
	}

	next := s.working
	fn(&next)
	next.ID = s.id
	if next.Equal(s.working) {
		return nil
	}
	s.working = next
	if next.Equal(s.base) {
		// Edits reverted locally; nothing left to write.
		if s.state == StateDirty {
			s.state = StateClean
		}
		return nil
	}
	s.state = StateDirty
	return nil
}

func (s *Session) SetTitle(title string) error {
	return s.Edit(func(r *core.Record) { r.Title = title })
}

func (s *Session) SetSolved(solved bool) error {
	return s.Edit(func(r *core.Record) { r.Solved = solved })
}

func (s *Session) SetSuspect(suspect string) error {
	return s.Edit(func(r *core.Record) { r.Suspect = suspect })
}

func (s *Session) SetOccurredAt(t time.Time) error {
	return s.Edit(func(r *core.Record) { r.OccurredAt = t })
}

// ApplyDate moves the record to the calendar date of picked.
func (s *Session) ApplyDate(picked time.Time) error {
	return s.Edit(func(r *core.Record) { r.OccurredAt = picker.MergeDate(r.OccurredAt, picked) })
}

// ApplyTime sets the hour and minute of the record to those of picked.
func (s *Session) ApplyTime(picked time.Time) error {
	return s.Edit(func(r *core.Record) { r.OccurredAt = picker.MergeTime(r.OccurredAt, picked) })
}

// PhotoPath returns where the record's photo lives.
func (s *Session) PhotoPath() string { return s.assets.PathFor(s.id) }

// HasPhoto reports whether the record's photo exists.
func (s *Session) HasPhoto() bool { return s.assets.Exists(s.id) }

// Commit writes pending edits back to the store. Without pending edits it
// does nothing. A failed commit leaves the session dirty.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.commitLocked(ctx)
	return err
}

func (s *Session) commitLocked(ctx context.Context) (bool, error) {
	if s.state != StateDirty {
		return false, nil
	}
	if err := s.store.Update(ctx, s.working); err != nil {
		return false, fmt.Errorf("commit %s: %w", s.id, err)
	}
	s.base = s.working
	s.state = StateClean
	s.logger.Debug("session committed", "id", s.id)
	return true, nil
}

// Close tears the session down: pending edits are committed, the record feed
// is released and all asset grants for the record are revoked. The session
// ends Committed if the final commit wrote, Discarded otherwise. Only the
// first call has any effect.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return nil
	}

	wrote, err := s.commitLocked(ctx)
	if wrote {
		s.state = StateCommitted
	} else {
		if err != nil {
			s.logger.Warn("pending edits lost on close", "id", s.id, "error", err)
		}
		s.state = StateDiscarded
	}
	final := s.state
	feed := s.feed
	s.feed = nil
	s.mu.Unlock()

	if feed != nil {
		feed.Close()
	}
	revoked := s.assets.RevokeAll(s.id)
	s.logger.Debug("session closed", "id", s.id, "state", final.String(), "revoked", revoked)
	return err
}

// Package lifecycle exposes the store's collection feed as a lifecycle.Source,
// turning each snapshot into the edit script that brings the previous one up
// to date.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/casebook/pkg/core"
	"github.com/aretw0/casebook/pkg/reconcile"
)

// SnapshotEvent is emitted for every collection snapshot observed.
type SnapshotEvent struct {
	Version  uint64
	Snapshot core.Snapshot
	Ops      []reconcile.Op
}

func (e SnapshotEvent) String() string {
	return fmt.Sprintf("v%d: %d records, %d ops", e.Version, len(e.Snapshot), len(e.Ops))
}

type feedSource struct {
	feed *core.Feed[core.Snapshot]
	out  chan lifecycle.Event
}

// NewSource creates a lifecycle.Source that emits a SnapshotEvent per
// collection snapshot. The first event diffs against an empty collection.
// The source closes the feed when it stops.
func NewSource(feed *core.Feed[core.Snapshot]) lifecycle.Source {
	return &feedSource{
		feed: feed,
		out:  make(chan lifecycle.Event),
	}
}

func (s *feedSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *feedSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		defer s.feed.Close()

		var prev core.Snapshot
		for {
			snap, err := s.feed.Next(ctx)
			if err != nil {
				if errors.Is(err, core.ErrFeedClosed) || ctx.Err() != nil {
					return nil
				}
				return err
			}
			e := SnapshotEvent{
				Version:  s.feed.Delivered(),
				Snapshot: snap,
				Ops:      reconcile.Diff(prev, snap),
			}
			prev = snap

			select {
			case s.out <- e:
			case <-ctx.Done():
				return nil
			}
		}
	})
	return nil
}

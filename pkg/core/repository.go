package core

import "context"

// Repository defines the persistence contract behind the Store.
// Adhering to this interface keeps the core independent of the
// underlying storage mechanism (YAML file, SQLite, memory).
//
// The Store serializes all calls; implementations need not be safe for
// concurrent use by other callers.
type Repository interface {
	// Initialize ensures the underlying storage is ready (directories, schema).
	Initialize(ctx context.Context) error

	// Load returns every persisted record in insertion order.
	Load(ctx context.Context) ([]Record, error)

	// Save persists a record. New ids are appended; existing ids keep their position.
	Save(ctx context.Context, r Record) error

	// Delete removes a record. Deleting an absent id is not an error.
	Delete(ctx context.Context, id ID) error
}

// Replacer is implemented by repositories shared with other writers. Replace
// overwrites an existing record in place and fails with ErrNotFound when the
// record is no longer stored, so an update never re-inserts a record that
// another process deleted.
type Replacer interface {
	Replace(ctx context.Context, r Record) error
}

// Closer is implemented by repositories holding external resources.
type Closer interface {
	Close() error
}

// Metrics receives store and feed activity. Implementations must be safe for concurrent use.
type Metrics interface {
	// ObserveMutation records the outcome of a mutating operation ("create", "update", "delete").
	ObserveMutation(op string, err error)
	// ObserveSubscribers records the number of live feeds of a kind ("collection", "record").
	ObserveSubscribers(kind string, n int)
	// ObservePublish records one snapshot published to n feeds of a kind.
	ObservePublish(kind string, n int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveMutation(string, error)   {}
func (noopMetrics) ObserveSubscribers(string, int) {}
func (noopMetrics) ObservePublish(string, int)     {}

// Package core holds the case domain: identifiers, records, the store and its live feeds.
package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ID is the immutable, globally unique key of a Record.
// The zero value is not a valid identifier.
type ID struct {
	uuid uuid.UUID
}

// NewID generates a fresh random identifier.
func NewID() ID {
	return ID{uuid: uuid.New()}
}

// ParseID parses the canonical textual form of an identifier.
func ParseID(s string) (ID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("invalid record id %q: %w", s, err)
	}
	return ID{uuid: id}, nil
}

func (id ID) String() string { return id.uuid.String() }
func (id ID) IsZero() bool   { return id.uuid == uuid.Nil }

// MarshalText implements encoding.TextMarshaler (used by JSON and YAML).
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.uuid.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(data []byte) error {
	parsed, err := ParseID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Record is a single case entry.
// An empty Suspect means no suspect has been chosen.
type Record struct {
	ID         ID        `json:"id" yaml:"id"`
	Title      string    `json:"title" yaml:"title"`
	OccurredAt time.Time `json:"occurred_at" yaml:"occurred_at"`
	Solved     bool      `json:"solved" yaml:"solved"`
	Suspect    string    `json:"suspect,omitempty" yaml:"suspect,omitempty"`
}

// NewRecord returns a Record with a fresh ID and default fields.
func NewRecord() Record {
	return Record{
		ID:         NewID(),
		OccurredAt: time.Now().UTC().Truncate(time.Second),
	}
}

// Equal reports structural equality. Timestamps are compared as instants.
func (r Record) Equal(o Record) bool {
	return r.ID == o.ID &&
		r.Title == o.Title &&
		r.OccurredAt.Equal(o.OccurredAt) &&
		r.Solved == o.Solved &&
		r.Suspect == o.Suspect
}

// HasSuspect reports whether a suspect has been chosen.
func (r Record) HasSuspect() bool { return r.Suspect != "" }

// Snapshot is the full ordered sequence of Records at one instant.
type Snapshot []Record

// Clone returns an independent copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	copy(out, s)
	return out
}

// Equal reports whether both snapshots hold equal records in the same order.
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if !s[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// RecordUpdate is a value delivered on a single-record feed.
// When Deleted is true, Record holds the last known value.
type RecordUpdate struct {
	Record  Record
	Deleted bool
}

package core

import "errors"

// Common errors.
var (
	// ErrNotFound is returned when an operation references an id absent from the store.
	ErrNotFound = errors.New("record not found")
	// ErrIO marks asset byte read/write failures. The underlying cause is wrapped alongside it.
	ErrIO = errors.New("asset i/o failure")
	// ErrGrantDenied is returned when a revoked or unknown access token is used.
	ErrGrantDenied = errors.New("asset access denied")
	// ErrFeedClosed is returned by a feed after unsubscribe, or after a Deleted update was delivered.
	ErrFeedClosed = errors.New("feed closed")
	// ErrReadOnly is returned by mutating operations on a read-only store.
	ErrReadOnly = errors.New("store is in read-only mode")
)

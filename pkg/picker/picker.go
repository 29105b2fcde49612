// Package picker correlates modal selections (date, time, suspect) with the
// component that asked for them. Each requester holds at most one pending
// request; a request is resolved by exactly one delivery or cancelled.
package picker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrRequestPending is returned when a requester already has an outstanding request.
	ErrRequestPending = errors.New("selection request already pending")
	// ErrUnknownRequest is returned when resolving a request that is not outstanding.
	ErrUnknownRequest = errors.New("unknown selection request")
	// ErrCancelled is the result of a cancelled request.
	ErrCancelled = errors.New("selection cancelled")
)

// RequestID correlates a selection with its requester.
type RequestID string

// Request is a pending selection. Wait blocks until it is resolved or cancelled.
type Request[T any] struct {
	ID        RequestID
	Requester string
	Current   T

	done  chan struct{}
	value T
	err   error
}

// Done is closed when the request is resolved or cancelled.
func (r *Request[T]) Done() <-chan struct{} { return r.done }

// Wait returns the selected value.
func (r *Request[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-r.done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Picker tracks outstanding requests for one kind of value.
type Picker[T any] struct {
	name   string
	logger *slog.Logger

	mu          sync.Mutex
	pending     map[RequestID]*Request[T]
	byRequester map[string]RequestID
}

// New creates a Picker. name is used in log lines only.
func New[T any](name string, logger *slog.Logger) *Picker[T] {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Picker[T]{
		name:        name,
		logger:      logger,
		pending:     make(map[RequestID]*Request[T]),
		byRequester: make(map[string]RequestID),
	}
}

// Request opens a selection for requester seeded with current.
func (p *Picker[T]) Request(requester string, current T) (*Request[T], error) {
	if requester == "" {
		return nil, fmt.Errorf("%s picker: requester is required", p.name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if id, busy := p.byRequester[requester]; busy {
		return nil, fmt.Errorf("%s picker: %s has %s: %w", p.name, requester, id, ErrRequestPending)
	}
	r := &Request[T]{
		ID:        RequestID(uuid.NewString()),
		Requester: requester,
		Current:   current,
		done:      make(chan struct{}),
	}
	p.pending[r.ID] = r
	p.byRequester[requester] = r.ID
	p.logger.Debug("selection requested", "picker", p.name, "request", r.ID, "requester", requester)
	return r, nil
}

// Resolve delivers value to the requester of id. A request resolves once.
func (p *Picker[T]) Resolve(id RequestID, value T) error {
	r, err := p.take(id)
	if err != nil {
		return err
	}
	r.value = value
	close(r.done)
	p.logger.Debug("selection resolved", "picker", p.name, "request", id)
	return nil
}

// Cancel ends the request without a selection; Wait returns ErrCancelled.
func (p *Picker[T]) Cancel(id RequestID) error {
	r, err := p.take(id)
	if err != nil {
		return err
	}
	r.err = ErrCancelled
	close(r.done)
	p.logger.Debug("selection cancelled", "picker", p.name, "request", id)
	return nil
}

// Pending returns the outstanding request of requester, if any.
func (p *Picker[T]) Pending(requester string) (*Request[T], bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.byRequester[requester]
	if !ok {
		return nil, false
	}
	return p.pending[id], true
}

func (p *Picker[T]) take(id RequestID) (*Request[T], error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, ok := p.pending[id]
	if !ok {
		return nil, fmt.Errorf("%s picker: %s: %w", p.name, id, ErrUnknownRequest)
	}
	delete(p.pending, id)
	delete(p.byRequester, r.Requester)
	return r, nil
}

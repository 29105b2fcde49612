package asset

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/aretw0/casebook/pkg/core"
)

// Capture is a pending external capture: a grant handed to a principal plus a
// single-shot result. The first Complete call wins; later calls are ignored.
type Capture struct {
	Grant Grant

	once   sync.Once
	done   chan struct{}
	err    error
	onDone func(c *Capture, err error) error
}

// Complete resolves the capture. It reports whether this call resolved it.
func (c *Capture) Complete(err error) bool {
	resolved := false
	c.once.Do(func() {
		if c.onDone != nil {
			err = c.onDone(c, err)
		}
		c.err = err
		close(c.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the capture is resolved.
func (c *Capture) Done() <-chan struct{} { return c.done }

// Err returns the capture result. It is nil until Done is closed.
func (c *Capture) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait blocks until the capture is resolved or ctx is done.
func (c *Capture) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BeginCapture grants principal access to the asset of id and returns the
// pending capture. The principal writes through Grant.Token; the capture is
// resolved by CompleteCapture, by the Watcher once the file settles, or by
// RevokeAll. A refused capture issues no grant.
func (m *Manager) BeginCapture(id core.ID, principal string) (*Capture, error) {
	if err := validateGrant(id, principal); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.captures[id]; busy {
		return nil, fmt.Errorf("capture %s: %w", id, ErrCaptureInProgress)
	}
	tok := m.grantLocked(id, principal)
	c := &Capture{
		Grant:  m.tokens[tok],
		done:   make(chan struct{}),
		onDone: m.finishCapture,
	}
	m.captures[id] = c
	m.logger.Debug("capture started", "id", id, "principal", principal)
	return c, nil
}

// CompleteCapture resolves the pending capture of id, if any.
func (m *Manager) CompleteCapture(id core.ID, err error) bool {
	m.mu.Lock()
	c := m.captures[id]
	m.mu.Unlock()

	if c == nil {
		return false
	}
	return c.Complete(err)
}

// Pending reports whether a capture is pending for id.
func (m *Manager) Pending(id core.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.captures[id]
	return ok
}

// finishCapture drops the capture from the pending set and, on success,
// pushes the asset to the mirror. Mirror failures are logged, not returned:
// the local asset is already in place.
func (m *Manager) finishCapture(c *Capture, err error) error {
	id := c.Grant.ID

	m.mu.Lock()
	if m.captures[id] == c {
		delete(m.captures, id)
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("capture failed", "id", id, "error", err)
		return err
	}
	if !m.Exists(id) {
		return ioError("capture", id, os.ErrNotExist)
	}
	m.logger.Debug("capture completed", "id", id)

	if m.mirror != nil {
		if pushErr := m.push(id); pushErr != nil {
			m.logger.Warn("failed to mirror asset", "id", id, "error", pushErr)
		}
	}
	return nil
}

func (m *Manager) push(id core.ID) error {
	f, err := os.Open(m.PathFor(id))
	if err != nil {
		return ioError("open", id, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return ioError("stat", id, err)
	}
	return m.mirror.Push(context.Background(), id, f, info.Size())
}

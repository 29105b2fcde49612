package asset

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/casebook/pkg/core"
)

// EventType represents the kind of change observed on an asset file.
type EventType string

const (
	EventWritten EventType = "WRITTEN"
	EventRemoved EventType = "REMOVED"
)

// Event is a settled change to one asset file.
type Event struct {
	Type      EventType
	ID        core.ID
	Timestamp int64 // Unix timestamp
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s", e.Type, e.ID)
}

// Watcher observes the asset directory and resolves pending captures once an
// external principal has finished writing. Writes are settled: a capture
// completes only after no further write has been seen for the configured
// settle duration.
type Watcher struct {
	*worker.BaseWorker
	manager *Manager
	watcher *fsnotify.Watcher
	events  chan Event
	settled chan core.ID
	stopped <-chan struct{}
	cancel  context.CancelFunc

	mu     sync.Mutex
	timers map[core.ID]*time.Timer
}

// NewWatcher creates a watcher for m. Call Start to begin watching.
func NewWatcher(m *Manager) *Watcher {
	return &Watcher{
		BaseWorker: worker.NewBaseWorker("asset-watcher"),
		manager:    m,
		events:     make(chan Event, 64),
		settled:    make(chan core.ID, 64),
		timers:     make(map[core.ID]*time.Timer),
	}
}

// Events delivers settled asset changes. Events are dropped when the buffer is full.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

func (w *Watcher) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(w.manager.root); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.manager.root, err)
	}
	w.watcher = watcher

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.stopped = runCtx.Done()

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *Watcher) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}
	return w.BaseWorker.Stop(ctx)
}

func (w *Watcher) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
			"root":              w.manager.root,
		}
	})
}

func (w *Watcher) run(ctx context.Context) (err error) {
	logger := w.manager.logger
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("asset watcher panic: %v", recovered)
			if logger.Enabled(ctx, slog.LevelDebug) {
				logger.Error("asset watcher panic", "error", err, "stack", string(debug.Stack()))
			} else {
				logger.Error("asset watcher panic", "error", err)
			}
		}
	}()
	defer w.watcher.Close()
	defer w.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.handle(event)

		case id := <-w.settled:
			w.complete(ctx, id)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			logger.Error("fsnotify error", "error", wErr)
		}
	}
}

// handle maps a filesystem event onto an asset id and (re)arms its settle timer.
func (w *Watcher) handle(event fsnotify.Event) {
	id, ok := ParseFileName(event.Name)
	if !ok {
		return
	}
	w.manager.logger.Debug("asset event", "id", id, "op", event.Op.String())

	switch {
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		w.arm(id)
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		w.disarm(id)
		w.emit(Event{Type: EventRemoved, ID: id, Timestamp: time.Now().Unix()})
	}
}

func (w *Watcher) arm(id core.ID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[id]; ok {
		t.Reset(w.manager.settle)
		return
	}
	w.timers[id] = time.AfterFunc(w.manager.settle, func() {
		w.mu.Lock()
		delete(w.timers, id)
		w.mu.Unlock()
		select {
		case w.settled <- id:
		case <-w.stopped:
		}
	})
}

func (w *Watcher) disarm(id core.ID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[id]; ok {
		t.Stop()
		delete(w.timers, id)
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, t := range w.timers {
		t.Stop()
		delete(w.timers, id)
	}
}

// complete resolves the pending capture off the event loop, since a
// successful capture may push the asset to a remote mirror.
func (w *Watcher) complete(ctx context.Context, id core.ID) {
	w.emit(Event{Type: EventWritten, ID: id, Timestamp: time.Now().Unix()})
	if !w.manager.Pending(id) {
		return
	}
	lifecycle.Go(ctx, func(ctx context.Context) error {
		w.manager.CompleteCapture(id, nil)
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		w.manager.logger.Error("capture completion panic", "id", id, "error", err)
	}))
}

func (w *Watcher) emit(e Event) {
	select {
	case w.events <- e:
	default:
		w.manager.logger.Warn("asset event dropped", "id", e.ID, "type", e.Type)
	}
}

// Watch creates and starts a Watcher for the manager's asset directory.
func (m *Manager) Watch(ctx context.Context) (*Watcher, error) {
	w := NewWatcher(m)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

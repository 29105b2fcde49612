package core

import "sync"

const (
	feedKindCollection = "collection"
	feedKindRecord     = "record"
)

// Hub fans store mutations out to live feeds.
// It holds its own lock, so publication never runs inside the store's critical section.
type Hub struct {
	mu         sync.Mutex
	collection map[*Feed[Snapshot]]struct{}
	records    map[ID]map[*Feed[RecordUpdate]]struct{}
	metrics    Metrics
}

func newHub(metrics Metrics) *Hub {
	return &Hub{
		collection: make(map[*Feed[Snapshot]]struct{}),
		records:    make(map[ID]map[*Feed[RecordUpdate]]struct{}),
		metrics:    metrics,
	}
}

func (h *Hub) addCollection(version uint64, snap Snapshot) *Feed[Snapshot] {
	f := newFeed(version, snap, Snapshot.Clone)
	f.detach = func() { h.removeCollection(f) }

	h.mu.Lock()
	h.collection[f] = struct{}{}
	n := len(h.collection)
	h.mu.Unlock()

	h.metrics.ObserveSubscribers(feedKindCollection, n)
	return f
}

func (h *Hub) removeCollection(f *Feed[Snapshot]) {
	h.mu.Lock()
	delete(h.collection, f)
	n := len(h.collection)
	h.mu.Unlock()

	h.metrics.ObserveSubscribers(feedKindCollection, n)
}

func (h *Hub) addRecord(id ID, version uint64, upd RecordUpdate) *Feed[RecordUpdate] {
	f := newFeed[RecordUpdate](version, upd, nil)
	f.detach = func() { h.removeRecord(id, f) }

	h.mu.Lock()
	set, ok := h.records[id]
	if !ok {
		set = make(map[*Feed[RecordUpdate]]struct{})
		h.records[id] = set
	}
	set[f] = struct{}{}
	n := h.recordCountLocked()
	h.mu.Unlock()

	h.metrics.ObserveSubscribers(feedKindRecord, n)
	return f
}

func (h *Hub) removeRecord(id ID, f *Feed[RecordUpdate]) {
	h.mu.Lock()
	if set, ok := h.records[id]; ok {
		delete(set, f)
		if len(set) == 0 {
			delete(h.records, id)
		}
	}
	n := h.recordCountLocked()
	h.mu.Unlock()

	h.metrics.ObserveSubscribers(feedKindRecord, n)
}

func (h *Hub) recordCountLocked() int {
	n := 0
	for _, set := range h.records {
		n += len(set)
	}
	return n
}

func (h *Hub) publishCollection(version uint64, snap Snapshot) {
	h.mu.Lock()
	feeds := make([]*Feed[Snapshot], 0, len(h.collection))
	for f := range h.collection {
		feeds = append(feeds, f)
	}
	h.mu.Unlock()

	delivered := 0
	for _, f := range feeds {
		if f.offer(version, snap, false) {
			delivered++
		}
	}
	h.metrics.ObservePublish(feedKindCollection, delivered)
}

// publishRecord offers upd to every feed watching id. A deletion is final:
// the feeds are dropped from the hub and end after delivering it.
func (h *Hub) publishRecord(id ID, version uint64, upd RecordUpdate) {
	h.mu.Lock()
	set := h.records[id]
	feeds := make([]*Feed[RecordUpdate], 0, len(set))
	for f := range set {
		feeds = append(feeds, f)
	}
	if upd.Deleted {
		delete(h.records, id)
	}
	n := h.recordCountLocked()
	h.mu.Unlock()

	delivered := 0
	for _, f := range feeds {
		if f.offer(version, upd, upd.Deleted) {
			delivered++
		}
	}
	h.metrics.ObservePublish(feedKindRecord, delivered)
	if upd.Deleted {
		h.metrics.ObserveSubscribers(feedKindRecord, n)
	}
}

func (h *Hub) counts() (collection, records int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.collection), h.recordCountLocked()
}

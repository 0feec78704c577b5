package engine

import (
	"sync"
	"time"
)

// CacheState describes the credential snapshot lifecycle.
type CacheState string

const (
	// CacheNone means no snapshot has been loaded on this device.
	CacheNone CacheState = "none"
	// CacheLoading means a refresh is in flight.
	CacheLoading CacheState = "loading"
	// CacheReady means the snapshot is usable for offline decisions.
	CacheReady CacheState = "ready"
	// CacheError means the last refresh failed. Offline admission still
	// uses whatever was last successfully loaded.
	CacheError CacheState = "error"
)

// Status is the engine's observable state, consumed read-only by the
// surrounding shell (status screens, badges, CLI).
type Status struct {
	Online        bool       `json:"online"`
	CacheState    CacheState `json:"cacheState"`
	CacheCount    int        `json:"cacheCount"`
	CacheLoadedAt time.Time  `json:"cacheLoadedAt,omitzero"`
	ActiveEvent   string     `json:"activeEvent,omitempty"`
	PendingCount  int        `json:"pendingCount"`
	DeadCount     int        `json:"deadCount"`
	ScannerPaused bool       `json:"scannerPaused"`
	StoreError    string     `json:"storeError,omitempty"`
}

// StatusStore is a publish/subscribe container for Status.
//
// All transitions go through Update; ad hoc mutable globals are exactly
// what this type exists to replace. Subscribers receive the snapshot after
// every update; a slow subscriber drops intermediate snapshots rather than
// blocking the engine.
type StatusStore struct {
	mu      sync.RWMutex
	cur     Status
	subs    map[int]chan Status
	nextSub int
}

// NewStatusStore creates a status store with the given initial state.
func NewStatusStore(initial Status) *StatusStore {
	if initial.CacheState == "" {
		initial.CacheState = CacheNone
	}
	return &StatusStore{
		cur:  initial,
		subs: make(map[int]chan Status),
	}
}

// Get returns the current snapshot.
func (s *StatusStore) Get() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Update applies fn to the current state and publishes the result.
func (s *StatusStore) Update(fn func(*Status)) Status {
	s.mu.Lock()
	fn(&s.cur)
	snapshot := s.cur
	subs := make([]chan Status, 0, len(s.subs))
	for _, ch := range s.subs {
		subs = append(subs, ch)
	}
	s.mu.Unlock()

	for _, ch := range subs {
		// Buffered, size 1: keep only the newest snapshot per subscriber.
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
	return snapshot
}

// Subscribe registers for snapshots published after every update.
// The returned cancel func must be called to release the subscription.
func (s *StatusStore) Subscribe() (<-chan Status, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Status, 1)
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
	return ch, cancel
}

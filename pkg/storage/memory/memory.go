// Package memory provides an in-process storage.NonceStore. Counters are
// lost when the process restarts, which only means outstanding nonces can
// be replayed once more until they expire. Optional LRU eviction bounds
// memory usage.
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/rhuss/reqstate/pkg/storage"
)

// entry holds the counter state of one nonce.
type entry struct {
	nc      uint64
	seen    time.Time
	lruElem *list.Element // position in LRU list
}

// Store is an in-memory NonceStore with optional LRU eviction.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	lruList *list.List // front = most recently advanced
	maxSize int        // 0 = unlimited
	now     func() time.Time
	closed  bool
}

var _ storage.NonceStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a new in-memory store. If maxSize is 0, the store grows
// without limit. If maxSize > 0, the least recently advanced nonce is
// evicted when the limit is reached.
func New(maxSize int, opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Advance records nc for nonce when it is higher than any count seen
// before and reports whether it was.
func (s *Store) Advance(_ context.Context, nonce string, nc uint64) (bool, error) {
	if err := storage.ValidateAdvance(nonce, nc); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, storage.ErrClosed
	}

	if e, ok := s.entries[nonce]; ok {
		if nc <= e.nc {
			return false, nil
		}
		e.nc = nc
		e.seen = s.now()
		s.lruList.MoveToFront(e.lruElem)
		return true, nil
	}

	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	s.entries[nonce] = &entry{
		nc:      nc,
		seen:    s.now(),
		lruElem: s.lruList.PushFront(nonce),
	}
	return true, nil
}

// Purge removes counters last advanced before olderThan.
func (s *Store) Purge(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, storage.ErrClosed
	}

	var n int64
	// The list is ordered by last advance, so stop at the first young entry.
	for back := s.lruList.Back(); back != nil; back = s.lruList.Back() {
		nonce := back.Value.(string)
		if !s.entries[nonce].seen.Before(olderThan) {
			break
		}
		s.lruList.Remove(back)
		delete(s.entries, nonce)
		n++
	}
	return n, nil
}

// Len returns the number of tracked nonces.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close drops all counters. Later calls fail with storage.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.entries = nil
	s.lruList.Init()
	return nil
}

// evictOldest removes the least recently used entry.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}
	s.lruList.Remove(back)
	delete(s.entries, back.Value.(string))
}

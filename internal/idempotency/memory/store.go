package memory

import (
	"context"
	"sync"
	"time"
)

// Store is the in-process ledger for single-instance deployments. Entries
// expire after the TTL; a background janitor evicts them so memory stays
// bounded. Expiry compares against times produced by the same process clock,
// so the monotonic reading embedded in time.Time makes the window immune to
// wall-clock jumps.
type Store struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time // key -> processedAt
	done    chan struct{}
	once    sync.Once
}

// NewStore creates a ledger with the given TTL and starts the eviction loop.
func NewStore(ttl time.Duration) *Store {
	s := &Store{
		ttl:     ttl,
		entries: make(map[string]time.Time),
		done:    make(chan struct{}),
	}
	go s.evictLoop()
	return s
}

// CheckAndMark returns true on first sight of key within the TTL window and
// records it in the same critical section, closing the duplicate race.
func (s *Store) CheckAndMark(_ context.Context, key string) (bool, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if at, ok := s.entries[key]; ok && now.Sub(at) < s.ttl {
		return false, nil
	}
	s.entries[key] = now
	return true, nil
}

// Len reports the current number of tracked keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the eviction loop.
func (s *Store) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Store) evictLoop() {
	interval := s.ttl / 10
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

func (s *Store) evictExpired() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, at := range s.entries {
		if now.Sub(at) >= s.ttl {
			delete(s.entries, key)
		}
	}
}

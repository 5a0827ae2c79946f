// internal/app/system/ratelimit/memstore.go
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/aimap/internal/domain/models"
)

// MemoryStore is a process-local CounterStore. It is used for single-instance
// development (ratelimit_backend=memory) and in tests.
// It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]models.RateLimitCounter
	now      func() time.Time
	stop     chan struct{}
	once     sync.Once
}

// NewMemoryStore creates an in-memory counter store. When cleanup > 0 a
// background loop drops counters past their expires_at; call Close to stop it.
func NewMemoryStore(cleanup time.Duration) *MemoryStore {
	s := &MemoryStore{
		counters: make(map[string]models.RateLimitCounter),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	if cleanup > 0 {
		go s.cleanupLoop(cleanup)
	}
	return s
}

func (s *MemoryStore) Load(_ context.Context, key string) (models.RateLimitCounter, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[key]
	if !ok {
		return models.RateLimitCounter{}, false, nil
	}
	c.Attempts = append([]time.Time(nil), c.Attempts...)
	return c, true, nil
}

func (s *MemoryStore) Save(_ context.Context, c models.RateLimitCounter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Attempts = append([]time.Time(nil), c.Attempts...)
	s.counters[c.Key] = c
	return nil
}

// Len returns the number of tracked counters.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

// Close stops the cleanup loop. It is safe to call more than once.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

// cleanupLoop periodically removes expired entries to prevent memory leaks.
func (s *MemoryStore) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.purge(s.now())
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) purge(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, c := range s.counters {
		if !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt) {
			delete(s.counters, key)
		}
	}
}

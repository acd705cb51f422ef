package ratelimit

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore is a process-local Store. Expired counters are dropped lazily
// on access and swept every 1024 increments.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*counter
	ops      int
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]*counter), now: time.Now}
}

func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.ops++
	if s.ops%1024 == 0 {
		for k, c := range s.counters {
			if !now.Before(c.expiresAt) {
				delete(s.counters, k)
			}
		}
	}

	c, ok := s.counters[key]
	if !ok || !now.Before(c.expiresAt) {
		c = &counter{expiresAt: now.Add(window)}
		s.counters[key] = c
	}
	c.count++
	return c.count, c.expiresAt.Sub(now), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.counters, key)
	s.mu.Unlock()
	return nil
}

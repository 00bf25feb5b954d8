package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with in-process fixed windows. Not
// distributed; use the Redis store when running more than one instance.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	start time.Time
	count int
}

// NewMemoryStore creates an in-memory fixed-window store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*window)}
}

// Allow records one request against key within the current fixed window.
func (s *MemoryStore) Allow(_ context.Context, key string, limit int, windowSize time.Duration) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	w := s.windows[key]
	if w == nil || now.Sub(w.start) >= windowSize {
		w = &window{start: now}
		s.windows[key] = w
	}

	resetAt := w.start.Add(windowSize)
	if w.count >= limit {
		return &Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(now, resetAt),
		}, nil
	}

	w.count++
	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - w.count,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the counter for a key.
func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// retryAfterSeconds rounds the remaining window up to whole seconds so a
// client honoring Retry-After never lands inside the same window.
func retryAfterSeconds(now, resetAt time.Time) int {
	secs := int((resetAt.Sub(now) + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

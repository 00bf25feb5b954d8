package memory

import (
	"context"
	"sync"

	id "tridcheck/pkg/domain"
	audit "tridcheck/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.CheckID][]audit.Event
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.CheckID][]audit.Event)
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.CheckID][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.CheckID] = append(s.events[event.CheckID], event)
	return nil
}

// ListByCheck returns events recorded for a specific compliance check.
func (s *InMemoryStore) ListByCheck(_ context.Context, checkID id.CheckID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[checkID]...), nil
}

// ListAll returns all audit events across all checks.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var allEvents []audit.Event
	for _, checkEvents := range s.events {
		allEvents = append(allEvents, checkEvents...)
	}

	return allEvents, nil
}

// ListRecent returns the most recent N events across all checks.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var allEvents []audit.Event
	for _, checkEvents := range s.events {
		allEvents = append(allEvents, checkEvents...)
	}

	start := len(allEvents) - limit
	if start < 0 {
		start = 0
	}

	return allEvents[start:], nil
}

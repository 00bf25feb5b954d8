package ops

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	audit "tridcheck/pkg/platform/audit"
	"tridcheck/pkg/platform/audit/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingFailStore fails every append and counts the attempts.
type countingFailStore struct {
	attempts atomic.Int32
}

func (s *countingFailStore) Append(context.Context, audit.Event) error {
	s.attempts.Add(1)
	return errors.New("store unavailable")
}

// gatedStore signals when an append starts and holds it until released,
// so tests can pin the persistence loop mid-write.
type gatedStore struct {
	mem     *memory.InMemoryStore
	entered chan struct{}
	release chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		mem:     memory.NewInMemoryStore(),
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (s *gatedStore) Append(ctx context.Context, event audit.Event) error {
	s.entered <- struct{}{}
	<-s.release
	return s.mem.Append(ctx, event)
}

func TestTracker_TrackPersistsEvent(t *testing.T) {
	store := memory.NewInMemoryStore()
	tracker := New(store)

	tracker.Track(context.Background(), audit.OpsEvent{
		Subject:   "schedule:2026.01",
		Action:    string(audit.EventScheduleLoaded),
		RequestID: "req-1",
	})

	require.NoError(t, tracker.Close())

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategoryOperations, events[0].Category)
	assert.Equal(t, string(audit.EventScheduleLoaded), events[0].Action)
	assert.Equal(t, "req-1", events[0].RequestID)
}

func TestTracker_ZeroRateSamplerDropsEverything(t *testing.T) {
	store := memory.NewInMemoryStore()
	tracker := New(store, WithSampler(NewSampler(0)))

	for range 10 {
		tracker.Track(context.Background(), audit.OpsEvent{
			Action: string(audit.EventFeesClassified),
		})
	}

	require.NoError(t, tracker.Close())

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestTracker_SetsTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	tracker := New(store)

	before := time.Now()
	tracker.Track(context.Background(), audit.OpsEvent{
		Action: string(audit.EventScheduleServed),
		// Timestamp not set
	})
	after := time.Now()

	require.NoError(t, tracker.Close())

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, !events[0].Timestamp.Before(before), "timestamp should be >= before")
	assert.True(t, !events[0].Timestamp.After(after), "timestamp should be <= after")
}

// Fire-and-forget: a failing store must not surface errors or block Close,
// and each queued event gets exactly one persistence attempt.
func TestTracker_StoreFailuresAreSwallowed(t *testing.T) {
	store := &countingFailStore{}
	tracker := New(store)

	for range 3 {
		tracker.Track(context.Background(), audit.OpsEvent{
			Action: string(audit.EventFeesClassified),
		})
	}

	require.NoError(t, tracker.Close())
	assert.Equal(t, int32(3), store.attempts.Load())
}

func TestTracker_QueueFullDropsEvent(t *testing.T) {
	store := newGatedStore()
	tracker := New(store, WithQueueSize(1))

	// First event is picked up by the persistence loop and parked inside
	// Append, leaving the queue empty.
	tracker.Track(context.Background(), audit.OpsEvent{Action: "op-1"})
	<-store.entered

	// Second event fills the queue; third finds it full and is dropped.
	tracker.Track(context.Background(), audit.OpsEvent{Action: "op-2"})
	tracker.Track(context.Background(), audit.OpsEvent{Action: "op-3"})

	close(store.release)
	require.NoError(t, tracker.Close())

	events, err := store.mem.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "op-1", events[0].Action)
	assert.Equal(t, "op-2", events[1].Action)
}

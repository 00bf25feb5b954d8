package security

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	audit "tridcheck/pkg/platform/audit"
	"tridcheck/pkg/platform/audit/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails the first N appends, then delegates to the memory store.
// Models a store outage that recovers while events sit in the buffer.
type flakyStore struct {
	mu       sync.Mutex
	mem      *memory.InMemoryStore
	failures int
}

func (s *flakyStore) Append(ctx context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("store unavailable")
	}
	return s.mem.Append(ctx, event)
}

func TestPublisher_CloseDrainsBuffer(t *testing.T) {
	store := memory.NewInMemoryStore()
	// Flush interval far in the future so only Close drains the buffer.
	pub := New(store, WithFlushInterval(time.Hour))

	for range 10 {
		pub.Emit(context.Background(), audit.SecurityEvent{
			Action: string(audit.EventRateLimitExceeded),
			IP:     "203.0.113.7",
		})
	}

	require.NoError(t, pub.Close())

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 10, "all buffered events should be drained on close")
}

func TestPublisher_FlushesOnInterval(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store, WithFlushInterval(10*time.Millisecond))
	defer pub.Close()

	pub.Emit(context.Background(), audit.SecurityEvent{
		Action: string(audit.EventRateLimitExceeded),
	})

	require.Eventually(t, func() bool {
		events, err := store.ListAll(context.Background())
		return err == nil && len(events) == 1
	}, 2*time.Second, 10*time.Millisecond, "event should be flushed without Close")
}

func TestPublisher_DefaultsSeverityAndTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store, WithFlushInterval(time.Hour))

	before := time.Now()
	pub.Emit(context.Background(), audit.SecurityEvent{
		Action: string(audit.EventRateLimitExceeded),
		IP:     "203.0.113.7",
		// Severity and Timestamp not set
	})
	after := time.Now()

	require.NoError(t, pub.Close())

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.SeverityInfo), events[0].Severity)
	assert.Equal(t, "203.0.113.7", events[0].IP)
	assert.True(t, !events[0].Timestamp.Before(before), "timestamp should be >= before")
	assert.True(t, !events[0].Timestamp.After(after), "timestamp should be <= after")
}

func TestPublisher_PreservesExplicitSeverity(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store, WithFlushInterval(time.Hour))

	pub.Emit(context.Background(), audit.SecurityEvent{
		Action:   string(audit.EventRateLimitExceeded),
		Severity: audit.SeverityCritical,
	})

	require.NoError(t, pub.Close())

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.SeverityCritical), events[0].Severity)
}

func TestPublisher_DropsOldestWhenFull(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store, WithCapacity(2), WithFlushInterval(time.Hour))

	for i := range 5 {
		pub.Emit(context.Background(), audit.SecurityEvent{
			Action: fmt.Sprintf("probe-%d", i),
		})
	}

	assert.Equal(t, int64(3), pub.Dropped())

	require.NoError(t, pub.Close())

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2, "only the newest events should survive")
	assert.Equal(t, "probe-3", events[0].Action)
	assert.Equal(t, "probe-4", events[1].Action)
}

func TestPublisher_RetriesFailedFlush(t *testing.T) {
	mem := memory.NewInMemoryStore()
	store := &flakyStore{mem: mem, failures: 2}
	pub := New(store, WithFlushInterval(10*time.Millisecond))
	defer pub.Close()

	pub.Emit(context.Background(), audit.SecurityEvent{
		Action: string(audit.EventRateLimitExceeded),
	})

	// The failed event is re-enqueued, so a later flush lands it once the
	// store recovers.
	require.Eventually(t, func() bool {
		events, err := mem.ListAll(context.Background())
		return err == nil && len(events) == 1
	}, 2*time.Second, 10*time.Millisecond, "event should survive transient store failures")
}

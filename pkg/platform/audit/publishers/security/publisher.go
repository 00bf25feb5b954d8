// Package security provides a buffered, non-blocking audit publisher for
// security events.
//
// Publisher enqueues events into a bounded ring buffer and flushes them to
// the store from a background goroutine. Emission never blocks the request
// path; under sustained store outage the oldest events are dropped rather
// than stalling callers.
//
// Use for: rate_limit_exceeded
package security

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "tridcheck/pkg/platform/audit"
)

const (
	defaultCapacity      = 10000
	defaultFlushInterval = time.Second
	defaultFlushBatch    = 100
)

// Publisher emits security events asynchronously via a ring buffer.
type Publisher struct {
	store  audit.Store
	buffer *RingBuffer
	logger *slog.Logger

	flushInterval time.Duration
	flushBatch    int

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for flush error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithCapacity sets the ring buffer capacity.
func WithCapacity(n int) Option {
	return func(p *Publisher) {
		p.buffer = NewRingBuffer(n)
	}
}

// WithFlushInterval sets how often buffered events are flushed.
func WithFlushInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.flushInterval = d
		}
	}
}

// New creates a security publisher and starts its flush loop.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:         store,
		buffer:        NewRingBuffer(defaultCapacity),
		flushInterval: defaultFlushInterval,
		flushBatch:    defaultFlushBatch,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.run()
	return p
}

// Emit enqueues a security event. Never blocks and never returns an error;
// if the buffer is full the oldest event is dropped.
func (p *Publisher) Emit(_ context.Context, event audit.SecurityEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Severity == "" {
		event.Severity = audit.SeverityInfo
	}
	p.buffer.Enqueue(event)
}

// Dropped returns the total number of events dropped due to buffer pressure.
func (p *Publisher) Dropped() int64 {
	return p.buffer.Dropped()
}

// Close stops the flush loop and drains remaining events.
func (p *Publisher) Close() error {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
	<-p.done
	return nil
}

func (p *Publisher) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			// Final drain with a bounded context so shutdown cannot hang
			// on a dead store.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			p.flush(ctx)
			cancel()
			return
		case <-ticker.C:
			p.flush(context.Background())
		}
	}
}

// flush writes buffered events to the store in batches.
func (p *Publisher) flush(ctx context.Context) {
	for {
		batch := p.buffer.DequeueBatch(p.flushBatch)
		if len(batch) == 0 {
			return
		}
		for _, event := range batch {
			if err := p.store.Append(ctx, event.ToLegacyEvent()); err != nil {
				if p.logger != nil {
					p.logger.Error("failed to persist security event",
						"action", event.Action,
						"error", err,
					)
				}
				// Re-enqueue so the event gets another flush attempt.
				p.buffer.Enqueue(event)
				return
			}
		}
	}
}

// Package ops provides a fire-and-forget audit tracker for operational events.
//
// Tracker samples high-volume events, drops everything while the store is
// unhealthy (circuit breaker), and persists asynchronously. Losing ops
// events is acceptable; slowing down request handling is not.
//
// Use for: tolerance_schedule_loaded, tolerance_schedule_served, fees_classified
package ops

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "tridcheck/pkg/platform/audit"
)

const defaultQueueSize = 1000

// Tracker emits operational events with sampling and circuit breaking.
type Tracker struct {
	store   audit.Store
	sampler *Sampler
	breaker *CircuitBreaker
	logger  *slog.Logger
	metrics *Metrics

	queue    chan audit.OpsEvent
	stopOnce sync.Once
	done     chan struct{}
}

// Option configures the Tracker.
type Option func(*Tracker)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// WithSampler overrides the default sampler (sample everything).
func WithSampler(s *Sampler) Option {
	return func(t *Tracker) {
		t.sampler = s
	}
}

// WithQueueSize sets the async queue capacity.
func WithQueueSize(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.queue = make(chan audit.OpsEvent, n)
		}
	}
}

// New creates an ops tracker and starts its persistence loop.
func New(store audit.Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:   store,
		sampler: NewSampler(1.0),
		breaker: NewCircuitBreaker(5, time.Minute),
		queue:   make(chan audit.OpsEvent, defaultQueueSize),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	go t.run()
	return t
}

// Track records an operational event. Fire-and-forget: sampling, a full
// queue, or an open circuit all silently drop the event.
func (t *Tracker) Track(_ context.Context, event audit.OpsEvent) {
	if !t.sampler.ShouldSample(event.Action) {
		if t.metrics != nil {
			t.metrics.IncSampled()
		}
		return
	}

	if !t.breaker.Allow() {
		if t.metrics != nil {
			t.metrics.IncCircuitBreakerDropped()
			t.metrics.SetCircuitBreakerState(true)
		}
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case t.queue <- event:
	default:
		// Queue full - drop rather than block the caller.
		if t.metrics != nil {
			t.metrics.IncCircuitBreakerDropped()
		}
	}
}

// Close stops the persistence loop and drains queued events.
func (t *Tracker) Close() error {
	t.stopOnce.Do(func() {
		close(t.queue)
	})
	<-t.done
	return nil
}

func (t *Tracker) run() {
	defer close(t.done)

	for event := range t.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := t.store.Append(ctx, event.ToLegacyEvent())
		cancel()

		if err != nil {
			t.breaker.RecordFailure()
			if t.metrics != nil {
				t.metrics.IncPersistFailures()
				t.metrics.SetCircuitBreakerState(t.breaker.IsOpen())
			}
			if t.logger != nil {
				t.logger.Error("failed to persist ops event",
					"action", event.Action,
					"error", err,
				)
			}
			continue
		}

		t.breaker.RecordSuccess()
		if t.metrics != nil {
			t.metrics.IncTracked()
			t.metrics.SetCircuitBreakerState(false)
		}
	}
}

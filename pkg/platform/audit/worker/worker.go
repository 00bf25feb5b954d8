// Package worker relays staged audit events from the postgres outbox to
// Kafka. The relay is the publishing half of the transactional outbox
// pattern: stores insert into the outbox table, the relay drains it.
package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	audit "tridcheck/pkg/platform/audit"

	"github.com/google/uuid"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = time.Second
)

// Producer publishes a single message to a Kafka topic.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// Relay polls the outbox table and publishes entries to Kafka.
// Entries are deleted only after the broker acknowledges the produce, so a
// crash between produce and delete results in redelivery, never loss.
// Consumers must be idempotent.
type Relay struct {
	db       *sql.DB
	producer Producer
	logger   *slog.Logger

	batchSize    int
	pollInterval time.Duration
}

// Option configures the Relay.
type Option func(*Relay)

// WithBatchSize sets how many outbox entries are drained per poll.
func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithPollInterval sets how often the outbox is polled when empty.
func WithPollInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// NewRelay creates an outbox relay.
func NewRelay(db *sql.DB, producer Producer, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		db:           db,
		producer:     producer,
		logger:       logger,
		batchSize:    defaultBatchSize,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drains the outbox until the context is cancelled. A full batch
// triggers an immediate re-poll; an empty one waits for the poll interval.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		n, err := r.drainBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Error("outbox drain failed", "error", err)
		}
		if n >= r.batchSize {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

type outboxEntry struct {
	id        uuid.UUID
	eventType string
	payload   []byte
}

// drainBatch publishes up to batchSize outbox entries and returns how many
// were relayed. Rows are locked with SKIP LOCKED so multiple relay
// instances never double-publish within one poll.
func (r *Relay) drainBatch(ctx context.Context) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin outbox tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, event_type, payload
		FROM outbox
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("query outbox: %w", err)
	}

	var entries []outboxEntry
	for rows.Next() {
		var entry outboxEntry
		if err := rows.Scan(&entry.id, &entry.eventType, &entry.payload); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, entry)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate outbox: %w", err)
	}

	if len(entries) == 0 {
		return 0, nil
	}

	published := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		topic, key, err := r.route(entry)
		if err != nil {
			// Malformed entries are logged and removed so they cannot
			// wedge the relay.
			r.logger.Error("dropping malformed outbox entry",
				"outbox_id", entry.id,
				"event_type", entry.eventType,
				"error", err,
			)
			published = append(published, entry.id)
			continue
		}

		if err := r.producer.Produce(ctx, topic, key, entry.payload); err != nil {
			// Stop the batch: entries stay in the outbox and are retried
			// on the next poll.
			r.logger.Error("produce failed, will retry",
				"outbox_id", entry.id,
				"topic", topic,
				"error", err,
			)
			break
		}
		published = append(published, entry.id)
	}

	for _, entryID := range published {
		if _, err := tx.ExecContext(ctx, `DELETE FROM outbox WHERE id = $1`, entryID); err != nil {
			return 0, fmt.Errorf("delete published entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit outbox tx: %w", err)
	}
	return len(published), nil
}

// route determines the destination topic and message key for an entry.
// The key is the event ID from the payload so consumers can deduplicate.
func (r *Relay) route(entry outboxEntry) (topic string, key []byte, err error) {
	var envelope struct {
		ID       string `json:"ID"`
		Category string `json:"Category"`
	}
	if err := json.Unmarshal(entry.payload, &envelope); err != nil {
		return "", nil, fmt.Errorf("unmarshal payload envelope: %w", err)
	}
	if _, err := uuid.Parse(envelope.ID); err != nil {
		return "", nil, fmt.Errorf("payload has invalid event ID %q: %w", envelope.ID, err)
	}

	topic = audit.TopicForCategory(audit.EventCategory(envelope.Category))
	return topic, []byte(envelope.ID), nil
}

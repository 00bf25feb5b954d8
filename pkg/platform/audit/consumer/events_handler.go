package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"tridcheck/internal/platform/kafka/consumer"
	id "tridcheck/pkg/domain"
	audit "tridcheck/pkg/platform/audit"

	"github.com/google/uuid"
)

// EventsHandler materializes every audit event into the unified audit_events
// table, which backs ListByCheck and the recent-events queries. Pair it with
// a category handler via Tee so each topic fills both the unified table and
// its per-category projection.
type EventsHandler struct {
	store  EventsStore
	logger *slog.Logger
}

// EventsStore defines the storage interface for unified event rows.
type EventsStore interface {
	AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error
}

// NewEventsHandler creates a unified events handler.
func NewEventsHandler(store EventsStore, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		store:  store,
		logger: logger,
	}
}

// eventPayload matches the outbox JSON structure for any event category.
type eventPayload struct {
	Category        string `json:"Category"`
	Timestamp       string `json:"Timestamp"`
	CheckID         string `json:"CheckID"`
	Subject         string `json:"Subject"`
	Action          string `json:"Action"`
	Outcome         string `json:"Outcome"`
	Reason          string `json:"Reason"`
	LoanRefHash     string `json:"LoanRefHash"`
	ScheduleVersion string `json:"ScheduleVersion"`
	ViolationCount  int    `json:"ViolationCount"`
	RequestID       string `json:"RequestID"`
	IP              string `json:"IP"`
	Severity        string `json:"Severity"`
}

// Handle upserts the unified event row. Malformed messages are logged and
// committed; storage errors stop the commit so the message is redelivered.
func (h *EventsHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, err := uuid.Parse(string(msg.Key))
	if err != nil {
		h.logger.Warn("failed to parse event ID",
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}

	var payload eventPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Warn("failed to unmarshal event payload",
			"event_id", eventID,
			"error", err,
		)
		return nil
	}

	event := audit.Event{
		Category:        audit.EventCategory(payload.Category),
		Subject:         payload.Subject,
		Action:          payload.Action,
		Outcome:         payload.Outcome,
		Reason:          payload.Reason,
		LoanRefHash:     payload.LoanRefHash,
		ScheduleVersion: payload.ScheduleVersion,
		ViolationCount:  payload.ViolationCount,
		RequestID:       payload.RequestID,
		IP:              payload.IP,
		Severity:        payload.Severity,
	}

	// Parse timestamp
	if payload.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, payload.Timestamp); err == nil {
			event.Timestamp = ts
		} else {
			event.Timestamp = time.Now()
		}
	} else {
		event.Timestamp = time.Now()
	}

	// Parse CheckID when present
	if cid, err := uuid.Parse(payload.CheckID); err == nil {
		event.CheckID = id.CheckID(cid)
	}

	if err := h.store.AppendWithID(ctx, eventID, event); err != nil {
		h.logger.Error("failed to store audit event",
			"event_id", eventID,
			"action", event.Action,
			"error", err,
		)
		return fmt.Errorf("store audit event: %w", err)
	}

	return nil
}

// Tee dispatches a message to each handler in order, stopping at the first
// error so the uncommitted message is redelivered to the whole set. Handlers
// must be idempotent.
type Tee []TopicHandler

// Handle runs each handler in order.
func (t Tee) Handle(ctx context.Context, msg *consumer.Message) error {
	for _, h := range t {
		if err := h.Handle(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

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

// ComplianceHandler processes compliance audit events from Kafka.
// Events are written to the audit_compliance table for long-term retention.
type ComplianceHandler struct {
	store  ComplianceStore
	logger *slog.Logger
}

// ComplianceStore defines the storage interface for compliance events.
type ComplianceStore interface {
	AppendCompliance(ctx context.Context, eventID uuid.UUID, event audit.ComplianceRecord) error
}

// NewComplianceHandler creates a compliance event handler.
func NewComplianceHandler(store ComplianceStore, logger *slog.Logger) *ComplianceHandler {
	return &ComplianceHandler{
		store:  store,
		logger: logger,
	}
}

// compliancePayload matches the JSON structure for compliance events.
type compliancePayload struct {
	Timestamp       string `json:"Timestamp"`
	CheckID         string `json:"CheckID"`
	Subject         string `json:"Subject"`
	Action          string `json:"Action"`
	Outcome         string `json:"Outcome"`
	LoanRefHash     string `json:"LoanRefHash"`
	ScheduleVersion string `json:"ScheduleVersion"`
	ViolationCount  int    `json:"ViolationCount"`
	RequestID       string `json:"RequestID"`
}

// Handle processes a compliance audit event.
func (h *ComplianceHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, err := uuid.Parse(string(msg.Key))
	if err != nil {
		h.logger.Error("CRITICAL: failed to parse compliance event ID",
			"key", string(msg.Key),
			"error", err,
		)
		// Return nil to commit - malformed messages should not block
		return nil
	}

	var payload compliancePayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Error("CRITICAL: failed to unmarshal compliance payload",
			"event_id", eventID,
			"error", err,
		)
		return nil
	}

	// Strict validation for compliance events
	if payload.CheckID == "" {
		h.logger.Error("CRITICAL: compliance event missing CheckID",
			"event_id", eventID,
			"action", payload.Action,
		)
		return nil
	}

	record := audit.ComplianceRecord{
		Subject:         payload.Subject,
		Action:          payload.Action,
		Outcome:         payload.Outcome,
		LoanRefHash:     payload.LoanRefHash,
		ScheduleVersion: payload.ScheduleVersion,
		ViolationCount:  payload.ViolationCount,
		RequestID:       payload.RequestID,
	}

	// Parse timestamp
	if payload.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, payload.Timestamp); err == nil {
			record.Timestamp = ts
		} else {
			record.Timestamp = time.Now()
		}
	} else {
		record.Timestamp = time.Now()
	}

	// Parse CheckID
	if cid, err := uuid.Parse(payload.CheckID); err == nil {
		record.CheckID = id.CheckID(cid)
	}

	// Store compliance event
	if err := h.store.AppendCompliance(ctx, eventID, record); err != nil {
		h.logger.Error("failed to store compliance event",
			"event_id", eventID,
			"action", record.Action,
			"error", err,
		)
		return fmt.Errorf("store compliance event: %w", err)
	}

	h.logger.Debug("stored compliance event",
		"event_id", eventID,
		"action", record.Action,
		"check_id", record.CheckID,
	)

	return nil
}

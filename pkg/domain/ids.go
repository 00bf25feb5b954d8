// Package domain holds the shared value objects of the compliance engine:
// exact money and percentage arithmetic, calendar dates, and typed IDs.
// Everything here is immutable and validated at construction.
package domain

import (
	"github.com/google/uuid"

	dErrors "tridcheck/pkg/domain-errors"
)

// CheckID identifies one compliance check invocation. It correlates the
// HTTP or MCP call, its log lines, and its audit events. Typed so a check
// ID can never be passed where some other UUID is expected.
type CheckID uuid.UUID

// NewCheckID returns a fresh random check ID.
func NewCheckID() CheckID {
	return CheckID(uuid.New())
}

// ParseCheckID validates an incoming check ID at a trust boundary.
// Rejects empty strings, malformed UUIDs, and the nil UUID.
func ParseCheckID(s string) (CheckID, error) {
	if s == "" {
		return CheckID{}, dErrors.New(dErrors.CodeInvalidInput, "check id is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return CheckID{}, dErrors.New(dErrors.CodeInvalidInput, "check id is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return CheckID{}, dErrors.New(dErrors.CodeInvalidInput, "check id must not be the nil UUID")
	}
	return CheckID(parsed), nil
}

func (id CheckID) String() string { return uuid.UUID(id).String() }

// IsZero reports whether the ID is unset.
func (id CheckID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

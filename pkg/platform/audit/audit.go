// Package audit provides the event model and publishing contracts for the
// compliance audit trail. Events fan out through category-specific
// publishers: compliance events are fail-closed, security events are
// buffered, and operational events are sampled.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Kafka topics for each event category. The outbox relay routes by
// category and the consumer registers one handler per topic.
const (
	TopicCompliance = "audit.compliance"
	TopicSecurity   = "audit.security"
	TopicOps        = "audit.ops"
)

// TopicForCategory returns the Kafka topic events of the given category
// are published to.
func TopicForCategory(cat EventCategory) string {
	switch cat {
	case CategoryCompliance:
		return TopicCompliance
	case CategorySecurity:
		return TopicSecurity
	default:
		return TopicOps
	}
}

// Store persists audit events. Implementations may write directly
// (in-memory) or stage events in an outbox for asynchronous publishing
// (postgres).
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Emitter is the minimal publishing interface domain modules depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// HashReference returns the hex-encoded SHA-256 digest of a loan reference.
// Audit records carry only the digest so borrower-identifying references
// never reach storage or logs.
func HashReference(ref string) string {
	sum := sha256.Sum256([]byte(ref))
	return hex.EncodeToString(sum[:])
}

package audit

import (
	"time"

	id "tridcheck/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention (e.g., 5 years
	// under TRID record-keeping rules).
	// Examples: completed compliance checks, tolerance determinations.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring and forensics.
	// These feed into SIEM systems and alerting pipelines.
	// Examples: rate limit rejections, malformed request floods.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational visibility.
	// These can be sampled or aggregated with shorter retention.
	// Examples: schedule loads, classification lookups, routine access patterns.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	CheckID   id.CheckID
	Subject   string
	Action    string
	Outcome   string
	Reason    string
	// LoanRefHash is a SHA-256 hash of the loan reference being evaluated.
	// Used for compliance traceability without storing borrower-identifying
	// data. Raw loan references must never leave the process.
	LoanRefHash string
	// ScheduleVersion records which tolerance schedule produced the outcome,
	// so historical checks can be re-derived against the rules then in force.
	ScheduleVersion string
	ViolationCount  int
	RequestID       string
	// IP and Severity are set on security events only.
	IP       string
	Severity string
}

type AuditEvent string

const (
	// Compliance check events
	EventCheckCompleted AuditEvent = "compliance_check_completed"

	// Classification events
	EventFeesClassified AuditEvent = "fees_classified"

	// Schedule events
	EventScheduleLoaded AuditEvent = "tolerance_schedule_loaded"
	EventScheduleServed AuditEvent = "tolerance_schedule_served"

	// Rate limit events
	EventRateLimitExceeded AuditEvent = "rate_limit_exceeded"
)

// eventCategories maps each audit event to its category.
// Compliance: legal/regulatory significance, long retention required.
// Security: security monitoring, SIEM integration, alerting.
// Operations: debugging, operational visibility, can be sampled.
var eventCategories = map[AuditEvent]EventCategory{
	// Compliance events - require tamper-proof storage
	EventCheckCompleted: CategoryCompliance,

	// Security events - feed into SIEM and alerting
	EventRateLimitExceeded: CategorySecurity,

	// Operations events - routine activity, can be sampled
	EventFeesClassified: CategoryOperations,
	EventScheduleLoaded: CategoryOperations,
	EventScheduleServed: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// -----------------------------------------------------------------------------
// Right-sized event types for tri-publisher architecture
// -----------------------------------------------------------------------------

// ComplianceEvent captures regulatory-significant actions requiring guaranteed
// persistence. Fields are chosen to satisfy TRID record-keeping requirements.
// Use with ComplianceAuditor for fail-closed semantics.
type ComplianceEvent struct {
	Timestamp       time.Time  // When the event occurred (set automatically if zero)
	CheckID         id.CheckID // The check this event belongs to (required)
	Subject         string     // Human-readable subject identifier
	Action          string     // The action taken (e.g., "compliance_check_completed")
	Outcome         string     // Result of the check ("compliant", "not_compliant")
	LoanRefHash     string     // SHA-256 hash of the loan reference (no raw PII)
	ScheduleVersion string     // Tolerance schedule version used for the check
	ViolationCount  int        // Number of violations found
	RequestID       string     // Correlation ID for request tracing
}

// Category returns CategoryCompliance (always).
func (e ComplianceEvent) Category() EventCategory { return CategoryCompliance }

// ToLegacyEvent converts to the legacy Event type for backwards compatibility.
func (e ComplianceEvent) ToLegacyEvent() Event {
	return Event{
		Category:        CategoryCompliance,
		Timestamp:       e.Timestamp,
		CheckID:         e.CheckID,
		Subject:         e.Subject,
		Action:          e.Action,
		Outcome:         e.Outcome,
		LoanRefHash:     e.LoanRefHash,
		ScheduleVersion: e.ScheduleVersion,
		ViolationCount:  e.ViolationCount,
		RequestID:       e.RequestID,
	}
}

// SecurityEvent captures security-relevant actions for SIEM and alerting.
// Events are processed asynchronously with buffering and retry.
// Use with SecurityAuditor for non-blocking emission.
type SecurityEvent struct {
	Timestamp time.Time // When the event occurred (set automatically if zero)
	Subject   string    // Entity involved (client IP, endpoint class)
	Action    string    // Security action (e.g., "rate_limit_exceeded")
	Reason    string    // Why this happened (e.g., "window_exhausted")
	IP        string    // Client IP address (critical for security forensics)
	RequestID string    // Correlation ID
	Severity  Severity  // "info", "warning", "critical" for SIEM routing
}

// Severity levels for security events.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Category returns CategorySecurity (always).
func (e SecurityEvent) Category() EventCategory { return CategorySecurity }

// ToLegacyEvent converts to the legacy Event type for backwards compatibility.
func (e SecurityEvent) ToLegacyEvent() Event {
	return Event{
		Category:  CategorySecurity,
		Timestamp: e.Timestamp,
		Subject:   e.Subject,
		Action:    e.Action,
		Reason:    e.Reason,
		RequestID: e.RequestID,
		IP:        e.IP,
		Severity:  string(e.Severity),
	}
}

// OpsEvent captures operational events with minimal overhead.
// Events are fire-and-forget with optional sampling.
// Use with OpsTracker for non-blocking, sampled emission.
type OpsEvent struct {
	Timestamp time.Time // When the event occurred (set automatically if zero)
	Subject   string    // Entity involved
	Action    string    // Operational action (e.g., "tolerance_schedule_loaded")
	RequestID string    // Correlation ID
}

// Category returns CategoryOperations (always).
func (e OpsEvent) Category() EventCategory { return CategoryOperations }

// ToLegacyEvent converts to the legacy Event type for backwards compatibility.
func (e OpsEvent) ToLegacyEvent() Event {
	return Event{
		Category:  CategoryOperations,
		Timestamp: e.Timestamp,
		Subject:   e.Subject,
		Action:    e.Action,
		RequestID: e.RequestID,
	}
}

package audit

import (
	"time"

	id "tridcheck/pkg/domain"
)

// Per-category storage projections. The Kafka consumers decode topic
// payloads into these records and the postgres store materializes them into
// the audit_compliance, audit_security, and audit_ops tables. Shared here so
// the store satisfies the consumer interfaces directly.

// ComplianceRecord is a compliance event row for the audit_compliance table.
type ComplianceRecord struct {
	Timestamp       time.Time
	CheckID         id.CheckID
	Subject         string
	Action          string
	Outcome         string
	LoanRefHash     string
	ScheduleVersion string
	ViolationCount  int
	RequestID       string
}

// SecurityRecord is a security event row for the audit_security table.
type SecurityRecord struct {
	Timestamp time.Time
	Subject   string
	Action    string
	Reason    string
	IP        string
	RequestID string
	Severity  string
}

// OpsRecord is an operational event row for the audit_ops table.
type OpsRecord struct {
	Timestamp time.Time
	Subject   string
	Action    string
	RequestID string
}

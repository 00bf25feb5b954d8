// Package ports defines the interfaces the compliance module needs from
// the rest of the system. Ports keep the module decoupled from concrete
// audit, transport, and storage implementations.
package ports

import (
	"context"

	"tridcheck/pkg/platform/audit"
)

// CompliancePublisher emits regulatory audit events with fail-closed
// semantics: if Emit returns an error the check result MUST NOT be
// released to the caller.
type CompliancePublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// OpsTracker records operational audit events. Fire-and-forget: losing
// an ops event never fails the business operation.
type OpsTracker interface {
	Track(ctx context.Context, event audit.OpsEvent)
}

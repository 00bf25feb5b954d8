package models

import (
	"fmt"

	id "tridcheck/pkg/domain"
	dErrors "tridcheck/pkg/domain-errors"
)

// Summary strings are generated from counts only, never free text, so
// reports stay deterministic and diffable.
const summaryCompliant = "COMPLIANT: no violations"

// APRComparison carries the APR figures behind the verdict.
type APRComparison struct {
	LE        id.Percent `json:"le"`
	CD        id.Percent `json:"cd"`
	Delta     id.Percent `json:"delta"`
	Threshold id.Percent `json:"threshold"`
}

// TimingResult carries the business-day arithmetic behind the verdict.
type TimingResult struct {
	BusinessDays int `json:"business_days"`
	RequiredDays int `json:"required_days"`
}

// ComplianceReport is the verdict for one LE/CD pair. Immutable after
// construction; the engine never persists it.
type ComplianceReport struct {
	IsCompliant bool        `json:"is_compliant"`
	Violations  []Violation `json:"violations"`
	Summary     string      `json:"summary"`

	// Transparency fields: the intermediate figures a reviewer needs to
	// audit the verdict without re-running the engine.
	Totals          []BucketTotals `json:"totals"`
	Warnings        []string       `json:"warnings"`
	APR             APRComparison  `json:"apr"`
	Timing          TimingResult   `json:"timing"`
	ScheduleVersion string         `json:"schedule_version"`
}

// NewComplianceReport assembles the final report. Violations must arrive in
// the assembler's fixed order; this constructor enforces the structural
// invariants (valid types, positive excess, compliance flag coupled to the
// violation count) and derives the summary.
func NewComplianceReport(violations []Violation, totals []BucketTotals, warnings []string, apr APRComparison, timing TimingResult, scheduleVersion string) (*ComplianceReport, error) {
	if scheduleVersion == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "report requires the schedule version it was produced under")
	}
	for i, v := range violations {
		if !v.Type.IsValid() {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("violation %d has unknown type %q", i, v.Type))
		}
		if !v.AmountOver.IsPositive() {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("violation %d has non-positive amount_over", i))
		}
	}

	// JSON must carry [] rather than null for empty sequences.
	if violations == nil {
		violations = []Violation{}
	}
	if totals == nil {
		totals = []BucketTotals{}
	}
	if warnings == nil {
		warnings = []string{}
	}

	summary := summaryCompliant
	if len(violations) > 0 {
		summary = fmt.Sprintf("NOT COMPLIANT: %d violation(s) found", len(violations))
	}

	return &ComplianceReport{
		IsCompliant:     len(violations) == 0,
		Violations:      violations,
		Summary:         summary,
		Totals:          totals,
		Warnings:        warnings,
		APR:             apr,
		Timing:          timing,
		ScheduleVersion: scheduleVersion,
	}, nil
}

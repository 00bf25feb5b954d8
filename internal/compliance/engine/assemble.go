package engine

import (
	"sort"

	"tridcheck/internal/compliance/models"
)

// AssembleReport merges every checker's findings into the final report.
// Violation order is fixed by rule, never by input order: per-fee zero
// tolerance violations sorted by fee name, then the cumulative bucket
// violation, then APR drift, then delivery timing. Identical inputs yield
// byte-identical reports.
func AssembleReport(feeViolations []models.Violation, aprViolation, timingViolation *models.Violation, totals []models.BucketTotals, warnings []string, apr models.APRComparison, timing models.TimingResult, scheduleVersion string) (*models.ComplianceReport, error) {
	ordered := orderFeeViolations(feeViolations)
	if aprViolation != nil {
		ordered = append(ordered, *aprViolation)
	}
	if timingViolation != nil {
		ordered = append(ordered, *timingViolation)
	}
	return models.NewComplianceReport(ordered, totals, warnings, apr, timing, scheduleVersion)
}

// orderFeeViolations puts fee-level violations in assembler order: zero
// tolerance entries sorted by fee name, cumulative entries after them.
func orderFeeViolations(violations []models.Violation) []models.Violation {
	zero := make([]models.Violation, 0, len(violations))
	var rest []models.Violation
	for _, v := range violations {
		if v.Type == models.ViolationZeroTolerance {
			zero = append(zero, v)
			continue
		}
		rest = append(rest, v)
	}
	sort.SliceStable(zero, func(i, j int) bool {
		return feeName(zero[i]) < feeName(zero[j])
	})
	return append(zero, rest...)
}

func feeName(v models.Violation) string {
	if v.Fee == nil {
		return ""
	}
	return *v.Fee
}

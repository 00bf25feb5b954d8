package engine

import (
	"tridcheck/internal/compliance/models"
	id "tridcheck/pkg/domain"
)

// Regulation Z re-disclosure thresholds in percentage points: an eighth
// for regular (fixed rate) transactions, a quarter for irregular
// (variable rate) ones.
var (
	aprThresholdFixed    = id.MustPercent("0.125")
	aprThresholdVariable = id.MustPercent("0.250")
)

// APRThreshold returns the drift threshold for the loan's rate structure.
func APRThreshold(isVariableRate bool) id.Percent {
	if isVariableRate {
		return aprThresholdVariable
	}
	return aprThresholdFixed
}

// CheckAPRDrift compares the disclosed APR against the final one. Drift is
// direction agnostic: the regulation asks whether the figure changed beyond
// the threshold, not which way. Returns nil when within tolerance; drift
// landing exactly on the threshold is compliant.
func CheckAPRDrift(leAPR, cdAPR id.Percent, isVariableRate bool) (*models.Violation, error) {
	threshold := APRThreshold(isVariableRate)
	drift := cdAPR.Sub(leAPR).Abs()
	if !drift.GreaterThan(threshold) {
		return nil, nil
	}
	v, err := models.NewAPRDriftViolation(leAPR, cdAPR, threshold)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

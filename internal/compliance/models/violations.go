package models

import (
	"fmt"

	id "tridcheck/pkg/domain"
	dErrors "tridcheck/pkg/domain-errors"
)

// ViolationType is the closed enumeration of breach kinds.
type ViolationType string

const (
	ViolationZeroTolerance        ViolationType = "zero_tolerance"
	ViolationCumulativeTenPercent ViolationType = "cumulative_ten_percent"
	ViolationAPRDrift             ViolationType = "apr_drift"
	ViolationLateDelivery         ViolationType = "late_delivery"
)

// IsValid checks if the violation type is one of the supported values.
func (v ViolationType) IsValid() bool {
	switch v {
	case ViolationZeroTolerance, ViolationCumulativeTenPercent, ViolationAPRDrift, ViolationLateDelivery:
		return true
	}
	return false
}

// String returns the string representation.
func (v ViolationType) String() string {
	return string(v)
}

// Violation records one breach. A Violation only exists when a boundary was
// actually crossed: amount_over is strictly positive, enforced by the
// constructors below. Fee and the amount pair are null for document-level
// breaches (cumulative, APR, timing).
type Violation struct {
	Type        ViolationType `json:"type"`
	Fee         *string       `json:"fee"`
	LEAmount    *id.Money     `json:"le_amount"`
	CDAmount    *id.Money     `json:"cd_amount"`
	AmountOver  id.Delta      `json:"amount_over"`
	Description string        `json:"description"`
}

// NewZeroToleranceViolation records a per-fee increase in a zero-tolerance
// bucket. Any increase is a breach, down to one minor unit.
func NewZeroToleranceViolation(feeName string, leAmount, cdAmount id.Money) (Violation, error) {
	if !cdAmount.GreaterThan(leAmount) {
		return Violation{}, dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("zero tolerance violation requires cd > le, got le=%s cd=%s", leAmount, cdAmount))
	}
	over := cdAmount.Sub(leAmount)
	return Violation{
		Type:       ViolationZeroTolerance,
		Fee:        &feeName,
		LEAmount:   &leAmount,
		CDAmount:   &cdAmount,
		AmountOver: id.MoneyDelta(over),
		Description: fmt.Sprintf("%s increased from %s to %s; zero tolerance allows no increase (over by %s)",
			feeName, leAmount, cdAmount, over),
	}, nil
}

// NewCumulativeViolation records a ten-percent bucket total exceeding its
// limit. Attributed to the bucket as a whole, so Fee is null.
func NewCumulativeViolation(leTotal, cdTotal, limit id.Money) (Violation, error) {
	if !cdTotal.GreaterThan(limit) {
		return Violation{}, dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("cumulative violation requires cd total > limit, got total=%s limit=%s", cdTotal, limit))
	}
	over := cdTotal.Sub(limit)
	return Violation{
		Type:       ViolationCumulativeTenPercent,
		Fee:        nil,
		LEAmount:   &leTotal,
		CDAmount:   &cdTotal,
		AmountOver: id.MoneyDelta(over),
		Description: fmt.Sprintf("ten percent cumulative bucket increased from %s to %s, exceeding the allowed %s by %s",
			leTotal, cdTotal, limit, over),
	}, nil
}

// NewAPRDriftViolation records APR drift beyond the applicable threshold,
// in either direction.
func NewAPRDriftViolation(leAPR, cdAPR, threshold id.Percent) (Violation, error) {
	drift := cdAPR.Sub(leAPR).Abs()
	if !drift.GreaterThan(threshold) {
		return Violation{}, dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("apr violation requires |drift| > threshold, got drift=%s threshold=%s", drift, threshold))
	}
	over := id.PercentFromDecimal(drift.Decimal().Sub(threshold.Decimal()))
	return Violation{
		Type:       ViolationAPRDrift,
		Fee:        nil,
		LEAmount:   nil,
		CDAmount:   nil,
		AmountOver: id.PercentDelta(over),
		Description: fmt.Sprintf("apr moved from %s to %s; drift of %s percentage points exceeds the %s threshold by %s",
			leAPR, cdAPR, drift, threshold, over),
	}, nil
}

// NewLateDeliveryViolation records a closing disclosure received fewer
// business days before closing than the regulation requires.
func NewLateDeliveryViolation(businessDays, requiredDays int) (Violation, error) {
	if businessDays >= requiredDays {
		return Violation{}, dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("late delivery violation requires fewer than %d business days, got %d", requiredDays, businessDays))
	}
	short := requiredDays - businessDays
	return Violation{
		Type:       ViolationLateDelivery,
		Fee:        nil,
		LEAmount:   nil,
		CDAmount:   nil,
		AmountOver: id.DaysDelta(short),
		Description: fmt.Sprintf("closing disclosure received %d business day(s) before closing; at least %d required",
			businessDays, requiredDays),
	}, nil
}

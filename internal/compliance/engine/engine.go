// Package engine implements the comparison rules of a compliance check.
// This is pure domain logic - no I/O, no side effects. Every checker
// receives all data it needs as arguments; the Engine ties them together
// over one immutable tolerance schedule injected at construction.
package engine

import (
	"fmt"

	"tridcheck/internal/compliance/models"
	"tridcheck/internal/compliance/tolerance"
	id "tridcheck/pkg/domain"
	dErrors "tridcheck/pkg/domain-errors"
)

// Engine runs the full comparison for one LE/CD pair. Stateless and
// reentrant: concurrent checks share only the read-only schedule.
type Engine struct {
	classifier *tolerance.Classifier
}

// NewEngine creates an engine over a validated tolerance schedule.
func NewEngine(schedule *tolerance.Schedule) (*Engine, error) {
	classifier, err := tolerance.NewClassifier(schedule)
	if err != nil {
		return nil, err
	}
	return &Engine{classifier: classifier}, nil
}

// Classifier exposes the classifier for classify-only operations.
func (e *Engine) Classifier() *tolerance.Classifier {
	return e.classifier
}

// Schedule exposes the configuration verdicts are produced under.
func (e *Engine) Schedule() *tolerance.Schedule {
	return e.classifier.Schedule()
}

// ScheduleVersion returns the active schedule version.
func (e *Engine) ScheduleVersion() string {
	return e.classifier.Version()
}

// Check runs every checker and assembles the verdict. Either all input
// validates and a complete report is produced, or the check fails outright
// with a taxonomy error; there is no partial-result mode.
func (e *Engine) Check(input models.CheckInput) (*models.ComplianceReport, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	combined := make([]models.FeeRecord, 0, len(input.LEFees)+len(input.CDFees))
	combined = append(combined, input.LEFees...)
	combined = append(combined, input.CDFees...)

	totals, err := AggregateBuckets(combined, e.classifier)
	if err != nil {
		return nil, err
	}
	feeViolations, err := EvaluateFeeDeltas(input.LEFees, input.CDFees, e.classifier)
	if err != nil {
		return nil, err
	}
	aprViolation, err := CheckAPRDrift(input.LEAPR, input.CDAPR, input.IsVariableRate)
	if err != nil {
		return nil, err
	}
	timing, timingViolation, err := CheckDeliveryTiming(input.CDReceivedDate, input.ClosingDate, e.Schedule())
	if err != nil {
		return nil, err
	}

	apr := models.APRComparison{
		LE:        input.LEAPR,
		CD:        input.CDAPR,
		Delta:     input.CDAPR.Sub(input.LEAPR).Abs(),
		Threshold: APRThreshold(input.IsVariableRate),
	}

	return AssembleReport(feeViolations, aprViolation, timingViolation,
		totals, nearLimitWarnings(totals), apr, timing, e.ScheduleVersion())
}

// validateInput rejects impossible data before any comparison logic runs.
func validateInput(input models.CheckInput) error {
	if input.CDReceivedDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "cd_received_date is required")
	}
	if input.ClosingDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "closing_date is required")
	}
	if input.CDReceivedDate.After(input.ClosingDate) {
		return dErrors.New(dErrors.CodeInvalidDateOrdering,
			fmt.Sprintf("closing disclosure received %s, after closing %s", input.CDReceivedDate, input.ClosingDate))
	}
	for _, fee := range input.LEFees {
		if err := validateFee(fee, models.DocumentLoanEstimate); err != nil {
			return err
		}
	}
	for _, fee := range input.CDFees {
		if err := validateFee(fee, models.DocumentClosingDisclosure); err != nil {
			return err
		}
	}
	return nil
}

func validateFee(fee models.FeeRecord, want models.DocumentKind) error {
	if fee.Document != want {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("fee %q carries document kind %q, expected %q", fee.Name, fee.Document, want))
	}
	if fee.Amount.IsNegative() {
		return dErrors.New(dErrors.CodeInvalidAmount,
			fmt.Sprintf("fee %q has negative amount %s", fee.Name, fee.Amount))
	}
	if !fee.Category.IsValid() {
		return dErrors.New(dErrors.CodeUnknownFeeCategory,
			fmt.Sprintf("unknown fee category %q", fee.Category))
	}
	return nil
}

// nearLimitWarnings flags a cumulative bucket running close to its ceiling
// without breaching it: the closing increase consumed more than 80% of the
// allowed 10% headroom. Warning strings are derived from figures only,
// never free text.
func nearLimitWarnings(totals []models.BucketTotals) []string {
	t, ok := totalsFor(totals, models.BucketTenPercentCumulative)
	if !ok {
		return nil
	}
	limit := tenPercentLimit(t.LETotal)
	if t.CDTotal.GreaterThan(limit) {
		return nil
	}
	headroom := limit.Sub(t.LETotal)
	used := t.CDTotal.Sub(t.LETotal)
	line := id.MoneyFromDecimal(headroom.Decimal().Mul(nearLimitFraction))
	if used.GreaterThan(line) {
		return []string{fmt.Sprintf("ten percent cumulative bucket total %s has used more than 80%% of the allowed increase to %s", t.CDTotal, limit)}
	}
	return nil
}

package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tridcheck/internal/compliance/models"
	"tridcheck/internal/compliance/tolerance"
	id "tridcheck/pkg/domain"
	dErrors "tridcheck/pkg/domain-errors"
)

// =============================================================================
// Test Helpers
// =============================================================================

func testEngine(t *testing.T) *Engine {
	t.Helper()
	schedule, err := tolerance.LoadDefault()
	require.NoError(t, err)
	eng, err := NewEngine(schedule)
	require.NoError(t, err)
	return eng
}

func testClassifier(t *testing.T) *tolerance.Classifier {
	t.Helper()
	return testEngine(t).Classifier()
}

func money(t *testing.T, s string) id.Money {
	t.Helper()
	m, err := id.ParseMoney(s)
	require.NoError(t, err)
	return m
}

func day(t *testing.T, s string) id.Date {
	t.Helper()
	d, err := id.ParseDate(s)
	require.NoError(t, err)
	return d
}

func fee(t *testing.T, doc models.DocumentKind, category models.FeeCategory, name, amount string) models.FeeRecord {
	t.Helper()
	rec, err := models.NewFeeRecord(name, category, money(t, amount), doc, "")
	require.NoError(t, err)
	return rec
}

func leFee(t *testing.T, category models.FeeCategory, name, amount string) models.FeeRecord {
	t.Helper()
	return fee(t, models.DocumentLoanEstimate, category, name, amount)
}

func cdFee(t *testing.T, category models.FeeCategory, name, amount string) models.FeeRecord {
	t.Helper()
	return fee(t, models.DocumentClosingDisclosure, category, name, amount)
}

// compliantInput is a baseline that passes every checker: identical fee
// sets, matching APR, receipt five business days before a Friday closing.
func compliantInput(t *testing.T) models.CheckInput {
	t.Helper()
	return models.CheckInput{
		LEFees: []models.FeeRecord{
			leFee(t, models.CategoryOrigination, "Origination Charge", "1500.00"),
			leFee(t, models.CategoryRecording, "Recording Fee", "200.00"),
			leFee(t, models.CategoryEscrow, "Initial Escrow Deposit", "900.00"),
		},
		CDFees: []models.FeeRecord{
			cdFee(t, models.CategoryOrigination, "Origination Charge", "1500.00"),
			cdFee(t, models.CategoryRecording, "Recording Fee", "200.00"),
			cdFee(t, models.CategoryEscrow, "Initial Escrow Deposit", "900.00"),
		},
		LEAPR:          id.MustPercent("6.500"),
		CDAPR:          id.MustPercent("6.500"),
		IsVariableRate: false,
		CDReceivedDate: day(t, "2026-03-06"),
		ClosingDate:    day(t, "2026-03-13"),
	}
}

// =============================================================================
// Full Check Scenarios
// =============================================================================
// Justification for unit tests: Check is the product. These scenarios pin the
// regulatory boundaries end to end, including the exact report wire shape a
// downstream auditor consumes.

func TestEngine_Check_Compliant(t *testing.T) {
	eng := testEngine(t)

	report, err := eng.Check(compliantInput(t))
	require.NoError(t, err)

	assert.True(t, report.IsCompliant)
	assert.Empty(t, report.Violations)
	assert.Equal(t, "COMPLIANT: no violations", report.Summary)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, "2026.01", report.ScheduleVersion)
	assert.Equal(t, 5, report.Timing.BusinessDays)
	assert.Equal(t, 3, report.Timing.RequiredDays)
	assert.Equal(t, "0.125", report.APR.Threshold.String())
	assert.Equal(t, "0.000", report.APR.Delta.String())

	require.Len(t, report.Totals, 3)
	assert.Equal(t, models.BucketZeroTolerance, report.Totals[0].Bucket)
	assert.Equal(t, "1500.00", report.Totals[0].LETotal.String())
	assert.Equal(t, "1500.00", report.Totals[0].CDTotal.String())
	assert.Equal(t, models.BucketTenPercentCumulative, report.Totals[1].Bucket)
	assert.Equal(t, models.BucketUnlimited, report.Totals[2].Bucket)
}

func TestEngine_Check_ZeroToleranceIncrease(t *testing.T) {
	eng := testEngine(t)
	input := compliantInput(t)
	input.CDFees[0] = cdFee(t, models.CategoryOrigination, "Origination Charge", "1600.00")

	report, err := eng.Check(input)
	require.NoError(t, err)

	assert.False(t, report.IsCompliant)
	assert.Equal(t, "NOT COMPLIANT: 1 violation(s) found", report.Summary)
	require.Len(t, report.Violations, 1)

	v := report.Violations[0]
	assert.Equal(t, models.ViolationZeroTolerance, v.Type)
	require.NotNil(t, v.Fee)
	assert.Equal(t, "origination charge", *v.Fee)
	assert.Equal(t, "1500.00", v.LEAmount.String())
	assert.Equal(t, "1600.00", v.CDAmount.String())
	assert.Equal(t, "100.00", v.AmountOver.String())

	raw, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"is_compliant":false`)
	assert.Contains(t, string(raw), `"type":"zero_tolerance"`)
	assert.Contains(t, string(raw), `"fee":"origination charge"`)
	assert.Contains(t, string(raw), `"amount_over":100.00`)
}

func TestEngine_Check_CumulativeBucket(t *testing.T) {
	eng := testEngine(t)

	withRecording := func(cdAmount string) models.CheckInput {
		input := compliantInput(t)
		input.CDFees[1] = cdFee(t, models.CategoryRecording, "Recording Fee", cdAmount)
		return input
	}

	t.Run("increase inside the warning line is plainly compliant", func(t *testing.T) {
		report, err := eng.Check(withRecording("215.00"))
		require.NoError(t, err)

		assert.True(t, report.IsCompliant)
		assert.Empty(t, report.Violations)
		assert.Empty(t, report.Warnings)
	})

	t.Run("increase past 80 percent of headroom raises a warning", func(t *testing.T) {
		report, err := eng.Check(withRecording("218.00"))
		require.NoError(t, err)

		assert.True(t, report.IsCompliant)
		assert.Empty(t, report.Violations)
		require.Len(t, report.Warnings, 1)
		assert.Equal(t, "ten percent cumulative bucket total 218.00 has used more than 80% of the allowed increase to 220.00", report.Warnings[0])
	})

	t.Run("exactly 110 percent is compliant with a warning", func(t *testing.T) {
		report, err := eng.Check(withRecording("220.00"))
		require.NoError(t, err)

		assert.True(t, report.IsCompliant)
		assert.Empty(t, report.Violations)
		assert.Len(t, report.Warnings, 1)
	})

	t.Run("over 110 percent violates by the exact excess", func(t *testing.T) {
		report, err := eng.Check(withRecording("225.00"))
		require.NoError(t, err)

		assert.False(t, report.IsCompliant)
		assert.Empty(t, report.Warnings)
		require.Len(t, report.Violations, 1)

		v := report.Violations[0]
		assert.Equal(t, models.ViolationCumulativeTenPercent, v.Type)
		assert.Nil(t, v.Fee)
		assert.Equal(t, "200.00", v.LEAmount.String())
		assert.Equal(t, "225.00", v.CDAmount.String())
		assert.Equal(t, "5.00", v.AmountOver.String())
	})
}

func TestEngine_Check_ViolationOrderIsFixed(t *testing.T) {
	eng := testEngine(t)
	input := models.CheckInput{
		LEFees: []models.FeeRecord{
			leFee(t, models.CategoryOrigination, "Origination Charge", "1500.00"),
			leFee(t, models.CategoryAppraisal, "Appraisal Fee", "600.00"),
			leFee(t, models.CategoryRecording, "Recording Fee", "200.00"),
		},
		CDFees: []models.FeeRecord{
			// Deliberately out of name order: the assembler must re-sort.
			cdFee(t, models.CategoryOrigination, "Origination Charge", "1600.00"),
			cdFee(t, models.CategoryAppraisal, "Appraisal Fee", "650.00"),
			cdFee(t, models.CategoryRecording, "Recording Fee", "225.00"),
		},
		LEAPR:          id.MustPercent("6.500"),
		CDAPR:          id.MustPercent("6.750"),
		IsVariableRate: false,
		CDReceivedDate: day(t, "2026-03-11"),
		ClosingDate:    day(t, "2026-03-13"),
	}

	report, err := eng.Check(input)
	require.NoError(t, err)

	assert.False(t, report.IsCompliant)
	assert.Equal(t, "NOT COMPLIANT: 5 violation(s) found", report.Summary)
	require.Len(t, report.Violations, 5)

	assert.Equal(t, models.ViolationZeroTolerance, report.Violations[0].Type)
	assert.Equal(t, "appraisal fee", *report.Violations[0].Fee)
	assert.Equal(t, "50.00", report.Violations[0].AmountOver.String())

	assert.Equal(t, models.ViolationZeroTolerance, report.Violations[1].Type)
	assert.Equal(t, "origination charge", *report.Violations[1].Fee)
	assert.Equal(t, "100.00", report.Violations[1].AmountOver.String())

	assert.Equal(t, models.ViolationCumulativeTenPercent, report.Violations[2].Type)
	assert.Equal(t, "5.00", report.Violations[2].AmountOver.String())

	assert.Equal(t, models.ViolationAPRDrift, report.Violations[3].Type)
	assert.Equal(t, "0.125", report.Violations[3].AmountOver.String())

	assert.Equal(t, models.ViolationLateDelivery, report.Violations[4].Type)
	assert.Equal(t, "1", report.Violations[4].AmountOver.String())
	assert.Equal(t, 2, report.Timing.BusinessDays)
}

func TestEngine_Check_Deterministic(t *testing.T) {
	eng := testEngine(t)

	t.Run("shuffled fee order yields a byte-identical report", func(t *testing.T) {
		input := compliantInput(t)
		input.CDFees[0] = cdFee(t, models.CategoryOrigination, "Origination Charge", "1600.00")

		first, err := eng.Check(input)
		require.NoError(t, err)

		shuffled := input
		shuffled.LEFees = []models.FeeRecord{input.LEFees[2], input.LEFees[0], input.LEFees[1]}
		shuffled.CDFees = []models.FeeRecord{input.CDFees[1], input.CDFees[2], input.CDFees[0]}
		second, err := eng.Check(shuffled)
		require.NoError(t, err)

		firstJSON, err := json.Marshal(first)
		require.NoError(t, err)
		secondJSON, err := json.Marshal(second)
		require.NoError(t, err)
		assert.Equal(t, string(firstJSON), string(secondJSON))
	})

	t.Run("a charge split across rows compares as one line", func(t *testing.T) {
		single := compliantInput(t)
		split := compliantInput(t)
		split.LEFees[1] = leFee(t, models.CategoryRecording, "Recording Fee", "120.00")
		split.LEFees = append(split.LEFees, leFee(t, models.CategoryRecording, "recording  FEE", "80.00"))

		singleReport, err := eng.Check(single)
		require.NoError(t, err)
		splitReport, err := eng.Check(split)
		require.NoError(t, err)

		singleJSON, err := json.Marshal(singleReport)
		require.NoError(t, err)
		splitJSON, err := json.Marshal(splitReport)
		require.NoError(t, err)
		assert.Equal(t, string(singleJSON), string(splitJSON))
	})
}

// =============================================================================
// Input Validation
// =============================================================================
// Justification for unit tests: every rejection below is a structural input
// error that must surface before any comparison logic runs; a partial report
// produced from impossible data would be worse than no report.

func TestEngine_Check_RejectsInvalidInput(t *testing.T) {
	eng := testEngine(t)

	t.Run("receipt after closing is invalid_date_ordering", func(t *testing.T) {
		input := compliantInput(t)
		input.CDReceivedDate = day(t, "2026-03-16")

		report, err := eng.Check(input)
		require.Error(t, err)
		assert.Nil(t, report)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidDateOrdering))
	})

	t.Run("missing dates are rejected", func(t *testing.T) {
		input := compliantInput(t)
		input.CDReceivedDate = id.Date{}

		_, err := eng.Check(input)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("unknown category fails closed", func(t *testing.T) {
		input := compliantInput(t)
		input.LEFees = append(input.LEFees, models.FeeRecord{
			Name:     "Home Warranty",
			Category: "warranty",
			Amount:   money(t, "100.00"),
			Document: models.DocumentLoanEstimate,
		})

		report, err := eng.Check(input)
		require.Error(t, err)
		assert.Nil(t, report)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnknownFeeCategory))
	})

	t.Run("negative amount is invalid_amount", func(t *testing.T) {
		input := compliantInput(t)
		input.CDFees = append(input.CDFees, models.FeeRecord{
			Name:     "Lender Credit",
			Category: models.CategoryOther,
			Amount:   id.MoneyFromCents(-500),
			Document: models.DocumentClosingDisclosure,
		})

		_, err := eng.Check(input)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidAmount))
	})

	t.Run("fee stamped with the wrong document is rejected", func(t *testing.T) {
		input := compliantInput(t)
		input.LEFees = append(input.LEFees, cdFee(t, models.CategoryOther, "Courier Fee", "25.00"))

		_, err := eng.Check(input)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

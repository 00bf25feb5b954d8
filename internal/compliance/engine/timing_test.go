package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tridcheck/internal/compliance/models"
	"tridcheck/internal/compliance/tolerance"
	id "tridcheck/pkg/domain"
	dErrors "tridcheck/pkg/domain-errors"
)

// noHolidays isolates pure weekday arithmetic from the schedule calendar.
type noHolidays struct{}

func (noHolidays) IsHoliday(id.Date) bool { return false }

// =============================================================================
// Business Day Counting
// =============================================================================
// Justification for unit tests: the receipt day is day zero and never counted.
// That off-by-one is the classic compliance bug, so the three-day boundary is
// exercised from both sides, across a weekend, and across a federal holiday.

func TestCountBusinessDays(t *testing.T) {
	schedule, err := tolerance.LoadDefault()
	require.NoError(t, err)

	tests := []struct {
		name     string
		from     string
		to       string
		calendar BusinessCalendar
		want     int
	}{
		{name: "same day counts zero", from: "2026-03-13", to: "2026-03-13", calendar: noHolidays{}, want: 0},
		{name: "tuesday to friday", from: "2026-03-10", to: "2026-03-13", calendar: noHolidays{}, want: 3},
		{name: "wednesday to friday", from: "2026-03-11", to: "2026-03-13", calendar: noHolidays{}, want: 2},
		{name: "weekend days are skipped", from: "2026-03-05", to: "2026-03-10", calendar: noHolidays{}, want: 3},
		{name: "friday to next friday", from: "2026-03-06", to: "2026-03-13", calendar: noHolidays{}, want: 5},
		{name: "observed independence day is skipped", from: "2026-06-30", to: "2026-07-06", calendar: schedule, want: 3},
		{name: "same span without the holiday calendar", from: "2026-06-30", to: "2026-07-06", calendar: noHolidays{}, want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CountBusinessDays(day(t, tt.from), day(t, tt.to), tt.calendar)
			assert.Equal(t, tt.want, got)
		})
	}
}

// =============================================================================
// Delivery Timing
// =============================================================================

func TestCheckDeliveryTiming(t *testing.T) {
	schedule, err := tolerance.LoadDefault()
	require.NoError(t, err)

	t.Run("exactly three business days is compliant", func(t *testing.T) {
		timing, violation, err := CheckDeliveryTiming(day(t, "2026-03-10"), day(t, "2026-03-13"), schedule)
		require.NoError(t, err)
		assert.Nil(t, violation)
		assert.Equal(t, models.TimingResult{BusinessDays: 3, RequiredDays: 3}, timing)
	})

	t.Run("exactly two business days violates", func(t *testing.T) {
		timing, violation, err := CheckDeliveryTiming(day(t, "2026-03-11"), day(t, "2026-03-13"), schedule)
		require.NoError(t, err)
		require.NotNil(t, violation)
		assert.Equal(t, models.ViolationLateDelivery, violation.Type)
		assert.Equal(t, "1", violation.AmountOver.String())
		assert.Equal(t, 2, timing.BusinessDays)
	})

	t.Run("a holiday can turn a compliant span late", func(t *testing.T) {
		// Receipt Wednesday 2026-07-01, closing Monday 2026-07-06: Thursday
		// and Monday count, Friday is observed Independence Day.
		timing, violation, err := CheckDeliveryTiming(day(t, "2026-07-01"), day(t, "2026-07-06"), schedule)
		require.NoError(t, err)
		require.NotNil(t, violation)
		assert.Equal(t, 2, timing.BusinessDays)

		// One day earlier clears it.
		timing, violation, err = CheckDeliveryTiming(day(t, "2026-06-30"), day(t, "2026-07-06"), schedule)
		require.NoError(t, err)
		assert.Nil(t, violation)
		assert.Equal(t, 3, timing.BusinessDays)
	})

	t.Run("receipt on closing day is three days short", func(t *testing.T) {
		timing, violation, err := CheckDeliveryTiming(day(t, "2026-03-13"), day(t, "2026-03-13"), schedule)
		require.NoError(t, err)
		require.NotNil(t, violation)
		assert.Equal(t, "3", violation.AmountOver.String())
		assert.Equal(t, 0, timing.BusinessDays)
	})

	t.Run("receipt after closing is impossible data", func(t *testing.T) {
		_, violation, err := CheckDeliveryTiming(day(t, "2026-03-16"), day(t, "2026-03-13"), schedule)
		require.Error(t, err)
		assert.Nil(t, violation)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidDateOrdering))
	})

	t.Run("zero dates are rejected", func(t *testing.T) {
		_, _, err := CheckDeliveryTiming(id.Date{}, day(t, "2026-03-13"), schedule)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

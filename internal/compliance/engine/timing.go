package engine

import (
	"fmt"
	"time"

	"tridcheck/internal/compliance/models"
	id "tridcheck/pkg/domain"
	dErrors "tridcheck/pkg/domain-errors"
)

// RequiredDeliveryDays is how many business days before closing the
// closing disclosure must be in the borrower's hands.
const RequiredDeliveryDays = 3

// BusinessCalendar reports dates the business-day counter must skip in
// addition to weekends.
type BusinessCalendar interface {
	IsHoliday(id.Date) bool
}

// CountBusinessDays counts business days after from, up to and including
// to. The starting date itself is day zero and never counted; weekends and
// calendar holidays are skipped.
func CountBusinessDays(from, to id.Date, calendar BusinessCalendar) int {
	count := 0
	for d := from.AddDays(1); !d.After(to); d = d.AddDays(1) {
		if isBusinessDay(d, calendar) {
			count++
		}
	}
	return count
}

func isBusinessDay(d id.Date, calendar BusinessCalendar) bool {
	if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !calendar.IsHoliday(d)
}

// CheckDeliveryTiming validates that the closing disclosure reached the
// borrower early enough. A receipt date after closing is impossible data
// and fails with invalid_date_ordering; receipt on closing day itself is
// valid input, just very late.
func CheckDeliveryTiming(received, closing id.Date, calendar BusinessCalendar) (models.TimingResult, *models.Violation, error) {
	if received.IsZero() || closing.IsZero() {
		return models.TimingResult{}, nil, dErrors.New(dErrors.CodeValidation,
			"delivery timing requires both the receipt and closing dates")
	}
	if received.After(closing) {
		return models.TimingResult{}, nil, dErrors.New(dErrors.CodeInvalidDateOrdering,
			fmt.Sprintf("closing disclosure received %s, after closing %s", received, closing))
	}

	days := CountBusinessDays(received, closing, calendar)
	timing := models.TimingResult{BusinessDays: days, RequiredDays: RequiredDeliveryDays}
	if days >= RequiredDeliveryDays {
		return timing, nil, nil
	}
	v, err := models.NewLateDeliveryViolation(days, RequiredDeliveryDays)
	if err != nil {
		return models.TimingResult{}, nil, err
	}
	return timing, &v, nil
}

package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Delta is an exact decimal excess with unit-appropriate formatting: money
// deltas carry two fraction digits, APR deltas three, day counts none.
// Violations report how far over a legal boundary a value landed, and the
// boundary's own precision must survive into the report.
type Delta struct {
	d      decimal.Decimal
	places int32
}

// MoneyDelta wraps a money difference (two fraction digits).
func MoneyDelta(m Money) Delta {
	return Delta{d: m.Decimal(), places: 2}
}

// PercentDelta wraps a percentage-point difference (three fraction digits).
func PercentDelta(p Percent) Delta {
	return Delta{d: p.Decimal(), places: 3}
}

// DaysDelta wraps a whole-day shortfall.
func DaysDelta(days int) Delta {
	return Delta{d: decimal.NewFromInt(int64(days)), places: 0}
}

// IsPositive reports whether the excess is strictly greater than zero.
func (d Delta) IsPositive() bool { return d.d.IsPositive() }

// Decimal exposes the underlying exact value.
func (d Delta) Decimal() decimal.Decimal { return d.d }

// String formats at the delta's natural precision.
func (d Delta) String() string { return d.d.StringFixed(d.places) }

// MarshalJSON emits an unquoted JSON number at the delta's precision.
func (d Delta) MarshalJSON() ([]byte, error) {
	return []byte(d.d.StringFixed(d.places)), nil
}

// UnmarshalJSON accepts a JSON number or quoted decimal string. The scale
// of the incoming literal is preserved for re-marshaling.
func (d *Delta) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("delta: malformed value %q", s)
	}
	d.d = parsed
	if parsed.Exponent() < 0 {
		d.places = -parsed.Exponent()
	}
	return nil
}

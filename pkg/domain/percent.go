package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	dErrors "tridcheck/pkg/domain-errors"
)

// Percent is an exact decimal value in percentage points, used for APR
// figures and drift thresholds. Disclosed APRs carry at most three fraction
// digits (thousandths of a point).
type Percent struct {
	d decimal.Decimal
}

// ParsePercent parses a disclosed APR at the input boundary.
// Rejects malformed, negative, and implausibly large values.
func ParsePercent(s string) (Percent, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Percent{}, dErrors.New(dErrors.CodeInvalidAmount, "apr is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Percent{}, dErrors.New(dErrors.CodeInvalidAmount, fmt.Sprintf("malformed apr %q", s))
	}
	if d.IsNegative() {
		return Percent{}, dErrors.New(dErrors.CodeInvalidAmount, fmt.Sprintf("apr %s must not be negative", d.String()))
	}
	if d.GreaterThan(decimal.NewFromInt(100)) {
		return Percent{}, dErrors.New(dErrors.CodeInvalidAmount, fmt.Sprintf("apr %s exceeds 100 percentage points", d.String()))
	}
	if d.Exponent() < -3 && !d.Equal(d.Round(3)) {
		return Percent{}, dErrors.New(dErrors.CodeInvalidAmount, fmt.Sprintf("apr %s finer than thousandths of a point", d.String()))
	}
	return Percent{d: d}, nil
}

// PercentFromDecimal wraps a computed decimal. No boundary checks.
func PercentFromDecimal(d decimal.Decimal) Percent {
	return Percent{d: d}
}

// MustPercent parses a trusted literal (thresholds, tests). Panics on
// malformed input, so only use with constants.
func MustPercent(s string) Percent {
	p, err := ParsePercent(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Decimal exposes the underlying exact value.
func (p Percent) Decimal() decimal.Decimal { return p.d }

// Sub returns p - o. May be negative.
func (p Percent) Sub(o Percent) Percent { return Percent{d: p.d.Sub(o.d)} }

// Abs returns the magnitude.
func (p Percent) Abs() Percent { return Percent{d: p.d.Abs()} }

func (p Percent) GreaterThan(o Percent) bool { return p.d.GreaterThan(o.d) }
func (p Percent) Equal(o Percent) bool       { return p.d.Equal(o.d) }
func (p Percent) IsZero() bool               { return p.d.IsZero() }

// String formats with exactly three fraction digits, e.g. "0.125".
func (p Percent) String() string { return p.d.StringFixed(3) }

// MarshalJSON emits an unquoted JSON number with three fraction digits.
func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(p.d.StringFixed(3)), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (p *Percent) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("percent: malformed value %q", s)
	}
	p.d = d
	return nil
}

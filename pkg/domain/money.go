package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	dErrors "tridcheck/pkg/domain-errors"
)

// Money is an exact fixed-point currency amount in minor units (cents).
// All tolerance comparisons are exact legal boundaries, so Money never
// passes through binary floating point. The zero value is $0.00.
//
// Arithmetic results may be negative (deltas are differences); the input
// boundary is where negative disclosed amounts are rejected, via ParseMoney.
type Money struct {
	d decimal.Decimal
}

// maxAmountDigits bounds parseable input. Disclosed mortgage fees are far
// below this; anything larger is a malformed or hostile payload.
const maxAmountDigits = 15

// ParseMoney parses a disclosed amount at the input boundary.
// Rejects malformed values, negative values, and sub-cent precision.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, dErrors.New(dErrors.CodeInvalidAmount, "amount is required")
	}
	if len(s) > maxAmountDigits+2 {
		return Money{}, dErrors.New(dErrors.CodeInvalidAmount, fmt.Sprintf("amount %q exceeds %d digits", s, maxAmountDigits))
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, dErrors.New(dErrors.CodeInvalidAmount, fmt.Sprintf("malformed amount %q", s))
	}
	if d.IsNegative() {
		return Money{}, dErrors.New(dErrors.CodeInvalidAmount, fmt.Sprintf("amount %s must not be negative", d.String()))
	}
	if d.Exponent() < -2 && !d.Equal(d.Round(2)) {
		return Money{}, dErrors.New(dErrors.CodeInvalidAmount, fmt.Sprintf("amount %s has sub-cent precision", d.String()))
	}
	return Money{d: d}, nil
}

// MoneyFromCents builds an amount from integer minor units.
func MoneyFromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -2)}
}

// MoneyFromDecimal wraps a computed decimal as Money. Computation-domain
// constructor: no sign or precision checks, those belong to ParseMoney.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{d: d}
}

// Decimal exposes the underlying exact value for arithmetic.
func (m Money) Decimal() decimal.Decimal { return m.d }

// Cents returns the amount in integer minor units.
func (m Money) Cents() int64 { return m.d.Mul(decimal.New(1, 2)).IntPart() }

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

// Cmp returns -1, 0, or +1 comparing exact values.
func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }
func (m Money) Equal(o Money) bool       { return m.d.Equal(o.d) }
func (m Money) IsZero() bool             { return m.d.IsZero() }
func (m Money) IsNegative() bool         { return m.d.IsNegative() }
func (m Money) IsPositive() bool         { return m.d.IsPositive() }

// String formats with exactly two fraction digits, e.g. "1500.00".
// Formatting is the only place rounding may occur.
func (m Money) String() string { return m.d.StringFixed(2) }

// MarshalJSON emits an unquoted JSON number with two fraction digits.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.d.StringFixed(2)), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string. Sign and
// precision rules are not applied here; boundary validation happens in
// ParseMoney so computed report fields round-trip.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("money: malformed value %q", s)
	}
	m.d = d
	return nil
}

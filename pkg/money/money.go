// Package money provides a fixed-point decimal type for prices and
// order amounts, avoiding float64 rounding in checkout math.
package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money wraps decimal.Decimal and always serializes to JSON as a
// quoted string with exactly two fractional digits, e.g. "49.99".
type Money struct {
	decimal.Decimal
}

func Zero() Money {
	return Money{decimal.Zero}
}

func FromFloat(f float64) Money {
	return Money{decimal.NewFromFloat(f)}
}

func FromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid money value %q: %w", s, err)
	}
	return Money{d}, nil
}

func (m Money) Add(other Money) Money {
	return Money{m.Decimal.Add(other.Decimal)}
}

func (m Money) Mul(qty int) Money {
	return Money{m.Decimal.Mul(decimal.NewFromInt(int64(qty)))}
}

func (m Money) IsNegative() bool {
	return m.Decimal.IsNegative()
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.StringFixed(2) + `"`), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid money value %q: %w", s, err)
	}
	m.Decimal = d
	return nil
}

// Value/Scan let pgx/database-sql read and write Money through
// NUMERIC columns via decimal.Decimal's own driver support.
func (m Money) Value() (driver.Value, error) {
	return m.Decimal.Value()
}

func (m *Money) Scan(value interface{}) error {
	return m.Decimal.Scan(value)
}

package segment

import (
	"fmt"
	"math"
	"strconv"
)

// microsPerUnit is the number of Money units in one currency unit
const microsPerUnit = 1_000_000

// Money is an amount in millionths of the currency unit. Integer arithmetic
// keeps per-segment prices such as 0.0075 exact when multiplied out.
type Money int64

// MoneyFromFloat converts a currency amount to Money, rounding to the nearest micro-unit
func MoneyFromFloat(amount float64) Money {
	return Money(math.Round(amount * microsPerUnit))
}

// Float returns the amount in currency units
func (m Money) Float() float64 {
	return float64(m) / microsPerUnit
}

// Mul multiplies the amount by a count
func (m Money) Mul(n int) Money {
	return m * Money(n)
}

// String renders the amount with up to four decimals, e.g. 0.0150 or 1.5000
func (m Money) String() string {
	return fmt.Sprintf("%.4f", m.Float())
}

// MarshalJSON encodes Money as a JSON number in currency units
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%g", m.Float())), nil
}

// UnmarshalJSON decodes a JSON number in currency units
func (m *Money) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid money amount %s: %w", data, err)
	}
	*m = MoneyFromFloat(f)
	return nil
}

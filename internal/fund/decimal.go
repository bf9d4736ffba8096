package fund

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ParseScaledInt parses a positive decimal string into a fixed-scale int64.
// Example: value=12.34, scale=4 => 123400.
func ParseScaledInt(value string, scale int) (int64, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	if scale < 0 {
		return 0, fmt.Errorf("%w: negative scale %d", ErrInvalidAmount, scale)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a decimal", ErrInvalidAmount, value)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("%w: value must be positive", ErrInvalidAmount)
	}

	shifted := d.Shift(int32(scale))
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("%w: too many decimal places: max %d", ErrInvalidAmount, scale)
	}
	if shifted.GreaterThan(decimal.NewFromInt(1<<63 - 1)) {
		return 0, fmt.Errorf("%w: value overflow", ErrInvalidAmount)
	}
	return shifted.IntPart(), nil
}

// FormatScaledInt formats a scaled int64 to decimal and trims trailing zeros.
func FormatScaledInt(v int64, scale int) string {
	return ToDecimal(v, scale).String()
}

// ToDecimal converts a scaled int64 back to a decimal value
func ToDecimal(v int64, scale int) decimal.Decimal {
	return decimal.New(v, -int32(scale))
}

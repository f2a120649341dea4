// Package money holds decimal helpers shared by pricing, the cart and documents.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a string cannot be read as a decimal amount.
var ErrInvalidAmount = errors.New("money: invalid amount")

var hundred = decimal.NewFromInt(100)

// Parse reads a user supplied amount. Currency symbols, grouping commas and
// surrounding whitespace are ignored.
func Parse(raw string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(raw)
	for _, prefix := range []string{"₹", "Rs.", "Rs", "INR"} {
		cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, prefix))
	}
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// Percent returns value × pct / 100 without intermediate rounding.
func Percent(value, pct decimal.Decimal) decimal.Decimal {
	return value.Mul(pct).Div(hundred)
}

// Wire renders an amount the way it is persisted: two decimal places, no grouping.
func Wire(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Format renders an amount for display using Indian digit grouping
// (12,34,567.89) behind the given currency symbol.
func Format(d decimal.Decimal, symbol string) string {
	neg := d.IsNegative()
	fixed := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	b.Grow(len(fixed) + len(fixed)/2 + len(symbol) + 2)
	if neg {
		b.WriteByte('-')
	}
	if symbol != "" {
		b.WriteString(symbol)
		if !strings.HasSuffix(symbol, "₹") {
			b.WriteByte(' ')
		}
	}
	b.WriteString(groupIndian(whole))
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

// groupIndian places the first separator after three digits from the right
// and every two digits after that.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(parts, ",") + "," + tail
}

// Package money parses and formats the currency and percent strings users
// type into deal forms and rent roll imports.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrEmpty = errors.New("no numeric value")

// Sanitize strips everything but digits, a single decimal point and a leading
// minus sign. Accounting parentheses "(12)" become "-12".
func Sanitize(s string) string {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	var b strings.Builder
	seenDot := false
	seenDigit := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			seenDigit = true
		case r == '.' && !seenDot:
			b.WriteRune(r)
			seenDot = true
		case r == '-' && !seenDigit && b.Len() == 0:
			negative = !negative
		}
	}
	out := b.String()
	if out == "" || out == "." {
		return ""
	}
	if negative {
		return "-" + out
	}
	return out
}

// ParseDecimal sanitizes s and parses it exactly
func ParseDecimal(s string) (decimal.Decimal, error) {
	clean := Sanitize(s)
	if clean == "" {
		return decimal.Zero, fmt.Errorf("parse %q: %w", s, ErrEmpty)
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %q: %w", s, err)
	}
	return d, nil
}

// ParseCurrency parses "$1,234.50" style input, rounded to cents
func ParseCurrency(s string) (float64, error) {
	d, err := ParseDecimal(s)
	if err != nil {
		return 0, err
	}
	return d.Round(2).InexactFloat64(), nil
}

// ParsePercent parses "6.5%" or "6.5" into 6.5
func ParsePercent(s string) (float64, error) {
	d, err := ParseDecimal(s)
	if err != nil {
		return 0, err
	}
	return d.Round(4).InexactFloat64(), nil
}

// Round2 rounds to cents using decimal half-up rounding
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// FormatCurrency renders v as "$1,234.50" or "-$12.00"
func FormatCurrency(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	fixed := d.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	return sign + "$" + groupThousands(whole) + "." + frac
}

// FormatPercent renders a fraction (0.0702) as "7.02%"
func FormatPercent(fraction float64) string {
	return decimal.NewFromFloat(fraction).Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

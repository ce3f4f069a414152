package money

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"$1,234.50":  "1234.50",
		"  1800 ":    "1800",
		"(12.00)":    "-12.00",
		"-$45":       "-45",
		"6.5%":       "6.5",
		"1.2.3":      "1.23",
		"abc":        "",
		"":           "",
		"$":          "",
		"12-3":       "123",
		"CAD 99,000": "99000",
	}
	for in, want := range cases {
		assert.Equal(t, want, Sanitize(in), "Sanitize(%q)", in)
	}
}

func TestParseCurrency(t *testing.T) {
	v, err := ParseCurrency("$200,000")
	require.NoError(t, err)
	assert.Equal(t, 200000.0, v)

	v, err = ParseCurrency("1,799.999")
	require.NoError(t, err)
	assert.Equal(t, 1800.0, v)

	v, err = ParseCurrency("(250.10)")
	require.NoError(t, err)
	assert.Equal(t, -250.10, v)

	_, err = ParseCurrency("n/a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmpty))
}

func TestParsePercent(t *testing.T) {
	v, err := ParsePercent("6.5%")
	require.NoError(t, err)
	assert.Equal(t, 6.5, v)

	v, err = ParsePercent("35")
	require.NoError(t, err)
	assert.Equal(t, 35.0, v)
}

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "$1,234.50", FormatCurrency(1234.5))
	assert.Equal(t, "$0.00", FormatCurrency(0))
	assert.Equal(t, "-$12.00", FormatCurrency(-12))
	assert.Equal(t, "$948.10", FormatCurrency(948.1046))
	assert.Equal(t, "$1,000,000.00", FormatCurrency(1_000_000))
	assert.Equal(t, "$999.00", FormatCurrency(999))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "7.02%", FormatPercent(0.0702))
	assert.Equal(t, "0.00%", FormatPercent(0))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 221.9, Round2(221.8999))
	assert.Equal(t, 0.01, Round2(0.005))
}

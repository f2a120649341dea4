package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestFormatIndianGrouping(t *testing.T) {
	cases := map[string]string{
		"0":          "Rs. 0.00",
		"999":        "Rs. 999.00",
		"1000":       "Rs. 1,000.00",
		"123456.789": "Rs. 1,23,456.79",
		"12345678":   "Rs. 1,23,45,678.00",
		"-2160":      "-Rs. 2,160.00",
	}
	for in, want := range cases {
		require.Equal(t, want, Format(decimal.RequireFromString(in), "Rs."), in)
	}
	require.Equal(t, "₹2,160.00", Format(decimal.NewFromInt(2160), "₹"))
}

func TestParseLenient(t *testing.T) {
	d, err := Parse(" Rs. 1,250.50 ")
	require.NoError(t, err)
	require.True(t, d.Equal(decimal.RequireFromString("1250.5")))

	d, err = Parse("₹99")
	require.NoError(t, err)
	require.True(t, d.Equal(decimal.NewFromInt(99)))

	_, err = Parse("abc")
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = Parse("   ")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPercentAndWire(t *testing.T) {
	got := Percent(decimal.NewFromInt(2000), decimal.NewFromInt(18))
	require.Equal(t, "360.00", Wire(got))
	require.Equal(t, "0.33", Wire(Percent(decimal.NewFromInt(1), decimal.RequireFromString("33.333"))))
}

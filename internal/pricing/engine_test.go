package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quotedesk/internal/pricing"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeSingleLineWithDiscount(t *testing.T) {
	sum := pricing.Compute([]pricing.Line{{UnitPrice: dec("1000"), Quantity: 2, GSTRate: dec("18")}}, dec("10"))

	require.True(t, sum.SubTotal.Equal(dec("2000")))
	require.True(t, sum.DiscountAmount.Equal(dec("200")))
	require.True(t, sum.TotalGST.Equal(dec("360")))
	require.True(t, sum.GrandTotal.Equal(dec("2160")))
}

func TestComputeEmptyCart(t *testing.T) {
	sum := pricing.Compute(nil, dec("5"))
	for _, v := range []decimal.Decimal{sum.SubTotal, sum.DiscountAmount, sum.TotalGST, sum.GrandTotal} {
		require.True(t, v.IsZero())
	}
}

func TestComputeGrandTotalIdentity(t *testing.T) {
	lines := []pricing.Line{
		{UnitPrice: dec("199.99"), Quantity: 3, GSTRate: dec("12")},
		{UnitPrice: dec("0.07"), Quantity: 11, GSTRate: dec("5")},
		{UnitPrice: dec("45000"), Quantity: 1, GSTRate: dec("28")},
		{UnitPrice: dec("10"), Quantity: 0, GSTRate: dec("18")},
	}
	for _, pct := range []string{"0", "3.5", "33.333", "100"} {
		sum := pricing.Compute(lines, dec(pct))
		want := sum.SubTotal.Sub(sum.DiscountAmount).Add(sum.TotalGST)
		require.True(t, sum.GrandTotal.Equal(want), "discount %s", pct)
		require.True(t, sum.NetAfterDiscount.Equal(sum.SubTotal.Sub(sum.DiscountAmount)))
	}
}

func TestDiscountDoesNotReduceGST(t *testing.T) {
	lines := []pricing.Line{{UnitPrice: dec("100"), Quantity: 1, GSTRate: dec("18")}}
	require.True(t, pricing.Compute(lines, dec("50")).TotalGST.Equal(pricing.Compute(lines, dec("0")).TotalGST))
}

func TestValidDiscount(t *testing.T) {
	require.True(t, pricing.ValidDiscount(dec("0")))
	require.True(t, pricing.ValidDiscount(dec("100")))
	require.False(t, pricing.ValidDiscount(dec("100.01")))
	require.False(t, pricing.ValidDiscount(dec("-1")))
}

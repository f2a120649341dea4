package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/quotedesk/internal/money"
)

// Line describes a line item used for totals calculation.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
	GSTRate   decimal.Decimal
}

// Summary aggregates computed quotation totals. Values are exact; rounding
// happens only when they are formatted.
type Summary struct {
	SubTotal         decimal.Decimal `json:"subTotal"`
	DiscountPercent  decimal.Decimal `json:"discountPercent"`
	DiscountAmount   decimal.Decimal `json:"discountAmount"`
	NetAfterDiscount decimal.Decimal `json:"netAfterDiscount"`
	TotalGST         decimal.Decimal `json:"totalGstAmount"`
	GrandTotal       decimal.Decimal `json:"grandTotal"`
}

// Value returns unit price × quantity.
func (l Line) Value() decimal.Decimal {
	if l.Quantity <= 0 {
		return decimal.Zero
	}
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// GST returns the tax for the line on its pre-discount value.
func (l Line) GST() decimal.Decimal {
	return money.Percent(l.Value(), l.GSTRate)
}

// Compute calculates quotation totals. GST is charged on the pre-discount
// line values, so the discount never reduces the tax.
func Compute(lines []Line, discountPercent decimal.Decimal) Summary {
	subTotal := decimal.Zero
	totalGST := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		subTotal = subTotal.Add(l.Value())
		totalGST = totalGST.Add(l.GST())
	}
	discount := money.Percent(subTotal, discountPercent)
	net := subTotal.Sub(discount)
	return Summary{
		SubTotal:         subTotal,
		DiscountPercent:  discountPercent,
		DiscountAmount:   discount,
		NetAfterDiscount: net,
		TotalGST:         totalGST,
		GrandTotal:       net.Add(totalGST),
	}
}

// ValidDiscount reports whether pct lies within 0..100 inclusive.
func ValidDiscount(pct decimal.Decimal) bool {
	return !pct.IsNegative() && pct.LessThanOrEqual(decimal.NewFromInt(100))
}

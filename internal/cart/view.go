package cart

import (
	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/money"
	"github.com/noah-isme/quotedesk/internal/pricing"
)

// View is the client-facing rendition of a cart.
type View struct {
	Mode      Mode             `json:"mode"`
	EditingID catalog.ID       `json:"editingId,omitempty"`
	Customer  catalog.Customer `json:"customer"`
	Items     []LineView       `json:"items"`
	Totals    TotalsView       `json:"totals"`
}

// LineView is one cart line with its computed amounts.
type LineView struct {
	ProductID   catalog.ID `json:"productId"`
	ProductName string     `json:"productName"`
	Description string     `json:"description,omitempty"`
	URL         string     `json:"url,omitempty"`
	UnitPrice   string     `json:"unitPrice"`
	Quantity    int        `json:"quantity"`
	GSTRate     string     `json:"gstRate"`
	LineTotal   string     `json:"lineTotal"`
	GSTAmount   string     `json:"gstAmount"`
}

// TotalsView carries the totals as fixed two-place strings.
type TotalsView struct {
	SubTotal         string `json:"subTotal"`
	DiscountPercent  string `json:"discountPercent"`
	DiscountAmount   string `json:"discountAmount"`
	NetAfterDiscount string `json:"netAfterDiscount"`
	TotalGST         string `json:"totalGstAmount"`
	GrandTotal       string `json:"grandTotal"`
}

// NewTotalsView formats a pricing summary for the wire.
func NewTotalsView(s pricing.Summary) TotalsView {
	return TotalsView{
		SubTotal:         money.Wire(s.SubTotal),
		DiscountPercent:  money.Wire(s.DiscountPercent),
		DiscountAmount:   money.Wire(s.DiscountAmount),
		NetAfterDiscount: money.Wire(s.NetAfterDiscount),
		TotalGST:         money.Wire(s.TotalGST),
		GrandTotal:       money.Wire(s.GrandTotal),
	}
}

// Snapshot returns the view of c computed from its current state.
func Snapshot(c *Cart) View {
	items := make([]LineView, 0, len(c.lines))
	for _, l := range c.lines {
		pl := l.pricing()
		items = append(items, LineView{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Description: l.Description,
			URL:         l.URL,
			UnitPrice:   money.Wire(l.UnitPrice),
			Quantity:    l.Quantity,
			GSTRate:     money.Wire(l.GSTRate),
			LineTotal:   money.Wire(pl.Value()),
			GSTAmount:   money.Wire(pl.GST()),
		})
	}
	return View{
		Mode:      c.mode,
		EditingID: c.editingID,
		Customer:  c.customer,
		Items:     items,
		Totals:    NewTotalsView(c.Summary()),
	}
}

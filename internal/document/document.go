// Package document lays out quotations and renders them as PNG or PDF.
package document

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/quotedesk/internal/cart"
	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/pricing"
)

// Item is one rendered line.
type Item struct {
	ProductID   catalog.ID
	Name        string
	Description string
	UnitPrice   decimal.Decimal
	Quantity    int
	GSTRate     decimal.Decimal
}

func (it Item) pricing() pricing.Line {
	return pricing.Line{UnitPrice: it.UnitPrice, Quantity: it.Quantity, GSTRate: it.GSTRate}
}

// Document is the renderer input: a quotation or cart snapshot.
type Document struct {
	QuotationID catalog.ID
	Customer    catalog.Customer
	Items       []Item
	Totals      pricing.Summary
	Date        time.Time
	CreatedBy   string
}

// FromCart snapshots the cart for a draft preview.
func FromCart(c *cart.Cart, at time.Time, author string) Document {
	lines := c.Lines()
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, Item{
			ProductID:   l.ProductID,
			Name:        l.ProductName,
			Description: l.Description,
			UnitPrice:   l.UnitPrice,
			Quantity:    l.Quantity,
			GSTRate:     l.GSTRate,
		})
	}
	return Document{
		QuotationID: c.EditingID(),
		Customer:    c.Customer(),
		Items:       items,
		Totals:      c.Summary(),
		Date:        at,
		CreatedBy:   author,
	}
}

// FromQuotation converts a stored quotation. Stored totals are used as-is;
// when any of them is missing or unreadable they are recomputed from the items.
func FromQuotation(q catalog.Quotation) (Document, error) {
	items := make([]Item, 0, len(q.Items))
	for _, it := range q.Items {
		price, err := decimal.NewFromString(it.UnitPrice)
		if err != nil {
			return Document{}, fmt.Errorf("item %s unit price: %w", it.ProductID, err)
		}
		rate, err := decimal.NewFromString(it.GSTRate)
		if err != nil {
			return Document{}, fmt.Errorf("item %s gst rate: %w", it.ProductID, err)
		}
		items = append(items, Item{
			ProductID:   it.ProductID,
			Name:        it.ProductName,
			Description: it.Description,
			UnitPrice:   price,
			Quantity:    it.Quantity,
			GSTRate:     rate,
		})
	}
	discount := decimal.Zero
	if q.DiscountPercent != "" {
		d, err := decimal.NewFromString(q.DiscountPercent)
		if err != nil {
			return Document{}, fmt.Errorf("discount percent: %w", err)
		}
		discount = d
	}

	doc := Document{
		QuotationID: q.ID,
		Customer:    q.Customer,
		Items:       items,
		Date:        q.DateCreated,
		CreatedBy:   q.CreatedBy,
	}
	stored, ok := storedTotals(q, discount)
	if ok {
		doc.Totals = stored
	} else {
		doc.Totals = doc.compute(discount)
	}
	return doc, nil
}

func storedTotals(q catalog.Quotation, discount decimal.Decimal) (pricing.Summary, bool) {
	var vals [4]decimal.Decimal
	for i, raw := range []string{q.SubTotal, q.DiscountAmount, q.TotalGSTAmount, q.GrandTotal} {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return pricing.Summary{}, false
		}
		vals[i] = d
	}
	return pricing.Summary{
		SubTotal:         vals[0],
		DiscountPercent:  discount,
		DiscountAmount:   vals[1],
		NetAfterDiscount: vals[0].Sub(vals[1]),
		TotalGST:         vals[2],
		GrandTotal:       vals[3],
	}, true
}

func (d Document) compute(discount decimal.Decimal) pricing.Summary {
	lines := make([]pricing.Line, 0, len(d.Items))
	for _, it := range d.Items {
		lines = append(lines, it.pricing())
	}
	return pricing.Compute(lines, discount)
}

// MergeOverrides applies the most recent temp-override per product to the
// displayed price and GST rate. Ties on CreatedAt go to the record later in
// the list. Totals are recomputed when anything was merged.
func MergeOverrides(d Document, overrides []catalog.TempOverride) (Document, bool) {
	if len(overrides) == 0 || len(d.Items) == 0 {
		return d, false
	}
	latest := make(map[catalog.ID]catalog.TempOverride, len(overrides))
	for _, o := range overrides {
		if o.ProductID == "" {
			continue
		}
		prev, seen := latest[o.ProductID]
		if !seen || !o.CreatedAt.Before(prev.CreatedAt) {
			latest[o.ProductID] = o
		}
	}

	merged := false
	items := make([]Item, len(d.Items))
	copy(items, d.Items)
	for i := range items {
		o, ok := latest[items[i].ProductID]
		if !ok {
			continue
		}
		items[i].UnitPrice = o.Price
		items[i].GSTRate = o.GSTPercent
		merged = true
	}
	if !merged {
		return d, false
	}
	d.Items = items
	d.Totals = d.compute(d.Totals.DiscountPercent)
	return d, true
}

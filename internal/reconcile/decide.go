// Package reconcile applies in-cart price and GST edits against the catalog.
// Every edit is recorded in the temp-override ledger; the live cart value
// then either keeps the edit or reverts to the catalog value.
package reconcile

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/quotedesk/internal/cart"
	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/pricing"
)

// Outcome is the result of deciding an edit.
type Outcome struct {
	// Line is the live cart line after the edit.
	Line cart.Line
	// Record is the ledger entry describing the edited values.
	Record catalog.TempOverride
	// Reverted is true when the live value was reset to the catalog value.
	Reverted bool
}

// Decide computes the ledger record and the resulting live line for an edit.
// item is the catalog snapshot read for this edit and catalogRate its
// resolved GST rate; neither is fetched here.
//
// Price edits are kept while drafting and revert to the catalog price while
// revising a stored quotation. GST edits always revert to catalogRate.
func Decide(mode cart.Mode, line cart.Line, item catalog.Item, edit cart.Edit, catalogRate decimal.Decimal, at time.Time, author string) Outcome {
	edited := line
	switch edit.Field {
	case cart.FieldPrice:
		edited.UnitPrice = edit.Value
	case cart.FieldGST:
		edited.GSTRate = edit.Value
	}
	pl := pricing.Line{UnitPrice: edited.UnitPrice, Quantity: edited.Quantity, GSTRate: edited.GSTRate}
	value := pl.Value()
	gst := pl.GST()

	record := catalog.TempOverride{
		ProductID:    item.ID,
		Name:         item.Name,
		Description:  item.Description,
		URL:          item.URL,
		Price:        edited.UnitPrice,
		GSTPercent:   edited.GSTRate,
		Quantity:     edited.Quantity,
		GSTAmount:    gst,
		TotalWithGST: value.Add(gst),
		Field:        string(edit.Field),
		CreatedAt:    at.UTC(),
		CreatedBy:    author,
	}

	live := edited
	reverted := false
	switch edit.Field {
	case cart.FieldPrice:
		if mode == cart.ModeEditing {
			live.UnitPrice = item.Price
			reverted = true
		}
	case cart.FieldGST:
		live.GSTRate = catalogRate
		reverted = true
	}
	return Outcome{Line: live, Record: record, Reverted: reverted}
}

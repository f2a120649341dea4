package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/pricing"
)

// Mode tells whether the cart drafts a new quotation or revises a stored one.
type Mode string

const (
	ModeCreating Mode = "creating"
	ModeEditing  Mode = "editing"
)

// Line is an in-cart copy of a catalog item. Its price and GST rate are
// independent of the catalog once added.
type Line struct {
	ProductID   catalog.ID
	ProductName string
	Description string
	URL         string
	UnitPrice   decimal.Decimal
	Quantity    int
	GSTRate     decimal.Decimal
}

func (l Line) pricing() pricing.Line {
	return pricing.Line{UnitPrice: l.UnitPrice, Quantity: l.Quantity, GSTRate: l.GSTRate}
}

// Cart holds the lines of one quotation draft in insertion order. It is not
// safe for concurrent use; the owning session serializes access.
type Cart struct {
	lines     []Line
	discount  decimal.Decimal
	customer  catalog.Customer
	mode      Mode
	editingID catalog.ID
	createdAt time.Time
}

// New returns an empty cart in creating mode.
func New() *Cart {
	return &Cart{mode: ModeCreating}
}

// Lines returns a copy of the cart lines.
func (c *Cart) Lines() []Line {
	return append([]Line(nil), c.lines...)
}

// Line returns the line for productID.
func (c *Cart) Line(productID catalog.ID) (Line, bool) {
	if i := c.index(productID); i >= 0 {
		return c.lines[i], true
	}
	return Line{}, false
}

// Len reports the number of distinct lines.
func (c *Cart) Len() int { return len(c.lines) }

func (c *Cart) Mode() Mode                 { return c.mode }
func (c *Cart) EditingID() catalog.ID      { return c.editingID }
func (c *Cart) Discount() decimal.Decimal  { return c.discount }
func (c *Cart) Customer() catalog.Customer { return c.customer }

// CreatedAt is the creation date of the quotation being revised. It is zero
// in creating mode.
func (c *Cart) CreatedAt() time.Time { return c.createdAt }

// SetCustomer replaces the customer draft.
func (c *Cart) SetCustomer(cu catalog.Customer) { c.customer = cu }

// ReplaceLine overwrites an existing line in place, keeping its position.
// It reports false when the product is not in the cart.
func (c *Cart) ReplaceLine(l Line) bool {
	i := c.index(l.ProductID)
	if i < 0 {
		return false
	}
	c.lines[i] = l
	return true
}

// Clear empties the cart and returns it to creating mode.
func (c *Cart) Clear() {
	c.lines = nil
	c.discount = decimal.Zero
	c.customer = catalog.Customer{}
	c.mode = ModeCreating
	c.editingID = ""
	c.createdAt = time.Time{}
}

// LoadQuotation replaces the cart contents with a stored quotation and
// switches to editing mode.
func (c *Cart) LoadQuotation(q catalog.Quotation) error {
	lines := make([]Line, 0, len(q.Items))
	for _, it := range q.Items {
		price, err := decimal.NewFromString(it.UnitPrice)
		if err != nil {
			return err
		}
		rate, err := decimal.NewFromString(it.GSTRate)
		if err != nil {
			return err
		}
		if it.Quantity <= 0 {
			continue
		}
		l := Line{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Description: it.Description,
			UnitPrice:   price,
			Quantity:    it.Quantity,
			GSTRate:     rate,
		}
		if i := indexOf(lines, l.ProductID); i >= 0 {
			lines[i].Quantity += l.Quantity
			continue
		}
		lines = append(lines, l)
	}
	discount := decimal.Zero
	if q.DiscountPercent != "" {
		d, err := decimal.NewFromString(q.DiscountPercent)
		if err != nil {
			return err
		}
		discount = d
	}
	c.lines = lines
	c.discount = discount
	c.customer = q.Customer
	c.mode = ModeEditing
	c.editingID = q.ID
	c.createdAt = q.DateCreated
	return nil
}

// Summary computes totals from the current lines and discount.
func (c *Cart) Summary() pricing.Summary {
	lines := make([]pricing.Line, 0, len(c.lines))
	for _, l := range c.lines {
		lines = append(lines, l.pricing())
	}
	return pricing.Compute(lines, c.discount)
}

func (c *Cart) increment(productID catalog.ID) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.lines[i].Quantity++
	return true
}

func (c *Cart) append(l Line) {
	c.lines = append(c.lines, l)
}

func (c *Cart) remove(productID catalog.ID) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return true
}

func (c *Cart) setQuantity(productID catalog.ID, qty int) bool {
	if qty <= 0 {
		return c.remove(productID)
	}
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.lines[i].Quantity = qty
	return true
}

func (c *Cart) index(productID catalog.ID) int {
	return indexOf(c.lines, productID)
}

func indexOf(lines []Line, productID catalog.ID) int {
	for i := range lines {
		if lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

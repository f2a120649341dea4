package catalog

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ID is a store identifier. The store emits ids as strings or numbers; both
// decode to the same textual form.
type ID string

// UnmarshalJSON accepts JSON strings and numbers.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// String returns the textual id.
func (id ID) String() string { return string(id) }

// Item is a canonical catalog product.
type Item struct {
	ID          ID               `json:"id"`
	MongoID     ID               `json:"_id,omitempty"`
	Name        string           `json:"name"`
	Price       decimal.Decimal  `json:"price"`
	GSTPercent  *decimal.Decimal `json:"gstPercent,omitempty"`
	Description string           `json:"description,omitempty"`
	URL         string           `json:"url,omitempty"`
}

func (it *Item) normalize() {
	if it.ID == "" {
		it.ID = it.MongoID
	}
	it.MongoID = ""
}

// GSTRule maps a product name to its GST percentage.
type GSTRule struct {
	ID          ID              `json:"id,omitempty"`
	ProductName string          `json:"productName"`
	GSTPercent  decimal.Decimal `json:"gstPercent"`
}

// Settings carries company branding and the process-wide GST default.
type Settings struct {
	Brand        string           `json:"brand"`
	CompanyGSTID string           `json:"companyGstId"`
	ValidityDays int              `json:"validityDays"`
	Logo         string           `json:"logo,omitempty"`
	DefaultGST   *decimal.Decimal `json:"defaultGst,omitempty"`
	Address      string           `json:"address,omitempty"`
	Phone        string           `json:"phone,omitempty"`
	Email        string           `json:"email,omitempty"`
	Terms        string           `json:"terms,omitempty"`
}

// TempOverride is an append-only record of an in-cart price or GST edit.
// The most recent record per product supersedes stored values when a
// quotation is displayed.
type TempOverride struct {
	ID           ID              `json:"id,omitempty"`
	ProductID    ID              `json:"productId"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	URL          string          `json:"url,omitempty"`
	Price        decimal.Decimal `json:"price"`
	GSTPercent   decimal.Decimal `json:"gstPercent"`
	Quantity     int             `json:"quantity"`
	GSTAmount    decimal.Decimal `json:"gstAmount"`
	TotalWithGST decimal.Decimal `json:"totalWithGst"`
	Field        string          `json:"field"`
	CreatedAt    time.Time       `json:"createdAt"`
	CreatedBy    string          `json:"createdBy,omitempty"`
}

// AuditEntry is appended to the store's audit log.
type AuditEntry struct {
	Action  string `json:"action"`
	Role    string `json:"role"`
	Details string `json:"details"`
	User    string `json:"user"`
}

// Customer is the quotation addressee.
type Customer struct {
	Name    string `json:"name,omitempty" validate:"omitempty,max=120"`
	Phone   string `json:"phone" validate:"required,len=10,number"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Address string `json:"address,omitempty" validate:"omitempty,max=500"`
}

// QuotationItem is a frozen line. Numeric fields travel as decimal strings.
type QuotationItem struct {
	ProductID   ID     `json:"productId"`
	ProductName string `json:"productName"`
	Description string `json:"description,omitempty"`
	UnitPrice   string `json:"unitPrice"`
	Quantity    int    `json:"quantity"`
	GSTRate     string `json:"gstRate"`
	LineTotal   string `json:"lineTotal"`
}

// Quotation is a persisted quotation snapshot.
type Quotation struct {
	ID              ID              `json:"id,omitempty"`
	MongoID         ID              `json:"_id,omitempty"`
	Customer        Customer        `json:"customer"`
	Items           []QuotationItem `json:"items"`
	DiscountPercent string          `json:"discountPercent"`
	SubTotal        string          `json:"subTotal"`
	DiscountAmount  string          `json:"discountAmount"`
	TotalGSTAmount  string          `json:"totalGstAmount"`
	GrandTotal      string          `json:"grandTotal"`
	DateCreated     time.Time       `json:"dateCreated"`
	CreatedBy       string          `json:"createdBy,omitempty"`
}

func (q *Quotation) normalize() {
	if q.ID == "" {
		q.ID = q.MongoID
	}
	q.MongoID = ""
}

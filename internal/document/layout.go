package document

import (
	"image/color"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/money"
)

// Fixed layout geometry in logical units.
const (
	Width             = 800
	Margin            = 32
	HeaderHeight      = 110
	CompanyHeight     = 96
	CustomerHeight    = 110
	TableHeaderHeight = 36
	RowHeight         = 66
	TotalsHeight      = 128
	FooterHeight      = 125

	// DefaultPageItems is the row count that fills exactly one page.
	DefaultPageItems = 7
)

const fixedHeight = 2*Margin + HeaderHeight + CompanyHeight + CustomerHeight + TableHeaderHeight + TotalsHeight + FooterHeight

// PageHeight returns the height of a layout holding exactly items rows.
// With the default of seven rows this is the A4 proportion at 800 wide.
func PageHeight(items int) int {
	if items <= 0 {
		items = DefaultPageItems
	}
	return fixedHeight + items*RowHeight
}

// Kind discriminates layout elements.
type Kind string

const (
	KindText  Kind = "text"
	KindRect  Kind = "rect"
	KindImage Kind = "image"
)

// Align is the horizontal alignment of text within its box.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Element is a positioned primitive. Text is vertically centered in its box.
type Element struct {
	Kind  Kind
	X, Y  int
	W, H  int
	Text  string
	Size  int
	Bold  bool
	Align Align
	Color color.RGBA
	Image []byte
}

// Layout is a backend independent description of a rendered document.
type Layout struct {
	Width    int
	Height   int
	Rows     int
	Elements []Element
}

var (
	ink    = color.RGBA{R: 33, G: 37, B: 41, A: 255}
	muted  = color.RGBA{R: 108, G: 117, B: 125, A: 255}
	accent = color.RGBA{R: 31, G: 58, B: 96, A: 255}
	shade  = color.RGBA{R: 245, G: 247, B: 250, A: 255}
	rule   = color.RGBA{R: 222, G: 226, B: 230, A: 255}
	white  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

type column struct {
	x, w  int
	title string
	align Align
}

var columns = []column{
	{x: Margin, w: 40, title: "#", align: AlignCenter},
	{x: 72, w: 320, title: "Product", align: AlignLeft},
	{x: 392, w: 60, title: "Qty", align: AlignCenter},
	{x: 452, w: 120, title: "Unit Price", align: AlignRight},
	{x: 572, w: 70, title: "GST %", align: AlignCenter},
	{x: 642, w: Width - Margin - 642, title: "Total", align: AlignRight},
}

// Branding is the company information printed on the document.
type Branding struct {
	Settings catalog.Settings
	Logo     []byte
	Currency string
}

type composer struct {
	els []Element
	y   int
}

func (c *composer) text(x, y, w, h int, s string, size int, bold bool, align Align, col color.RGBA) {
	if strings.TrimSpace(s) == "" {
		return
	}
	c.els = append(c.els, Element{Kind: KindText, X: x, Y: y, W: w, H: h, Text: s, Size: size, Bold: bold, Align: align, Color: col})
}

func (c *composer) rect(x, y, w, h int, col color.RGBA) {
	c.els = append(c.els, Element{Kind: KindRect, X: x, Y: y, W: w, H: h, Color: col})
}

// Compose lays out doc. An empty document gets a single "No items" row.
func Compose(doc Document, b Branding) Layout {
	rows := len(doc.Items)
	if rows == 0 {
		rows = 1
	}
	l := Layout{Width: Width, Height: fixedHeight + rows*RowHeight, Rows: rows}
	c := &composer{y: Margin}
	inner := Width - 2*Margin
	s := b.Settings

	// header
	brandX := Margin
	if len(b.Logo) > 0 {
		c.els = append(c.els, Element{Kind: KindImage, X: Margin, Y: c.y + 10, W: 160, H: 80, Image: b.Logo})
		brandX = Margin + 176
	}
	c.text(brandX, c.y+30, 300, 36, s.Brand, 24, true, AlignLeft, accent)
	c.text(Margin, c.y+10, inner, 36, "QUOTATION", 26, true, AlignRight, accent)
	c.text(Margin, c.y+52, inner, 20, "No: "+quotationNumber(doc.QuotationID), 13, false, AlignRight, ink)
	if !doc.Date.IsZero() {
		c.text(Margin, c.y+74, inner, 20, "Date: "+doc.Date.Format("02 Jan 2006"), 13, false, AlignRight, ink)
	}
	c.rect(Margin, c.y+HeaderHeight-2, inner, 2, accent)
	c.y += HeaderHeight

	// company block
	c.text(Margin, c.y+8, inner, 24, s.Brand, 16, true, AlignLeft, ink)
	c.text(Margin, c.y+34, inner, 18, truncate(s.Address, 100), 12, false, AlignLeft, muted)
	c.text(Margin, c.y+54, inner, 18, joinNonEmpty(" | ", s.Phone, s.Email), 12, false, AlignLeft, muted)
	if s.CompanyGSTID != "" {
		c.text(Margin, c.y+74, inner, 18, "GSTIN: "+s.CompanyGSTID, 12, false, AlignLeft, muted)
	}
	c.y += CompanyHeight

	// customer block
	cu := doc.Customer
	c.rect(Margin, c.y+4, inner, CustomerHeight-12, shade)
	c.text(Margin+12, c.y+10, inner-24, 20, "Bill To", 13, true, AlignLeft, accent)
	c.text(Margin+12, c.y+32, inner-24, 18, cu.Name, 13, true, AlignLeft, ink)
	c.text(Margin+12, c.y+52, inner-24, 18, joinNonEmpty(" | ", cu.Phone, cu.Email), 12, false, AlignLeft, ink)
	c.text(Margin+12, c.y+72, inner-24, 18, truncate(cu.Address, 100), 12, false, AlignLeft, muted)
	c.y += CustomerHeight

	// table
	c.rect(Margin, c.y, inner, TableHeaderHeight, accent)
	for _, col := range columns {
		c.text(col.x+6, c.y, col.w-12, TableHeaderHeight, col.title, 13, true, col.align, white)
	}
	c.y += TableHeaderHeight

	if len(doc.Items) == 0 {
		c.text(Margin, c.y, inner, RowHeight, "No items", 14, false, AlignCenter, muted)
		c.rect(Margin, c.y+RowHeight-1, inner, 1, rule)
		c.y += RowHeight
	}
	for i, it := range doc.Items {
		if i%2 == 1 {
			c.rect(Margin, c.y, inner, RowHeight, shade)
		}
		total := it.pricing().Value()
		cells := []string{
			strconv.Itoa(i + 1),
			"",
			strconv.Itoa(it.Quantity),
			money.Format(it.UnitPrice, b.Currency),
			percent(it.GSTRate),
			money.Format(total, b.Currency),
		}
		for ci, col := range columns {
			if ci == 1 {
				c.text(col.x+6, c.y+10, col.w-12, 22, truncate(it.Name, 40), 13, true, AlignLeft, ink)
				c.text(col.x+6, c.y+34, col.w-12, 20, truncate(it.Description, 46), 11, false, AlignLeft, muted)
				continue
			}
			c.text(col.x+6, c.y, col.w-12, RowHeight, cells[ci], 13, false, col.align, ink)
		}
		c.rect(Margin, c.y+RowHeight-1, inner, 1, rule)
		c.y += RowHeight
	}

	// totals
	t := doc.Totals
	labelX, labelW := 452, 190
	valueX, valueW := columns[5].x, columns[5].w-6
	entries := []struct {
		label, value string
	}{
		{"Sub Total", money.Format(t.SubTotal, b.Currency)},
		{"Discount (" + percent(t.DiscountPercent) + "%)", "- " + money.Format(t.DiscountAmount, b.Currency)},
		{"Total GST", money.Format(t.TotalGST, b.Currency)},
	}
	y := c.y + 10
	for _, e := range entries {
		c.text(labelX, y, labelW, 24, e.label, 13, false, AlignRight, ink)
		c.text(valueX, y, valueW, 24, e.value, 13, false, AlignRight, ink)
		y += 26
	}
	c.rect(labelX, y+2, Width-Margin-labelX, 2, accent)
	c.text(labelX, y+8, labelW, 30, "Grand Total", 16, true, AlignRight, accent)
	c.text(valueX, y+8, valueW, 30, money.Format(t.GrandTotal, b.Currency), 16, true, AlignRight, accent)
	c.y += TotalsHeight

	// footer
	c.rect(Margin, c.y, inner, 1, rule)
	c.text(Margin, c.y+8, inner, 20, "Terms & Conditions", 13, true, AlignLeft, ink)
	ty := c.y + 30
	for _, line := range wrap(s.Terms, 100, 3) {
		c.text(Margin, ty, inner, 16, line, 11, false, AlignLeft, muted)
		ty += 17
	}
	if s.ValidityDays > 0 {
		c.text(Margin, c.y+FooterHeight-28, inner/2, 18, "Valid for "+strconv.Itoa(s.ValidityDays)+" days", 12, false, AlignLeft, ink)
	}
	if doc.CreatedBy != "" {
		c.text(Margin+inner/2, c.y+FooterHeight-28, inner/2, 18, "Prepared by: "+doc.CreatedBy, 12, false, AlignRight, ink)
	}

	l.Elements = c.els
	return l
}

func quotationNumber(id catalog.ID) string {
	if id == "" {
		return "DRAFT"
	}
	return id.String()
}

func percent(d decimal.Decimal) string {
	return d.Round(2).String()
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// wrap splits s into at most maxLines lines of up to width runes, breaking on spaces.
func wrap(s string, width, maxLines int) []string {
	words := strings.Fields(s)
	var lines []string
	var cur strings.Builder
	for _, w := range words {
		if cur.Len() > 0 && len([]rune(cur.String()))+1+len([]rune(w)) > width {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	if len(lines) > maxLines {
		lines = lines[:maxLines]
		lines[maxLines-1] = truncate(lines[maxLines-1]+" ...", width)
	}
	return lines
}

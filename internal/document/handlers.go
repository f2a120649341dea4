package document

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/quotedesk/internal/cart"
	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/common"
)

// QuotationSource loads stored quotations.
type QuotationSource interface {
	GetQuotation(ctx context.Context, id catalog.ID) (catalog.Quotation, error)
}

// Handler serves rendered documents.
type Handler struct {
	Renderer   *Renderer
	Quotations QuotationSource
	Sessions   cart.Scope
	Now        func() time.Time
}

// CartPreview handles POST /api/v1/cart/document. The cart is snapshotted
// under the session lock and rendered outside it.
func (h *Handler) CartPreview(w http.ResponseWriter, r *http.Request) {
	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var doc Document
	err = h.Sessions.Do(r, func(_ context.Context, p common.Principal, c *cart.Cart) error {
		doc = FromCart(c, h.now(), p.DisplayName())
		return nil
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	h.write(w, r, doc, format)
}

// Quotation handles GET /api/v1/quotations/{id}/document.
func (h *Handler) Quotation(w http.ResponseWriter, r *http.Request) {
	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	id := catalog.ID(strings.TrimSpace(chi.URLParam(r, "id")))
	if id == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "quotation id is required", nil)
		return
	}
	q, err := h.Quotations.GetQuotation(r.Context(), id)
	if err != nil {
		common.WriteError(w, catalog.ToAppError(err))
		return
	}
	doc, err := FromQuotation(q)
	if err != nil {
		common.WriteError(w, common.NewAppError("INVALID_QUOTATION", "stored quotation has malformed amounts", http.StatusUnprocessableEntity, err))
		return
	}
	h.write(w, r, doc, format)
}

// Render handles POST /api/v1/documents/render for an arbitrary quotation
// snapshot. Totals are recomputed when the snapshot omits them.
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var q catalog.Quotation
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	doc, err := FromQuotation(q)
	if err != nil {
		common.WriteError(w, common.ValidationError("invalid quotation snapshot", map[string]string{"items": err.Error()}))
		return
	}
	if doc.Date.IsZero() {
		doc.Date = h.now()
	}
	h.write(w, r, doc, format)
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, doc Document, format Format) {
	art, err := h.Renderer.Render(r.Context(), doc, format)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+art.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	w.Header().Set("X-Page-Count", strconv.Itoa(art.Pages))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(art.Data)
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

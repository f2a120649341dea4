package quotation

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/quotedesk/internal/cart"
	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/common"
	"github.com/noah-isme/quotedesk/internal/session"
)

// Handler wires quotation services to HTTP.
type Handler struct {
	Svc      *Service
	Sessions cart.Scope
}

// Submit handles POST /api/v1/quotations. The submission guard is held
// around the session scope so an overlapping submit answers 409.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Customer catalog.Customer `json:"customer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	var (
		saved catalog.Quotation
		view  cart.View
		opErr error
	)
	sessionID := strings.TrimSpace(r.Header.Get(session.HeaderName))
	err := h.Svc.Exclusive(r.Context(), sessionID, func(ctx context.Context) error {
		return h.Sessions.Do(r.WithContext(ctx), func(ctx context.Context, p common.Principal, c *cart.Cart) error {
			saved, opErr = h.Svc.Submit(ctx, p, c, payload.Customer)
			view = cart.Snapshot(c)
			return nil
		})
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if opErr != nil {
		status, body := common.ErrorPayload(opErr)
		common.JSON(w, status, map[string]any{"error": body, "data": map[string]any{"cart": view}})
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"data": map[string]any{"quotation": saved, "cart": view},
	})
}

// List handles GET /api/v1/quotations.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	if perPage > 100 {
		perPage = 100
	}
	items, meta, err := h.Svc.List(r.Context(), page, perPage)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": meta})
}

// Edit handles POST /api/v1/quotations/{id}/edit by loading the quotation
// into the session cart.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var (
		view  cart.View
		opErr error
	)
	err := h.Sessions.Do(r, func(ctx context.Context, p common.Principal, c *cart.Cart) error {
		opErr = h.Svc.BeginEdit(ctx, p, c, id)
		view = cart.Snapshot(c)
		return nil
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if opErr != nil {
		common.WriteError(w, opErr)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Delete handles DELETE /api/v1/quotations/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	p, _ := common.PrincipalFrom(r.Context())
	if err := h.Svc.Delete(r.Context(), p, id); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func idParam(w http.ResponseWriter, r *http.Request) (catalog.ID, bool) {
	id := catalog.ID(strings.TrimSpace(chi.URLParam(r, "id")))
	if id == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "quotation id is required", nil)
		return "", false
	}
	return id, true
}

package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/common"
)

// Scope runs fn against the cart of the session selected by the request.
// Calls on the same session are serialized.
type Scope interface {
	Do(r *http.Request, fn func(ctx context.Context, p common.Principal, c *Cart) error) error
}

// Handler wires cart services to HTTP.
type Handler struct {
	Svc      *Service
	Sessions Scope
}

// Get returns the cart contents and totals.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusOK, func(_ context.Context, p common.Principal, c *Cart) (View, error) {
		return h.Svc.View(p, c), nil
	})
}

// AddItem adds a product or increments its quantity.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ProductID catalog.ID `json:"productId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	h.run(w, r, http.StatusOK, func(ctx context.Context, p common.Principal, c *Cart) (View, error) {
		return h.Svc.Add(ctx, p, c, payload.ProductID)
	})
}

// RemoveItem deletes a product line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := productParam(r)
	h.run(w, r, http.StatusOK, func(ctx context.Context, p common.Principal, c *Cart) (View, error) {
		return h.Svc.Remove(ctx, p, c, id), nil
	})
}

// SetQuantity updates a line quantity.
func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	raw, ok := decodeValue(w, r)
	if !ok {
		return
	}
	id := productParam(r)
	h.run(w, r, http.StatusOK, func(ctx context.Context, p common.Principal, c *Cart) (View, error) {
		return h.Svc.SetQuantity(ctx, p, c, id, raw), nil
	})
}

// SetPrice edits a line's unit price.
func (h *Handler) SetPrice(w http.ResponseWriter, r *http.Request) {
	raw, ok := decodeValue(w, r)
	if !ok {
		return
	}
	id := productParam(r)
	h.run(w, r, http.StatusOK, func(ctx context.Context, p common.Principal, c *Cart) (View, error) {
		return h.Svc.SetPrice(ctx, p, c, id, raw)
	})
}

// SetGST edits a line's GST rate.
func (h *Handler) SetGST(w http.ResponseWriter, r *http.Request) {
	raw, ok := decodeValue(w, r)
	if !ok {
		return
	}
	id := productParam(r)
	h.run(w, r, http.StatusOK, func(ctx context.Context, p common.Principal, c *Cart) (View, error) {
		return h.Svc.SetGSTRate(ctx, p, c, id, raw)
	})
}

// SetDiscount updates the discount percentage.
func (h *Handler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	raw, ok := decodeValue(w, r)
	if !ok {
		return
	}
	h.run(w, r, http.StatusOK, func(ctx context.Context, p common.Principal, c *Cart) (View, error) {
		return h.Svc.SetDiscount(ctx, p, c, raw)
	})
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusOK, func(ctx context.Context, p common.Principal, c *Cart) (View, error) {
		return h.Svc.Clear(ctx, p, c), nil
	})
}

// run executes op under the session scope and writes the resulting view.
// Failed operations still carry the recomputed view next to the error.
func (h *Handler) run(w http.ResponseWriter, r *http.Request, status int, op func(context.Context, common.Principal, *Cart) (View, error)) {
	if h.Svc == nil || h.Sessions == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var (
		view  View
		opErr error
	)
	err := h.Sessions.Do(r, func(ctx context.Context, p common.Principal, c *Cart) error {
		view, opErr = op(ctx, p, c)
		return nil
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if opErr != nil {
		code, body := common.ErrorPayload(opErr)
		common.JSON(w, code, map[string]any{"error": body, "data": view})
		return
	}
	common.JSON(w, status, map[string]any{"data": view})
}

func productParam(r *http.Request) catalog.ID {
	return catalog.ID(strings.TrimSpace(chi.URLParam(r, "productId")))
}

// decodeValue reads {"value": ...} where value is a JSON string or number.
func decodeValue(w http.ResponseWriter, r *http.Request) (string, bool) {
	var payload struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || len(payload.Value) == 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "value is required", nil)
		return "", false
	}
	raw := bytes.TrimSpace(payload.Value)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid value", nil)
			return "", false
		}
		return s, true
	}
	return string(raw), true
}

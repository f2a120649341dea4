package session

import (
	"net/http"

	"github.com/noah-isme/quotedesk/internal/cart"
	"github.com/noah-isme/quotedesk/internal/common"
)

// Handler exposes session lifecycle endpoints.
type Handler struct {
	Registry *Registry
}

// Open handles POST /api/v1/sessions.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	p, ok := common.PrincipalFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	s := h.Registry.Open(p)
	var view cart.View
	_ = s.Do(func(_ common.Principal, c *cart.Cart) error {
		view = cart.Snapshot(c)
		return nil
	})
	w.Header().Set(HeaderName, s.ID)
	common.JSON(w, http.StatusCreated, map[string]any{
		"data": map[string]any{
			"sessionId": s.ID,
			"principal": s.Principal,
			"createdAt": s.CreatedAt,
			"cart":      view,
		},
	})
}

// Close handles DELETE /api/v1/sessions/current.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	s, err := h.Registry.Resolve(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Registry.Close(s.ID); err != nil {
		common.JSONError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found or expired", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

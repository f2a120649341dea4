package tax

import (
	"net/http"
	"strings"

	"github.com/noah-isme/quotedesk/internal/common"
	"github.com/noah-isme/quotedesk/internal/money"
)

// Handler exposes the resolver over HTTP.
type Handler struct {
	resolver *Resolver
}

// NewHandler constructs a Handler.
func NewHandler(resolver *Resolver) *Handler {
	return &Handler{resolver: resolver}
}

// Resolve handles GET /api/v1/gst-rules/resolve?name=.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		common.WriteError(w, common.ValidationError("name is required", map[string]string{"name": "required"}))
		return
	}
	rate := h.resolver.Resolve(r.Context(), name)
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]string{"productName": name, "gstPercent": money.Wire(rate)},
	})
}

package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/quotedesk/internal/common"
)

// Handler exposes catalog administration endpoints backed by the store.
type Handler struct {
	gateway  *Gateway
	validate *validator.Validate
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Gateway  *Gateway
	Validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	v := cfg.Validate
	if v == nil {
		v = validator.New(validator.WithRequiredStructEnabled())
	}
	return &Handler{gateway: cfg.Gateway, validate: v}
}

type itemInput struct {
	Name        string           `json:"name" validate:"required,max=200"`
	Price       *decimal.Decimal `json:"price"`
	GSTPercent  *decimal.Decimal `json:"gstPercent"`
	Description string           `json:"description" validate:"max=2000"`
	URL         string           `json:"url" validate:"omitempty,url"`
}

type ruleInput struct {
	ProductName string           `json:"productName" validate:"required,max=200"`
	GSTPercent  *decimal.Decimal `json:"gstPercent"`
}

// Items handles GET /api/v1/items.
func (h *Handler) Items(w http.ResponseWriter, r *http.Request) {
	if h.gateway == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog gateway not configured", nil)
		return
	}
	items, err := h.gateway.ListItems(r.Context())
	if err != nil {
		common.WriteError(w, ToAppError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// CreateItem handles POST /api/v1/items.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	item, ok := h.decodeItem(w, r)
	if !ok {
		return
	}
	created, err := h.gateway.CreateItem(r.Context(), item)
	if err != nil {
		common.WriteError(w, ToAppError(err))
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// UpdateItem handles PUT /api/v1/items/{id}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id := ID(strings.TrimSpace(chi.URLParam(r, "id")))
	if id == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "item id is required", nil)
		return
	}
	item, ok := h.decodeItem(w, r)
	if !ok {
		return
	}
	item.ID = id
	updated, err := h.gateway.UpdateItem(r.Context(), id, item)
	if err != nil {
		common.WriteError(w, ToAppError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// DeleteItem handles DELETE /api/v1/items/{id}.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id := ID(strings.TrimSpace(chi.URLParam(r, "id")))
	if id == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "item id is required", nil)
		return
	}
	if err := h.gateway.DeleteItem(r.Context(), id); err != nil {
		common.WriteError(w, ToAppError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GSTRules handles GET /api/v1/gst-rules.
func (h *Handler) GSTRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.gateway.ListGSTRules(r.Context())
	if err != nil {
		common.WriteError(w, ToAppError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rules})
}

// CreateGSTRule handles POST /api/v1/gst-rules.
func (h *Handler) CreateGSTRule(w http.ResponseWriter, r *http.Request) {
	var in ruleInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		common.WriteError(w, common.ValidationError("invalid gst rule", common.FieldErrors(err)))
		return
	}
	if in.GSTPercent == nil || !validPercent(*in.GSTPercent) {
		common.WriteError(w, common.ValidationError("gstPercent must be between 0 and 100", nil))
		return
	}
	created, err := h.gateway.CreateGSTRule(r.Context(), GSTRule{ProductName: strings.TrimSpace(in.ProductName), GSTPercent: *in.GSTPercent})
	if err != nil {
		common.WriteError(w, ToAppError(err))
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// Settings handles GET /api/v1/settings.
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	s, err := h.gateway.Settings(r.Context())
	if err != nil {
		common.WriteError(w, ToAppError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": s})
}

// UpdateSettings handles PUT /api/v1/settings.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var in Settings
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if in.DefaultGST != nil && !validPercent(*in.DefaultGST) {
		common.WriteError(w, common.ValidationError("defaultGst must be between 0 and 100", nil))
		return
	}
	if in.ValidityDays < 0 {
		common.WriteError(w, common.ValidationError("validityDays must not be negative", nil))
		return
	}
	updated, err := h.gateway.UpdateSettings(r.Context(), in)
	if err != nil {
		common.WriteError(w, ToAppError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

func (h *Handler) decodeItem(w http.ResponseWriter, r *http.Request) (Item, bool) {
	if h.gateway == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog gateway not configured", nil)
		return Item{}, false
	}
	var in itemInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return Item{}, false
	}
	if err := h.validate.Struct(in); err != nil {
		common.WriteError(w, common.ValidationError("invalid item", common.FieldErrors(err)))
		return Item{}, false
	}
	if in.Price == nil || in.Price.IsNegative() {
		common.WriteError(w, common.ValidationError("price must be a non-negative amount", nil))
		return Item{}, false
	}
	if in.GSTPercent != nil && !validPercent(*in.GSTPercent) {
		common.WriteError(w, common.ValidationError("gstPercent must be between 0 and 100", nil))
		return Item{}, false
	}
	return Item{
		Name:        strings.TrimSpace(in.Name),
		Price:       *in.Price,
		GSTPercent:  in.GSTPercent,
		Description: strings.TrimSpace(in.Description),
		URL:         strings.TrimSpace(in.URL),
	}, true
}

// ToAppError maps gateway failures onto the API error shape. Client-side
// rejections from the store keep their status; everything else is a 502.
func ToAppError(err error) error {
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		return err
	}
	msg := gwErr.Message
	if msg == "" {
		msg = "catalog store request failed"
	}
	status := http.StatusBadGateway
	code := "GATEWAY_ERROR"
	switch {
	case gwErr.Status == http.StatusNotFound:
		status, code = http.StatusNotFound, "NOT_FOUND"
	case gwErr.Status >= 400 && gwErr.Status < 500:
		status = gwErr.Status
	}
	appErr := common.NewAppError(code, msg, status, err)
	appErr.Details = map[string]any{"op": gwErr.Op, "upstreamStatus": gwErr.Status}
	return appErr
}

func validPercent(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(decimal.NewFromInt(100))
}

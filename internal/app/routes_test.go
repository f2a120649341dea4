package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quotedesk/internal/app"
	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/catalog/catalogtest"
	"github.com/noah-isme/quotedesk/internal/common"
	"github.com/noah-isme/quotedesk/internal/config"
	"github.com/noah-isme/quotedesk/internal/session"
)

type harness struct {
	store  *catalogtest.Store
	deps   *app.Dependencies
	router http.Handler
}

func newHarness(t *testing.T) harness {
	t.Helper()
	store := catalogtest.New(t)
	gst := decimal.NewFromInt(18)
	store.AddItem(catalog.Item{ID: "p1", Name: "Widget", Price: decimal.NewFromInt(1000), GSTPercent: &gst})

	cfg, err := config.LoadForTests(map[string]string{
		"CATALOG_API_BASE_URL": store.URL,
		"JWT_SECRET":           "test-secret",
		"REDIS_URL":            "",
		"AUDIT_ASYNC":          "false",
		"RENDER_BACKEND":       "canvas",
		"RENDER_SCALE":         "1",
		"RETRY_MAX_ATTEMPTS":   "1",
	})
	require.NoError(t, err)

	deps, err := app.New(context.Background(), cfg, zerolog.Nop(), app.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })
	return harness{store: store, deps: deps, router: deps.Router()}
}

func (h harness) token(t *testing.T, role string) string {
	t.Helper()
	tok, _, err := h.deps.Auth.SignAccessToken(common.Principal{UserID: "u-1", Name: "Seller", Role: role})
	require.NoError(t, err)
	return tok
}

func (h harness) do(t *testing.T, method, path, body, token, sessionID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if sessionID != "" {
		req.Header.Set(session.HeaderName, sessionID)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func TestAPIRequiresToken(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/v1/items", "", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodGet, "/health/live", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestQuotationLifecycleThroughRouter(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, "sales")

	rec := h.do(t, http.MethodPost, "/api/v1/sessions", "", tok, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	sid := rec.Header().Get(session.HeaderName)
	require.NotEmpty(t, sid)

	rec = h.do(t, http.MethodPost, "/api/v1/cart/items", `{"productId":"p1"}`, tok, sid)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = h.do(t, http.MethodPatch, "/api/v1/cart/items/p1/quantity", `{"value":2}`, tok, sid)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = h.do(t, http.MethodPut, "/api/v1/cart/discount", `{"value":"10"}`, tok, sid)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/v1/cart/document?format=png", "", tok, sid)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = h.do(t, http.MethodPost, "/api/v1/quotations", `{"customer":{"name":"Asha","phone":"9876543210"}}`, tok, sid)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Data struct {
			Quotation catalog.Quotation `json:"quotation"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "2160.00", created.Data.Quotation.GrandTotal)
	id := created.Data.Quotation.ID.String()

	rec = h.do(t, http.MethodGet, "/api/v1/quotations/"+id+"/document?format=pdf", "", tok, sid)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	require.Equal(t, "1", rec.Header().Get("X-Page-Count"))

	rec = h.do(t, http.MethodGet, "/api/v1/quotations", "", tok, sid)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, h.store.Quotations(), 1)
}

func TestCatalogMutationsRequireEditorRole(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/items", `{"name":"Bolt","price":"10"}`, h.token(t, "sales"), "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/v1/items", `{"name":"Bolt","price":"10"}`, h.token(t, "admin"), "")
	require.Equal(t, http.StatusCreated, rec.Code)

	entries := h.store.Audit()
	require.NotEmpty(t, entries)
	require.Equal(t, "item.created", entries[len(entries)-1].Action)
}

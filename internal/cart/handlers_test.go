package cart_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quotedesk/internal/cart"
	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/catalog/catalogtest"
	"github.com/noah-isme/quotedesk/internal/common"
)

type singleScope struct {
	mu   sync.Mutex
	cart *cart.Cart
}

func (s *singleScope) Do(r *http.Request, fn func(context.Context, common.Principal, *cart.Cart) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(r.Context(), seller, s.cart)
}

func newRouter(t *testing.T) (http.Handler, *catalogtest.Store) {
	t.Helper()
	svc, store, _ := newService(t)
	h := &cart.Handler{Svc: svc, Sessions: &singleScope{cart: cart.New()}}
	r := chi.NewRouter()
	r.Get("/cart", h.Get)
	r.Post("/cart/items", h.AddItem)
	r.Delete("/cart/items/{productId}", h.RemoveItem)
	r.Patch("/cart/items/{productId}/quantity", h.SetQuantity)
	r.Patch("/cart/items/{productId}/price", h.SetPrice)
	r.Patch("/cart/items/{productId}/gst", h.SetGST)
	r.Put("/cart/discount", h.SetDiscount)
	r.Delete("/cart", h.Clear)
	return r, store
}

type viewBody struct {
	Data  cart.View         `json:"data"`
	Error *common.ErrorBody `json:"error"`
}

func call(t *testing.T, h http.Handler, method, path, body string) (int, viewBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	var out viewBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec.Code, out
}

func TestCartHandlersFlow(t *testing.T) {
	h, store := newRouter(t)
	store.AddItem(catalog.Item{ID: "42", Name: "Widget", Price: dec("1000")})

	code, body := call(t, h, http.MethodPost, "/cart/items", `{"productId":42}`)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body.Data.Items, 1)

	code, body = call(t, h, http.MethodPatch, "/cart/items/42/quantity", `{"value":"2"}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 2, body.Data.Items[0].Quantity)

	code, body = call(t, h, http.MethodPut, "/cart/discount", `{"value":10}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "2160.00", body.Data.Totals.GrandTotal)

	code, body = call(t, h, http.MethodPut, "/cart/discount", `{"value":"150"}`)
	require.Equal(t, http.StatusUnprocessableEntity, code)
	require.NotNil(t, body.Error)
	require.Equal(t, "VALIDATION_FAILED", body.Error.Code)
	require.Equal(t, "2160.00", body.Data.Totals.GrandTotal)

	code, body = call(t, h, http.MethodDelete, "/cart/items/42", "")
	require.Equal(t, http.StatusOK, code)
	require.Empty(t, body.Data.Items)

	code, body = call(t, h, http.MethodDelete, "/cart", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, cart.ModeCreating, body.Data.Mode)
}

func TestCartHandlerRequiresValue(t *testing.T) {
	h, _ := newRouter(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/cart/items/1/price", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

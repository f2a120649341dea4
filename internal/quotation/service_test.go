package quotation_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quotedesk/internal/audit"
	"github.com/noah-isme/quotedesk/internal/cart"
	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/catalog/catalogtest"
	"github.com/noah-isme/quotedesk/internal/common"
	"github.com/noah-isme/quotedesk/internal/lock"
	"github.com/noah-isme/quotedesk/internal/quotation"
	"github.com/noah-isme/quotedesk/internal/session"
	"github.com/noah-isme/quotedesk/internal/tax"
)

var (
	seller = common.Principal{UserID: "u-1", Name: "Seller", Role: "sales"}
	fixed  = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	buyer  = catalog.Customer{Name: "Asha Rao", Phone: "9876543210", Email: "asha@example.com"}
)

type fixture struct {
	store *catalogtest.Store
	carts *cart.Service
	svc   *quotation.Service
}

func newFixture(t *testing.T, guard lock.Guard) fixture {
	t.Helper()
	store := catalogtest.New(t)
	gw := store.Gateway(t)
	store.AddItem(catalog.Item{ID: "p1", Name: "Widget", Price: decimal.RequireFromString("1000")})
	store.AddItem(catalog.Item{ID: "p2", Name: "Bolt", Price: decimal.RequireFromString("10")})
	carts := cart.NewService(cart.ServiceConfig{Items: gw, Rates: tax.NewResolver(gw, zerolog.Nop()), Logger: zerolog.Nop()})
	svc := quotation.NewService(quotation.Config{
		Store:  gw,
		Guard:  guard,
		Audit:  audit.Service{Sink: audit.GatewaySink{Appender: gw}, Enabled: true, Logger: zerolog.Nop()},
		Now:    func() time.Time { return fixed },
		Logger: zerolog.Nop(),
	})
	return fixture{store: store, carts: carts, svc: svc}
}

func (f fixture) filledCart(t *testing.T) *cart.Cart {
	t.Helper()
	c := cart.New()
	ctx := context.Background()
	_, err := f.carts.Add(ctx, seller, c, "p1")
	require.NoError(t, err)
	_ = f.carts.SetQuantity(ctx, seller, c, "p1", "2")
	_, err = f.carts.SetDiscount(ctx, seller, c, "10")
	require.NoError(t, err)
	return c
}

func TestSubmitCreatesQuotationAndClearsCart(t *testing.T) {
	f := newFixture(t, nil)
	c := f.filledCart(t)

	saved, err := f.svc.Submit(common.WithSessionID(context.Background(), "s-1"), seller, c, buyer)
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	require.Equal(t, "2000.00", saved.SubTotal)
	require.Equal(t, "200.00", saved.DiscountAmount)
	require.Equal(t, "360.00", saved.TotalGSTAmount)
	require.Equal(t, "2160.00", saved.GrandTotal)
	require.Equal(t, "Seller", saved.CreatedBy)
	require.Len(t, saved.Items, 1)
	require.Equal(t, "1000.00", saved.Items[0].UnitPrice)
	require.Equal(t, "2000.00", saved.Items[0].LineTotal)

	require.Equal(t, 0, c.Len())
	require.Equal(t, cart.ModeCreating, c.Mode())

	entries := f.store.Audit()
	require.Len(t, entries, 1)
	require.Equal(t, audit.ActionQuotationCreated, entries[0].Action)
}

func TestSubmitValidatesCustomerAndKeepsCart(t *testing.T) {
	f := newFixture(t, nil)
	c := f.filledCart(t)

	cases := []catalog.Customer{
		{Name: "No phone"},
		{Phone: "12345"},
		{Phone: "98765abcde"},
		{Phone: "12345.6789"},
		{Phone: "-123456789"},
		{Phone: "+123456789"},
		{Phone: "9876543210", Email: "not-an-email"},
	}
	for _, cu := range cases {
		_, err := f.svc.Submit(context.Background(), seller, c, cu)
		var appErr *common.AppError
		require.ErrorAs(t, err, &appErr, cu)
		require.Equal(t, "VALIDATION_FAILED", appErr.Code)
		require.Equal(t, 1, c.Len())
		require.Equal(t, catalog.Customer{}, c.Customer())
	}
	require.Empty(t, f.store.Quotations())
}

func TestSubmitRejectsEmptyCart(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Submit(context.Background(), seller, cart.New(), buyer)
	require.ErrorIs(t, err, quotation.ErrEmptyCart)
}

func TestSubmitGatewayFailureKeepsCart(t *testing.T) {
	f := newFixture(t, nil)
	c := f.filledCart(t)
	f.store.Fail["quotations"] = http.StatusInternalServerError

	_, err := f.svc.Submit(context.Background(), seller, c, buyer)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusBadGateway, appErr.HTTPStatus)
	require.Equal(t, 1, c.Len())
}

type heldGuard struct{}

func (heldGuard) TryWithLock(context.Context, string, time.Duration, func(context.Context) error) error {
	return lock.ErrLocked
}

func TestExclusiveWhileBusyConflicts(t *testing.T) {
	f := newFixture(t, heldGuard{})

	called := false
	err := f.svc.Exclusive(context.Background(), "s-1", func(context.Context) error {
		called = true
		return nil
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusConflict, appErr.HTTPStatus)
	require.ErrorIs(t, err, quotation.ErrBusy)
	require.False(t, called)
}

func TestEditFlowUpdatesStoredQuotation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	saved, err := f.svc.Submit(ctx, seller, f.filledCart(t), buyer)
	require.NoError(t, err)

	c := cart.New()
	require.NoError(t, f.svc.BeginEdit(ctx, seller, c, saved.ID))
	require.Equal(t, cart.ModeEditing, c.Mode())
	require.Equal(t, saved.ID, c.EditingID())
	require.Equal(t, buyer, c.Customer())

	_, err = f.carts.Add(ctx, seller, c, "p2")
	require.NoError(t, err)
	updated, err := f.svc.Submit(ctx, seller, c, c.Customer())
	require.NoError(t, err)
	require.Equal(t, saved.ID, updated.ID)

	stored := f.store.Quotations()
	require.Len(t, stored, 1)
	require.Len(t, stored[0].Items, 2)

	entries := f.store.Audit()
	require.Equal(t, audit.ActionQuotationUpdated, entries[len(entries)-1].Action)
}

func TestReviseKeepsCreationDate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created := fixed.Add(-72 * time.Hour)
	f.store.AddQuotation(catalog.Quotation{
		ID:              "q-1",
		Customer:        buyer,
		Items:           []catalog.QuotationItem{{ProductID: "p1", ProductName: "Widget", UnitPrice: "1000.00", Quantity: 1, GSTRate: "18.00"}},
		DiscountPercent: "0.00",
		DateCreated:     created,
	})

	c := cart.New()
	require.NoError(t, f.svc.BeginEdit(ctx, seller, c, "q-1"))
	require.True(t, created.Equal(c.CreatedAt()))

	_, err := f.svc.Submit(ctx, seller, c, buyer)
	require.NoError(t, err)
	stored := f.store.Quotations()
	require.Len(t, stored, 1)
	require.True(t, created.Equal(stored[0].DateCreated), stored[0].DateCreated)
	require.True(t, c.CreatedAt().IsZero())
}

func TestBeginEditUnknownQuotation(t *testing.T) {
	f := newFixture(t, nil)
	err := f.svc.BeginEdit(context.Background(), seller, cart.New(), "missing")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	f := newFixture(t, nil)
	for i := 0; i < 3; i++ {
		f.store.AddQuotation(catalog.Quotation{ID: catalog.ID("q" + string(rune('a'+i))), DateCreated: fixed.Add(time.Duration(i) * time.Hour)})
	}

	items, meta, err := f.svc.List(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Equal(t, 3, meta.TotalItems)
	require.Len(t, items, 2)
	require.Equal(t, catalog.ID("qc"), items[0].ID)

	items, _, err = f.svc.List(context.Background(), 3, 2)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestDeleteIsAudited(t *testing.T) {
	f := newFixture(t, nil)
	f.store.AddQuotation(catalog.Quotation{ID: "q-1"})

	require.NoError(t, f.svc.Delete(context.Background(), seller, "q-1"))
	require.Empty(t, f.store.Quotations())
	entries := f.store.Audit()
	require.Len(t, entries, 1)
	require.Equal(t, audit.ActionQuotationDeleted, entries[0].Action)
}

func submitRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/quotations", strings.NewReader(body))
	req.Header.Set(session.HeaderName, "s-1")
	return req
}

type scope struct {
	mu sync.Mutex
	c  *cart.Cart
}

func (s *scope) Do(r *http.Request, fn func(context.Context, common.Principal, *cart.Cart) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(common.WithSessionID(r.Context(), "s-1"), seller, s.c)
}

func TestSubmitHandler(t *testing.T) {
	f := newFixture(t, nil)
	h := &quotation.Handler{Svc: f.svc, Sessions: &scope{c: f.filledCart(t)}}
	r := chi.NewRouter()
	r.Post("/quotations", h.Submit)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, submitRequest(`{"customer":{"phone":"123"}}`))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), `"cart"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, submitRequest(`{"customer":{"name":"Asha","phone":"9876543210"}}`))
	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		Data struct {
			Quotation catalog.Quotation `json:"quotation"`
			Cart      cart.View         `json:"cart"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "2160.00", body.Data.Quotation.GrandTotal)
	require.Empty(t, body.Data.Cart.Items)
}

func TestSubmitHandlerOverlappingSubmitConflicts(t *testing.T) {
	f := newFixture(t, nil)
	release := make(chan struct{})
	f.store.Block["quotations"] = release
	h := &quotation.Handler{Svc: f.svc, Sessions: &scope{c: f.filledCart(t)}}
	r := chi.NewRouter()
	r.Post("/quotations", h.Submit)

	first := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.ServeHTTP(first, submitRequest(`{"customer":{"phone":"9876543210"}}`))
	}()
	require.Eventually(t, func() bool {
		return f.store.Calls("POST /quotations") == 1
	}, 2*time.Second, 5*time.Millisecond)

	second := httptest.NewRecorder()
	r.ServeHTTP(second, submitRequest(`{"customer":{"phone":"9876543210"}}`))
	require.Equal(t, http.StatusConflict, second.Code)
	require.Contains(t, second.Body.String(), "CONFLICT")

	close(release)
	<-done
	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, 1, f.store.Calls("POST /quotations"))
	require.Len(t, f.store.Quotations(), 1)
}

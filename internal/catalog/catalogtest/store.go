// Package catalogtest provides an in-memory fake of the external store API for tests.
package catalogtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/resilience"
)

// Store is a fake store. Envelope, Fail and Block are read under the lock but
// written without it; set them before issuing requests.
type Store struct {
	URL string

	mu         sync.Mutex
	items      []catalog.Item
	rules      []catalog.GSTRule
	settings   *catalog.Settings
	quotations []catalog.Quotation
	overrides  []catalog.TempOverride
	audit      []catalog.AuditEntry
	nextID     int
	calls      map[string]int

	// Envelope wraps list answers in {"data": ...}.
	Envelope bool
	// Fail maps an operation name ("items", "gst-rules", "settings",
	// "quotations", "temp-overrides", "audit-logs") to a forced status.
	Fail map[string]int
	// Block maps an operation name to a channel requests wait on before they
	// are served. Close it to release them.
	Block map[string]chan struct{}
}

// New starts a fake store server that is closed with the test.
func New(t testing.TB) *Store {
	t.Helper()
	s := &Store{Fail: map[string]int{}, Block: map[string]chan struct{}{}, calls: map[string]int{}, nextID: 1}
	srv := httptest.NewServer(s.routes())
	t.Cleanup(srv.Close)
	s.URL = srv.URL
	return s
}

// Gateway returns a gateway bound to the fake store.
func (s *Store) Gateway(t testing.TB) *catalog.Gateway {
	t.Helper()
	gw, err := catalog.NewGateway(catalog.GatewayConfig{
		BaseURL: s.URL,
		HTTP:    resilience.HTTPClient{Client: http.DefaultClient, MaxAttempts: 1},
		Logger:  zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	return gw
}

// AddItem seeds a catalog item.
func (s *Store) AddItem(it catalog.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, it)
}

// SetItemPrice changes the canonical price of an item.
func (s *Store) SetItemPrice(id catalog.ID, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Price = mustDecimal(price)
		}
	}
}

// AddRule seeds a GST rule.
func (s *Store) AddRule(name, pct string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, catalog.GSTRule{ProductName: name, GSTPercent: mustDecimal(pct)})
}

// SetSettings seeds the settings document. Nil means the store has none.
func (s *Store) SetSettings(st *catalog.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = st
}

// AddOverride seeds a temp-override record.
func (s *Store) AddOverride(o catalog.TempOverride) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides = append(s.overrides, o)
}

// AddQuotation seeds a stored quotation.
func (s *Store) AddQuotation(q catalog.Quotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotations = append(s.quotations, q)
}

// Overrides returns the recorded temp-overrides.
func (s *Store) Overrides() []catalog.TempOverride {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]catalog.TempOverride(nil), s.overrides...)
}

// Quotations returns stored quotations.
func (s *Store) Quotations() []catalog.Quotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]catalog.Quotation(nil), s.quotations...)
}

// Audit returns appended audit entries.
func (s *Store) Audit() []catalog.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]catalog.AuditEntry(nil), s.audit...)
}

// Calls reports how many requests hit "METHOD /resource".
func (s *Store) Calls(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

func (s *Store) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			resource := firstSegment(req.URL.Path)
			s.mu.Lock()
			s.calls[req.Method+" /"+resource]++
			status := s.Fail[resource]
			gate := s.Block[resource]
			s.mu.Unlock()
			if gate != nil {
				select {
				case <-gate:
				case <-req.Context().Done():
					return
				}
			}
			if status != 0 {
				writeJSON(w, status, map[string]string{"message": "forced failure for " + resource})
				return
			}
			next.ServeHTTP(w, req)
		})
	})

	r.Get("/items", func(w http.ResponseWriter, _ *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.list(w, s.items)
	})
	r.Post("/items", func(w http.ResponseWriter, req *http.Request) {
		var it catalog.Item
		if !decode(w, req, &it) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		it.ID = s.newID()
		s.items = append(s.items, it)
		writeJSON(w, http.StatusCreated, it)
	})
	r.Put("/items/{id}", func(w http.ResponseWriter, req *http.Request) {
		var it catalog.Item
		if !decode(w, req, &it) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		id := catalog.ID(chi.URLParam(req, "id"))
		for i := range s.items {
			if s.items[i].ID == id {
				it.ID = id
				s.items[i] = it
				writeJSON(w, http.StatusOK, it)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "item not found"})
	})
	r.Delete("/items/{id}", func(w http.ResponseWriter, req *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		id := catalog.ID(chi.URLParam(req, "id"))
		for i := range s.items {
			if s.items[i].ID == id {
				s.items = append(s.items[:i], s.items[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "item not found"})
	})

	r.Get("/gst-rules", func(w http.ResponseWriter, _ *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.list(w, s.rules)
	})
	r.Post("/gst-rules", func(w http.ResponseWriter, req *http.Request) {
		var rule catalog.GSTRule
		if !decode(w, req, &rule) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		rule.ID = s.newID()
		s.rules = append(s.rules, rule)
		writeJSON(w, http.StatusCreated, rule)
	})

	r.Get("/settings", func(w http.ResponseWriter, _ *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.settings == nil {
			writeJSON(w, http.StatusOK, map[string]any{})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": s.settings})
	})
	r.Put("/settings", func(w http.ResponseWriter, req *http.Request) {
		var st catalog.Settings
		if !decode(w, req, &st) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.settings = &st
		writeJSON(w, http.StatusOK, st)
	})

	r.Get("/quotations", func(w http.ResponseWriter, _ *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.list(w, s.quotations)
	})
	r.Post("/quotations", func(w http.ResponseWriter, req *http.Request) {
		var q catalog.Quotation
		if !decode(w, req, &q) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		q.ID = s.newID()
		s.quotations = append(s.quotations, q)
		writeJSON(w, http.StatusCreated, q)
	})
	r.Get("/quotations/{id}", func(w http.ResponseWriter, req *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		id := catalog.ID(chi.URLParam(req, "id"))
		for _, q := range s.quotations {
			if q.ID == id {
				writeJSON(w, http.StatusOK, q)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "quotation not found"})
	})
	r.Put("/quotations/{id}", func(w http.ResponseWriter, req *http.Request) {
		var q catalog.Quotation
		if !decode(w, req, &q) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		id := catalog.ID(chi.URLParam(req, "id"))
		for i := range s.quotations {
			if s.quotations[i].ID == id {
				q.ID = id
				s.quotations[i] = q
				writeJSON(w, http.StatusOK, q)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "quotation not found"})
	})
	r.Delete("/quotations/{id}", func(w http.ResponseWriter, req *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		id := catalog.ID(chi.URLParam(req, "id"))
		for i := range s.quotations {
			if s.quotations[i].ID == id {
				s.quotations = append(s.quotations[:i], s.quotations[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "quotation not found"})
	})

	r.Get("/temp-overrides", func(w http.ResponseWriter, _ *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.list(w, s.overrides)
	})
	r.Post("/temp-overrides", func(w http.ResponseWriter, req *http.Request) {
		var o catalog.TempOverride
		if !decode(w, req, &o) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		o.ID = s.newID()
		s.overrides = append(s.overrides, o)
		writeJSON(w, http.StatusCreated, o)
	})

	r.Post("/audit-logs", func(w http.ResponseWriter, req *http.Request) {
		var e catalog.AuditEntry
		if !decode(w, req, &e) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.audit = append(s.audit, e)
		writeJSON(w, http.StatusCreated, e)
	})
	return r
}

func (s *Store) list(w http.ResponseWriter, v any) {
	if s.Envelope {
		writeJSON(w, http.StatusOK, map[string]any{"data": v})
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Store) newID() catalog.ID {
	id := catalog.ID("id-" + strconv.Itoa(s.nextID))
	s.nextID++
	return id
}

func firstSegment(path string) string {
	for len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return path
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad json"})
		return false
	}
	return true
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

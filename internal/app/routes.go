package app

import (
	"crypto/subtle"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/quotedesk/internal/audit"
	"github.com/noah-isme/quotedesk/internal/auth"
	"github.com/noah-isme/quotedesk/internal/cart"
	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/common"
	"github.com/noah-isme/quotedesk/internal/document"
	"github.com/noah-isme/quotedesk/internal/health"
	"github.com/noah-isme/quotedesk/internal/obs"
	"github.com/noah-isme/quotedesk/internal/quotation"
	"github.com/noah-isme/quotedesk/internal/ratelimit"
	"github.com/noah-isme/quotedesk/internal/security"
	"github.com/noah-isme/quotedesk/internal/session"
	"github.com/noah-isme/quotedesk/internal/tax"
)

// Router mounts every endpoint on a chi router.
func (d *Dependencies) Router() http.Handler {
	cfg := d.Config
	logger := d.Logger

	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Gateway: d.Gateway, Validate: d.Validator})
	taxHandler := tax.NewHandler(d.Resolver)
	sessionHandler := &session.Handler{Registry: d.Sessions}
	cartHandler := &cart.Handler{Svc: d.Cart, Sessions: d.Sessions}
	quotationHandler := &quotation.Handler{Svc: d.Quotations, Sessions: d.Sessions}
	documentHandler := &document.Handler{Renderer: d.Renderer, Quotations: d.Gateway, Sessions: d.Sessions}
	healthHandler := health.Handler{
		Checker:        health.Probe{Catalog: d.Gateway, Breaker: d.Breaker, Redis: d.Redis},
		Breaker:        d.Breaker,
		CatalogTimeout: cfg.CatalogTimeout,
	}

	authMiddleware := auth.Middleware{Service: d.Auth, AccessCookie: cfg.AccessCookie}
	idem := common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL}
	onLimitError := func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") }
	sessionLimit := ratelimit.Handler{Limiter: d.SessionLimiter, Key: ratelimit.ByIP, OnError: onLimitError}
	renderLimit := ratelimit.Handler{Limiter: d.RenderLimiter, Key: ratelimit.ByPrincipal, OnError: onLimitError}
	recorder := audit.HTTPRecorder{
		Service: d.Audit,
		OnError: func(err error) { logger.Error().Err(err).Msg("record audit entry") },
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if d.Options.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if d.Options.MetricsEnabled && d.Options.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.Options.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.HSTS}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-CSRF-Token", session.HeaderName},
		ExposedHeaders:   []string{session.HeaderName, "Content-Disposition", "X-Page-Count", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if d.Options.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if d.Options.PprofEnabled {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), d.Options.PprofUser, d.Options.PprofPass))
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)
		v.Use(authMiddleware.RequireAuth)
		v.Use(security.CSRF{Cookie: cfg.AccessCookie}.Middleware)

		v.Get("/items", catalogHandler.Items)
		v.Get("/gst-rules", catalogHandler.GSTRules)
		v.Get("/gst-rules/resolve", taxHandler.Resolve)
		v.Get("/settings", catalogHandler.Settings)

		v.Group(func(editor chi.Router) {
			editor.Use(auth.RequireRole(cfg.IsEditorRole))
			editor.With(recorder.Middleware(audit.Route{Action: "item.created", Resource: "item"})).
				Post("/items", catalogHandler.CreateItem)
			editor.With(recorder.Middleware(audit.Route{Action: "item.updated", Resource: "item", IDParam: "id"})).
				Put("/items/{id}", catalogHandler.UpdateItem)
			editor.With(recorder.Middleware(audit.Route{Action: "item.deleted", Resource: "item", IDParam: "id"})).
				Delete("/items/{id}", catalogHandler.DeleteItem)
			editor.With(recorder.Middleware(audit.Route{Action: "gst_rule.created", Resource: "gst_rule"})).
				Post("/gst-rules", catalogHandler.CreateGSTRule)
			editor.With(recorder.Middleware(audit.Route{Action: "settings.updated", Resource: "settings"})).
				Put("/settings", catalogHandler.UpdateSettings)
		})

		v.With(sessionLimit.Middleware).Post("/sessions", sessionHandler.Open)
		v.Delete("/sessions/current", sessionHandler.Close)

		v.Route("/cart", func(c chi.Router) {
			c.Use(security.NoStore)
			c.Get("/", cartHandler.Get)
			c.Post("/items", cartHandler.AddItem)
			c.Delete("/items/{productId}", cartHandler.RemoveItem)
			c.Patch("/items/{productId}/quantity", cartHandler.SetQuantity)
			c.Patch("/items/{productId}/price", cartHandler.SetPrice)
			c.Patch("/items/{productId}/gst", cartHandler.SetGST)
			c.Put("/discount", cartHandler.SetDiscount)
			c.Delete("/", cartHandler.Clear)
			c.With(renderLimit.Middleware).Post("/document", documentHandler.CartPreview)
		})

		v.Route("/quotations", func(q chi.Router) {
			q.Use(security.NoStore)
			q.Get("/", quotationHandler.List)
			q.With(idem.Middleware).Post("/", quotationHandler.Submit)
			q.Post("/{id}/edit", quotationHandler.Edit)
			q.Delete("/{id}", quotationHandler.Delete)
			q.With(renderLimit.Middleware).Get("/{id}/document", documentHandler.Quotation)
		})

		v.With(security.NoStore, renderLimit.Middleware).Post("/documents/render", documentHandler.Render)
	})

	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/noah-isme/quotedesk/internal/common"
	"github.com/noah-isme/quotedesk/internal/obs"
)

// Route describes the entry written for one mutating endpoint. An empty
// Action becomes "METHOD /pattern"; an empty Resource is derived from the
// pattern below /api/v1.
type Route struct {
	Action   string
	Resource string
	IDParam  string
}

// HTTPRecorder audits requests that were answered below 400.
type HTTPRecorder struct {
	Service *Service
	OnError func(error)
}

// Middleware returns chi middleware recording rt.
func (h HTTPRecorder) Middleware(rt Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if h.Service == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !h.Service.Enabled {
				next.ServeHTTP(w, r)
				return
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusBadRequest {
				return
			}
			p, _ := common.PrincipalFrom(r.Context())
			if err := h.Service.RecordRequest(r.Context(), p, rt, r, status, nil); err != nil && h.OnError != nil {
				h.OnError(err)
			}
		})
	}
}

// RecordRequest appends an entry for a handled request. extra is merged into
// the JSON details.
func (s Service) RecordRequest(ctx context.Context, p common.Principal, rt Route, r *http.Request, status int, extra map[string]any) error {
	if !s.Enabled {
		return nil
	}
	if r == nil {
		return errors.New("audit: request is required")
	}
	pattern := obs.RoutePatternFromContext(r.Context())
	if rc := chi.RouteContext(r.Context()); pattern == "" && rc != nil {
		pattern = rc.RoutePattern()
	}
	if pattern == "" {
		pattern = r.URL.Path
	}

	details := map[string]any{
		"resource": resourceName(rt.Resource, pattern),
		"method":   r.Method,
		"path":     r.URL.Path,
		"status":   status,
	}
	if rt.IDParam != "" {
		if id := strings.TrimSpace(chi.URLParam(r, rt.IDParam)); id != "" {
			details["resourceId"] = id
		}
	}
	optional := map[string]string{
		"ip":        common.ClientIP(r),
		"requestId": requestID(r),
		"query":     r.URL.RawQuery,
	}
	for k, v := range optional {
		if v = strings.TrimSpace(v); v != "" {
			details[k] = v
		}
	}
	for k, v := range extra {
		details[k] = v
	}
	data, err := json.Marshal(details)
	if err != nil {
		return err
	}

	action := strings.TrimSpace(rt.Action)
	if action == "" {
		action = strings.ToUpper(r.Method) + " " + pattern
	}
	return s.Record(ctx, p, action, string(data))
}

func requestID(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get(middleware.RequestIDHeader)
}

// resourceName turns "/api/v1/items/{id}" into "items.{id}".
func resourceName(explicit, pattern string) string {
	if v := strings.TrimSpace(explicit); v != "" {
		return v
	}
	trimmed := strings.Trim(strings.TrimPrefix(strings.TrimSpace(pattern), "/api/v1"), "/")
	if trimmed == "" {
		return "unknown"
	}
	return strings.ReplaceAll(trimmed, "/", ".")
}

package security

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

func TestHeadersMiddlewareSetsSecurityHeaders(t *testing.T) {
	handler := Headers{Enable: true, EnableHSTS: true, HSTSIncludeSubdomains: true}.Middleware(ok)

	req := httptest.NewRequest(http.MethodGet, "https://example.com", nil)
	req.TLS = &tls.ConnectionState{}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "max-age=31536000; includeSubDomains", rr.Header().Get("Strict-Transport-Security"))
}

func TestHeadersMiddlewareDisabled(t *testing.T) {
	rr := httptest.NewRecorder()
	Headers{EnableHSTS: true}.Middleware(ok).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Empty(t, rr.Header().Get("X-Content-Type-Options"))
}

func TestNoStore(t *testing.T) {
	rr := httptest.NewRecorder()
	NoStore(ok).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/cart/document", nil))
	require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

func TestBodyLimit(t *testing.T) {
	var readErr error
	handler := BodyLimit{Max: 5}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("hello")))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, readErr)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("excessive")))
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	require.Contains(t, rr.Body.String(), "PAYLOAD_TOO_LARGE")

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("excessive"))
	req.ContentLength = -1
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Error(t, readErr)
}

func TestCSRFOnlyGuardsCookieRequests(t *testing.T) {
	handler := CSRF{Cookie: "qd_access"}.Middleware(ok)
	send := func(mutate func(*http.Request)) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/quotations", nil)
		mutate(req)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusOK, send(func(r *http.Request) { r.Header.Set("Authorization", "Bearer x") }))
	require.Equal(t, http.StatusForbidden, send(func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "qd_access", Value: "jwt"})
	}))
	require.Equal(t, http.StatusOK, send(func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "qd_access", Value: "jwt"})
		r.AddCookie(&http.Cookie{Name: "X-CSRF-Token", Value: "abc"})
		r.Header.Set("X-CSRF-Token", "abc")
	}))
	require.Equal(t, http.StatusForbidden, send(func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "qd_access", Value: "jwt"})
		r.AddCookie(&http.Cookie{Name: "X-CSRF-Token", Value: "abc"})
		r.Header.Set("X-CSRF-Token", "abd")
	}))
}

func TestCSRFDisabledWithoutCookieName(t *testing.T) {
	rr := httptest.NewRecorder()
	CSRF{}.Middleware(ok).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

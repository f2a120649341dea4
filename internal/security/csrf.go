package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/noah-isme/quotedesk/internal/common"
)

const defaultCSRFHeader = "X-CSRF-Token"

// CSRF applies the double-submit check to browser sessions: a mutating
// request that authenticates with the Cookie must repeat the value of the
// cookie named Header in the Header request header. Bearer-token clients and
// requests without the auth cookie pass through.
type CSRF struct {
	Header string
	Cookie string
}

// Middleware implements chi middleware.
func (c CSRF) Middleware(next http.Handler) http.Handler {
	name := strings.TrimSpace(c.Header)
	if name == "" {
		name = defaultCSRFHeader
	}
	if strings.TrimSpace(c.Cookie) == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.applies(r) {
			next.ServeHTTP(w, r)
			return
		}
		if msg := verifyDoubleSubmit(r, name); msg != "" {
			common.JSONError(w, http.StatusForbidden, "CSRF", msg, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (c CSRF) applies(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	}
	if scheme, _, _ := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " "); strings.EqualFold(scheme, "bearer") {
		return false
	}
	_, err := r.Cookie(c.Cookie)
	return err == nil
}

// verifyDoubleSubmit returns the rejection reason, or "" when the header
// matches the cookie.
func verifyDoubleSubmit(r *http.Request, name string) string {
	sent := strings.TrimSpace(r.Header.Get(name))
	if sent == "" {
		return "missing csrf token"
	}
	cookie, err := r.Cookie(name)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return "missing csrf cookie"
	}
	if subtle.ConstantTimeCompare([]byte(sent), []byte(cookie.Value)) != 1 {
		return "invalid csrf token"
	}
	return ""
}

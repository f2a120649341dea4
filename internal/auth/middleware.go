package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/quotedesk/internal/common"
)

// Middleware authenticates API requests from a bearer token, or from the
// access cookie when AccessCookie is set.
type Middleware struct {
	Service      *Service
	AccessCookie string
}

// RequireAuth rejects requests without a valid token with 401. On success the
// principal is put on the context and its id and role are added to the
// request logger.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Service == nil {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "authentication not configured", nil)
			return
		}
		token := m.token(r)
		if token == "" {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		p, err := m.Service.ParseAccessToken(token)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		ctx := common.WithPrincipal(r.Context(), p)
		zerolog.Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("user_id", p.UserID).Str("role", p.Role)
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) token(r *http.Request) string {
	if scheme, value, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(value)
	}
	if m.AccessCookie == "" {
		return ""
	}
	c, err := r.Cookie(m.AccessCookie)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

func writeAuthError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus != 0 {
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
}

// RequireRole answers 403 when the authenticated role fails allowed and 401
// when no principal is present.
func RequireRole(allowed func(role string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := common.PrincipalFrom(r.Context())
			switch {
			case !ok:
				common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			case allowed == nil || !allowed(p.Role):
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "role not permitted", nil)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

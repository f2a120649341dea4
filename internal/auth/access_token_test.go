package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/quotedesk/internal/common"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Secret:         "super-secret-key",
		AccessTokenTTL: time.Minute,
		Issuer:         "quotedesk",
		Audience:       "quotedesk-frontend",
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestServiceParseAccessTokenSuccess(t *testing.T) {
	svc := newTestService(t)
	fixed := time.Now()
	svc.WithNow(func() time.Time { return fixed })

	token, _, err := svc.SignAccessToken(common.Principal{UserID: "user-id", Name: "Asha", Role: "admin"})
	if err != nil {
		t.Fatalf("sign access token: %v", err)
	}
	p, err := svc.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if p.UserID != "user-id" || p.Name != "Asha" || p.Role != "admin" {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestServiceParseAccessTokenRejectsAlgorithmMismatch(t *testing.T) {
	svc := newTestService(t)
	fixed := time.Now()
	svc.WithNow(func() time.Time { return fixed })

	built, err := jwt.NewBuilder().
		Subject("user-id").
		Issuer(svc.policy.issuer).
		Audience([]string{svc.policy.audience}).
		IssuedAt(fixed).
		NotBefore(fixed.Add(-svc.policy.skew)).
		Expiration(fixed.Add(svc.accessTTL)).
		Build()
	if err != nil {
		t.Fatalf("build token: %v", err)
	}
	signed, err := jwt.Sign(built, jwt.WithKey(jwa.HS384, svc.secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := svc.ParseAccessToken(string(signed)); err == nil {
		t.Fatal("expected algorithm mismatch error")
	}
}

func TestServiceParseAccessTokenRejectsExpired(t *testing.T) {
	svc := newTestService(t)
	issued := time.Now().Add(-time.Hour)
	svc.WithNow(func() time.Time { return issued })
	token, _, err := svc.SignAccessToken(common.Principal{UserID: "user-id"})
	if err != nil {
		t.Fatalf("sign access token: %v", err)
	}
	svc.WithNow(time.Now)
	if _, err := svc.ParseAccessToken(token); err == nil {
		t.Fatal("expected expiry error")
	}
}

func TestNewServiceRequiresSecret(t *testing.T) {
	if _, err := NewService(Config{Secret: "  "}); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestRequireAuthAttachesPrincipal(t *testing.T) {
	svc := newTestService(t)
	token, _, err := svc.SignAccessToken(common.Principal{UserID: "u-9", Name: "Ravi", Role: "sales"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	var got common.Principal
	h := Middleware{Service: svc}.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = common.PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if got.UserID != "u-9" || got.Role != "sales" {
		t.Fatalf("unexpected principal %+v", got)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	allowed := func(role string) bool { return strings.EqualFold(role, "admin") }
	h := RequireRole(allowed)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		principal *common.Principal
		want      int
	}{
		{nil, http.StatusUnauthorized},
		{&common.Principal{UserID: "a", Role: "sales"}, http.StatusForbidden},
		{&common.Principal{UserID: "b", Role: "Admin"}, http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/items", nil)
		if tc.principal != nil {
			req = req.WithContext(common.WithPrincipal(req.Context(), *tc.principal))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("principal %+v: expected %d, got %d", tc.principal, tc.want, rec.Code)
		}
	}
}

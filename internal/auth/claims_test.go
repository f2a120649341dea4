package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

func TestClaimsPolicyCheck(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	policy := claimsPolicy{issuer: "quotedesk", audience: "quotedesk-frontend", skew: time.Second, algorithm: jwa.HS256}

	build := func(mut func(*jwt.Builder) *jwt.Builder) jwt.Token {
		b := jwt.NewBuilder().
			Issuer("quotedesk").
			Audience([]string{"quotedesk-frontend"}).
			Subject("u-1").
			IssuedAt(now).
			Expiration(now.Add(time.Hour))
		if mut != nil {
			b = mut(b)
		}
		tok, err := b.Build()
		require.NoError(t, err)
		return tok
	}

	cases := []struct {
		name string
		tok  jwt.Token
		ok   bool
	}{
		{"valid", build(nil), true},
		{"foreign issuer", build(func(b *jwt.Builder) *jwt.Builder { return b.Issuer("other") }), false},
		{"foreign audience", build(func(b *jwt.Builder) *jwt.Builder { return b.Audience([]string{"admin-ui"}) }), false},
		{"expired", build(func(b *jwt.Builder) *jwt.Builder { return b.Expiration(now.Add(-time.Minute)) }), false},
		{"not yet valid", build(func(b *jwt.Builder) *jwt.Builder { return b.NotBefore(now.Add(5 * time.Minute)) }), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := policy.check(tc.tok, now)
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestClaimsPolicyPrincipal(t *testing.T) {
	tok, err := jwt.NewBuilder().Subject(" u-7 ").Claim(claimName, "Meera").Claim(claimRole, "sales").Build()
	require.NoError(t, err)

	p, err := claimsPolicy{}.principal(tok)
	require.NoError(t, err)
	require.Equal(t, "u-7", p.UserID)
	require.Equal(t, "Meera", p.Name)
	require.Equal(t, "sales", p.Role)

	anon, err := jwt.NewBuilder().Claim(claimRole, "admin").Build()
	require.NoError(t, err)
	_, err = claimsPolicy{}.principal(anon)
	require.Error(t, err)
}

func TestHeaderAlgorithm(t *testing.T) {
	tok, err := jwt.NewBuilder().Subject("u-1").Build()
	require.NoError(t, err)
	key := []byte("k")

	hs256, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, key))
	require.NoError(t, err)
	alg, err := headerAlgorithm(string(hs256), jwa.HS256)
	require.NoError(t, err)
	require.Equal(t, jwa.HS256, alg)

	hs512, err := jwt.Sign(tok, jwt.WithKey(jwa.HS512, key))
	require.NoError(t, err)
	_, err = headerAlgorithm(string(hs512), jwa.HS256)
	require.Error(t, err)

	_, err = headerAlgorithm("not-a-token", jwa.HS256)
	require.Error(t, err)
}

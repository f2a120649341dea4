package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/quotedesk/internal/common"
)

const (
	claimName = "name"
	claimRole = "role"
)

// claimsPolicy holds what an access token must carry to be accepted.
type claimsPolicy struct {
	issuer    string
	audience  string
	skew      time.Duration
	algorithm jwa.SignatureAlgorithm
}

func (p claimsPolicy) check(tok jwt.Token, now time.Time) error {
	opts := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithAcceptableSkew(p.skew),
		jwt.WithRequiredClaim(jwt.SubjectKey),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	if p.audience != "" {
		opts = append(opts, jwt.WithAudience(p.audience))
	}
	return jwt.Validate(tok, opts...)
}

// principal maps validated claims onto the request principal.
func (p claimsPolicy) principal(tok jwt.Token) (common.Principal, error) {
	sub := strings.TrimSpace(tok.Subject())
	if sub == "" {
		return common.Principal{}, errors.New("auth: token missing subject")
	}
	return common.Principal{
		UserID: sub,
		Name:   stringClaim(tok, claimName),
		Role:   stringClaim(tok, claimRole),
	}, nil
}

// headerAlgorithm reads the single signing algorithm from the JWS headers.
// Unsigned tokens, mixed algorithms and algorithms other than want are refused.
func headerAlgorithm(token string, want jwa.SignatureAlgorithm) (jwa.SignatureAlgorithm, error) {
	msg, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	var alg jwa.SignatureAlgorithm
	for _, sig := range msg.Signatures() {
		h := sig.ProtectedHeaders()
		if h == nil || h.Algorithm() == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		switch {
		case h.Algorithm() == jwa.NoSignature:
			return "", errors.New("auth: unsigned token")
		case alg != "" && alg != h.Algorithm():
			return "", errors.New("auth: mixed token algorithms")
		}
		alg = h.Algorithm()
	}
	if alg == "" {
		return "", errors.New("auth: token contains no signatures")
	}
	if want != "" && alg != want {
		return "", fmt.Errorf("auth: unexpected token algorithm %s", alg)
	}
	return alg, nil
}

func stringClaim(tok jwt.Token, name string) string {
	v, ok := tok.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/quotedesk/internal/common"
)

const defaultAccessTTL = 8 * time.Hour

// Service verifies bearer tokens issued by the identity provider and turns
// them into principals. It can also mint tokens for local tooling and tests.
type Service struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
	policy    claimsPolicy
}

// Config configures the auth service.
type Config struct {
	Secret         string
	AccessTokenTTL time.Duration
	Issuer         string
	Audience       string
	ClockSkew      time.Duration
}

// NewService constructs a Service instance with sane defaults.
func NewService(cfg Config) (*Service, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "quotedesk"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "quotedesk-frontend"
	}
	clockSkew := cfg.ClockSkew
	if clockSkew < 0 {
		clockSkew = 0
	}

	return &Service{
		secret:    []byte(secret),
		accessTTL: accessTTL,
		now:       time.Now,
		policy:    claimsPolicy{issuer: issuer, audience: audience, skew: clockSkew, algorithm: jwa.HS256},
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ParseAccessToken validates an access token and returns its principal. The
// subject is the user id; the name and role travel as private claims.
func (s *Service) ParseAccessToken(token string) (common.Principal, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return common.Principal{}, unauthorized("missing token", nil)
	}
	alg, err := headerAlgorithm(trimmed, s.policy.algorithm)
	if err != nil {
		return common.Principal{}, unauthorized("invalid token", err)
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(alg, s.secret), jwt.WithValidate(false))
	if err != nil {
		return common.Principal{}, unauthorized("invalid token", err)
	}
	if err := s.policy.check(parsed, s.now()); err != nil {
		return common.Principal{}, unauthorized("invalid token", err)
	}
	p, err := s.policy.principal(parsed)
	if err != nil {
		return common.Principal{}, unauthorized("invalid token", err)
	}
	return p, nil
}

// SignAccessToken issues a token for p.
func (s *Service) SignAccessToken(p common.Principal) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)
	builder := jwt.NewBuilder().
		Subject(p.UserID).
		Issuer(s.policy.issuer).
		Audience([]string{s.policy.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.policy.skew)).
		Expiration(expiresAt)
	if p.Name != "" {
		builder = builder.Claim(claimName, p.Name)
	}
	if p.Role != "" {
		builder = builder.Claim(claimRole, p.Role)
	}
	token, err := builder.Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(s.policy.algorithm, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

func unauthorized(msg string, err error) *common.AppError {
	return common.NewAppError("UNAUTHORIZED", msg, http.StatusUnauthorized, err)
}

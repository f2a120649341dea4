package common

import (
	"context"
	"strings"
)

type ctxKey string

const (
	userIDKey    ctxKey = "auth/user-id"
	principalKey ctxKey = "auth/principal"
	sessionKey   ctxKey = "session/id"
)

// Principal identifies the authenticated author of a quotation session.
type Principal struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// DisplayName returns the name recorded as creator on quotations and audit entries.
func (p Principal) DisplayName() string {
	if n := strings.TrimSpace(p.Name); n != "" {
		return n
	}
	return p.UserID
}

// WithUserID stores the authenticated user identifier on the provided context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID extracts the authenticated user identifier from the context if present.
func UserID(ctx context.Context) (string, bool) {
	v := ctx.Value(userIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// WithPrincipal stores the authenticated principal, and its user id, on the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	ctx = WithUserID(ctx, p.UserID)
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom extracts the authenticated principal from the context if present.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// WithSessionID stores the quotation session identifier on the context.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey, id)
}

// SessionID extracts the quotation session identifier from the context.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey).(string)
	return id
}

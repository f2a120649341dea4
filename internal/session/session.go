// Package session keeps the per-user quotation workspaces. A session owns a
// cart and the principal that opened it; every cart operation runs under the
// session's lock.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/quotedesk/internal/cart"
	"github.com/noah-isme/quotedesk/internal/common"
)

// HeaderName selects the session on API requests.
const HeaderName = "X-Session-ID"

var (
	// ErrNotFound indicates the session id is unknown or expired.
	ErrNotFound = errors.New("session not found")
	// ErrNotOwner indicates the request principal did not open the session.
	ErrNotOwner = errors.New("session belongs to another user")
)

// Session is one open quotation workspace.
type Session struct {
	ID        string           `json:"id"`
	Principal common.Principal `json:"principal"`
	CreatedAt time.Time        `json:"createdAt"`

	mu       sync.Mutex
	cart     *cart.Cart
	lastSeen time.Time
}

// Do runs fn with exclusive access to the session cart.
func (s *Session) Do(fn func(p common.Principal, c *cart.Cart) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.Principal, s.cart)
}

// Registry tracks open sessions in memory.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

// NewRegistry constructs a Registry. Sessions idle for longer than ttl expire.
func NewRegistry(ttl time.Duration, logger zerolog.Logger) *Registry {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Registry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger.With().Str("component", "sessions").Logger(),
	}
}

// WithNow allows tests to override the time provider.
func (r *Registry) WithNow(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// Open creates a session with an empty cart for p.
func (r *Registry) Open(p common.Principal) *Session {
	now := r.now()
	s := &Session{
		ID:        uuid.NewString(),
		Principal: p,
		CreatedAt: now,
		cart:      cart.New(),
		lastSeen:  now,
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	r.logger.Info().Str("session_id", s.ID).Str("user_id", p.UserID).Msg("session opened")
	return s
}

// Get returns a live session and refreshes its idle timer.
func (r *Registry) Get(id string) (*Session, error) {
	id = strings.TrimSpace(id)
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if now.Sub(s.lastSeen) > r.ttl {
		delete(r.sessions, id)
		return nil, ErrNotFound
	}
	s.lastSeen = now
	return s, nil
}

// Close discards a session.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

// Len reports the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than the ttl and returns how many went.
func (r *Registry) Sweep() int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, s := range r.sessions {
		if now.Sub(s.lastSeen) > r.ttl {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps expired sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Info().Int("expired", n).Msg("idle sessions swept")
			}
		}
	}
}

// Resolve finds the session selected by the request and checks that the
// authenticated principal, when present, is its owner.
func (r *Registry) Resolve(req *http.Request) (*Session, error) {
	id := strings.TrimSpace(req.Header.Get(HeaderName))
	if id == "" {
		return nil, common.NewAppError("SESSION_REQUIRED", HeaderName+" header is required", http.StatusBadRequest, ErrNotFound)
	}
	s, err := r.Get(id)
	if err != nil {
		return nil, common.NewAppError("SESSION_NOT_FOUND", "session not found or expired", http.StatusNotFound, err)
	}
	if p, ok := common.PrincipalFrom(req.Context()); ok && p.UserID != s.Principal.UserID {
		return nil, common.Forbidden("session belongs to another user", ErrNotOwner)
	}
	return s, nil
}

// Do implements cart.Scope.
func (r *Registry) Do(req *http.Request, fn func(ctx context.Context, p common.Principal, c *cart.Cart) error) error {
	s, err := r.Resolve(req)
	if err != nil {
		return err
	}
	ctx := common.WithSessionID(req.Context(), s.ID)
	return s.Do(func(p common.Principal, c *cart.Cart) error {
		return fn(ctx, p, c)
	})
}

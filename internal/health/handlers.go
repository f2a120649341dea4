package health

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/quotedesk/internal/common"
	"github.com/noah-isme/quotedesk/internal/resilience"
)

// ErrDisabled is returned by optional dependencies that are not configured.
var ErrDisabled = errors.New("disabled")

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady toggles readiness. The server flips it off while draining.
func SetReady(v bool) { ready.Store(v) }

// Checker represents dependencies that can be probed for readiness.
type Checker interface {
	PingCatalog(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// Pinger answers liveness of the catalog store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Probe checks the catalog store, its circuit breaker and optionally Redis.
type Probe struct {
	Catalog Pinger
	Breaker *resilience.Breaker
	Redis   *redis.Client
}

// PingCatalog reports the store unhealthy while its breaker is open.
func (p Probe) PingCatalog(ctx context.Context, timeout time.Duration) error {
	if p.Breaker != nil && p.Breaker.State() == resilience.Open {
		return errors.New("circuit open")
	}
	if p.Catalog == nil {
		return errors.New("catalog not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Catalog.Ping(ctx)
}

// PingRedis returns ErrDisabled when no client is configured.
func (p Probe) PingRedis(ctx context.Context, timeout time.Duration) error {
	if p.Redis == nil {
		return ErrDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Redis.Ping(ctx).Err()
}

// Handler serves the liveness and readiness endpoints.
type Handler struct {
	Checker        Checker
	Breaker        *resilience.Breaker
	CatalogTimeout time.Duration
	RedisTimeout   time.Duration
}

// Report is the readiness answer. Checks maps each dependency to "ok",
// "disabled" or the probe error.
type Report struct {
	Status  string               `json:"status"`
	Checks  map[string]string    `json:"checks"`
	Breaker *resilience.Snapshot `json:"breaker,omitempty"`
}

// Live always answers 200 while the process serves HTTP.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready probes the catalog store and Redis concurrently. A disabled Redis
// does not fail readiness; a draining server always does.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Checker == nil {
		common.JSON(w, http.StatusServiceUnavailable, Report{Status: "unconfigured", Checks: map[string]string{}})
		return
	}
	if !ready.Load() {
		common.JSON(w, http.StatusServiceUnavailable, Report{Status: "draining", Checks: map[string]string{}})
		return
	}

	var catalogErr, redisErr error
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		catalogErr = h.Checker.PingCatalog(ctx, or(h.CatalogTimeout, 2*time.Second))
		return nil
	})
	g.Go(func() error {
		redisErr = h.Checker.PingRedis(ctx, or(h.RedisTimeout, 300*time.Millisecond))
		return nil
	})
	_ = g.Wait()

	rep := Report{Status: "ok", Checks: map[string]string{"catalog": describe(catalogErr), "redis": describe(redisErr)}}
	if h.Breaker != nil {
		snap := h.Breaker.Snapshot()
		rep.Breaker = &snap
	}
	status := http.StatusOK
	if catalogErr != nil || (redisErr != nil && !errors.Is(redisErr, ErrDisabled)) {
		rep.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	common.JSON(w, status, rep)
}

func describe(err error) string {
	if err == nil {
		return "ok"
	}
	return err.Error()
}

func or(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// Package app assembles the services and the HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/quotedesk/internal/audit"
	"github.com/noah-isme/quotedesk/internal/auth"
	"github.com/noah-isme/quotedesk/internal/cart"
	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/config"
	"github.com/noah-isme/quotedesk/internal/document"
	"github.com/noah-isme/quotedesk/internal/lock"
	"github.com/noah-isme/quotedesk/internal/obs"
	"github.com/noah-isme/quotedesk/internal/quotation"
	"github.com/noah-isme/quotedesk/internal/ratelimit"
	"github.com/noah-isme/quotedesk/internal/reconcile"
	"github.com/noah-isme/quotedesk/internal/resilience"
	"github.com/noah-isme/quotedesk/internal/session"
	"github.com/noah-isme/quotedesk/internal/tax"
)

// AuditQueue is the asynq queue audit entries are delivered through.
const AuditQueue = "audit"

// Options carries the observability switches read by the entrypoint.
type Options struct {
	MetricsEnabled bool
	TracingEnabled bool
	Metrics        *obs.HTTPMetrics
	PprofEnabled   bool
	PprofUser      string
	PprofPass      string
}

// Dependencies enumerates the services shared across handlers.
type Dependencies struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Options   Options
	Redis     *redis.Client
	Validator *validator.Validate
	Breaker   *resilience.Breaker

	Auth       *auth.Service
	Gateway    *catalog.Gateway
	Resolver   *tax.Resolver
	Sessions   *session.Registry
	Cart       *cart.Service
	Quotations *quotation.Service
	Renderer   *document.Renderer
	Audit      *audit.Service
	TaskClient *asynq.Client

	SessionLimiter ratelimit.Allower
	RenderLimiter  ratelimit.Allower
}

// New builds every service from cfg. Redis is optional; without it the
// submission guard, limiters and settings cache fall back to in-process
// implementations or are skipped.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	d := &Dependencies{
		Config:    cfg,
		Logger:    logger,
		Options:   opts,
		Validator: validator.New(validator.WithRequiredStructEnabled()),
	}

	if cfg.RedisURL != "" {
		rdb, err := NewRedis(ctx, cfg.RedisURL, opts.MetricsEnabled, logger)
		if err != nil {
			return nil, err
		}
		d.Redis = rdb
	}

	authSvc, err := auth.NewService(auth.Config{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise auth service: %w", err)
	}
	d.Auth = authSvc

	gw, breaker, err := NewGateway(cfg, d.Redis, logger)
	if err != nil {
		return nil, err
	}
	d.Gateway, d.Breaker = gw, breaker
	d.Resolver = tax.NewResolver(gw, logger)

	d.Sessions = session.NewRegistry(cfg.SessionTTL, logger)
	d.Cart = cart.NewService(cart.ServiceConfig{
		Items: gw,
		Rates: d.Resolver,
		Reconciler: reconcile.New(reconcile.Config{
			Items:      gw,
			Rates:      d.Resolver,
			Ledger:     gw,
			Authorizer: cfg,
			Logger:     logger,
		}),
		Logger: logger,
	})

	d.Audit = &audit.Service{Sink: audit.GatewaySink{Appender: gw}, Enabled: true, Logger: logger}
	if cfg.AuditAsync {
		redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse audit queue redis url: %w", err)
		}
		d.TaskClient = asynq.NewClient(redisOpt)
		d.Audit.Sink = audit.QueueSink{Client: d.TaskClient, Queue: AuditQueue}
	}

	var guard lock.Guard = lock.NewLocal()
	if d.Redis != nil {
		guard = lock.Locker{R: d.Redis}
	}
	d.Quotations = quotation.NewService(quotation.Config{
		Store:    gw,
		Guard:    guard,
		LockTTL:  cfg.SubmitLockTTL,
		Validate: d.Validator,
		Audit:    d.Audit,
		Logger:   logger,
	})

	var raster document.Rasterizer = document.CanvasRasterizer{}
	if cfg.RenderBackend == "chrome" {
		raster = document.ChromeRasterizer{ExecPath: cfg.ChromePath, Logger: logger}
	}
	d.Renderer = document.NewRenderer(document.Config{
		Rasterizer: raster,
		Settings:   gw,
		Overrides:  gw,
		Assets: document.AssetLoader{
			Client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Timeout: cfg.RenderAssetTimeout,
		},
		Scale:     cfg.RenderScale,
		PageItems: cfg.RenderPageThreshold,
		Currency:  cfg.CurrencySymbol,
		Logger:    logger,
	})

	d.SessionLimiter = ratelimit.Limiter{Client: d.Redis, Prefix: "ratelimit:sessions:", Window: time.Minute, Max: 20}
	store, err := ratelimit.NewStore(d.Redis, "ratelimit:render")
	if err != nil {
		return nil, fmt.Errorf("initialise render limiter store: %w", err)
	}
	quota, err := ratelimit.NewQuota(store, cfg.RenderRate)
	if err != nil {
		return nil, err
	}
	d.RenderLimiter = quota

	return d, nil
}

// NewGateway builds the catalog store client behind a circuit breaker.
// Settings are cached in Redis when a client is supplied.
func NewGateway(cfg *config.Config, rdb *redis.Client, logger zerolog.Logger) (*catalog.Gateway, *resilience.Breaker, error) {
	breaker := resilience.NewBreaker(cfg.CircuitMinRequests, cfg.CircuitFailureRatio, cfg.CircuitOpenFor).
		WithTarget("catalog").
		WithLogger(logger)
	var cache *catalog.Cache
	if rdb != nil {
		cache = catalog.NewCache(rdb, cfg.SettingsCacheTTL)
	}
	gw, err := catalog.NewGateway(catalog.GatewayConfig{
		BaseURL: cfg.CatalogBaseURL,
		Token:   cfg.CatalogToken,
		HTTP: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker:     breaker,
			BaseBackoff: cfg.RetryBase,
			MaxAttempts: cfg.RetryMaxAttempts,
			Jitter:      cfg.RetryJitterPercent,
			Timeout:     cfg.CatalogTimeout,
			Logger:      &logger,
		},
		Cache:  cache,
		Logger: logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("initialise catalog gateway: %w", err)
	}
	return gw, breaker, nil
}

// NewRedis connects an instrumented Redis client and checks it answers.
func NewRedis(ctx context.Context, url string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Close releases external connections.
func (d *Dependencies) Close() error {
	var errs []error
	if d.TaskClient != nil {
		errs = append(errs, d.TaskClient.Close())
	}
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	return errors.Join(errs...)
}

package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	CORSAllowedOrigins []string
	AccessCookie       string
	SecurityHeaders    bool
	HSTS               bool
	MaxBodyBytes       int64

	CatalogBaseURL     string
	CatalogToken       string
	CatalogTimeout     time.Duration
	CatalogEditorRoles []string
	SettingsCacheTTL   time.Duration

	SessionTTL           time.Duration
	SessionSweepInterval time.Duration
	SubmitLockTTL        time.Duration
	IdempotencyTTL       time.Duration
	CurrencySymbol       string
	ShutdownTimeout      time.Duration

	RenderBackend         string
	RenderScale           float64
	RenderAssetTimeout    time.Duration
	RenderPageThreshold   int
	RenderRate            string
	ChromePath            string
	AuditAsync            bool
	AuditQueueConcurrency int

	RetryBase           time.Duration
	RetryMaxAttempts    int
	RetryJitterPercent  float64
	CircuitMinRequests  int
	CircuitFailureRatio float64
	CircuitOpenFor      time.Duration

	Obs Obs
}

// Obs configures logging, metrics, tracing and the pprof endpoint.
type Obs struct {
	LogFormat        string
	LogLevel         string
	MetricsEnabled   bool
	MetricsNamespace string
	MetricsBuckets   string
	TracingEnabled   bool
	TracingExporter  string
	OTLPEndpoint     string
	SamplingRatio    float64
	PprofEnabled     bool
	PprofUser        string
	PprofPass        string
}

// Load reads the process environment, after merging an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(nil)
}

// LoadForTests loads like Load with overrides layered over the environment.
// An empty override value unsets the key. The process environment is not
// modified.
func LoadForTests(overrides map[string]string) (*Config, error) {
	return load(overrides)
}

// MustLoad panics when Load fails.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func load(overrides map[string]string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	for key, v := range overrides {
		if v == "" {
			k.Delete(key)
			continue
		}
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("override %s: %w", key, err)
		}
	}
	r := reader{k}

	cfg := &Config{
		AppEnv:             r.str("APP_ENV", "development"),
		Port:               r.str("PORT", "8080"),
		RedisURL:           r.str("REDIS_URL", ""),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          r.str("JWT_ISSUER", ""),
		JWTAudience:        r.str("JWT_AUDIENCE", ""),
		CORSAllowedOrigins: r.list("CORS_ALLOWED_ORIGINS", ""),
		AccessCookie:       r.str("AUTH_ACCESS_COOKIE", ""),
		SecurityHeaders:    r.flag("SECURITY_HEADERS", true),
		HSTS:               r.flag("SECURITY_HSTS", false),
		MaxBodyBytes:       int64(r.integer("MAX_BODY_BYTES", 1<<20)),

		CatalogBaseURL:     strings.TrimRight(r.str("CATALOG_API_BASE_URL", ""), "/"),
		CatalogToken:       r.str("CATALOG_API_TOKEN", ""),
		CatalogTimeout:     r.dur("CATALOG_API_TIMEOUT", 10*time.Second),
		CatalogEditorRoles: r.list("CATALOG_EDITOR_ROLES", "admin"),
		SettingsCacheTTL:   r.dur("SETTINGS_CACHE_TTL", 5*time.Minute),

		SessionTTL:           r.dur("SESSION_TTL", 8*time.Hour),
		SessionSweepInterval: r.dur("SESSION_SWEEP_INTERVAL", time.Minute),
		SubmitLockTTL:        r.dur("SUBMIT_LOCK_TTL", 30*time.Second),
		IdempotencyTTL:       r.dur("IDEMPOTENCY_TTL", 24*time.Hour),
		CurrencySymbol:       r.str("CURRENCY_SYMBOL", "Rs."),
		ShutdownTimeout:      r.dur("SHUTDOWN_TIMEOUT", 15*time.Second),

		RenderBackend:         strings.ToLower(r.str("RENDER_BACKEND", "canvas")),
		RenderScale:           r.float("RENDER_SCALE", 2),
		RenderAssetTimeout:    r.dur("RENDER_ASSET_TIMEOUT", 2*time.Second),
		RenderPageThreshold:   r.integer("RENDER_PAGE_ITEM_THRESHOLD", 7),
		RenderRate:            r.str("RENDER_RATE", "30-M"),
		ChromePath:            r.str("CHROME_PATH", ""),
		AuditAsync:            r.flag("AUDIT_ASYNC", false),
		AuditQueueConcurrency: r.integer("AUDIT_QUEUE_CONCURRENCY", 5),

		RetryBase:           r.dur("RETRY_BASE", 200*time.Millisecond),
		RetryMaxAttempts:    r.integer("RETRY_MAX_ATTEMPTS", 3),
		RetryJitterPercent:  r.float("RETRY_JITTER_PERCENT", 0.2),
		CircuitMinRequests:  r.integer("CIRCUIT_MIN_REQUESTS", 10),
		CircuitFailureRatio: r.float("CIRCUIT_FAILURE_RATIO", 0.5),
		CircuitOpenFor:      r.dur("CIRCUIT_OPEN_FOR", 30*time.Second),

		Obs: Obs{
			LogFormat:        r.str("OBS_LOG_FORMAT", "json"),
			LogLevel:         r.str("OBS_LOG_LEVEL", "info"),
			MetricsEnabled:   r.flag("OBS_ENABLE_PROMETHEUS", true),
			MetricsNamespace: r.str("OBS_METRICS_NAMESPACE", "quotedesk"),
			MetricsBuckets:   r.str("OBS_METRICS_BUCKETS_MS", ""),
			TracingEnabled:   r.flag("OBS_ENABLE_TRACING", true),
			TracingExporter:  r.str("OBS_TRACING_EXPORTER", "otlp"),
			OTLPEndpoint:     r.str("OBS_OTLP_ENDPOINT", ""),
			SamplingRatio:    r.float("OBS_TRACING_SAMPLING_RATIO", 1),
			PprofEnabled:     r.flag("OBS_ENABLE_PPROF", false),
			PprofUser:        r.str("SECURE_PPROF_BASIC_AUTH_USER", ""),
			PprofPass:        k.String("SECURE_PPROF_BASIC_AUTH_PASS"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.CatalogBaseURL == "" {
		errs = append(errs, errors.New("CATALOG_API_BASE_URL is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.RenderBackend != "canvas" && c.RenderBackend != "chrome" {
		errs = append(errs, fmt.Errorf("RENDER_BACKEND must be canvas or chrome, got %q", c.RenderBackend))
	}
	if c.AuditAsync && c.RedisURL == "" {
		errs = append(errs, errors.New("AUDIT_ASYNC requires REDIS_URL"))
	}
	if c.RenderScale <= 0 {
		c.RenderScale = 2
	}
	if c.RenderPageThreshold <= 0 {
		c.RenderPageThreshold = 7
	}
	return errors.Join(errs...)
}

// HTTPAddr returns the listen address for Port.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	switch {
	case port == "":
		return ":8080"
	case strings.HasPrefix(port, ":"):
		return port
	default:
		return ":" + port
	}
}

// IsEditorRole reports whether role may edit catalog prices and GST rates.
func (c *Config) IsEditorRole(role string) bool {
	role = strings.TrimSpace(role)
	for _, r := range c.CatalogEditorRoles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// reader applies defaults to trimmed koanf values. Unparseable values fall
// back to the default.
type reader struct{ k *koanf.Koanf }

func (r reader) str(key, def string) string {
	if v := strings.TrimSpace(r.k.String(key)); v != "" {
		return v
	}
	return def
}

func (r reader) list(key, def string) []string {
	var out []string
	for _, part := range strings.Split(r.str(key, def), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (r reader) dur(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(r.str(key, "")); err == nil {
		return d
	}
	return def
}

func (r reader) integer(key string, def int) int {
	if n, err := strconv.Atoi(r.str(key, "")); err == nil {
		return n
	}
	return def
}

func (r reader) float(key string, def float64) float64 {
	if f, err := strconv.ParseFloat(r.str(key, ""), 64); err == nil {
		return f
	}
	return def
}

func (r reader) flag(key string, def bool) bool {
	switch strings.ToLower(r.str(key, "")) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	}
	return def
}

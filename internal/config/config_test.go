package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quotedesk/internal/config"
)

func baseEnv() map[string]string {
	return map[string]string{
		"CATALOG_API_BASE_URL":       "https://store.example.test/api/",
		"JWT_SECRET":                 "secret",
		"RENDER_BACKEND":             "",
		"RENDER_SCALE":               "",
		"RENDER_PAGE_ITEM_THRESHOLD": "",
		"CATALOG_EDITOR_ROLES":       "",
		"AUDIT_ASYNC":                "",
		"REDIS_URL":                  "",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(baseEnv())
	require.NoError(t, err)

	require.Equal(t, "https://store.example.test/api", cfg.CatalogBaseURL)
	require.Equal(t, "canvas", cfg.RenderBackend)
	require.Equal(t, 2.0, cfg.RenderScale)
	require.Equal(t, 7, cfg.RenderPageThreshold)
	require.Equal(t, 2*time.Second, cfg.RenderAssetTimeout)
	require.True(t, cfg.IsEditorRole("Admin"))
	require.False(t, cfg.IsEditorRole("sales"))
}

func TestLoadRequiresCatalogURL(t *testing.T) {
	env := baseEnv()
	env["CATALOG_API_BASE_URL"] = ""
	_, err := config.LoadForTests(env)
	require.Error(t, err)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	env := baseEnv()
	env["RENDER_BACKEND"] = "wkhtml"
	_, err := config.LoadForTests(env)
	require.Error(t, err)
}

func TestAsyncAuditNeedsRedis(t *testing.T) {
	env := baseEnv()
	env["AUDIT_ASYNC"] = "true"
	_, err := config.LoadForTests(env)
	require.Error(t, err)

	env["REDIS_URL"] = "redis://localhost:6379/0"
	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	require.True(t, cfg.AuditAsync)
}

func TestEditorRolesFromEnv(t *testing.T) {
	env := baseEnv()
	env["CATALOG_EDITOR_ROLES"] = "owner, manager"
	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	require.True(t, cfg.IsEditorRole("manager"))
	require.False(t, cfg.IsEditorRole("admin"))
}

func TestHTTPAddr(t *testing.T) {
	cfg := &config.Config{Port: "9000"}
	require.Equal(t, ":9000", cfg.HTTPAddr())
	cfg.Port = ":7000"
	require.Equal(t, ":7000", cfg.HTTPAddr())
}

func TestSecurityDefaults(t *testing.T) {
	env := baseEnv()
	env["SECURITY_HEADERS"] = ""
	env["MAX_BODY_BYTES"] = ""
	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	require.True(t, cfg.SecurityHeaders)
	require.False(t, cfg.HSTS)
	require.Equal(t, int64(1<<20), cfg.MaxBodyBytes)

	env["SECURITY_HEADERS"] = "false"
	env["MAX_BODY_BYTES"] = "2048"
	cfg, err = config.LoadForTests(env)
	require.NoError(t, err)
	require.False(t, cfg.SecurityHeaders)
	require.Equal(t, int64(2048), cfg.MaxBodyBytes)
}

func TestObservabilityDefaults(t *testing.T) {
	env := baseEnv()
	env["OBS_LOG_FORMAT"] = "console"
	env["OBS_ENABLE_TRACING"] = "off"
	env["SESSION_SWEEP_INTERVAL"] = "not-a-duration"
	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, "console", cfg.Obs.LogFormat)
	require.False(t, cfg.Obs.TracingEnabled)
	require.True(t, cfg.Obs.MetricsEnabled)
	require.Equal(t, "quotedesk", cfg.Obs.MetricsNamespace)
	require.Equal(t, time.Minute, cfg.SessionSweepInterval)
	require.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
}

func TestLoadReportsEveryProblem(t *testing.T) {
	env := baseEnv()
	env["CATALOG_API_BASE_URL"] = ""
	env["JWT_SECRET"] = ""
	_, err := config.LoadForTests(env)
	require.ErrorContains(t, err, "CATALOG_API_BASE_URL")
	require.ErrorContains(t, err, "JWT_SECRET")
}

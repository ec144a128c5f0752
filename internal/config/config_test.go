package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, "env", cfg.Storage.Driver)
	require.Equal(t, "sigil", cfg.Storage.Redis.Prefix)
	require.Equal(t, 300*time.Second, cfg.Verification.Window)
	require.Equal(t, 1024, cfg.Verification.Cache.Capacity)
	require.Equal(t, 10*time.Minute, cfg.Verification.Cache.TTL)
	require.Equal(t, 30*24*time.Hour, cfg.Lifecycle.GracePeriod)
	require.Equal(t, 7*24*time.Hour, cfg.Lifecycle.WarnHorizon)
	require.Equal(t, 5*time.Minute, cfg.Distribution.Freshness)
	require.Equal(t, 90, cfg.Distribution.MaxAgeDays)
	require.NoError(t, cfg.Validate())
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sigil.yaml")
	yaml := `
app:
  app_env: prod
server:
  addr: ":9000"
storage:
  driver: redis
  layered: true
  cache_ttl: 45s
  redis:
    addr: "localhost:6379"
    db: 3
verification:
  window: 120s
  skip_paths: ["/health", "/metrics"]
perf:
  default_threshold: 50ms
  thresholds:
    verify_request: 20ms
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "prod", cfg.App.Env)
	require.Equal(t, ":9000", cfg.Server.Addr)
	require.Equal(t, "redis", cfg.Storage.Driver)
	require.True(t, cfg.Storage.Layered)
	require.Equal(t, 45*time.Second, cfg.Storage.CacheTTL)
	require.Equal(t, 3, cfg.Storage.Redis.DB)
	require.Equal(t, 120*time.Second, cfg.Verification.Window)
	require.Equal(t, []string{"/health", "/metrics"}, cfg.Verification.SkipPaths)
	require.Equal(t, 50*time.Millisecond, cfg.Perf.DefaultThreshold)
	require.Equal(t, 20*time.Millisecond, cfg.Perf.Thresholds["verify_request"])
	// el prefix vuelve al default aunque el YAML configure redis
	require.Equal(t, "sigil", cfg.Storage.Redis.Prefix)
	require.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SIGIL_ADDR", ":7777")
	t.Setenv("SIGIL_STORAGE_DRIVER", "file")
	t.Setenv("SIGIL_KEYS_FILE", "/tmp/keys.json")
	t.Setenv("SIGIL_TIME_WINDOW", "90s")
	t.Setenv("SIGIL_SKIP_PATHS", "/health, /docs ,")
	t.Setenv("SIGIL_AUDIT_ENABLED", "true")
	t.Setenv("SIGIL_ROTATION_GRACE", "168h")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":7777", cfg.Server.Addr)
	require.Equal(t, "file", cfg.Storage.Driver)
	require.Equal(t, "/tmp/keys.json", cfg.Storage.File.Path)
	require.Equal(t, 90*time.Second, cfg.Verification.Window)
	require.Equal(t, []string{"/health", "/docs"}, cfg.Verification.SkipPaths)
	require.True(t, cfg.Distribution.AuditEnabled)
	require.Equal(t, 168*time.Hour, cfg.Lifecycle.GracePeriod)
	require.NoError(t, cfg.Validate())
}

func TestEnvValuesIgnoredWhenMalformed(t *testing.T) {
	t.Setenv("SIGIL_TIME_WINDOW", "muchos segundos")
	t.Setenv("SIGIL_REDIS_DB", "tres")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 300*time.Second, cfg.Verification.Window)
	require.Equal(t, 0, cfg.Storage.Redis.DB)
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"driver desconocido", func(c *Config) { c.Storage.Driver = "etcd" }},
		{"redis sin addr", func(c *Config) { c.Storage.Driver = "redis" }},
		{"postgres sin dsn", func(c *Config) { c.Storage.Driver = "postgres" }},
		{"file sin path", func(c *Config) { c.Storage.Driver = "file" }},
		{"window no positiva", func(c *Config) { c.Verification.Window = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/no/existe/sigil.yaml")
	require.Error(t, err)
}

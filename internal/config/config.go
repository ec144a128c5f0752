// Package config carga la configuración del servicio desde YAML con
// overrides por variables de entorno.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Storage struct {
		// env | memory | redis | postgres | file
		Driver string `yaml:"driver"`
		// Layered pone un tier memory delante del backend autoritativo.
		Layered bool `yaml:"layered"`
		// CacheTTL > 0 memoiza lecturas del backend durante ese TTL.
		CacheTTL time.Duration `yaml:"cache_ttl"`
		Redis    struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Postgres struct {
			DSN string `yaml:"dsn"`
		} `yaml:"postgres"`
		File struct {
			Path string `yaml:"path"`
		} `yaml:"file"`
	} `yaml:"storage"`

	Verification struct {
		// Window: tolerancia global de timestamp (e.g. "300s").
		Window    time.Duration `yaml:"window"`
		SkipPaths []string      `yaml:"skip_paths"`
		Cache     struct {
			Capacity int           `yaml:"capacity"`
			TTL      time.Duration `yaml:"ttl"`
		} `yaml:"cache"`
	} `yaml:"verification"`

	Lifecycle struct {
		GracePeriod time.Duration `yaml:"grace_period"`
		WarnHorizon time.Duration `yaml:"warn_horizon"`
	} `yaml:"lifecycle"`

	Distribution struct {
		// EncryptionKey: base64(32 bytes), hex o passphrase.
		EncryptionKey string        `yaml:"encryption_key"`
		Freshness     time.Duration `yaml:"freshness"`
		AuditEnabled  bool          `yaml:"audit_enabled"`
		MaxAgeDays    int           `yaml:"max_age_days"`
	} `yaml:"distribution"`

	Perf struct {
		DefaultThreshold time.Duration            `yaml:"default_threshold"`
		Thresholds       map[string]time.Duration `yaml:"thresholds"`
	} `yaml:"perf"`
}

// Load lee el YAML (path vacío => sólo defaults + env) y aplica defaults
// y overrides de entorno.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "env"
	}
	if c.Storage.Redis.Prefix == "" {
		c.Storage.Redis.Prefix = "sigil"
	}
	if c.Verification.Window == 0 {
		c.Verification.Window = 300 * time.Second
	}
	if c.Verification.Cache.Capacity == 0 {
		c.Verification.Cache.Capacity = 1024
	}
	if c.Verification.Cache.TTL == 0 {
		c.Verification.Cache.TTL = 10 * time.Minute
	}
	if c.Lifecycle.GracePeriod == 0 {
		c.Lifecycle.GracePeriod = 30 * 24 * time.Hour
	}
	if c.Lifecycle.WarnHorizon == 0 {
		c.Lifecycle.WarnHorizon = 7 * 24 * time.Hour
	}
	if c.Distribution.Freshness == 0 {
		c.Distribution.Freshness = 5 * time.Minute
	}
	if c.Distribution.MaxAgeDays == 0 {
		c.Distribution.MaxAgeDays = 90
	}

	c.applyEnvOverrides()
	return &c, nil
}

func getEnvStr(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	return v, ok && v != ""
}

func getEnvInt(key string) (int, bool) {
	if v, ok := getEnvStr(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if v, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if v, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d, true
		}
	}
	return 0, false
}

func getEnvCSV(key string) ([]string, bool) {
	v, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, len(out) > 0
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("SIGIL_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("SIGIL_STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvBool("SIGIL_STORAGE_LAYERED"); ok {
		c.Storage.Layered = v
	}
	if v, ok := getEnvDur("SIGIL_STORAGE_CACHE_TTL"); ok {
		c.Storage.CacheTTL = v
	}
	if v, ok := getEnvStr("SIGIL_REDIS_ADDR"); ok {
		c.Storage.Redis.Addr = v
	}
	if v, ok := getEnvStr("SIGIL_REDIS_PASSWORD"); ok {
		c.Storage.Redis.Password = v
	}
	if v, ok := getEnvInt("SIGIL_REDIS_DB"); ok {
		c.Storage.Redis.DB = v
	}
	if v, ok := getEnvStr("SIGIL_POSTGRES_DSN"); ok {
		c.Storage.Postgres.DSN = v
	}
	if v, ok := getEnvStr("SIGIL_KEYS_FILE"); ok {
		c.Storage.File.Path = v
	}
	if v, ok := getEnvDur("SIGIL_TIME_WINDOW"); ok {
		c.Verification.Window = v
	}
	if v, ok := getEnvCSV("SIGIL_SKIP_PATHS"); ok {
		c.Verification.SkipPaths = v
	}
	if v, ok := getEnvStr("SIGIL_ENCRYPTION_KEY"); ok {
		c.Distribution.EncryptionKey = v
	}
	if v, ok := getEnvBool("SIGIL_AUDIT_ENABLED"); ok {
		c.Distribution.AuditEnabled = v
	}
	if v, ok := getEnvDur("SIGIL_ROTATION_GRACE"); ok {
		c.Lifecycle.GracePeriod = v
	}
}

// Validate chequea combinaciones imposibles antes de arrancar.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "env", "memory", "redis", "postgres", "file":
	default:
		return fmt.Errorf("storage.driver desconocido: %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "redis" && c.Storage.Redis.Addr == "" {
		return fmt.Errorf("storage.redis.addr es requerido con driver redis")
	}
	if c.Storage.Driver == "postgres" && c.Storage.Postgres.DSN == "" {
		return fmt.Errorf("storage.postgres.dsn es requerido con driver postgres")
	}
	if c.Storage.Driver == "file" && c.Storage.File.Path == "" {
		return fmt.Errorf("storage.file.path es requerido con driver file")
	}
	if c.Verification.Window <= 0 {
		return fmt.Errorf("verification.window debe ser positiva")
	}
	return nil
}

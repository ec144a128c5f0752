// Package store selecciona y compone backends de almacenamiento de apps.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dropDatabas3/sigil/internal/store/core"
	"github.com/dropDatabas3/sigil/internal/store/envstore"
	"github.com/dropDatabas3/sigil/internal/store/filestore"
	"github.com/dropDatabas3/sigil/internal/store/memstore"
	"github.com/dropDatabas3/sigil/internal/store/pgstore"
	"github.com/dropDatabas3/sigil/internal/store/redisstore"
)

// Config es la variante etiquetada que consume la factory.
type Config struct {
	Driver string `yaml:"driver"` // env | memory | redis | postgres | file

	Redis struct {
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

	// Layered antepone un memstore cacheado al backend autoritativo.
	Layered bool `yaml:"layered"`

	// CacheTTL > 0 envuelve el backend con un memo de lecturas (Cached).
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

func (c Config) cacheKey() string {
	return fmt.Sprintf("%s|%s|%d|%s|%s|%s|%v|%s",
		c.Driver, c.Redis.Addr, c.Redis.DB, c.Redis.Prefix, c.Postgres.DSN, c.File.Path, c.Layered, c.CacheTTL)
}

var (
	factoryMu sync.Mutex
	instances = map[string]core.Store{}
)

// Open retorna el backend que pide la config. Las instancias se cachean por
// configuración: dos Open con la misma config comparten backend.
func Open(ctx context.Context, cfg Config) (core.Store, error) {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	key := cfg.cacheKey()
	if st, ok := instances[key]; ok {
		return st, nil
	}

	st, err := build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.CacheTTL > 0 {
		st = NewCached(st, cfg.CacheTTL)
	}
	if cfg.Layered {
		st = NewLayered(memstore.New(), st)
	}
	instances[key] = st
	return st, nil
}

func build(ctx context.Context, cfg Config) (core.Store, error) {
	switch cfg.Driver {
	case "env":
		return envstore.FromEnviron(), nil
	case "memory", "":
		return memstore.New(), nil
	case "redis":
		return redisstore.New(redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	case "postgres":
		return pgstore.New(ctx, cfg.Postgres.DSN)
	case "file":
		return filestore.New(cfg.File.Path)
	default:
		return nil, fmt.Errorf("%w: driver de store desconocido %q", core.ErrInvalid, cfg.Driver)
	}
}

// ResetForTests descarta las instancias cacheadas. Usar sólo en tests.
func ResetForTests() {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	instances = map[string]core.Store{}
}

// Package redisstore persiste AppConfigs en Redis.
// Cada app se serializa como JSON bajo una key namespaced y se mantiene un
// índice secundario (SET) de app ids para ListAppIDs.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/sigil/internal/store/core"
)

const defaultPrefix = "sigil"

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type Store struct {
	client *redis.Client
	prefix string
	retry  core.RetryConfig
}

var _ core.Store = (*Store)(nil)

func New(cfg Config) (*Store, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verificar conexión
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redisstore: ping failed: %w", err)
	}

	return &Store{client: rdb, prefix: cfg.Prefix, retry: core.DefaultRetry()}, nil
}

func (s *Store) appKey(appID string) string { return s.prefix + ":app:" + appID }
func (s *Store) indexKey() string           { return s.prefix + ":apps" }

func (s *Store) GetAppConfig(ctx context.Context, appID string) (*core.AppConfig, error) {
	var out *core.AppConfig
	err := core.WithRetry(ctx, s.retry, func() error {
		b, err := s.client.Get(ctx, s.appKey(appID)).Bytes()
		if err == redis.Nil {
			return fmt.Errorf("app %q: %w", appID, core.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("redisstore get: %w", err)
		}
		var app core.AppConfig
		if err := json.Unmarshal(b, &app); err != nil {
			return fmt.Errorf("%w: redisstore unmarshal app %q: %v", core.ErrInvalid, appID, err)
		}
		out = &app
		return nil
	})
	return out, err
}

func (s *Store) SaveAppConfig(ctx context.Context, app *core.AppConfig) error {
	if app == nil {
		return fmt.Errorf("%w: app nil", core.ErrInvalid)
	}
	if err := app.Validate(); err != nil {
		return err
	}
	cp := app.Clone()
	cp.UpdatedAt = time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = cp.UpdatedAt
	}
	// Las privadas jamás se persisten del lado del server.
	for i := range cp.Keys {
		cp.Keys[i].PrivateKey = ""
	}
	b, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("redisstore marshal: %w", err)
	}
	return core.WithRetry(ctx, s.retry, func() error {
		pipe := s.client.TxPipeline()
		pipe.Set(ctx, s.appKey(cp.AppID), b, 0)
		pipe.SAdd(ctx, s.indexKey(), cp.AppID)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redisstore save: %w", err)
		}
		return nil
	})
}

func (s *Store) DeleteAppConfig(ctx context.Context, appID string) error {
	return core.WithRetry(ctx, s.retry, func() error {
		n, err := s.client.Del(ctx, s.appKey(appID)).Result()
		if err != nil {
			return fmt.Errorf("redisstore del: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("app %q: %w", appID, core.ErrNotFound)
		}
		if err := s.client.SRem(ctx, s.indexKey(), appID).Err(); err != nil {
			return fmt.Errorf("redisstore srem: %w", err)
		}
		return nil
	})
}

func (s *Store) ListAppIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := core.WithRetry(ctx, s.retry, func() error {
		v, err := s.client.SMembers(ctx, s.indexKey()).Result()
		if err != nil {
			return fmt.Errorf("redisstore smembers: %w", err)
		}
		ids = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) GetAppConfigs(ctx context.Context, appIDs []string) (map[string]*core.AppConfig, error) {
	if len(appIDs) == 0 {
		return map[string]*core.AppConfig{}, nil
	}
	keys := make([]string, len(appIDs))
	for i, id := range appIDs {
		keys[i] = s.appKey(id)
	}
	out := make(map[string]*core.AppConfig, len(appIDs))
	err := core.WithRetry(ctx, s.retry, func() error {
		vals, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return fmt.Errorf("redisstore mget: %w", err)
		}
		for i, v := range vals {
			raw, ok := v.(string)
			if !ok || raw == "" {
				continue
			}
			var app core.AppConfig
			if err := json.Unmarshal([]byte(raw), &app); err != nil {
				continue // entrada corrupta: no tumba el batch
			}
			out[appIDs[i]] = &app
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) AppExists(ctx context.Context, appID string) (bool, error) {
	var exists bool
	err := core.WithRetry(ctx, s.retry, func() error {
		n, err := s.client.Exists(ctx, s.appKey(appID)).Result()
		if err != nil {
			return fmt.Errorf("redisstore exists: %w", err)
		}
		exists = n > 0
		return nil
	})
	return exists, err
}

// ScanExpiredKeys lista, por app, los keyIds cuyo ExpiresAt ya pasó.
// No remueve registros de app (eso nunca pasa acá): el resultado lo usa el
// lifecycle manager para decidir qué purgar.
func (s *Store) ScanExpiredKeys(ctx context.Context, now time.Time) (map[string][]string, error) {
	ids, err := s.ListAppIDs(ctx)
	if err != nil {
		return nil, err
	}
	apps, err := s.GetAppConfigs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for id, app := range apps {
		for _, k := range app.Keys {
			if k.Expired(now) {
				out[id] = append(out[id], k.KeyID)
			}
		}
	}
	return out, nil
}

func (s *Store) Close() error { return s.client.Close() }

// Package pgstore persiste AppConfigs en Postgres (una fila por app, config
// como JSONB). Backend durable alternativo al de Redis.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/sigil/internal/store/core"
)

type Store struct {
	pool  *pgxpool.Pool
	retry core.RetryConfig
}

var _ core.Store = (*Store)(nil)

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	return &Store{pool: pool, retry: core.DefaultRetry()}, nil
}

// Migrate crea el esquema si no existe. Idempotente.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS app_configs (
			app_id     TEXT PRIMARY KEY,
			config     JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("pgstore migrate: %w", err)
	}
	return nil
}

func (s *Store) GetAppConfig(ctx context.Context, appID string) (*core.AppConfig, error) {
	var out *core.AppConfig
	err := core.WithRetry(ctx, s.retry, func() error {
		var raw []byte
		err := s.pool.QueryRow(ctx,
			`SELECT config FROM app_configs WHERE app_id = $1`, appID).Scan(&raw)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("app %q: %w", appID, core.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("pgstore get: %w", err)
		}
		var app core.AppConfig
		if err := json.Unmarshal(raw, &app); err != nil {
			return fmt.Errorf("%w: pgstore unmarshal app %q: %v", core.ErrInvalid, appID, err)
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
	for i := range cp.Keys {
		cp.Keys[i].PrivateKey = ""
	}
	raw, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("pgstore marshal: %w", err)
	}
	return core.WithRetry(ctx, s.retry, func() error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO app_configs (app_id, config, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (app_id) DO UPDATE SET config = $2, updated_at = now()`,
			cp.AppID, raw)
		if err != nil {
			return fmt.Errorf("pgstore save: %w", err)
		}
		return nil
	})
}

func (s *Store) DeleteAppConfig(ctx context.Context, appID string) error {
	return core.WithRetry(ctx, s.retry, func() error {
		tag, err := s.pool.Exec(ctx, `DELETE FROM app_configs WHERE app_id = $1`, appID)
		if err != nil {
			return fmt.Errorf("pgstore delete: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("app %q: %w", appID, core.ErrNotFound)
		}
		return nil
	})
}

func (s *Store) ListAppIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := core.WithRetry(ctx, s.retry, func() error {
		rows, err := s.pool.Query(ctx, `SELECT app_id FROM app_configs ORDER BY app_id`)
		if err != nil {
			return fmt.Errorf("pgstore list: %w", err)
		}
		defer rows.Close()
		ids = ids[:0]
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("pgstore scan: %w", err)
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) GetAppConfigs(ctx context.Context, appIDs []string) (map[string]*core.AppConfig, error) {
	out := make(map[string]*core.AppConfig, len(appIDs))
	if len(appIDs) == 0 {
		return out, nil
	}
	err := core.WithRetry(ctx, s.retry, func() error {
		rows, err := s.pool.Query(ctx,
			`SELECT app_id, config FROM app_configs WHERE app_id = ANY($1)`, appIDs)
		if err != nil {
			return fmt.Errorf("pgstore batch: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			var raw []byte
			if err := rows.Scan(&id, &raw); err != nil {
				return fmt.Errorf("pgstore scan: %w", err)
			}
			var app core.AppConfig
			if err := json.Unmarshal(raw, &app); err != nil {
				continue
			}
			out[id] = &app
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) AppExists(ctx context.Context, appID string) (bool, error) {
	var exists bool
	err := core.WithRetry(ctx, s.retry, func() error {
		err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM app_configs WHERE app_id = $1)`, appID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("pgstore exists: %w", err)
		}
		return nil
	})
	return exists, err
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Package memstore es el backend autoritativo en memoria.
// Hace deep-copy defensivo en save/read: los callers no pueden mutar estado
// interno a través de las referencias retornadas.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dropDatabas3/sigil/internal/store/core"
)

type Store struct {
	mu    sync.RWMutex
	apps  map[string]*core.AppConfig
	retry core.RetryConfig
}

var _ core.Store = (*Store)(nil)

func New() *Store {
	return &Store{apps: make(map[string]*core.AppConfig), retry: core.DefaultRetry()}
}

func (s *Store) GetAppConfig(ctx context.Context, appID string) (*core.AppConfig, error) {
	var out *core.AppConfig
	err := core.WithRetry(ctx, s.retry, func() error {
		s.mu.RLock()
		defer s.mu.RUnlock()
		app, ok := s.apps[appID]
		if !ok {
			return fmt.Errorf("app %q: %w", appID, core.ErrNotFound)
		}
		out = app.Clone()
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
	return core.WithRetry(ctx, s.retry, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		cp := app.Clone()
		cp.UpdatedAt = time.Now().UTC()
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = cp.UpdatedAt
		}
		s.apps[cp.AppID] = cp
		return nil
	})
}

func (s *Store) DeleteAppConfig(ctx context.Context, appID string) error {
	return core.WithRetry(ctx, s.retry, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.apps[appID]; !ok {
			return fmt.Errorf("app %q: %w", appID, core.ErrNotFound)
		}
		delete(s.apps, appID)
		return nil
	})
}

func (s *Store) ListAppIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.apps))
	for id := range s.apps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) GetAppConfigs(ctx context.Context, appIDs []string) (map[string]*core.AppConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*core.AppConfig, len(appIDs))
	for _, id := range appIDs {
		if app, ok := s.apps[id]; ok {
			out[id] = app.Clone()
		}
	}
	return out, nil
}

func (s *Store) AppExists(ctx context.Context, appID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.apps[appID]
	return ok, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps = make(map[string]*core.AppConfig)
	return nil
}

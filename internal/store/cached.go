package store

import (
	"context"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/sigil/internal/store/core"
)

// Cached memoiza lecturas de AppConfig con TTL corto delante de cualquier
// backend. A diferencia de Layered no es un Store completo de tier: es un
// decorador de lecturas que serializa el config (aislando mutaciones) y se
// invalida en cada escritura.
type Cached struct {
	inner core.Store
	c     *gocache.Cache
	ttl   time.Duration
}

var _ core.Store = (*Cached)(nil)

func NewCached(inner core.Store, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cached{inner: inner, c: gocache.New(ttl, time.Minute), ttl: ttl}
}

func (s *Cached) GetAppConfig(ctx context.Context, appID string) (*core.AppConfig, error) {
	if v, ok := s.c.Get(appID); ok {
		var app core.AppConfig
		if err := json.Unmarshal(v.([]byte), &app); err == nil {
			return &app, nil
		}
	}
	app, err := s.inner.GetAppConfig(ctx, appID)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(app); err == nil {
		s.c.Set(appID, b, s.ttl)
	}
	return app, nil
}

func (s *Cached) SaveAppConfig(ctx context.Context, app *core.AppConfig) error {
	if err := s.inner.SaveAppConfig(ctx, app); err != nil {
		return err
	}
	s.c.Delete(app.AppID)
	return nil
}

func (s *Cached) DeleteAppConfig(ctx context.Context, appID string) error {
	err := s.inner.DeleteAppConfig(ctx, appID)
	s.c.Delete(appID)
	return err
}

func (s *Cached) ListAppIDs(ctx context.Context) ([]string, error) {
	return s.inner.ListAppIDs(ctx)
}

func (s *Cached) GetAppConfigs(ctx context.Context, appIDs []string) (map[string]*core.AppConfig, error) {
	return s.inner.GetAppConfigs(ctx, appIDs)
}

func (s *Cached) AppExists(ctx context.Context, appID string) (bool, error) {
	return s.inner.AppExists(ctx, appID)
}

// Invalidate borra una entrada del memo (p.ej. tras una rotación hecha por
// otro componente sobre el mismo backend).
func (s *Cached) Invalidate(appID string) { s.c.Delete(appID) }

func (s *Cached) Close() error {
	s.c.Flush()
	return s.inner.Close()
}

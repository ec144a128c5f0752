package store

import (
	"context"
	"errors"

	"github.com/dropDatabas3/sigil/internal/store/core"
)

// Layered compone un tier rápido (p.ej. memstore) delante de un backend
// autoritativo más lento. Lecturas: fast primero, miss va al autoritativo y
// puebla el fast. Escrituras: write-through al autoritativo e invalidación
// del fast (no se confía en el write al tier rápido como fuente de verdad).
type Layered struct {
	fast core.Store
	auth core.Store
}

var _ core.Store = (*Layered)(nil)

func NewLayered(fast, authoritative core.Store) *Layered {
	return &Layered{fast: fast, auth: authoritative}
}

func (l *Layered) GetAppConfig(ctx context.Context, appID string) (*core.AppConfig, error) {
	if app, err := l.fast.GetAppConfig(ctx, appID); err == nil {
		return app, nil
	}
	app, err := l.auth.GetAppConfig(ctx, appID)
	if err != nil {
		return nil, err
	}
	_ = l.fast.SaveAppConfig(ctx, app) // poblar el tier es best-effort
	return app, nil
}

func (l *Layered) SaveAppConfig(ctx context.Context, app *core.AppConfig) error {
	if err := l.auth.SaveAppConfig(ctx, app); err != nil {
		return err
	}
	_ = l.fast.DeleteAppConfig(ctx, app.AppID)
	return nil
}

func (l *Layered) DeleteAppConfig(ctx context.Context, appID string) error {
	err := l.auth.DeleteAppConfig(ctx, appID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return err
	}
	_ = l.fast.DeleteAppConfig(ctx, appID)
	return err
}

func (l *Layered) ListAppIDs(ctx context.Context) ([]string, error) {
	return l.auth.ListAppIDs(ctx)
}

func (l *Layered) GetAppConfigs(ctx context.Context, appIDs []string) (map[string]*core.AppConfig, error) {
	out := make(map[string]*core.AppConfig, len(appIDs))
	var missing []string
	for _, id := range appIDs {
		if app, err := l.fast.GetAppConfig(ctx, id); err == nil {
			out[id] = app
		} else {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}
	rest, err := l.auth.GetAppConfigs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, app := range rest {
		out[id] = app
		_ = l.fast.SaveAppConfig(ctx, app)
	}
	return out, nil
}

func (l *Layered) AppExists(ctx context.Context, appID string) (bool, error) {
	if ok, err := l.fast.AppExists(ctx, appID); err == nil && ok {
		return true, nil
	}
	return l.auth.AppExists(ctx, appID)
}

func (l *Layered) Close() error {
	ferr := l.fast.Close()
	aerr := l.auth.Close()
	if aerr != nil {
		return aerr
	}
	return ferr
}

package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/dropDatabas3/sigil/internal/store/core"
)

// KeyState es el estado del ciclo de vida de una clave.
type KeyState string

const (
	StateActive     KeyState = "active"
	StateDeprecated KeyState = "deprecated"
	StateExpired    KeyState = "expired"
)

// Health es la clasificación de salud derivada de ExpiresAt.
type Health string

const (
	HealthOK       Health = "ok"
	HealthWarning  Health = "warning"
	HealthCritical Health = "critical"
)

// KeyHealthStatus es el reporte por clave.
type KeyHealthStatus struct {
	AppID     string     `json:"appId"`
	KeyID     string     `json:"keyId"`
	Status    KeyState   `json:"status"`
	Health    Health     `json:"health"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	ExpiresIn string     `json:"expiresIn,omitempty"`
}

// classify deriva estado y salud. Sin ExpiresAt la clave nunca expira.
// Deprecated = deshabilitada, o superada por una clave habilitada más nueva.
func (m *Manager) classify(app *core.AppConfig, k *core.KeyPair, now time.Time) KeyHealthStatus {
	st := KeyHealthStatus{AppID: app.AppID, KeyID: k.KeyID, ExpiresAt: k.ExpiresAt}

	switch {
	case k.Expired(now):
		st.Status = StateExpired
	case !k.Enabled:
		st.Status = StateDeprecated
	default:
		st.Status = StateActive
		if cur := currentKey(app, now); cur != nil && cur.KeyID != k.KeyID {
			st.Status = StateDeprecated
		}
	}

	switch {
	case k.Expired(now):
		st.Health = HealthCritical
	case k.ExpiresAt != nil && k.ExpiresAt.Sub(now) <= m.opts.WarnHorizon:
		st.Health = HealthWarning
	default:
		st.Health = HealthOK
	}

	if k.ExpiresAt != nil && !k.Expired(now) {
		st.ExpiresIn = k.ExpiresAt.Sub(now).Truncate(time.Second).String()
	}
	return st
}

// GetKeyStatus clasifica una clave puntual.
func (m *Manager) GetKeyStatus(ctx context.Context, appID, keyID string) (*KeyHealthStatus, error) {
	app, err := m.store.GetAppConfig(ctx, appID)
	if err != nil {
		return nil, err
	}
	k := app.FindKey(keyID)
	if k == nil {
		return nil, fmt.Errorf("key %q: %w", keyID, core.ErrNotFound)
	}
	st := m.classify(app, k, m.now())
	return &st, nil
}

// GetAppKeyStatuses clasifica todas las claves de una app, en el orden en
// que la app las lista.
func (m *Manager) GetAppKeyStatuses(ctx context.Context, appID string) ([]KeyHealthStatus, error) {
	app, err := m.store.GetAppConfig(ctx, appID)
	if err != nil {
		return nil, err
	}
	now := m.now()
	out := make([]KeyHealthStatus, 0, len(app.Keys))
	for i := range app.Keys {
		out = append(out, m.classify(app, &app.Keys[i], now))
	}
	return out, nil
}

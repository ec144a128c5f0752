// Package lifecycle orquesta el ciclo de vida de las claves de firma sobre
// un Store: generación, planes y ejecución de rotación, clasificación de
// salud y limpieza de claves expiradas.
//
// Máquina de estados por clave: active → deprecated (grace) → expired → removed.
// Las operaciones acá sólo agregan claves o apagan Enabled de claves ya
// superadas: nunca mutan in-place una clave que esté siendo leída (el Store
// clona en cada lectura/escritura), así que es seguro correr mantenimiento
// concurrente con tráfico de verificación.
package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropDatabas3/sigil/internal/observability/logger"
	"github.com/dropDatabas3/sigil/internal/sigcodec"
	"github.com/dropDatabas3/sigil/internal/store/core"
)

// Options configura el manager.
type Options struct {
	// GracePeriod: cuánto sigue válida la clave vieja tras una rotación
	// gradual. Default 30 días.
	GracePeriod time.Duration
	// WarnHorizon: una clave a menos de esto de expirar reporta health
	// warning. Default 7 días.
	WarnHorizon time.Duration
}

func (o *Options) defaults() {
	if o.GracePeriod <= 0 {
		o.GracePeriod = 30 * 24 * time.Hour
	}
	if o.WarnHorizon <= 0 {
		o.WarnHorizon = 7 * 24 * time.Hour
	}
}

// Manager es una instancia explícita (sin singletons): los tests construyen
// la suya y el engine recibe la suya por referencia.
type Manager struct {
	store core.Store
	opts  Options

	// now es inyectable en tests.
	now func() time.Time
}

func New(store core.Store, opts Options) *Manager {
	opts.defaults()
	return &Manager{store: store, opts: opts, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock reemplaza el reloj. Usar sólo en tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// GenerateKey genera un par nuevo y lo agrega (habilitado) a la app.
// Retorna el par completo, privada incluida: es el único momento en que la
// privada existe del lado del server, y no se persiste.
func (m *Manager) GenerateKey(ctx context.Context, appID string, alg core.Algorithm, opts sigcodec.GenerateOptions, ttl time.Duration) (*core.KeyPair, error) {
	app, err := m.store.GetAppConfig(ctx, appID)
	if err != nil {
		return nil, err
	}
	pair, err := sigcodec.GenerateKeyPair(alg, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalid, err)
	}
	now := m.now()
	kp := core.KeyPair{
		KeyID:     newKeyID(now),
		PublicKey: pair.PublicKeyPEM,
		Algorithm: alg,
		CreatedAt: now,
		Enabled:   true,
	}
	if ttl > 0 {
		exp := now.Add(ttl)
		kp.ExpiresAt = &exp
	}
	app.Keys = append(app.Keys, kp)
	if err := m.store.SaveAppConfig(ctx, app); err != nil {
		return nil, err
	}
	logger.From(ctx).Info("key generated",
		logger.AppID(appID), logger.KeyID(kp.KeyID), zap.String("alg", string(alg)))

	kp.PrivateKey = pair.PrivateKeyPEM
	return &kp, nil
}

// newKeyID: timestamp legible + sufijo aleatorio corto para unicidad.
func newKeyID(now time.Time) string {
	return "k-" + now.Format("20060102T150405Z") + "-" + strings.Split(uuid.NewString(), "-")[0]
}

// currentKey: la clave habilitada más nueva (por CreatedAt) de la app.
func currentKey(app *core.AppConfig, now time.Time) *core.KeyPair {
	var cur *core.KeyPair
	for i := range app.Keys {
		k := &app.Keys[i]
		if !k.Enabled || k.Expired(now) {
			continue
		}
		if cur == nil || k.CreatedAt.After(cur.CreatedAt) {
			cur = k
		}
	}
	return cur
}

func sortedAppIDs(apps map[string]*core.AppConfig) []string {
	ids := make([]string, 0, len(apps))
	for id := range apps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

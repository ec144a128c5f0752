// Package engine implementa el punto de entrada de verificación: dado un
// request firmado resuelve la app y su clave (cache primero), valida la
// ventana de tiempo, verifica la firma y devuelve la identidad autenticada
// o un error tipado. Sin singletons: el Engine se construye explícito y se
// pasa por referencia, los tests instancian el suyo.
package engine

import (
	"context"
	"crypto"
	"errors"
	"strings"
	"time"

	"github.com/dropDatabas3/sigil/internal/apperrors"
	"github.com/dropDatabas3/sigil/internal/keycache"
	"github.com/dropDatabas3/sigil/internal/perf"
	"github.com/dropDatabas3/sigil/internal/routeauth"
	"github.com/dropDatabas3/sigil/internal/sigcodec"
	"github.com/dropDatabas3/sigil/internal/store/core"
	"github.com/dropDatabas3/sigil/internal/util"
)

const (
	// DefaultWindow es la tolerancia global entre firma y verificación.
	DefaultWindow = 300 * time.Second

	defaultKeyCacheCap = 1024
	defaultKeyCacheTTL = 10 * time.Minute
)

// Options configura el Engine.
type Options struct {
	// Window: tolerancia de timestamp. Cero => DefaultWindow. El
	// CustomTimeWindow de la app la pisa por-app.
	Window time.Duration
	// SkipPaths: prefijos exentos de verificación (health checks, docs).
	SkipPaths []string
	// Authorizer, opcional: autorización por ruta post-autenticación.
	Authorizer *routeauth.Authorizer
	// Monitor, opcional: timings y alertas.
	Monitor *perf.Monitor

	KeyCacheCapacity int
	KeyCacheTTL      time.Duration
}

// Engine verifica requests contra un Store. Seguro para uso concurrente.
type Engine struct {
	store    core.Store
	keyCache *keycache.Cache[crypto.PublicKey]
	pemCache *keycache.Cache[string]
	auth     *routeauth.Authorizer
	monitor  *perf.Monitor
	window   time.Duration
	skip     []string

	now func() time.Time
}

func New(store core.Store, opts Options) *Engine {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.KeyCacheCapacity <= 0 {
		opts.KeyCacheCapacity = defaultKeyCacheCap
	}
	if opts.KeyCacheTTL <= 0 {
		opts.KeyCacheTTL = defaultKeyCacheTTL
	}
	return &Engine{
		store:    store,
		keyCache: keycache.NewKeyCache(opts.KeyCacheCapacity, opts.KeyCacheTTL),
		pemCache: keycache.NewPEMCache(opts.KeyCacheCapacity, opts.KeyCacheTTL),
		auth:     opts.Authorizer,
		monitor:  opts.Monitor,
		window:   opts.Window,
		skip:     opts.SkipPaths,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock fija el reloj. Sólo para tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// KeyCacheStats expone las estadísticas del cache de claves parseadas.
func (e *Engine) KeyCacheStats() keycache.Stats { return e.keyCache.Stats() }

// InvalidateKey saca una clave del cache (post rotación o delete).
func (e *Engine) InvalidateKey(appID, keyID string, alg core.Algorithm) {
	e.keyCache.Delete(keycache.KeyCacheKey(appID+"/"+keyID, string(alg)))
}

func (e *Engine) skipped(path string) bool {
	for _, p := range e.skip {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// resolveApp trae el AppConfig y clasifica: inexistente o deshabilitado
// es APP_NOT_FOUND; cualquier otra falla de backend es STORAGE_ERROR.
func (e *Engine) resolveApp(ctx context.Context, appID string) (*core.AppConfig, error) {
	app, err := e.store.GetAppConfig(ctx, appID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrAppNotFound.WithField("app_id", appID)
		}
		return nil, apperrors.ErrStorage.WithField("app_id", appID).WithCause(err)
	}
	if !app.Enabled {
		return nil, apperrors.ErrAppNotFound.WithDetail("aplicación deshabilitada").WithField("app_id", appID)
	}
	return app, nil
}

// resolveKey localiza el KeyPair usable y su pública parseada, cache
// primero. El cache de PEM evita re-limpiar el mismo material.
func (e *Engine) resolveKey(app *core.AppConfig, keyID string, now time.Time) (*core.KeyPair, crypto.PublicKey, error) {
	key := app.FindKey(keyID)
	if key == nil || !key.Usable(now) {
		return nil, nil, apperrors.ErrKeyNotFound.
			WithField("app_id", app.AppID).WithField("key_id", keyID)
	}

	cacheKey := keycache.KeyCacheKey(app.AppID+"/"+key.KeyID, string(key.Algorithm))
	if pub, ok := e.keyCache.Get(cacheKey); ok {
		return key, pub, nil
	}

	pemKey := keycache.PEMCacheKey(key.PublicKey)
	cleaned, ok := e.pemCache.Get(pemKey)
	if !ok {
		cleaned = sigcodec.CleanPEM(key.PublicKey)
		e.pemCache.SetSized(pemKey, cleaned, 0, int64(len(cleaned)))
	}

	pub, err := sigcodec.ParsePublicKey(cleaned)
	if err != nil {
		return nil, nil, apperrors.ErrValidation.WithDetail("public key malformada").
			WithField("app_id", app.AppID).WithField("key_id", keyID).
			WithField("public_key", util.MaskPEM(key.PublicKey)).WithCause(err)
	}
	// el PEM limpio es un proxy razonable del tamaño de la clave parseada
	e.keyCache.SetSized(cacheKey, pub, 0, int64(len(cleaned)))
	return key, pub, nil
}

// checkWindow valida la ventana de tiempo. El límite exacto (edad ==
// ventana) se acepta; un segundo más, no.
func (e *Engine) checkWindow(ts time.Time, app *core.AppConfig, now time.Time) error {
	window := e.window
	if app != nil && app.AccessControl != nil && app.AccessControl.CustomTimeWindow != nil {
		window = time.Duration(*app.AccessControl.CustomTimeWindow) * time.Second
	}
	diff := now.Sub(ts)
	if diff < 0 {
		diff = -diff
	}
	if diff > window {
		return apperrors.ErrInvalidTimestamp.
			WithField("age", diff.String()).WithField("window", window.String())
	}
	return nil
}

// checkAccessControl aplica las restricciones por-app. Una violación se
// reporta como APP_NOT_FOUND: no se revela a un cliente bloqueado que la
// app existe.
func checkAccessControl(app *core.AppConfig, path, clientIP string) error {
	ac := app.AccessControl
	if ac == nil {
		return nil
	}
	for _, denied := range ac.DeniedPaths {
		if strings.HasPrefix(path, denied) {
			return apperrors.ErrAppNotFound.WithDetail("path denegado").WithField("app_id", app.AppID)
		}
	}
	if len(ac.AllowedPaths) > 0 {
		allowed := false
		for _, p := range ac.AllowedPaths {
			if strings.HasPrefix(path, p) {
				allowed = true
				break
			}
		}
		if !allowed {
			return apperrors.ErrAppNotFound.WithDetail("path fuera del set permitido").WithField("app_id", app.AppID)
		}
	}
	if len(ac.AllowedIPs) > 0 && clientIP != "" {
		ok := false
		for _, ip := range ac.AllowedIPs {
			if ip == clientIP {
				ok = true
				break
			}
		}
		if !ok {
			return apperrors.ErrAppNotFound.WithDetail("IP no permitida").WithField("app_id", app.AppID)
		}
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}

package routeauth

import (
	"context"
	"strings"

	"github.com/dropDatabas3/sigil/internal/apperrors"
)

// Decision es el resultado de resolver (path, method) contra el config.
type Decision struct {
	RequireAuth bool
	// route no-nil cuando decidió una regla explícita (aplican sus listas
	// de apps y su check custom).
	route *resolvedRoute
}

// Authorizer evalúa el config. Inmutable después de construido, seguro
// para lecturas concurrentes.
type Authorizer struct {
	cfg *Config
}

func New(cfg *Config) *Authorizer {
	if cfg == nil {
		cfg = NewBuilder().Build()
	}
	return &Authorizer{cfg: cfg}
}

// Resolve aplica la precedencia: ruta explícita > patrones public/protected
// > default global.
func (a *Authorizer) Resolve(path, method string) Decision {
	for i := range a.cfg.routes {
		r := &a.cfg.routes[i]
		if !routeMatches(r.fullPath, path) || !r.allowsMethod(method) {
			continue
		}
		return Decision{RequireAuth: r.requireAuth, route: r}
	}
	for _, p := range a.cfg.PublicPaths {
		if matchPattern(p, path) {
			return Decision{RequireAuth: false}
		}
	}
	for _, p := range a.cfg.ProtectedPaths {
		if matchPattern(p, path) {
			return Decision{RequireAuth: true}
		}
	}
	return Decision{RequireAuth: a.cfg.DefaultRequireAuth}
}

// routeMatches: match exacto, o prefijo cuando la regla termina en '/'.
func routeMatches(rulePath, reqPath string) bool {
	if strings.HasSuffix(rulePath, "/") {
		return strings.HasPrefix(reqPath, rulePath) || reqPath == strings.TrimSuffix(rulePath, "/")
	}
	return reqPath == rulePath
}

// Authorize chequea si la app pasa la decisión. Orden: deniedApps gana
// sobre allowedApps; si hay allowedApps la app debe figurar; después el
// check custom; si nada aplica, permitido.
func (a *Authorizer) Authorize(ctx context.Context, d Decision, appID string) error {
	if !d.RequireAuth || d.route == nil {
		return nil
	}
	r := d.route
	for _, denied := range r.deniedApps {
		if denied == appID {
			return apperrors.ErrPermissionDenied.WithField("app_id", appID)
		}
	}
	if len(r.allowedApps) > 0 {
		for _, allowed := range r.allowedApps {
			if allowed == appID {
				return nil
			}
		}
		return apperrors.ErrPermissionDenied.WithField("app_id", appID)
	}
	if r.check != nil {
		ok, err := r.check(ctx, appID)
		if err != nil {
			return apperrors.ErrPermissionDenied.WithField("app_id", appID).WithCause(err)
		}
		if !ok {
			return apperrors.ErrPermissionDenied.WithField("app_id", appID)
		}
	}
	return nil
}

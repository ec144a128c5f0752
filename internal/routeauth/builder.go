package routeauth

import (
	"path"
	"strings"
)

// Builder arma un Config de forma fluida. No es seguro para uso
// concurrente; Build produce el valor inmutable.
type Builder struct {
	cfg    Config
	groups []GroupConfig
	routes []RouteConfig
}

func NewBuilder() *Builder {
	return &Builder{cfg: Config{DefaultRequireAuth: true}}
}

// DefaultRequireAuth setea el default global.
func (b *Builder) DefaultRequireAuth(v bool) *Builder {
	b.cfg.DefaultRequireAuth = v
	return b
}

// Public agrega patrones de paths públicos (prefijo o regex con "^").
func (b *Builder) Public(patterns ...string) *Builder {
	b.cfg.PublicPaths = append(b.cfg.PublicPaths, patterns...)
	return b
}

// Protected agrega patrones de paths protegidos.
func (b *Builder) Protected(patterns ...string) *Builder {
	b.cfg.ProtectedPaths = append(b.cfg.ProtectedPaths, patterns...)
	return b
}

// Route agrega una ruta explícita top-level.
func (b *Builder) Route(r RouteConfig) *Builder {
	b.routes = append(b.routes, r)
	return b
}

// Group agrega un grupo; sus rutas heredan Defaults salvo override explícito.
func (b *Builder) Group(g GroupConfig) *Builder {
	b.groups = append(b.groups, g)
	return b
}

// Build mergea grupos y rutas en el config final. Las rutas de grupo se
// indexan por basePath+path; un valor explícito de ruta siempre le gana
// al default del grupo.
func (b *Builder) Build() *Config {
	cfg := b.cfg
	for _, r := range b.routes {
		cfg.routes = append(cfg.routes, resolve(r, nil, ""))
	}
	for _, g := range b.groups {
		for _, r := range g.Routes {
			cfg.routes = append(cfg.routes, resolve(r, &g.Defaults, g.BasePath))
		}
	}
	return &cfg
}

func resolve(r RouteConfig, def *RouteConfig, basePath string) resolvedRoute {
	out := resolvedRoute{
		fullPath:    joinPath(basePath, r.Path),
		methods:     methodSet(r.Methods),
		requireAuth: true,
		allowedApps: r.AllowedApps,
		deniedApps:  r.DeniedApps,
		check:       r.Check,
	}
	if def != nil {
		if out.allowedApps == nil {
			out.allowedApps = def.AllowedApps
		}
		if out.deniedApps == nil {
			out.deniedApps = def.DeniedApps
		}
		if out.check == nil {
			out.check = def.Check
		}
		if r.RequireAuth == nil && def.RequireAuth != nil {
			out.requireAuth = *def.RequireAuth
		}
	}
	if r.RequireAuth != nil {
		out.requireAuth = *r.RequireAuth
	}
	return out
}

func joinPath(base, p string) string {
	if base == "" {
		return p
	}
	joined := path.Join(base, p)
	// path.Join pierde el trailing slash, que importa para match exacto
	if strings.HasSuffix(p, "/") && !strings.HasSuffix(joined, "/") {
		joined += "/"
	}
	return joined
}

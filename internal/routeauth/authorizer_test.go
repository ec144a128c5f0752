package routeauth

import (
	"context"
	"errors"
	"testing"

	"github.com/dropDatabas3/sigil/internal/apperrors"
)

func TestGlobalDefaultApplies(t *testing.T) {
	a := New(NewBuilder().DefaultRequireAuth(true).Build())
	if d := a.Resolve("/cualquier/cosa", "GET"); !d.RequireAuth {
		t.Fatalf("default global requireAuth=true")
	}

	open := New(NewBuilder().DefaultRequireAuth(false).Build())
	if d := open.Resolve("/cualquier/cosa", "GET"); d.RequireAuth {
		t.Fatalf("default global requireAuth=false")
	}
}

func TestPublicAndProtectedPatterns(t *testing.T) {
	a := New(NewBuilder().
		DefaultRequireAuth(true).
		Public("/health", "^/docs/.*$").
		Protected("/admin").
		Build())

	if d := a.Resolve("/health", "GET"); d.RequireAuth {
		t.Fatalf("/health es público por prefijo")
	}
	if d := a.Resolve("/docs/api/v1", "GET"); d.RequireAuth {
		t.Fatalf("regex pública debe matchear")
	}
	if d := a.Resolve("/admin/users", "GET"); !d.RequireAuth {
		t.Fatalf("/admin es protegido")
	}
}

func TestExplicitRouteOverridesPatterns(t *testing.T) {
	a := New(NewBuilder().
		DefaultRequireAuth(false).
		Public("/api/").
		Route(RouteConfig{Path: "/api/secret", RequireAuth: boolPtr(true)}).
		Build())

	// la ruta explícita gana aunque el path matchee un patrón público
	if d := a.Resolve("/api/secret", "POST"); !d.RequireAuth {
		t.Fatalf("la regla explícita pisa el patrón público")
	}
	if d := a.Resolve("/api/otra", "POST"); d.RequireAuth {
		t.Fatalf("el resto de /api/ sigue público")
	}
}

func TestRouteMethodFilter(t *testing.T) {
	a := New(NewBuilder().
		DefaultRequireAuth(false).
		Route(RouteConfig{Path: "/orders", Methods: []string{"POST", "DELETE"}, RequireAuth: boolPtr(true)}).
		Build())

	if d := a.Resolve("/orders", "POST"); !d.RequireAuth {
		t.Fatalf("POST está listado")
	}
	if d := a.Resolve("/orders", "get"); d.RequireAuth {
		t.Fatalf("GET no está listado: cae al default")
	}

	star := New(NewBuilder().
		DefaultRequireAuth(false).
		Route(RouteConfig{Path: "/all", Methods: []string{"*"}, RequireAuth: boolPtr(true)}).
		Build())
	if d := star.Resolve("/all", "PATCH"); !d.RequireAuth {
		t.Fatalf("'*' cubre todos los métodos")
	}
}

func TestGroupDefaultsMergedAndRouteWins(t *testing.T) {
	cfg := NewBuilder().
		DefaultRequireAuth(false).
		Group(GroupConfig{
			Name:     "admin",
			BasePath: "/admin",
			Defaults: RouteConfig{
				RequireAuth: boolPtr(true),
				AllowedApps: []string{"ops"},
			},
			Routes: []RouteConfig{
				{Path: "/users"}, // hereda todo
				{Path: "/ping", RequireAuth: boolPtr(false)},   // override explícito
				{Path: "/audit", AllowedApps: []string{"sec"}}, // pisa la lista del grupo
			},
		}).
		Build()
	a := New(cfg)
	ctx := context.Background()

	d := a.Resolve("/admin/users", "GET")
	if !d.RequireAuth {
		t.Fatalf("hereda requireAuth del grupo")
	}
	if err := a.Authorize(ctx, d, "ops"); err != nil {
		t.Fatalf("ops hereda allowedApps: %v", err)
	}
	if err := a.Authorize(ctx, d, "otra"); !errors.Is(err, apperrors.ErrPermissionDenied) {
		t.Fatalf("no listada debe rebotar: %v", err)
	}

	if d := a.Resolve("/admin/ping", "GET"); d.RequireAuth {
		t.Fatalf("el valor explícito de la ruta le gana al default del grupo")
	}

	d = a.Resolve("/admin/audit", "GET")
	if err := a.Authorize(ctx, d, "sec"); err != nil {
		t.Fatalf("sec listada en la ruta: %v", err)
	}
	if err := a.Authorize(ctx, d, "ops"); !errors.Is(err, apperrors.ErrPermissionDenied) {
		t.Fatalf("la lista de la ruta reemplaza a la del grupo: %v", err)
	}
}

func TestDeniedAppsBeatAllowedApps(t *testing.T) {
	a := New(NewBuilder().
		Route(RouteConfig{
			Path:        "/x",
			RequireAuth: boolPtr(true),
			AllowedApps: []string{"dup"},
			DeniedApps:  []string{"dup"},
		}).
		Build())

	d := a.Resolve("/x", "GET")
	if err := a.Authorize(context.Background(), d, "dup"); !errors.Is(err, apperrors.ErrPermissionDenied) {
		t.Fatalf("deniedApps gana sobre allowedApps: %v", err)
	}
}

func TestCustomCheckIsAuthoritative(t *testing.T) {
	calls := 0
	check := func(ctx context.Context, appID string) (bool, error) {
		calls++
		return appID == "vip", nil
	}
	a := New(NewBuilder().
		Route(RouteConfig{Path: "/x", RequireAuth: boolPtr(true), Check: check}).
		Build())
	ctx := context.Background()

	d := a.Resolve("/x", "GET")
	if err := a.Authorize(ctx, d, "vip"); err != nil {
		t.Fatalf("check true permite: %v", err)
	}
	if err := a.Authorize(ctx, d, "pleb"); !errors.Is(err, apperrors.ErrPermissionDenied) {
		t.Fatalf("check false deniega: %v", err)
	}
	if calls != 2 {
		t.Fatalf("el check debe invocarse por llamada: %d", calls)
	}
}

func TestAllowedAppsSkipCustomCheck(t *testing.T) {
	check := func(ctx context.Context, appID string) (bool, error) {
		t.Fatalf("con la app en allowedApps el check no corre")
		return false, nil
	}
	a := New(NewBuilder().
		Route(RouteConfig{Path: "/x", RequireAuth: boolPtr(true), AllowedApps: []string{"listed"}, Check: check}).
		Build())

	d := a.Resolve("/x", "GET")
	if err := a.Authorize(context.Background(), d, "listed"); err != nil {
		t.Fatalf("app listada pasa sin check: %v", err)
	}
}

func TestPrefixRouteMatching(t *testing.T) {
	a := New(NewBuilder().
		DefaultRequireAuth(false).
		Route(RouteConfig{Path: "/api/v1/", RequireAuth: boolPtr(true)}).
		Build())

	if d := a.Resolve("/api/v1/orders", "GET"); !d.RequireAuth {
		t.Fatalf("ruta con trailing slash matchea por prefijo")
	}
	if d := a.Resolve("/api/v2/orders", "GET"); d.RequireAuth {
		t.Fatalf("/api/v2 no matchea")
	}
}

// Package routeauth evalúa autorización por ruta: configuración declarativa
// de rutas/grupos armada con un builder fluido, y un Authorizer que decide
// si un path+method requiere auth y si la app llamante está permitida.
package routeauth

import (
	"context"
	"regexp"
	"strings"
)

// PermissionCheck es un chequeo custom por ruta. Puede hacer I/O; el caller
// es responsable del timeout vía ctx.
type PermissionCheck func(ctx context.Context, appID string) (bool, error)

// RouteConfig es la regla explícita para una ruta.
// Los campos puntero distinguen "no seteado" de "seteado en false/vacío"
// para el merge con defaults de grupo.
type RouteConfig struct {
	Path        string
	Methods     []string // vacío o "*" => todos
	RequireAuth *bool
	AllowedApps []string
	DeniedApps  []string
	Check       PermissionCheck
}

// GroupConfig agrupa rutas bajo un basePath con defaults heredables.
type GroupConfig struct {
	Name     string
	BasePath string
	Defaults RouteConfig // Path/Methods ignorados; sólo defaults heredables
	Routes   []RouteConfig
}

// Config es la configuración global inmutable que consume el Authorizer.
// Se construye con Builder; los grupos ya vienen mergeados en resolved.
type Config struct {
	DefaultRequireAuth bool
	PublicPaths        []string // prefijo, o regex si empieza con "^"
	ProtectedPaths     []string
	routes             []resolvedRoute
}

// resolvedRoute es una ruta con el basePath del grupo aplicado y los
// defaults del grupo ya mergeados.
type resolvedRoute struct {
	fullPath    string
	methods     map[string]bool // nil => todos
	requireAuth bool
	allowedApps []string
	deniedApps  []string
	check       PermissionCheck
}

func (r resolvedRoute) allowsMethod(method string) bool {
	if r.methods == nil {
		return true
	}
	return r.methods[strings.ToUpper(method)]
}

// matchPattern: prefijo simple, o regex cuando el patrón empieza con '^'.
// Una regex inválida no matchea nada.
func matchPattern(pattern, path string) bool {
	if strings.HasPrefix(pattern, "^") {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(path)
	}
	return strings.HasPrefix(path, pattern)
}

func methodSet(methods []string) map[string]bool {
	if len(methods) == 0 {
		return nil
	}
	set := make(map[string]bool, len(methods))
	for _, m := range methods {
		if m == "*" {
			return nil
		}
		set[strings.ToUpper(m)] = true
	}
	return set
}

func boolPtr(v bool) *bool { return &v }

// Package envstore sintetiza AppConfigs desde un namespace plano clave-valor
// (típicamente el environment), siguiendo la convención:
//
//	APP_{ID}_PUBLIC_KEY / _ALGORITHM / _ENABLED / _NAME / _PERMISSIONS /
//	_DESCRIPTION / _TAGS / _ALLOWED_PATHS / _DENIED_PATHS / _ALLOWED_IPS /
//	_RATE_LIMIT (rpm:burst) / _TIME_WINDOW (segundos)
//
// para la clave primaria (keyId "default"), y
//
//	APP_{ID}_KEY_{KEYID}_* (mismos sufijos, más _EXPIRES_AT ISO-8601)
//
// para claves adicionales de la misma app. Es de sólo lectura.
package envstore

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/sigil/internal/store/core"
)

const (
	prefix        = "APP_"
	pubKeySuffix  = "_PUBLIC_KEY"
	keySegment    = "_KEY_"
	defaultKeyID  = "default"
	defaultKeyAlg = core.AlgRS256
)

type Store struct {
	apps map[string]*core.AppConfig // key: id normalizado
}

var _ core.Store = (*Store)(nil)

// New parsea el namespace dado. Los errores de parseo de una app inválida
// descartan esa app, no el resto.
func New(vars map[string]string) *Store {
	return &Store{apps: parse(vars)}
}

// FromEnviron construye el store desde os.Environ().
func FromEnviron() *Store {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			vars[kv[:i]] = kv[i+1:]
		}
	}
	return New(vars)
}

// normID: los nombres de env var no admiten '-', así que "app-one" se busca
// como APP_APP_ONE_*.
func normID(appID string) string {
	return strings.ToUpper(strings.ReplaceAll(appID, "-", "_"))
}

func parse(vars map[string]string) map[string]*core.AppConfig {
	apps := make(map[string]*core.AppConfig)

	// Los _PUBLIC_KEY anclan el descubrimiento: una app/clave sin pública no existe.
	for name := range vars {
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, pubKeySuffix) {
			continue
		}
		rest := strings.TrimSuffix(strings.TrimPrefix(name, prefix), pubKeySuffix)
		if rest == "" {
			continue
		}

		// APP_{ID}_KEY_{KEYID}_PUBLIC_KEY vs APP_{ID}_PUBLIC_KEY.
		// El split va por la ÚLTIMA ocurrencia de _KEY_ para tolerar ids con
		// ese substring.
		if i := strings.LastIndex(rest, keySegment); i > 0 {
			id, keyID := rest[:i], rest[i+len(keySegment):]
			if keyID != "" {
				app := ensureApp(apps, vars, id)
				base := prefix + id + keySegment + keyID
				app.Keys = append(app.Keys, parseKey(vars, base, strings.ToLower(keyID)))
				continue
			}
		}

		ensureApp(apps, vars, rest)
	}

	// Orden estable de claves: primaria primero, luego por keyId.
	for _, app := range apps {
		sort.SliceStable(app.Keys, func(i, j int) bool {
			if app.Keys[i].KeyID == defaultKeyID {
				return app.Keys[j].KeyID != defaultKeyID
			}
			if app.Keys[j].KeyID == defaultKeyID {
				return false
			}
			return app.Keys[i].KeyID < app.Keys[j].KeyID
		})
	}
	return apps
}

func ensureApp(apps map[string]*core.AppConfig, vars map[string]string, id string) *core.AppConfig {
	if app, ok := apps[id]; ok {
		return app
	}
	base := prefix + id
	appID := strings.ToLower(id)
	app := &core.AppConfig{
		AppID:   appID,
		Name:    getOr(vars, base+"_NAME", appID),
		Enabled: parseBool(getOr(vars, base+"_ENABLED", "true")),
	}
	if v := vars[base+"_PERMISSIONS"]; v != "" {
		app.Permissions = splitList(v)
	}
	app.Description = vars[base+"_DESCRIPTION"]
	if v := vars[base+"_TAGS"]; v != "" {
		app.Tags = splitList(v)
	}
	app.AccessControl = parseAccessControl(vars, base)
	if _, ok := vars[base+pubKeySuffix]; ok {
		app.Keys = append(app.Keys, parseKey(vars, base, defaultKeyID))
	}
	apps[id] = app
	return app
}

func parseKey(vars map[string]string, base, keyID string) core.KeyPair {
	alg := core.Algorithm(strings.ToUpper(getOr(vars, base+"_ALGORITHM", string(defaultKeyAlg))))
	k := core.KeyPair{
		KeyID:     keyID,
		PublicKey: vars[base+pubKeySuffix],
		Algorithm: alg,
		Enabled:   parseBool(getOr(vars, base+"_ENABLED", "true")),
	}
	if v := vars[base+"_EXPIRES_AT"]; v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			t = t.UTC()
			k.ExpiresAt = &t
		}
	}
	return k
}

func parseAccessControl(vars map[string]string, base string) *core.AccessControl {
	ac := &core.AccessControl{}
	any := false
	if v := vars[base+"_ALLOWED_PATHS"]; v != "" {
		ac.AllowedPaths = splitList(v)
		any = true
	}
	if v := vars[base+"_DENIED_PATHS"]; v != "" {
		ac.DeniedPaths = splitList(v)
		any = true
	}
	if v := vars[base+"_ALLOWED_IPS"]; v != "" {
		ac.AllowedIPs = splitList(v)
		any = true
	}
	if v := vars[base+"_RATE_LIMIT"]; v != "" {
		if rl := parseRateLimit(v); rl != nil {
			ac.RateLimit = rl
			any = true
		}
	}
	if v := vars[base+"_TIME_WINDOW"]; v != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
			ac.CustomTimeWindow = &secs
			any = true
		}
	}
	if !any {
		return nil
	}
	return ac
}

// parseRateLimit: "requestsPerMinute:burstLimit".
func parseRateLimit(v string) *core.RateLimit {
	parts := strings.SplitN(v, ":", 2)
	rpm, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || rpm <= 0 {
		return nil
	}
	rl := &core.RateLimit{RequestsPerMinute: rpm}
	if len(parts) == 2 {
		if b, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
			rl.BurstLimit = b
		}
	}
	return rl
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func getOr(vars map[string]string, key, def string) string {
	if v, ok := vars[key]; ok && v != "" {
		return v
	}
	return def
}

// ===== core.Store (sólo lectura) =====

func (s *Store) GetAppConfig(ctx context.Context, appID string) (*core.AppConfig, error) {
	app, ok := s.apps[normID(appID)]
	if !ok {
		return nil, fmt.Errorf("app %q: %w", appID, core.ErrNotFound)
	}
	return app.Clone(), nil
}

func (s *Store) SaveAppConfig(ctx context.Context, app *core.AppConfig) error {
	return fmt.Errorf("envstore: %w", core.ErrReadOnly)
}

func (s *Store) DeleteAppConfig(ctx context.Context, appID string) error {
	return fmt.Errorf("envstore: %w", core.ErrReadOnly)
}

func (s *Store) ListAppIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(s.apps))
	for _, app := range s.apps {
		ids = append(ids, app.AppID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) GetAppConfigs(ctx context.Context, appIDs []string) (map[string]*core.AppConfig, error) {
	out := make(map[string]*core.AppConfig, len(appIDs))
	for _, id := range appIDs {
		if app, ok := s.apps[normID(id)]; ok {
			out[id] = app.Clone()
		}
	}
	return out, nil
}

func (s *Store) AppExists(ctx context.Context, appID string) (bool, error) {
	_, ok := s.apps[normID(appID)]
	return ok, nil
}

func (s *Store) Close() error { return nil }

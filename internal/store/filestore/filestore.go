// Package filestore es un backend de sólo lectura sobre un documento JSON:
//
//	{ "apps": { "<appId>": { name, enabled, keyPairs: [...] | legacy, ... } } }
//
// Soporta el layout moderno multi-clave (keyPairs) y el legacy de una clave
// por app (publicKey/algorithm al tope del objeto). Reload invalida el
// snapshot cargado.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/dropDatabas3/sigil/internal/store/core"
)

type Store struct {
	path  string
	retry core.RetryConfig

	mu   sync.RWMutex
	apps map[string]*core.AppConfig
}

var _ core.Store = (*Store)(nil)

// document es la forma del archivo.
type document struct {
	Apps map[string]appEntry `json:"apps"`
}

type appEntry struct {
	Name        string              `json:"name"`
	Enabled     *bool               `json:"enabled"`
	Description string              `json:"description,omitempty"`
	Permissions []string            `json:"permissions,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
	KeyPairs    []core.KeyPair      `json:"keyPairs,omitempty"`
	Access      *core.AccessControl `json:"accessControl,omitempty"`

	// Layout legacy: una sola clave embebida en el objeto de la app.
	PublicKey string     `json:"publicKey,omitempty"`
	Algorithm string     `json:"algorithm,omitempty"`
	KeyID     string     `json:"keyId,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// New carga el documento de path. Falla si el archivo no existe o está
// malformado.
func New(path string) (*Store, error) {
	s := &Store{path: path, retry: core.DefaultRetry()}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload relee el documento desde disco, descartando el snapshot anterior.
func (s *Store) Reload() error {
	return core.WithRetry(context.Background(), s.retry, func() error {
		b, err := os.ReadFile(s.path)
		if err != nil {
			return fmt.Errorf("filestore read %s: %w", s.path, err)
		}
		var doc document
		if err := json.Unmarshal(b, &doc); err != nil {
			return fmt.Errorf("%w: filestore parse %s: %v", core.ErrInvalid, s.path, err)
		}
		apps := make(map[string]*core.AppConfig, len(doc.Apps))
		for id, e := range doc.Apps {
			apps[id] = e.toAppConfig(id)
		}
		s.mu.Lock()
		s.apps = apps
		s.mu.Unlock()
		return nil
	})
}

func (e appEntry) toAppConfig(appID string) *core.AppConfig {
	enabled := true
	if e.Enabled != nil {
		enabled = *e.Enabled
	}
	app := &core.AppConfig{
		AppID:         appID,
		Name:          e.Name,
		Enabled:       enabled,
		Description:   e.Description,
		Permissions:   e.Permissions,
		Tags:          e.Tags,
		AccessControl: e.Access,
		Keys:          e.KeyPairs,
	}
	if app.Name == "" {
		app.Name = appID
	}
	// Legacy: sin keyPairs pero con publicKey al tope.
	if len(app.Keys) == 0 && e.PublicKey != "" {
		keyID := e.KeyID
		if keyID == "" {
			keyID = "default"
		}
		alg := core.Algorithm(e.Algorithm)
		if alg == "" {
			alg = core.AlgRS256
		}
		app.Keys = []core.KeyPair{{
			KeyID:     keyID,
			PublicKey: e.PublicKey,
			Algorithm: alg,
			ExpiresAt: e.ExpiresAt,
			Enabled:   true,
		}}
	}
	return app
}

func (s *Store) GetAppConfig(ctx context.Context, appID string) (*core.AppConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[appID]
	if !ok {
		return nil, fmt.Errorf("app %q: %w", appID, core.ErrNotFound)
	}
	return app.Clone(), nil
}

func (s *Store) SaveAppConfig(ctx context.Context, app *core.AppConfig) error {
	return fmt.Errorf("filestore: %w", core.ErrReadOnly)
}

func (s *Store) DeleteAppConfig(ctx context.Context, appID string) error {
	return fmt.Errorf("filestore: %w", core.ErrReadOnly)
}

func (s *Store) ListAppIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.apps))
	for id := range s.apps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) GetAppConfigs(ctx context.Context, appIDs []string) (map[string]*core.AppConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*core.AppConfig, len(appIDs))
	for _, id := range appIDs {
		if app, ok := s.apps[id]; ok {
			out[id] = app.Clone()
		}
	}
	return out, nil
}

func (s *Store) AppExists(ctx context.Context, appID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.apps[appID]
	return ok, nil
}

func (s *Store) Close() error { return nil }

package filestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dropDatabas3/sigil/internal/store/core"
)

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keys.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

const modernDoc = `{
  "apps": {
    "billing": {
      "name": "Billing",
      "permissions": ["invoices:read"],
      "keyPairs": [
        {"keyId": "default", "publicKey": "-----BEGIN PUBLIC KEY-----\nAAA\n-----END PUBLIC KEY-----", "algorithm": "RS256", "enabled": true},
        {"keyId": "backup", "publicKey": "-----BEGIN PUBLIC KEY-----\nBBB\n-----END PUBLIC KEY-----", "algorithm": "ES256", "enabled": false}
      ]
    },
    "disabled-app": {
      "name": "Off",
      "enabled": false,
      "keyPairs": [
        {"keyId": "default", "publicKey": "-----BEGIN PUBLIC KEY-----\nCCC\n-----END PUBLIC KEY-----", "algorithm": "RS256", "enabled": true}
      ]
    }
  }
}`

func TestModernLayout(t *testing.T) {
	s, err := New(writeDoc(t, modernDoc))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	app, err := s.GetAppConfig(context.Background(), "billing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(app.Keys) != 2 || app.Keys[1].Algorithm != core.AlgES256 {
		t.Fatalf("claves: %+v", app.Keys)
	}
	if app.Keys[1].Enabled {
		t.Fatalf("backup debe venir deshabilitada")
	}

	off, err := s.GetAppConfig(context.Background(), "disabled-app")
	if err != nil {
		t.Fatalf("get disabled: %v", err)
	}
	if off.Enabled {
		t.Fatalf("enabled:false debe respetarse")
	}
}

func TestLegacySingleKeyLayout(t *testing.T) {
	doc := `{"apps": {"old": {
		"name": "Legacy",
		"publicKey": "-----BEGIN PUBLIC KEY-----\nZZZ\n-----END PUBLIC KEY-----",
		"algorithm": "RS512"
	}}}`
	s, err := New(writeDoc(t, doc))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	app, err := s.GetAppConfig(context.Background(), "old")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(app.Keys) != 1 {
		t.Fatalf("legacy sintetiza una clave, got %d", len(app.Keys))
	}
	k := app.Keys[0]
	if k.KeyID != "default" || k.Algorithm != core.AlgRS512 || !k.Enabled {
		t.Fatalf("clave legacy: %+v", k)
	}
}

func TestDefaultsWhenFieldsMissing(t *testing.T) {
	doc := `{"apps": {"min": {"publicKey": "-----BEGIN PUBLIC KEY-----\nQ\n-----END PUBLIC KEY-----"}}}`
	s, err := New(writeDoc(t, doc))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	app, _ := s.GetAppConfig(context.Background(), "min")
	if app.Name != "min" || !app.Enabled {
		t.Fatalf("defaults: %+v", app)
	}
	if app.Keys[0].Algorithm != core.AlgRS256 {
		t.Fatalf("algoritmo default RS256, got %s", app.Keys[0].Algorithm)
	}
}

func TestReloadSwapsSnapshot(t *testing.T) {
	path := writeDoc(t, `{"apps": {"a": {"publicKey": "-----BEGIN PUBLIC KEY-----\nA\n-----END PUBLIC KEY-----"}}}`)
	s, err := New(path)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if ok, _ := s.AppExists(context.Background(), "a"); !ok {
		t.Fatalf("a debería existir")
	}

	next := `{"apps": {"b": {"publicKey": "-----BEGIN PUBLIC KEY-----\nB\n-----END PUBLIC KEY-----"}}}`
	if err := os.WriteFile(path, []byte(next), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := s.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if ok, _ := s.AppExists(context.Background(), "a"); ok {
		t.Fatalf("el snapshot viejo debe descartarse")
	}
	if ok, _ := s.AppExists(context.Background(), "b"); !ok {
		t.Fatalf("b debería existir tras reload")
	}
}

func TestMalformedDocument(t *testing.T) {
	if _, err := New(writeDoc(t, "{no es json")); !errors.Is(err, core.ErrInvalid) {
		t.Fatalf("esperaba ErrInvalid, got %v", err)
	}
	if _, err := New(filepath.Join(t.TempDir(), "no-existe.json")); err == nil {
		t.Fatalf("archivo inexistente debe fallar")
	}
}

func TestWritesAreReadOnly(t *testing.T) {
	s, err := New(writeDoc(t, modernDoc))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.SaveAppConfig(context.Background(), &core.AppConfig{}); !errors.Is(err, core.ErrReadOnly) {
		t.Fatalf("save: esperaba ErrReadOnly, got %v", err)
	}
}

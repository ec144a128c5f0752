package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/dropDatabas3/sigil/internal/store/core"
)

const fakePEM = "-----BEGIN PUBLIC KEY-----\nMFkwEwYHKoZI\n-----END PUBLIC KEY-----"

func testApp(appID string) *core.AppConfig {
	return &core.AppConfig{
		AppID:   appID,
		Name:    "App " + appID,
		Enabled: true,
		Keys: []core.KeyPair{
			{KeyID: "default", PublicKey: fakePEM, Algorithm: core.AlgRS256, Enabled: true},
		},
	}
}

func TestSaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.SaveAppConfig(ctx, testApp("app1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.GetAppConfig(ctx, "app1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AppID != "app1" || len(got.Keys) != 1 {
		t.Fatalf("config inesperado: %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatalf("save debe estampar created/updated")
	}
}

func TestGetNotFound(t *testing.T) {
	s := New()
	_, err := s.GetAppConfig(context.Background(), "nope")
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("esperaba ErrNotFound, got %v", err)
	}
}

func TestReturnedConfigIsACopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.SaveAppConfig(ctx, testApp("app1")); err != nil {
		t.Fatalf("save: %v", err)
	}

	a, _ := s.GetAppConfig(ctx, "app1")
	a.Keys[0].Enabled = false
	a.Name = "mutado"

	b, _ := s.GetAppConfig(ctx, "app1")
	if !b.Keys[0].Enabled || b.Name != "App app1" {
		t.Fatalf("mutar la copia retornada no debe afectar el store")
	}
}

func TestSavedConfigIsACopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	in := testApp("app1")
	if err := s.SaveAppConfig(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}
	in.Keys[0].Enabled = false

	out, _ := s.GetAppConfig(ctx, "app1")
	if !out.Keys[0].Enabled {
		t.Fatalf("mutar el input post-save no debe afectar el store")
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	ctx := context.Background()
	s := New()

	cases := []*core.AppConfig{
		nil,
		{AppID: "", Name: "x", Keys: []core.KeyPair{{KeyID: "k", PublicKey: fakePEM, Algorithm: core.AlgRS256}}},
		{AppID: "a", Name: "", Keys: []core.KeyPair{{KeyID: "k", PublicKey: fakePEM, Algorithm: core.AlgRS256}}},
		{AppID: "a", Name: "x"}, // sin claves
		{AppID: "a", Name: "x", Keys: []core.KeyPair{
			{KeyID: "k", PublicKey: fakePEM, Algorithm: core.AlgRS256},
			{KeyID: "k", PublicKey: fakePEM, Algorithm: core.AlgRS256}, // keyId duplicado
		}},
		{AppID: "a", Name: "x", Keys: []core.KeyPair{{KeyID: "k", PublicKey: fakePEM, Algorithm: "HS256"}}},
		{AppID: "a", Name: "x", Keys: []core.KeyPair{{KeyID: "k", PublicKey: "no es pem", Algorithm: core.AlgRS256}}},
	}
	for i, app := range cases {
		if err := s.SaveAppConfig(ctx, app); !errors.Is(err, core.ErrInvalid) {
			t.Fatalf("caso %d: esperaba ErrInvalid, got %v", i, err)
		}
	}
}

func TestDeleteAndList(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, id := range []string{"b", "a", "c"} {
		if err := s.SaveAppConfig(ctx, testApp(id)); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	ids, err := s.ListAppIDs(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Fatalf("ids ordenados esperados, got %v", ids)
	}

	if err := s.DeleteAppConfig(ctx, "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteAppConfig(ctx, "b"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("delete repetido: esperaba ErrNotFound, got %v", err)
	}
	if ok, _ := s.AppExists(ctx, "b"); ok {
		t.Fatalf("b no debería existir")
	}
}

func TestGetAppConfigsBatch(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.SaveAppConfig(ctx, testApp("a"))
	_ = s.SaveAppConfig(ctx, testApp("b"))

	got, err := s.GetAppConfigs(ctx, []string{"a", "zzz", "b"})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("los ids inexistentes no aparecen: %v", got)
	}
	if got["a"] == nil || got["b"] == nil {
		t.Fatalf("faltan entradas: %v", got)
	}
}

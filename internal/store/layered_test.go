package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dropDatabas3/sigil/internal/store/core"
	"github.com/dropDatabas3/sigil/internal/store/memstore"
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

// countingStore envuelve un core.Store y cuenta los GetAppConfig que le llegan.
type countingStore struct {
	core.Store
	gets int
}

func (c *countingStore) GetAppConfig(ctx context.Context, appID string) (*core.AppConfig, error) {
	c.gets++
	return c.Store.GetAppConfig(ctx, appID)
}

func TestLayeredReadThroughPopulatesFast(t *testing.T) {
	ctx := context.Background()
	auth := &countingStore{Store: memstore.New()}
	if err := auth.Store.SaveAppConfig(ctx, testApp("a1")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	l := NewLayered(memstore.New(), auth)

	for i := 0; i < 3; i++ {
		app, err := l.GetAppConfig(ctx, "a1")
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if app.AppID != "a1" {
			t.Fatalf("app: %+v", app)
		}
	}
	// sólo la primera lectura toca el autoritativo
	if auth.gets != 1 {
		t.Fatalf("gets al autoritativo: %d", auth.gets)
	}
}

func TestLayeredMissPropagatesNotFound(t *testing.T) {
	l := NewLayered(memstore.New(), memstore.New())
	_, err := l.GetAppConfig(context.Background(), "fantasma")
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("esperaba ErrNotFound: %v", err)
	}
}

func TestLayeredWriteInvalidatesFast(t *testing.T) {
	ctx := context.Background()
	auth := &countingStore{Store: memstore.New()}
	l := NewLayered(memstore.New(), auth)

	app := testApp("a1")
	if err := l.SaveAppConfig(ctx, app); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := l.GetAppConfig(ctx, "a1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	gets := auth.gets

	// un update debe invalidar el tier rápido: la próxima lectura
	// vuelve al autoritativo y ve el dato nuevo
	app.Name = "Renombrada"
	if err := l.SaveAppConfig(ctx, app); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := l.GetAppConfig(ctx, "a1")
	if err != nil {
		t.Fatalf("get post-update: %v", err)
	}
	if got.Name != "Renombrada" {
		t.Fatalf("lectura stale: %q", got.Name)
	}
	if auth.gets != gets+1 {
		t.Fatalf("la invalidación no forzó el read-through: %d vs %d", auth.gets, gets+1)
	}
}

func TestLayeredDeleteClearsBothTiers(t *testing.T) {
	ctx := context.Background()
	l := NewLayered(memstore.New(), memstore.New())
	if err := l.SaveAppConfig(ctx, testApp("a1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := l.GetAppConfig(ctx, "a1"); err != nil { // puebla el fast
		t.Fatalf("get: %v", err)
	}
	if err := l.DeleteAppConfig(ctx, "a1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := l.GetAppConfig(ctx, "a1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("borrada en ambos tiers: %v", err)
	}
}

func TestLayeredBatchMixesTiers(t *testing.T) {
	ctx := context.Background()
	auth := memstore.New()
	fast := memstore.New()
	_ = auth.SaveAppConfig(ctx, testApp("a1"))
	_ = auth.SaveAppConfig(ctx, testApp("a2"))
	_ = fast.SaveAppConfig(ctx, testApp("a1")) // ya cacheada
	l := NewLayered(fast, auth)

	out, err := l.GetAppConfigs(ctx, []string{"a1", "a2", "fantasma"})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(out) != 2 || out["a1"] == nil || out["a2"] == nil {
		t.Fatalf("batch: %v", out)
	}
	// a2 quedó poblada en el fast por el read-through
	if _, err := fast.GetAppConfig(ctx, "a2"); err != nil {
		t.Fatalf("a2 no pobló el fast: %v", err)
	}
}

func TestOpenCachesInstancesPerConfig(t *testing.T) {
	ResetForTests()
	t.Cleanup(ResetForTests)
	ctx := context.Background()

	a, err := Open(ctx, Config{Driver: "memory"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	b, err := Open(ctx, Config{Driver: "memory"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if a != b {
		t.Fatalf("misma config debe compartir instancia")
	}

	// config distinta => instancia distinta
	c, err := Open(ctx, Config{Driver: "memory", Layered: true})
	if err != nil {
		t.Fatalf("open layered: %v", err)
	}
	if c == a {
		t.Fatalf("configs distintas no deben compartir instancia")
	}
	if _, ok := c.(*Layered); !ok {
		t.Fatalf("layered: %T", c)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	ResetForTests()
	t.Cleanup(ResetForTests)

	_, err := Open(context.Background(), Config{Driver: "etcd"})
	if !errors.Is(err, core.ErrInvalid) {
		t.Fatalf("driver desconocido: %v", err)
	}
}

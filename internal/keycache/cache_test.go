package keycache

import (
	"fmt"
	"testing"
	"time"
)

func TestGetMissThenHit(t *testing.T) {
	c := New[string](10)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("esperaba miss en cache vacío")
	}
	c.Set("a", "v", 0)
	v, ok := c.Get("a")
	if !ok || v != "v" {
		t.Fatalf("esperaba hit con %q, got %q ok=%v", "v", v, ok)
	}
	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 {
		t.Fatalf("stats: hits=%d misses=%d", s.Hits, s.Misses)
	}
}

func TestLRUEvictsLeastRecentlyAccessed(t *testing.T) {
	c := New[int](3)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Set("c", 3, 0)

	// "a" se vuelve la más reciente: la víctima debe ser "b", no "a"
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("a debería estar")
	}
	c.Set("d", 4, 0)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("b era la menos recientemente accedida, debió salir")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := c.Get(k); !ok {
			t.Fatalf("%q debería seguir en el cache", k)
		}
	}
	if ev := c.Stats().Evictions; ev != 1 {
		t.Fatalf("evictions=%d, esperaba 1", ev)
	}
}

func TestExpiryIsLazyAndCountsMiss(t *testing.T) {
	c := New[string](10)
	c.Set("k", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	if c.Len() != 1 {
		t.Fatalf("la entrada expirada sigue hasta que alguien la toca")
	}
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expirada: esperaba miss")
	}
	if c.Len() != 0 {
		t.Fatalf("el Get debió evictar la expirada")
	}
}

func TestPerEntryTTLOverridesDefault(t *testing.T) {
	c := New(10, WithDefaultTTL[string](time.Millisecond))
	c.Set("forever", "v", -1) // ttl < 0: sin expiración
	c.Set("short", "v", 0)    // usa el default
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get("forever"); !ok {
		t.Fatalf("ttl negativo no debe expirar")
	}
	if _, ok := c.Get("short"); ok {
		t.Fatalf("el default TTL debió expirar la entrada")
	}
}

func TestCleanupReturnsCount(t *testing.T) {
	c := New[int](10)
	for i := 0; i < 4; i++ {
		c.Set(fmt.Sprintf("e%d", i), i, time.Millisecond)
	}
	c.Set("keep", 99, -1)
	time.Sleep(5 * time.Millisecond)

	if n := c.Cleanup(); n != 4 {
		t.Fatalf("cleanup=%d, esperaba 4", n)
	}
	if n := c.Cleanup(); n != 0 {
		t.Fatalf("cleanup repetido debe ser idempotente, got %d", n)
	}
	if c.Len() != 1 {
		t.Fatalf("len=%d, esperaba sólo keep", c.Len())
	}
}

func TestHitRateAfterRepeats(t *testing.T) {
	c := New[string](10)
	const n = 10
	c.Set("k", "v", 0)
	c.Get("nope") // 1 miss
	for i := 0; i < n; i++ {
		c.Get("k")
	}
	s := c.Stats()
	want := float64(n) / float64(n+1)
	if s.HitRate < want-0.001 || s.HitRate > want+0.001 {
		t.Fatalf("hit rate=%f, esperaba ~%f", s.HitRate, want)
	}
}

func TestResetStatsKeepsEntries(t *testing.T) {
	c := New[string](10)
	c.Set("k", "v", 0)
	c.Get("k")
	c.ResetStats()

	s := c.Stats()
	if s.Hits != 0 || s.Misses != 0 {
		t.Fatalf("stats no reseteadas: %+v", s)
	}
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("ResetStats no debe tocar las entradas")
	}
}

func TestNamedCacheKeys(t *testing.T) {
	if got := KeyCacheKey("app1/k1", "RS256"); got != "app1/k1:RS256" {
		t.Fatalf("KeyCacheKey = %q", got)
	}
	a := PEMCacheKey("-----BEGIN PUBLIC KEY-----\nAAA\n-----END PUBLIC KEY-----")
	b := PEMCacheKey("-----BEGIN PUBLIC KEY-----\nAAA\n-----END PUBLIC KEY-----")
	if a != b {
		t.Fatalf("PEMCacheKey debe ser determinística")
	}
	if a == PEMCacheKey("otra cosa") {
		t.Fatalf("PEMs distintos no deben colisionar")
	}
}

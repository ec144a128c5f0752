// Package keycache provee un cache genérico TTL+LRU con estadísticas.
// Dos caches nombrados comparten esta implementación: el de claves parseadas
// (keyId:algorithm → crypto.PublicKey) y el de PEMs normalizados
// (sha256(pem crudo) → PEM limpio).
package keycache

import (
	"container/list"
	"sync"
	"time"
)

// Cache es un cache TTL+LRU. Seguro para uso concurrente.
// La evicción al llegar a capacidad es LRU estricta: sale la entrada con el
// lastAccessed más viejo, no la insertada primero.
type Cache[V any] struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // frente = más recientemente accedida
	capacity   int
	defaultTTL time.Duration

	hits        int64
	misses      int64
	evictions   int64
	accessNanos int64
	accesses    int64
	approxBytes int64

	janitorStop chan struct{}
}

type entry[V any] struct {
	key          string
	value        V
	expiresAt    time.Time // cero = sin expiración
	lastAccessed time.Time
	accessCount  int64
	size         int64
}

// Stats son las estadísticas acumuladas. Consultables en cualquier momento
// sin resetear contadores.
type Stats struct {
	Hits           int64
	Misses         int64
	Evictions      int64
	Entries        int
	HitRate        float64
	AvgAccessNanos int64
	ApproxBytes    int64
}

// Option configura el cache.
type Option[V any] func(*Cache[V])

// WithDefaultTTL fija el TTL por defecto de las entradas. 0 = sin expiración.
func WithDefaultTTL[V any](ttl time.Duration) Option[V] {
	return func(c *Cache[V]) { c.defaultTTL = ttl }
}

// New crea un cache con capacidad máxima dada (0 = sin límite).
func New[V any](capacity int, opts ...Option[V]) *Cache[V] {
	c := &Cache[V]{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get retorna el valor y true si hay hit. Una entrada expirada cuenta como
// miss y se evicta perezosamente en el momento.
func (c *Cache[V]) Get(key string) (V, bool) {
	start := time.Now()
	c.mu.Lock()
	defer func() {
		c.accessNanos += time.Since(start).Nanoseconds()
		c.accesses++
		c.mu.Unlock()
	}()

	var zero V
	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return zero, false
	}
	e := el.Value.(*entry[V])
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.removeElement(el, false)
		c.misses++
		return zero, false
	}
	e.lastAccessed = time.Now()
	e.accessCount++
	c.order.MoveToFront(el)
	c.hits++
	return e.value, true
}

// Set inserta o reemplaza. ttl > 0 pisa el TTL por defecto del cache;
// ttl == 0 usa el default; ttl < 0 fuerza sin expiración.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.SetSized(key, value, ttl, 0)
}

// SetSized es Set con un tamaño estimado en bytes para las estadísticas.
func (c *Cache[V]) SetSized(key string, value V, ttl time.Duration, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	effTTL := ttl
	if effTTL == 0 {
		effTTL = c.defaultTTL
	}
	var exp time.Time
	if effTTL > 0 {
		exp = time.Now().Add(effTTL)
	}

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry[V])
		c.approxBytes += size - e.size
		e.value = value
		e.expiresAt = exp
		e.lastAccessed = time.Now()
		e.size = size
		c.order.MoveToFront(el)
		return
	}

	if c.capacity > 0 && len(c.entries) >= c.capacity {
		c.evictOldest()
	}

	e := &entry[V]{key: key, value: value, expiresAt: exp, lastAccessed: time.Now(), size: size}
	c.entries[key] = c.order.PushFront(e)
	c.approxBytes += size
}

// Delete invalida una entrada. Retorna true si existía.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeElement(el, false)
	return true
}

// Purge vacía el cache sin tocar las estadísticas.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.approxBytes = 0
}

// Len retorna la cantidad de entradas (incluidas expiradas todavía no barridas).
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Cleanup barre las entradas expiradas. Idempotente; retorna cuántas sacó.
func (c *Cache[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	cleaned := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		e := el.Value.(*entry[V])
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			c.removeElement(el, false)
			cleaned++
		}
		el = prev
	}
	return cleaned
}

// StartJanitor corre Cleanup cada interval hasta StopJanitor.
func (c *Cache[V]) StartJanitor(interval time.Duration) {
	c.mu.Lock()
	if c.janitorStop != nil {
		c.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	c.janitorStop = stop
	c.mu.Unlock()

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				c.Cleanup()
			case <-stop:
				return
			}
		}
	}()
}

// StopJanitor detiene el barrido periódico.
func (c *Cache[V]) StopJanitor() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.janitorStop != nil {
		close(c.janitorStop)
		c.janitorStop = nil
	}
}

// Stats retorna un snapshot de las estadísticas.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Entries:     len(c.entries),
		ApproxBytes: c.approxBytes,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	if c.accesses > 0 {
		s.AvgAccessNanos = c.accessNanos / c.accesses
	}
	return s
}

// ResetStats pone los contadores en cero. Es una operación explícita,
// separada de Stats.
func (c *Cache[V]) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits, c.misses, c.evictions = 0, 0, 0
	c.accessNanos, c.accesses = 0, 0
}

// evictOldest saca la entrada con lastAccessed más viejo.
// El orden de la lista ya refleja recencia de acceso (MoveToFront en Get/Set),
// así que el back es siempre el candidato correcto.
func (c *Cache[V]) evictOldest() {
	if el := c.order.Back(); el != nil {
		c.removeElement(el, true)
	}
}

func (c *Cache[V]) removeElement(el *list.Element, evicted bool) {
	e := el.Value.(*entry[V])
	delete(c.entries, e.key)
	c.order.Remove(el)
	c.approxBytes -= e.size
	if evicted {
		c.evictions++
	}
}

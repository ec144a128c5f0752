// Package perf registra timings de operaciones de verificación, dispara
// alertas por umbral y produce reportes agregados. Instancia explícita,
// contadores atómicos: los call sites son concurrentes.
package perf

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/sigil/internal/observability/logger"
)

// Alert describe una operación que superó su umbral.
type Alert struct {
	Operation string
	Duration  time.Duration
	Threshold time.Duration
	At        time.Time
}

// AlertFunc recibe alertas. Se invoca inline desde Track: debe ser barata.
type AlertFunc func(Alert)

// Options configura el monitor.
type Options struct {
	// Thresholds por operación; cero => sin alerta para esa operación.
	Thresholds map[string]time.Duration
	// DefaultThreshold aplica a operaciones sin umbral propio.
	DefaultThreshold time.Duration
	// OnAlert, opcional. Las alertas siempre se loguean además por zap.
	OnAlert AlertFunc
}

// opStats acumula por operación. Los campos se tocan sólo con atomics.
type opStats struct {
	count      atomic.Int64
	failures   atomic.Int64
	totalNanos atomic.Int64
	maxNanos   atomic.Int64
	alerts     atomic.Int64
}

// Monitor acumula estadísticas por nombre de operación.
type Monitor struct {
	mu    sync.RWMutex
	ops   map[string]*opStats
	opts  Options
	now   func() time.Time
	since func(time.Time) time.Duration
}

func New(opts Options) *Monitor {
	return &Monitor{
		ops:   make(map[string]*opStats),
		opts:  opts,
		now:   time.Now,
		since: time.Since,
	}
}

func (m *Monitor) stats(op string) *opStats {
	m.mu.RLock()
	s := m.ops[op]
	m.mu.RUnlock()
	if s != nil {
		return s
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s = m.ops[op]; s == nil {
		s = &opStats{}
		m.ops[op] = s
	}
	return s
}

// Track cronometra fn bajo el nombre dado. Reemplaza la instrumentación
// por decorador: envolver explícitamente la operación a medir.
func (m *Monitor) Track(op string, fn func() error) error {
	start := m.now()
	err := fn()
	m.Record(op, m.since(start), err == nil)
	return err
}

// Record registra una medición ya tomada.
func (m *Monitor) Record(op string, d time.Duration, ok bool) {
	s := m.stats(op)
	s.count.Add(1)
	s.totalNanos.Add(int64(d))
	if !ok {
		s.failures.Add(1)
	}
	for {
		cur := s.maxNanos.Load()
		if int64(d) <= cur || s.maxNanos.CompareAndSwap(cur, int64(d)) {
			break
		}
	}

	threshold := m.opts.Thresholds[op]
	if threshold == 0 {
		threshold = m.opts.DefaultThreshold
	}
	if threshold > 0 && d > threshold {
		s.alerts.Add(1)
		a := Alert{Operation: op, Duration: d, Threshold: threshold, At: m.now()}
		logger.L().Warn("operation over threshold",
			logger.Op(op), logger.Duration(d), zap.Duration("threshold", threshold))
		if m.opts.OnAlert != nil {
			m.opts.OnAlert(a)
		}
		recordAlertMetric(op)
	}
	recordOpMetric(op, d, ok)
}

// OpReport es el agregado por operación.
type OpReport struct {
	Operation string        `json:"operation"`
	Count     int64         `json:"count"`
	Failures  int64         `json:"failures"`
	Average   time.Duration `json:"average"`
	Max       time.Duration `json:"max"`
	Alerts    int64         `json:"alerts"`
}

// Report retorna el agregado de todas las operaciones, ordenado por nombre.
// Los contadores son best-effort bajo carrera; nunca corruptos.
func (m *Monitor) Report() []OpReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]OpReport, 0, len(m.ops))
	for name, s := range m.ops {
		r := OpReport{
			Operation: name,
			Count:     s.count.Load(),
			Failures:  s.failures.Load(),
			Max:       time.Duration(s.maxNanos.Load()),
			Alerts:    s.alerts.Load(),
		}
		if r.Count > 0 {
			r.Average = time.Duration(s.totalNanos.Load() / r.Count)
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operation < out[j].Operation })
	return out
}

// Reset limpia todos los acumuladores. Pensado para tests.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.ops = make(map[string]*opStats)
	m.mu.Unlock()
}

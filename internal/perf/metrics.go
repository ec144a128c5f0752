package perf

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricsOnce sync.Once
	metricsErr  error

	verifyOpsTotal   *prometheus.CounterVec
	verifyOpDuration *prometheus.HistogramVec
	thresholdAlerts  *prometheus.CounterVec
)

// RegisterMetrics registra las métricas de verificación y devuelve el
// handler para /metrics. Idempotente: la segunda llamada reutiliza los
// collectors ya registrados.
func RegisterMetrics(registry prometheus.Registerer) (http.Handler, error) {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	metricsOnce.Do(func() {
		verifyOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signature_operations_total",
			Help: "Operaciones de verificación por resultado",
		}, []string{"operation", "result"})

		verifyOpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signature_operation_duration_seconds",
			Help:    "Duración de operaciones de verificación",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"})

		thresholdAlerts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signature_threshold_alerts_total",
			Help: "Alertas por operación sobre umbral",
		}, []string{"operation"})

		for _, c := range []prometheus.Collector{verifyOpsTotal, verifyOpDuration, thresholdAlerts} {
			if err := registry.Register(c); err != nil {
				metricsErr = err
				return
			}
		}
	})
	if metricsErr != nil {
		return nil, metricsErr
	}
	return promhttp.Handler(), nil
}

func recordOpMetric(op string, d time.Duration, ok bool) {
	if verifyOpsTotal == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	verifyOpsTotal.WithLabelValues(op, result).Inc()
	verifyOpDuration.WithLabelValues(op).Observe(d.Seconds())
}

func recordAlertMetric(op string) {
	if thresholdAlerts == nil {
		return
	}
	thresholdAlerts.WithLabelValues(op).Inc()
}

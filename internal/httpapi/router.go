package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/sigil/internal/engine"
	"github.com/dropDatabas3/sigil/internal/observability/logger"
	"github.com/dropDatabas3/sigil/internal/perf"
)

// RouterOptions agrupa las dependencias del router.
type RouterOptions struct {
	Engine   *engine.Engine
	Registry prometheus.Registerer
	// Mount registra las rutas de la aplicación bajo el middleware de
	// firma. El shim no conoce los handlers de negocio.
	Mount func(r chi.Router)
}

// NewRouter arma el router: health y /metrics abiertos, todo lo demás
// detrás de SignatureAuth.
func NewRouter(opts RouterOptions) (http.Handler, error) {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/stats/cache", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"keys": opts.Engine.KeyCacheStats(),
			"pems": opts.Engine.PEMCacheStats(),
		})
	})

	metricsHandler, err := perf.RegisterMetrics(opts.Registry)
	if err != nil {
		return nil, err
	}
	r.Handle("/metrics", metricsHandler)

	r.Group(func(r chi.Router) {
		r.Use(SignatureAuth(opts.Engine))
		if opts.Mount != nil {
			opts.Mount(r)
		}
	})

	return r, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L().Warn("response encode failed", logger.Err(err))
	}
}

// Start levanta el server. Bloquea hasta que el listener cierre.
func Start(addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler}
	return srv.ListenAndServe()
}

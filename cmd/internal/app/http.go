package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	authapi "authsidecar/cmd/internal/auth/api"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

type indexResponse struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

type routerDeps struct {
	log     Logger
	cfg     Config
	metrics *Metrics
	auth    *authapi.Handler
	// ready holds the stores /readyz must reach. Empty means always ready.
	ready map[string]Pinger
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(WithRequestID)
	r.Use(func(next http.Handler) http.Handler { return WithRequestLogging(next, d.log, d.metrics) })
	r.Use(func(next http.Handler) http.Handler { return WithRecover(next, d.log) })
	r.Use(WithSecurityHeaders)
	r.Use(func(next http.Handler) http.Handler { return WithCORS(next, d.cfg, d.log) })

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Service: d.cfg.ServiceName, Version: d.cfg.Version})
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.cfg.ReadinessRequireDB && d.cfg.DatabaseURL == "" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db_not_configured"})
			return
		}
		for name, p := range d.ready {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			err := p.Ping(ctx)
			cancel()
			if err != nil {
				d.log.Info("readyz.not_ready", "store", name, "err", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": name + "_not_ready"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	if d.metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.metrics.Handler())
	}

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		var endpoints map[string]string
		if d.auth != nil {
			endpoints = d.auth.Endpoints()
		}
		writeJSON(w, http.StatusOK, indexResponse{Name: d.cfg.ServiceName, Version: d.cfg.Version, Endpoints: endpoints})
	})

	if d.auth != nil {
		d.auth.Register(r)
	}
	return r
}

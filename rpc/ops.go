package rpc

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OpsHandler serves the operational surface: health probes and Prometheus
// metrics. It is mounted on a separate listener so the RPC port can be
// firewalled independently.
func OpsHandler(st healthSource) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "ok",
			"pending": st.PendingCount(),
		})
	})
	router.Handle("/metrics", promhttp.Handler())
	return router
}

type healthSource interface {
	PendingCount() int
}

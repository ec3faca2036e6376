// Package api exposes the operational HTTP surface: health probes, Prometheus
// metrics and a debug snapshot of live sessions.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gridpulse/gridpulse/internal/log"
	"github.com/gridpulse/gridpulse/internal/timing/model"
)

// Deps are the read-only hooks the router serves from.
type Deps struct {
	// States snapshots every live session.
	States func() []*model.SessionState
	// Ready reports whether the transport connection is up.
	Ready func() bool
}

// NewRouter builds the HTTP handler.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if deps.Ready != nil && !deps.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/debug/sessions", func(w http.ResponseWriter, _ *http.Request) {
		var states []*model.SessionState
		if deps.States != nil {
			states = deps.States()
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(states); err != nil {
			logger := log.WithComponent("api")
			logger.Warn().Err(err).Msg("encoding debug snapshot failed")
		}
	})
	return r
}

package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	magickit "github.com/magickit/go-magickit-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const defaultStatsWindow = time.Hour

func newRouter(c *magickit.Cache, logger zerolog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	h := &handlers{cache: c, logger: logger}

	r.Get("/healthz", h.health)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/stats", func(r chi.Router) {
		r.Get("/", h.stats)
		r.Get("/performance", h.performance)
		r.Get("/realtime", h.realtime)
	})
	return r
}

type handlers struct {
	cache  *magickit.Cache
	logger zerolog.Logger
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"backendConnected": h.cache.BackendConnected(),
		"entries":          h.cache.Len(),
	})
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, h.cache.Stats(r.Context()))
}

// performance accepts optional RFC 3339 "from" and "to" and an "endpoint" filter.
func (h *handlers) performance(w http.ResponseWriter, r *http.Request) {
	now := h.cache.Clock().Now()
	from, to := now.Add(-defaultStatsWindow), now

	q := r.URL.Query()
	var err error
	if v := q.Get("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			h.respond(w, http.StatusBadRequest, map[string]string{"error": "invalid from: " + err.Error()})
			return
		}
	}
	if v := q.Get("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			h.respond(w, http.StatusBadRequest, map[string]string{"error": "invalid to: " + err.Error()})
			return
		}
	}

	stats, err := h.cache.Monitor.GetPerformanceStats(r.Context(), from, to, q.Get("endpoint"))
	if err != nil {
		h.logger.Error().Err(err).Msg("performance stats")
		h.respond(w, http.StatusInternalServerError, map[string]string{"error": "performance stats unavailable"})
		return
	}
	h.respond(w, http.StatusOK, stats)
}

func (h *handlers) realtime(w http.ResponseWriter, r *http.Request) {
	rt, err := h.cache.Monitor.GetRealTimeMetrics(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("realtime metrics")
		h.respond(w, http.StatusInternalServerError, map[string]string{"error": "realtime metrics unavailable"})
		return
	}
	h.respond(w, http.StatusOK, rt)
}

func (h *handlers) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn().Err(err).Msg("write response")
	}
}

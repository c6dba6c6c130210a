package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	rootMessage = "Mussel backend is running"

	// healthCheckTimeout bounds each dependency check in /health.
	healthCheckTimeout = 3 * time.Second

	defaultWSPath = "/ws"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/", s.handleRoot)

	if s.metricsCfg.Enabled && s.collector != nil {
		path := s.metricsCfg.Path
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, s.collector.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system", s.handleSystem)

		r.Get("/data", s.handleData)
		r.Get("/latest", s.handleLatest)
		r.Get("/status", s.handleStatus)

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", s.handleGetSettings)
			r.Post("/", s.handleUpdateSettings)
		})

		r.Get("/commands", s.handleListCommands)

		wsPath := s.wsCfg.Path
		if wsPath == "" {
			wsPath = defaultWSPath
		}
		r.Get(wsPath, s.handleWebSocket)
	})

	return r
}

// handleRoot answers the liveness check used by the dashboard.
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": rootMessage})
}

// handleHealth reports database and broker health. Any failing dependency
// turns the response into a 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	record := func(name string, err error) {
		if err != nil {
			checks[name] = err.Error()
			healthy = false
			return
		}
		checks[name] = "ok"
	}

	if s.db != nil {
		record("database", s.db.HealthCheck(ctx))
	}
	if s.mqtt != nil {
		record("mqtt", s.mqtt.HealthCheck(ctx))
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
		"checks":  checks,
	})
}

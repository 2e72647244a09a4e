package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gridswitch/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Prometheus exposition (no auth, scraped by the monitoring stack)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// WebSocket authenticates with ?token= inside the handler
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.With(s.requirePermission(auth.PermDirectoryRead)).Get("/metrics", s.handleSystemMetrics)

			r.Route("/directory", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermDirectoryRead)).Get("/", s.handleGetDirectory)
				r.With(s.requirePermission(auth.PermDirectoryRefresh)).Post("/refresh", s.handleRefreshDirectory)
			})

			r.With(s.requirePermission(auth.PermDirectoryRead)).Get("/grid", s.handleGetGrid)
			r.With(s.requirePermission(auth.PermCommandSend)).Post("/commands", s.handleSendCommand)
			r.With(s.requirePermission(auth.PermDeviceProbe)).Get("/devices/{id}/sysinfo", s.handleDeviceSysInfo)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.directory.Snapshot()
	body := map[string]any{
		"status":            "ok",
		"version":           s.version,
		"directory_entries": snap.Len(),
	}
	if !snap.RefreshedAt().IsZero() {
		body["directory_refreshed_at"] = snap.RefreshedAt().UTC().Format(timeFormat)
	}
	if s.mqtt != nil {
		body["mqtt_connected"] = s.mqtt.IsConnected()
	}
	writeJSON(w, http.StatusOK, body)
}

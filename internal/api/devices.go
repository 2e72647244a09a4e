package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// probeTimeout bounds a single sysinfo request.
const probeTimeout = 5 * time.Second

// handleDeviceSysInfo asks one plug for its system information.
func (s *Server) handleDeviceSysInfo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	address, ok := s.directory.Snapshot().Lookup(id)
	if !ok || address == "" {
		writeNotFound(w, "unknown device "+id)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	info, err := s.devices.SysInfo(ctx, address)
	if err != nil {
		s.logger.Warn("device probe failed", "id", id, "address", address, "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"address": address,
		"sysinfo": info,
	})
}

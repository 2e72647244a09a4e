package api

import (
	"net/http"
	"runtime"
	"strconv"
	"time"
)

// SystemMetrics is the JSON summary served on /api/v1/metrics.
// Counters and histograms live on the Prometheus /metrics endpoint.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	MQTT          *MQTTMetrics     `json:"mqtt,omitempty"`
	Directory     DirectoryMetrics `json:"directory"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// DirectoryMetrics describes the current snapshot.
type DirectoryMetrics struct {
	Entries        int     `json:"entries"`
	AgeSeconds     float64 `json:"age_seconds"`
	GridPositions  int     `json:"grid_positions"`
	GridResolvable int     `json:"grid_resolvable"`
}

func (s *Server) handleSystemMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	now := time.Now()
	metrics := SystemMetrics{
		Timestamp:     now.UTC().Format(timeFormat),
		Version:       s.version,
		UptimeSeconds: int64(now.Sub(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.Hub().ClientCount(),
		},
	}

	if s.mqtt != nil {
		metrics.MQTT = &MQTTMetrics{Connected: s.mqtt.IsConnected()}
	}

	snap := s.directory.Snapshot()
	metrics.Directory = DirectoryMetrics{
		Entries:       snap.Len(),
		GridPositions: s.resolver.Rows() * s.resolver.Columns(),
	}
	if at := snap.RefreshedAt(); !at.IsZero() {
		metrics.Directory.AgeSeconds = now.Sub(at).Seconds()
	}
	for row := range s.resolver.Rows() {
		for _, id := range s.resolver.RowIDs(strconv.Itoa(row)) {
			if addr, ok := snap.Lookup(id); ok && addr != "" {
				metrics.Directory.GridResolvable++
			}
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}

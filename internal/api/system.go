package api

import (
	"net/http"
	"runtime"
	"time"
)

const bytesPerMB = 1024 * 1024

// SystemStats is the response of GET /api/v1/system.
type SystemStats struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeStats   `json:"runtime"`
	WebSocket     WSStats        `json:"websocket"`
	MQTT          MQTTStats      `json:"mqtt"`
	Database      *DatabaseStats `json:"database,omitempty"`
	Telemetry     TelemetryStats `json:"telemetry"`
	Commands      *CommandStats  `json:"commands,omitempty"`
}

// RuntimeStats contains Go runtime statistics.
type RuntimeStats struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSStats contains WebSocket hub statistics.
type WSStats struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTStats reports the broker connection.
type MQTTStats struct {
	Connected bool `json:"connected"`
}

// DatabaseStats contains connection pool statistics.
type DatabaseStats struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// TelemetryStats describes the live cache.
type TelemetryStats struct {
	HasSnapshot bool       `json:"has_snapshot"`
	LastSample  *time.Time `json:"last_sample,omitempty"`
}

// CommandStats reports the publish circuit breaker.
type CommandStats struct {
	Breaker string `json:"breaker"`
}

// handleSystem returns runtime and connection statistics.
func (s *Server) handleSystem(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := SystemStats{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeStats{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / bytesPerMB,
			MemoryTotalMB: float64(memStats.TotalAlloc) / bytesPerMB,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSStats{ConnectedClients: s.Hub().ClientCount()},
	}

	if s.mqtt != nil {
		stats.MQTT.Connected = s.mqtt.IsConnected()
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		stats.Database = &DatabaseStats{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	if snapshot, ok := s.cache.Read(); ok {
		stats.Telemetry.HasSnapshot = true
		stats.Telemetry.LastSample = &snapshot.ReceivedAt
	}

	if s.breaker != nil {
		stats.Commands = &CommandStats{Breaker: s.breaker.BreakerState()}
	}

	writeJSON(w, http.StatusOK, stats)
}

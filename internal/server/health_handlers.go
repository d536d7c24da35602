package server

import (
	"net/http"
	"os"
	"time"
)

// HealthStatus represents operational status for the /api/health endpoint.
type HealthStatus struct {
	Status     string                 `json:"status"`
	Timestamp  time.Time              `json:"timestamp"`
	Uptime     string                 `json:"uptime"`
	Database   string                 `json:"database"`
	Storage    string                 `json:"storage"`
	Tracks     int                    `json:"trackCount"`
	Ingest     bool                   `json:"ingestEnabled"`
	QueueDepth int                    `json:"ingestQueueDepth"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// handleHealthCheck returns basic liveness + dependency checks.
func (ms *MusicServer) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	health := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Uptime:    time.Since(ms.startedAt).Round(time.Second).String(),
		Database:  "ok",
		Storage:   "ok",
		Ingest:    ms.jobs != nil,
		Details:   make(map[string]interface{}),
	}

	if err := ms.db.Ping(); err != nil {
		health.Status = "unhealthy"
		health.Database = "error"
		health.Details["database_error"] = err.Error()
	} else if count, err := ms.db.CountTracks(); err != nil {
		health.Details["track_count_error"] = err.Error()
	} else {
		health.Tracks = count
	}

	if err := ms.checkStorageHealth(); err != nil {
		health.Status = "unhealthy"
		health.Storage = "error"
		health.Details["storage_error"] = err.Error()
	}

	if ms.jobs != nil {
		health.QueueDepth = ms.jobs.QueueDepth()
	}

	status := http.StatusOK
	if health.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	ms.respondJSON(w, status, health)
}

// checkStorageHealth verifies the media directory is still there.
func (ms *MusicServer) checkStorageHealth() error {
	info, err := os.Stat(ms.storage.Dir())
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &os.PathError{Op: "stat", Path: ms.storage.Dir(), Err: os.ErrInvalid}
	}
	return nil
}

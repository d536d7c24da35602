package models

import "time"

// JobStatus represents the lifecycle of an ingest job
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// IngestJob tracks one asynchronous song ingestion
type IngestJob struct {
	ID          string     `json:"id"`
	VideoID     string     `json:"videoId"`
	RequestedBy string     `json:"requestedBy,omitempty"`
	Status      JobStatus  `json:"status"`
	Category    string     `json:"category,omitempty"`
	Error       string     `json:"error,omitempty"`
	TrackID     string     `json:"trackId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

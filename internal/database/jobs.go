package database

import (
	"database/sql"

	"echovia/pkg/models"
)

// UpsertIngestJob inserts or updates an ingest job record by ID.
func (db *Database) UpsertIngestJob(job models.IngestJob) error {
	_, err := db.conn.Exec(`
		INSERT INTO ingest_jobs (id, video_id, requested_by, status, category, error, track_id, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status=excluded.status,
			category=excluded.category,
			error=excluded.error,
			track_id=excluded.track_id,
			completed_at=excluded.completed_at
	`, job.ID, job.VideoID, job.RequestedBy, string(job.Status), job.Category, job.Error,
		job.TrackID, job.CreatedAt, job.CompletedAt)
	if err != nil {
		db.logger.WithError(err).WithField("job_id", job.ID).Error("Failed to persist ingest job")
	}
	return err
}

// GetIngestJobs returns persisted jobs, newest first
func (db *Database) GetIngestJobs(limit int) ([]models.IngestJob, error) {
	rows, err := db.conn.Query(`
		SELECT id, video_id, COALESCE(requested_by, ''), status, COALESCE(category, ''),
			COALESCE(error, ''), COALESCE(track_id, ''), created_at, completed_at
		FROM ingest_jobs
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []models.IngestJob{}
	for rows.Next() {
		var (
			job       models.IngestJob
			status    string
			completed sql.NullTime
		)
		if err := rows.Scan(&job.ID, &job.VideoID, &job.RequestedBy, &status, &job.Category,
			&job.Error, &job.TrackID, &job.CreatedAt, &completed); err != nil {
			return nil, err
		}
		job.Status = models.JobStatus(status)
		if completed.Valid {
			t := completed.Time
			job.CompletedAt = &t
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

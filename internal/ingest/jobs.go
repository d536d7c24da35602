package ingest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"echovia/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrQueueFull is returned when no more jobs can be accepted
var ErrQueueFull = errors.New("ingest queue is full")

// JobStore persists job records. *database.Database satisfies it.
type JobStore interface {
	UpsertIngestJob(job models.IngestJob) error
}

type queuedJob struct {
	id  string
	req Request
}

// JobManager runs ingests in the background on a fixed worker pool
type JobManager struct {
	pipeline *Pipeline
	store    JobStore
	jobs     map[string]*models.IngestJob
	jobsMux  sync.RWMutex
	queue    chan queuedJob
	workers  int
	wg       sync.WaitGroup
	logger   *logrus.Logger
}

// NewJobManager creates a manager with the given pool size and queue depth
func NewJobManager(pipeline *Pipeline, store JobStore, workers, queueSize int, logger *logrus.Logger) *JobManager {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 16
	}
	return &JobManager{
		pipeline: pipeline,
		store:    store,
		jobs:     make(map[string]*models.IngestJob),
		queue:    make(chan queuedJob, queueSize),
		workers:  workers,
		logger:   logger,
	}
}

// Start launches the workers. They exit when ctx is cancelled; Wait blocks
// until they have.
func (m *JobManager) Start(ctx context.Context) {
	for i := range m.workers {
		m.wg.Add(1)
		go m.worker(ctx, i)
	}
}

// Wait blocks until all workers have exited
func (m *JobManager) Wait() {
	m.wg.Wait()
}

// Submit enqueues an ingest and returns its pending job record
func (m *JobManager) Submit(req Request, requestedBy string) (models.IngestJob, error) {
	videoID, err := CleanVideoID(req.VideoID)
	if err != nil {
		return models.IngestJob{}, err
	}

	job := &models.IngestJob{
		ID:          uuid.New().String(),
		VideoID:     videoID,
		RequestedBy: requestedBy,
		Status:      models.JobPending,
		CreatedAt:   time.Now().UTC(),
	}

	m.jobsMux.Lock()
	select {
	case m.queue <- queuedJob{id: job.ID, req: req}:
		m.jobs[job.ID] = job
	default:
		m.jobsMux.Unlock()
		return models.IngestJob{}, ErrQueueFull
	}
	snapshot := *job
	m.jobsMux.Unlock()

	m.persist(snapshot)
	return snapshot, nil
}

func (m *JobManager) worker(ctx context.Context, n int) {
	defer m.wg.Done()
	log := m.logger.WithField("worker", n)

	for {
		select {
		case <-ctx.Done():
			return
		case qj := <-m.queue:
			m.update(qj.id, func(j *models.IngestJob) { j.Status = models.JobRunning })

			result, err := m.pipeline.Add(ctx, qj.req)

			m.update(qj.id, func(j *models.IngestJob) {
				now := time.Now().UTC()
				j.CompletedAt = &now
				if err != nil {
					j.Status = models.JobFailed
					j.Category = string(CategoryOf(err))
					j.Error = err.Error()
					return
				}
				j.Status = models.JobCompleted
				j.TrackID = result.Track.ID
			})
			log.WithField("job_id", qj.id).Debug("Ingest job finished")
		}
	}
}

// update mutates a job under lock and persists the result
func (m *JobManager) update(id string, fn func(*models.IngestJob)) {
	m.jobsMux.Lock()
	job, ok := m.jobs[id]
	if !ok {
		m.jobsMux.Unlock()
		return
	}
	fn(job)
	snapshot := *job
	m.jobsMux.Unlock()

	m.persist(snapshot)
}

func (m *JobManager) persist(job models.IngestJob) {
	if m.store == nil {
		return
	}
	if err := m.store.UpsertIngestJob(job); err != nil {
		m.logger.WithError(err).WithField("job_id", job.ID).Warn("Failed to persist ingest job")
	}
}

// GetJob returns a copy of a job by ID
func (m *JobManager) GetJob(id string) (models.IngestJob, bool) {
	m.jobsMux.RLock()
	defer m.jobsMux.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return models.IngestJob{}, false
	}
	return *job, true
}

// GetAllJobs returns copies of all known jobs, newest first
func (m *JobManager) GetAllJobs() []models.IngestJob {
	m.jobsMux.RLock()
	jobs := make([]models.IngestJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, *job)
	}
	m.jobsMux.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// QueueDepth returns the number of jobs waiting for a worker
func (m *JobManager) QueueDepth() int {
	return len(m.queue)
}

// CleanupCompletedJobs forgets finished jobs older than maxAge. Their
// persisted records stay.
func (m *JobManager) CleanupCompletedJobs(maxAge time.Duration) int {
	m.jobsMux.Lock()
	defer m.jobsMux.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, job := range m.jobs {
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}

package server

import (
	"errors"
	"net/http"
	"time"

	"echovia/internal/catalog"
	"echovia/internal/database"
	"echovia/internal/ingest"
	"echovia/pkg/models"

	"github.com/samber/lo"
)

const (
	completedJobRetention = time.Hour
	jobHistoryLimit       = 50
)

// handleAddSong runs the ingest pipeline and answers once the song is saved
func (ms *MusicServer) handleAddSong(w http.ResponseWriter, r *http.Request) {
	req, ok := ms.decodeIngestRequest(w, r)
	if !ok {
		return
	}

	result, err := ms.pipeline.Add(r.Context(), req)
	if err != nil {
		ms.respondWithIngestError(w, r, err)
		return
	}

	ms.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Song added successfully",
		"song":       result.Track,
		"uploadType": result.UploadType(),
	})
}

// handleAddSongAsync queues the ingest and returns the pending job
func (ms *MusicServer) handleAddSongAsync(w http.ResponseWriter, r *http.Request) {
	req, ok := ms.decodeIngestRequest(w, r)
	if !ok {
		return
	}

	job, err := ms.jobs.Submit(req, currentUser(r).ID)
	if err != nil {
		if errors.Is(err, ingest.ErrQueueFull) {
			ms.respondWithError(w, r, http.StatusServiceUnavailable, "Ingest queue is full, try again later", err)
			return
		}
		ms.respondWithIngestError(w, r, err)
		return
	}

	ms.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Song queued",
		"job":     job,
	})
}

func (ms *MusicServer) decodeIngestRequest(w http.ResponseWriter, r *http.Request) (ingest.Request, bool) {
	if ms.pipeline == nil || ms.jobs == nil {
		ms.respondWithError(w, r, http.StatusServiceUnavailable, "Song ingestion is disabled", nil)
		return ingest.Request{}, false
	}

	var req ingest.Request
	if ve := decodeJSON(r, &req); ve != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*ve})
		return ingest.Request{}, false
	}
	req.VideoID = sanitizeInput(req.VideoID)
	req.Artist = sanitizeInput(req.Artist)
	req.Genre = sanitizeInput(req.Genre)
	req.ThumbnailURL = sanitizeInput(req.ThumbnailURL)

	var errs []ValidationError
	if req.VideoID == "" {
		errs = append(errs, ValidationError{Field: "videoId", Message: "Video ID is required", Code: "MISSING_VIDEO_ID"})
	}
	if ve := validateURL("thumbnailUrl", req.ThumbnailURL, true); ve != nil {
		errs = append(errs, *ve)
	}
	if len(errs) > 0 {
		ms.respondWithValidationError(w, r, errs)
		return ingest.Request{}, false
	}
	return req, true
}

// respondWithIngestError maps an ingest failure to its category's status
func (ms *MusicServer) respondWithIngestError(w http.ResponseWriter, r *http.Request, err error) {
	category := ingest.CategoryOf(err)
	message := "Failed to add song"
	var ie *ingest.Error
	if errors.As(err, &ie) && ie.Message != "" {
		message = ie.Message
	}
	ms.respondWithErrorFields(w, r, category.HTTPStatus(), message, err, map[string]interface{}{
		"category": category,
	})
}

// handleGetJobs lists ingest jobs, newest first. Old finished jobs are
// dropped from memory on the way.
func (ms *MusicServer) handleGetJobs(w http.ResponseWriter, r *http.Request) {
	if ms.jobs == nil {
		ms.respondWithError(w, r, http.StatusServiceUnavailable, "Song ingestion is disabled", nil)
		return
	}
	if n := ms.jobs.CleanupCompletedJobs(completedJobRetention); n > 0 {
		ms.logger.WithField("removed", n).Debug("Cleaned up finished ingest jobs")
	}

	// Jobs from before a restart only survive in the database.
	jobs := ms.jobs.GetAllJobs()
	if history, err := ms.db.GetIngestJobs(jobHistoryLimit); err != nil {
		ms.logger.WithError(err).Warn("Failed to load ingest job history")
	} else {
		jobs = lo.UniqBy(append(jobs, history...), func(j models.IngestJob) string { return j.ID })
	}

	ms.respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":       jobs,
		"queueDepth": ms.jobs.QueueDepth(),
	})
}

func (ms *MusicServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if ms.jobs == nil {
		ms.respondWithError(w, r, http.StatusServiceUnavailable, "Song ingestion is disabled", nil)
		return
	}
	job, ok := ms.jobs.GetJob(r.PathValue("id"))
	if !ok {
		ms.respondWithError(w, r, http.StatusNotFound, "Job not found", nil)
		return
	}
	ms.respondJSON(w, http.StatusOK, map[string]interface{}{"job": job})
}

// handleGetAllSongs returns the catalog newest first, from cache when warm
func (ms *MusicServer) handleGetAllSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := ms.allSongs()
	if err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error retrieving songs", err)
		return
	}
	ms.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Songs retrieved successfully",
		"songs":   songs,
	})
}

func (ms *MusicServer) allSongs() ([]models.Track, error) {
	if songs, ok := ms.catalog.AllSongs(); ok {
		return songs, nil
	}
	songs, err := ms.db.GetAllTracks()
	if err != nil {
		return nil, err
	}
	ms.catalog.SetAllSongs(songs)
	return songs, nil
}

// handleSearchSongs ranks the catalog by fuzzy title/artist match
func (ms *MusicServer) handleSearchSongs(w http.ResponseWriter, r *http.Request) {
	query := sanitizeInput(r.URL.Query().Get("q"))
	if ve := validateSearchQuery(query); ve != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*ve})
		return
	}

	songs, err := ms.allSongs()
	if err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error searching songs", err)
		return
	}
	if query != "" {
		songs = catalog.Search(songs, query, catalog.DefaultThreshold)
	}
	ms.respondJSON(w, http.StatusOK, map[string]interface{}{
		"query": query,
		"songs": songs,
	})
}

func (ms *MusicServer) handleGetSong(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if ve := validateID("id", id); ve != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*ve})
		return
	}

	song, err := ms.db.GetTrackByID(id)
	if err != nil {
		ms.respondWithLookupError(w, r, "Song not found", err)
		return
	}
	ms.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Song retrieved successfully",
		"song":    song,
	})
}

// respondWithLookupError answers 404 for missing rows and 500 otherwise
func (ms *MusicServer) respondWithLookupError(w http.ResponseWriter, r *http.Request, notFound string, err error) {
	if errors.Is(err, database.ErrNotFound) {
		ms.respondWithError(w, r, http.StatusNotFound, notFound, nil)
		return
	}
	ms.respondWithError(w, r, http.StatusInternalServerError, "Internal server error", err)
}

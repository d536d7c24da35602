package server

import (
	"errors"
	"net/http"

	"echovia/internal/auth"
	"echovia/internal/catalog"
	"echovia/pkg/models"

	"github.com/sirupsen/logrus"
)

// handleChangeRole lets an admin promote or demote another account. The
// auth service applies the role rules; this only maps their outcome.
func (ms *MusicServer) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email   string      `json:"email"`
		NewRole models.Role `json:"newRole"`
	}
	if ve := decodeJSON(r, &req); ve != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*ve})
		return
	}
	req.Email = sanitizeInput(req.Email)
	if req.Email == "" || req.NewRole == "" {
		ms.respondWithValidationError(w, r, []ValidationError{{
			Field:   "email",
			Message: "Email and newRole are required",
			Code:    "MISSING_FIELDS",
		}})
		return
	}

	user, err := ms.auth.ChangeRole(currentUser(r), req.Email, req.NewRole)
	if err != nil {
		ms.respondWithError(w, r, changeRoleStatus(err), err.Error(), nil)
		return
	}

	ms.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "User role updated successfully",
		"user":    user,
	})
}

func changeRoleStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrInvalidRole), errors.Is(err, auth.ErrRoleUnchanged):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// handleUpdateSong edits a song's metadata. Empty fields are left as they
// are; a new thumbnail is relayed and replaces the stored one.
func (ms *MusicServer) handleUpdateSong(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if ve := validateID("id", id); ve != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*ve})
		return
	}

	var req struct {
		Title        string `json:"title"`
		Artist       string `json:"artist"`
		Genre        string `json:"genre"`
		ThumbnailURL string `json:"thumbnailUrl"`
	}
	if ve := decodeJSON(r, &req); ve != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*ve})
		return
	}
	req.Title = sanitizeInput(req.Title)
	req.Artist = sanitizeInput(req.Artist)
	req.Genre = sanitizeInput(req.Genre)
	req.ThumbnailURL = sanitizeInput(req.ThumbnailURL)
	if ve := validateURL("thumbnailUrl", req.ThumbnailURL, true); ve != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*ve})
		return
	}

	song, err := ms.db.GetTrackByID(id)
	if err != nil {
		ms.respondWithLookupError(w, r, "Song not found", err)
		return
	}

	if req.Title != "" {
		song.Title = req.Title
	}
	if req.Artist != "" {
		song.Artist = req.Artist
	}
	if req.Genre != "" {
		song.Genre = catalog.NormalizeGenre(req.Genre)
	}

	oldThumbnail := song.ThumbnailURL
	if req.ThumbnailURL != "" && req.ThumbnailURL != oldThumbnail {
		thumbnail, err := ms.relayImage(r, req.ThumbnailURL)
		if err != nil {
			ms.respondWithIngestError(w, r, err)
			return
		}
		song.ThumbnailURL = thumbnail
	}

	if err := ms.db.UpdateTrack(song); err != nil {
		if song.ThumbnailURL != oldThumbnail {
			ms.removeMedia(song.ThumbnailURL)
		}
		ms.respondWithLookupError(w, r, "Song not found", err)
		return
	}
	if song.ThumbnailURL != oldThumbnail {
		ms.removeMedia(oldThumbnail)
	}
	ms.catalog.InvalidateSongs()

	ms.logger.WithFields(logrus.Fields{
		"song_id": song.ID,
		"by":      currentUser(r).ID,
	}).Info("Song updated")

	ms.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Song updated successfully",
		"song":    song,
	})
}

// handleDeleteSong removes a song, its playlist and album memberships and
// any media stored for it.
func (ms *MusicServer) handleDeleteSong(w http.ResponseWriter, r *http.Request) {
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
	if err := ms.db.DeleteTrack(id); err != nil {
		ms.respondWithLookupError(w, r, "Song not found", err)
		return
	}
	ms.removeMedia(song.StreamURL)
	ms.removeMedia(song.ThumbnailURL)
	ms.catalog.InvalidateSongs()

	ms.logger.WithFields(logrus.Fields{
		"song_id": song.ID,
		"title":   song.Title,
		"by":      currentUser(r).ID,
	}).Info("Song deleted")

	ms.respondJSON(w, http.StatusOK, map[string]string{"message": "Song deleted successfully"})
}

func (ms *MusicServer) handleGetAllUsers(w http.ResponseWriter, r *http.Request) {
	users, err := ms.db.ListUsers()
	if err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error retrieving users", err)
		return
	}
	ms.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Users fetched successfully",
		"users":   users,
	})
}

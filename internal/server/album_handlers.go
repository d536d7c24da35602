package server

import (
	"context"
	"errors"
	"net/http"

	"echovia/internal/database"
	"echovia/internal/media"

	"github.com/sirupsen/logrus"
)

// ImageRelay copies a remote image into media storage
type ImageRelay interface {
	RelayImage(ctx context.Context, src string) (media.Stored, error)
}

// handleCreateAlbum creates an album with a relayed cover image
func (ms *MusicServer) handleCreateAlbum(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string `json:"name"`
		Artist       string `json:"artist"`
		ThumbnailURL string `json:"thumbnailUrl"`
	}
	if ve := decodeJSON(r, &req); ve != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*ve})
		return
	}
	req.Name = sanitizeInput(req.Name)
	req.Artist = sanitizeInput(req.Artist)
	req.ThumbnailURL = sanitizeInput(req.ThumbnailURL)

	errs := collect(
		validateName("name", req.Name),
		validateName("artist", req.Artist),
		validateURL("thumbnailUrl", req.ThumbnailURL, true),
	)
	if len(errs) > 0 {
		ms.respondWithValidationError(w, r, errs)
		return
	}

	thumbnail, err := ms.relayImage(r, req.ThumbnailURL)
	if err != nil {
		ms.respondWithIngestError(w, r, err)
		return
	}

	album, err := ms.db.CreateAlbum(req.Name, req.Artist, thumbnail)
	if err != nil {
		ms.removeMedia(thumbnail)
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error creating album", err)
		return
	}
	ms.catalog.InvalidateAlbums()

	ms.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Album created successfully",
		"album":   album,
	})
}

// handleAddSongToAlbum appends a song. Unlike playlists a duplicate is an
// error.
func (ms *MusicServer) handleAddSongToAlbum(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AlbumID string `json:"albumId"`
		SongID  string `json:"songId"`
	}
	if ve := decodeJSON(r, &req); ve != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*ve})
		return
	}
	if errs := collect(validateID("albumId", req.AlbumID), validateID("songId", req.SongID)); len(errs) > 0 {
		ms.respondWithValidationError(w, r, errs)
		return
	}

	err := ms.db.AddTrackToAlbum(req.AlbumID, req.SongID)
	switch {
	case errors.Is(err, database.ErrDuplicate):
		ms.respondWithError(w, r, http.StatusBadRequest, "Song already exists in album", nil)
		return
	case err != nil:
		ms.respondWithLookupError(w, r, "Album or song not found", err)
		return
	}
	ms.catalog.InvalidateAlbums()

	album, err := ms.db.GetAlbum(req.AlbumID)
	if err != nil {
		ms.respondWithLookupError(w, r, "Album not found", err)
		return
	}
	ms.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Song added to album successfully",
		"album":   album,
	})
}

func (ms *MusicServer) handleRemoveSongFromAlbum(w http.ResponseWriter, r *http.Request) {
	albumID, songID := r.PathValue("albumId"), r.PathValue("songId")
	if errs := collect(validateID("albumId", albumID), validateID("songId", songID)); len(errs) > 0 {
		ms.respondWithValidationError(w, r, errs)
		return
	}

	if err := ms.db.RemoveTrackFromAlbum(albumID, songID); err != nil {
		ms.respondWithLookupError(w, r, "Song not in album", err)
		return
	}
	ms.catalog.InvalidateAlbums()

	album, err := ms.db.GetAlbum(albumID)
	if err != nil {
		ms.respondWithLookupError(w, r, "Album not found", err)
		return
	}
	ms.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Song removed from album successfully",
		"album":   album,
	})
}

// handleDeleteAlbum removes an album and its stored cover
func (ms *MusicServer) handleDeleteAlbum(w http.ResponseWriter, r *http.Request) {
	albumID := r.PathValue("albumId")
	if ve := validateID("albumId", albumID); ve != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*ve})
		return
	}

	album, err := ms.db.GetAlbum(albumID)
	if err != nil {
		ms.respondWithLookupError(w, r, "Album not found", err)
		return
	}
	if err := ms.db.DeleteAlbum(albumID); err != nil {
		ms.respondWithLookupError(w, r, "Album not found", err)
		return
	}
	ms.removeMedia(album.ThumbnailURL)
	ms.catalog.InvalidateAlbums()

	ms.respondJSON(w, http.StatusOK, map[string]string{"message": "Album deleted successfully"})
}

func (ms *MusicServer) handleGetAllAlbums(w http.ResponseWriter, r *http.Request) {
	albums, ok := ms.catalog.AllAlbums()
	if !ok {
		var err error
		albums, err = ms.db.GetAllAlbums()
		if err != nil {
			ms.respondWithError(w, r, http.StatusInternalServerError, "Error retrieving albums", err)
			return
		}
		ms.catalog.SetAllAlbums(albums)
	}
	ms.respondJSON(w, http.StatusOK, map[string]interface{}{"albums": albums})
}

func (ms *MusicServer) handleGetAlbumSongs(w http.ResponseWriter, r *http.Request) {
	albumID := r.PathValue("albumId")
	if ve := validateID("albumId", albumID); ve != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*ve})
		return
	}

	if songs, ok := ms.catalog.AlbumTracks(albumID); ok {
		ms.respondJSON(w, http.StatusOK, map[string]interface{}{"songs": songs})
		return
	}
	if _, err := ms.db.GetAlbum(albumID); err != nil {
		ms.respondWithLookupError(w, r, "Album not found", err)
		return
	}
	songs, err := ms.db.GetAlbumTracks(albumID)
	if err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error retrieving album songs", err)
		return
	}
	ms.catalog.SetAlbumTracks(albumID, songs)
	ms.respondJSON(w, http.StatusOK, map[string]interface{}{"songs": songs})
}

func (ms *MusicServer) handleGetAlbum(w http.ResponseWriter, r *http.Request) {
	albumID := r.PathValue("albumId")
	if ve := validateID("albumId", albumID); ve != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*ve})
		return
	}

	album, err := ms.db.GetAlbum(albumID)
	if err != nil {
		ms.respondWithLookupError(w, r, "Album not found", err)
		return
	}
	ms.respondJSON(w, http.StatusOK, map[string]interface{}{"album": album})
}

// relayImage stores a remote image locally. Local and empty URLs pass
// through. A failed relay keeps the remote URL unless relays are strict.
func (ms *MusicServer) relayImage(r *http.Request, src string) (string, error) {
	if src == "" || ms.images == nil || ms.storage.IsLocal(src) {
		return src, nil
	}
	stored, err := ms.images.RelayImage(r.Context(), src)
	if err != nil {
		if ms.config.Ingest.StrictRelay {
			return "", err
		}
		ms.logger.WithError(err).WithField("url", src).Warn("Image relay failed, keeping remote URL")
		return src, nil
	}
	return stored.URL, nil
}

// removeMedia deletes a locally stored file, ignoring remote URLs
func (ms *MusicServer) removeMedia(url string) {
	if url == "" {
		return
	}
	if err := ms.storage.Remove(url); err != nil {
		ms.logger.WithError(err).WithFields(logrus.Fields{"url": url}).Warn("Failed to remove media")
	}
}

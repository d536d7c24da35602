package server

import (
	"net/http"

	"echovia/internal/catalog"
	"echovia/pkg/models"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// handleCreatePlaylist creates an empty playlist owned by the caller
func (ms *MusicServer) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if ve := decodeJSON(r, &req); ve != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*ve})
		return
	}
	req.Name = sanitizeInput(req.Name)
	if ve := validateName("name", req.Name); ve != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*ve})
		return
	}

	playlist, err := ms.db.CreatePlaylist(req.Name, currentUser(r).ID)
	if err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error creating playlist", err)
		return
	}

	ms.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":  "Playlist created successfully",
		"playlist": playlist,
	})
}

// handleAddSongToPlaylist appends a song. Adding a song twice is a no-op.
func (ms *MusicServer) handleAddSongToPlaylist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlaylistID string `json:"playlistId"`
		SongID     string `json:"songId"`
	}
	if ve := decodeJSON(r, &req); ve != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*ve})
		return
	}
	if errs := collect(validateID("playlistId", req.PlaylistID), validateID("songId", req.SongID)); len(errs) > 0 {
		ms.respondWithValidationError(w, r, errs)
		return
	}

	playlist, ok := ms.ownedPlaylist(w, r, req.PlaylistID)
	if !ok {
		return
	}
	if err := ms.db.AddTrackToPlaylist(playlist.ID, req.SongID); err != nil {
		ms.respondWithLookupError(w, r, "Song not found", err)
		return
	}

	playlist, err := ms.db.GetPlaylist(playlist.ID)
	if err != nil {
		ms.respondWithLookupError(w, r, "Playlist not found", err)
		return
	}
	ms.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Song added to playlist successfully",
		"playlist": playlist,
	})
}

// handleGetPlaylists lists the caller's playlists
func (ms *MusicServer) handleGetPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := ms.db.GetPlaylistsByOwner(currentUser(r).ID)
	if err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error retrieving playlists", err)
		return
	}
	ms.respondJSON(w, http.StatusOK, map[string]interface{}{"playlists": playlists})
}

// handlePlaylistPath serves /api/playlist/genre/{genre} and
// /api/playlist/{playlistId}/songs.
func (ms *MusicServer) handlePlaylistPath(w http.ResponseWriter, r *http.Request) {
	first, second := r.PathValue("first"), r.PathValue("second")
	switch {
	case first == "genre":
		ms.handleGetGenreSongs(w, r, second)
	case second == "songs":
		ms.handleGetPlaylistSongs(w, r, first)
	default:
		http.NotFound(w, r)
	}
}

func (ms *MusicServer) handleGetPlaylistSongs(w http.ResponseWriter, r *http.Request, playlistID string) {
	if ve := validateID("playlistId", playlistID); ve != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*ve})
		return
	}
	if _, ok := ms.ownedPlaylist(w, r, playlistID); !ok {
		return
	}

	songs, err := ms.db.GetPlaylistTracks(playlistID)
	if err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error retrieving playlist songs", err)
		return
	}
	ms.respondJSON(w, http.StatusOK, map[string]interface{}{"songs": songs})
}

// handleGetGenreSongs lists songs of one genre. Unknown genres are read as
// Other, the same way ingestion stores them.
func (ms *MusicServer) handleGetGenreSongs(w http.ResponseWriter, r *http.Request, genre string) {
	genre = catalog.NormalizeGenre(genre)

	songs, ok := ms.catalog.Genre(genre)
	if !ok {
		var err error
		songs, err = ms.db.GetTracksByGenre(genre)
		if err != nil {
			ms.respondWithError(w, r, http.StatusInternalServerError, "Error retrieving songs", err)
			return
		}
		ms.catalog.SetGenre(genre, songs)
	}
	ms.respondJSON(w, http.StatusOK, map[string]interface{}{
		"genre": genre,
		"songs": songs,
	})
}

func (ms *MusicServer) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	playlistID := r.PathValue("playlistId")
	if ve := validateID("playlistId", playlistID); ve != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*ve})
		return
	}
	if _, ok := ms.ownedPlaylist(w, r, playlistID); !ok {
		return
	}

	if err := ms.db.DeletePlaylist(playlistID); err != nil {
		ms.respondWithLookupError(w, r, "Playlist not found", err)
		return
	}
	ms.respondJSON(w, http.StatusOK, map[string]string{"message": "Playlist deleted successfully"})
}

func (ms *MusicServer) handleRemoveSongFromPlaylist(w http.ResponseWriter, r *http.Request) {
	playlistID, songID := r.PathValue("playlistId"), r.PathValue("songId")
	if errs := collect(validateID("playlistId", playlistID), validateID("songId", songID)); len(errs) > 0 {
		ms.respondWithValidationError(w, r, errs)
		return
	}
	if _, ok := ms.ownedPlaylist(w, r, playlistID); !ok {
		return
	}

	if err := ms.db.RemoveTrackFromPlaylist(playlistID, songID); err != nil {
		ms.respondWithLookupError(w, r, "Song not in playlist", err)
		return
	}

	playlist, err := ms.db.GetPlaylist(playlistID)
	if err != nil {
		ms.respondWithLookupError(w, r, "Playlist not found", err)
		return
	}
	ms.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Song removed from playlist successfully",
		"playlist": playlist,
	})
}

// ownedPlaylist loads a playlist and checks the caller owns it. It has
// already responded when ok is false.
func (ms *MusicServer) ownedPlaylist(w http.ResponseWriter, r *http.Request, id string) (models.Playlist, bool) {
	playlist, err := ms.db.GetPlaylist(id)
	if err != nil {
		ms.respondWithLookupError(w, r, "Playlist not found", err)
		return models.Playlist{}, false
	}

	user := currentUser(r)
	if playlist.CreatedBy != user.ID {
		ms.logger.WithFields(logrus.Fields{
			"playlist_id": id,
			"user_id":     user.ID,
		}).Warn("Playlist access denied")
		ms.respondWithError(w, r, http.StatusForbidden, "Forbidden", nil)
		return models.Playlist{}, false
	}
	return playlist, true
}

// collect gathers the non-nil validation errors
func collect(errs ...*ValidationError) []ValidationError {
	return lo.FilterMap(errs, func(ve *ValidationError, _ int) (ValidationError, bool) {
		if ve == nil {
			return ValidationError{}, false
		}
		return *ve, true
	})
}

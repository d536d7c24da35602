package server

import (
	"net/http"

	"echovia/internal/player"
)

// handleGetPlayerState returns the caller's saved playback state. A user
// who never saved gets the defaults.
func (ms *MusicServer) handleGetPlayerState(w http.ResponseWriter, r *http.Request) {
	state, err := ms.db.PlaybackStore(currentUser(r).ID).Load()
	if err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error loading player state", err)
		return
	}
	ms.respondPlayerState(w, state)
}

// handleUpdatePlayerState replaces the saved state. Out-of-range values are
// clamped rather than rejected.
func (ms *MusicServer) handleUpdatePlayerState(w http.ResponseWriter, r *http.Request) {
	var state player.Persisted
	if ve := decodeJSON(r, &state); ve != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*ve})
		return
	}
	state = normalizePlayerState(state)

	if err := ms.db.PlaybackStore(currentUser(r).ID).Save(state); err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error saving player state", err)
		return
	}
	ms.respondPlayerState(w, state)
}

// handleClearPlayerState purges the saved state
func (ms *MusicServer) handleClearPlayerState(w http.ResponseWriter, r *http.Request) {
	if err := ms.db.PlaybackStore(currentUser(r).ID).Clear(); err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error clearing player state", err)
		return
	}
	ms.respondJSON(w, http.StatusOK, map[string]string{"message": "Player state cleared"})
}

func (ms *MusicServer) respondPlayerState(w http.ResponseWriter, state player.Persisted) {
	ms.respondJSON(w, http.StatusOK, map[string]interface{}{
		"state":  state,
		"volume": state.VolumeOrDefault(),
	})
}

func normalizePlayerState(s player.Persisted) player.Persisted {
	if s.Volume != nil {
		v := min(max(*s.Volume, 0), 100)
		s.Volume = &v
	}
	switch {
	case len(s.Queue) == 0 || s.Index < 0:
		s.Index = 0
	case s.Index >= len(s.Queue):
		s.Index = len(s.Queue) - 1
	}
	if s.Position < 0 {
		s.Position = 0
	}
	return s
}

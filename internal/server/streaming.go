package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"echovia/internal/metadata"
)

// handleStreamMedia serves a stored audio file or image. Range requests
// and conditional requests are handled by http.ServeContent.
func (ms *MusicServer) handleStreamMedia(w http.ResponseWriter, r *http.Request) {
	path, err := ms.storage.Resolve(r.PathValue("file"))
	if err != nil {
		ms.respondWithError(w, r, http.StatusBadRequest, "Invalid media name", err)
		return
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			ms.respondWithError(w, r, http.StatusNotFound, "Media not found", nil)
			return
		}
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error opening media", err)
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil || stat.IsDir() {
		ms.respondWithError(w, r, http.StatusNotFound, "Media not found", err)
		return
	}

	// Stored names are never reused, so the content can be cached for long.
	w.Header().Set("Content-Type", metadata.ContentType(path))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("ETag", fmt.Sprintf(`"%d-%d"`, stat.ModTime().Unix(), stat.Size()))

	http.ServeContent(w, r, stat.Name(), stat.ModTime(), file)
}

package ingest

import (
	"strings"

	"github.com/kkdai/youtube/v2"
)

// CleanVideoID accepts a bare video id or any YouTube URL form and returns
// the id.
func CleanVideoID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", newError(CategoryInvalidInput, "video id is required", nil)
	}
	id, err := youtube.ExtractVideoID(ref)
	if err != nil {
		return "", newError(CategoryInvalidInput, "invalid video reference", err)
	}
	return id, nil
}

package models

import "time"

// Track represents a playable song in the catalog
type Track struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Artist       string    `json:"artist"`
	Genre        string    `json:"genre"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	StreamURL    string    `json:"streamUrl,omitempty"`
	AudioURL     string    `json:"audioUrl,omitempty"`
	Duration     int       `json:"duration"` // in seconds, a hint only
	CreatedAt    time.Time `json:"createdAt"`
}

// MediaURL returns the locator the player should load: the stream URL when
// present, the audio URL otherwise.
func (t Track) MediaURL() string {
	if t.StreamURL != "" {
		return t.StreamURL
	}
	return t.AudioURL
}

// SameAs reports whether two tracks refer to the same song. Tracks with ids
// compare by id; otherwise title and artist must both match.
func (t Track) SameAs(o Track) bool {
	if t.ID != "" && o.ID != "" {
		return t.ID == o.ID
	}
	return t.Title == o.Title && t.Artist == o.Artist
}

// Playlist represents a user-created playlist
type Playlist struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CreatedBy  string    `json:"createdBy"`
	TrackCount int       `json:"trackCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Album is an admin-curated collection of tracks by one artist
type Album struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Artist       string    `json:"artist"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	TrackCount   int       `json:"trackCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"echovia/pkg/models"

	"github.com/google/uuid"
)

// CreatePlaylist creates an empty playlist owned by owner
func (db *Database) CreatePlaylist(name, owner string) (models.Playlist, error) {
	p := models.Playlist{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedBy: owner,
		CreatedAt: time.Now().UTC(),
	}
	_, err := db.conn.Exec(`
		INSERT INTO playlists (id, name, created_by, created_at)
		VALUES (?, ?, ?, ?)`,
		p.ID, p.Name, p.CreatedBy, p.CreatedAt)
	if err != nil {
		db.logger.WithError(err).WithField("owner", owner).Error("Failed to create playlist")
		return models.Playlist{}, err
	}
	return p, nil
}

// GetPlaylistsByOwner returns the playlists created by owner with their
// track counts
func (db *Database) GetPlaylistsByOwner(owner string) ([]models.Playlist, error) {
	rows, err := db.conn.Query(`
		SELECT p.id, p.name, p.created_by, p.created_at, COUNT(pt.track_id) as track_count
		FROM playlists p
		LEFT JOIN playlist_tracks pt ON p.id = pt.playlist_id
		WHERE p.created_by = ?
		GROUP BY p.id
		ORDER BY p.created_at DESC, p.rowid DESC`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	playlists := []models.Playlist{}
	for rows.Next() {
		var p models.Playlist
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedBy, &p.CreatedAt, &p.TrackCount); err != nil {
			return nil, err
		}
		playlists = append(playlists, p)
	}
	return playlists, rows.Err()
}

// GetPlaylist returns one playlist by id
func (db *Database) GetPlaylist(id string) (models.Playlist, error) {
	var p models.Playlist
	err := db.conn.QueryRow(`
		SELECT p.id, p.name, p.created_by, p.created_at,
			(SELECT COUNT(*) FROM playlist_tracks WHERE playlist_id = p.id)
		FROM playlists p WHERE p.id = ?`, id).
		Scan(&p.ID, &p.Name, &p.CreatedBy, &p.CreatedAt, &p.TrackCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Playlist{}, fmt.Errorf("playlist %s: %w", id, ErrNotFound)
		}
		return models.Playlist{}, err
	}
	return p, nil
}

// GetPlaylistTracks returns tracks for a playlist ordered by stored position.
func (db *Database) GetPlaylistTracks(playlistID string) ([]models.Track, error) {
	rows, err := db.conn.Query(`
		SELECT t.id, t.title, t.artist, t.genre, COALESCE(t.thumbnail_url, ''), t.stream_url,
			COALESCE(t.audio_url, ''), t.duration, t.created_at
		FROM tracks t
		JOIN playlist_tracks pt ON t.id = pt.track_id
		WHERE pt.playlist_id = ?
		ORDER BY pt.position`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrackRows(rows)
}

// AddTrackToPlaylist appends a track to the end of a playlist. Adding a
// track that is already present is a no-op.
func (db *Database) AddTrackToPlaylist(playlistID, trackID string) error {
	return db.WithTx(func(tx *sql.Tx) error {
		if err := ensureExists(tx, "playlists", playlistID); err != nil {
			return err
		}
		if err := ensureExists(tx, "tracks", trackID); err != nil {
			return err
		}

		var maxPosition sql.NullInt64
		if err := tx.QueryRow(`
			SELECT MAX(position) FROM playlist_tracks WHERE playlist_id = ?`,
			playlistID).Scan(&maxPosition); err != nil {
			return err
		}

		position := 1
		if maxPosition.Valid {
			position = int(maxPosition.Int64) + 1
		}

		_, err := tx.Exec(`
			INSERT INTO playlist_tracks (playlist_id, track_id, position)
			VALUES (?, ?, ?)
			ON CONFLICT(playlist_id, track_id) DO NOTHING`,
			playlistID, trackID, position)
		return err
	})
}

// RemoveTrackFromPlaylist removes a specific track from the given playlist.
func (db *Database) RemoveTrackFromPlaylist(playlistID, trackID string) error {
	_, err := db.conn.Exec(`
		DELETE FROM playlist_tracks
		WHERE playlist_id = ? AND track_id = ?`,
		playlistID, trackID)
	return err
}

// DeletePlaylist deletes the playlist; its memberships cascade
func (db *Database) DeletePlaylist(playlistID string) error {
	res, err := db.conn.Exec("DELETE FROM playlists WHERE id = ?", playlistID)
	if err != nil {
		return err
	}
	if err := affectedOne(res); err != nil {
		return fmt.Errorf("playlist %s: %w", playlistID, err)
	}
	return nil
}

// ensureExists maps a missing parent row to ErrNotFound so callers get a
// 404 instead of a foreign key failure
func ensureExists(tx *sql.Tx, table, id string) error {
	var count int
	if err := tx.QueryRow("SELECT COUNT(*) FROM "+table+" WHERE id = ?", id).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%s %s: %w", table, id, ErrNotFound)
	}
	return nil
}

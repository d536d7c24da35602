package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"echovia/pkg/models"

	"github.com/google/uuid"
)

const albumSelect = `
	SELECT a.id, a.name, a.artist, a.thumbnail_url, a.created_at,
		(SELECT COUNT(*) FROM album_tracks WHERE album_id = a.id)
	FROM albums a`

// CreateAlbum stores a new, empty album
func (db *Database) CreateAlbum(name, artist, thumbnailURL string) (models.Album, error) {
	a := models.Album{
		ID:           uuid.NewString(),
		Name:         name,
		Artist:       artist,
		ThumbnailURL: thumbnailURL,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := db.conn.Exec(`
		INSERT INTO albums (id, name, artist, thumbnail_url, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Artist, a.ThumbnailURL, a.CreatedAt)
	if err != nil {
		db.logger.WithError(err).WithField("name", name).Error("Failed to create album")
		return models.Album{}, err
	}
	return a, nil
}

// GetAllAlbums returns every album, newest first
func (db *Database) GetAllAlbums() ([]models.Album, error) {
	rows, err := db.conn.Query(albumSelect + ` ORDER BY a.created_at DESC, a.rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	albums := []models.Album{}
	for rows.Next() {
		a, err := scanAlbum(rows)
		if err != nil {
			return nil, err
		}
		albums = append(albums, a)
	}
	return albums, rows.Err()
}

// GetAlbum returns one album by id
func (db *Database) GetAlbum(id string) (models.Album, error) {
	a, err := scanAlbum(db.conn.QueryRow(albumSelect+` WHERE a.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Album{}, fmt.Errorf("album %s: %w", id, ErrNotFound)
		}
		return models.Album{}, err
	}
	return a, nil
}

// GetAlbumTracks returns the album's tracks in the order they were added
func (db *Database) GetAlbumTracks(albumID string) ([]models.Track, error) {
	rows, err := db.conn.Query(`
		SELECT t.id, t.title, t.artist, t.genre, COALESCE(t.thumbnail_url, ''), t.stream_url,
			COALESCE(t.audio_url, ''), t.duration, t.created_at
		FROM tracks t
		JOIN album_tracks al ON t.id = al.track_id
		WHERE al.album_id = ?
		ORDER BY al.position`, albumID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrackRows(rows)
}

// AddTrackToAlbum appends a track. Unlike playlists, adding a track twice
// is an error: ErrDuplicate.
func (db *Database) AddTrackToAlbum(albumID, trackID string) error {
	err := db.WithTx(func(tx *sql.Tx) error {
		if err := ensureExists(tx, "albums", albumID); err != nil {
			return err
		}
		if err := ensureExists(tx, "tracks", trackID); err != nil {
			return err
		}

		var position int
		if err := tx.QueryRow(`
			SELECT COALESCE(MAX(position), 0) + 1 FROM album_tracks WHERE album_id = ?`,
			albumID).Scan(&position); err != nil {
			return err
		}

		_, err := tx.Exec(`
			INSERT INTO album_tracks (album_id, track_id, position) VALUES (?, ?, ?)`,
			albumID, trackID, position)
		return err
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("track %s in album %s: %w", trackID, albumID, ErrDuplicate)
	}
	return err
}

// RemoveTrackFromAlbum drops one membership
func (db *Database) RemoveTrackFromAlbum(albumID, trackID string) error {
	res, err := db.conn.Exec(`
		DELETE FROM album_tracks WHERE album_id = ? AND track_id = ?`,
		albumID, trackID)
	if err != nil {
		return err
	}
	if err := affectedOne(res); err != nil {
		return fmt.Errorf("track %s in album %s: %w", trackID, albumID, err)
	}
	return nil
}

// DeleteAlbum removes an album; memberships cascade
func (db *Database) DeleteAlbum(id string) error {
	res, err := db.conn.Exec("DELETE FROM albums WHERE id = ?", id)
	if err != nil {
		return err
	}
	if err := affectedOne(res); err != nil {
		return fmt.Errorf("album %s: %w", id, err)
	}
	return nil
}

func scanAlbum(row rowScanner) (models.Album, error) {
	var a models.Album
	err := row.Scan(&a.ID, &a.Name, &a.Artist, &a.ThumbnailURL, &a.CreatedAt, &a.TrackCount)
	return a, err
}

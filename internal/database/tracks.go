package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"echovia/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const trackColumns = `id, title, artist, genre, COALESCE(thumbnail_url, ''), stream_url, COALESCE(audio_url, ''), duration, created_at`

// InsertTrack stores a new track, assigning its id and creation time
func (db *Database) InsertTrack(track models.Track) (models.Track, error) {
	if track.ID == "" {
		track.ID = uuid.NewString()
	}
	if track.CreatedAt.IsZero() {
		track.CreatedAt = time.Now().UTC()
	}

	_, err := db.insertTrackStmt.Exec(
		track.ID, track.Title, track.Artist, track.Genre, track.ThumbnailURL,
		track.StreamURL, track.AudioURL, track.Duration, track.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Track{}, fmt.Errorf("track %s: %w", track.ID, ErrDuplicate)
		}
		db.logger.WithError(err).WithField("title", track.Title).Error("Failed to insert track")
		return models.Track{}, err
	}

	return track, nil
}

// GetAllTracks returns every track, newest first
func (db *Database) GetAllTracks() ([]models.Track, error) {
	rows, err := db.conn.Query(`
		SELECT ` + trackColumns + `
		FROM tracks
		ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrackRows(rows)
}

// GetTracksByGenre returns tracks of one genre, newest first
func (db *Database) GetTracksByGenre(genre string) ([]models.Track, error) {
	rows, err := db.conn.Query(`
		SELECT `+trackColumns+`
		FROM tracks
		WHERE genre = ?
		ORDER BY created_at DESC, rowid DESC`, genre)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrackRows(rows)
}

// GetTrackByID returns a single track by its ID.
func (db *Database) GetTrackByID(id string) (models.Track, error) {
	track, err := scanTrack(db.getTrackByIDStmt.QueryRow(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Track{}, fmt.Errorf("track %s: %w", id, ErrNotFound)
		}
		db.logger.WithError(err).WithField("track_id", id).Error("Failed to get track by ID")
		return models.Track{}, err
	}
	return track, nil
}

// UpdateTrack overwrites the editable fields of a track
func (db *Database) UpdateTrack(track models.Track) error {
	res, err := db.conn.Exec(`
		UPDATE tracks
		SET title = ?, artist = ?, genre = ?, thumbnail_url = ?, stream_url = ?, audio_url = ?, duration = ?
		WHERE id = ?`,
		track.Title, track.Artist, track.Genre, track.ThumbnailURL,
		track.StreamURL, track.AudioURL, track.Duration, track.ID)
	if err != nil {
		db.logger.WithError(err).WithField("track_id", track.ID).Error("Failed to update track")
		return err
	}
	if err := affectedOne(res); err != nil {
		return fmt.Errorf("track %s: %w", track.ID, err)
	}
	return nil
}

// DeleteTrack removes a track; playlist and album memberships cascade
func (db *Database) DeleteTrack(id string) error {
	res, err := db.conn.Exec("DELETE FROM tracks WHERE id = ?", id)
	if err != nil {
		db.logger.WithError(err).WithField("track_id", id).Error("Failed to delete track")
		return err
	}
	if err := affectedOne(res); err != nil {
		return fmt.Errorf("track %s: %w", id, err)
	}

	db.logger.WithFields(logrus.Fields{"track_id": id}).Info("Deleted track")
	return nil
}

// CountTracks returns the catalog size
func (db *Database) CountTracks() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM tracks").Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(row rowScanner) (models.Track, error) {
	var t models.Track
	err := row.Scan(&t.ID, &t.Title, &t.Artist, &t.Genre, &t.ThumbnailURL,
		&t.StreamURL, &t.AudioURL, &t.Duration, &t.CreatedAt)
	return t, err
}

// scanTrackRows scans standard track result sets into a slice of
// models.Track. Callers must have already deferred rows.Close().
func scanTrackRows(rows *sql.Rows) ([]models.Track, error) {
	tracks := []models.Track{}
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

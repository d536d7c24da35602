package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"echovia/internal/player"
	"echovia/pkg/models"
)

// PlaybackStore persists one owner's playback state. It is the sqlite
// implementation of player.Store, used by the terminal player for its local
// state and by the server for web clients.
type PlaybackStore struct {
	db    *Database
	owner string
}

var _ player.Store = (*PlaybackStore)(nil)

// PlaybackStore returns the store for owner
func (db *Database) PlaybackStore(owner string) *PlaybackStore {
	return &PlaybackStore{db: db, owner: owner}
}

// Load returns the saved state, or a zero value when nothing was saved
func (s *PlaybackStore) Load() (player.Persisted, error) {
	var (
		trackJSON sql.NullString
		queueJSON sql.NullString
		volume    sql.NullInt64
		p         player.Persisted
	)
	err := s.db.conn.QueryRow(`
		SELECT track_json, queue_json, current_index, position, volume
		FROM playback_state WHERE owner = ?`, s.owner).
		Scan(&trackJSON, &queueJSON, &p.Index, &p.Position, &volume)
	if errors.Is(err, sql.ErrNoRows) {
		return player.Persisted{}, nil
	}
	if err != nil {
		return player.Persisted{}, fmt.Errorf("load playback state: %w", err)
	}

	if trackJSON.Valid && trackJSON.String != "" {
		var t models.Track
		if err := json.Unmarshal([]byte(trackJSON.String), &t); err != nil {
			return player.Persisted{}, fmt.Errorf("decode current track: %w", err)
		}
		p.Track = &t
	}
	if queueJSON.Valid && queueJSON.String != "" {
		if err := json.Unmarshal([]byte(queueJSON.String), &p.Queue); err != nil {
			return player.Persisted{}, fmt.Errorf("decode queue: %w", err)
		}
	}
	if volume.Valid {
		v := int(volume.Int64)
		p.Volume = &v
	}
	return p, nil
}

// Save replaces the saved state
func (s *PlaybackStore) Save(p player.Persisted) error {
	var trackJSON, queueJSON sql.NullString
	if p.Track != nil {
		b, err := json.Marshal(p.Track)
		if err != nil {
			return fmt.Errorf("encode current track: %w", err)
		}
		trackJSON = sql.NullString{String: string(b), Valid: true}
	}
	if len(p.Queue) > 0 {
		b, err := json.Marshal(p.Queue)
		if err != nil {
			return fmt.Errorf("encode queue: %w", err)
		}
		queueJSON = sql.NullString{String: string(b), Valid: true}
	}
	var volume sql.NullInt64
	if p.Volume != nil {
		volume = sql.NullInt64{Int64: int64(*p.Volume), Valid: true}
	}

	_, err := s.db.conn.Exec(`
		INSERT INTO playback_state (owner, track_json, queue_json, current_index, position, volume, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner) DO UPDATE SET
			track_json=excluded.track_json,
			queue_json=excluded.queue_json,
			current_index=excluded.current_index,
			position=excluded.position,
			volume=excluded.volume,
			updated_at=excluded.updated_at`,
		s.owner, trackJSON, queueJSON, p.Index, p.Position, volume, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save playback state: %w", err)
	}
	return nil
}

// Clear erases the saved state
func (s *PlaybackStore) Clear() error {
	if _, err := s.db.conn.Exec("DELETE FROM playback_state WHERE owner = ?", s.owner); err != nil {
		return fmt.Errorf("clear playback state: %w", err)
	}
	return nil
}

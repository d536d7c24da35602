package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound is returned when a row addressed by id does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint rejects a write
	ErrDuplicate = errors.New("already exists")
)

// Database wraps a *sql.DB providing higher-level helper methods for
// interacting with the catalog, accounts and playback state. It is safe for
// concurrent use because the underlying *sql.DB is concurrency-safe.
type Database struct {
	conn   *sql.DB
	logger *logrus.Logger

	insertTrackStmt  *sql.Stmt
	getTrackByIDStmt *sql.Stmt
	getUserByIDStmt  *sql.Stmt
	getUserByMailStm *sql.Stmt
}

// NewDatabase opens (or creates) a SQLite database at the provided path and
// ensures all required tables and indices exist. Caller should Close() it
// when finished. A nil logger gets a JSON logger of its own.
func NewDatabase(dbPath string, logger *logrus.Logger) (*Database, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	conn, err := sql.Open("sqlite3", dbPath+"?cache=shared&mode=rwc&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(15 * time.Minute)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=memory;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("Failed to set pragma")
		}
	}

	db := &Database{
		conn:   conn,
		logger: logger,
	}

	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := db.prepareStatements(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.WithField("db_path", dbPath).Info("Database initialized successfully")
	return db, nil
}

// createTables creates tables and indices if they do not already exist, then
// executes any migrations. This is idempotent and safe to call multiple times.
func (db *Database) createTables() error {
	tables := []string{`
	CREATE TABLE IF NOT EXISTS tracks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		artist TEXT NOT NULL,
		genre TEXT NOT NULL DEFAULT 'Other',
		thumbnail_url TEXT,
		stream_url TEXT NOT NULL DEFAULT '',
		duration INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);`, `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		created_at DATETIME NOT NULL
	);`, `
	CREATE TABLE IF NOT EXISTS playlists (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_by TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (created_by) REFERENCES users(id) ON DELETE CASCADE
	);`, `
	CREATE TABLE IF NOT EXISTS playlist_tracks (
		playlist_id TEXT,
		track_id TEXT,
		position INTEGER,
		added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (playlist_id) REFERENCES playlists(id) ON DELETE CASCADE,
		FOREIGN KEY (track_id) REFERENCES tracks(id) ON DELETE CASCADE,
		PRIMARY KEY (playlist_id, track_id)
	);`, `
	CREATE TABLE IF NOT EXISTS albums (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		artist TEXT NOT NULL,
		thumbnail_url TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);`, `
	CREATE TABLE IF NOT EXISTS album_tracks (
		album_id TEXT,
		track_id TEXT,
		position INTEGER,
		FOREIGN KEY (album_id) REFERENCES albums(id) ON DELETE CASCADE,
		FOREIGN KEY (track_id) REFERENCES tracks(id) ON DELETE CASCADE,
		PRIMARY KEY (album_id, track_id)
	);`, `
	CREATE TABLE IF NOT EXISTS playback_state (
		owner TEXT PRIMARY KEY,
		track_json TEXT,
		queue_json TEXT,
		current_index INTEGER NOT NULL DEFAULT 0,
		position REAL NOT NULL DEFAULT 0,
		volume INTEGER,
		updated_at DATETIME NOT NULL
	);`, `
	CREATE TABLE IF NOT EXISTS ingest_jobs (
		id TEXT PRIMARY KEY,
		video_id TEXT NOT NULL,
		requested_by TEXT,
		status TEXT NOT NULL,
		category TEXT,
		error TEXT,
		track_id TEXT,
		created_at DATETIME NOT NULL,
		completed_at DATETIME
	);`}

	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_tracks_genre ON tracks(genre);",
		"CREATE INDEX IF NOT EXISTS idx_tracks_created ON tracks(created_at);",
		"CREATE INDEX IF NOT EXISTS idx_tracks_search ON tracks(title, artist);",
		"CREATE INDEX IF NOT EXISTS idx_playlists_owner ON playlists(created_by);",
		"CREATE INDEX IF NOT EXISTS idx_playlist_tracks_position ON playlist_tracks(playlist_id, position);",
		"CREATE INDEX IF NOT EXISTS idx_album_tracks_position ON album_tracks(album_id, position);",
		"CREATE INDEX IF NOT EXISTS idx_ingest_jobs_status ON ingest_jobs(status);",
	}

	for _, table := range tables {
		if _, err := db.conn.Exec(table); err != nil {
			return err
		}
	}
	for _, index := range indices {
		if _, err := db.conn.Exec(index); err != nil {
			return err
		}
	}

	return db.runMigrations()
}

// runMigrations performs incremental schema updates in-place. Each migration
// should be idempotent and safe to re-run.
func (db *Database) runMigrations() error {
	// Migration 1: fallback audio URL next to the relayed stream URL
	var columnExists bool
	err := db.conn.QueryRow(`
		SELECT COUNT(*) > 0
		FROM pragma_table_info('tracks')
		WHERE name = 'audio_url'`).Scan(&columnExists)
	if err != nil {
		return err
	}

	if !columnExists {
		if _, err := db.conn.Exec("ALTER TABLE tracks ADD COLUMN audio_url TEXT"); err != nil {
			return err
		}
		db.logger.Info("Added audio_url column to tracks table")
	}

	return nil
}

// prepareStatements prepares the hot-path statements
func (db *Database) prepareStatements() error {
	var err error

	db.insertTrackStmt, err = db.conn.Prepare(`
		INSERT INTO tracks (id, title, artist, genre, thumbnail_url, stream_url, audio_url, duration, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert track statement: %w", err)
	}

	db.getTrackByIDStmt, err = db.conn.Prepare(`
		SELECT ` + trackColumns + ` FROM tracks WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get track by ID statement: %w", err)
	}

	db.getUserByIDStmt, err = db.conn.Prepare(`
		SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get user by ID statement: %w", err)
	}

	db.getUserByMailStm, err = db.conn.Prepare(`
		SELECT ` + userColumns + ` FROM users WHERE email = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get user by email statement: %w", err)
	}

	return nil
}

// WithTx runs fn inside a transaction, committing when it returns nil
func (db *Database) WithTx(fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.WithError(rbErr).Error("Failed to roll back transaction")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Ping checks the connection is usable
func (db *Database) Ping() error {
	return db.conn.Ping()
}

// Close closes the underlying database connection and prepared statements.
func (db *Database) Close() error {
	statements := []*sql.Stmt{
		db.insertTrackStmt,
		db.getTrackByIDStmt,
		db.getUserByIDStmt,
		db.getUserByMailStm,
	}
	for _, stmt := range statements {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				db.logger.WithError(err).Error("Failed to close prepared statement")
			}
		}
	}

	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// isUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY
// constraint
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// affectedOne maps a zero-row write to ErrNotFound
func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

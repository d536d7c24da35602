package database

import (
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"echovia/internal/player"
	"echovia/pkg/models"

	"github.com/sirupsen/logrus"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertTestTrack(t *testing.T, db *Database, title, genre string) models.Track {
	t.Helper()
	track, err := db.InsertTrack(models.Track{
		Title:     title,
		Artist:    "Test Artist",
		Genre:     genre,
		StreamURL: "/media/" + title + ".mp3",
		Duration:  180,
	})
	if err != nil {
		t.Fatalf("Failed to insert track: %v", err)
	}
	return track
}

func TestTracks(t *testing.T) {
	db := newTestDatabase(t)

	first := insertTestTrack(t, db, "First", "Hindi")
	time.Sleep(5 * time.Millisecond)
	second := insertTestTrack(t, db, "Second", "English")

	t.Run("GetTrackByID", func(t *testing.T) {
		got, err := db.GetTrackByID(first.ID)
		if err != nil {
			t.Fatalf("Failed to get track by ID: %v", err)
		}
		if got.Title != "First" || got.Genre != "Hindi" {
			t.Errorf("unexpected track %+v", got)
		}
		if got.MediaURL() != "/media/First.mp3" {
			t.Errorf("expected media url from stream url, got %s", got.MediaURL())
		}
	})

	t.Run("MissingTrack", func(t *testing.T) {
		_, err := db.GetTrackByID("nope")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("NewestFirst", func(t *testing.T) {
		tracks, err := db.GetAllTracks()
		if err != nil {
			t.Fatalf("Failed to get all tracks: %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(tracks))
		}
		if tracks[0].ID != second.ID {
			t.Errorf("expected newest track first, got %s", tracks[0].Title)
		}
	})

	t.Run("ByGenre", func(t *testing.T) {
		tracks, err := db.GetTracksByGenre("English")
		if err != nil {
			t.Fatalf("Failed to get tracks by genre: %v", err)
		}
		if len(tracks) != 1 || tracks[0].ID != second.ID {
			t.Errorf("expected only the English track, got %+v", tracks)
		}
	})

	t.Run("Update", func(t *testing.T) {
		updated := first
		updated.Title = "Renamed"
		if err := db.UpdateTrack(updated); err != nil {
			t.Fatalf("Failed to update track: %v", err)
		}
		got, _ := db.GetTrackByID(first.ID)
		if got.Title != "Renamed" {
			t.Errorf("expected title Renamed, got %s", got.Title)
		}

		if err := db.UpdateTrack(models.Track{ID: "ghost"}); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound updating a missing track, got %v", err)
		}
	})
}

func TestUsers(t *testing.T) {
	db := newTestDatabase(t)

	first, err := db.CreateUser(models.User{Username: "root", Email: "Root@Example.com"}, "hash-1")
	if err != nil {
		t.Fatalf("Failed to create first user: %v", err)
	}
	if first.Role != models.RoleMajorAdmin {
		t.Errorf("first account should be majorAdmin, got %s", first.Role)
	}

	second, err := db.CreateUser(models.User{Username: "bob", Email: "bob@example.com"}, "hash-2")
	if err != nil {
		t.Fatalf("Failed to create second user: %v", err)
	}
	if second.Role != models.RoleUser {
		t.Errorf("later accounts should be users, got %s", second.Role)
	}

	if _, err := db.CreateUser(models.User{Username: "bob2", Email: "BOB@example.com"}, "x"); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected duplicate email to fail, got %v", err)
	}

	user, hash, err := db.GetUserByEmail("root@example.com")
	if err != nil {
		t.Fatalf("Failed to get user by email: %v", err)
	}
	if user.ID != first.ID || hash != "hash-1" {
		t.Errorf("unexpected user %+v / %s", user, hash)
	}

	if err := db.UpdateUserRole(second.ID, models.RoleAdmin); err != nil {
		t.Fatalf("Failed to update role: %v", err)
	}
	got, _ := db.GetUserByID(second.ID)
	if got.Role != models.RoleAdmin {
		t.Errorf("expected admin, got %s", got.Role)
	}

	users, err := db.ListUsers()
	if err != nil {
		t.Fatalf("Failed to list users: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("expected 2 users, got %d", len(users))
	}
}

func TestPlaylists(t *testing.T) {
	db := newTestDatabase(t)
	owner, _ := db.CreateUser(models.User{Username: "owner", Email: "o@example.com"}, "h")
	a := insertTestTrack(t, db, "A", "Other")
	b := insertTestTrack(t, db, "B", "Other")

	playlist, err := db.CreatePlaylist("Road trip", owner.ID)
	if err != nil {
		t.Fatalf("Failed to create playlist: %v", err)
	}

	for _, id := range []string{b.ID, a.ID, b.ID} {
		if err := db.AddTrackToPlaylist(playlist.ID, id); err != nil {
			t.Fatalf("Failed to add track: %v", err)
		}
	}

	tracks, err := db.GetPlaylistTracks(playlist.ID)
	if err != nil {
		t.Fatalf("Failed to get playlist tracks: %v", err)
	}
	if len(tracks) != 2 || tracks[0].ID != b.ID || tracks[1].ID != a.ID {
		t.Errorf("expected [B A] in insertion order, got %+v", tracks)
	}

	if err := db.AddTrackToPlaylist(playlist.ID, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown track, got %v", err)
	}

	mine, err := db.GetPlaylistsByOwner(owner.ID)
	if err != nil {
		t.Fatalf("Failed to list playlists: %v", err)
	}
	if len(mine) != 1 || mine[0].TrackCount != 2 {
		t.Errorf("expected one playlist with 2 tracks, got %+v", mine)
	}

	if err := db.RemoveTrackFromPlaylist(playlist.ID, b.ID); err != nil {
		t.Fatalf("Failed to remove track: %v", err)
	}

	// deleting a track drops it from playlists
	if err := db.DeleteTrack(a.ID); err != nil {
		t.Fatalf("Failed to delete track: %v", err)
	}
	tracks, _ = db.GetPlaylistTracks(playlist.ID)
	if len(tracks) != 0 {
		t.Errorf("expected empty playlist, got %d tracks", len(tracks))
	}

	if err := db.DeletePlaylist(playlist.ID); err != nil {
		t.Fatalf("Failed to delete playlist: %v", err)
	}
	if _, err := db.GetPlaylist(playlist.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected deleted playlist to be gone, got %v", err)
	}
}

func TestAlbums(t *testing.T) {
	db := newTestDatabase(t)
	a := insertTestTrack(t, db, "A", "Other")

	album, err := db.CreateAlbum("Debut", "Band", "/media/cover.jpg")
	if err != nil {
		t.Fatalf("Failed to create album: %v", err)
	}

	if err := db.AddTrackToAlbum(album.ID, a.ID); err != nil {
		t.Fatalf("Failed to add track to album: %v", err)
	}
	if err := db.AddTrackToAlbum(album.ID, a.ID); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate adding a track twice, got %v", err)
	}

	got, err := db.GetAlbum(album.ID)
	if err != nil {
		t.Fatalf("Failed to get album: %v", err)
	}
	if got.TrackCount != 1 {
		t.Errorf("expected 1 track, got %d", got.TrackCount)
	}

	if err := db.RemoveTrackFromAlbum(album.ID, a.ID); err != nil {
		t.Fatalf("Failed to remove track: %v", err)
	}
	if err := db.RemoveTrackFromAlbum(album.ID, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound removing twice, got %v", err)
	}

	if err := db.DeleteAlbum(album.ID); err != nil {
		t.Fatalf("Failed to delete album: %v", err)
	}
	albums, _ := db.GetAllAlbums()
	if len(albums) != 0 {
		t.Errorf("expected no albums, got %d", len(albums))
	}
}

func TestPlaybackStore(t *testing.T) {
	db := newTestDatabase(t)
	store := db.PlaybackStore("user-1")

	empty, err := store.Load()
	if err != nil {
		t.Fatalf("Failed to load empty state: %v", err)
	}
	if empty.Track != nil || len(empty.Queue) != 0 || empty.VolumeOrDefault() != player.DefaultVolume {
		t.Errorf("expected defaults, got %+v", empty)
	}

	vol := 70
	t1 := models.Track{ID: "t1", Title: "One", StreamURL: "/media/1.mp3"}
	t2 := models.Track{ID: "t2", Title: "Two", AudioURL: "http://cdn/2.mp3"}
	if err := store.Save(player.Persisted{
		Track:    &t2,
		Queue:    []models.Track{t1, t2},
		Index:    1,
		Position: 12.5,
		Volume:   &vol,
	}); err != nil {
		t.Fatalf("Failed to save state: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Failed to load state: %v", err)
	}
	if got.Track == nil || got.Track.ID != "t2" || got.Track.MediaURL() != "http://cdn/2.mp3" {
		t.Errorf("unexpected current track %+v", got.Track)
	}
	if len(got.Queue) != 2 || got.Index != 1 || got.Position != 12.5 || got.VolumeOrDefault() != 70 {
		t.Errorf("unexpected state %+v", got)
	}

	other, _ := db.PlaybackStore("user-2").Load()
	if other.Track != nil {
		t.Error("state must be scoped per owner")
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Failed to clear state: %v", err)
	}
	cleared, _ := store.Load()
	if cleared.Track != nil || cleared.Volume != nil {
		t.Errorf("expected cleared state, got %+v", cleared)
	}
}

func TestIngestJobs(t *testing.T) {
	db := newTestDatabase(t)
	job := models.IngestJob{
		ID:        "job-1",
		VideoID:   "dQw4w9WgXcQ",
		Status:    models.JobPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.UpsertIngestJob(job); err != nil {
		t.Fatalf("Failed to insert job: %v", err)
	}

	done := time.Now().UTC()
	job.Status = models.JobFailed
	job.Category = "timeout"
	job.CompletedAt = &done
	if err := db.UpsertIngestJob(job); err != nil {
		t.Fatalf("Failed to update job: %v", err)
	}

	jobs, err := db.GetIngestJobs(10)
	if err != nil {
		t.Fatalf("Failed to list jobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Status != models.JobFailed || jobs[0].Category != "timeout" || jobs[0].CompletedAt == nil {
		t.Errorf("unexpected jobs %+v", jobs)
	}
}

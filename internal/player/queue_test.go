package player

import (
	"testing"

	"echovia/pkg/models"
)

func TestNewQueueClampsIndex(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		index int
		want  int
	}{
		{"empty", 0, 3, 0},
		{"negative", 3, -1, 0},
		{"past end", 3, 9, 2},
		{"in range", 3, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := []string{"a", "b", "c"}[:tt.n]
			q := NewQueue(testTracks(ids...), tt.index)
			if q.Index() != tt.want {
				t.Errorf("expected index %d, got %d", tt.want, q.Index())
			}
		})
	}
}

func TestQueueNextPrevious(t *testing.T) {
	q := NewQueue(testTracks("a", "b", "c"), 0)

	if got := q.Previous(); got != 2 {
		t.Errorf("Previous from 0: expected 2, got %d", got)
	}
	if got := q.Next(); got != 0 {
		t.Errorf("Next from 2: expected 0, got %d", got)
	}
	if got := q.Next(); got != 1 {
		t.Errorf("Next from 0: expected 1, got %d", got)
	}

	empty := NewQueue(nil, 0)
	if empty.Next() != 0 || empty.Previous() != 0 {
		t.Error("moving in an empty queue should stay at 0")
	}
}

func TestQueueRemoveAt(t *testing.T) {
	tests := []struct {
		name        string
		index       int
		remove      int
		wantIndex   int
		wantCurrent bool
		wantOK      bool
	}{
		{"before current", 2, 0, 1, false, true},
		{"after current", 0, 2, 0, false, true},
		{"current in middle", 1, 1, 1, true, true},
		{"current at end", 2, 2, 1, true, true},
		{"out of range", 1, 5, 1, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue(testTracks("a", "b", "c"), tt.index)
			current, ok := q.RemoveAt(tt.remove)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if current != tt.wantCurrent {
				t.Errorf("expected removedCurrent=%v, got %v", tt.wantCurrent, current)
			}
			if q.Index() != tt.wantIndex {
				t.Errorf("expected index %d, got %d", tt.wantIndex, q.Index())
			}
		})
	}
}

func TestQueueFindAndContains(t *testing.T) {
	q := NewQueue(testTracks("a", "b"), 0)

	if i := q.Find(testTrack("b")); i != 1 {
		t.Errorf("expected to find b at 1, got %d", i)
	}
	if i := q.Find(testTrack("z")); i != -1 {
		t.Errorf("expected -1 for unknown track, got %d", i)
	}

	renamed := testTrack("a")
	renamed.ID = "a2"
	if q.Find(renamed) != -1 {
		t.Error("Find should match by id when both tracks have one")
	}
	if !q.Contains(renamed) {
		t.Error("Contains should match by title and artist")
	}
}

func TestQueueContainsUntitled(t *testing.T) {
	q := NewQueue([]models.Track{{ID: "u1", StreamURL: "/media/u1.mp3"}}, 0)

	if q.Contains(models.Track{ID: "u2", StreamURL: "/media/u2.mp3"}) {
		t.Error("untitled tracks with different ids are distinct")
	}
	if !q.Contains(models.Track{ID: "u1"}) {
		t.Error("untitled track should still match by id")
	}
}

func TestQueueTracksIsACopy(t *testing.T) {
	q := NewQueue(testTracks("a"), 0)
	tracks := q.Tracks()
	tracks[0].Title = "changed"

	if got, _ := q.At(0); got.Title == "changed" {
		t.Error("mutating Tracks() result must not affect the queue")
	}
}

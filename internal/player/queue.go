package player

import (
	"echovia/pkg/models"

	"github.com/samber/lo"
)

// Queue is the ordered list of tracks the coordinator plays through, plus a
// pointer to the current entry. The pointer is always in range when the
// queue is non-empty and 0 when it is empty.
type Queue struct {
	tracks []models.Track
	index  int
}

// NewQueue copies tracks and clamps index into range
func NewQueue(tracks []models.Track, index int) *Queue {
	q := &Queue{tracks: append([]models.Track(nil), tracks...), index: index}
	q.clamp()
	return q
}

func (q *Queue) Len() int   { return len(q.tracks) }
func (q *Queue) Index() int { return q.index }

// Tracks returns a copy of the queue contents
func (q *Queue) Tracks() []models.Track {
	return append([]models.Track(nil), q.tracks...)
}

// At returns the track at i
func (q *Queue) At(i int) (models.Track, bool) {
	if i < 0 || i >= len(q.tracks) {
		return models.Track{}, false
	}
	return q.tracks[i], true
}

// Find returns the index of t, matching by id, or by title and artist when
// t has no id. It returns -1 when t is not queued.
func (q *Queue) Find(t models.Track) int {
	_, i, ok := lo.FindIndexOf(q.tracks, func(x models.Track) bool {
		return x.SameAs(t)
	})
	if !ok {
		return -1
	}
	return i
}

// Contains reports whether an entry matches t by id or by (title, artist).
// Untitled tracks only match by id.
func (q *Queue) Contains(t models.Track) bool {
	return lo.ContainsBy(q.tracks, func(x models.Track) bool {
		if t.ID != "" && x.ID == t.ID {
			return true
		}
		return t.Title != "" && x.Title == t.Title && x.Artist == t.Artist
	})
}

// Append adds t at the end and returns its index
func (q *Queue) Append(t models.Track) int {
	q.tracks = append(q.tracks, t)
	return len(q.tracks) - 1
}

// SetIndex moves the pointer; out-of-range indices are rejected
func (q *Queue) SetIndex(i int) bool {
	if len(q.tracks) == 0 {
		q.index = 0
		return i == 0
	}
	if i < 0 || i >= len(q.tracks) {
		return false
	}
	q.index = i
	return true
}

// Next moves forward, wrapping from the last entry to the first
func (q *Queue) Next() int {
	if len(q.tracks) == 0 {
		return 0
	}
	q.index = (q.index + 1) % len(q.tracks)
	return q.index
}

// Previous moves back, wrapping from the first entry to the last
func (q *Queue) Previous() int {
	if len(q.tracks) == 0 {
		return 0
	}
	if q.index > 0 {
		q.index--
	} else {
		q.index = len(q.tracks) - 1
	}
	return q.index
}

// Replace swaps the contents wholesale, keeping the pointer in range
func (q *Queue) Replace(tracks []models.Track) {
	q.tracks = append([]models.Track(nil), tracks...)
	q.clamp()
}

// RemoveAt deletes the entry at i. removedCurrent is true when i was the
// entry under the pointer.
func (q *Queue) RemoveAt(i int) (removedCurrent bool, ok bool) {
	if i < 0 || i >= len(q.tracks) {
		return false, false
	}
	removedCurrent = i == q.index
	q.tracks = append(q.tracks[:i], q.tracks[i+1:]...)
	if i < q.index {
		q.index--
	}
	q.clamp()
	return removedCurrent, true
}

// Clear empties the queue
func (q *Queue) Clear() {
	q.tracks = nil
	q.index = 0
}

func (q *Queue) clamp() {
	switch {
	case len(q.tracks) == 0, q.index < 0:
		q.index = 0
	case q.index >= len(q.tracks):
		q.index = len(q.tracks) - 1
	}
}

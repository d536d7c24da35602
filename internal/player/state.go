package player

import (
	"sync"
	"time"

	"echovia/pkg/models"
)

// Status is the coarse playback state derived from the coordinator's flags
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusPaused
	StatusPlaying
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusPaused:
		return "paused"
	case StatusPlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name in JSON
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is a point-in-time copy of the playback state
type State struct {
	Track       *models.Track  `json:"track,omitempty"`
	Queue       []models.Track `json:"queue"`
	Index       int            `json:"currentIndex"`
	IsPlaying   bool           `json:"isPlaying"`
	IsBuffering bool           `json:"isBuffering"`
	Position    float64        `json:"position"` // in seconds
	Duration    float64        `json:"duration"` // in seconds, 0 until the source is ready
	Volume      int            `json:"volume"`   // 0 to 100
	Status      Status         `json:"status"`
	Err         string         `json:"error,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

const listenerBuffer = 16

// hub fans state snapshots out to observers. Sends never block; an observer
// that falls behind misses intermediate snapshots.
type hub struct {
	mu        sync.Mutex
	listeners []chan State
}

func (h *hub) subscribe() <-chan State {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan State, listenerBuffer)
	h.listeners = append(h.listeners, ch)
	return ch
}

func (h *hub) unsubscribe(ch <-chan State) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, listener := range h.listeners {
		if listener == ch {
			close(listener)
			h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
			return
		}
	}
}

func (h *hub) publish(s State) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, listener := range h.listeners {
		select {
		case listener <- s:
		default:
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, listener := range h.listeners {
		close(listener)
	}
	h.listeners = nil
}

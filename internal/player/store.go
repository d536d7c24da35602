package player

import (
	"sync"

	"echovia/pkg/models"
)

// DefaultVolume applies when no volume was ever persisted
const DefaultVolume = 100

// Persisted is the durable subset of the playback state. Every field is
// optional; a zero value means "use the default".
type Persisted struct {
	Track    *models.Track  `json:"track,omitempty"`
	Queue    []models.Track `json:"queue,omitempty"`
	Index    int            `json:"currentIndex"`
	Position float64        `json:"position"`
	Volume   *int           `json:"volume,omitempty"`
}

// VolumeOrDefault returns the persisted volume, or DefaultVolume
func (p Persisted) VolumeOrDefault() int {
	if p.Volume == nil {
		return DefaultVolume
	}
	return clampVolume(*p.Volume)
}

// Store is the single persistence boundary of the coordinator. Load returns
// a zero Persisted when nothing was saved.
type Store interface {
	Load() (Persisted, error)
	Save(p Persisted) error
	Clear() error
}

// MemoryStore keeps state in process memory
type MemoryStore struct {
	mu    sync.Mutex
	state Persisted
	saves int
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() (Persisted, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clonePersisted(m.state), nil
}

func (m *MemoryStore) Save(p Persisted) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = clonePersisted(p)
	m.saves++
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Persisted{}
	return nil
}

// Saves reports how many times Save was called
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func clonePersisted(p Persisted) Persisted {
	out := p
	out.Queue = append([]models.Track(nil), p.Queue...)
	if p.Track != nil {
		t := *p.Track
		out.Track = &t
	}
	if p.Volume != nil {
		v := *p.Volume
		out.Volume = &v
	}
	return out
}

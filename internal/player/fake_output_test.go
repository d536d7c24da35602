package player

import (
	"io"
	"testing"

	"echovia/pkg/models"

	"github.com/sirupsen/logrus"
)

// fakeOutput is a clock-driven Output. Tests decide when a source becomes
// ready and advance its clock by hand.
type fakeOutput struct {
	n        Notifier
	sources  []Source
	playing  bool
	position float64
	duration float64
	volume   int
	seeks    []float64
	stops    int
	loadErr  error
	playErr  error
}

var _ Output = (*fakeOutput)(nil)

func (f *fakeOutput) Attach(n Notifier) { f.n = n }

func (f *fakeOutput) Load(src Source) error {
	if f.loadErr != nil {
		return f.loadErr
	}
	f.sources = append(f.sources, src)
	f.playing = false
	f.position = 0
	f.duration = 0
	return nil
}

func (f *fakeOutput) Play() error {
	if f.playErr != nil {
		return f.playErr
	}
	f.playing = true
	return nil
}

func (f *fakeOutput) Pause() error {
	f.playing = false
	return nil
}

func (f *fakeOutput) Seek(seconds float64) error {
	f.seeks = append(f.seeks, seconds)
	f.position = seconds
	return nil
}

func (f *fakeOutput) SetVolume(percent int) error {
	f.volume = percent
	return nil
}

func (f *fakeOutput) Stop() error {
	f.stops++
	f.playing = false
	return nil
}

func (f *fakeOutput) current() Source {
	return f.sources[len(f.sources)-1]
}

// ready reports src as loaded with the given duration
func (f *fakeOutput) ready(src Source, duration float64) {
	f.duration = duration
	f.n.Notify(Event{Token: src.Token, Kind: EventReady, Duration: duration})
}

// tick moves the playback clock forward while playing, emitting a time
// update or, once the end is reached, an ended event
func (f *fakeOutput) tick(seconds float64) {
	if !f.playing {
		return
	}
	src := f.current()
	f.position += seconds
	if f.duration > 0 && f.position >= f.duration {
		f.playing = false
		f.n.Notify(Event{Token: src.Token, Kind: EventEnded})
		return
	}
	f.n.Notify(Event{Token: src.Token, Kind: EventTimeUpdate, Position: f.position, Duration: f.duration})
}

func (f *fakeOutput) fail(src Source, err error) {
	f.playing = false
	f.n.Notify(Event{Token: src.Token, Kind: EventError, Err: err})
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestCoordinator(t *testing.T, store Store) (*Coordinator, *fakeOutput) {
	t.Helper()
	out := &fakeOutput{}
	c := New(out, store, WithLogger(quietLogger()))
	t.Cleanup(func() { _ = c.Close() })
	return c, out
}

func testTrack(id string) models.Track {
	return models.Track{
		ID:        id,
		Title:     "Song " + id,
		Artist:    "Artist " + id,
		Genre:     "Other",
		StreamURL: "http://media.test/" + id + ".mp3",
	}
}

func testTracks(ids ...string) []models.Track {
	out := make([]models.Track, 0, len(ids))
	for _, id := range ids {
		out = append(out, testTrack(id))
	}
	return out
}

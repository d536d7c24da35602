package player

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"echovia/pkg/models"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNoMedia is returned when a track has neither a stream nor an audio URL
	ErrNoMedia = errors.New("track has no playable media")
	// ErrIndexOutOfRange is returned for queue positions that do not exist
	ErrIndexOutOfRange = errors.New("queue index out of range")
)

// Direction selects the neighbour Advance moves to
type Direction int

const (
	Next Direction = iota
	Previous
)

// Coordinator owns the playback state and the queue, and is the only
// component allowed to command the audio output. All operations and output
// notifications are serialized by one mutex.
type Coordinator struct {
	mu     sync.Mutex
	out    Output
	store  Store
	logger *logrus.Logger
	hub    hub

	queue     *Queue
	current   *models.Track
	isPlaying bool
	buffering bool
	position  float64
	duration  float64
	volume    int
	lastErr   error

	token       uint64
	loadedURL   string
	ready       bool
	outPlaying  bool
	pendingSeek float64
	savedSecond int
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithLogger sets the logger used for store and output failures
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// New builds a coordinator around out and restores whatever store holds.
// A restored track is loaded paused; playback never resumes on its own.
// A nil store keeps state in memory only.
func New(out Output, store Store, opts ...Option) *Coordinator {
	if store == nil {
		store = NewMemoryStore()
	}
	c := &Coordinator{
		out:    out,
		store:  store,
		logger: logrus.StandardLogger(),
		queue:  NewQueue(nil, 0),
		volume: DefaultVolume,
	}
	for _, opt := range opts {
		opt(c)
	}

	out.Attach(c)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.restore()
	return c
}

func (c *Coordinator) restore() {
	p, err := c.store.Load()
	if err != nil {
		c.logger.WithError(err).Warn("Could not restore playback state, starting empty")
		p = Persisted{}
	}

	c.queue = NewQueue(p.Queue, p.Index)
	c.volume = p.VolumeOrDefault()
	if err := c.out.SetVolume(c.volume); err != nil {
		c.logger.WithError(err).Warn("Failed to apply restored volume")
	}

	if p.Track == nil || p.Track.MediaURL() == "" {
		return
	}
	t := *p.Track
	if i := c.queue.Find(t); i >= 0 {
		c.queue.SetIndex(i)
	}
	c.current = &t
	c.position = math.Max(p.Position, 0)
	c.savedSecond = int(c.position)
	c.pendingSeek = c.position
	_ = c.load()

	c.logger.WithFields(logrus.Fields{
		"track":    t.Title,
		"position": c.position,
		"queue":    c.queue.Len(),
	}).Debug("Restored playback state")
}

// PlayTrack makes track current and requests playback from the start. The
// queue index comes from index when given, else from the track's existing
// queue entry, else the track is appended. Replaying the current track while
// it plays only updates the queue index.
func (c *Coordinator) PlayTrack(track models.Track, index ...int) error {
	if track.MediaURL() == "" {
		return fmt.Errorf("play %q: %w", track.Title, ErrNoMedia)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.publish()

	idx := -1
	if len(index) > 0 {
		if index[0] < 0 || index[0] >= c.queue.Len() {
			return fmt.Errorf("play %q at %d: %w", track.Title, index[0], ErrIndexOutOfRange)
		}
		idx = index[0]
	} else if i := c.queue.Find(track); i >= 0 {
		idx = i
	} else {
		idx = c.queue.Append(track)
	}
	return c.playTrack(track, idx)
}

// PlayFrom replaces the queue with tracks and plays the entry at index
func (c *Coordinator) PlayFrom(tracks []models.Track, index int) error {
	if index < 0 || index >= len(tracks) {
		return fmt.Errorf("play from %d of %d: %w", index, len(tracks), ErrIndexOutOfRange)
	}
	if tracks[index].MediaURL() == "" {
		return fmt.Errorf("play %q: %w", tracks[index].Title, ErrNoMedia)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.publish()

	c.queue.Replace(tracks)
	return c.playTrack(tracks[index], index)
}

// playTrack points the queue at idx and starts track. c.mu must be held.
func (c *Coordinator) playTrack(track models.Track, idx int) error {
	c.queue.SetIndex(idx)

	alreadyLoaded := c.current != nil && c.current.SameAs(track) && c.loadedURL == track.MediaURL()
	wasPlaying := c.isPlaying
	t := track
	c.current = &t
	c.isPlaying = true
	c.lastErr = nil

	var err error
	switch {
	case !alreadyLoaded:
		c.position = 0
		c.pendingSeek = 0
		c.savedSecond = 0
		err = c.load()
	case !wasPlaying:
		c.rewind()
	}
	c.syncOutput()
	c.persist()
	return err
}

// rewind moves the loaded source back to the start
func (c *Coordinator) rewind() {
	c.position = 0
	c.savedSecond = 0
	c.pendingSeek = 0
	if !c.ready {
		return
	}
	if err := c.out.Seek(0); err != nil {
		c.lastErr = err
		c.logger.WithError(err).Warn("Failed to rewind track")
	}
}

// TogglePlayPause flips the play intent of the current track
func (c *Coordinator) TogglePlayPause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return
	}
	c.isPlaying = !c.isPlaying
	if c.isPlaying && c.loadedURL == "" {
		// the previous attempt failed; retry from the top
		c.position = 0
		c.pendingSeek = 0
		c.lastErr = nil
		_ = c.load()
	}
	c.syncOutput()
	c.publish()
}

// Pause clears the play intent
func (c *Coordinator) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isPlaying {
		return
	}
	c.isPlaying = false
	c.syncOutput()
	c.publish()
}

// Seek jumps to seconds, clamped into the known duration. It does nothing
// while the duration is unknown.
func (c *Coordinator) Seek(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seek(seconds)
}

// SeekFraction jumps to a fraction (0 to 1) of the known duration
func (c *Coordinator) SeekFraction(f float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seek(clamp(f, 0, 1) * c.duration)
}

func (c *Coordinator) seek(seconds float64) {
	if c.current == nil || c.duration <= 0 {
		return
	}
	target := clamp(seconds, 0, c.duration)
	c.position = target
	if c.ready {
		if err := c.out.Seek(target); err != nil {
			c.lastErr = err
			c.logger.WithError(err).WithField("position", target).Warn("Seek failed")
		}
	} else {
		c.pendingSeek = target
	}
	c.savedSecond = int(target)
	c.persist()
	c.publish()
}

// Advance moves to the neighbouring queue entry, wrapping at both ends.
// Play intent carries over.
func (c *Coordinator) Advance(dir Direction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.queue.Len() == 0 {
		return
	}
	c.advance(dir, c.isPlaying)
	c.persist()
	c.publish()
}

func (c *Coordinator) advance(dir Direction, playing bool) {
	// Entries without media are stepped over; a queue with none left idles.
	for range c.queue.Len() {
		var i int
		if dir == Previous {
			i = c.queue.Previous()
		} else {
			i = c.queue.Next()
		}
		t, _ := c.queue.At(i)
		if t.MediaURL() == "" {
			continue
		}
		c.current = &t
		c.isPlaying = playing
		c.position = 0
		c.pendingSeek = 0
		c.savedSecond = 0
		c.lastErr = nil
		_ = c.load()
		c.syncOutput()
		return
	}
	c.resetIdle()
}

// SetQueue replaces the queue. When the current track is not part of the
// new queue, playback resets to idle.
func (c *Coordinator) SetQueue(tracks []models.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queue.Replace(tracks)
	if c.current != nil {
		if i := c.queue.Find(*c.current); i >= 0 {
			c.queue.SetIndex(i)
		} else {
			c.resetIdle()
		}
	}
	c.persist()
	c.publish()
}

// AddToQueue appends track unless an entry already matches it by id or by
// title and artist. It reports whether the track was added.
func (c *Coordinator) AddToQueue(track models.Track) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.queue.Contains(track) {
		return false
	}
	c.queue.Append(track)
	c.persist()
	c.publish()
	return true
}

// RemoveAt drops the queue entry at index. Removing the current track
// resets playback to idle.
func (c *Coordinator) RemoveAt(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.queue.RemoveAt(index)
	if !ok {
		return fmt.Errorf("remove %d: %w", index, ErrIndexOutOfRange)
	}
	if current && c.current != nil {
		c.resetIdle()
	}
	c.persist()
	c.publish()
	return nil
}

// SetVolume clamps percent to 0-100 and applies it immediately
func (c *Coordinator) SetVolume(percent int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.volume = clampVolume(percent)
	if err := c.out.SetVolume(c.volume); err != nil {
		c.logger.WithError(err).WithField("volume", c.volume).Warn("Failed to set output volume")
	}
	c.persist()
	c.publish()
}

// ClearAll resets queue and playback to defaults and erases persisted state
func (c *Coordinator) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetIdle()
	c.queue.Clear()
	c.volume = DefaultVolume
	c.lastErr = nil
	if err := c.out.SetVolume(c.volume); err != nil {
		c.logger.WithError(err).Warn("Failed to reset output volume")
	}
	if err := c.store.Clear(); err != nil {
		c.logger.WithError(err).Error("Failed to clear persisted playback state")
	}
	c.publish()
}

// Notify applies an output event. Events for a source other than the one
// currently assigned are ignored.
func (c *Coordinator) Notify(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || ev.Token != c.token {
		c.logger.WithFields(logrus.Fields{
			"event":   ev.Kind.String(),
			"token":   ev.Token,
			"current": c.token,
		}).Debug("Ignoring stale output event")
		return
	}

	switch ev.Kind {
	case EventReady:
		c.ready = true
		c.buffering = false
		if ev.Duration > 0 {
			c.duration = ev.Duration
		}
		if c.pendingSeek > 0 {
			target := c.pendingSeek
			if c.duration > 0 {
				target = math.Min(target, c.duration)
			}
			c.pendingSeek = 0
			c.position = target
			if err := c.out.Seek(target); err != nil {
				c.logger.WithError(err).Warn("Failed to seek to restored position")
			}
		}
		c.syncOutput()

	case EventTimeUpdate:
		c.position = math.Max(ev.Position, 0)
		if ev.Duration > 0 {
			c.duration = ev.Duration
		}
		if s := int(c.position); s != c.savedSecond {
			c.savedSecond = s
			c.persist()
		}

	case EventEnded:
		c.outPlaying = false
		c.position = c.duration
		c.advance(Next, true)
		c.persist()

	case EventError:
		err := ev.Err
		if err == nil {
			err = errors.New("playback failed")
		}
		c.fail(err)
	}
	c.publish()
}

// State returns a copy of the current playback state
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Subscribe returns a channel of state snapshots, one per transition
func (c *Coordinator) Subscribe() <-chan State {
	return c.hub.subscribe()
}

// Unsubscribe stops delivery to ch and closes it
func (c *Coordinator) Unsubscribe(ch <-chan State) {
	c.hub.unsubscribe(ch)
}

// Close stops the output and closes every subscription
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token++
	c.hub.close()
	return c.out.Stop()
}

// load assigns the current track's media to the output under a fresh token
func (c *Coordinator) load() error {
	c.token++
	c.loadedURL = c.current.MediaURL()
	c.ready = false
	c.outPlaying = false
	c.buffering = true
	c.duration = 0

	if err := c.out.Load(Source{Token: c.token, URL: c.loadedURL}); err != nil {
		c.fail(err)
		return fmt.Errorf("load %q: %w", c.current.Title, err)
	}
	return nil
}

// syncOutput brings the output in line with the play intent once the
// source is ready
func (c *Coordinator) syncOutput() {
	if c.current == nil || !c.ready {
		return
	}
	switch {
	case c.isPlaying && !c.outPlaying:
		if err := c.out.Play(); err != nil {
			c.fail(err)
			return
		}
		c.outPlaying = true
	case !c.isPlaying && c.outPlaying:
		if err := c.out.Pause(); err != nil {
			c.fail(err)
			return
		}
		c.outPlaying = false
	}
}

// fail stops playback but keeps the current track selected
func (c *Coordinator) fail(err error) {
	c.isPlaying = false
	c.buffering = false
	c.ready = false
	c.outPlaying = false
	c.loadedURL = ""
	c.lastErr = err

	fields := logrus.Fields{"error": err.Error()}
	if c.current != nil {
		fields["track"] = c.current.Title
	}
	c.logger.WithFields(fields).Error("Playback failed")
}

func (c *Coordinator) resetIdle() {
	c.token++
	c.current = nil
	c.isPlaying = false
	c.buffering = false
	c.position = 0
	c.duration = 0
	c.pendingSeek = 0
	c.savedSecond = 0
	c.ready = false
	c.outPlaying = false
	c.loadedURL = ""
	c.queue.SetIndex(0)
	if err := c.out.Stop(); err != nil {
		c.logger.WithError(err).Warn("Failed to stop output")
	}
}

func (c *Coordinator) persist() {
	volume := c.volume
	p := Persisted{
		Queue:    c.queue.Tracks(),
		Index:    c.queue.Index(),
		Position: c.position,
		Volume:   &volume,
	}
	if c.current != nil {
		t := *c.current
		p.Track = &t
	}
	if err := c.store.Save(p); err != nil {
		c.logger.WithError(err).Warn("Failed to persist playback state")
	}
}

func (c *Coordinator) publish() {
	c.hub.publish(c.snapshot())
}

func (c *Coordinator) snapshot() State {
	s := State{
		Queue:       c.queue.Tracks(),
		Index:       c.queue.Index(),
		IsPlaying:   c.isPlaying,
		IsBuffering: c.buffering,
		Position:    c.position,
		Duration:    c.duration,
		Volume:      c.volume,
		Status:      c.status(),
		UpdatedAt:   time.Now(),
	}
	if c.current != nil {
		t := *c.current
		s.Track = &t
	}
	if c.lastErr != nil {
		s.Err = c.lastErr.Error()
	}
	return s
}

func (c *Coordinator) status() Status {
	switch {
	case c.current == nil:
		return StatusIdle
	case c.buffering:
		return StatusLoading
	case c.isPlaying:
		return StatusPlaying
	default:
		return StatusPaused
	}
}

func clampVolume(v int) int {
	return int(clamp(float64(v), 0, 100))
}

func clamp(v, lower, upper float64) float64 {
	return math.Max(lower, math.Min(upper, v))
}

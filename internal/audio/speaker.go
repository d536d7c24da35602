//go:build (linux && cgo) || windows || darwin

package audio

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"echovia/internal/player"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/sirupsen/logrus"
)

// Available reports whether this build can play sound
const Available = true

// Speaker is a player.Output backed by the system sound device. Events are
// delivered to the attached notifier from one dispatcher goroutine.
type Speaker struct {
	mu sync.Mutex

	httpClient  *http.Client
	resolve     func(string) string
	sampleRate  beep.SampleRate
	initialized bool
	logger      *logrus.Logger

	notifier player.Notifier
	events   *mailbox
	ctx      context.Context
	cancel   context.CancelFunc

	token      uint64
	cancelLoad context.CancelFunc
	streamer   beep.StreamSeekCloser
	format     beep.Format
	ctrl       *beep.Ctrl
	volume     *effects.Volume
	percent    int
	playing    bool
}

var _ player.Output = (*Speaker)(nil)

// NewSpeaker creates the output. Call Close when done.
func NewSpeaker(opts Options) *Speaker {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Speaker{
		httpClient: opts.HTTPClient,
		resolve:    opts.Resolve,
		sampleRate: beep.SampleRate(44100),
		logger:     opts.Logger,
		events:     newMailbox(),
		ctx:        ctx,
		cancel:     cancel,
		percent:    player.DefaultVolume,
	}
	go s.dispatch()
	go s.tick(opts.TickInterval)
	return s
}

// Attach implements player.Output
func (s *Speaker) Attach(n player.Notifier) {
	s.mu.Lock()
	s.notifier = n
	s.mu.Unlock()
}

// Load implements player.Output. Fetching and decoding happen in the
// background; Ready or Error follows.
func (s *Speaker) Load(src player.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.token = src.Token

	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelLoad = cancel
	go s.load(ctx, src.Token, s.resolve(src.URL))
	return nil
}

func (s *Speaker) load(ctx context.Context, token uint64, rawURL string) {
	started := time.Now()
	data, contentType, err := fetch(ctx, s.httpClient, rawURL)
	if err != nil {
		if ctx.Err() == nil {
			s.emit(player.Event{Token: token, Kind: player.EventError, Err: err})
		}
		return
	}

	streamer, format, err := decode(data, contentType, rawURL)
	if err != nil {
		s.emit(player.Event{Token: token, Kind: player.EventError, Err: err})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.token || ctx.Err() != nil {
		streamer.Close()
		return
	}
	if err := s.initSpeaker(); err != nil {
		streamer.Close()
		s.emit(player.Event{Token: token, Kind: player.EventError, Err: err})
		return
	}

	s.streamer = streamer
	s.format = format
	s.ctrl = &beep.Ctrl{Streamer: beep.Resample(4, format.SampleRate, s.sampleRate, streamer), Paused: true}
	s.volume = &effects.Volume{Streamer: s.ctrl, Base: 2}
	s.volume.Volume, s.volume.Silent = gain(s.percent)

	speaker.Play(beep.Seq(s.volume, beep.Callback(func() {
		s.emit(player.Event{Token: token, Kind: player.EventEnded})
	})))

	duration := format.SampleRate.D(streamer.Len()).Seconds()
	s.logger.WithFields(logrus.Fields{
		"url":      rawURL,
		"duration": duration,
		"elapsed":  time.Since(started).Round(time.Millisecond),
	}).Debug("Track loaded")
	s.emit(player.Event{Token: token, Kind: player.EventReady, Duration: duration})
}

func (s *Speaker) initSpeaker() error {
	if s.initialized {
		return nil
	}
	if err := speaker.Init(s.sampleRate, s.sampleRate.N(time.Second/10)); err != nil {
		return err
	}
	s.initialized = true
	return nil
}

// Play implements player.Output
func (s *Speaker) Play() error {
	return s.setPaused(false)
}

// Pause implements player.Output
func (s *Speaker) Pause() error {
	return s.setPaused(true)
}

func (s *Speaker) setPaused(paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctrl == nil {
		return errors.New("no track loaded")
	}
	speaker.Lock()
	s.ctrl.Paused = paused
	speaker.Unlock()
	s.playing = !paused
	return nil
}

// Seek implements player.Output
func (s *Speaker) Seek(seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.streamer == nil {
		return errors.New("no track loaded")
	}
	target := s.format.SampleRate.N(time.Duration(seconds * float64(time.Second)))
	target = min(max(target, 0), s.streamer.Len())

	speaker.Lock()
	defer speaker.Unlock()
	return s.streamer.Seek(target)
}

// SetVolume implements player.Output
func (s *Speaker) SetVolume(percent int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.percent = percent
	if s.volume != nil {
		speaker.Lock()
		s.volume.Volume, s.volume.Silent = gain(percent)
		speaker.Unlock()
	}
	return nil
}

// Stop implements player.Output
func (s *Speaker) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.token = 0
	return nil
}

func (s *Speaker) stopLocked() {
	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
	if s.initialized {
		speaker.Clear()
	}
	if s.streamer != nil {
		s.streamer.Close()
	}
	s.streamer = nil
	s.ctrl = nil
	s.volume = nil
	s.playing = false
}

// Close stops playback and the dispatcher
func (s *Speaker) Close() error {
	err := s.Stop()
	s.cancel()
	return err
}

// emit queues an event without blocking the caller, which may be the
// speaker's own callback.
func (s *Speaker) emit(ev player.Event) {
	s.events.push(ev)
}

func (s *Speaker) dispatch() {
	s.events.run(s.ctx, func(ev player.Event) {
		s.mu.Lock()
		n := s.notifier
		s.mu.Unlock()
		if n != nil {
			n.Notify(ev)
		}
	})
}

func (s *Speaker) tick(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if !s.playing || s.streamer == nil {
				s.mu.Unlock()
				continue
			}
			speaker.Lock()
			pos := s.format.SampleRate.D(s.streamer.Position()).Seconds()
			length := s.format.SampleRate.D(s.streamer.Len()).Seconds()
			speaker.Unlock()
			ev := player.Event{Token: s.token, Kind: player.EventTimeUpdate, Position: pos, Duration: length}
			s.mu.Unlock()
			s.emit(ev)
		}
	}
}

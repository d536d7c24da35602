package player

import (
	"errors"
	"testing"

	"echovia/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayTrackOnEmptyQueue(t *testing.T) {
	c, out := newTestCoordinator(t, nil)

	require.NoError(t, c.PlayTrack(testTrack("s1")))

	st := c.State()
	require.NotNil(t, st.Track)
	assert.Equal(t, "s1", st.Track.ID)
	assert.Len(t, st.Queue, 1)
	assert.Equal(t, 0, st.Index)
	assert.True(t, st.IsPlaying)
	assert.True(t, st.IsBuffering)
	assert.Equal(t, StatusLoading, st.Status)
	assert.Zero(t, st.Position)
	require.Len(t, out.sources, 1)
	assert.Equal(t, "http://media.test/s1.mp3", out.current().URL)

	out.ready(out.current(), 180)
	st = c.State()
	assert.Equal(t, StatusPlaying, st.Status)
	assert.Equal(t, 180.0, st.Duration)
	assert.True(t, out.playing)
}

func TestPlayTrackRequiresMedia(t *testing.T) {
	c, out := newTestCoordinator(t, nil)
	require.NoError(t, c.PlayTrack(testTrack("s1")))

	noMedia := models.Track{ID: "s2", Title: "Silent", Artist: "Nobody"}
	err := c.PlayTrack(noMedia)

	assert.ErrorIs(t, err, ErrNoMedia)
	st := c.State()
	assert.Equal(t, "s1", st.Track.ID)
	assert.Len(t, st.Queue, 1)
	assert.Len(t, out.sources, 1)
}

func TestPlayTrackPrefersStreamURL(t *testing.T) {
	c, out := newTestCoordinator(t, nil)

	onlyAudio := models.Track{ID: "a", Title: "A", Artist: "X", AudioURL: "http://media.test/a-audio.mp3"}
	require.NoError(t, c.PlayTrack(onlyAudio))
	assert.Equal(t, "http://media.test/a-audio.mp3", out.current().URL)

	both := models.Track{ID: "b", Title: "B", Artist: "X", StreamURL: "http://media.test/b.mp3", AudioURL: "http://media.test/b-audio.mp3"}
	require.NoError(t, c.PlayTrack(both))
	assert.Equal(t, "http://media.test/b.mp3", out.current().URL)
}

func TestPlayTrackIsIdempotent(t *testing.T) {
	c, out := newTestCoordinator(t, nil)
	s1 := testTrack("s1")

	require.NoError(t, c.PlayTrack(s1))
	out.ready(out.current(), 100)
	out.tick(12)

	require.NoError(t, c.PlayTrack(s1))

	st := c.State()
	assert.Len(t, out.sources, 1, "already playing track must not reload")
	assert.Len(t, st.Queue, 1)
	assert.True(t, st.IsPlaying)
	assert.Equal(t, 12.0, st.Position)
}

func TestPlayTrackRestartsPausedTrack(t *testing.T) {
	c, out := newTestCoordinator(t, nil)
	s1 := testTrack("s1")

	require.NoError(t, c.PlayTrack(s1))
	out.ready(out.current(), 200)
	out.tick(42)
	c.Pause()

	require.NoError(t, c.PlayTrack(s1))

	st := c.State()
	assert.Len(t, out.sources, 1, "loaded source is reused")
	assert.Equal(t, []float64{0}, out.seeks)
	assert.Zero(t, st.Position)
	assert.True(t, st.IsPlaying)
	assert.True(t, out.playing)
}

func TestPlayTrackRestartsPausedTrackBeforeReady(t *testing.T) {
	store := NewMemoryStore()
	s1 := testTrack("s1")
	vol := 50
	require.NoError(t, store.Save(Persisted{
		Track:    &s1,
		Queue:    testTracks("s1"),
		Position: 30,
		Volume:   &vol,
	}))
	c, out := newTestCoordinator(t, store)
	require.Equal(t, 30.0, c.State().Position)

	require.NoError(t, c.PlayTrack(s1))
	out.ready(out.current(), 100)

	assert.Empty(t, out.seeks, "restored position must not be applied")
	assert.Zero(t, c.State().Position)
}

func TestPlayFromPublishesOnce(t *testing.T) {
	c, out := newTestCoordinator(t, nil)
	require.NoError(t, c.PlayTrack(testTrack("x")))
	out.ready(out.current(), 10)

	updates := c.Subscribe()
	require.NoError(t, c.PlayFrom(testTracks("s1", "s2"), 1))

	st := <-updates
	assert.Equal(t, StatusLoading, st.Status)
	assert.Equal(t, "s2", st.Track.ID)
	assert.Equal(t, 1, st.Index)
	select {
	case extra := <-updates:
		t.Fatalf("unexpected intermediate update %+v", extra)
	default:
	}
}

func TestPlayTrackResolvesIndex(t *testing.T) {
	c, _ := newTestCoordinator(t, nil)
	c.SetQueue(testTracks("s1", "s2", "s3"))

	t.Run("by id", func(t *testing.T) {
		require.NoError(t, c.PlayTrack(testTrack("s2")))
		assert.Equal(t, 1, c.State().Index)
	})

	t.Run("by title and artist when id is absent", func(t *testing.T) {
		anon := testTrack("s3")
		anon.ID = ""
		require.NoError(t, c.PlayTrack(anon))
		st := c.State()
		assert.Equal(t, 2, st.Index)
		assert.Len(t, st.Queue, 3)
	})

	t.Run("explicit index", func(t *testing.T) {
		require.NoError(t, c.PlayTrack(testTrack("s1"), 0))
		assert.Equal(t, 0, c.State().Index)
	})

	t.Run("explicit index out of range", func(t *testing.T) {
		err := c.PlayTrack(testTrack("s1"), 7)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
		assert.Equal(t, 0, c.State().Index)
	})

	t.Run("unknown track is appended", func(t *testing.T) {
		require.NoError(t, c.PlayTrack(testTrack("s4")))
		st := c.State()
		assert.Len(t, st.Queue, 4)
		assert.Equal(t, 3, st.Index)
	})
}

func TestAdvanceWrapsAroundFullCycle(t *testing.T) {
	for n := 1; n <= 5; n++ {
		ids := make([]string, n)
		for i := range ids {
			ids[i] = string(rune('a' + i))
		}
		tracks := testTracks(ids...)

		for start := 0; start < n; start++ {
			c, _ := newTestCoordinator(t, nil)
			require.NoError(t, c.PlayFrom(tracks, start))

			for i := 0; i < n; i++ {
				c.Advance(Next)
			}
			assert.Equal(t, start, c.State().Index, "n=%d start=%d", n, start)
		}
	}
}

func TestAdvancePreviousWrapsToLast(t *testing.T) {
	c, _ := newTestCoordinator(t, nil)
	require.NoError(t, c.PlayFrom(testTracks("s1", "s2", "s3"), 0))

	c.Advance(Previous)

	st := c.State()
	assert.Equal(t, 2, st.Index)
	assert.Equal(t, "s3", st.Track.ID)
	assert.Zero(t, st.Position)
}

func TestAdvanceOnEmptyQueueIsNoop(t *testing.T) {
	c, out := newTestCoordinator(t, nil)
	c.Advance(Next)
	c.Advance(Previous)

	st := c.State()
	assert.Nil(t, st.Track)
	assert.Equal(t, StatusIdle, st.Status)
	assert.Empty(t, out.sources)
}

func TestAdvancePreservesPlayIntent(t *testing.T) {
	t.Run("paused stays paused", func(t *testing.T) {
		c, out := newTestCoordinator(t, nil)
		require.NoError(t, c.PlayFrom(testTracks("s1", "s2"), 0))
		out.ready(out.current(), 100)
		c.Pause()

		c.Advance(Next)
		out.ready(out.current(), 120)

		st := c.State()
		assert.Equal(t, "s2", st.Track.ID)
		assert.False(t, st.IsPlaying)
		assert.False(t, out.playing)
	})

	t.Run("playing keeps playing", func(t *testing.T) {
		c, out := newTestCoordinator(t, nil)
		require.NoError(t, c.PlayFrom(testTracks("s1", "s2"), 0))
		out.ready(out.current(), 100)

		c.Advance(Next)
		out.ready(out.current(), 120)

		st := c.State()
		assert.Equal(t, "s2", st.Track.ID)
		assert.True(t, st.IsPlaying)
		assert.True(t, out.playing)
	})
}

func TestAdvanceSkipsTracksWithoutMedia(t *testing.T) {
	c, _ := newTestCoordinator(t, nil)
	tracks := testTracks("s1", "s2", "s3")
	tracks[1].StreamURL = ""
	require.NoError(t, c.PlayFrom(tracks, 0))

	c.Advance(Next)
	assert.Equal(t, "s3", c.State().Track.ID)
}

func TestEndOfTrackAutoAdvances(t *testing.T) {
	c, out := newTestCoordinator(t, nil)
	require.NoError(t, c.PlayFrom(testTracks("s1", "s2"), 1))
	out.ready(out.current(), 10)

	out.tick(4)
	assert.Equal(t, 4.0, c.State().Position)

	out.tick(6)

	st := c.State()
	assert.Equal(t, "s1", st.Track.ID, "last track wraps to the first")
	assert.Equal(t, 0, st.Index)
	assert.True(t, st.IsPlaying)
	assert.Zero(t, st.Position)
	assert.Len(t, out.sources, 2)

	out.ready(out.current(), 30)
	assert.True(t, out.playing)
}

func TestSingleTrackQueueReplaysOnEnd(t *testing.T) {
	c, out := newTestCoordinator(t, nil)
	require.NoError(t, c.PlayTrack(testTrack("only")))
	out.ready(out.current(), 5)

	out.tick(5)

	st := c.State()
	assert.Equal(t, "only", st.Track.ID)
	assert.True(t, st.IsPlaying)
	require.Len(t, out.sources, 2)
	assert.NotEqual(t, out.sources[0].Token, out.sources[1].Token)
}

func TestStaleNotificationsAreIgnored(t *testing.T) {
	c, out := newTestCoordinator(t, nil)

	require.NoError(t, c.PlayTrack(testTrack("slow")))
	slow := out.current()
	require.NoError(t, c.PlayTrack(testTrack("fast")))
	fast := out.current()

	out.ready(fast, 200)
	require.True(t, c.State().IsPlaying)

	// the slow source finally reports in
	out.n.Notify(Event{Token: slow.Token, Kind: EventReady, Duration: 100})
	out.n.Notify(Event{Token: slow.Token, Kind: EventTimeUpdate, Position: 50})
	out.n.Notify(Event{Token: slow.Token, Kind: EventEnded})
	out.n.Notify(Event{Token: slow.Token, Kind: EventError, Err: errors.New("boom")})

	st := c.State()
	assert.Equal(t, "fast", st.Track.ID)
	assert.Equal(t, 200.0, st.Duration)
	assert.Zero(t, st.Position)
	assert.True(t, st.IsPlaying)
	assert.Empty(t, st.Err)
	assert.Equal(t, 1, st.Index)
}

func TestPlayThenPauseBeforeReady(t *testing.T) {
	c, out := newTestCoordinator(t, nil)

	require.NoError(t, c.PlayTrack(testTrack("s1")))
	c.Pause()
	out.ready(out.current(), 60)

	st := c.State()
	assert.Equal(t, "s1", st.Track.ID)
	assert.False(t, st.IsPlaying)
	assert.Equal(t, StatusPaused, st.Status)
	assert.False(t, out.playing)
}

func TestTogglePlayPause(t *testing.T) {
	c, out := newTestCoordinator(t, nil)

	c.TogglePlayPause()
	assert.Equal(t, StatusIdle, c.State().Status, "toggle without a track does nothing")

	require.NoError(t, c.PlayTrack(testTrack("s1")))
	out.ready(out.current(), 60)

	c.TogglePlayPause()
	assert.False(t, c.State().IsPlaying)
	assert.False(t, out.playing)

	c.TogglePlayPause()
	assert.True(t, c.State().IsPlaying)
	assert.True(t, out.playing)
}

func TestSeek(t *testing.T) {
	c, out := newTestCoordinator(t, nil)
	require.NoError(t, c.PlayTrack(testTrack("s1")))

	c.Seek(30)
	assert.Zero(t, c.State().Position, "seek without a known duration is a no-op")
	assert.Empty(t, out.seeks)

	out.ready(out.current(), 100)

	tests := []struct {
		name   string
		seek   func()
		expect float64
	}{
		{"seconds", func() { c.Seek(30) }, 30},
		{"past the end", func() { c.Seek(500) }, 100},
		{"negative", func() { c.Seek(-4) }, 0},
		{"fraction", func() { c.SeekFraction(0.25) }, 25},
		{"fraction above one", func() { c.SeekFraction(3) }, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.seek()
			assert.Equal(t, tt.expect, c.State().Position)
			assert.Equal(t, tt.expect, out.seeks[len(out.seeks)-1])
		})
	}
}

func TestSetQueue(t *testing.T) {
	t.Run("current track kept", func(t *testing.T) {
		c, out := newTestCoordinator(t, nil)
		require.NoError(t, c.PlayFrom(testTracks("s1", "s2"), 1))
		loads := len(out.sources)

		c.SetQueue(testTracks("s0", "s1", "s2", "s3"))

		st := c.State()
		assert.Equal(t, "s2", st.Track.ID)
		assert.Equal(t, 2, st.Index)
		assert.True(t, st.IsPlaying)
		assert.Len(t, out.sources, loads)
	})

	t.Run("current track removed resets to idle", func(t *testing.T) {
		c, out := newTestCoordinator(t, nil)
		require.NoError(t, c.PlayFrom(testTracks("s1", "s2"), 1))
		out.ready(out.current(), 100)
		stale := out.current()

		c.SetQueue(testTracks("s7", "s8"))

		st := c.State()
		assert.Nil(t, st.Track)
		assert.Equal(t, 0, st.Index)
		assert.False(t, st.IsPlaying)
		assert.Zero(t, st.Position)
		assert.Equal(t, StatusIdle, st.Status)
		assert.Len(t, st.Queue, 2)
		assert.Positive(t, out.stops)

		out.n.Notify(Event{Token: stale.Token, Kind: EventTimeUpdate, Position: 40})
		assert.Zero(t, c.State().Position)
	})
}

func TestAddToQueueSuppressesDuplicates(t *testing.T) {
	c, _ := newTestCoordinator(t, nil)

	assert.True(t, c.AddToQueue(testTrack("s1")))
	assert.False(t, c.AddToQueue(testTrack("s1")))

	sameNameOtherID := testTrack("s1")
	sameNameOtherID.ID = "other"
	assert.False(t, c.AddToQueue(sameNameOtherID), "title and artist match counts as duplicate")

	assert.True(t, c.AddToQueue(testTrack("s2")))
	assert.Len(t, c.State().Queue, 2)
	assert.Nil(t, c.State().Track, "adding does not start playback")
}

func TestRemoveAt(t *testing.T) {
	c, _ := newTestCoordinator(t, nil)
	require.NoError(t, c.PlayFrom(testTracks("s1", "s2", "s3"), 2))

	require.NoError(t, c.RemoveAt(0))
	st := c.State()
	assert.Equal(t, 1, st.Index)
	assert.Equal(t, "s3", st.Track.ID)

	assert.ErrorIs(t, c.RemoveAt(9), ErrIndexOutOfRange)

	require.NoError(t, c.RemoveAt(1))
	st = c.State()
	assert.Nil(t, st.Track)
	assert.Equal(t, StatusIdle, st.Status)
	assert.Len(t, st.Queue, 1)
}

func TestSetVolumeClamps(t *testing.T) {
	store := NewMemoryStore()
	c, out := newTestCoordinator(t, store)

	for _, tt := range []struct{ in, want int }{{70, 70}, {-5, 0}, {140, 100}} {
		c.SetVolume(tt.in)
		assert.Equal(t, tt.want, c.State().Volume)
		assert.Equal(t, tt.want, out.volume)

		p, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, tt.want, p.VolumeOrDefault())
	}
}

func TestOutputErrorStopsPlayback(t *testing.T) {
	c, out := newTestCoordinator(t, nil)
	require.NoError(t, c.PlayFrom(testTracks("s1", "s2"), 0))
	out.ready(out.current(), 100)

	out.fail(out.current(), errors.New("decode failed"))

	st := c.State()
	require.NotNil(t, st.Track)
	assert.Equal(t, "s1", st.Track.ID, "failed track stays selected")
	assert.False(t, st.IsPlaying)
	assert.False(t, st.IsBuffering)
	assert.Equal(t, "decode failed", st.Err)
	assert.Len(t, st.Queue, 2)

	// toggling retries the load
	c.TogglePlayPause()
	assert.Len(t, out.sources, 2)
	out.ready(out.current(), 100)
	assert.True(t, out.playing)
	assert.Empty(t, c.State().Err)
}

func TestLoadErrorStopsPlayback(t *testing.T) {
	c, out := newTestCoordinator(t, nil)
	out.loadErr = errors.New("unreachable")

	err := c.PlayTrack(testTrack("s1"))
	require.Error(t, err)

	st := c.State()
	assert.Equal(t, "s1", st.Track.ID)
	assert.False(t, st.IsPlaying)
	assert.False(t, st.IsBuffering)
	assert.Equal(t, StatusPaused, st.Status)
}

func TestPersistenceRoundTrip(t *testing.T) {
	store := NewMemoryStore()

	first, out := newTestCoordinator(t, store)
	require.NoError(t, first.PlayFrom(testTracks("t1", "t2"), 0))
	out.ready(out.current(), 100)
	first.Advance(Next)
	first.SetVolume(70)
	require.True(t, first.State().IsPlaying)

	second, out2 := newTestCoordinator(t, store)
	st := second.State()

	assert.Equal(t, testTracks("t1", "t2"), st.Queue)
	assert.Equal(t, 1, st.Index)
	assert.Equal(t, 70, st.Volume)
	assert.Equal(t, 70, out2.volume)
	require.NotNil(t, st.Track)
	assert.Equal(t, "t2", st.Track.ID)
	assert.False(t, st.IsPlaying, "restored state never auto-plays")

	out2.ready(out2.current(), 100)
	assert.False(t, out2.playing)
}

func TestRestoreSeeksToPersistedPosition(t *testing.T) {
	store := NewMemoryStore()
	vol := 40
	t2 := testTrack("t2")
	require.NoError(t, store.Save(Persisted{
		Track:    &t2,
		Queue:    testTracks("t1", "t2"),
		Index:    1,
		Position: 42,
		Volume:   &vol,
	}))

	c, out := newTestCoordinator(t, store)
	st := c.State()
	assert.Equal(t, 42.0, st.Position)
	assert.Equal(t, StatusLoading, st.Status)

	out.ready(out.current(), 200)

	st = c.State()
	assert.Equal(t, []float64{42}, out.seeks)
	assert.Equal(t, 42.0, st.Position)
	assert.Equal(t, StatusPaused, st.Status)
}

func TestRestoreDefaults(t *testing.T) {
	c, out := newTestCoordinator(t, NewMemoryStore())
	st := c.State()

	assert.Empty(t, st.Queue)
	assert.Equal(t, 0, st.Index)
	assert.Equal(t, DefaultVolume, st.Volume)
	assert.Equal(t, DefaultVolume, out.volume)
	assert.Empty(t, out.sources)
}

func TestPositionPersistedOncePerSecond(t *testing.T) {
	store := NewMemoryStore()
	c, out := newTestCoordinator(t, store)
	require.NoError(t, c.PlayTrack(testTrack("s1")))
	out.ready(out.current(), 100)

	before := store.Saves()
	out.tick(0.25)
	out.tick(0.25)
	out.tick(0.25)
	assert.Equal(t, before, store.Saves())

	out.tick(0.5)
	assert.Equal(t, before+1, store.Saves())

	p, err := store.Load()
	require.NoError(t, err)
	assert.InDelta(t, 1.25, p.Position, 0.001)
}

func TestClearAll(t *testing.T) {
	store := NewMemoryStore()
	c, out := newTestCoordinator(t, store)
	require.NoError(t, c.PlayFrom(testTracks("s1", "s2"), 0))
	c.SetVolume(30)

	c.ClearAll()

	st := c.State()
	assert.Nil(t, st.Track)
	assert.Empty(t, st.Queue)
	assert.Equal(t, DefaultVolume, st.Volume)
	assert.False(t, st.IsPlaying)

	p, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, p.Track)
	assert.Empty(t, p.Queue)
	assert.Nil(t, p.Volume)
	assert.Positive(t, out.stops)
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	c, out := newTestCoordinator(t, nil)
	updates := c.Subscribe()

	require.NoError(t, c.PlayTrack(testTrack("s1")))
	out.ready(out.current(), 10)

	first := <-updates
	assert.Equal(t, StatusLoading, first.Status)
	second := <-updates
	assert.Equal(t, StatusPlaying, second.Status)

	c.Unsubscribe(updates)
	_, open := <-updates
	assert.False(t, open)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	c, _ := newTestCoordinator(t, nil)
	_ = c.Subscribe()

	for i := 0; i < listenerBuffer*3; i++ {
		c.SetVolume(i % 100)
	}
	assert.Equal(t, (listenerBuffer*3-1)%100, c.State().Volume)
}

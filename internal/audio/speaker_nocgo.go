//go:build !((linux && cgo) || windows || darwin)

package audio

import (
	"errors"

	"echovia/internal/player"
)

// Available reports whether this build can play sound. Audio requires cgo
// for the native sound libraries.
const Available = false

var errNoAudio = errors.New("audio playback is not available in this build")

// Speaker is a silent output for builds without cgo. Every load fails.
type Speaker struct{}

var _ player.Output = (*Speaker)(nil)

// NewSpeaker creates the silent output
func NewSpeaker(Options) *Speaker { return &Speaker{} }

func (*Speaker) Attach(player.Notifier) {}
func (*Speaker) Load(player.Source) error { return errNoAudio }
func (*Speaker) Play() error { return errNoAudio }
func (*Speaker) Pause() error { return nil }
func (*Speaker) Seek(float64) error { return errNoAudio }
func (*Speaker) SetVolume(int) error { return nil }
func (*Speaker) Stop() error { return nil }
func (*Speaker) Close() error { return nil }

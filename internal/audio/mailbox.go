package audio

import (
	"context"
	"sync"

	"echovia/internal/player"
)

// maxBacklog bounds how many undelivered events may pile up before time
// updates are dropped. Ready, Ended and Error are always kept.
const maxBacklog = 256

// mailbox hands events from any goroutine to a single delivery loop,
// preserving emission order. Pushing never blocks.
type mailbox struct {
	mu      sync.Mutex
	pending []player.Event
	wake    chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{wake: make(chan struct{}, 1)}
}

func (m *mailbox) push(ev player.Event) {
	m.mu.Lock()
	if ev.Kind == player.EventTimeUpdate && len(m.pending) >= maxBacklog {
		m.mu.Unlock()
		return
	}
	m.pending = append(m.pending, ev)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// run delivers queued events in order until ctx is done
func (m *mailbox) run(ctx context.Context, deliver func(player.Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.wake:
		}

		m.mu.Lock()
		batch := m.pending
		m.pending = nil
		m.mu.Unlock()

		for _, ev := range batch {
			if ctx.Err() != nil {
				return
			}
			deliver(ev)
		}
	}
}

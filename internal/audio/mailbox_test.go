package audio

import (
	"context"
	"testing"
	"time"

	"echovia/internal/player"
)

func TestMailboxKeepsOrderUnderBacklog(t *testing.T) {
	m := newMailbox()

	m.push(player.Event{Token: 1, Kind: player.EventReady})
	for i := 0; i < maxBacklog*2; i++ {
		m.push(player.Event{Token: 1, Kind: player.EventTimeUpdate, Position: float64(i)})
	}
	m.push(player.Event{Token: 1, Kind: player.EventEnded})
	m.push(player.Event{Token: 2, Kind: player.EventReady})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []player.Event
	m.run(ctx, func(ev player.Event) {
		got = append(got, ev)
		if ev.Token == 2 {
			cancel()
		}
	})

	if len(got) != maxBacklog+2 {
		t.Fatalf("expected %d events, got %d", maxBacklog+2, len(got))
	}
	if got[0].Kind != player.EventReady {
		t.Errorf("expected ready first, got %s", got[0].Kind)
	}
	last := -1.0
	for _, ev := range got[1:maxBacklog] {
		if ev.Kind != player.EventTimeUpdate || ev.Position <= last {
			t.Fatalf("time updates out of order at %+v", ev)
		}
		last = ev.Position
	}
	if got[len(got)-2].Kind != player.EventEnded || got[len(got)-1].Token != 2 {
		t.Errorf("terminal events must follow the time updates in order, got %s then %s",
			got[len(got)-2].Kind, got[len(got)-1].Kind)
	}
}

func TestMailboxStopsOnCancel(t *testing.T) {
	m := newMailbox()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.run(ctx, func(player.Event) {})
		close(done)
	}()

	m.push(player.Event{Kind: player.EventReady})
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not return after cancel")
	}
}

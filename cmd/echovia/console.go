package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"echovia/internal/client"
	"echovia/internal/player"
	"echovia/pkg/models"
)

const helpText = `Commands:
  p, pause          toggle play/pause
  n, next           next track
  b, prev           previous track
  play N            play queue entry N
  seek S | seek P%  jump to S seconds or P percent
  vol N             set volume 0-100
  q, queue          show the queue
  add QUERY         search and append the best hit
  rm N              remove queue entry N
  clear             reset queue and playback
  status            show what is playing
  logout            end the session and forget playback state
  quit              exit`

// console turns text commands into coordinator operations
type console struct {
	player *player.Coordinator
	search func(ctx context.Context, query string) ([]models.Track, error)
	logout func(ctx context.Context) error
	out    io.Writer
}

// exec runs one command line and reports whether the console should stop.
// A lost session counts as a logout.
func (c *console) exec(ctx context.Context, line string) (bool, error) {
	quit, err := c.dispatch(ctx, line)
	if errors.Is(err, client.ErrUnauthorized) {
		c.player.ClearAll()
		fmt.Fprintln(c.out, "Session expired, logged out")
		return true, err
	}
	return quit, err
}

func (c *console) dispatch(ctx context.Context, line string) (bool, error) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "":
	case "p", "pause":
		c.player.TogglePlayPause()
	case "n", "next":
		c.player.Advance(player.Next)
	case "b", "prev":
		c.player.Advance(player.Previous)
	case "play":
		n, err := c.entry(arg)
		if err != nil {
			return false, err
		}
		track := c.player.State().Queue[n]
		return false, c.player.PlayTrack(track, n)
	case "seek":
		if pct, ok := strings.CutSuffix(arg, "%"); ok {
			f, err := strconv.ParseFloat(pct, 64)
			if err != nil {
				return false, fmt.Errorf("invalid percentage %q", arg)
			}
			c.player.SeekFraction(f / 100)
			return false, nil
		}
		secs, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return false, fmt.Errorf("invalid position %q", arg)
		}
		c.player.Seek(secs)
	case "vol":
		v, err := strconv.Atoi(arg)
		if err != nil {
			return false, fmt.Errorf("invalid volume %q", arg)
		}
		c.player.SetVolume(v)
	case "q", "queue":
		c.printQueue()
	case "add":
		return false, c.add(ctx, arg)
	case "rm":
		n, err := c.entry(arg)
		if err != nil {
			return false, err
		}
		return false, c.player.RemoveAt(n)
	case "clear":
		c.player.ClearAll()
	case "status":
		fmt.Fprintln(c.out, describe(c.player.State()))
	case "help", "?":
		fmt.Fprintln(c.out, helpText)
	case "logout":
		err := c.logout(ctx)
		c.player.ClearAll()
		fmt.Fprintln(c.out, "Logged out")
		return true, err
	case "quit", "exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q, try help", cmd)
	}
	return false, nil
}

// entry parses a 1-based queue position into an index
func (c *console) entry(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid queue position %q", arg)
	}
	if size := len(c.player.State().Queue); n < 1 || n > size {
		return 0, fmt.Errorf("queue position %d: %w", n, player.ErrIndexOutOfRange)
	}
	return n - 1, nil
}

func (c *console) add(ctx context.Context, query string) error {
	if query == "" {
		return errors.New("add needs a search query")
	}
	hits, err := c.search(ctx, query)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Fprintf(c.out, "No songs match %q\n", query)
		return nil
	}
	if c.player.AddToQueue(hits[0]) {
		fmt.Fprintf(c.out, "Added %s\n", trackLabel(hits[0]))
	} else {
		fmt.Fprintf(c.out, "%s is already queued\n", trackLabel(hits[0]))
	}
	return nil
}

func (c *console) printQueue() {
	state := c.player.State()
	if len(state.Queue) == 0 {
		fmt.Fprintln(c.out, "Queue is empty")
		return
	}
	for i, t := range state.Queue {
		marker := " "
		if state.Track != nil && i == state.Index {
			marker = ">"
		}
		fmt.Fprintf(c.out, "%s %2d. %s\n", marker, i+1, trackLabel(t))
	}
}

// watch prints track changes, status changes and errors. Position ticks
// are not echoed.
func (c *console) watch(ctx context.Context, updates <-chan player.State) {
	var last player.State
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-updates:
			if !ok {
				return
			}
			if changed(last, s) {
				fmt.Fprintln(c.out, describe(s))
			}
			last = s
		}
	}
}

func changed(prev, next player.State) bool {
	if prev.Status != next.Status || prev.Err != next.Err || prev.Volume != next.Volume {
		return true
	}
	if (prev.Track == nil) != (next.Track == nil) {
		return true
	}
	return prev.Track != nil && prev.Track.ID != next.Track.ID
}

func describe(s player.State) string {
	if s.Track == nil {
		return fmt.Sprintf("[%s] nothing playing, %d queued", s.Status, len(s.Queue))
	}
	duration := "--:--"
	if s.Duration > 0 {
		duration = clock(s.Duration)
	}
	line := fmt.Sprintf("[%s] %s %s/%s vol %d%%", s.Status, trackLabel(*s.Track),
		clock(s.Position), duration, s.Volume)
	if s.Err != "" {
		line += " (error: " + s.Err + ")"
	}
	return line
}

func trackLabel(t models.Track) string {
	if t.Artist == "" {
		return t.Title
	}
	return t.Title + " - " + t.Artist
}

// clock formats seconds as m:ss
func clock(seconds float64) string {
	total := int(max(seconds, 0))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

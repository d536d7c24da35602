package player

// Source is one assignment of media to the output. Token grows with every
// assignment so that notifications from a replaced source can be dropped.
type Source struct {
	Token uint64
	URL   string
}

// EventKind enumerates the notifications an Output emits
type EventKind int

const (
	EventReady EventKind = iota
	EventTimeUpdate
	EventEnded
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventTimeUpdate:
		return "timeupdate"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a notification from the output about the source identified by
// Token. Position and Duration are in seconds.
type Event struct {
	Token    uint64
	Kind     EventKind
	Position float64
	Duration float64
	Err      error
}

// Notifier receives output events
type Notifier interface {
	Notify(ev Event)
}

// Output is the single audio resource the coordinator commands.
//
// Implementations must not call Notify from inside one of these methods;
// events are delivered from the output's own goroutine, in emission order.
type Output interface {
	Attach(n Notifier)
	Load(src Source) error
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetVolume(percent int) error
	Stop() error
}

package slideshow

import "fmt"

type EventType int

const (
	// media events reported by the surface
	EventReady EventType = iota + 1
	EventFirstFrame
	EventPlaying
	EventProgress
	EventWaiting
	EventStalled
	EventEnded
	EventError

	// EventSkip forces an advance.
	EventSkip

	// internal
	eventPlaylist
	eventDwell
	eventReadyTimeout
	eventSettle
	eventStall
)

var eventNames = map[string]EventType{
	"ready":       EventReady,
	"first_frame": EventFirstFrame,
	"playing":     EventPlaying,
	"progress":    EventProgress,
	"waiting":     EventWaiting,
	"stalled":     EventStalled,
	"ended":       EventEnded,
	"error":       EventError,
	"skip":        EventSkip,
}

// ParseEventType maps a page event name onto an EventType. Internal timer
// events cannot be produced this way.
func ParseEventType(name string) (EventType, error) {
	t, ok := eventNames[name]
	if !ok {
		return 0, fmt.Errorf("unknown slideshow event %q", name)
	}
	return t, nil
}

func (t EventType) String() string {
	for name, v := range eventNames {
		if v == t {
			return name
		}
	}
	switch t {
	case eventPlaylist:
		return "playlist"
	case eventDwell:
		return "dwell"
	case eventReadyTimeout:
		return "ready_timeout"
	case eventSettle:
		return "settle"
	case eventStall:
		return "stall"
	}
	return fmt.Sprintf("event(%d)", int(t))
}

// Event is the single input to the scheduler's state machine.
type Event struct {
	Type EventType
	// Buffer is the surface buffer a media event is about.
	Buffer int
	// Media optionally names the file the page had loaded; events for a
	// file the buffer no longer holds are dropped.
	Media string

	gen      uint64
	playlist []MediaRef
}

func MediaEvent(t EventType, buffer int, media string) Event {
	return Event{Type: t, Buffer: buffer, Media: media}
}

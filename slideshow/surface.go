package slideshow

import "sync"

type Position int

const (
	// PositionRight is off-screen right, where a buffer waits for its turn.
	PositionRight Position = iota
	PositionCenter
	// PositionLeft is off-screen left, where the outgoing buffer exits.
	PositionLeft
)

func (p Position) String() string {
	switch p {
	case PositionCenter:
		return "center"
	case PositionLeft:
		return "left"
	default:
		return "right"
	}
}

// Capabilities describes which readiness signals a surface can emit for
// video. Images always report EventReady once decoded.
type Capabilities struct {
	FrameCallback bool
	PlayingEvent  bool
}

// Surface is the display the scheduler drives. It owns exactly two
// buffers, 0 and 1. Readiness, progress and failures come back to the
// scheduler as events.
type Surface interface {
	Load(id int, m MediaRef)
	Place(id int, pos Position, animate bool)
	Play(id int)
	// Clear drops the buffer's source; a video is paused and unloaded.
	Clear(id int)
	Capabilities() Capabilities
}

// readySignal picks the best first-frame signal the surface offers for the
// given media. ok is false when only the ready timeout can be relied on.
func readySignal(kind Kind, caps Capabilities) (EventType, bool) {
	if kind == KindImage {
		return EventReady, true
	}
	switch {
	case caps.FrameCallback:
		return EventFirstFrame, true
	case caps.PlayingEvent:
		return EventPlaying, true
	default:
		return 0, false
	}
}

// SurfaceBuffer is what a page needs to render one buffer.
type SurfaceBuffer struct {
	Media    MediaRef
	Src      string
	Loaded   bool
	Playing  bool
	Position Position
	Animate  bool
}

// WebSurface keeps the render state for a browser page that polls it and
// reports media events back.
type WebSurface struct {
	srcFor func(name string) string

	mu      sync.Mutex
	caps    Capabilities
	buffers [2]SurfaceBuffer
}

func NewWebSurface(srcFor func(name string) string) *WebSurface {
	return &WebSurface{
		srcFor: srcFor,
		caps:   Capabilities{PlayingEvent: true},
	}
}

func (w *WebSurface) Load(id int, m MediaRef) {
	w.mu.Lock()
	defer w.mu.Unlock()
	b := &w.buffers[id]
	b.Media = m
	b.Src = w.srcFor(m.FileName)
	b.Loaded = true
	b.Playing = false
}

func (w *WebSurface) Place(id int, pos Position, animate bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buffers[id].Position = pos
	w.buffers[id].Animate = animate
}

func (w *WebSurface) Play(id int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buffers[id].Loaded && w.buffers[id].Media.Kind == KindVideo {
		w.buffers[id].Playing = true
	}
}

func (w *WebSurface) Clear(id int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	pos := w.buffers[id].Position
	w.buffers[id] = SurfaceBuffer{Position: pos}
}

func (w *WebSurface) Capabilities() Capabilities {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.caps
}

// SetCapabilities records what the connected page supports.
func (w *WebSurface) SetCapabilities(caps Capabilities) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.caps = caps
}

// Buffers returns a copy of both buffers.
func (w *WebSurface) Buffers() [2]SurfaceBuffer {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buffers
}

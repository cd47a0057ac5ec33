// Package slideshow runs the kiosk's endless shuffled slideshow: two display
// buffers swap roles every transition while the next item warms up in the
// background.
package slideshow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

var ErrEmptyPlaylist = errors.New("no displayable media")

type State int

const (
	StateIdle State = iota
	StateShowing
	StatePreloading
	StateSliding
)

func (s State) String() string {
	switch s {
	case StateShowing:
		return "showing"
	case StatePreloading:
		return "preloading"
	case StateSliding:
		return "sliding"
	default:
		return "idle"
	}
}

type Config struct {
	Dwell        time.Duration
	ReadyTimeout time.Duration
	Settle       time.Duration
	StallTimeout time.Duration
}

// Warmer fetches media ahead of time so it is local when it is shown.
type Warmer interface {
	Warm(ctx context.Context, m MediaRef) error
}

type pruner interface {
	Prune(keep mapset.Set[string]) error
}

// Buffer is the scheduler's view of one display buffer.
type Buffer struct {
	ID       int
	Media    MediaRef
	Loaded   bool
	Position Position
	// Started is set once a video reports playback progress.
	Started bool
}

// Snapshot is a copy of the scheduler state.
type Snapshot struct {
	State      State
	Index      int
	Length     int
	Active     int
	Buffers    [2]Buffer
	Preloaded  string
	Reshuffles int
}

type timerKind int

const (
	timerDwell timerKind = iota
	timerReady
	timerSettle
	timerStall
	numTimers
)

var timerEvents = [numTimers]EventType{
	timerDwell:  eventDwell,
	timerReady:  eventReadyTimeout,
	timerSettle: eventSettle,
	timerStall:  eventStall,
}

type armedTimer struct {
	timer Timer
	gen   uint64
}

type Scheduler struct {
	source  Source
	surface Surface
	warmer  Warmer
	clock   Clock
	cfg     Config
	rng     *rand.Rand

	events chan Event
	done   chan struct{}
	post   func(Event)

	mu             sync.Mutex
	baseCtx        context.Context
	state          State
	playlist       []MediaRef
	index          int
	active         int
	buffers        [2]Buffer
	pendingAdvance bool
	reshuffles     int
	timers         [numTimers]*armedTimer
	gen            uint64
	preloaded      MediaRef
	preloadCancel  context.CancelFunc
}

func NewScheduler(source Source, surface Surface, warmer Warmer, cfg Config) (*Scheduler, error) {
	if source == nil {
		return nil, errors.New("no media source provided for slideshow")
	}
	if surface == nil {
		return nil, errors.New("no surface provided for slideshow")
	}
	if cfg.Dwell <= 0 || cfg.ReadyTimeout <= 0 || cfg.StallTimeout <= 0 || cfg.Settle < 0 {
		return nil, fmt.Errorf("invalid slideshow timings: %+v", cfg)
	}

	s := &Scheduler{
		source:  source,
		surface: surface,
		warmer:  warmer,
		clock:   realClock{},
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
		baseCtx: context.Background(),
	}
	s.post = s.enqueue
	for id := range s.buffers {
		s.buffers[id] = Buffer{ID: id, Position: PositionRight}
	}
	return s, nil
}

// Load fetches the media list and restarts the show from a fresh shuffle.
func (s *Scheduler) Load(ctx context.Context) error {
	names, err := s.source.List(ctx)
	if err != nil {
		return fmt.Errorf("unable to list slideshow media: %w", err)
	}
	playlist := BuildPlaylist(names)
	if p, ok := s.warmer.(pruner); ok {
		keep := mapset.NewSet[string]()
		for _, m := range playlist {
			keep.Add(m.FileName)
		}
		if err := p.Prune(keep); err != nil {
			slog.Warn("unable to prune media cache", "error", err)
		}
	}
	s.post(Event{Type: eventPlaylist, playlist: playlist})
	if len(playlist) == 0 {
		return ErrEmptyPlaylist
	}
	slog.Info("slideshow playlist loaded", "items", len(playlist), "listed", len(names))
	return nil
}

// Post queues an event for the Run loop. It never blocks once Run has
// returned.
func (s *Scheduler) Post(ev Event) {
	s.post(ev)
}

// Skip forces a transition to the next item.
func (s *Scheduler) Skip() {
	s.post(Event{Type: EventSkip})
}

func (s *Scheduler) enqueue(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// Run dispatches queued events until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	defer func() {
		close(s.done)
		s.mu.Lock()
		s.stopAllTimers()
		s.cancelPreload()
		s.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			s.Dispatch(ev)
		}
	}
}

// Dispatch applies one event to the state machine.
func (s *Scheduler) Dispatch(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case eventPlaylist:
		s.start(ev.playlist)
	case eventDwell, eventReadyTimeout, eventSettle, eventStall:
		s.handleTimer(ev)
	case EventSkip:
		s.handleSkip()
	default:
		s.handleMedia(ev)
	}
}

// Snapshot returns a copy of the current state.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:      s.state,
		Index:      s.index,
		Length:     len(s.playlist),
		Active:     s.active,
		Buffers:    s.buffers,
		Preloaded:  s.preloaded.FileName,
		Reshuffles: s.reshuffles,
	}
}

func (s *Scheduler) standby() int {
	return 1 - s.active
}

func (s *Scheduler) start(playlist []MediaRef) {
	s.stopAllTimers()
	s.cancelPreload()
	for id := range s.buffers {
		s.clearBuffer(id)
	}
	s.pendingAdvance = false
	s.playlist = playlist
	s.index = 0
	s.active = 0

	if len(playlist) == 0 {
		s.state = StateIdle
		return
	}

	reshuffle(s.rng, s.playlist, nil)
	s.index = s.rng.Intn(len(s.playlist))

	current := s.playlist[s.index]
	s.loadBuffer(s.active, current)
	s.place(s.active, PositionCenter, false)
	s.place(s.standby(), PositionRight, false)
	s.state = StateShowing
	s.startCurrent()
	s.preloadNext()
}

// startCurrent arms the advance trigger for the active buffer.
func (s *Scheduler) startCurrent() {
	current := s.buffers[s.active]
	if current.Media.Kind == KindVideo {
		s.surface.Play(s.active)
		// a video that never starts is treated like a stalled one
		if !current.Started {
			s.arm(timerStall, s.cfg.StallTimeout)
		}
		return
	}
	s.arm(timerDwell, s.cfg.Dwell)
}

func (s *Scheduler) transitionToNext() {
	if len(s.playlist) == 0 {
		return
	}
	s.stopTimer(timerDwell)
	s.stopTimer(timerStall)
	s.stopTimer(timerReady)
	s.pendingAdvance = false

	s.index++
	if s.index >= len(s.playlist) {
		last := s.buffers[s.active].Media
		reshuffle(s.rng, s.playlist, &last)
		s.index = 0
		s.reshuffles++
		slog.Debug("slideshow wrapped, playlist reshuffled", "items", len(s.playlist))
	}

	next := s.playlist[s.index]
	standby := s.standby()
	s.clearBuffer(standby)
	s.place(standby, PositionRight, false)
	s.loadBuffer(standby, next)
	if next.Kind == KindVideo {
		s.surface.Play(standby)
	}

	s.state = StatePreloading
	s.arm(timerReady, s.cfg.ReadyTimeout)
	s.preloadNext()
}

// beginSlide moves the standby buffer in and the active buffer out.
func (s *Scheduler) beginSlide() {
	s.stopTimer(timerReady)
	s.place(s.standby(), PositionCenter, true)
	s.place(s.active, PositionLeft, true)
	s.state = StateSliding
	s.arm(timerSettle, s.cfg.Settle)
}

// settle tears the outgoing buffer down and swaps roles.
func (s *Scheduler) settle() {
	outgoing := s.active
	s.clearBuffer(outgoing)
	s.place(outgoing, PositionRight, false)

	s.active = 1 - outgoing
	s.state = StateShowing
	s.startCurrent()

	if s.pendingAdvance {
		s.transitionToNext()
	}
}

func (s *Scheduler) handleSkip() {
	switch s.state {
	case StateShowing, StatePreloading:
		s.transitionToNext()
	case StateSliding:
		s.pendingAdvance = true
	}
}

func (s *Scheduler) handleTimer(ev Event) {
	kind := timerKindFor(ev.Type)
	if kind == numTimers {
		return
	}
	t := s.timers[kind]
	if t == nil || t.gen != ev.gen {
		// stale: the timer was cleared or re-armed after it fired
		return
	}
	s.timers[kind] = nil

	switch kind {
	case timerDwell:
		if s.state == StateShowing {
			s.transitionToNext()
		}
	case timerReady:
		if s.state == StatePreloading {
			slog.Debug("media readiness timed out, showing anyway", "media", s.buffers[s.standby()].Media.FileName)
			s.beginSlide()
		}
	case timerSettle:
		if s.state == StateSliding {
			s.settle()
		}
	case timerStall:
		if s.state == StateShowing {
			slog.Warn("video stalled, skipping", "media", s.buffers[s.active].Media.FileName)
			s.transitionToNext()
		}
	}
}

func (s *Scheduler) handleMedia(ev Event) {
	if ev.Buffer != 0 && ev.Buffer != 1 {
		return
	}
	buf := s.buffers[ev.Buffer]
	if !buf.Loaded || (ev.Media != "" && ev.Media != buf.Media.FileName) {
		return
	}
	// only a failure named after the loaded file may skip it
	if ev.Type == EventError && ev.Media == "" {
		return
	}

	switch ev.Type {
	case EventPlaying, EventProgress, EventFirstFrame:
		s.buffers[ev.Buffer].Started = true
	}

	isActive := ev.Buffer == s.active
	switch s.state {
	case StateShowing:
		if !isActive {
			return
		}
		s.handleActiveMedia(ev, buf.Media)

	case StatePreloading:
		// a transition is already underway, so the outgoing buffer's
		// events no longer matter
		if isActive {
			return
		}
		if ev.Type == EventError {
			slog.Warn("media failed to load, skipping", "media", buf.Media.FileName)
			s.transitionToNext()
			return
		}
		if want, ok := readySignal(buf.Media.Kind, s.surface.Capabilities()); ok && ev.Type == want {
			s.beginSlide()
		}

	case StateSliding:
		// the incoming buffer finished or broke before the slide settled
		if !isActive && (ev.Type == EventEnded || ev.Type == EventError) {
			s.pendingAdvance = true
		}
	}
}

// handleActiveMedia covers events from the on-screen buffer.
func (s *Scheduler) handleActiveMedia(ev Event, m MediaRef) {
	switch ev.Type {
	case EventError:
		slog.Warn("media failed to play, skipping", "media", m.FileName)
		s.transitionToNext()
	case EventEnded:
		if m.Kind == KindVideo {
			s.transitionToNext()
		}
	case EventWaiting, EventStalled:
		if m.Kind == KindVideo && s.timers[timerStall] == nil {
			s.arm(timerStall, s.cfg.StallTimeout)
		}
	case EventPlaying, EventProgress, EventFirstFrame:
		s.stopTimer(timerStall)
	}
}

func (s *Scheduler) loadBuffer(id int, m MediaRef) {
	s.buffers[id].Media = m
	s.buffers[id].Loaded = true
	s.buffers[id].Started = false
	s.surface.Load(id, m)
}

func (s *Scheduler) clearBuffer(id int) {
	if s.buffers[id].Loaded {
		s.surface.Clear(id)
	}
	s.buffers[id].Media = MediaRef{}
	s.buffers[id].Loaded = false
	s.buffers[id].Started = false
}

func (s *Scheduler) place(id int, pos Position, animate bool) {
	s.buffers[id].Position = pos
	s.surface.Place(id, pos, animate)
}

// arm replaces any pending timer of the same kind.
func (s *Scheduler) arm(kind timerKind, d time.Duration) {
	s.stopTimer(kind)
	s.gen++
	gen := s.gen
	ev := Event{Type: timerEvents[kind], gen: gen}
	s.timers[kind] = &armedTimer{
		gen:   gen,
		timer: s.clock.AfterFunc(d, func() { s.post(ev) }),
	}
}

func (s *Scheduler) stopTimer(kind timerKind) {
	if t := s.timers[kind]; t != nil {
		t.timer.Stop()
		s.timers[kind] = nil
	}
}

func (s *Scheduler) stopAllTimers() {
	for kind := range s.timers {
		s.stopTimer(timerKind(kind))
	}
}

func timerKindFor(t EventType) timerKind {
	for kind, et := range timerEvents {
		if et == t {
			return timerKind(kind)
		}
	}
	return numTimers
}

// preloadNext starts warming the item after the current one, cancelling
// any warm still in flight.
func (s *Scheduler) preloadNext() {
	s.cancelPreload()
	next := s.playlist[(s.index+1)%len(s.playlist)]
	s.preloaded = next
	if s.warmer == nil {
		return
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	s.preloadCancel = cancel
	go func() {
		if err := s.warmer.Warm(ctx, next); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("unable to preload media", "media", next.FileName, "error", err)
		}
	}()
}

func (s *Scheduler) cancelPreload() {
	if s.preloadCancel != nil {
		s.preloadCancel()
		s.preloadCancel = nil
	}
	s.preloaded = MediaRef{}
}

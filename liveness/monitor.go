// Package liveness decides whether the monitored PC is reachable from the
// backend's health endpoints, tripping only on sustained failure.
package liveness

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aouyang1/pckiosk/api/models"
)

// Prober is the part of the backend client the monitor needs.
type Prober interface {
	Stats(ctx context.Context) (*models.Stats, error)
	Ping(ctx context.Context) (*models.PingResponse, error)
}

type Outcome int

const (
	// OutcomeSkipped means another probe was already in flight.
	OutcomeSkipped Outcome = iota
	OutcomeOnline
	OutcomeOffline
	OutcomeAmbiguous
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOnline:
		return "online"
	case OutcomeOffline:
		return "offline"
	case OutcomeAmbiguous:
		return "ambiguous"
	default:
		return "skipped"
	}
}

type Config struct {
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold int
	OfflineAfter     time.Duration
}

// State is a copy of the monitor's counters.
type State struct {
	ConsecutiveFailures int
	LastSuccess         time.Time
	LastOutcome         Outcome
	Trips               int
}

// Online is the monitor's current belief, before any trip.
func (s State) Online() bool {
	return s.ConsecutiveFailures == 0
}

type Monitor struct {
	prober    Prober
	cfg       Config
	onOffline func()
	now       func() time.Time

	inFlight atomic.Bool

	mu    sync.Mutex
	state State
}

func NewMonitor(prober Prober, cfg Config, onOffline func()) (*Monitor, error) {
	if prober == nil {
		return nil, errors.New("no prober provided for liveness monitor")
	}
	if cfg.Interval <= 0 || cfg.Timeout <= 0 {
		return nil, errors.New("liveness interval and timeout must be positive")
	}
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 1
	}
	if onOffline == nil {
		onOffline = func() {}
	}

	m := &Monitor{
		prober:    prober,
		cfg:       cfg,
		onOffline: onOffline,
		now:       time.Now,
	}
	m.reset()
	return m, nil
}

func (m *Monitor) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.ConsecutiveFailures = 0
	m.state.LastSuccess = m.now()
}

// Snapshot returns a copy of the current state.
func (m *Monitor) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Probe runs one stats-then-ping check and applies the trip policy. It is a
// no-op returning OutcomeSkipped while another probe is in flight.
func (m *Monitor) Probe(ctx context.Context) Outcome {
	if !m.inFlight.CompareAndSwap(false, true) {
		slog.Debug("liveness probe already in flight, skipping")
		return OutcomeSkipped
	}
	defer m.inFlight.Store(false)

	outcome := m.check(ctx)
	m.record(outcome)
	return outcome
}

func (m *Monitor) check(ctx context.Context) Outcome {
	statsCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	stats, err := m.prober.Stats(statsCtx)
	cancel()
	if err == nil && stats.Complete() {
		return OutcomeOnline
	}
	if err != nil {
		slog.Debug("stats probe failed, falling back to ping", "error", err)
	} else {
		slog.Debug("stats probe incomplete, falling back to ping", "error", stats.Error)
	}

	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	ping, err := m.prober.Ping(pingCtx)
	cancel()
	if err != nil {
		slog.Warn("ping probe failed", "error", err)
		return OutcomeAmbiguous
	}
	if ping.Status == models.PingOffline {
		slog.Warn("backend reports monitored pc offline")
		return OutcomeOffline
	}
	return OutcomeOnline
}

func (m *Monitor) record(outcome Outcome) {
	m.mu.Lock()
	now := m.now()
	m.state.LastOutcome = outcome
	if outcome == OutcomeOnline {
		m.state.ConsecutiveFailures = 0
		m.state.LastSuccess = now
	} else {
		m.state.ConsecutiveFailures++
	}

	failures := m.state.ConsecutiveFailures
	sinceSuccess := now.Sub(m.state.LastSuccess)
	trip := failures >= m.cfg.FailureThreshold && sinceSuccess > m.cfg.OfflineAfter
	if trip {
		m.state.Trips++
		// a trip discards everything, just like the page reload it replaces
		m.state.ConsecutiveFailures = 0
		m.state.LastSuccess = now
	}
	m.mu.Unlock()

	if trip {
		slog.Warn("monitored pc judged offline", "failures", failures, "since_success", sinceSuccess)
		m.onOffline()
	}
}

// Run probes on every interval tick until ctx is done. Each tick probes in
// its own goroutine so a slow probe makes later ticks skip, not queue.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				m.Probe(ctx)
			}()
		}
	}
}

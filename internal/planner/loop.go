package planner

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/pathtrack/internal/timeutil"
)

// DefaultRate is the default planning cadence in ticks per second.
const DefaultRate = 30.0

// WindowSink receives one forward window per successful planning tick.
// Publish must not block: a slow consumer drops windows rather than stalling
// the loop.
type WindowSink interface {
	Publish(Window)
}

// MultiSink fans one published window out to several sinks in order.
type MultiSink []WindowSink

// Publish sends the window to every sink.
func (m MultiSink) Publish(w Window) {
	for _, s := range m {
		s.Publish(w)
	}
}

// LoopConfig contains configuration for the planning loop.
type LoopConfig struct {
	// Store supplies the latest pose, route, and stop index.
	Store *Store

	// Planner computes the forward window each tick.
	Planner *Planner

	// Sink receives published windows. May be nil.
	Sink WindowSink

	// Rate is the tick rate in Hz (default 30).
	Rate float64

	// Clock is optional; if nil, the real clock is used.
	Clock timeutil.Clock

	// Logger is optional; if nil, uses log.Default().
	Logger *log.Logger
}

// Loop drives the planner at a fixed cadence whenever both pose and route
// are available, publishing each result to the sink. Ticks with missing
// inputs are skipped silently. Every tick is independent, so a bad tick
// self-heals on the next one once inputs are corrected upstream.
type Loop struct {
	store    *Store
	planner  *Planner
	sink     WindowSink
	interval time.Duration
	clock    timeutil.Clock
	logger   *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	ticks     atomic.Uint64
	skips     atomic.Uint64
	published atomic.Uint64
}

// NewLoop creates a planning loop from the given configuration.
func NewLoop(cfg LoopConfig) *Loop {
	rate := cfg.Rate
	if rate <= 0 {
		rate = DefaultRate
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Loop{
		store:    cfg.Store,
		planner:  cfg.Planner,
		sink:     cfg.Sink,
		interval: time.Duration(float64(time.Second) / rate),
		clock:    clock,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Run starts the planning loop. It blocks until the context is cancelled or
// Stop() is called. Returns nil on clean shutdown.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return nil // already running
	}
	l.running = true
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	l.mu.Unlock()

	defer func() {
		close(l.doneCh)
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	ticker := l.clock.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Printf("planner loop started: interval=%v", l.interval)

	for {
		select {
		case <-ctx.Done():
			l.logger.Printf("planner loop stopping due to context cancellation")
			return nil
		case <-l.stopCh:
			l.logger.Printf("planner loop stopping due to Stop() call")
			return nil
		case <-ticker.C():
			l.tick()
		}
	}
}

// Stop requests the loop to stop. It is safe to call multiple times.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	select {
	case <-l.stopCh:
		// already closed
	default:
		close(l.stopCh)
	}
	l.mu.Unlock()

	// Wait for completion
	<-l.doneCh
}

// IsRunning returns whether the loop is currently running.
func (l *Loop) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// tick performs one planning cycle. Missing pose or route makes the tick a
// silent no-op, not an error.
func (l *Loop) tick() {
	l.ticks.Add(1)

	pose, ok := l.store.Pose()
	if !ok {
		l.skips.Add(1)
		return
	}
	r, ix, ok := l.store.Route()
	if !ok {
		l.skips.Add(1)
		return
	}

	w := l.planner.Plan(pose, r, ix, l.store.Stop())
	if l.sink != nil {
		l.sink.Publish(w)
	}
	l.published.Add(1)
}

// LoopStats is a snapshot of loop counters.
type LoopStats struct {
	Ticks     uint64 `json:"ticks"`
	Skips     uint64 `json:"skips"`
	Published uint64 `json:"published"`
	Running   bool   `json:"running"`
}

// Stats returns the current loop counters.
func (l *Loop) Stats() LoopStats {
	return LoopStats{
		Ticks:     l.ticks.Load(),
		Skips:     l.skips.Load(),
		Published: l.published.Load(),
		Running:   l.IsRunning(),
	}
}

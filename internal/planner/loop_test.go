package planner

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pathtrack/internal/timeutil"
)

// captureSink records published windows for assertions.
type captureSink struct {
	mu      sync.Mutex
	windows []Window
}

func (c *captureSink) Publish(w Window) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.windows = append(c.windows, w)
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.windows)
}

func (c *captureSink) last() Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.windows[len(c.windows)-1]
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func startLoop(t *testing.T, l *Loop, clock *timeutil.MockClock) {
	t.Helper()
	go func() {
		if err := l.Run(context.Background()); err != nil {
			t.Errorf("loop returned error: %v", err)
		}
	}()
	require.Eventually(t, l.IsRunning, time.Second, time.Millisecond)
	if clock != nil {
		// Wait for the loop's ticker to exist before the test advances time.
		require.Eventually(t, func() bool { return clock.TickerCount() > 0 }, time.Second, time.Millisecond)
	}
}

func TestLoopSkipsUntilInputsPresent(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(time.Unix(0, 0))
	store := NewStore()
	sink := &captureSink{}
	l := NewLoop(LoopConfig{
		Store:   store,
		Planner: New(Config{}),
		Sink:    sink,
		Rate:    30,
		Clock:   clock,
		Logger:  quietLogger(),
	})
	startLoop(t, l, clock)
	defer l.Stop()

	interval := time.Second / 30

	// No pose, no route: ticks happen, nothing is published.
	clock.Advance(interval)
	require.Eventually(t, func() bool { return l.Stats().Ticks >= 1 }, time.Second, time.Millisecond)
	assert.Zero(t, sink.count())
	assert.GreaterOrEqual(t, l.Stats().Skips, uint64(1))

	// Pose alone is still not enough.
	store.SetPose(poseAt(0, 0))
	clock.Advance(interval)
	require.Eventually(t, func() bool { return l.Stats().Ticks >= 2 }, time.Second, time.Millisecond)
	assert.Zero(t, sink.count())

	// Pose plus route publishes one window per tick.
	require.NoError(t, store.SetRoute(straightRoute(10, 5.0)))
	clock.Advance(interval)
	require.Eventually(t, func() bool { return sink.count() >= 1 }, time.Second, time.Millisecond)

	w := sink.last()
	assert.Equal(t, 0, w.Closest)
	assert.Len(t, w.Waypoints, 10)
}

func TestLoopPicksUpLatestStopIndex(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(time.Unix(0, 0))
	store := NewStore()
	store.SetPose(poseAt(0, 0))
	require.NoError(t, store.SetRoute(straightRoute(10, 5.0)))

	sink := &captureSink{}
	l := NewLoop(LoopConfig{
		Store:   store,
		Planner: New(Config{}),
		Sink:    sink,
		Rate:    30,
		Clock:   clock,
		Logger:  quietLogger(),
	})
	startLoop(t, l, clock)
	defer l.Stop()

	interval := time.Second / 30

	clock.Advance(interval)
	require.Eventually(t, func() bool { return sink.count() >= 1 }, time.Second, time.Millisecond)
	assert.False(t, sink.last().Braking)

	store.SetStop(6)
	clock.Advance(interval)
	require.Eventually(t, func() bool { return sink.count() >= 2 }, time.Second, time.Millisecond)
	assert.True(t, sink.last().Braking)
	assert.Equal(t, 6, sink.last().StopIndex)
}

func TestLoopStop(t *testing.T) {
	t.Parallel()

	l := NewLoop(LoopConfig{
		Store:   NewStore(),
		Planner: New(Config{}),
		Clock:   timeutil.NewMockClock(time.Unix(0, 0)),
		Logger:  quietLogger(),
	})
	startLoop(t, l, nil)

	l.Stop()
	assert.False(t, l.IsRunning())

	// Stop is idempotent.
	l.Stop()
}

func TestLoopRunTwiceIsNoOp(t *testing.T) {
	t.Parallel()

	l := NewLoop(LoopConfig{
		Store:   NewStore(),
		Planner: New(Config{}),
		Clock:   timeutil.NewMockClock(time.Unix(0, 0)),
		Logger:  quietLogger(),
	})
	startLoop(t, l, nil)
	defer l.Stop()

	// Second Run returns immediately without disturbing the first.
	assert.NoError(t, l.Run(context.Background()))
	assert.True(t, l.IsRunning())
}

func TestLoopContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	l := NewLoop(LoopConfig{
		Store:   NewStore(),
		Planner: New(Config{}),
		Clock:   timeutil.NewMockClock(time.Unix(0, 0)),
		Logger:  quietLogger(),
	})

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	require.Eventually(t, l.IsRunning, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not exit on context cancellation")
	}
}

func TestMultiSink(t *testing.T) {
	t.Parallel()

	a := &captureSink{}
	b := &captureSink{}
	MultiSink{a, b}.Publish(Window{Closest: 3})

	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
	assert.Equal(t, 3, a.last().Closest)
}

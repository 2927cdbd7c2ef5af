package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClockNowAndAdvance(t *testing.T) {
	t.Parallel()
	start := time.Unix(1000, 0)
	clock := NewMockClock(start)

	assert.Equal(t, start, clock.Now())

	clock.Advance(5 * time.Second)
	assert.Equal(t, start.Add(5*time.Second), clock.Now())
	assert.Equal(t, 5*time.Second, clock.Since(start))
}

func TestMockClockSleepRecordsWithoutBlocking(t *testing.T) {
	t.Parallel()
	clock := NewMockClock(time.Unix(0, 0))

	clock.Sleep(time.Minute)
	clock.Sleep(time.Second)

	assert.Equal(t, []time.Duration{time.Minute, time.Second}, clock.Sleeps())
}

func TestMockTickerFiresOnAdvance(t *testing.T) {
	t.Parallel()
	clock := NewMockClock(time.Unix(0, 0))
	ticker := clock.NewTicker(time.Second)
	defer ticker.Stop()

	require.Equal(t, 1, clock.TickerCount())

	// Not yet due.
	clock.Advance(500 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired before its interval elapsed")
	default:
	}

	// Crossing the interval boundary fires exactly once.
	clock.Advance(500 * time.Millisecond)
	select {
	case <-ticker.C():
	default:
		t.Fatal("ticker did not fire at its interval")
	}
}

func TestMockTickerStopped(t *testing.T) {
	t.Parallel()
	clock := NewMockClock(time.Unix(0, 0))
	ticker := clock.NewTicker(time.Second)
	ticker.Stop()

	clock.Advance(2 * time.Second)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker must not fire")
	default:
	}
}

func TestRealClock(t *testing.T) {
	t.Parallel()
	clock := RealClock{}

	before := time.Now()
	now := clock.Now()
	assert.False(t, now.Before(before))

	ticker := clock.NewTicker(time.Millisecond)
	defer ticker.Stop()
	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Fatal("real ticker did not fire")
	}
}

package planner

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pathtrack/internal/route"
)

// straightRoute returns n waypoints spaced 1m apart along +X with the given
// base speed.
func straightRoute(n int, speed float64) route.Route {
	r := make(route.Route, n)
	for i := range r {
		r[i] = route.Waypoint{
			Pose:  route.Pose{Position: route.Point{X: float64(i)}},
			Speed: speed,
		}
	}
	return r
}

func poseAt(x, y float64) route.Pose {
	return route.Pose{Position: route.Point{X: x, Y: y}}
}

func TestPlanPassThrough(t *testing.T) {
	t.Parallel()
	r := straightRoute(10, 5.0)
	ix, err := route.NewIndex(r)
	require.NoError(t, err)
	p := New(Config{})

	t.Run("no active stop copies base speeds", func(t *testing.T) {
		t.Parallel()
		w := p.Plan(poseAt(0, 0), r, ix, NoStop)
		assert.False(t, w.Braking)
		assert.Equal(t, 0, w.Closest)
		if diff := cmp.Diff([]route.Waypoint(r), w.Waypoints); diff != "" {
			t.Errorf("window differs from base slice (-want +got):\n%s", diff)
		}
	})

	t.Run("stop beyond the window copies base speeds", func(t *testing.T) {
		t.Parallel()
		p5 := New(Config{Lookahead: 5})
		w := p5.Plan(poseAt(0, 0), r, ix, 7) // farthest = 5, stop 7 out of range
		assert.False(t, w.Braking)
		if diff := cmp.Diff([]route.Waypoint(r[0:5]), w.Waypoints); diff != "" {
			t.Errorf("window differs from base slice (-want +got):\n%s", diff)
		}
	})

	t.Run("output copies do not alias the base route", func(t *testing.T) {
		t.Parallel()
		w := p.Plan(poseAt(0, 0), r, ix, NoStop)
		w.Waypoints[0].Speed = 99
		assert.Equal(t, 5.0, r[0].Speed)
	})
}

func TestPlanWindowBounding(t *testing.T) {
	t.Parallel()
	r := straightRoute(10, 5.0)
	ix, err := route.NewIndex(r)
	require.NoError(t, err)

	t.Run("full lookahead when available", func(t *testing.T) {
		t.Parallel()
		p := New(Config{Lookahead: 5})
		w := p.Plan(poseAt(0, 0), r, ix, NoStop)
		assert.Len(t, w.Waypoints, 5)
	})

	t.Run("shorter window near end of route", func(t *testing.T) {
		t.Parallel()
		p := New(Config{Lookahead: 5})
		w := p.Plan(poseAt(7.4, 0), r, ix, NoStop)
		assert.Equal(t, 8, w.Closest)
		assert.Len(t, w.Waypoints, 2)
	})
}

// TestPlanDecelerationProfile walks through the canonical braking case:
// 10 waypoints 1m apart at 5 m/s, vehicle at waypoint 0, stop line at
// index 6 with a 4 waypoint margin, so zero speed is targeted at offset 2.
func TestPlanDecelerationProfile(t *testing.T) {
	t.Parallel()
	r := straightRoute(10, 5.0)
	ix, err := route.NewIndex(r)
	require.NoError(t, err)
	p := New(Config{})

	w := p.Plan(poseAt(0, 0), r, ix, 6)
	require.True(t, w.Braking)
	require.Len(t, w.Waypoints, 10)

	// sqrt(2 * 0.5 * dist) + i/100 for dist 2 and 1.
	assert.InDelta(t, 1.4142135, w.Waypoints[0].Speed, 1e-6)
	assert.InDelta(t, 1.01, w.Waypoints[1].Speed, 1e-9)

	// Zero at the stop offset and everywhere past it.
	for i := 2; i < 10; i++ {
		assert.Zerof(t, w.Waypoints[i].Speed, "waypoint %d should be stopped", i)
	}

	// Decreasing toward the stop, never above base speed.
	assert.Greater(t, w.Waypoints[0].Speed, w.Waypoints[1].Speed)
	for i, wp := range w.Waypoints {
		assert.LessOrEqualf(t, wp.Speed, r[w.Closest+i].Speed, "waypoint %d exceeds base speed", i)
	}
}

func TestPlanDecelerationClampsToBaseSpeed(t *testing.T) {
	t.Parallel()

	// Slow zone: base speeds below the braking curve must win.
	r := straightRoute(30, 1.2)
	ix, err := route.NewIndex(r)
	require.NoError(t, err)
	p := New(Config{})

	w := p.Plan(poseAt(0, 0), r, ix, 25)
	require.True(t, w.Braking)
	for i, wp := range w.Waypoints {
		assert.LessOrEqualf(t, wp.Speed, 1.2, "waypoint %d exceeds base speed", i)
	}
}

func TestPlanStopAtOrBehindVehicle(t *testing.T) {
	t.Parallel()
	r := straightRoute(10, 5.0)
	ix, err := route.NewIndex(r)
	require.NoError(t, err)
	p := New(Config{})

	// Stop line closer than the margin: offset clamps to the window start,
	// so everything in the window is zeroed.
	w := p.Plan(poseAt(0, 0), r, ix, 3)
	require.True(t, w.Braking)
	for i, wp := range w.Waypoints {
		assert.Zerof(t, wp.Speed, "waypoint %d should be stopped", i)
	}
}

func TestPlanMarginBeforeStopLine(t *testing.T) {
	t.Parallel()
	r := straightRoute(50, 20.0)
	ix, err := route.NewIndex(r)
	require.NoError(t, err)
	p := New(Config{StopMargin: 4})

	w := p.Plan(poseAt(0, 0), r, ix, 30)
	require.True(t, w.Braking)

	// Zero is reached at stop - margin, not at the stop line itself.
	assert.Zero(t, w.Waypoints[26].Speed)
	assert.Positive(t, w.Waypoints[25].Speed)
}

// Package planner selects the bounded forward-looking window of route
// waypoints a vehicle controller should track next, and reshapes the
// window's target speeds into a braking profile when a stop line is active
// within range.
package planner

import (
	"math"

	"github.com/banshee-data/pathtrack/internal/route"
)

// Defaults match the tuned values of the upstream waypoint follower.
const (
	DefaultLookahead  = 100 // waypoints published per tick
	DefaultMaxDecel   = 0.5 // m/s^2, comfortable braking
	DefaultStopMargin = 4   // waypoints to stop short of the stop line
	DefaultCreepSpeed = 1.0 // m/s, profile speeds below this snap to zero
)

// Config holds the planner's tuning parameters. Zero values select the
// defaults above.
type Config struct {
	// Lookahead is the maximum number of waypoints in a forward window.
	Lookahead int

	// MaxDecel is the comfortable deceleration used for the braking curve,
	// in m/s^2.
	MaxDecel float64

	// StopMargin is the number of waypoints before the literal stop line at
	// which zero speed is targeted, to avoid overshoot.
	StopMargin int

	// CreepSpeed is the threshold below which profile speeds snap to zero
	// rather than creeping toward the line.
	CreepSpeed float64
}

func (c Config) withDefaults() Config {
	if c.Lookahead <= 0 {
		c.Lookahead = DefaultLookahead
	}
	if c.MaxDecel <= 0 {
		c.MaxDecel = DefaultMaxDecel
	}
	if c.StopMargin <= 0 {
		c.StopMargin = DefaultStopMargin
	}
	if c.CreepSpeed <= 0 {
		c.CreepSpeed = DefaultCreepSpeed
	}
	return c
}

// Planner computes forward windows from the latest stored state. It holds
// no mutable state of its own; every Plan call is independent.
type Planner struct {
	cfg Config

	// constantDecel is the small per-step bias added to the braking curve so
	// the tail does not approach zero asymptotically.
	constantDecel float64
}

// New creates a Planner with the given configuration.
func New(cfg Config) *Planner {
	cfg = cfg.withDefaults()
	return &Planner{
		cfg:           cfg,
		constantDecel: 1.0 / float64(cfg.Lookahead),
	}
}

// Window is one planning result: up to Lookahead waypoints starting at the
// closest route index ahead of the vehicle. Waypoints are copies; the base
// route is never mutated and speeds are only ever reduced, never raised
// above the route's designed speed.
type Window struct {
	// Closest is the route index the window starts at.
	Closest int

	// StopIndex is the stop line index in effect for this window, or NoStop.
	StopIndex int

	// Braking reports whether the window's speeds were replaced by a
	// deceleration profile.
	Braking bool

	// Waypoints is the forward window, in route order.
	Waypoints []route.Waypoint
}

// Plan produces the forward window for the given pose. The route and index
// must be established before calling; the loop guards this.
func (p *Planner) Plan(pose route.Pose, r route.Route, ix *route.Index, stop int) Window {
	closest := ix.NearestAhead(pose.Position.X, pose.Position.Y)
	farthest := closest + p.cfg.Lookahead
	end := farthest
	if end > len(r) {
		// Short window near the end of the route, no wraparound padding.
		end = len(r)
	}
	base := r[closest:end]

	w := Window{Closest: closest, StopIndex: stop}
	if stop == NoStop || stop >= farthest {
		w.Waypoints = append([]route.Waypoint(nil), base...)
		return w
	}

	w.Braking = true
	w.Waypoints = p.decelerate(r, base, closest, stop)
	return w
}

// decelerate recomputes target speeds over the base slice so the vehicle
// reaches zero at the stop offset: the stop line index pulled back by the
// safety margin, clamped at the window start. Speeds follow the constant
// deceleration stopping-distance form v = sqrt(2*a*d) over the remaining
// chain distance, plus the per-step bias, snapped to zero below the creep
// threshold and clamped to the base waypoint speed.
func (p *Planner) decelerate(r route.Route, base []route.Waypoint, closest, stop int) []route.Waypoint {
	stopOffset := stop - closest - p.cfg.StopMargin
	if stopOffset < 0 {
		stopOffset = 0
	}

	out := make([]route.Waypoint, len(base))
	for i, wp := range base {
		dist := r.ChainDistance(closest+i, closest+stopOffset)
		vel := math.Sqrt(2*p.cfg.MaxDecel*dist) + float64(i)*p.constantDecel
		if vel < p.cfg.CreepSpeed {
			vel = 0
		}

		out[i] = wp
		out[i].Speed = math.Min(vel, wp.Speed)
	}
	return out
}

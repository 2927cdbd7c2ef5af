// Package route defines the waypoint route model shared by the planner, the
// telemetry store, and the plotting tools.
package route

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Point is a position in route coordinates (metres).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// Pose is a position plus heading (radians, counter-clockwise from +X).
type Pose struct {
	Position Point   `json:"position"`
	Yaw      float64 `json:"yaw"`
}

// Waypoint is one route point: a pose and the longitudinal target speed in
// m/s. The stored base route is never mutated; the planner overrides speeds
// only on output copies.
type Waypoint struct {
	Pose  Pose    `json:"pose"`
	Speed float64 `json:"speed"`
}

// Route is the fixed, ordered sequence of waypoints defining the full path.
// Index arithmetic wraps modulo len(route) for the direction-of-travel check.
type Route []Waypoint

// DistanceTo returns the Euclidean distance between two points.
func (p Point) DistanceTo(q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	dz := p.Z - q.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// ChainDistance returns the cumulative path distance along the route between
// waypoints from and to, summing consecutive segment lengths. The walk only
// moves forward: when from >= to the distance is zero. The braking profile
// relies on this so that waypoints at or beyond the stop offset see zero
// remaining distance.
func (r Route) ChainDistance(from, to int) float64 {
	var dist float64
	for i := from; i < to; i++ {
		dist += r[i].Pose.Position.DistanceTo(r[i+1].Pose.Position)
	}
	return dist
}

// LoadFile reads a route from a JSON file containing an array of waypoints.
// A route shorter than two waypoints cannot be indexed or followed and is
// rejected here so startup fails loudly rather than at the first query.
func LoadFile(path string) (Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read route file: %w", err)
	}
	var r Route
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse route file %s: %w", path, err)
	}
	if len(r) < 2 {
		return nil, fmt.Errorf("route must contain at least 2 waypoints, got %d", len(r))
	}
	return r, nil
}

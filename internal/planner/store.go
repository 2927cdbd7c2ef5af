package planner

import (
	"sync"

	"github.com/banshee-data/pathtrack/internal/route"
)

// NoStop is the sentinel stop index meaning no stop line is active.
const NoStop = -1

// Store holds the planner's shared input state: the set-once route and its
// spatial index, the latest vehicle pose, and the latest stop index. Each
// cell carries its own lock and is replaced wholesale on update. The planner
// tolerates slightly stale combinations across cells, so there is no
// cross-cell atomicity.
type Store struct {
	poseMu  sync.Mutex
	pose    route.Pose
	hasPose bool

	routeMu          sync.Mutex
	route            route.Route
	index            *route.Index
	ignoredRouteSets int

	stopMu sync.Mutex
	stop   int

	obstacleMu sync.Mutex
	obstacle   int
}

// NewStore creates an empty Store with no active stop.
func NewStore() *Store {
	return &Store{stop: NoStop, obstacle: NoStop}
}

// SetPose replaces the stored vehicle pose. Only the latest value matters;
// no history is retained.
func (s *Store) SetPose(p route.Pose) {
	s.poseMu.Lock()
	defer s.poseMu.Unlock()
	s.pose = p
	s.hasPose = true
}

// Pose returns the latest pose and whether one has been received yet.
func (s *Store) Pose() (route.Pose, bool) {
	s.poseMu.Lock()
	defer s.poseMu.Unlock()
	return s.pose, s.hasPose
}

// SetRoute establishes the route and builds its spatial index. The first
// successful call wins; subsequent calls are no-ops so the index is built
// exactly once for the process lifetime. An unusable route on the first call
// is returned as an error so startup can fail loudly.
func (s *Store) SetRoute(r route.Route) error {
	s.routeMu.Lock()
	defer s.routeMu.Unlock()
	if s.route != nil {
		s.ignoredRouteSets++
		return nil
	}
	ix, err := route.NewIndex(r)
	if err != nil {
		return err
	}
	s.route = r
	s.index = ix
	return nil
}

// Route returns the route and its index, plus whether they are established.
// The index is never returned without the route that built it.
func (s *Store) Route() (route.Route, *route.Index, bool) {
	s.routeMu.Lock()
	defer s.routeMu.Unlock()
	return s.route, s.index, s.route != nil
}

// IgnoredRouteSets reports how many route deliveries were discarded after
// the first one.
func (s *Store) IgnoredRouteSets() int {
	s.routeMu.Lock()
	defer s.routeMu.Unlock()
	return s.ignoredRouteSets
}

// SetStop replaces the active stop index. NoStop clears it. Values are not
// validated here; an in-range index is a contract precondition on the
// upstream stop detector.
func (s *Store) SetStop(idx int) {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()
	s.stop = idx
}

// Stop returns the latest stop index, or NoStop.
func (s *Store) Stop() int {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()
	return s.stop
}

// SetObstacle is the collaborator hook for an obstacle feed. Obstacle
// avoidance is not implemented; the latest value is stored and otherwise
// ignored.
func (s *Store) SetObstacle(idx int) {
	s.obstacleMu.Lock()
	defer s.obstacleMu.Unlock()
	s.obstacle = idx
}

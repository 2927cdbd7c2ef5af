package telemetry

import (
	"sync"
	"time"

	"github.com/banshee-data/pathtrack/internal/monitoring"
	"github.com/banshee-data/pathtrack/internal/planner"
	"github.com/banshee-data/pathtrack/internal/timeutil"
)

// Recorder samples published windows into the database at most once per
// interval, so a 30 Hz planning loop does not become 30 inserts a second.
// It implements planner.WindowSink.
type Recorder struct {
	db       *DB
	interval time.Duration
	clock    timeutil.Clock

	mu   sync.Mutex
	last time.Time
}

// NewRecorder creates a Recorder writing to db no more often than interval.
// A nil clock selects the real clock.
func NewRecorder(db *DB, interval time.Duration, clock timeutil.Clock) *Recorder {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Recorder{db: db, interval: interval, clock: clock}
}

// Publish records a summary of the window if the sampling interval has
// elapsed. Database errors are logged, not returned: telemetry must never
// stall the planning loop.
func (r *Recorder) Publish(w planner.Window) {
	r.mu.Lock()
	now := r.clock.Now()
	if !r.last.IsZero() && now.Sub(r.last) < r.interval {
		r.mu.Unlock()
		return
	}
	r.last = now
	r.mu.Unlock()

	rec := WindowRecord{
		ClosestIndex:  w.Closest,
		StopIndex:     w.StopIndex,
		Braking:       w.Braking,
		WaypointCount: len(w.Waypoints),
	}
	for i, wp := range w.Waypoints {
		if i == 0 || wp.Speed < rec.MinSpeed {
			rec.MinSpeed = wp.Speed
		}
		if wp.Speed > rec.MaxSpeed {
			rec.MaxSpeed = wp.Speed
		}
	}

	if err := r.db.RecordWindow(rec); err != nil {
		monitoring.Logf("telemetry: %v", err)
	}
}

// Package telemetry records planner activity to sqlite so runs can be
// inspected after the fact.
package telemetry

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/pathtrack/internal/monitoring"
)

// DB wraps the telemetry database. Every row is tagged with the run ID
// generated when the database is opened, so one file can hold many runs.
type DB struct {
	*sql.DB
	runID string
}

// NewDB opens (creating if needed) the telemetry database at path and
// bootstraps the base schema inline, so ad-hoc copies of the file work
// without the migrations directory. The versioned migrations in migrations/
// carry the same schema; the planner binary runs MigrateUp on top of this
// bootstrap at startup, so later schema versions apply only there.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS routes (
			run_id            TEXT,
			name              TEXT,
			length            BIGINT,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS windows (
			run_id            TEXT,
			closest_index     BIGINT,
			stop_index        BIGINT,
			braking           BOOLEAN,
			waypoint_count    BIGINT,
			min_speed         DOUBLE,
			max_speed         DOUBLE,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return nil, err
	}

	return &DB{DB: db, runID: uuid.NewString()}, nil
}

// RunID returns the identifier tagging this process's telemetry rows.
func (db *DB) RunID() string { return db.runID }

// RecordRoute stores the loaded route's metadata.
func (db *DB) RecordRoute(name string, length int) error {
	_, err := db.Exec(
		`INSERT INTO routes (run_id, name, length) VALUES (?, ?, ?)`,
		db.runID, name, length,
	)
	if err != nil {
		return fmt.Errorf("failed to record route: %w", err)
	}
	return nil
}

// WindowRecord is a per-tick summary of one published forward window.
type WindowRecord struct {
	ClosestIndex  int     `json:"closest_index"`
	StopIndex     int     `json:"stop_index"`
	Braking       bool    `json:"braking"`
	WaypointCount int     `json:"waypoint_count"`
	MinSpeed      float64 `json:"min_speed"`
	MaxSpeed      float64 `json:"max_speed"`
}

// RecordWindow stores one window summary.
func (db *DB) RecordWindow(rec WindowRecord) error {
	_, err := db.Exec(
		`INSERT INTO windows (run_id, closest_index, stop_index, braking, waypoint_count, min_speed, max_speed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		db.runID, rec.ClosestIndex, rec.StopIndex, rec.Braking, rec.WaypointCount, rec.MinSpeed, rec.MaxSpeed,
	)
	if err != nil {
		return fmt.Errorf("failed to record window: %w", err)
	}
	return nil
}

// RecentWindows returns up to n of this run's most recent window summaries,
// newest first.
func (db *DB) RecentWindows(n int) ([]WindowRecord, error) {
	rows, err := db.Query(
		`SELECT closest_index, stop_index, braking, waypoint_count, min_speed, max_speed
		 FROM windows WHERE run_id = ? ORDER BY rowid DESC LIMIT ?`,
		db.runID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query windows: %w", err)
	}
	defer rows.Close()

	var out []WindowRecord
	for rows.Next() {
		var rec WindowRecord
		if err := rows.Scan(&rec.ClosestIndex, &rec.StopIndex, &rec.Braking,
			&rec.WaypointCount, &rec.MinSpeed, &rec.MaxSpeed); err != nil {
			return nil, fmt.Errorf("failed to scan window row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AttachAdminRoutes mounts a tailSQL console over the telemetry database on
// the debug mux. These routes are accessible only over localhost/Tailscale.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		monitoring.Logf("failed to create tailsql server: %v", err)
		return
	}
	tsql.SetDB("sqlite://pathtrack.db", db.DB, &tailsql.DBOptions{
		Label: "Planner telemetry",
	})

	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
}

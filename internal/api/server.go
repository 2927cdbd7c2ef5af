package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/pathtrack/internal/planner"
	"github.com/banshee-data/pathtrack/internal/route"
	"github.com/banshee-data/pathtrack/internal/telemetry"
	"github.com/banshee-data/pathtrack/internal/units"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxRouteBody bounds the POST /api/route payload.
const maxRouteBody = 8 << 20

type Server struct {
	store *planner.Store
	loop  *planner.Loop
	hub   *Hub
	db    *telemetry.DB
	units string
}

// NewServer wires the HTTP surface over the planner's shared state. db may
// be nil when telemetry is disabled.
func NewServer(store *planner.Store, loop *planner.Loop, hub *Hub, db *telemetry.DB, speedUnits string) *Server {
	return &Server{
		store: store,
		loop:  loop,
		hub:   hub,
		db:    db,
		units: speedUnits,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/window/latest", s.latestWindow)
	mux.HandleFunc("/api/window/stream", s.streamWindows)
	mux.HandleFunc("/api/windows/recent", s.recentWindows)
	mux.HandleFunc("/api/route", s.setRoute)
	mux.HandleFunc("/api/stop", s.setStop)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// speedUnits resolves the units for a response: the ?units= override if
// present and valid, otherwise the server default.
func (s *Server) speedUnits(r *http.Request) (string, error) {
	u := r.URL.Query().Get("units")
	if u == "" {
		return s.units, nil
	}
	if !units.IsValid(u) {
		return "", fmt.Errorf("invalid units %q, valid values: %s", u, units.GetValidUnitsString())
	}
	return u, nil
}

// windowAPI is the wire shape of a forward window. Speeds are converted to
// the requested units; everything else passes through.
type windowAPI struct {
	Closest   int              `json:"closest"`
	StopIndex int              `json:"stop_index"`
	Braking   bool             `json:"braking"`
	Units     string           `json:"units"`
	Waypoints []route.Waypoint `json:"waypoints"`
}

func windowToAPI(w planner.Window, targetUnits string) windowAPI {
	wps := make([]route.Waypoint, len(w.Waypoints))
	for i, wp := range w.Waypoints {
		wps[i] = wp
		wps[i].Speed = units.ConvertSpeed(wp.Speed, targetUnits)
	}
	return windowAPI{
		Closest:   w.Closest,
		StopIndex: w.StopIndex,
		Braking:   w.Braking,
		Units:     targetUnits,
		Waypoints: wps,
	}
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	rt, _, hasRoute := s.store.Route()
	_, hasPose := s.store.Pose()

	status := map[string]interface{}{
		"route_loaded":       hasRoute,
		"route_length":       len(rt),
		"pose_received":      hasPose,
		"stop_index":         s.store.Stop(),
		"ignored_route_sets": s.store.IgnoredRouteSets(),
		"loop":               s.loop.Stats(),
		"dropped_windows":    s.hub.Dropped(),
	}

	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write status")
		return
	}
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	config := map[string]interface{}{
		"units": s.units,
	}

	if err := json.NewEncoder(w).Encode(config); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write config")
		return
	}
}

func (s *Server) latestWindow(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	targetUnits, err := s.speedUnits(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	window, ok := s.hub.Latest()
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "No window published yet")
		return
	}

	if err := json.NewEncoder(w).Encode(windowToAPI(window, targetUnits)); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write window")
		return
	}
}

// streamWindows pushes each published window to the client as a server-sent
// event until the client disconnects.
func (s *Server) streamWindows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	targetUnits, err := s.speedUnits(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeJSONError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id, ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(id)

	for {
		select {
		case <-r.Context().Done():
			return
		case window, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(windowToAPI(window, targetUnits))
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (s *Server) recentWindows(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Telemetry disabled")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	records, err := s.db.RecentWindows(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve windows: %v", err))
		return
	}

	if err := json.NewEncoder(w).Encode(records); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write windows")
		return
	}
}

// setRoute accepts a JSON waypoint array. The route is set-once: a second
// delivery is acknowledged but not applied.
func (s *Server) setRoute(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var rt route.Route
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRouteBody))
	if err := dec.Decode(&rt); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid route body: %v", err))
		return
	}

	_, _, already := s.store.Route()
	if err := s.store.SetRoute(rt); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Unusable route: %v", err))
		return
	}

	if s.db != nil && !already {
		if err := s.db.RecordRoute("api", len(rt)); err != nil {
			log.Printf("failed to record route: %v", err)
		}
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"applied":   !already,
		"waypoints": len(rt),
	})
}

// setStop replaces the active stop line index. -1 clears it.
func (s *Server) setStop(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var body struct {
		Index *int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Index == nil {
		s.writeJSONError(w, http.StatusBadRequest, "Body must be {\"index\": <int>}")
		return
	}
	if *body.Index < planner.NoStop {
		s.writeJSONError(w, http.StatusBadRequest, "Index must be -1 or a route index")
		return
	}
	if rt, _, ok := s.store.Route(); ok && *body.Index >= len(rt) {
		s.writeJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("Index %d is past the end of the %d waypoint route", *body.Index, len(rt)))
		return
	}

	s.store.SetStop(*body.Index)
	json.NewEncoder(w).Encode(map[string]int{"stop_index": *body.Index})
}

package api

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// AttachDebugCharts mounts the debugging-only chart endpoints (no auth) so a
// route and its braking behaviour can be eyeballed without a frontend.
func (s *Server) AttachDebugCharts(mux *http.ServeMux) {
	mux.HandleFunc("/debug/charts/route", s.handleRouteChart)
	mux.HandleFunc("/debug/charts/profile", s.handleProfileChart)
}

// handleRouteChart renders the loaded route as an XY scatter colored by the
// designed target speed, with the latest window start and stop line marked
// in the subtitle.
// Query params:
//   - max_points (optional; default 8000) to reduce payload size
func (s *Server) handleRouteChart(w http.ResponseWriter, r *http.Request) {
	rt, _, ok := s.store.Route()
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "no route loaded")
		return
	}

	maxPoints := 8000
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v > 100 && v <= 50000 {
			maxPoints = v
		}
	}

	// Downsample by stride to stay within maxPoints
	stride := 1
	if len(rt) > maxPoints {
		stride = int(math.Ceil(float64(len(rt)) / float64(maxPoints)))
	}

	data := make([]opts.ScatterData, 0, len(rt)/stride+1)
	maxAbs := 0.0
	maxSpeed := 0.0
	for i := 0; i < len(rt); i += stride {
		wp := rt[i]
		x := wp.Pose.Position.X
		y := wp.Pose.Position.Y
		if math.Abs(x) > maxAbs {
			maxAbs = math.Abs(x)
		}
		if math.Abs(y) > maxAbs {
			maxAbs = math.Abs(y)
		}
		if wp.Speed > maxSpeed {
			maxSpeed = wp.Speed
		}
		data = append(data, opts.ScatterData{Value: []interface{}{x, y, wp.Speed}})
	}

	// Add a small padding so points at the edges are visible
	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}
	if maxSpeed == 0 {
		maxSpeed = 1
	}

	subtitle := fmt.Sprintf("waypoints=%d stride=%d stop=%d", len(rt), stride, s.store.Stop())
	if window, ok := s.hub.Latest(); ok {
		subtitle += fmt.Sprintf(" closest=%d", window.Closest)
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Route Map", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Route Waypoints", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxSpeed),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}},
		}),
	)

	scatter.AddSeries("route", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleProfileChart renders the latest window's speed profile as a line
// chart over the window offset, against the route's designed speeds.
func (s *Server) handleProfileChart(w http.ResponseWriter, r *http.Request) {
	window, ok := s.hub.Latest()
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "no window published yet")
		return
	}
	rt, _, ok := s.store.Route()
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "no route loaded")
		return
	}

	x := make([]string, len(window.Waypoints))
	profile := make([]opts.LineData, len(window.Waypoints))
	designed := make([]opts.LineData, len(window.Waypoints))
	for i, wp := range window.Waypoints {
		idx := window.Closest + i
		x[i] = strconv.Itoa(idx)
		profile[i] = opts.LineData{Value: wp.Speed}
		if idx < len(rt) {
			designed[i] = opts.LineData{Value: rt[idx].Speed}
		}
	}

	subtitle := fmt.Sprintf("closest=%d stop=%d braking=%v", window.Closest, window.StopIndex, window.Braking)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Speed Profile", Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Forward Window Speed Profile", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "route index"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "speed (m/s)"}),
	)
	line.SetXAxis(x).
		AddSeries("designed", designed).
		AddSeries("profile", profile,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}),
		)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

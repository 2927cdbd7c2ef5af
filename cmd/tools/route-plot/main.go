// Command route-plot renders a route JSON file as PNG plots: the XY path
// colored track and the speed profile along the route index. With -stop it
// also overlays the braking profile the planner would produce from the given
// pose, which makes deceleration tuning reviewable offline.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/pathtrack/internal/planner"
	"github.com/banshee-data/pathtrack/internal/route"
)

var (
	routeFile = flag.String("route", "", "Route JSON file (required)")
	outDir    = flag.String("out", "plots", "Output directory for PNG files")
	stopIdx   = flag.Int("stop", planner.NoStop, "Stop line index to simulate, -1 for none")
	poseX     = flag.Float64("x", 0, "Simulated vehicle x position")
	poseY     = flag.Float64("y", 0, "Simulated vehicle y position")
	lookahead = flag.Int("lookahead", planner.DefaultLookahead, "Waypoints per forward window")
)

func main() {
	flag.Parse()

	if *routeFile == "" {
		flag.Usage()
		os.Exit(2)
	}

	r, err := route.LoadFile(*routeFile)
	if err != nil {
		log.Fatalf("failed to load route: %v", err)
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("failed to create output dir: %v", err)
	}

	if err := plotPath(r); err != nil {
		log.Fatalf("path plot: %v", err)
	}
	if err := plotProfile(r); err != nil {
		log.Fatalf("profile plot: %v", err)
	}
	log.Printf("wrote plots for %d waypoints to %s", len(r), *outDir)
}

// plotPath renders the route's XY track.
func plotPath(r route.Route) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Route Path (%s)", filepath.Base(*routeFile))
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	pts := make(plotter.XYs, len(r))
	for i, wp := range r {
		pts[i] = plotter.XY{X: wp.Pose.Position.X, Y: wp.Pose.Position.Y}
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = color.RGBA{B: 200, A: 255}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("path", line)
	p.Legend.Top = true

	return p.Save(10*vg.Inch, 10*vg.Inch, filepath.Join(*outDir, "route_path.png"))
}

// plotProfile renders the designed speed over the route index and, when a
// stop index is given, the planner's braking profile over its window.
func plotProfile(r route.Route) error {
	p := plot.New()
	p.Title.Text = "Speed Profile"
	p.X.Label.Text = "Route index"
	p.Y.Label.Text = "Speed (m/s)"

	designed := make(plotter.XYs, len(r))
	for i, wp := range r {
		designed[i] = plotter.XY{X: float64(i), Y: wp.Speed}
	}
	designedLine, err := plotter.NewLine(designed)
	if err != nil {
		return err
	}
	designedLine.Color = color.RGBA{R: 120, G: 120, B: 120, A: 255}
	designedLine.Width = vg.Points(1)
	p.Add(designedLine)
	p.Legend.Add("designed", designedLine)

	if *stopIdx != planner.NoStop {
		ix, err := route.NewIndex(r)
		if err != nil {
			return err
		}
		pl := planner.New(planner.Config{Lookahead: *lookahead})
		pose := route.Pose{Position: route.Point{X: *poseX, Y: *poseY}}
		window := pl.Plan(pose, r, ix, *stopIdx)

		profile := make(plotter.XYs, len(window.Waypoints))
		for i, wp := range window.Waypoints {
			profile[i] = plotter.XY{X: float64(window.Closest + i), Y: wp.Speed}
		}
		profileLine, err := plotter.NewLine(profile)
		if err != nil {
			return err
		}
		profileLine.Color = color.RGBA{R: 220, A: 255}
		profileLine.Width = vg.Points(2)
		p.Add(profileLine)
		p.Legend.Add(fmt.Sprintf("braking (stop=%d)", *stopIdx), profileLine)
	}

	p.Legend.Top = true
	return p.Save(14*vg.Inch, 6*vg.Inch, filepath.Join(*outDir, "speed_profile.png"))
}

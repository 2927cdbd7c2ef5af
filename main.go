package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/pathtrack/internal/api"
	"github.com/banshee-data/pathtrack/internal/config"
	"github.com/banshee-data/pathtrack/internal/planner"
	"github.com/banshee-data/pathtrack/internal/posefeed"
	"github.com/banshee-data/pathtrack/internal/route"
	"github.com/banshee-data/pathtrack/internal/telemetry"
	"github.com/banshee-data/pathtrack/internal/units"
)

var (
	devMode    = flag.Bool("dev", false, "Run in dev mode, replaying fixtures.txt instead of reading a serial port")
	listen     = flag.String("listen", ":8080", "Listen address")
	serialPort = flag.String("serial", "/dev/ttyUSB0", "Serial port carrying the localisation feed")
	baudRate   = flag.Int("baud", 115200, "Serial baud rate")
	routeFile  = flag.String("route", "", "Route JSON file; if empty the route arrives via POST /api/route")
	configFile = flag.String("config", "", "Tuning config JSON file")
	dbFile     = flag.String("db", "pathtrack.db", "Telemetry database file, empty to disable")
	migrateDir = flag.String("migrations", "migrations", "Telemetry migrations directory, skipped if absent")
	unitsFlag  = flag.String("units", "", "Display units (mps, mph, kmph, kph), overrides the config file")
)

// handleSentence applies one feed line to the shared planner state. Parse
// failures are reported to the caller; blank and comment lines are skipped.
func handleSentence(store *planner.Store, line string) error {
	s, err := posefeed.ParseSentence(line)
	if errors.Is(err, posefeed.ErrSkip) {
		return nil
	}
	if err != nil {
		return err
	}

	switch s.Kind {
	case posefeed.KindPose:
		store.SetPose(s.Pose)
	case posefeed.KindStop:
		store.SetStop(s.Index)
	case posefeed.KindObstacle:
		store.SetObstacle(s.Index)
	}
	return nil
}

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	tuning := config.EmptyTuningConfig()
	if *configFile != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configFile)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}

	speedUnits := tuning.GetUnits()
	if *unitsFlag != "" {
		if !units.IsValid(*unitsFlag) {
			log.Fatalf("invalid units %q: expected one of %s", *unitsFlag, units.GetValidUnitsString())
		}
		speedUnits = *unitsFlag
	}

	var m posefeed.MuxInterface
	if *devMode {
		data, err := os.ReadFile("fixtures.txt")
		if err != nil {
			log.Fatalf("failed to open fixtures file: %v", err)
		}
		m = posefeed.NewMockMux(data, time.Second)
	} else {
		var err error
		m, err = posefeed.NewRealMux(*serialPort, posefeed.PortOptions{BaudRate: *baudRate})
		if err != nil {
			log.Fatalf("failed to open pose feed port: %v", err)
		}
	}
	defer m.Close()

	var db *telemetry.DB
	if *dbFile != "" {
		var err error
		db, err = telemetry.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("failed to open telemetry database: %v", err)
		}
		defer db.Close()

		// Bring the schema to the latest version when the migrations
		// directory is deployed alongside the binary. NewDB's bootstrap
		// already covers version 1, so this is a no-op until a later
		// migration exists.
		if _, err := os.Stat(*migrateDir); err == nil {
			if err := db.MigrateUp(*migrateDir); err != nil {
				log.Fatalf("failed to migrate telemetry database: %v", err)
			}
		}
	}

	store := planner.NewStore()
	if *routeFile != "" {
		r, err := route.LoadFile(*routeFile)
		if err != nil {
			log.Fatalf("failed to load route: %v", err)
		}
		if err := store.SetRoute(r); err != nil {
			log.Fatalf("failed to set route: %v", err)
		}
		log.Printf("loaded route %s with %d waypoints", *routeFile, len(r))
		if db != nil {
			if err := db.RecordRoute(*routeFile, len(r)); err != nil {
				log.Printf("failed to record route: %v", err)
			}
		}
	}

	hub := api.NewHub()
	sinks := planner.MultiSink{hub}
	if db != nil {
		sinks = append(sinks, telemetry.NewRecorder(db, tuning.GetRecordInterval(), nil))
	}

	loop := planner.NewLoop(planner.LoopConfig{
		Store: store,
		Planner: planner.New(planner.Config{
			Lookahead:  tuning.GetLookaheadCount(),
			MaxDecel:   tuning.GetMaxDecel(),
			StopMargin: tuning.GetStopLineMargin(),
			CreepSpeed: tuning.GetCreepSpeed(),
		}),
		Sink: sinks,
		Rate: tuning.GetPublishRateHz(),
	})

	// Wait group for the feed monitor, sentence handler, planning loop, and
	// HTTP server routines.
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the feed port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor pose feed: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// subscribe to the feed lines and apply them to the planner state
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := m.Subscribe()
		defer m.Unsubscribe(id)
		for {
			select {
			case line := <-c:
				if err := handleSentence(store, line); err != nil {
					log.Printf("error handling feed line: %v", err)
				}
			case <-ctx.Done():
				log.Printf("subscribe routine terminated")
				return
			}
		}
	}()

	// planning loop routine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := loop.Run(ctx); err != nil {
			log.Printf("planner loop error: %v", err)
		}
		log.Print("planner loop terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		apiServer := api.NewServer(store, loop, hub, db, speedUnits)
		mux.Handle("/api/", apiServer.ServeMux())

		// mount the admin and debug routes (accessible only in dev mode or
		// over Tailscale)
		apiServer.AttachDebugCharts(mux)
		if db != nil {
			db.AttachAdminRoutes(mux)
		}

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

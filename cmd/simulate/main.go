// Command simulate drives the adaptive quality core with a synthetic frame
// timing trace: a calm phase, a load spike and a recovery. It is the
// end-to-end smoke harness for the monitor -> controller -> decimation/
// simplification loop, and optionally serves the debug monitor.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tilepulse/tilepulse/internal/db"
	"github.com/tilepulse/tilepulse/internal/monitor"
	"github.com/tilepulse/tilepulse/internal/render"
	"github.com/tilepulse/tilepulse/internal/version"
)

// marker is the synthetic spatial item fed to the decimation engine.
type marker struct {
	pos      render.LatLng
	priority float64
}

func (m marker) Position() render.LatLng { return m.pos }
func (m marker) Priority() float64       { return m.priority }

func main() {
	var (
		dbPath   = flag.String("db", "", "telemetry sqlite path (empty disables persistence)")
		listen   = flag.String("listen", "", "monitor listen address, e.g. :8090 (empty disables)")
		profile  = flag.String("profile", "standard", "tier config profile: standard, low-end, high-end")
		duration = flag.Duration("duration", 30*time.Second, "simulated wall time")
		seed     = flag.Int64("seed", 42, "random seed for the synthetic trace")
		plotDir  = flag.String("plots", "", "directory for the PNG fps plot (empty disables)")
	)
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("simulate %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	var tierConfig render.TierConfig
	switch *profile {
	case "standard":
		tierConfig = render.StandardTierConfig()
	case "low-end":
		tierConfig = render.LowEndTierConfig()
	case "high-end":
		tierConfig = render.HighEndTierConfig()
	default:
		log.Fatalf("unknown profile %q", *profile)
	}
	if err := tierConfig.Validate(); err != nil {
		log.Fatalf("tier config: %v", err)
	}

	markerPool := render.NewMarkerPool(1000)
	bitmapCache := render.NewBitmapCache(512, 64<<20)
	controller := render.NewQualityController(tierConfig, markerPool, bitmapCache)

	var telemetry *render.TelemetryStore
	if *dbPath != "" {
		database, err := db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("opening telemetry db: %v", err)
		}
		defer database.Close()
		telemetry = render.NewTelemetryStore(database.DB)
		controller.SetRecorder(telemetry)
	}

	frameMonitor := render.NewFrameMonitor(render.FrameMonitorConfig{})
	frameMonitor.OnFpsChanged(controller.UpdateFps)
	frameMonitor.Start()
	defer frameMonitor.Stop()

	executor := render.NewAsyncExecutor(8, 2*time.Second)
	defer executor.Close()
	simplifier := render.NewSimplifier(render.SimplifierConfig{Executor: executor})

	idle := render.NewIdleScheduler(render.IdleSchedulerConfig{})
	defer idle.Close()

	plotter := monitor.NewFpsPlotter()
	if *plotDir != "" {
		if err := plotter.Start(*plotDir); err != nil {
			log.Fatalf("starting plotter: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *listen != "" {
		ws := monitor.NewWebServer(monitor.WebServerConfig{
			Address:    *listen,
			Monitor:    frameMonitor,
			Controller: controller,
			Idle:       idle,
			Telemetry:  telemetry,
		})
		go func() {
			if err := ws.Start(ctx); err != nil {
				log.Printf("monitor server: %v", err)
			}
		}()
		log.Printf("monitor listening on %s", *listen)
	}

	runSimulation(ctx, simConfig{
		duration:   *duration,
		seed:       *seed,
		monitor:    frameMonitor,
		controller: controller,
		simplifier: simplifier,
		idle:       idle,
		telemetry:  telemetry,
		plotter:    plotter,
		cache:      bitmapCache,
	})

	if *plotDir != "" {
		if path, err := plotter.Stop(); err != nil {
			log.Printf("plot: %v", err)
		} else {
			log.Printf("plot written to %s", path)
		}
	}

	summary := frameMonitor.Summary()
	fmt.Printf("frames=%d mean_fps=%.1f p95_fps=%.1f tier=%s tier_changes=%d idle=%+v\n",
		summary.Samples, summary.Mean, summary.P95,
		controller.CurrentTier(), controller.TierChangeCount(), idle.Stats())
}

type simConfig struct {
	duration   time.Duration
	seed       int64
	monitor    *render.FrameMonitor
	controller *render.QualityController
	simplifier *render.Simplifier
	idle       *render.IdleScheduler
	telemetry  *render.TelemetryStore
	plotter    *monitor.FpsPlotter
	cache      *render.BitmapCache
}

// runSimulation feeds the trace at 60 batches per second until the duration
// elapses or ctx is cancelled.
func runSimulation(ctx context.Context, cfg simConfig) {
	rng := rand.New(rand.NewSource(cfg.seed))
	markers := syntheticMarkers(rng, 1500)
	polyline := syntheticPolyline(rng, 600)

	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()
	deadline := time.Now().Add(cfg.duration)

	frame := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if time.Now().After(deadline) {
			return
		}
		frame++

		cfg.monitor.RecordSamples([]render.FrameSample{frameTiming(rng, frame, cfg.duration)})

		// The rendering layer queries budgets every cycle and feeds them
		// into the spatial engines.
		visible := render.Decimate(markers, render.StrategyHybrid, cfg.controller.MarkerCap(), render.DecimateOptions{Zoom: 12})
		simplified := cfg.simplifier.Simplify(polyline, cfg.controller.PolySimplifyEpsilon())
		_ = visible
		_ = simplified

		if frame%60 == 0 {
			fps := cfg.monitor.CurrentFPS()
			tier := cfg.controller.CurrentTier()
			cfg.plotter.Sample(fps, tier)
			if cfg.telemetry != nil {
				if err := cfg.telemetry.RecordFpsSample(fps, tier, time.Now()); err != nil {
					log.Printf("telemetry: %v", err)
				}
			}
		}
		if frame%600 == 0 {
			cfg.idle.Schedule(func() error {
				cfg.cache.Trim()
				return nil
			}, render.IdleLow, "bitmap-cache-trim")
			cfg.idle.MaybeHint("periodic")
		}
	}
}

// frameTiming produces one synthetic frame sample: ~60 FPS in the calm
// phases, a ~35 FPS spike through the middle third of the run.
func frameTiming(rng *rand.Rand, frame int, total time.Duration) render.FrameSample {
	totalFrames := int(total / (time.Second / 60))
	baseMicros := 16600.0
	if frame > totalFrames/3 && frame < 2*totalFrames/3 {
		baseMicros = 28500.0
	}
	jitter := rng.NormFloat64() * 900
	micros := int64(baseMicros + jitter)
	if micros < 1000 {
		micros = 1000
	}
	return render.FrameSample{
		BuildMicros:  micros * 40 / 100,
		RasterMicros: micros * 60 / 100,
	}
}

func syntheticMarkers(rng *rand.Rand, n int) []render.SpatialItem {
	items := make([]render.SpatialItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, marker{
			pos: render.LatLng{
				Lat: 52.37 + rng.Float64()*0.1,
				Lng: 4.89 + rng.Float64()*0.15,
			},
			priority: rng.Float64(),
		})
	}
	return items
}

func syntheticPolyline(rng *rand.Rand, n int) []render.LatLng {
	points := make([]render.LatLng, 0, n)
	lat, lng := 52.37, 4.89
	for i := 0; i < n; i++ {
		lat += 0.0002 + rng.Float64()*0.0001
		lng += 0.0003 + rng.NormFloat64()*0.0001
		points = append(points, render.LatLng{Lat: lat, Lng: lng})
	}
	return points
}

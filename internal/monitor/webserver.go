// Package monitor exposes debugging-only HTTP endpoints for the adaptive
// quality core: live stats, tier history and an FPS timeline chart.
package monitor

import (
	"context"
	"net/http"
	"time"

	"github.com/tilepulse/tilepulse/internal/httputil"
	"github.com/tilepulse/tilepulse/internal/monitoring"
	"github.com/tilepulse/tilepulse/internal/render"
	"github.com/tilepulse/tilepulse/internal/version"
)

// WebServer handles the HTTP interface for monitoring the render core. All
// endpoints are unauthenticated debug surfaces; do not expose them publicly.
type WebServer struct {
	address    string
	monitor    *render.FrameMonitor
	controller *render.QualityController
	idle       *render.IdleScheduler
	telemetry  *render.TelemetryStore
	server     *http.Server
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address    string
	Monitor    *render.FrameMonitor
	Controller *render.QualityController
	Idle       *render.IdleScheduler
	// Telemetry is optional; chart and history endpoints return 404
	// without it.
	Telemetry *render.TelemetryStore
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:    config.Address,
		monitor:    config.Monitor,
		controller: config.Controller,
		idle:       config.Idle,
		telemetry:  config.Telemetry,
	}
	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}
	return ws
}

func (ws *WebServer) setupRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", ws.handleHealth)
	mux.HandleFunc("/api/render/stats", ws.handleStats)
	mux.HandleFunc("/api/render/tier-changes", ws.handleTierChanges)
	mux.HandleFunc("/debug/charts/fps", ws.handleFpsChart)
	return mux
}

// Start begins serving in a goroutine and shuts down when ctx is cancelled.
func (ws *WebServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ws.server.Shutdown(shutdownCtx); err != nil {
			monitoring.Logf("monitor: shutdown error: %v", err)
		}
		return nil
	}
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"status":  "ok",
		"version": version.Version,
		"git_sha": version.GitSHA,
	})
}

// StatsResponse is the JSON shape of /api/render/stats.
type StatsResponse struct {
	Fps             float64            `json:"fps"`
	FpsSummary      render.FpsSummary  `json:"fps_summary"`
	Tier            render.QualityTier `json:"tier"`
	TierChangeCount int                `json:"tier_change_count"`
	MarkerCap       int                `json:"marker_cap"`
	SimplifyEpsilon float64            `json:"simplify_epsilon"`
	TileThrottleMs  int                `json:"tile_throttle_ms"`
	Idle            render.IdleStats   `json:"idle"`
}

func (ws *WebServer) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{}
	if ws.monitor != nil {
		resp.Fps = ws.monitor.CurrentFPS()
		resp.FpsSummary = ws.monitor.Summary()
	}
	if ws.controller != nil {
		resp.Tier = ws.controller.CurrentTier()
		resp.TierChangeCount = ws.controller.TierChangeCount()
		resp.MarkerCap = ws.controller.MarkerCap()
		resp.SimplifyEpsilon = ws.controller.PolySimplifyEpsilon()
		resp.TileThrottleMs = ws.controller.TileThrottleMs()
	}
	if ws.idle != nil {
		resp.Idle = ws.idle.Stats()
	}
	httputil.WriteJSONOK(w, resp)
}

func (ws *WebServer) handleTierChanges(w http.ResponseWriter, r *http.Request) {
	if ws.telemetry == nil {
		httputil.NotFound(w, "telemetry store not configured")
		return
	}
	records, err := ws.telemetry.ListTierChanges(200)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, records)
}

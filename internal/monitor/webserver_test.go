package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilepulse/tilepulse/internal/db"
	"github.com/tilepulse/tilepulse/internal/render"
)

func newTestServer(t *testing.T, withTelemetry bool) (*WebServer, *render.QualityController, *render.TelemetryStore) {
	t.Helper()

	frameMonitor := render.NewFrameMonitor(render.FrameMonitorConfig{})
	controller := render.NewQualityController(render.StandardTierConfig())
	idle := render.NewIdleScheduler(render.IdleSchedulerConfig{})
	t.Cleanup(idle.Close)

	var telemetry *render.TelemetryStore
	if withTelemetry {
		database, err := db.NewDB(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { database.Close() })
		telemetry = render.NewTelemetryStore(database.DB)
	}

	ws := NewWebServer(WebServerConfig{
		Address:    "127.0.0.1:0",
		Monitor:    frameMonitor,
		Controller: controller,
		Idle:       idle,
		Telemetry:  telemetry,
	})
	return ws, controller, telemetry
}

func TestHealthEndpoint(t *testing.T) {
	ws, _, _ := newTestServer(t, false)
	rec := httptest.NewRecorder()
	ws.setupRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestStatsEndpointShape(t *testing.T) {
	ws, controller, _ := newTestServer(t, false)
	controller.ForceMode(render.TierMedium)

	rec := httptest.NewRecorder()
	ws.setupRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/render/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, render.TierMedium, resp.Tier)
	assert.Equal(t, 1, resp.TierChangeCount)
	assert.Equal(t, render.StandardTierConfig().MarkerCapMedium, resp.MarkerCap)
	assert.Equal(t, 60.0, resp.Fps)
	assert.Equal(t, 30, resp.TileThrottleMs)
}

func TestTierChangesEndpoint(t *testing.T) {
	ws, _, telemetry := newTestServer(t, true)
	require.NoError(t, telemetry.RecordTierChange(render.TierHigh, render.TierMedium, 47, time.Now()))

	rec := httptest.NewRecorder()
	ws.setupRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/render/tier-changes", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var records []render.TierChangeRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, render.TierMedium, records[0].ToTier)
}

func TestEndpointsWithoutTelemetry(t *testing.T) {
	ws, _, _ := newTestServer(t, false)

	for _, path := range []string{"/api/render/tier-changes", "/debug/charts/fps"} {
		rec := httptest.NewRecorder()
		ws.setupRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestFpsChartRendersHTML(t *testing.T) {
	ws, _, telemetry := newTestServer(t, true)
	now := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, telemetry.RecordFpsSample(55+float64(i), render.TierHigh, now.Add(time.Duration(i)*time.Second)))
	}

	rec := httptest.NewRecorder()
	ws.setupRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/charts/fps?minutes=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "echarts")
}

func TestFpsChartEmptyWindow(t *testing.T) {
	ws, _, _ := newTestServer(t, true)
	rec := httptest.NewRecorder()
	ws.setupRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/charts/fps", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

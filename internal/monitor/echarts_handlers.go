package monitor

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/tilepulse/tilepulse/internal/httputil"
)

// handleFpsChart renders a quick FPS timeline (HTML) from the telemetry
// store using go-echarts. This is a debugging-only endpoint (no auth) to eye
// the controller's behaviour without external tooling.
// Query params:
//   - minutes (optional; default 10) how far back to plot
func (ws *WebServer) handleFpsChart(w http.ResponseWriter, r *http.Request) {
	if ws.telemetry == nil {
		httputil.NotFound(w, "telemetry store not configured")
		return
	}

	minutes := 10
	if m := r.URL.Query().Get("minutes"); m != "" {
		if v, err := strconv.Atoi(m); err == nil && v > 0 && v <= 24*60 {
			minutes = v
		}
	}

	since := time.Now().Add(-time.Duration(minutes) * time.Minute)
	points, err := ws.telemetry.FpsSeries(since)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if len(points) == 0 {
		httputil.NotFound(w, "no fps samples in window")
		return
	}

	xAxis := make([]string, 0, len(points))
	fpsData := make([]opts.LineData, 0, len(points))
	// Tier plotted as a step band (high=2, medium=1, low=0) scaled to FPS
	// range so both series share one axis.
	tierData := make([]opts.LineData, 0, len(points))
	for _, p := range points {
		xAxis = append(xAxis, p.SampledAt.Format("15:04:05"))
		fpsData = append(fpsData, opts.LineData{Value: p.Fps})
		tierData = append(tierData, opts.LineData{Value: tierLevel(p.Tier.String()) * 20})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Render FPS Timeline", Theme: "dark", Width: "1200px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "FPS and quality tier", Subtitle: fmt.Sprintf("samples=%d window=%dm", len(points), minutes)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "FPS", Min: 0, Max: 120}),
	)
	line.SetXAxis(xAxis).
		AddSeries("fps", fpsData).
		AddSeries("tier (x20)", tierData, charts.WithLineChartOpts(opts.LineChart{Step: "end"}))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := line.Render(w); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("rendering chart: %v", err))
	}
}

func tierLevel(tier string) float64 {
	switch tier {
	case "high":
		return 2
	case "medium":
		return 1
	default:
		return 0
	}
}

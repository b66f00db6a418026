package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/tilepulse/tilepulse/internal/render"
)

// FpsPlotter records FPS and tier samples over a run and writes a PNG time
// series on Stop. Intended for offline simulation runs where the echarts
// endpoint is not running.
type FpsPlotter struct {
	mu        sync.Mutex
	enabled   bool
	outputDir string
	startTime time.Time
	times     []float64
	fps       []float64
	tiers     []float64
}

// NewFpsPlotter creates a plotter. Call Start before sampling.
func NewFpsPlotter() *FpsPlotter {
	return &FpsPlotter{}
}

// Start initializes the plotter for a new run, creating outputDir.
func (fp *FpsPlotter) Start(outputDir string) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("creating plot output dir: %w", err)
	}
	fp.enabled = true
	fp.outputDir = outputDir
	fp.startTime = time.Now()
	fp.times = fp.times[:0]
	fp.fps = fp.fps[:0]
	fp.tiers = fp.tiers[:0]
	return nil
}

// Sample records one observation. A no-op before Start.
func (fp *FpsPlotter) Sample(fps float64, tier render.QualityTier) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	if !fp.enabled {
		return
	}
	fp.times = append(fp.times, time.Since(fp.startTime).Seconds())
	fp.fps = append(fp.fps, fps)
	// Tier plotted inverted (high=2) so degradation reads as a drop.
	fp.tiers = append(fp.tiers, float64(2-int(tier)))
}

// Stop writes the accumulated series as a PNG and disables sampling.
// Returns the written file path.
func (fp *FpsPlotter) Stop() (string, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	if !fp.enabled {
		return "", fmt.Errorf("plotter not started")
	}
	fp.enabled = false
	if len(fp.times) == 0 {
		return "", fmt.Errorf("no samples recorded")
	}

	p := plot.New()
	p.Title.Text = "Render FPS over time"
	p.X.Label.Text = "seconds"
	p.Y.Label.Text = "fps / tier (x20)"

	fpsXY := make(plotter.XYs, len(fp.times))
	tierXY := make(plotter.XYs, len(fp.times))
	for i := range fp.times {
		fpsXY[i].X = fp.times[i]
		fpsXY[i].Y = fp.fps[i]
		tierXY[i].X = fp.times[i]
		tierXY[i].Y = fp.tiers[i] * 20
	}

	fpsLine, err := plotter.NewLine(fpsXY)
	if err != nil {
		return "", fmt.Errorf("building fps series: %w", err)
	}
	tierLine, err := plotter.NewLine(tierXY)
	if err != nil {
		return "", fmt.Errorf("building tier series: %w", err)
	}
	tierLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(fpsLine, tierLine)
	p.Legend.Add("fps", fpsLine)
	p.Legend.Add("tier (x20)", tierLine)

	out := filepath.Join(fp.outputDir, fmt.Sprintf("fps_%s.png", fp.startTime.Format("20060102_150405")))
	if err := p.Save(10*vg.Inch, 4*vg.Inch, out); err != nil {
		return "", fmt.Errorf("saving plot: %w", err)
	}
	return out, nil
}

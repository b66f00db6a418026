package main

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// The synthetic trace must be deterministic for a fixed seed so simulation
// runs are reproducible.
func TestSyntheticTraceDeterministic(t *testing.T) {
	a := syntheticMarkers(rand.New(rand.NewSource(42)), 100)
	b := syntheticMarkers(rand.New(rand.NewSource(42)), 100)
	if diff := cmp.Diff(a, b, cmp.AllowUnexported(marker{})); diff != "" {
		t.Errorf("markers differ between runs (-a +b):\n%s", diff)
	}

	la := syntheticPolyline(rand.New(rand.NewSource(42)), 100)
	lb := syntheticPolyline(rand.New(rand.NewSource(42)), 100)
	if diff := cmp.Diff(la, lb); diff != "" {
		t.Errorf("polylines differ between runs (-a +b):\n%s", diff)
	}
}

func TestFrameTimingPhases(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	total := 30 * time.Second
	totalFrames := int(total / (time.Second / 60))

	calm := frameTiming(rng, 1, total)
	spike := frameTiming(rng, totalFrames/2, total)

	calmMicros := calm.BuildMicros + calm.RasterMicros
	spikeMicros := spike.BuildMicros + spike.RasterMicros
	if spikeMicros <= calmMicros {
		t.Errorf("spike frame (%dus) not slower than calm frame (%dus)", spikeMicros, calmMicros)
	}
	if calmMicros < 10000 || calmMicros > 25000 {
		t.Errorf("calm frame %dus outside plausible 60fps range", calmMicros)
	}
}

package engo

import (
	"math"
	"testing"

	"github.com/EngoEngine/engo"

	"github.com/opd-ai/go-lander/pkg/config"
	"github.com/opd-ai/go-lander/pkg/physics"
)

func defaultCamera(w, h float32) *CameraSystem {
	return NewCameraSystem(config.DefaultConfig().World, w, h)
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-3
}

func TestNewCameraSystem(t *testing.T) {
	cs := defaultCamera(430, 932)

	if cs.GetZoom() != 1 {
		t.Errorf("Expected zoom 1, got %f", cs.GetZoom())
	}
	if got := cs.GetCurrentPosition(); got != (physics.Vector2D{X: 215, Y: 466}) {
		t.Errorf("Expected camera on the world centre, got %v", got)
	}
	if cs.Scale() != 1 {
		t.Errorf("Expected scale 1 on a world-sized viewport, got %f", cs.Scale())
	}
}

func TestCameraSystem_FitsWorld(t *testing.T) {
	tests := []struct {
		name  string
		w, h  float32
		scale float32
	}{
		{"half size", 215, 466, 0.5},
		{"wide window", 1600, 932, 1},
		{"tall window", 430, 4000, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := defaultCamera(tt.w, tt.h)
			if cs.Scale() != tt.scale {
				t.Errorf("Expected scale %f, got %f", tt.scale, cs.Scale())
			}
		})
	}
}

func TestCameraSystem_WorldToScreenFlipsY(t *testing.T) {
	cs := defaultCamera(430, 932)

	tests := []struct {
		world  physics.Vector2D
		screen engo.Point
	}{
		{physics.Vector2D{X: 0, Y: 0}, engo.Point{X: 0, Y: 932}},
		{physics.Vector2D{X: 430, Y: 932}, engo.Point{X: 430, Y: 0}},
		{physics.Vector2D{X: 215, Y: 466}, engo.Point{X: 215, Y: 466}},
	}
	for _, tt := range tests {
		got := cs.WorldToScreen(tt.world)
		if got != tt.screen {
			t.Errorf("Expected %v to map to %v, got %v", tt.world, tt.screen, got)
		}
	}
}

func TestCameraSystem_RoundTrip(t *testing.T) {
	cs := defaultCamera(300, 500)
	cs.SetZoom(2)
	cs.EnableSmoothing(false)
	cs.SetTarget(physics.Vector2D{X: 200, Y: 400})
	cs.step(0.016)

	p := physics.Vector2D{X: 123.5, Y: 456.25}
	back := cs.ScreenToWorld(cs.WorldToScreen(p))
	if !near(back.X, p.X) || !near(back.Y, p.Y) {
		t.Errorf("Expected %v after round trip, got %v", p, back)
	}
}

func TestCameraSystem_Zoom(t *testing.T) {
	cs := defaultCamera(430, 932)

	cs.SetZoom(0.5)
	if cs.GetZoom() != 1 {
		t.Errorf("Expected zoom clamped to 1, got %f", cs.GetZoom())
	}
	cs.SetZoom(10)
	if cs.GetZoom() != 3 {
		t.Errorf("Expected zoom clamped to 3, got %f", cs.GetZoom())
	}
	cs.SetZoomLimits(1, 2)
	if cs.GetZoom() != 2 {
		t.Errorf("Expected zoom reclamped to 2, got %f", cs.GetZoom())
	}
}

func TestCameraSystem_FollowsWhenZoomed(t *testing.T) {
	cs := defaultCamera(430, 932)
	cs.EnableSmoothing(false)
	cs.SetTarget(physics.Vector2D{X: 50, Y: 100})

	cs.step(0.016)
	if got := cs.GetCurrentPosition(); got != (physics.Vector2D{X: 215, Y: 466}) {
		t.Errorf("Expected a centred camera at zoom 1, got %v", got)
	}

	cs.SetZoom(2)
	cs.step(0.016)
	// Half the view is 107.5 x 233 points, so the centre stops at the edge.
	if got := cs.GetCurrentPosition(); got != (physics.Vector2D{X: 107.5, Y: 233}) {
		t.Errorf("Expected centre clamped inside the world, got %v", got)
	}

	cs.SetTarget(physics.Vector2D{X: 200, Y: 500})
	cs.step(0.016)
	if got := cs.GetCurrentPosition(); got != (physics.Vector2D{X: 200, Y: 500}) {
		t.Errorf("Expected centre on target, got %v", got)
	}

	cs.ClearTarget()
	cs.step(0.016)
	if got := cs.GetCurrentPosition(); got != (physics.Vector2D{X: 215, Y: 466}) {
		t.Errorf("Expected camera back on centre, got %v", got)
	}
}

func TestCameraSystem_Smoothing(t *testing.T) {
	cs := defaultCamera(430, 932)
	cs.SetZoom(2)
	cs.SetTarget(physics.Vector2D{X: 50, Y: 100})

	cs.step(0.1)
	got := cs.GetCurrentPosition()
	if !near(got.X, 172) || !near(got.Y, 372.8) {
		t.Errorf("Expected 40%% of the way to (107.5,233), got %v", got)
	}

	for i := 0; i < 100; i++ {
		cs.step(0.1)
	}
	got = cs.GetCurrentPosition()
	if !near(got.X, 107.5) || !near(got.Y, 233) {
		t.Errorf("Expected camera to settle on target, got %v", got)
	}
}

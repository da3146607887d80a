package engo

import (
	"strings"
	"testing"
	"time"

	"github.com/opd-ai/go-lander/pkg/engine"
	"github.com/opd-ai/go-lander/pkg/entity"
	"github.com/opd-ai/go-lander/pkg/landing"
	"github.com/opd-ai/go-lander/pkg/network"
	"github.com/opd-ai/go-lander/pkg/physics"
	"github.com/opd-ai/go-lander/pkg/scores"
)

func flightFrame() engine.FrameSnapshot {
	return engine.FrameSnapshot{
		Profile:         "moon",
		Vehicle:         entity.VehicleState{Fuel: 73.4, Velocity: physics.Vector2D{X: -12, Y: -150}},
		ApproachSpeed:   150,
		MaxDescentSpeed: 250,
	}
}

func TestHUDSystem_LinesWithoutFrame(t *testing.T) {
	hud := NewHUDSystem(newFakeSystem())
	lines := hud.Lines()
	if len(lines) != 1 || lines[0] != "STATUS Connected" {
		t.Errorf("Expected only the status line, got %v", lines)
	}

	hud.SetConnectionStatus("Disconnected")
	hud.SetLatency(42 * time.Millisecond)
	if got := hud.Lines()[0]; got != "STATUS Disconnected 42ms" {
		t.Errorf("Expected status with latency, got %q", got)
	}
}

func TestHUDSystem_FlightLines(t *testing.T) {
	hud := NewHUDSystem(newFakeSystem())
	hud.SetFrame(flightFrame())

	want := []string{
		"STATUS Connected",
		"PROFILE moon",
		"FUEL 73",
		"DESCENT 150 / 250",
		"DRIFT -12",
		"TILT 0°",
	}
	got := hud.Lines()
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestHUDSystem_OutcomeLines(t *testing.T) {
	t.Run("landing with record", func(t *testing.T) {
		hud := NewHUDSystem(newFakeSystem())
		f := flightFrame()
		f.Outcome = &landing.Outcome{Result: landing.ResultSafe, TargetKey: "C", Score: 1500, Stars: 3}
		hud.SetFrame(f)
		hud.SetResult(network.OutcomeMessage{
			Profile: "moon",
			Record:  scores.Record{Rank: 1, HighScore: true, Unlocked: 2},
		})

		text := strings.Join(hud.Lines(), "\n")
		for _, want := range []string{"LANDED C +1500 ***", "NEW HIGH SCORE #1", "UNLOCKED LEVEL 2"} {
			if !strings.Contains(text, want) {
				t.Errorf("Expected %q in:\n%s", want, text)
			}
		}
	})

	t.Run("crash with nudge", func(t *testing.T) {
		hud := NewHUDSystem(newFakeSystem())
		f := flightFrame()
		f.Outcome = &landing.Outcome{Result: landing.ResultCrash, Cause: landing.CauseSlideOff, Nudge: "Aim for the middle"}
		hud.SetFrame(f)

		lines := hud.Lines()
		if lines[len(lines)-2] != "CRASH slide-off" || lines[len(lines)-1] != "Aim for the middle" {
			t.Errorf("Expected crash and nudge lines, got %v", lines)
		}
		if hud.lineColor(lines[len(lines)-2]) != hud.warnColor {
			t.Error("Expected crash line in the warning colour")
		}
	})

	t.Run("new round clears result", func(t *testing.T) {
		hud := NewHUDSystem(newFakeSystem())
		f := flightFrame()
		f.Outcome = &landing.Outcome{Result: landing.ResultSafe, TargetKey: "A"}
		hud.SetFrame(f)
		hud.SetResult(network.OutcomeMessage{Profile: "moon", Record: scores.Record{HighScore: true, Rank: 2}})
		hud.SetFrame(flightFrame())

		if strings.Contains(strings.Join(hud.Lines(), "\n"), "HIGH SCORE") {
			t.Error("Expected record cleared for the new round")
		}
	})
}

func TestHUDSystem_UpdateWithoutFont(t *testing.T) {
	sys := newFakeSystem()
	hud := NewHUDSystem(sys)
	hud.SetFrame(flightFrame())
	hud.Update(0.016)

	if len(sys.added) != 0 {
		t.Errorf("Expected no text sprites without a font, got %d", len(sys.added))
	}
}

package feedback

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/opd-ai/go-lander/pkg/engine"
	"github.com/opd-ai/go-lander/pkg/entity"
	"github.com/opd-ai/go-lander/pkg/event"
	"github.com/opd-ai/go-lander/pkg/logging"
)

type recorder struct {
	cues []Cue
}

func (r *recorder) Play(cue Cue, _ float64) { r.cues = append(r.cues, cue) }

func (r *recorder) count(cue Cue) int {
	n := 0
	for _, c := range r.cues {
		if c == cue {
			n++
		}
	}
	return n
}

func thrustAt(session string, elapsed float64) *event.ThrustEvent {
	return &event.ThrustEvent{SessionEvent: *event.NewSessionEvent(event.ThrustTick, nil, session, "classic", 0, elapsed), Fuel: 50}
}

func TestDispatcher_ThrottlesThrust(t *testing.T) {
	bus := event.NewEventBus()
	rec := &recorder{}
	d := NewDispatcher(bus, rec)
	defer d.Close()

	// 60 Hz for one second: pulses at 0, 0.1, 0.2 ... 0.9.
	for i := 0; i < 60; i++ {
		bus.Publish(thrustAt("s", float64(i)/60))
	}

	if n := rec.count(CueThrust); n != 10 {
		t.Errorf("Expected 10 thrust pulses, got %d", n)
	}
}

func TestDispatcher_ThrottleIsPerSession(t *testing.T) {
	bus := event.NewEventBus()
	rec := &recorder{}
	d := NewDispatcher(bus, rec)
	defer d.Close()

	bus.Publish(thrustAt("a", 0))
	bus.Publish(thrustAt("b", 0))
	bus.Publish(thrustAt("a", 0.05))

	if n := rec.count(CueThrust); n != 2 {
		t.Errorf("Expected 2 thrust pulses, got %d", n)
	}
}

func TestDispatcher_ResetClearsThrottle(t *testing.T) {
	bus := event.NewEventBus()
	rec := &recorder{}
	d := NewDispatcher(bus, rec)
	defer d.Close()

	bus.Publish(thrustAt("s", 5))
	bus.Publish(event.NewSessionEvent(event.SessionReset, nil, "s", "classic", 0, 0))
	bus.Publish(thrustAt("s", 0))

	if n := rec.count(CueThrust); n != 2 {
		t.Errorf("Expected 2 thrust pulses after reset, got %d", n)
	}
}

func TestDispatcher_OutcomeCues(t *testing.T) {
	bus := event.NewEventBus()
	var intensities []float64
	d := NewDispatcher(bus, SinkFunc(func(cue Cue, intensity float64) {
		if cue == CueLandingSuccess {
			intensities = append(intensities, intensity)
		}
	}))
	defer d.Close()

	for stars := 1; stars <= 3; stars++ {
		bus.Publish(&event.LandingEvent{SessionEvent: *event.NewSessionEvent(event.LandingSuccess, nil, "s", "classic", 1, 1), Stars: stars})
	}

	want := []float64{0.6, 0.8, 1}
	if len(intensities) != len(want) {
		t.Fatalf("Expected %d success cues, got %d", len(want), len(intensities))
	}
	for i := range want {
		if intensities[i] != want[i] {
			t.Errorf("Expected intensity %v for %d stars, got %v", want[i], i+1, intensities[i])
		}
	}
}

func TestDispatcher_SessionIntegration(t *testing.T) {
	s, err := engine.NewSession(nil, nil, engine.Options{Seed: 3})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	rec := &recorder{}
	d := NewDispatcher(s.Bus(), rec)

	s.Tick(1.0/60, entity.ControlInput{Thrust: true, RotateLeft: true})
	for i := 0; i < 11; i++ {
		s.Tick(1.0/60, entity.ControlInput{Thrust: true})
	}

	if n := rec.count(CueRotationStart); n != 1 {
		t.Errorf("Expected 1 rotation cue, got %d", n)
	}
	// 12 ticks at 60 Hz span 0.2 s of simulated time.
	if n := rec.count(CueThrust); n != 2 {
		t.Errorf("Expected 2 thrust pulses, got %d", n)
	}

	d.Close()
	s.Tick(1.0/60, entity.ControlInput{RotateRight: true})
	if n := rec.count(CueRotationStart); n != 1 {
		t.Errorf("Expected closed dispatcher to stay silent, got %d rotation cues", n)
	}
}

func TestDispatcher_CrashCue(t *testing.T) {
	bus := event.NewEventBus()
	rec := &recorder{}
	d := NewDispatcher(bus, rec)
	defer d.Close()

	bus.Publish(&event.LandingEvent{SessionEvent: *event.NewSessionEvent(event.Crash, nil, "s", "io", 1, 1), Cause: "hazard"})
	bus.Publish(&event.HazardEvent{SessionEvent: *event.NewSessionEvent(event.HazardSpawned, nil, "s", "io", 1, 1), Count: 8})

	if len(rec.cues) != 2 || rec.cues[0] != CueCrash || rec.cues[1] != CueHazard {
		t.Errorf("Expected [crash hazard], got %v", rec.cues)
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := LogSink{Logger: logging.NewLoggerWithWriter(&buf, slog.LevelDebug)}

	sink.Play(CueCrash, 1)

	if !strings.Contains(buf.String(), `"cue":"crash"`) {
		t.Errorf("Expected crash cue in log, got %q", buf.String())
	}
}

// Package feedback turns session events into tactile or audio cues.
//
// A Dispatcher subscribes to a session's event bus and forwards cues to a
// Sink. Thrust pulses are throttled against simulation time so a held
// throttle does not flood the device.
package feedback

import (
	"context"
	"sync"

	"github.com/opd-ai/go-lander/pkg/event"
	"github.com/opd-ai/go-lander/pkg/logging"
)

// ThrustInterval is the minimum simulated time between two thrust pulses.
const ThrustInterval = 0.1

// Cue identifies a feedback pattern.
type Cue string

const (
	CueThrust         Cue = "thrust"
	CueRotationStart  Cue = "rotation-start"
	CueLandingSuccess Cue = "landing-success"
	CueCrash          Cue = "crash"
	CueHazard         Cue = "hazard"
)

// Sink plays cues. Implementations must not block.
type Sink interface {
	Play(cue Cue, intensity float64)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(cue Cue, intensity float64)

// Play calls f.
func (f SinkFunc) Play(cue Cue, intensity float64) { f(cue, intensity) }

// Dispatcher routes bus events to a sink.
type Dispatcher struct {
	sink   Sink
	cancel func()

	mu         sync.Mutex
	lastThrust map[string]float64
}

// NewDispatcher subscribes to bus and forwards cues to sink until Close.
func NewDispatcher(bus *event.Bus, sink Sink) *Dispatcher {
	d := &Dispatcher{sink: sink, lastThrust: make(map[string]float64)}
	d.cancel = bus.SubscribeAll(d.handle,
		event.ThrustTick, event.RotationStart, event.LandingSuccess,
		event.Crash, event.HazardSpawned, event.SessionReset)
	return d
}

// Close unsubscribes the dispatcher.
func (d *Dispatcher) Close() {
	d.cancel()
}

func (d *Dispatcher) handle(e event.Event) {
	switch ev := e.(type) {
	case *event.ThrustEvent:
		if d.allowThrust(ev.SessionID, ev.Elapsed) {
			d.sink.Play(CueThrust, 0.4)
		}
	case *event.LandingEvent:
		if ev.GetType() == event.LandingSuccess {
			d.sink.Play(CueLandingSuccess, landingIntensity(ev.Stars))
		} else {
			d.sink.Play(CueCrash, 1)
		}
	case *event.HazardEvent:
		d.sink.Play(CueHazard, 0.6)
	case *event.SessionEvent:
		switch ev.GetType() {
		case event.RotationStart:
			d.sink.Play(CueRotationStart, 0.3)
		case event.SessionReset:
			d.mu.Lock()
			delete(d.lastThrust, ev.SessionID)
			d.mu.Unlock()
		}
	}
}

// allowThrust reports whether a pulse may fire for session at elapsed.
func (d *Dispatcher) allowThrust(session string, elapsed float64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	last, seen := d.lastThrust[session]
	if seen && elapsed-last < ThrustInterval-1e-9 {
		return false
	}
	d.lastThrust[session] = elapsed
	return true
}

func landingIntensity(stars int) float64 {
	switch {
	case stars >= 3:
		return 1
	case stars == 2:
		return 0.8
	default:
		return 0.6
	}
}

// LogSink writes cues to a debug log. It stands in for a device on
// headless servers.
type LogSink struct {
	Logger *logging.Logger
}

// Play logs the cue at debug level.
func (s LogSink) Play(cue Cue, intensity float64) {
	s.Logger.Debug(context.Background(), "feedback cue", "cue", string(cue), "intensity", intensity)
}

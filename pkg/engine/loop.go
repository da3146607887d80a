package engine

import (
	"context"
	"time"

	"github.com/opd-ai/go-lander/pkg/entity"
)

// MaxStepsPerAdvance bounds the catch-up work done by one Advance call.
const MaxStepsPerAdvance = 5

// InputFunc returns the latest control state. It is polled once per step.
type InputFunc func() entity.ControlInput

// FrameFunc receives the snapshot after each Advance that ran at least one step.
type FrameFunc func(FrameSnapshot)

// Loop drives a session at a fixed step from wall-clock time.
type Loop struct {
	session *Session
	step    time.Duration
	acc     time.Duration
}

// NewLoop creates a loop stepping session tickRate times per second.
func NewLoop(session *Session, tickRate int) *Loop {
	if tickRate <= 0 {
		tickRate = 60
	}
	return &Loop{
		session: session,
		step:    time.Second / time.Duration(tickRate),
	}
}

// Step returns the fixed step duration.
func (l *Loop) Step() time.Duration {
	return l.step
}

// Advance adds elapsed wall time to the accumulator and runs as many fixed
// steps as it covers, up to MaxStepsPerAdvance. Excess time is dropped.
func (l *Loop) Advance(elapsed time.Duration, input InputFunc) (FrameSnapshot, int) {
	if elapsed > 0 {
		l.acc += elapsed
	}
	steps := 0
	var snap FrameSnapshot
	for l.acc >= l.step && steps < MaxStepsPerAdvance {
		snap = l.session.Tick(l.step.Seconds(), input())
		l.acc -= l.step
		steps++
	}
	if steps == MaxStepsPerAdvance && l.acc >= l.step {
		l.acc = 0
	}
	if steps == 0 {
		snap = l.session.Snapshot()
	}
	return snap, steps
}

// Run advances the session on a ticker until ctx is done.
func (l *Loop) Run(ctx context.Context, input InputFunc, onFrame FrameFunc) error {
	ticker := time.NewTicker(l.step)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			snap, steps := l.Advance(now.Sub(last), input)
			last = now
			if steps > 0 && onFrame != nil {
				onFrame(snap)
			}
		}
	}
}

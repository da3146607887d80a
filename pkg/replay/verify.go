package replay

import (
	"fmt"
	"slices"

	"github.com/opd-ai/go-lander/pkg/config"
	"github.com/opd-ai/go-lander/pkg/engine"
	"github.com/opd-ai/go-lander/pkg/landing"
)

// Result is the outcome of re-simulating a bundle.
type Result struct {
	Ticks    int              `json:"ticks"`
	Recorded *landing.Outcome `json:"recorded,omitempty"`
	Replayed *landing.Outcome `json:"replayed,omitempty"`
	Match    bool             `json:"match"`
}

// Verify re-runs the recorded inputs on a fresh session built from the
// header and compares the outcome with the recorded one.
func Verify(dir string) (Result, error) {
	r, err := Open(dir)
	if err != nil {
		return Result{}, err
	}
	ticks, err := r.Ticks()
	if err != nil {
		return Result{}, err
	}
	return Replay(r.Header(), ticks)
}

// Replay runs ticks against a session built from h.
func Replay(h Header, ticks []TickRecord) (Result, error) {
	catalog, err := config.NewCatalog([]config.EnvironmentProfile{h.Profile})
	if err != nil {
		return Result{}, fmt.Errorf("invalid recorded profile: %w", err)
	}
	s, err := engine.NewSession(h.Config, catalog, engine.Options{
		ID:      h.SessionID,
		Profile: h.Profile.ID,
		Seed:    h.Seed,
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{Ticks: len(ticks), Recorded: h.Outcome}
	for _, t := range ticks {
		if s.Tick(t.Delta, t.Input).Terminal() {
			break
		}
	}
	if o, ok := s.Outcome(); ok {
		res.Replayed = &o
	}
	res.Match = sameOutcome(res.Recorded, res.Replayed)
	return res, nil
}

func sameOutcome(a, b *landing.Outcome) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Result == b.Result &&
		a.Cause == b.Cause &&
		a.TargetKey == b.TargetKey &&
		a.Score == b.Score &&
		a.Stars == b.Stars &&
		a.FuelLeft == b.FuelLeft &&
		a.Kinematics == b.Kinematics &&
		slices.Equal(a.Failed, b.Failed)
}

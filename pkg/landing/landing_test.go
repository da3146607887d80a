package landing

import (
	"math"
	"testing"

	"github.com/opd-ai/go-lander/pkg/config"
)

func newEvaluator() *Evaluator {
	return NewEvaluator(config.DefaultThresholds(), 0.3)
}

func TestEvaluate_BoundariesAreInclusive(t *testing.T) {
	e := newEvaluator()

	v := e.Evaluate(40, 25, 0.05, 80)
	if !v.Safe {
		t.Errorf("Expected landing exactly at every threshold to be safe, failed %v", v.Failed)
	}
	if len(v.Failed) != 0 {
		t.Errorf("Expected no failed checks, got %v", v.Failed)
	}
}

func TestEvaluate_AnySingleFailureCrashes(t *testing.T) {
	e := newEvaluator()

	tests := []struct {
		name                                     string
		vertical, horizontal, rotation, approach float64
		want                                     Check
	}{
		{"vertical just over", 41, 0, 0, 0, CheckVertical},
		{"horizontal just over", 0, 25.01, 0, 0, CheckHorizontal},
		{"tilted", 0, 0, 0.051, 0, CheckRotation},
		{"tilted the other way", 0, 0, -0.06, 0, CheckRotation},
		{"late braking", 0, 0, 0, 80.5, CheckApproach},
		{"rising too fast counts as speed", -41, 0, 0, 0, CheckVertical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := e.Evaluate(tt.vertical, tt.horizontal, tt.rotation, tt.approach)
			if v.Safe {
				t.Fatalf("Expected crash, got safe")
			}
			if len(v.Failed) != 1 || v.Failed[0] != tt.want {
				t.Errorf("Expected failed [%s], got %v", tt.want, v.Failed)
			}
		})
	}
}

func TestEvaluate_ReportsEveryFailedCheck(t *testing.T) {
	v := newEvaluator().Evaluate(100, 100, 1, 100)

	want := []Check{CheckVertical, CheckHorizontal, CheckRotation, CheckApproach}
	if len(v.Failed) != len(want) {
		t.Fatalf("Expected %d failures, got %v", len(want), v.Failed)
	}
	for i := range want {
		if v.Failed[i] != want[i] {
			t.Errorf("Expected failure %d to be %s, got %s", i, want[i], v.Failed[i])
		}
	}
}

func TestEvaluate_NonFiniteFails(t *testing.T) {
	e := newEvaluator()

	if e.Evaluate(math.NaN(), 0, 0, 0).Safe {
		t.Error("Expected NaN vertical speed to fail")
	}
	if e.Evaluate(0, 0, 0, math.Inf(1)).Safe {
		t.Error("Expected infinite approach speed to fail")
	}
}

func TestEvaluate_SpikeInHistoryDoesNotCrash(t *testing.T) {
	// 29 quiet samples and one 200 pt/s spike average to 6.67.
	approach := 200.0 / 30
	if !newEvaluator().Evaluate(10, 5, 0.01, approach).Safe {
		t.Errorf("Expected approach %f to pass", approach)
	}
}

func TestEvaluateKinematics(t *testing.T) {
	k := Kinematics{VerticalSpeed: 20, HorizontalSpeed: 30, RotationMagnitude: 0, ApproachSpeed: 10}
	v := newEvaluator().EvaluateKinematics(k)

	if v.Safe || len(v.Failed) != 1 || v.Failed[0] != CheckHorizontal {
		t.Errorf("Expected horizontal failure, got %+v", v)
	}
}

func TestSlideDistance(t *testing.T) {
	tests := []struct {
		name                     string
		speed, friction, gravity float64
		want                     float64
	}{
		{"at rest", 0, 0.05, -2.5, 0},
		{"ice", 25, 0.05, -2.5, 625.0 / 37.5},
		{"rubber", 25, 0.8, -2.8, 625.0 / (2 * 0.8 * 2.8 * 150)},
		{"sign of speed is irrelevant", -25, 0.05, -2.5, 625.0 / 37.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SlideDistance(tt.speed, tt.friction, tt.gravity)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Expected %f, got %f", tt.want, got)
			}
		})
	}

	if !math.IsInf(SlideDistance(10, 0, -2.5), 1) {
		t.Error("Expected a frictionless slide to be infinite")
	}
}

func TestSlidesOff(t *testing.T) {
	e := newEvaluator()
	// On ice at Europa gravity 25 pt/s slides 16.67 pt.
	tests := []struct {
		name     string
		offset   float64
		vx       float64
		friction float64
		want     bool
	}{
		{"centre stays on", 0, 25, 0.05, false},
		{"near right edge slides off", 45, 25, 0.05, true},
		{"near right edge moving inward stays", 45, -25, 0.05, false},
		{"near left edge slides off", -45, -25, 0.05, true},
		{"high friction never slides", 54, 25, 0.8, false},
		{"stopped on the edge stays", 55, 0, 0.05, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.SlidesOff(tt.offset, tt.vx, 55, tt.friction, -2.5)
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestOutcome_CloneIsIndependent(t *testing.T) {
	o := Outcome{Result: ResultCrash, Cause: CauseThreshold, Failed: []Check{CheckVertical}}
	c := o.Clone()
	c.Failed[0] = CheckApproach

	if o.Failed[0] != CheckVertical {
		t.Error("Expected clone to own its failed checks")
	}
	if o.Safe() {
		t.Error("Expected crash outcome not to be safe")
	}
}

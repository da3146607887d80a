package main

import (
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		kind    commandKind
		thrust  bool
		left    bool
		right   bool
		profile string
	}{
		{line: "w", kind: cmdControl, thrust: true},
		{line: "WA", kind: cmdControl, thrust: true, left: true},
		{line: " d ", kind: cmdControl, right: true},
		{line: "", kind: cmdControl},
		{line: "xyz", kind: cmdControl},
		{line: "r", kind: cmdReset},
		{line: "reset", kind: cmdReset},
		{line: "s moon", kind: cmdSelect, profile: "moon"},
		{line: "q", kind: cmdQuit},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got := parseCommand(tt.line)
			if got.kind != tt.kind {
				t.Fatalf("Expected kind %d, got %d", tt.kind, got.kind)
			}
			if got.input.Thrust != tt.thrust || got.input.RotateLeft != tt.left || got.input.RotateRight != tt.right {
				t.Errorf("Expected thrust=%v left=%v right=%v, got %+v", tt.thrust, tt.left, tt.right, got.input)
			}
			if got.profile != tt.profile {
				t.Errorf("Expected profile %q, got %q", tt.profile, got.profile)
			}
		})
	}
}

func TestReadCommands(t *testing.T) {
	out := make(chan command, 4)
	readCommands(strings.NewReader("w\nr\nq\n"), out)

	var kinds []commandKind
	for c := range out {
		kinds = append(kinds, c.kind)
	}
	if len(kinds) != 3 || kinds[0] != cmdControl || kinds[1] != cmdReset || kinds[2] != cmdQuit {
		t.Errorf("Expected control, reset, quit; got %v", kinds)
	}
}

func TestLatch(t *testing.T) {
	var l latch
	l.set(parseCommand("wd").input)
	if in := l.get(); !in.Thrust || !in.RotateRight {
		t.Errorf("Expected latched thrust and right turn, got %+v", in)
	}
}

package main

import (
	"bufio"
	"io"
	"strings"
	"sync"

	"github.com/opd-ai/go-lander/pkg/entity"
)

// commandKind is what a line typed on stdin asks for.
type commandKind int

const (
	cmdControl commandKind = iota
	cmdReset
	cmdSelect
	cmdQuit
)

type command struct {
	kind    commandKind
	input   entity.ControlInput
	profile string
}

// parseCommand reads one stdin line. Flight keys may be combined ("wa" thrusts
// and turns left); an empty line releases every control.
func parseCommand(line string) command {
	line = strings.TrimSpace(strings.ToLower(line))
	switch {
	case line == "q" || line == "quit":
		return command{kind: cmdQuit}
	case line == "r" || line == "reset":
		return command{kind: cmdReset}
	case strings.HasPrefix(line, "s "):
		return command{kind: cmdSelect, profile: strings.TrimSpace(line[2:])}
	}

	var in entity.ControlInput
	for _, ch := range line {
		switch ch {
		case 'w':
			in.Thrust = true
		case 'a':
			in.RotateLeft = true
		case 'd':
			in.RotateRight = true
		}
	}
	return command{kind: cmdControl, input: in}
}

// latch holds the control state set by the last command line.
type latch struct {
	mu sync.Mutex
	in entity.ControlInput
}

func (l *latch) set(in entity.ControlInput) {
	l.mu.Lock()
	l.in = in
	l.mu.Unlock()
}

func (l *latch) get() entity.ControlInput {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.in
}

// readCommands sends each stdin line to out until r is exhausted.
func readCommands(r io.Reader, out chan<- command) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		out <- parseCommand(scanner.Text())
	}
}

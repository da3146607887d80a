// Package replay records a round's control inputs and events to disk and
// re-simulates them to check the recorded outcome.
//
// A bundle is a directory holding:
//
//	manifest.json     layout and format version
//	header.json       seed, profile, configuration and final outcome
//	inputs.bin.zst    msgpack tick records, zstd compressed
//	events.jsonl.sz   one JSON event per line, snappy framed
package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opd-ai/go-lander/pkg/config"
	"github.com/opd-ai/go-lander/pkg/entity"
	"github.com/opd-ai/go-lander/pkg/landing"
)

// FormatVersion is the bundle version this package reads and writes.
const FormatVersion = 1

const (
	manifestFile = "manifest.json"
	headerFile   = "header.json"
	inputsFile   = "inputs.bin.zst"
	eventsFile   = "events.jsonl.sz"
)

// ErrUnsupportedVersion is returned for bundles written by another format version.
var ErrUnsupportedVersion = errors.New("unsupported replay version")

// Manifest describes the bundle layout.
type Manifest struct {
	Version    int    `json:"version"`
	CreatedAt  string `json:"created_at"`
	HeaderPath string `json:"header_path"`
	InputsPath string `json:"inputs_path"`
	EventsPath string `json:"events_path"`
}

// Header holds everything needed to re-run the round.
type Header struct {
	Version   int                       `json:"version"`
	SessionID string                    `json:"session_id"`
	Seed      uint64                    `json:"seed"`
	Profile   config.EnvironmentProfile `json:"profile"`
	Config    *config.GameConfig        `json:"config"`
	Ticks     uint64                    `json:"ticks"`
	Outcome   *landing.Outcome          `json:"outcome,omitempty"`
}

// TickRecord is one processed tick.
type TickRecord struct {
	Tick  uint64              `msgpack:"k"`
	Delta float64             `msgpack:"dt"`
	Input entity.ControlInput `msgpack:"in"`
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func checkVersion(v int) error {
	if v != FormatVersion {
		return fmt.Errorf("%w: %d (want %d)", ErrUnsupportedVersion, v, FormatVersion)
	}
	return nil
}

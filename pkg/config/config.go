// pkg/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// GameConfig contains configuration for a landing session host.
type GameConfig struct {
	World          WorldConfig      `json:"world"`
	Vehicle        VehicleConfig    `json:"vehicle"`
	Thresholds     Thresholds       `json:"thresholds"`
	Simulation     SimulationConfig `json:"simulation"`
	NetworkConfig  NetworkConfig    `json:"network"`
	Scores         ScoresConfig     `json:"scores"`
	DefaultProfile string           `json:"defaultProfile"`
	CatalogPath    string           `json:"catalogPath,omitempty"`
}

// WorldConfig describes the playfield in points. Y grows upward from the ground.
type WorldConfig struct {
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	WrapMargin   float64 `json:"wrapMargin"`
	OutOfBoundsY float64 `json:"outOfBoundsY"`
	GroundHeight float64 `json:"groundHeight"`
	TargetBaseY  float64 `json:"targetBaseY"`
	TargetHeight float64 `json:"targetHeight"`
}

// VehicleConfig holds the lander's body and control constants.
type VehicleConfig struct {
	Width               float64 `json:"width"`
	Height              float64 `json:"height"`
	SpawnXFraction      float64 `json:"spawnXFraction"`
	SpawnDrop           float64 `json:"spawnDrop"`
	MaxFuel             float64 `json:"maxFuel"`
	ThrustFuelPerTick   float64 `json:"thrustFuelPerTick"`
	RotationFuelPerTick float64 `json:"rotationFuelPerTick"`
	RotationPower       float64 `json:"rotationPower"`
	AngularDamping      float64 `json:"angularDamping"`
	VectoringFraction   float64 `json:"vectoringFraction"`
	TiltDeadZone        float64 `json:"tiltDeadZone"`
	HistorySize         int     `json:"historySize"`
}

// Thresholds are the inclusive upper bounds for a safe landing.
type Thresholds struct {
	MaxVerticalSpeed   float64 `json:"maxVerticalSpeed"`
	MaxHorizontalSpeed float64 `json:"maxHorizontalSpeed"`
	MaxRotation        float64 `json:"maxRotation"`
	MaxApproachSpeed   float64 `json:"maxApproachSpeed"`
}

// SimulationConfig controls stepping and randomness.
type SimulationConfig struct {
	TickRate int     `json:"tickRate"`
	MaxDelta float64 `json:"maxDelta"`
	Seed     uint64  `json:"seed"`
	// Surfaces with friction below this value can make a landed vehicle slide off.
	SlideFrictionLimit float64 `json:"slideFrictionLimit"`
}

// NetworkConfig contains network-related configuration
type NetworkConfig struct {
	ServerAddress string `json:"serverAddress"`
	ServerPort    int    `json:"serverPort"`
	SnapshotEvery int    `json:"snapshotEvery"`
	MaxSessions   int    `json:"maxSessions"`
}

// ScoresConfig controls score persistence and replay output.
type ScoresConfig struct {
	TableSize int    `json:"tableSize"`
	DBPath    string `json:"dbPath"`
	ReplayDir string `json:"replayDir,omitempty"`
}

// DefaultThresholds returns the standard landing limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxVerticalSpeed:   40,
		MaxHorizontalSpeed: 25,
		MaxRotation:        0.05,
		MaxApproachSpeed:   80,
	}
}

// LoadConfig loads a configuration from a file
func LoadConfig(path string) (*GameConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig saves a configuration to a file
func SaveConfig(config *GameConfig, path string) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the values a session relies on.
func (c *GameConfig) Validate() error {
	switch {
	case c.World.Width <= 0 || c.World.Height <= 0:
		return &ValidationError{Field: "World", Value: fmt.Sprintf("%gx%g", c.World.Width, c.World.Height), Message: "must be positive"}
	case c.Vehicle.Width <= 0 || c.Vehicle.Height <= 0:
		return &ValidationError{Field: "Vehicle", Value: fmt.Sprintf("%gx%g", c.Vehicle.Width, c.Vehicle.Height), Message: "must be positive"}
	case c.Vehicle.MaxFuel <= 0:
		return &ValidationError{Field: "MaxFuel", Value: fmt.Sprint(c.Vehicle.MaxFuel), Message: "must be positive"}
	case c.Thresholds.MaxVerticalSpeed <= 0 || c.Thresholds.MaxHorizontalSpeed <= 0 ||
		c.Thresholds.MaxRotation <= 0 || c.Thresholds.MaxApproachSpeed <= 0:
		return &ValidationError{Field: "Thresholds", Value: fmt.Sprintf("%+v", c.Thresholds), Message: "all limits must be positive"}
	case c.Simulation.TickRate <= 0:
		return &ValidationError{Field: "TickRate", Value: fmt.Sprint(c.Simulation.TickRate), Message: "must be positive"}
	case c.Simulation.MaxDelta <= 0:
		return &ValidationError{Field: "MaxDelta", Value: fmt.Sprint(c.Simulation.MaxDelta), Message: "must be positive"}
	case c.Scores.TableSize <= 0:
		return &ValidationError{Field: "TableSize", Value: fmt.Sprint(c.Scores.TableSize), Message: "must be positive"}
	}
	return nil
}

// DefaultConfig returns a default game configuration
func DefaultConfig() *GameConfig {
	return &GameConfig{
		World: WorldConfig{
			Width:        430,
			Height:       932,
			WrapMargin:   20,
			OutOfBoundsY: -100,
			GroundHeight: 10,
			TargetBaseY:  220,
			TargetHeight: 8,
		},
		Vehicle: VehicleConfig{
			Width:               50,
			Height:              80,
			SpawnXFraction:      0.15,
			SpawnDrop:           100,
			MaxFuel:             100,
			ThrustFuelPerTick:   0.3,
			RotationFuelPerTick: 0.08,
			RotationPower:       0.05,
			AngularDamping:      0.7,
			VectoringFraction:   0.15,
			TiltDeadZone:        0.1,
			HistorySize:         30,
		},
		Thresholds: DefaultThresholds(),
		Simulation: SimulationConfig{
			TickRate:           60,
			MaxDelta:           0.1,
			SlideFrictionLimit: 0.3,
		},
		NetworkConfig: NetworkConfig{
			ServerAddress: "localhost:4566",
			ServerPort:    4566,
			SnapshotEvery: 2,
			MaxSessions:   32,
		},
		Scores: ScoresConfig{
			TableSize: 3,
			DBPath:    "lander.db",
		},
		DefaultProfile: "classic",
	}
}

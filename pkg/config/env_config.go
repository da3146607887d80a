// pkg/config/env_config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvironmentConfig holds deployment settings read from LANDER_* variables.
type EnvironmentConfig struct {
	ServerAddr    string
	ServerPort    int
	MaxSessions   int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	TickRate      int
	SnapshotEvery int
	WorldWidth    float64
	Seed          uint64

	DefaultProfile string
	CatalogPath    string
	DBPath         string
	ReplayDir      string
	RecordReplays  bool

	// Circuit Breaker Configuration
	CircuitBreakerMaxRequests         uint32
	CircuitBreakerInterval            time.Duration
	CircuitBreakerTimeout             time.Duration
	CircuitBreakerMaxConsecutiveFails uint32

	// Resource Management Configuration
	MaxMemoryMB           int
	ShutdownTimeout       time.Duration
	ResourceCheckInterval time.Duration
}

// ValidationError reports a configuration field with an unusable value.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

// LoadDotEnv loads variables from the given .env files (default ".env").
// Missing files are ignored; variables already set in the process win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// LoadConfigFromEnv reads and validates the environment configuration.
func LoadConfigFromEnv() (*EnvironmentConfig, error) {
	config := &EnvironmentConfig{
		ServerAddr:    getEnvOrDefault("LANDER_SERVER_ADDR", "localhost"),
		ServerPort:    getEnvAsIntOrDefault("LANDER_SERVER_PORT", 4566),
		MaxSessions:   getEnvAsIntOrDefault("LANDER_MAX_SESSIONS", 32),
		ReadTimeout:   getEnvAsDurationOrDefault("LANDER_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:  getEnvAsDurationOrDefault("LANDER_WRITE_TIMEOUT", 10*time.Second),
		TickRate:      getEnvAsIntOrDefault("LANDER_TICK_RATE", 60),
		SnapshotEvery: getEnvAsIntOrDefault("LANDER_SNAPSHOT_EVERY", 2),
		WorldWidth:    getEnvAsFloatOrDefault("LANDER_WORLD_WIDTH", 430),
		Seed:          uint64(getEnvAsIntOrDefault("LANDER_SEED", 0)),

		DefaultProfile: getEnvOrDefault("LANDER_DEFAULT_PROFILE", "classic"),
		CatalogPath:    getEnvOrDefault("LANDER_CATALOG", ""),
		DBPath:         getEnvOrDefault("LANDER_DB_PATH", "lander.db"),
		ReplayDir:      getEnvOrDefault("LANDER_REPLAY_DIR", ""),
		RecordReplays:  getEnvAsBoolOrDefault("LANDER_RECORD_REPLAYS", false),

		CircuitBreakerMaxRequests:         uint32(getEnvAsIntOrDefault("LANDER_CB_MAX_REQUESTS", 3)),
		CircuitBreakerInterval:            getEnvAsDurationOrDefault("LANDER_CB_INTERVAL", 60*time.Second),
		CircuitBreakerTimeout:             getEnvAsDurationOrDefault("LANDER_CB_TIMEOUT", 30*time.Second),
		CircuitBreakerMaxConsecutiveFails: uint32(getEnvAsIntOrDefault("LANDER_CB_MAX_FAILS", 5)),

		MaxMemoryMB:           getEnvAsIntOrDefault("LANDER_MAX_MEMORY_MB", 512),
		ShutdownTimeout:       getEnvAsDurationOrDefault("LANDER_SHUTDOWN_TIMEOUT", 30*time.Second),
		ResourceCheckInterval: getEnvAsDurationOrDefault("LANDER_RESOURCE_CHECK_INTERVAL", 10*time.Second),
	}

	if err := validateEnvironmentConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

func validateEnvironmentConfig(c *EnvironmentConfig) error {
	switch {
	case c.ServerAddr == "":
		return &ValidationError{Field: "ServerAddr", Value: c.ServerAddr, Message: "must not be empty"}
	case c.ServerPort < 1024 || c.ServerPort > 65535:
		return &ValidationError{Field: "ServerPort", Value: strconv.Itoa(c.ServerPort), Message: "must be between 1024 and 65535"}
	case c.MaxSessions < 1 || c.MaxSessions > 10000:
		return &ValidationError{Field: "MaxSessions", Value: strconv.Itoa(c.MaxSessions), Message: "must be between 1 and 10000"}
	case c.ReadTimeout <= 0:
		return &ValidationError{Field: "ReadTimeout", Value: c.ReadTimeout.String(), Message: "must be positive"}
	case c.WriteTimeout <= 0:
		return &ValidationError{Field: "WriteTimeout", Value: c.WriteTimeout.String(), Message: "must be positive"}
	case c.TickRate < 10 || c.TickRate > 240:
		return &ValidationError{Field: "TickRate", Value: strconv.Itoa(c.TickRate), Message: "must be between 10 and 240"}
	case c.SnapshotEvery < 1:
		return &ValidationError{Field: "SnapshotEvery", Value: strconv.Itoa(c.SnapshotEvery), Message: "must be at least 1"}
	case c.WorldWidth < 200:
		return &ValidationError{Field: "WorldWidth", Value: fmt.Sprint(c.WorldWidth), Message: "must be at least 200"}
	case c.DefaultProfile == "":
		return &ValidationError{Field: "DefaultProfile", Value: c.DefaultProfile, Message: "must not be empty"}
	case c.CircuitBreakerMaxRequests < 1:
		return &ValidationError{Field: "CircuitBreakerMaxRequests", Value: fmt.Sprint(c.CircuitBreakerMaxRequests), Message: "must be at least 1"}
	case c.CircuitBreakerInterval <= 0:
		return &ValidationError{Field: "CircuitBreakerInterval", Value: c.CircuitBreakerInterval.String(), Message: "must be positive"}
	case c.CircuitBreakerTimeout <= 0:
		return &ValidationError{Field: "CircuitBreakerTimeout", Value: c.CircuitBreakerTimeout.String(), Message: "must be positive"}
	case c.CircuitBreakerMaxConsecutiveFails < 1:
		return &ValidationError{Field: "CircuitBreakerMaxConsecutiveFails", Value: fmt.Sprint(c.CircuitBreakerMaxConsecutiveFails), Message: "must be at least 1"}
	case c.MaxMemoryMB < 16:
		return &ValidationError{Field: "MaxMemoryMB", Value: strconv.Itoa(c.MaxMemoryMB), Message: "must be at least 16"}
	case c.ShutdownTimeout <= 0:
		return &ValidationError{Field: "ShutdownTimeout", Value: c.ShutdownTimeout.String(), Message: "must be positive"}
	case c.ResourceCheckInterval <= 0:
		return &ValidationError{Field: "ResourceCheckInterval", Value: c.ResourceCheckInterval.String(), Message: "must be positive"}
	}
	return nil
}

// ApplyEnvironmentOverrides loads the environment and folds it into config.
func ApplyEnvironmentOverrides(config *GameConfig) error {
	env, err := LoadConfigFromEnv()
	if err != nil {
		return err
	}

	config.NetworkConfig.ServerAddress = fmt.Sprintf("%s:%d", env.ServerAddr, env.ServerPort)
	config.NetworkConfig.ServerPort = env.ServerPort
	config.NetworkConfig.MaxSessions = env.MaxSessions
	config.NetworkConfig.SnapshotEvery = env.SnapshotEvery
	config.Simulation.TickRate = env.TickRate
	config.World.Width = env.WorldWidth
	config.DefaultProfile = env.DefaultProfile
	config.Scores.DBPath = env.DBPath
	if env.Seed != 0 {
		config.Simulation.Seed = env.Seed
	}
	if env.CatalogPath != "" {
		config.CatalogPath = env.CatalogPath
	}
	if env.ReplayDir != "" {
		config.Scores.ReplayDir = env.ReplayDir
	} else if env.RecordReplays && config.Scores.ReplayDir == "" {
		config.Scores.ReplayDir = "replays"
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// cmd/server/main.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/opd-ai/go-lander/pkg/config"
	"github.com/opd-ai/go-lander/pkg/health"
	"github.com/opd-ai/go-lander/pkg/logging"
	"github.com/opd-ai/go-lander/pkg/network"
	"github.com/opd-ai/go-lander/pkg/scores"
)

func main() {
	logger := logging.NewLogger()
	ctx := context.Background()

	configPath := flag.String("config", "config.json", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to a .env file")
	createDefault := flag.Bool("default", false, "Create default configuration file")
	flag.Parse()

	// Create default configuration file if requested
	if *createDefault {
		if err := config.SaveConfig(config.DefaultConfig(), *configPath); err != nil {
			logger.Error(ctx, "Failed to create default configuration", err, "config_path", *configPath)
			os.Exit(1)
		}
		logger.Info(ctx, "Created default configuration file", "config_path", *configPath)
		return
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		logger.Error(ctx, "Failed to load env file", err, "env_file", *envFile)
		os.Exit(1)
	}

	gameConfig, err := loadGameConfig(ctx, logger, *configPath)
	if err != nil {
		logger.Error(ctx, "Failed to load configuration", err, "config_path", *configPath)
		os.Exit(1)
	}
	if err := config.ApplyEnvironmentOverrides(gameConfig); err != nil {
		logger.Error(ctx, "Failed to apply environment configuration", err)
		os.Exit(1)
	}
	if err := gameConfig.Validate(); err != nil {
		logger.Error(ctx, "Invalid configuration", err)
		os.Exit(1)
	}
	envConfig, err := config.LoadConfigFromEnv()
	if err != nil {
		logger.Error(ctx, "Invalid environment configuration", err)
		os.Exit(1)
	}

	catalog := config.DefaultCatalog()
	if gameConfig.CatalogPath != "" {
		if catalog, err = config.LoadCatalog(gameConfig.CatalogPath); err != nil {
			logger.Error(ctx, "Failed to load profile catalog", err, "catalog", gameConfig.CatalogPath)
			os.Exit(1)
		}
	}

	store, err := scores.OpenSQLite(gameConfig.Scores.DBPath)
	if err != nil {
		logger.Error(ctx, "Failed to open score store", err, "db_path", gameConfig.Scores.DBPath)
		os.Exit(1)
	}
	board, err := scores.NewBoard(ctx, store, catalog,
		scores.WithLogger(logger),
		scores.WithTableSize(gameConfig.Scores.TableSize),
	)
	if err != nil {
		logger.Error(ctx, "Failed to load scores", err)
		store.Close()
		os.Exit(1)
	}
	defer board.Close()

	server := network.NewServer(gameConfig, envConfig, catalog, board, logger,
		network.WithReadinessCheck(health.NewStoreCheck(store)),
	)

	addr := gameConfig.NetworkConfig.ServerAddress
	logger.Info(ctx, "Starting server",
		"address", addr,
		"max_sessions", envConfig.MaxSessions,
		"profiles", len(catalog.IDs()),
		"replays", gameConfig.Scores.ReplayDir,
	)
	if err := server.Start(addr); err != nil {
		logger.Error(ctx, "Failed to start server", err, "address", addr)
		os.Exit(1)
	}

	// Handle graceful shutdown
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	logger.Info(ctx, "Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), envConfig.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Server shutdown incomplete", err)
	}
}

func loadGameConfig(ctx context.Context, logger *logging.Logger, path string) (*config.GameConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info(ctx, "Configuration file not found, using default configuration", "config_path", path)
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(path)
}

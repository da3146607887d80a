// cmd/client/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EngoEngine/engo"

	"github.com/opd-ai/go-lander/pkg/config"
	"github.com/opd-ai/go-lander/pkg/engine"
	"github.com/opd-ai/go-lander/pkg/event"
	"github.com/opd-ai/go-lander/pkg/feedback"
	"github.com/opd-ai/go-lander/pkg/logging"
	"github.com/opd-ai/go-lander/pkg/network"
	"github.com/opd-ai/go-lander/pkg/render"
	engorender "github.com/opd-ai/go-lander/pkg/render/engo"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to configuration file")
	serverURL := flag.String("server", "ws://localhost:4566/ws", "Server websocket URL")
	profile := flag.String("profile", "", "Environment profile to fly")
	label := flag.String("name", network.DefaultLabel, "Pilot name for the score table")
	renderer := flag.String("renderer", "terminal", "Renderer type: 'terminal' or 'engo'")
	offline := flag.Bool("offline", false, "Fly a local session without a server (terminal only)")
	cols := flag.Int("cols", 43, "Playfield columns (terminal only)")
	rows := flag.Int("rows", 30, "Playfield rows (terminal only)")
	fullscreen := flag.Bool("fullscreen", false, "Run in fullscreen mode (Engo only)")
	width := flag.Int("width", 430, "Window width (Engo only)")
	height := flag.Int("height", 932, "Window height (Engo only)")
	flag.Parse()

	logger := logging.NewLogger()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		logger.Error(ctx, "Failed to load env file", err)
		os.Exit(1)
	}
	gameConfig := config.DefaultConfig()
	if _, err := os.Stat(*configPath); err == nil {
		if gameConfig, err = config.LoadConfig(*configPath); err != nil {
			logger.Error(ctx, "Failed to load configuration", err, "config_path", *configPath)
			os.Exit(1)
		}
	}

	if *offline {
		if err := flyOffline(ctx, gameConfig, *profile, *cols, *rows, logger); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(ctx, "Offline session failed", err)
			os.Exit(1)
		}
		return
	}

	envConfig, err := config.LoadConfigFromEnv()
	if err != nil {
		logger.Error(ctx, "Invalid environment configuration", err)
		os.Exit(1)
	}

	bus := event.NewEventBus()
	client := network.NewClient(*serverURL, envConfig, bus, logger, network.DefaultClientOptions())
	defer client.Close()

	bus.Subscribe(network.ClientDisconnected, func(e event.Event) {
		logger.Warn(ctx, "Disconnected from server")
	})
	bus.Subscribe(network.ClientReconnected, func(e event.Event) {
		logger.Info(ctx, "Reconnected to server")
	})
	bus.Subscribe(network.ClientReconnectFailed, func(e event.Event) {
		logger.Warn(ctx, "Failed to reconnect to server")
		stop()
	})

	welcome, err := client.Connect(ctx, network.Hello{Profile: *profile, Label: *label})
	if err != nil {
		logger.Error(ctx, "Failed to connect to server", err, "server", *serverURL)
		os.Exit(1)
	}
	logger.Info(ctx, "Connected to server",
		"session_id", welcome.SessionID,
		"profile", welcome.Profile,
		"unlocked", welcome.Unlocked,
	)

	switch *renderer {
	case "engo":
		engo.Run(engo.RunOptions{
			Title:      "Lander",
			Width:      *width,
			Height:     *height,
			Fullscreen: *fullscreen,
			VSync:      true,
		}, engorender.NewGameScene(client, gameConfig.World, logger))
	default:
		flyTerminal(ctx, client, gameConfig.World, *cols, *rows, logger)
	}
}

// flyTerminal draws server frames as text and forwards stdin commands.
func flyTerminal(ctx context.Context, client *network.Client, world config.WorldConfig, cols, rows int, logger *logging.Logger) {
	screen := render.NewTerminalRenderer(os.Stdout, cols, rows, world)
	commands := make(chan command)
	go readCommands(os.Stdin, commands)

	for {
		select {
		case <-ctx.Done():
			return
		case f := <-client.Frames():
			screen.DrawFrame(f)
		case m := <-client.Outcomes():
			if m.Record.HighScore {
				fmt.Printf("New high score on %s, rank %d\n", m.Profile, m.Record.Rank)
			}
			if m.Record.Unlocked > 0 {
				fmt.Printf("Unlocked level %d\n", m.Record.Unlocked)
			}
		case e := <-client.Errors():
			fmt.Printf("server: %s\n", e.Error())
		case c, ok := <-commands:
			if !ok || c.kind == cmdQuit {
				return
			}
			if err := sendCommand(client, c); err != nil {
				logger.Warn(ctx, "command not sent", "error", err.Error())
			}
		}
	}
}

func sendCommand(client *network.Client, c command) error {
	switch c.kind {
	case cmdReset:
		return client.Reset()
	case cmdSelect:
		return client.Select(c.profile)
	default:
		return client.SendInput(c.input)
	}
}

// flyOffline runs a session in process with feedback cues going to the log.
func flyOffline(ctx context.Context, cfg *config.GameConfig, profile string, cols, rows int, logger *logging.Logger) error {
	catalog := config.DefaultCatalog()
	if cfg.CatalogPath != "" {
		var err error
		if catalog, err = config.LoadCatalog(cfg.CatalogPath); err != nil {
			return err
		}
	}

	session, err := engine.NewSession(cfg, catalog, engine.Options{
		Profile: profile,
		Seed:    uint64(time.Now().UnixNano()),
	})
	if err != nil {
		return err
	}
	cues := feedback.NewDispatcher(session.Bus(), feedback.LogSink{Logger: logger})
	defer cues.Close()

	screen := render.NewTerminalRenderer(os.Stdout, cols, rows, cfg.World)
	var controls latch
	commands := make(chan command)
	go readCommands(os.Stdin, commands)

	loop := engine.NewLoop(session, cfg.Simulation.TickRate)
	ticker := time.NewTicker(loop.Step())
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			f, steps := loop.Advance(now.Sub(last), controls.get)
			last = now
			if steps > 0 {
				screen.DrawFrame(f)
			}
		case c, ok := <-commands:
			if !ok || c.kind == cmdQuit {
				return nil
			}
			switch c.kind {
			case cmdReset:
				controls.set(c.input)
				screen.DrawFrame(session.Reset())
			case cmdSelect:
				if err := session.SelectProfile(c.profile); err != nil {
					fmt.Printf("%v\n", err)
				}
			default:
				controls.set(c.input)
			}
		}
	}
}

// Package engo is the windowed client: an engo scene that draws the frames
// streamed by a lander server and sends keyboard input back.
package engo

import (
	"context"
	"image/color"
	"sync"

	"github.com/EngoEngine/ecs"
	"github.com/EngoEngine/engo"
	"github.com/EngoEngine/engo/common"

	"github.com/opd-ai/go-lander/pkg/config"
	"github.com/opd-ai/go-lander/pkg/engine"
	"github.com/opd-ai/go-lander/pkg/event"
	"github.com/opd-ai/go-lander/pkg/logging"
	"github.com/opd-ai/go-lander/pkg/network"
)

// FontURL is the TrueType font preloaded for the HUD.
const FontURL = "fonts/hud.ttf"

// GameScene represents the main game scene in Engo
type GameScene struct {
	client *network.Client
	world  config.WorldConfig
	logger *logging.Logger

	ecs      *ecs.World
	renderer *EngoRenderer
	camera   *CameraSystem
	input    *InputSystem
	hud      *HUDSystem

	cancel context.CancelFunc
	unsub  func()

	mu      sync.Mutex
	pending *engine.FrameSnapshot
	result  *network.OutcomeMessage
	status  string
}

// NewGameScene creates a scene for a connected client.
func NewGameScene(client *network.Client, world config.WorldConfig, logger *logging.Logger) *GameScene {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &GameScene{
		client: client,
		world:  world,
		logger: logger.With("component", "scene"),
		ecs:    &ecs.World{},
	}
}

// Type returns the scene type (required by Engo)
func (scene *GameScene) Type() string {
	return "LanderScene"
}

// Preload loads the HUD font when it is present in the assets directory.
func (scene *GameScene) Preload() {
	if err := engo.Files.Load(FontURL); err != nil {
		scene.logger.Warn(context.Background(), "hud font not loaded", "url", FontURL, "error", err.Error())
	}
}

// Setup is called when the scene starts (required by Engo)
func (scene *GameScene) Setup(u engo.Updater) {
	world, _ := u.(*ecs.World)
	if world == nil {
		world = scene.ecs
	}
	scene.ecs = world
	SetupInputBindings()
	SetupCameraControls()
	common.SetBackground(color.RGBA{8, 8, 20, 255})

	renderSystem := &common.RenderSystem{}
	world.AddSystem(renderSystem)

	assets := NewAssetManager()
	if err := assets.LoadAssets(); err != nil {
		panic("failed to build sprites: " + err.Error())
	}
	scene.build(renderSystem, assets, engo.GameWidth(), engo.GameHeight())
	scene.hud.SetFont(scene.loadFont())

	world.AddSystem(scene.camera)
	world.AddSystem(scene.input)
	world.AddSystem(&frameSystem{scene: scene})
	world.AddSystem(scene.hud)

	ctx, cancel := context.WithCancel(context.Background())
	scene.cancel = cancel
	scene.unsub = scene.client.Bus().SubscribeAll(scene.handleConnection,
		network.ClientDisconnected, network.ClientReconnected, network.ClientReconnectFailed)
	go scene.pump(ctx)
}

// build wires the scene's systems around a sprite system.
func (scene *GameScene) build(system spriteSystem, assets *AssetManager, width, height float32) {
	scene.camera = NewCameraSystem(scene.world, width, height)
	scene.renderer = NewEngoRenderer(system, assets, scene.camera)
	scene.input = NewInputSystem(scene.client, scene.logger)
	scene.hud = NewHUDSystem(system)
}

func (scene *GameScene) loadFont() *common.Font {
	font := &common.Font{URL: FontURL, FG: color.White, Size: 14}
	if err := font.CreatePreloaded(); err != nil {
		scene.logger.Warn(context.Background(), "hud disabled", "error", err.Error())
		return nil
	}
	return font
}

// pump moves network traffic into the scene until ctx ends. Engo systems run
// on the main thread, so the frame is handed over under the lock.
func (scene *GameScene) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-scene.client.Frames():
			scene.handleFrame(f)
		case m := <-scene.client.Outcomes():
			scene.handleOutcome(m)
		case e := <-scene.client.Errors():
			scene.logger.Warn(ctx, "server error", "code", e.Code, "message", e.Message)
		}
	}
}

func (scene *GameScene) handleFrame(f engine.FrameSnapshot) {
	scene.mu.Lock()
	scene.pending = &f
	scene.mu.Unlock()
}

func (scene *GameScene) handleOutcome(m network.OutcomeMessage) {
	scene.mu.Lock()
	scene.result = &m
	scene.mu.Unlock()
}

func (scene *GameScene) handleConnection(e event.Event) {
	status := "Connected"
	switch e.GetType() {
	case network.ClientDisconnected:
		status = "Disconnected"
	case network.ClientReconnectFailed:
		status = "Disconnected (gave up)"
	}
	scene.mu.Lock()
	scene.status = status
	scene.mu.Unlock()
}

// drawPending renders the newest frame, if any arrived since the last call.
func (scene *GameScene) drawPending() bool {
	scene.mu.Lock()
	f, result, status := scene.pending, scene.result, scene.status
	scene.pending, scene.result, scene.status = nil, nil, ""
	scene.mu.Unlock()

	if status != "" {
		scene.hud.SetConnectionStatus(status)
	}
	if scene.client != nil {
		scene.hud.SetLatency(scene.client.Latency())
	}
	if f == nil {
		if result != nil {
			scene.hud.SetResult(*result)
		}
		return false
	}

	if scene.hud.frame != nil && scene.hud.frame.Profile != f.Profile {
		scene.renderer.RemoveAll()
	}
	f.Render(scene.renderer)
	scene.camera.SetTarget(f.Vehicle.Position)
	scene.hud.SetFrame(*f)
	if result != nil {
		scene.hud.SetResult(*result)
	}
	return true
}

// Exit stops the network pump.
func (scene *GameScene) Exit() {
	if scene.cancel != nil {
		scene.cancel()
	}
	if scene.unsub != nil {
		scene.unsub()
	}
}

// frameSystem draws pending frames on the main thread.
type frameSystem struct {
	scene *GameScene
}

func (fs *frameSystem) Update(float32) { fs.scene.drawPending() }

func (fs *frameSystem) Remove(ecs.BasicEntity) {}

package engo

import (
	"context"
	"time"

	"github.com/EngoEngine/ecs"
	"github.com/EngoEngine/engo"

	"github.com/opd-ai/go-lander/pkg/entity"
	"github.com/opd-ai/go-lander/pkg/logging"
)

// Controller receives the player's commands. *network.Client implements it.
type Controller interface {
	SendInput(in entity.ControlInput) error
	Reset() error
}

// InputSystem polls the keyboard and forwards control changes to the server.
// Unchanged input is resent every keepalive so a dropped message cannot leave
// the throttle stuck.
type InputSystem struct {
	controller Controller
	logger     *logging.Logger

	current   entity.ControlInput
	lastSent  time.Time
	keepalive time.Duration
	now       func() time.Time
}

// NewInputSystem creates an input system sending to controller.
func NewInputSystem(controller Controller, logger *logging.Logger) *InputSystem {
	if logger == nil {
		logger = logging.Discard()
	}
	return &InputSystem{
		controller: controller,
		logger:     logger.With("component", "input"),
		keepalive:  250 * time.Millisecond,
		now:        time.Now,
	}
}

// Remove satisfies the ecs.System interface
func (is *InputSystem) Remove(ecs.BasicEntity) {}

// Update reads the bound keys.
func (is *InputSystem) Update(float32) {
	in := entity.ControlInput{
		Thrust:      engo.Input.Button("thrust").Down(),
		RotateLeft:  engo.Input.Button("turnLeft").Down(),
		RotateRight: engo.Input.Button("turnRight").Down(),
	}
	is.apply(in, engo.Input.Button("reset").JustPressed())
}

func (is *InputSystem) apply(in entity.ControlInput, reset bool) {
	ctx := context.Background()
	if reset {
		if err := is.controller.Reset(); err != nil {
			is.logger.Warn(ctx, "reset failed", "error", err.Error())
		}
	}

	now := is.now()
	if in == is.current && now.Sub(is.lastSent) < is.keepalive {
		return
	}
	if err := is.controller.SendInput(in); err != nil {
		is.logger.Debug(ctx, "input not sent", "error", err.Error())
		return
	}
	is.current = in
	is.lastSent = now
}

// Current returns the last input sent.
func (is *InputSystem) Current() entity.ControlInput {
	return is.current
}

// SetupInputBindings registers the flight keys.
func SetupInputBindings() {
	engo.Input.RegisterButton("thrust", engo.KeyW, engo.KeyArrowUp, engo.KeySpace)
	engo.Input.RegisterButton("turnLeft", engo.KeyA, engo.KeyArrowLeft)
	engo.Input.RegisterButton("turnRight", engo.KeyD, engo.KeyArrowRight)
	engo.Input.RegisterButton("reset", engo.KeyR, engo.KeyEnter)
}

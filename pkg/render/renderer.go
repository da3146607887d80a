// Package render draws frame snapshots. The terminal renderer prints the
// playfield as text; the null renderer only logs.
package render

import (
	"context"

	"github.com/opd-ai/go-lander/pkg/entity"
	"github.com/opd-ai/go-lander/pkg/logging"
)

// NullRenderer is a headless implementation of entity.Renderer. It logs each
// call at debug level and counts presented frames.
type NullRenderer struct {
	logger *logging.Logger
	frames int
}

// NewNullRenderer creates a NullRenderer. A nil logger discards output.
func NewNullRenderer(logger *logging.Logger) *NullRenderer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &NullRenderer{logger: logger.With("component", "renderer")}
}

// Clear implements entity.Renderer.
func (d *NullRenderer) Clear() {
	d.logger.Debug(context.Background(), "Clear called")
}

// Present implements entity.Renderer.
func (d *NullRenderer) Present() {
	d.frames++
	d.logger.Debug(context.Background(), "Present called", "frames", d.frames)
}

// RenderVehicle implements entity.Renderer.
func (d *NullRenderer) RenderVehicle(v entity.VehicleState) {
	d.logger.Debug(context.Background(), "RenderVehicle called",
		"x", v.Position.X,
		"y", v.Position.Y,
		"rotation", v.Rotation,
		"fuel", v.Fuel,
	)
}

// RenderTarget implements entity.Renderer.
func (d *NullRenderer) RenderTarget(t entity.Target) {
	d.logger.Debug(context.Background(), "RenderTarget called",
		"target", t.Key,
		"x", t.Position.X,
		"multiplier", t.Multiplier,
	)
}

// RenderHazard implements entity.Renderer.
func (d *NullRenderer) RenderHazard(h entity.Hazard) {
	d.logger.Debug(context.Background(), "RenderHazard called",
		"hazard_id", h.ID,
		"age", h.Age,
	)
}

// Frames returns the number of presented frames.
func (d *NullRenderer) Frames() int {
	return d.frames
}

package render

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/opd-ai/go-lander/pkg/config"
	"github.com/opd-ai/go-lander/pkg/engine"
	"github.com/opd-ai/go-lander/pkg/entity"
	"github.com/opd-ai/go-lander/pkg/physics"
)

const clearScreen = "\033[H\033[2J"

// Glyphs used on the playfield.
const (
	GlyphVehicle   = 'A'
	GlyphLeanLeft  = '\\'
	GlyphLeanRight = '/'
	GlyphFlame     = 'v'
	GlyphTarget    = '='
	GlyphHazard    = '*'
	GlyphGround    = '_'
)

// TerminalRenderer draws the playfield as a grid of characters. The world is
// scaled to fit the grid with Y flipped so the ground is the bottom row.
type TerminalRenderer struct {
	out    io.Writer
	width  int
	height int
	world  config.WorldConfig
	buffer [][]rune
	status string
	ansi   bool
	err    error
}

// NewTerminalRenderer creates a renderer with a width x height character grid.
func NewTerminalRenderer(out io.Writer, width, height int, world config.WorldConfig) *TerminalRenderer {
	buffer := make([][]rune, height)
	for i := range buffer {
		buffer[i] = make([]rune, width)
	}

	r := &TerminalRenderer{
		out:    out,
		width:  width,
		height: height,
		world:  world,
		buffer: buffer,
		ansi:   true,
	}
	r.Clear()
	return r
}

// SetANSI toggles the clear-screen escape sequence written before each frame.
func (r *TerminalRenderer) SetANSI(enabled bool) {
	r.ansi = enabled
}

// SetStatus sets the line printed under the playfield.
func (r *TerminalRenderer) SetStatus(line string) {
	r.status = line
}

// Err returns the first write error seen by Present.
func (r *TerminalRenderer) Err() error {
	return r.err
}

// worldToScreen converts world coordinates to a column and row.
func (r *TerminalRenderer) worldToScreen(pos physics.Vector2D) (int, int) {
	col := int(math.Floor(pos.X / r.world.Width * float64(r.width)))
	row := r.height - 1 - int(math.Floor(pos.Y/r.world.Height*float64(r.height)))
	return col, row
}

func (r *TerminalRenderer) set(col, row int, glyph rune) {
	if col >= 0 && col < r.width && row >= 0 && row < r.height {
		r.buffer[row][col] = glyph
	}
}

// Clear implements entity.Renderer.
func (r *TerminalRenderer) Clear() {
	for y := range r.buffer {
		fill := ' '
		if y == r.height-1 {
			fill = GlyphGround
		}
		for x := range r.buffer[y] {
			r.buffer[y][x] = fill
		}
	}
}

// Present implements entity.Renderer.
func (r *TerminalRenderer) Present() {
	w := bufio.NewWriter(r.out)
	if r.ansi {
		w.WriteString(clearScreen)
	}

	border := "+" + strings.Repeat("-", r.width) + "+\n"
	w.WriteString(border)
	for y := range r.buffer {
		w.WriteByte('|')
		w.WriteString(string(r.buffer[y]))
		w.WriteString("|\n")
	}
	w.WriteString(border)
	if r.status != "" {
		w.WriteString(r.status)
		w.WriteByte('\n')
	}

	if err := w.Flush(); err != nil && r.err == nil {
		r.err = err
	}
}

// RenderVehicle implements entity.Renderer. The flame is drawn below the body
// while thrusting.
func (r *TerminalRenderer) RenderVehicle(v entity.VehicleState) {
	col, row := r.worldToScreen(v.Position)

	// Rotation is counter-clockwise positive.
	glyph := GlyphVehicle
	switch {
	case v.Rotation > 0.2:
		glyph = GlyphLeanLeft
	case v.Rotation < -0.2:
		glyph = GlyphLeanRight
	}
	r.set(col, row, glyph)
	if v.Thrusting {
		r.set(col, row+1, GlyphFlame)
	}
}

// RenderTarget implements entity.Renderer.
func (r *TerminalRenderer) RenderTarget(t entity.Target) {
	left, row := r.worldToScreen(physics.Vector2D{X: t.Position.X - t.HalfWidth(), Y: t.Top()})
	right, _ := r.worldToScreen(physics.Vector2D{X: t.Position.X + t.HalfWidth(), Y: t.Top()})
	for col := left; col <= right; col++ {
		r.set(col, row, GlyphTarget)
	}
	center, _ := r.worldToScreen(t.Position)
	for i, ch := range t.Key {
		r.set(center+i, row, ch)
	}
}

// RenderHazard implements entity.Renderer.
func (r *TerminalRenderer) RenderHazard(h entity.Hazard) {
	col, row := r.worldToScreen(h.Position)
	r.set(col, row, GlyphHazard)
}

// Row returns one playfield row as a string.
func (r *TerminalRenderer) Row(row int) string {
	if row < 0 || row >= r.height {
		return ""
	}
	return string(r.buffer[row])
}

// StatusLine summarises a frame for the line under the playfield.
func StatusLine(f engine.FrameSnapshot) string {
	line := fmt.Sprintf("%s  t=%.1fs  fuel=%3.0f  vy=%6.1f  vx=%6.1f  max=%.0f",
		f.Profile, f.Elapsed, f.Vehicle.Fuel,
		f.Vehicle.Velocity.Y, f.Vehicle.Velocity.X, f.MaxDescentSpeed)
	if f.Outcome == nil {
		return line
	}

	o := f.Outcome
	if o.Safe() {
		return fmt.Sprintf("%s  LANDED %s  score=%d  %s", line, o.TargetKey, o.Score, strings.Repeat("*", o.Stars))
	}
	msg := fmt.Sprintf("%s  CRASH (%s)", line, o.Cause)
	if o.Nudge != "" {
		msg += "  " + o.Nudge
	}
	return msg
}

// DrawFrame renders a frame with its status line.
func (r *TerminalRenderer) DrawFrame(f engine.FrameSnapshot) {
	r.SetStatus(StatusLine(f))
	f.Render(r)
}

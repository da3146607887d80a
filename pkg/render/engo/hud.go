package engo

import (
	"fmt"
	"image/color"
	"math"
	"strings"
	"time"

	"github.com/EngoEngine/ecs"
	"github.com/EngoEngine/engo"
	"github.com/EngoEngine/engo/common"

	"github.com/opd-ai/go-lander/pkg/engine"
	"github.com/opd-ai/go-lander/pkg/network"
)

const (
	hudLineHeight = 18
	hudMargin     = 10
)

// HUDSystem shows flight readouts, the round outcome and the connection
// state as text lines in the top-left corner.
type HUDSystem struct {
	system spriteSystem
	font   *common.Font
	lines  []*sprite

	frame   *engine.FrameSnapshot
	result  *network.OutcomeMessage
	status  string
	latency time.Duration

	hudColor  color.Color
	warnColor color.Color
}

// NewHUDSystem creates a HUD drawing through system.
func NewHUDSystem(system spriteSystem) *HUDSystem {
	return &HUDSystem{
		system:    system,
		status:    "Connected",
		hudColor:  color.RGBA{255, 255, 255, 255},
		warnColor: color.RGBA{255, 90, 90, 255},
	}
}

// Remove satisfies the ecs.System interface
func (hud *HUDSystem) Remove(ecs.BasicEntity) {}

// Update redraws the text lines. Nothing is drawn until a font is set.
func (hud *HUDSystem) Update(float32) {
	if hud.font == nil {
		return
	}
	text := hud.Lines()
	for len(hud.lines) < len(text) {
		s := &sprite{BasicEntity: ecs.NewBasic()}
		s.RenderComponent.SetZIndex(10)
		s.SpaceComponent.Position = engo.Point{X: hudMargin, Y: float32(hudMargin + len(hud.lines)*hudLineHeight)}
		hud.system.Add(&s.BasicEntity, &s.RenderComponent, &s.SpaceComponent)
		hud.lines = append(hud.lines, s)
	}
	for i, s := range hud.lines {
		if i >= len(text) {
			s.RenderComponent.Hidden = true
			continue
		}
		s.RenderComponent.Hidden = false
		s.RenderComponent.Drawable = common.Text{Font: hud.font, Text: text[i]}
		s.RenderComponent.Color = hud.lineColor(text[i])
	}
}

func (hud *HUDSystem) lineColor(line string) color.Color {
	if strings.HasPrefix(line, "CRASH") || strings.HasPrefix(line, "STATUS Disconnected") {
		return hud.warnColor
	}
	return hud.hudColor
}

// Lines returns the HUD text, top to bottom.
func (hud *HUDSystem) Lines() []string {
	lines := []string{hud.statusLine()}
	if hud.frame == nil {
		return lines
	}

	f := hud.frame
	v := f.Vehicle
	lines = append(lines,
		fmt.Sprintf("PROFILE %s", f.Profile),
		fmt.Sprintf("FUEL %.0f", v.Fuel),
		fmt.Sprintf("DESCENT %.0f / %.0f", f.ApproachSpeed, f.MaxDescentSpeed),
		fmt.Sprintf("DRIFT %.0f", v.Velocity.X),
		fmt.Sprintf("TILT %.0f°", v.Rotation*180/math.Pi),
	)

	if o := f.Outcome; o != nil {
		if o.Safe() {
			lines = append(lines, fmt.Sprintf("LANDED %s +%d %s", o.TargetKey, o.Score, strings.Repeat("*", o.Stars)))
		} else {
			lines = append(lines, fmt.Sprintf("CRASH %s", o.Cause))
		}
		if o.Nudge != "" {
			lines = append(lines, o.Nudge)
		}
	}

	if r := hud.result; r != nil && f.Outcome != nil && r.Profile == f.Profile {
		if r.Record.HighScore {
			lines = append(lines, fmt.Sprintf("NEW HIGH SCORE #%d", r.Record.Rank))
		}
		if r.Record.Unlocked > 0 {
			lines = append(lines, fmt.Sprintf("UNLOCKED LEVEL %d", r.Record.Unlocked))
		}
	}
	return lines
}

func (hud *HUDSystem) statusLine() string {
	if hud.latency > 0 {
		return fmt.Sprintf("STATUS %s %dms", hud.status, hud.latency.Milliseconds())
	}
	return "STATUS " + hud.status
}

// SetFrame updates the readouts. The HUD keeps its own copy.
func (hud *HUDSystem) SetFrame(f engine.FrameSnapshot) {
	hud.frame = &f
	if f.Outcome == nil {
		hud.result = nil
	}
}

// SetResult records the server's verdict on the last round.
func (hud *HUDSystem) SetResult(m network.OutcomeMessage) {
	hud.result = &m
}

// SetConnectionStatus sets the connection status display
func (hud *HUDSystem) SetConnectionStatus(status string) {
	hud.status = status
}

// SetLatency sets the round-trip time shown next to the status.
func (hud *HUDSystem) SetLatency(d time.Duration) {
	hud.latency = d
}

// SetFont sets the font used for HUD text rendering
func (hud *HUDSystem) SetFont(font *common.Font) {
	hud.font = font
}

package engo

import (
	"math"

	"github.com/EngoEngine/ecs"
	"github.com/EngoEngine/engo"

	"github.com/opd-ai/go-lander/pkg/config"
	"github.com/opd-ai/go-lander/pkg/physics"
)

// CameraSystem maps world points (Y up) to screen pixels (Y down). At zoom 1
// the whole world fits the viewport; when zoomed in it follows the vehicle.
type CameraSystem struct {
	world config.WorldConfig

	viewWidth  float32
	viewHeight float32

	target    physics.Vector2D
	targetSet bool

	zoom    float32
	minZoom float32
	maxZoom float32

	followSpeed float32
	smoothing   bool

	currentPos physics.Vector2D
}

// NewCameraSystem creates a camera for world on a viewport of the given size.
func NewCameraSystem(world config.WorldConfig, viewWidth, viewHeight float32) *CameraSystem {
	return &CameraSystem{
		world:       world,
		viewWidth:   viewWidth,
		viewHeight:  viewHeight,
		zoom:        1.0,
		minZoom:     1.0,
		maxZoom:     3.0,
		followSpeed: 4.0,
		smoothing:   true,
		currentPos:  physics.Vector2D{X: world.Width / 2, Y: world.Height / 2},
	}
}

// Remove satisfies the ecs.System interface
func (cs *CameraSystem) Remove(ecs.BasicEntity) {}

// Update handles zoom keys and moves toward the target.
func (cs *CameraSystem) Update(dt float32) {
	cs.handleZoomInput()
	cs.step(dt)
}

func (cs *CameraSystem) handleZoomInput() {
	if scrollY := engo.Input.Mouse.ScrollY; scrollY != 0 {
		cs.SetZoom(cs.zoom * (1 + scrollY*0.1))
	}
	if engo.Input.Button("zoomIn").Down() {
		cs.SetZoom(cs.zoom * 1.02)
	}
	if engo.Input.Button("zoomOut").Down() {
		cs.SetZoom(cs.zoom * 0.98)
	}
	if engo.Input.Button("resetZoom").JustPressed() {
		cs.SetZoom(1.0)
	}
}

// step moves the view centre toward the wanted position.
func (cs *CameraSystem) step(dt float32) {
	want := cs.wanted()
	if !cs.smoothing {
		cs.currentPos = want
		return
	}
	k := math.Min(1, float64(cs.followSpeed)*float64(dt))
	cs.currentPos.X += (want.X - cs.currentPos.X) * k
	cs.currentPos.Y += (want.Y - cs.currentPos.Y) * k
}

// wanted returns the centre the camera is heading for, kept inside the world.
func (cs *CameraSystem) wanted() physics.Vector2D {
	mid := physics.Vector2D{X: cs.world.Width / 2, Y: cs.world.Height / 2}
	if !cs.targetSet || cs.zoom <= 1 {
		return mid
	}
	halfW := float64(cs.viewWidth) / float64(cs.scale()) / 2
	halfH := float64(cs.viewHeight) / float64(cs.scale()) / 2
	return physics.Vector2D{
		X: clampCentre(cs.target.X, halfW, cs.world.Width),
		Y: clampCentre(cs.target.Y, halfH, cs.world.Height),
	}
}

func clampCentre(v, half, size float64) float64 {
	if 2*half >= size {
		return size / 2
	}
	return physics.Clamp(v, half, size-half)
}

// scale returns pixels per world point.
func (cs *CameraSystem) scale() float32 {
	fit := cs.viewWidth / float32(cs.world.Width)
	if h := cs.viewHeight / float32(cs.world.Height); h < fit {
		fit = h
	}
	return fit * cs.zoom
}

// Scale returns the current pixels-per-point factor.
func (cs *CameraSystem) Scale() float32 {
	return cs.scale()
}

// SetViewport changes the viewport size.
func (cs *CameraSystem) SetViewport(width, height float32) {
	cs.viewWidth, cs.viewHeight = width, height
}

// SetTarget sets the point the camera follows when zoomed in.
func (cs *CameraSystem) SetTarget(target physics.Vector2D) {
	cs.target = target
	cs.targetSet = true
}

// ClearTarget clears the camera target
func (cs *CameraSystem) ClearTarget() {
	cs.targetSet = false
}

// SetZoom sets the camera zoom level
func (cs *CameraSystem) SetZoom(zoom float32) {
	cs.zoom = cs.clampZoom(zoom)
}

// GetZoom returns the current zoom level
func (cs *CameraSystem) GetZoom() float32 {
	return cs.zoom
}

func (cs *CameraSystem) clampZoom(zoom float32) float32 {
	if zoom < cs.minZoom {
		return cs.minZoom
	}
	if zoom > cs.maxZoom {
		return cs.maxZoom
	}
	return zoom
}

// SetZoomLimits sets the minimum and maximum zoom levels
func (cs *CameraSystem) SetZoomLimits(min, max float32) {
	cs.minZoom = min
	cs.maxZoom = max
	cs.zoom = cs.clampZoom(cs.zoom)
}

// EnableSmoothing enables or disables camera smoothing
func (cs *CameraSystem) EnableSmoothing(enabled bool) {
	cs.smoothing = enabled
}

// GetCurrentPosition returns the world point at the centre of the view.
func (cs *CameraSystem) GetCurrentPosition() physics.Vector2D {
	return cs.currentPos
}

// WorldToScreen converts a world point to screen pixels.
func (cs *CameraSystem) WorldToScreen(p physics.Vector2D) engo.Point {
	s := float64(cs.scale())
	return engo.Point{
		X: float32((p.X-cs.currentPos.X)*s) + cs.viewWidth/2,
		Y: cs.viewHeight/2 - float32((p.Y-cs.currentPos.Y)*s),
	}
}

// ScreenToWorld converts screen pixels to a world point.
func (cs *CameraSystem) ScreenToWorld(p engo.Point) physics.Vector2D {
	s := float64(cs.scale())
	return physics.Vector2D{
		X: float64(p.X-cs.viewWidth/2)/s + cs.currentPos.X,
		Y: float64(cs.viewHeight/2-p.Y)/s + cs.currentPos.Y,
	}
}

// SetupCameraControls registers the zoom keys.
func SetupCameraControls() {
	engo.Input.RegisterButton("zoomIn", engo.KeyEquals)
	engo.Input.RegisterButton("zoomOut", engo.KeyDash)
	engo.Input.RegisterButton("resetZoom", engo.KeyZero)
}

package engo

import (
	"image/color"
	"math"

	"github.com/EngoEngine/ecs"
	"github.com/EngoEngine/engo"
	"github.com/EngoEngine/engo/common"

	"github.com/opd-ai/go-lander/pkg/entity"
	"github.com/opd-ai/go-lander/pkg/physics"
)

// spriteSystem is the part of common.RenderSystem the renderer uses.
type spriteSystem interface {
	Add(basic *ecs.BasicEntity, render *common.RenderComponent, space *common.SpaceComponent)
	Remove(basic ecs.BasicEntity)
}

type sprite struct {
	ecs.BasicEntity
	common.RenderComponent
	common.SpaceComponent
}

var (
	vehicleColor = color.RGBA{255, 255, 255, 255}
	hazardColor  = color.RGBA{255, 160, 60, 255}
	starColors   = []color.Color{
		color.RGBA{150, 150, 150, 255},
		color.RGBA{110, 200, 120, 255},
		color.RGBA{240, 200, 70, 255},
		color.RGBA{255, 120, 200, 255},
	}
)

// EngoRenderer implements entity.Renderer on an engo render system. Sprites
// are created on first sight and kept between frames; hazards not drawn in a
// frame are removed on Present.
type EngoRenderer struct {
	system spriteSystem
	assets *AssetManager
	camera *CameraSystem

	vehicle *sprite
	flame   *sprite
	targets map[string]*sprite
	hazards map[entity.ID]*sprite
	seen    map[entity.ID]bool
}

// NewEngoRenderer creates a renderer drawing through system.
func NewEngoRenderer(system spriteSystem, assets *AssetManager, camera *CameraSystem) *EngoRenderer {
	return &EngoRenderer{
		system:  system,
		assets:  assets,
		camera:  camera,
		targets: make(map[string]*sprite),
		hazards: make(map[entity.ID]*sprite),
		seen:    make(map[entity.ID]bool),
	}
}

func (r *EngoRenderer) newSprite(kind SpriteKind, c color.Color, z float32) *sprite {
	s := &sprite{BasicEntity: ecs.NewBasic()}
	s.RenderComponent = common.RenderComponent{
		Drawable: r.assets.Sprite(kind),
		Color:    c,
	}
	s.RenderComponent.SetZIndex(z)
	r.system.Add(&s.BasicEntity, &s.RenderComponent, &s.SpaceComponent)
	return s
}

// place sizes s to a world box centred on centre.
func (r *EngoRenderer) place(s *sprite, kind SpriteKind, centre physics.Vector2D, width, height float64) {
	scale := r.camera.Scale()
	topLeft := r.camera.WorldToScreen(physics.Vector2D{X: centre.X - width/2, Y: centre.Y + height/2})
	pw, ph := r.assets.Size(kind)

	s.SpaceComponent.Position = topLeft
	s.SpaceComponent.Width = float32(width) * scale
	s.SpaceComponent.Height = float32(height) * scale
	s.RenderComponent.Scale = engo.Point{
		X: s.SpaceComponent.Width / pw,
		Y: s.SpaceComponent.Height / ph,
	}
}

// RenderVehicle implements entity.Renderer
func (r *EngoRenderer) RenderVehicle(v entity.VehicleState) {
	if r.vehicle == nil {
		r.vehicle = r.newSprite(SpriteVehicle, vehicleColor, 2)
		r.flame = r.newSprite(SpriteFlame, vehicleColor, 1)
	}

	r.place(r.vehicle, SpriteVehicle, v.Position, v.Width, v.Height)
	// engo turns clockwise on screen; the simulation turns counter-clockwise.
	r.vehicle.SpaceComponent.Rotation = float32(-v.Rotation * 180 / math.Pi)

	flameSize := v.Width / 2
	below := physics.Vector2D{X: v.Position.X, Y: v.Position.Y - v.Height/2 - flameSize/2}
	r.place(r.flame, SpriteFlame, below, flameSize, flameSize)
	r.flame.SpaceComponent.Rotation = r.vehicle.SpaceComponent.Rotation
	r.flame.RenderComponent.Hidden = !v.Thrusting
}

// RenderTarget implements entity.Renderer
func (r *EngoRenderer) RenderTarget(t entity.Target) {
	s, ok := r.targets[t.Key]
	if !ok {
		s = r.newSprite(SpriteTarget, starColor(t.Stars), 0)
		r.targets[t.Key] = s
	}
	r.place(s, SpriteTarget, t.Position, t.Width, t.Height)
}

// RenderHazard implements entity.Renderer
func (r *EngoRenderer) RenderHazard(h entity.Hazard) {
	s, ok := r.hazards[h.ID]
	if !ok {
		s = r.newSprite(SpriteHazard, hazardColor, 3)
		r.hazards[h.ID] = s
	}
	r.seen[h.ID] = true
	r.place(s, SpriteHazard, h.Position, 2*h.Radius, 2*h.Radius)
}

// Clear implements entity.Renderer
func (r *EngoRenderer) Clear() {
	clear(r.seen)
}

// Present implements entity.Renderer. Drawing itself happens in the render
// system's Update.
func (r *EngoRenderer) Present() {
	for id, s := range r.hazards {
		if !r.seen[id] {
			r.system.Remove(s.BasicEntity)
			delete(r.hazards, id)
		}
	}
}

// RemoveAll drops every sprite, for example when the profile changes.
func (r *EngoRenderer) RemoveAll() {
	if r.vehicle != nil {
		r.system.Remove(r.vehicle.BasicEntity)
		r.system.Remove(r.flame.BasicEntity)
		r.vehicle, r.flame = nil, nil
	}
	for key, s := range r.targets {
		r.system.Remove(s.BasicEntity)
		delete(r.targets, key)
	}
	for id, s := range r.hazards {
		r.system.Remove(s.BasicEntity)
		delete(r.hazards, id)
	}
}

func starColor(stars int) color.Color {
	if stars < 0 || stars >= len(starColors) {
		return starColors[0]
	}
	return starColors[stars]
}

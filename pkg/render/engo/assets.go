package engo

import (
	"fmt"
	"image"
	"image/color"

	"github.com/EngoEngine/engo/common"
)

// SpriteKind names a generated sprite.
type SpriteKind string

const (
	SpriteVehicle SpriteKind = "vehicle"
	SpriteFlame   SpriteKind = "flame"
	SpriteTarget  SpriteKind = "target"
	SpriteHazard  SpriteKind = "hazard"
	SpriteGround  SpriteKind = "ground"
)

// Pixel patterns. Non-zero cells are drawn with the palette entry of the same
// index.
var patterns = map[SpriteKind][][]int{
	SpriteVehicle: {
		{0, 0, 0, 0, 1, 1, 0, 0, 0, 0},
		{0, 0, 0, 1, 1, 1, 1, 0, 0, 0},
		{0, 0, 1, 1, 2, 2, 1, 1, 0, 0},
		{0, 0, 1, 2, 2, 2, 2, 1, 0, 0},
		{0, 0, 1, 1, 2, 2, 1, 1, 0, 0},
		{0, 0, 1, 1, 1, 1, 1, 1, 0, 0},
		{0, 1, 1, 1, 1, 1, 1, 1, 1, 0},
		{0, 1, 1, 1, 1, 1, 1, 1, 1, 0},
		{0, 1, 1, 1, 1, 1, 1, 1, 1, 0},
		{0, 1, 1, 1, 1, 1, 1, 1, 1, 0},
		{0, 1, 1, 1, 1, 1, 1, 1, 1, 0},
		{0, 0, 1, 1, 1, 1, 1, 1, 0, 0},
		{0, 0, 0, 1, 1, 1, 1, 0, 0, 0},
		{0, 1, 0, 0, 1, 1, 0, 0, 1, 0},
		{1, 0, 0, 0, 0, 0, 0, 0, 0, 1},
		{1, 0, 0, 0, 0, 0, 0, 0, 0, 1},
	},
	SpriteFlame: {
		{3, 3, 3, 3, 3, 3},
		{0, 3, 4, 4, 3, 0},
		{0, 3, 4, 4, 3, 0},
		{0, 0, 3, 3, 0, 0},
		{0, 0, 3, 3, 0, 0},
		{0, 0, 0, 3, 0, 0},
	},
	SpriteHazard: {
		{0, 3, 3, 0},
		{3, 4, 4, 3},
		{3, 4, 4, 3},
		{0, 3, 3, 0},
	},
	SpriteTarget: {{1}},
	SpriteGround: {{5}},
}

var palette = []color.NRGBA{
	1: {235, 235, 240, 255},
	2: {80, 160, 255, 255},
	3: {255, 120, 30, 255},
	4: {255, 230, 90, 255},
	5: {90, 80, 70, 255},
}

// AssetManager builds the lander's sprites from pixel patterns.
type AssetManager struct {
	images  map[SpriteKind]*image.NRGBA
	sprites map[SpriteKind]common.Drawable
}

// NewAssetManager creates an empty asset manager.
func NewAssetManager() *AssetManager {
	return &AssetManager{
		images:  make(map[SpriteKind]*image.NRGBA),
		sprites: make(map[SpriteKind]common.Drawable),
	}
}

// BuildImages rasterises every pattern. It needs no graphics context.
func (am *AssetManager) BuildImages() error {
	for kind, pattern := range patterns {
		img, err := rasterize(pattern)
		if err != nil {
			return fmt.Errorf("sprite %s: %w", kind, err)
		}
		am.images[kind] = img
	}
	return nil
}

// LoadAssets rasterises the patterns and uploads them as textures. It must
// run after the window has been created.
func (am *AssetManager) LoadAssets() error {
	if err := am.BuildImages(); err != nil {
		return err
	}
	for kind, img := range am.images {
		am.sprites[kind] = common.NewTextureSingle(common.NewImageObject(img))
	}
	return nil
}

func rasterize(pattern [][]int) (*image.NRGBA, error) {
	if len(pattern) == 0 || len(pattern[0]) == 0 {
		return nil, fmt.Errorf("empty pattern")
	}
	width, height := len(pattern[0]), len(pattern)
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y, row := range pattern {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d cells, want %d", y, len(row), width)
		}
		for x, cell := range row {
			if cell == 0 {
				continue
			}
			if cell >= len(palette) {
				return nil, fmt.Errorf("cell (%d,%d) uses unknown colour %d", x, y, cell)
			}
			img.SetNRGBA(x, y, palette[cell])
		}
	}
	return img, nil
}

// Image returns the rasterised pattern for kind, or nil before BuildImages.
func (am *AssetManager) Image(kind SpriteKind) *image.NRGBA {
	return am.images[kind]
}

// Sprite returns the texture for kind, or nil before LoadAssets.
func (am *AssetManager) Sprite(kind SpriteKind) common.Drawable {
	return am.sprites[kind]
}

// Size returns the pattern size of kind in pixels.
func (am *AssetManager) Size(kind SpriteKind) (float32, float32) {
	p := patterns[kind]
	if len(p) == 0 {
		return 1, 1
	}
	return float32(len(p[0])), float32(len(p))
}

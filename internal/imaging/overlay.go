package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/fibre-mesh/internal/circles"
)

// OverlayStyle controls how detected fibres are drawn.
type OverlayStyle struct {
	// OutlineColor is the hex color of each circle outline. Default "#00FF00".
	OutlineColor string `json:"outline_color"`

	// CenterColor is the hex color of the center dot. Default "#FF0000".
	CenterColor string `json:"center_color"`

	// Thickness is the outline width in pixels. Default 2.
	Thickness int `json:"thickness"`

	// Labels draws each fibre's 1-based index next to its center. The index
	// is the one used for the fibre's geometry entity IDs.
	Labels bool `json:"labels"`
}

// DefaultOverlayStyle returns green outlines with red centers and labels.
func DefaultOverlayStyle() OverlayStyle {
	return OverlayStyle{
		OutlineColor: "#00FF00",
		CenterColor:  "#FF0000",
		Thickness:    2,
		Labels:       true,
	}
}

// DrawCircles returns a copy of img with every circle drawn on it.
//
// Circles are in img's pixel coordinates (Y down). Drawing outside the image
// is clipped.
func DrawCircles(img image.Image, list []circles.Circle, style OverlayStyle) (*image.RGBA, error) {
	outline, err := parseHexColor(style.OutlineColor, "#00FF00")
	if err != nil {
		return nil, err
	}
	center, err := parseHexColor(style.CenterColor, "#FF0000")
	if err != nil {
		return nil, err
	}
	thickness := style.Thickness
	if thickness <= 0 {
		thickness = 2
	}

	bounds := img.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, img, bounds.Min, draw.Src)

	for i, c := range list {
		drawRing(result, c.X, c.Y, c.R, float64(thickness), outline)
		drawDisk(result, c.X, c.Y, 2, center)
		if style.Labels {
			drawLabel(result, int(c.X)+4, int(c.Y)-4, strconv.Itoa(i+1), outline)
		}
	}

	return result, nil
}

// SaveImage writes img to path; the format follows the file extension.
func SaveImage(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

// parseHexColor parses "#RRGGBB"; an empty string selects def.
func parseHexColor(hex, def string) (color.Color, error) {
	if hex == "" {
		hex = def
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	return c, nil
}

// drawRing paints every pixel whose distance to (cx, cy) lies within
// thickness/2 of r.
func drawRing(dst *image.RGBA, cx, cy, r, thickness float64, c color.Color) {
	half := thickness / 2
	outer := r + half
	inner := math.Max(0, r-half)

	b := dst.Bounds()
	x0 := clamp(int(math.Floor(cx-outer)), b.Min.X, b.Max.X)
	x1 := clamp(int(math.Ceil(cx+outer))+1, b.Min.X, b.Max.X)
	y0 := clamp(int(math.Floor(cy-outer)), b.Min.Y, b.Max.Y)
	y1 := clamp(int(math.Ceil(cy+outer))+1, b.Min.Y, b.Max.Y)

	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			d := math.Hypot(float64(x)-cx, float64(y)-cy)
			if d >= inner && d <= outer {
				dst.Set(x, y, c)
			}
		}
	}
}

func drawDisk(dst *image.RGBA, cx, cy, r float64, c color.Color) {
	drawRing(dst, cx, cy, r/2, r, c)
}

// drawLabel draws text with its baseline-left at (x, y+13) using the 7x13
// basic font.
func drawLabel(dst *image.RGBA, x, y int, text string, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y + 13)},
	}
	d.DrawString(text)
}

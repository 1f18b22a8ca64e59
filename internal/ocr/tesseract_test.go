//go:build ocr

package ocr

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	disimaging "github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/fibre-mesh/internal/imaging"
)

// drawText draws text on an image using basicfont
func drawText(img *image.RGBA, x, y int, text string, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// createScaleBarLabel renders a bar with "50 um" below it, scaled up so
// Tesseract can read the bitmap font.
func createScaleBarLabel(t *testing.T) image.Image {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 80, 40))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(10, 4, 70, 8), image.Black, image.Point{}, draw.Src)
	drawText(img, 20, 30, "50 um", color.Black)
	return disimaging.Resize(img, 320, 160, disimaging.NearestNeighbor)
}

func TestReadScaleBar(t *testing.T) {
	img := createScaleBarLabel(t)
	label := imaging.Region{X1: 0, Y1: 60, X2: 320, Y2: 160}
	bar := imaging.Region{X1: 0, Y1: 0, X2: 320, Y2: 60}

	result, err := ReadScaleBar(img, label, bar, "")
	if err != nil {
		t.Fatalf("ReadScaleBar failed: %v", err)
	}
	if result.BarPixels != 240 {
		t.Errorf("BarPixels = %d, want 240", result.BarPixels)
	}
	if result.Label.Value != 50 {
		t.Logf("OCR read %q", result.Label.Text)
		t.Errorf("label value = %g, want 50", result.Label.Value)
	}
}

func TestInfo(t *testing.T) {
	info := Info()
	if !info.Available || info.Version == "" {
		t.Errorf("Info() = %+v, want available with version", info)
	}
}

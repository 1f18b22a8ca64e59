package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// createInMemoryImage creates a solid RGBA image.
func createInMemoryImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestCropRegion(t *testing.T) {
	img := createInMemoryImage(100, 80, color.White)
	img.Set(30, 20, color.Black)

	out, err := CropRegion(img, Region{X1: 30, Y1: 20, X2: 90, Y2: 70})
	if err != nil {
		t.Fatalf("CropRegion failed: %v", err)
	}
	b := out.Bounds()
	if b.Min != (image.Point{}) || b.Dx() != 60 || b.Dy() != 50 {
		t.Fatalf("bounds %v, want (0,0)-(60,50)", b)
	}
	r, _, _, _ := out.At(0, 0).RGBA()
	if r != 0 {
		t.Error("crop origin does not map to source (30,20)")
	}
}

func TestCropRegion_EmptyRegionIsWholeImage(t *testing.T) {
	img := createInMemoryImage(10, 10, color.White)
	out, err := CropRegion(img, Region{})
	if err != nil {
		t.Fatal(err)
	}
	if out != image.Image(img) {
		t.Error("empty region should return the input image")
	}
}

func TestCropRegion_Invalid(t *testing.T) {
	img := createInMemoryImage(100, 100, color.White)

	tests := []struct {
		name string
		r    Region
	}{
		{"outside right", Region{X1: 50, Y1: 0, X2: 101, Y2: 10}},
		{"negative origin", Region{X1: -1, Y1: 0, X2: 10, Y2: 10}},
		{"inverted x", Region{X1: 50, Y1: 0, X2: 40, Y2: 10}},
		{"zero height", Region{X1: 0, Y1: 10, X2: 10, Y2: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CropRegion(img, tt.r); err == nil {
				t.Errorf("CropRegion(%+v) should fail", tt.r)
			}
		})
	}
}

func TestPreview(t *testing.T) {
	img := createInMemoryImage(100, 50, color.RGBA{10, 20, 30, 255})

	tests := []struct {
		name          string
		scale         float64
		width, height int
	}{
		{"original", 1.0, 100, 50},
		{"zero means original", 0, 100, 50},
		{"half", 0.5, 50, 25},
		{"double", 2.0, 200, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Preview(img, tt.scale)
			if err != nil {
				t.Fatalf("Preview failed: %v", err)
			}
			if result.Width != tt.width || result.Height != tt.height {
				t.Errorf("size %dx%d, want %dx%d", result.Width, result.Height, tt.width, tt.height)
			}
			if result.MimeType != "image/png" {
				t.Errorf("MimeType: got %s, want image/png", result.MimeType)
			}

			data, err := base64.StdEncoding.DecodeString(result.ImageBase64)
			if err != nil {
				t.Fatalf("failed to decode base64: %v", err)
			}
			decoded, err := png.Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("failed to decode PNG: %v", err)
			}
			if decoded.Bounds().Dx() != tt.width {
				t.Errorf("decoded width %d, want %d", decoded.Bounds().Dx(), tt.width)
			}
		})
	}
}

func TestPreview_InvalidScale(t *testing.T) {
	img := createInMemoryImage(10, 10, color.White)
	if _, err := Preview(img, -1); err == nil {
		t.Error("negative scale should fail")
	}
	if _, err := Preview(img, 0.01); err == nil {
		t.Error("scale that leaves no pixels should fail")
	}
}

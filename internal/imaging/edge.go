package imaging

import (
	"image"
	"math"
)

// EdgeMap is the result of Canny edge detection on a grayscale image.
//
// Besides the binary edge mask it keeps the Sobel gradient at every pixel:
// the Hough gradient circle transform votes along the gradient direction of
// each edge pixel, which is far cheaper than voting in every direction.
// Slices are row-major with index y*Width + x, coordinates relative to the
// source image's Bounds().Min.
type EdgeMap struct {
	Width  int
	Height int
	Edge   []bool
	DX     []float64
	DY     []float64
}

// At reports whether (x, y) is an edge pixel. Out-of-range coordinates are
// never edges.
func (m *EdgeMap) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Edge[y*m.Width+x]
}

// Count returns the number of edge pixels.
func (m *EdgeMap) Count() int {
	n := 0
	for _, e := range m.Edge {
		if e {
			n++
		}
	}
	return n
}

// Image renders the edge mask with edges in white (255) on black.
func (m *EdgeMap) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, e := range m.Edge {
		if e {
			img.Pix[(i/m.Width)*img.Stride+i%m.Width] = 255
		}
	}
	return img
}

// Canny performs Canny edge detection on an already smoothed grayscale image.
//
// Parameters:
//   - gray: Source image, typically the output of GaussianBlur.
//   - thresholdLow: Gradients below this are discarded.
//   - thresholdHigh: Gradients above this are always edges. Weak gradients
//     between the two thresholds are kept only when connected to a strong
//     edge through other weak pixels.
//
// Gradients use 3x3 Sobel operators on 0-255 intensities and the L1 magnitude
// |Gx| + |Gy|, so thresholds are on the same scale as the Hough "param1"
// convention (high = param1, low = param1/2).
//
// # Algorithm
//
//  1. Gradient computation: Sobel X and Y with replicated borders
//  2. Non-maximum suppression: keep only local maxima along the gradient
//     direction, quantized to 4 orientations
//  3. Hysteresis: flood from strong pixels through 8-connected weak pixels
func Canny(gray *image.Gray, thresholdLow, thresholdHigh float64) *EdgeMap {
	bounds := gray.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	n := width * height

	m := &EdgeMap{
		Width:  width,
		Height: height,
		Edge:   make([]bool, n),
		DX:     make([]float64, n),
		DY:     make([]float64, n),
	}
	if n == 0 {
		return m
	}

	pixel := func(x, y int) float64 {
		x = clamp(x, 0, width-1)
		y = clamp(y, 0, height-1)
		return float64(gray.Pix[y*gray.Stride+x])
	}

	magnitude := make([]float64, n)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gx := -pixel(x-1, y-1) + pixel(x+1, y-1) +
				-2*pixel(x-1, y) + 2*pixel(x+1, y) +
				-pixel(x-1, y+1) + pixel(x+1, y+1)
			gy := -pixel(x-1, y-1) - 2*pixel(x, y-1) - pixel(x+1, y-1) +
				pixel(x-1, y+1) + 2*pixel(x, y+1) + pixel(x+1, y+1)

			i := y*width + x
			m.DX[i] = gx
			m.DY[i] = gy
			magnitude[i] = math.Abs(gx) + math.Abs(gy)
		}
	}

	// Non-maximum suppression
	suppressed := make([]float64, n)
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			i := y*width + x
			mag := magnitude[i]
			if mag < thresholdLow {
				continue
			}

			angle := math.Atan2(m.DY[i], m.DX[i])
			var n1, n2 float64
			if (angle >= -math.Pi/8 && angle < math.Pi/8) || (angle >= 7*math.Pi/8 || angle < -7*math.Pi/8) {
				n1 = magnitude[i-1]
				n2 = magnitude[i+1]
			} else if (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8) {
				n1 = magnitude[i-width-1]
				n2 = magnitude[i+width+1]
			} else if (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8) {
				n1 = magnitude[i-width]
				n2 = magnitude[i+width]
			} else {
				n1 = magnitude[i-width+1]
				n2 = magnitude[i+width-1]
			}

			if mag >= n1 && mag > n2 {
				suppressed[i] = mag
			}
		}
	}

	// Hysteresis: grow edges from strong pixels through weak neighbours.
	stack := make([]int, 0, 1024)
	for i, v := range suppressed {
		if v >= thresholdHigh && !m.Edge[i] {
			m.Edge[i] = true
			stack = append(stack, i)
		}
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			px, py := p%width, p/width
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					qx, qy := px+dx, py+dy
					if qx < 0 || qy < 0 || qx >= width || qy >= height {
						continue
					}
					q := qy*width + qx
					if !m.Edge[q] && suppressed[q] >= thresholdLow && suppressed[q] > 0 {
						m.Edge[q] = true
						stack = append(stack, q)
					}
				}
			}
		}
	}

	return m
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in convolution operations.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

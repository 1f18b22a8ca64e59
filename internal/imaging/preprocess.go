package imaging

import (
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/convolution"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
)

// Grayscale converts img to 8-bit luminance.
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	return effect.Grayscale(img)
}

// Mean returns the mean intensity of a grayscale image.
func Mean(gray *image.Gray) float64 {
	b := gray.Bounds()
	if b.Empty() {
		return 0
	}

	var sum uint64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := gray.Pix[(y-b.Min.Y)*gray.Stride : (y-b.Min.Y)*gray.Stride+b.Dx()]
		for _, v := range row {
			sum += uint64(v)
		}
	}
	return float64(sum) / float64(b.Dx()*b.Dy())
}

// ThresholdBelowMean binarizes gray at level = mean - offset: pixels strictly
// above the level become white, the rest black. Micrographs with uneven
// fibre contrast are easier to detect on this binary image.
func ThresholdBelowMean(gray *image.Gray, offset float64) *image.Gray {
	level := Mean(gray) - offset
	if level >= 255 {
		b := gray.Bounds()
		return image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	}
	// segment.Threshold keeps v >= t; for integers v > level means
	// v >= floor(level)+1.
	t := math.Floor(level) + 1
	if t < 0 {
		t = 0
	}
	return segment.Threshold(gray, uint8(t))
}

// GaussianBlur smooths gray with a ksize x ksize Gaussian kernel.
//
// ksize must be odd and positive. When sigma is not positive it is derived
// from the kernel size as 0.3*((ksize-1)*0.5-1)+0.8, the usual convention of
// image-processing libraries. The blur is applied as two separable passes.
func GaussianBlur(gray *image.Gray, ksize int, sigma float64) (*image.Gray, error) {
	if ksize <= 0 || ksize%2 == 0 {
		return nil, fmt.Errorf("blur kernel size must be odd and positive, got %d", ksize)
	}
	if ksize == 1 {
		return gray, nil
	}
	if sigma <= 0 {
		sigma = 0.3*(float64(ksize-1)*0.5-1) + 0.8
	}

	weights := gaussianWeights(ksize, sigma)

	horizontal := convolution.NewKernel(ksize, 1)
	copy(horizontal.Matrix, weights)
	vertical := convolution.NewKernel(1, ksize)
	copy(vertical.Matrix, weights)

	opts := &convolution.Options{Bias: 0, Wrap: false, KeepAlpha: true}
	pass := convolution.Convolve(gray, horizontal, opts)
	pass = convolution.Convolve(pass, vertical, opts)

	return Grayscale(pass), nil
}

// gaussianWeights returns a normalized 1D Gaussian of length ksize.
func gaussianWeights(ksize int, sigma float64) []float64 {
	weights := make([]float64, ksize)
	half := ksize / 2

	var sum float64
	for i := range weights {
		x := float64(i - half)
		weights[i] = math.Exp(-(x * x) / (2 * sigma * sigma))
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}

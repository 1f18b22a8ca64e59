package detection

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/ironsheep/fibre-mesh/internal/circles"
	"github.com/ironsheep/fibre-mesh/internal/imaging"
)

// Result contains the fibres detected in one micrograph.
type Result struct {
	// Circles are the detections in pixel coordinates (Y down), relative to
	// the image's Bounds().Min, strongest first.
	Circles []circles.Circle `json:"circles"`

	// Votes holds the accumulator count of each circle's center. The OpenCV
	// backend does not report votes and leaves it zero.
	Votes []int `json:"votes"`

	// Count is the number of circles detected.
	Count int `json:"count"`

	// Width and Height are the dimensions of the searched image.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Backend names the implementation that produced the result.
	Backend string `json:"backend"`

	// Profile is the calibration used.
	Profile Profile `json:"profile"`
}

// candidate is a circle found by a backend before rounding.
type candidate struct {
	x, y, r float64
	votes   int
}

// Preprocess converts img to the smoothed grayscale image the circle
// transform runs on: grayscale, optional binarization, Gaussian blur.
func Preprocess(img image.Image, p Profile) (*image.Gray, error) {
	gray := imaging.Grayscale(img)
	if p.Binarize {
		gray = imaging.ThresholdBelowMean(gray, p.ThresholdOffset)
	}
	return imaging.GaussianBlur(gray, p.BlurKernel, p.BlurSigma)
}

// EdgePreview returns the edge map the pure-Go transform votes from, for
// tuning Param1 and the preprocessing of a profile.
func EdgePreview(img image.Image, p Profile) (*imaging.EdgeMap, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile %q: %w", p.Name, err)
	}
	gray, err := Preprocess(img, p)
	if err != nil {
		return nil, err
	}
	return imaging.Canny(gray, p.Param1/2, p.Param1), nil
}

// Detect finds circular fibres in a micrograph.
//
// The image is preprocessed as described by the profile, then searched with
// the Hough gradient transform. See houghGradient for the algorithm.
//
// # Errors
//
//   - Returns error if the profile is invalid
func Detect(img image.Image, p Profile) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile %q: %w", p.Name, err)
	}

	gray, err := Preprocess(img, p)
	if err != nil {
		return nil, err
	}

	found, err := runBackend(gray, p)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Circles: make([]circles.Circle, 0, len(found)),
		Votes:   make([]int, 0, len(found)),
		Width:   gray.Bounds().Dx(),
		Height:  gray.Bounds().Dy(),
		Backend: backendName,
		Profile: p,
	}
	for _, c := range found {
		x, y, r := c.x, c.y, c.r
		if p.RoundToPixel {
			x, y, r = math.Round(x), math.Round(y), math.Round(r)
		}
		if r <= 0 {
			continue
		}
		result.Circles = append(result.Circles, circles.Circle{X: x, Y: y, R: r})
		result.Votes = append(result.Votes, c.votes)
	}
	result.Count = len(result.Circles)

	return result, nil
}

// houghGradient is the pure-Go circle transform.
//
// # Algorithm
//
//  1. Canny edges with high = Param1, low = Param1/2
//  2. Each edge pixel votes along its gradient line, both directions, for
//     centers at distances MinRadius..MaxRadius; the accumulator has a
//     cell every DP pixels
//  3. Centers are accumulator local maxima above Param2, strongest first
//  4. A center closer than MinDist to an accepted circle is dropped
//  5. The radius is the distance supported by most edge pixels in a
//     3-pixel window; centers with support below Param2 are dropped
func houghGradient(gray *image.Gray, p Profile) []candidate {
	edges := imaging.Canny(gray, p.Param1/2, p.Param1)
	width, height := edges.Width, edges.Height
	if width == 0 || height == 0 {
		return nil
	}

	minR := p.MinRadius
	if minR < 1 {
		minR = 1
	}
	maxR := p.MaxRadius

	idp := 1 / p.DP
	accW := int(math.Ceil(float64(width)*idp)) + 1
	accH := int(math.Ceil(float64(height)*idp)) + 1
	acc := make([]int, accW*accH)

	type point struct{ x, y float64 }
	points := make([]point, 0, 1024)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !edges.At(x, y) {
				continue
			}
			i := y*width + x
			dx, dy := edges.DX[i], edges.DY[i]
			mag := math.Hypot(dx, dy)
			if mag == 0 {
				continue
			}
			points = append(points, point{float64(x), float64(y)})
			vx, vy := dx/mag, dy/mag

			for _, sign := range [2]float64{1, -1} {
				last := -1
				for r := minR; r <= maxR; r++ {
					cx := int(math.Round((float64(x) + sign*float64(r)*vx) * idp))
					cy := int(math.Round((float64(y) + sign*float64(r)*vy) * idp))
					if cx < 0 || cy < 0 || cx >= accW || cy >= accH {
						break
					}
					cell := cy*accW + cx
					if cell != last {
						acc[cell]++
						last = cell
					}
				}
			}
		}
	}

	// Local maxima; on plateaus the first cell in raster order wins.
	centers := make([]int, 0, 64)
	for cy := 0; cy < accH; cy++ {
		for cx := 0; cx < accW; cx++ {
			cell := cy*accW + cx
			v := acc[cell]
			if float64(v) < p.Param2 {
				continue
			}
			if isLocalMax(acc, accW, accH, cx, cy) {
				centers = append(centers, cell)
			}
		}
	}
	sort.SliceStable(centers, func(i, j int) bool { return acc[centers[i]] > acc[centers[j]] })

	minDist2 := p.MinDist * p.MinDist
	hist := make([]int, maxR+2)
	sums := make([]float64, maxR+2)
	found := make([]candidate, 0, len(centers))

	for _, cell := range centers {
		cx := float64(cell%accW) * p.DP
		cy := float64(cell/accW) * p.DP

		tooClose := false
		for _, f := range found {
			ddx, ddy := f.x-cx, f.y-cy
			if ddx*ddx+ddy*ddy < minDist2 {
				tooClose = true
				break
			}
		}
		if tooClose {
			continue
		}

		for i := range hist {
			hist[i] = 0
			sums[i] = 0
		}
		for _, pt := range points {
			d := math.Hypot(pt.x-cx, pt.y-cy)
			if d < float64(minR)-0.5 || d >= float64(maxR)+0.5 {
				continue
			}
			bin := int(math.Round(d))
			hist[bin]++
			sums[bin] += d
		}

		bestBin, bestCount := 0, 0
		for r := minR; r <= maxR; r++ {
			n := hist[r-1] + hist[r] + hist[r+1]
			if n > bestCount {
				bestBin, bestCount = r, n
			}
		}
		if bestCount == 0 || float64(bestCount) < p.Param2 {
			continue
		}

		radius := (sums[bestBin-1] + sums[bestBin] + sums[bestBin+1]) / float64(bestCount)
		found = append(found, candidate{x: cx, y: cy, r: radius, votes: acc[cell]})
	}

	return found
}

// isLocalMax reports whether the accumulator cell at (cx, cy) is the maximum
// of its 3x3 neighbourhood, strictly above neighbours earlier in raster order.
func isLocalMax(acc []int, w, h, cx, cy int) bool {
	v := acc[cy*w+cx]
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := cx+dx, cy+dy
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			n := acc[ny*w+nx]
			earlier := dy < 0 || (dy == 0 && dx < 0)
			if n > v || (earlier && n == v) {
				return false
			}
		}
	}
	return true
}

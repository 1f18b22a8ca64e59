package circles

import "math"

// Margin is the clearance between the outermost fibre and the domain edge,
// in the same length unit as the circles.
const Margin = 1.0

// Box is an axis-aligned rectangle.
type Box struct {
	XMin float64 `json:"xmin"`
	XMax float64 `json:"xmax"`
	YMin float64 `json:"ymin"`
	YMax float64 `json:"ymax"`
}

// Width returns XMax - XMin.
func (b Box) Width() float64 { return b.XMax - b.XMin }

// Height returns YMax - YMin.
func (b Box) Height() float64 { return b.YMax - b.YMin }

// BoundingBox returns the union of all circle extents grown by Margin on
// each side.
func BoundingBox(list []Circle) (Box, error) {
	if len(list) == 0 {
		return Box{}, &EmptyInputError{Source: "circle list"}
	}

	b := Box{
		XMin: math.Inf(1),
		XMax: math.Inf(-1),
		YMin: math.Inf(1),
		YMax: math.Inf(-1),
	}
	for _, c := range list {
		b.XMin = math.Min(b.XMin, c.X-c.R)
		b.XMax = math.Max(b.XMax, c.X+c.R)
		b.YMin = math.Min(b.YMin, c.Y-c.R)
		b.YMax = math.Max(b.YMax, c.Y+c.R)
	}

	b.XMin -= Margin
	b.XMax += Margin
	b.YMin -= Margin
	b.YMax += Margin
	return b, nil
}

package circles

import (
	"fmt"
	"math"
	"strings"
)

// Overlap describes two fibres whose disks intersect or touch.
// Indexes are 1-based, matching the geometry entity numbering.
type Overlap struct {
	A     int     `json:"a"`
	B     int     `json:"b"`
	Depth float64 `json:"depth"` // r1 + r2 - distance; 0 when touching
}

// OverlapError is returned when overlapping fibres are not allowed.
type OverlapError struct {
	Overlaps []Overlap
}

func (e *OverlapError) Error() string {
	parts := make([]string, 0, len(e.Overlaps))
	for i, o := range e.Overlaps {
		if i == 5 {
			parts = append(parts, fmt.Sprintf("and %d more", len(e.Overlaps)-5))
			break
		}
		parts = append(parts, fmt.Sprintf("%d/%d", o.A, o.B))
	}
	return fmt.Sprintf("%d overlapping fibre pairs: %s", len(e.Overlaps), strings.Join(parts, ", "))
}

// Validate returns every pair of circles whose disks intersect or touch.
//
// Subtracting such disks from the matrix yields self-intersecting loops the
// mesher cannot handle, so the result is the precondition check for
// geometry encoding. Pairs are ordered by (A, B).
func Validate(list []Circle) []Overlap {
	var overlaps []Overlap
	for i := 0; i < len(list); i++ {
		for j := i + 1; j < len(list); j++ {
			a, b := list[i], list[j]
			dist := math.Hypot(a.X-b.X, a.Y-b.Y)
			if dist <= a.R+b.R {
				overlaps = append(overlaps, Overlap{A: i + 1, B: j + 1, Depth: a.R + b.R - dist})
			}
		}
	}
	return overlaps
}

package geometry

import "fmt"

// Fixed IDs of the matrix domain and the physical groups.
const (
	OuterLoopID     = 999
	MatrixSurfaceID = 2000

	PhysicalMatrix     = 1
	PhysicalFibres     = 2
	PhysicalInterfaces = 11
	PhysicalBoundary   = 12

	fibreStride        = 10
	fibreSurfaceOffset = 1000
)

// MaxFibres is the largest fibre count the numbering scheme supports.
// Fibre loop IDs must stay below OuterLoopID and fibre surface IDs below
// MatrixSurfaceID.
const MaxFibres = OuterLoopID - 1

// RectangleIDs are the point and line IDs of the outer rectangle, in
// counter-clockwise order starting at (xmin, ymin).
var RectangleIDs = [4]int{1, 2, 3, 4}

// FibreIDs holds every entity ID allocated to one fibre.
type FibreIDs struct {
	Index   int    `json:"index"`
	Points  [5]int `json:"points"` // right, top, left, bottom, center
	Arcs    [4]int `json:"arcs"`   // right→top, top→left, left→bottom, bottom→right
	Loop    int    `json:"loop"`
	Surface int    `json:"surface"`
}

// Center returns the ID of the fibre's center point.
func (f FibreIDs) Center() int { return f.Points[4] }

// CapacityError is returned when more fibres are given than the numbering
// scheme can hold without collisions.
type CapacityError struct {
	Count int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%d fibres exceed the geometry numbering capacity of %d", e.Count, MaxFibres)
}

// FibreEntityIDs returns the IDs for the fibre at 1-based position i.
// It panics if i is outside [1, MaxFibres].
func FibreEntityIDs(i int) FibreIDs {
	if i < 1 || i > MaxFibres {
		panic(fmt.Sprintf("geometry: fibre index %d out of range [1, %d]", i, MaxFibres))
	}

	b := i * fibreStride
	return FibreIDs{
		Index:   i,
		Points:  [5]int{b + 1, b + 2, b + 3, b + 4, b + 5},
		Arcs:    [4]int{b + 6, b + 7, b + 8, b + 9},
		Loop:    i,
		Surface: fibreSurfaceOffset + i,
	}
}

package msh

import (
	"fmt"
	"sort"
)

// Physical group tags written by the geometry encoder.
const (
	TagMatrix     = 1
	TagFibres     = 2
	TagInterfaces = 11
	TagBoundary   = 12
)

// Summary counts the elements of a mesh per physical group.
type Summary struct {
	Version string `json:"version"`
	Nodes   int    `json:"nodes"`

	// Triangles is the total number of 3-node triangles.
	Triangles         int `json:"triangles"`
	MatrixTriangles   int `json:"matrix_triangles"`
	FibreTriangles    int `json:"fibre_triangles"`
	InterfaceSegments int `json:"interface_segments"`
	BoundarySegments  int `json:"boundary_segments"`

	// TrianglesByTag and SegmentsByTag cover every physical tag present.
	// Segments are counted once per distinct node pair.
	TrianglesByTag map[int]int `json:"triangles_by_tag"`
	SegmentsByTag  map[int]int `json:"segments_by_tag"`

	// Unassigned counts elements outside every physical group.
	Unassigned int `json:"unassigned"`

	PhysicalNames []PhysicalName `json:"physical_names,omitempty"`
}

type segmentKey struct{ tag, a, b int }

// Summarize counts the triangles and segments of m per physical tag.
func (m *Mesh) Summarize() *Summary {
	s := &Summary{
		Version:        m.Version,
		Nodes:          len(m.Nodes),
		TrianglesByTag: make(map[int]int),
		SegmentsByTag:  make(map[int]int),
		PhysicalNames:  m.PhysicalNames,
	}

	seen := make(map[segmentKey]bool)
	for _, e := range m.Elements {
		if e.Physical == 0 {
			s.Unassigned++
		}
		switch e.Type {
		case TypeTriangle:
			s.Triangles++
			if e.Physical != 0 {
				s.TrianglesByTag[e.Physical]++
			}
		case TypeSegment:
			if e.Physical == 0 || len(e.Nodes) < 2 {
				continue
			}
			a, b := e.Nodes[0], e.Nodes[1]
			if a > b {
				a, b = b, a
			}
			k := segmentKey{e.Physical, a, b}
			if !seen[k] {
				seen[k] = true
				s.SegmentsByTag[e.Physical]++
			}
		}
	}

	s.MatrixTriangles = s.TrianglesByTag[TagMatrix]
	s.FibreTriangles = s.TrianglesByTag[TagFibres]
	s.InterfaceSegments = s.SegmentsByTag[TagInterfaces]
	s.BoundarySegments = s.SegmentsByTag[TagBoundary]
	return s
}

// Problems lists inconsistencies between the mesh and a geometry holding
// fibres fibres. An empty result means every physical group was meshed.
func (s *Summary) Problems(fibres int) []string {
	var problems []string
	if s.MatrixTriangles == 0 {
		problems = append(problems, fmt.Sprintf("no matrix triangles (physical surface %d)", TagMatrix))
	}
	if s.BoundarySegments == 0 {
		problems = append(problems, fmt.Sprintf("no boundary segments (physical curve %d)", TagBoundary))
	}
	if fibres > 0 {
		if s.FibreTriangles == 0 {
			problems = append(problems, fmt.Sprintf("no fibre triangles (physical surface %d)", TagFibres))
		}
		if s.InterfaceSegments == 0 {
			problems = append(problems, fmt.Sprintf("no interface segments (physical curve %d)", TagInterfaces))
		}
	}
	if s.Unassigned > 0 {
		problems = append(problems, fmt.Sprintf("%d elements without a physical group", s.Unassigned))
	}

	var unknown []int
	for tag := range s.TrianglesByTag {
		if tag != TagMatrix && tag != TagFibres {
			unknown = append(unknown, tag)
		}
	}
	for tag := range s.SegmentsByTag {
		if tag != TagInterfaces && tag != TagBoundary {
			unknown = append(unknown, tag)
		}
	}
	sort.Ints(unknown)
	for _, tag := range unknown {
		problems = append(problems, fmt.Sprintf("unexpected physical tag %d", tag))
	}
	return problems
}

// SummarizeFile reads a mesh file and summarises it.
func SummarizeFile(path string) (*Summary, error) {
	m, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return m.Summarize(), nil
}

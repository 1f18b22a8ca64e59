// Package geometry encodes a fibre circle list as a Gmsh .geo description.
//
// The output is a 2D domain: a bounding rectangle (the matrix) with every
// fibre disk subtracted, plus one plane surface per fibre, and physical groups
// that downstream solvers use to assign materials and boundary conditions.
//
// # Entity Numbering
//
// All IDs come from a single allocation policy (see FibreEntityIDs). For the
// fibre at 1-based position i, with base b = 10*i:
//
//	Point(b+1..b+5)     right, top, left, bottom, center
//	Circle(b+6..b+9)    quarter arcs {start, center, end}
//	Curve Loop(i)       the four arcs
//	Plane Surface(1000+i)
//
// The rectangle uses fixed IDs: points and lines 1-4, Curve Loop(999), matrix
// Plane Surface(2000). The scheme is collision-free for up to MaxFibres fibres.
//
// # Physical Groups
//
//	Physical Surface(1)  matrix
//	Physical Surface(2)  fibres
//	Physical Curve(11)   fibre/matrix interfaces (all fibre arcs)
//	Physical Curve(12)   outer boundary (rectangle lines)
//
// # Determinism
//
// Emission order follows the input order exactly and numbers are printed in
// their shortest round-trip form, so encoding the same input twice produces
// byte-identical output.
package geometry

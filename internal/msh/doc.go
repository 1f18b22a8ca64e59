// Package msh reads the ASCII mesh files written by Gmsh and summarises them.
//
// Both format 2.2 (physical tag stored on every element) and format 4.1
// (elements grouped by geometric entity, physical tags listed in $Entities)
// are supported. Binary meshes are rejected.
//
// The Summary counts elements against the physical groups written by the
// geometry encoder: surface 1 (matrix), surface 2 (fibres), curve 11 (fibre
// and matrix interfaces) and curve 12 (outer boundary).
package msh

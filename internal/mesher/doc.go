// Package mesher runs the external Gmsh mesh generator on a geometry file.
//
// Gmsh is invoked as a batch subprocess:
//
//	gmsh <geometry.geo> -2 -o <mesh.msh> [-format msh22]
//
// The binary is "gmsh" from PATH unless FIBRE_MESH_GMSH names another one.
// A run either produces the mesh file or fails with a typed error:
// MissingToolError when the binary cannot be found, ToolFailure when it exits
// non-zero or writes no mesh. Runs are never retried.
package mesher

// Package pipeline turns one micrograph into a fibre geometry and, on
// request, a mesh.
//
// A full run is: load image → detect fibres → write the circle list and a
// detection overlay → reload the list with the Y flip and scaling → check
// for overlapping fibres → write the .geo geometry → run Gmsh → summarise the
// mesh. DetectImage, EncodeFile and MeshFile expose the stages separately.
//
// Output files for an image named sample.png are written next to it (or to
// Config.OutputDir):
//
//	sample_circles.txt   detected circles, pixel coordinates
//	sample_detected.png  overlay of the detections
//	sample.geo           Gmsh geometry
//	sample.msh           mesh (when meshing is enabled)
//
// The package logs progress through Config.Logger and stays silent when it
// is nil.
package pipeline

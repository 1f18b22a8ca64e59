// Package circles reads, transforms and writes fibre circle lists.
//
// A circle list is the hand-off format between detection and geometry
// encoding: plain text, one circle per line, three whitespace-separated real
// numbers "x y r". The order of the lines is significant, because the
// geometry encoder derives every entity ID from a circle's 1-based position.
//
// # Coordinate Conventions
//
// Detectors report circles in image space (origin top-left, Y down). Gmsh
// geometries are Y up, so callers that feed image-space lists to the encoder
// set LoadOptions.FlipHeight to the image height. LoadOptions.Scale rescales
// coordinates and radii, e.g. 1/max(width, height) to normalise into [0, 1]
// or micrometres per pixel when a scale bar has been read.
//
// # Errors
//
//   - EmptyInputError: no circle was found. This must abort the pipeline
//     before any geometry file is created.
//   - ParseError: a line is not a valid triple or has a non-positive radius.
//   - OverlapError: returned by callers that treat overlapping fibres as a
//     hard precondition failure (see Validate).
package circles

// Package imaging provides the pixel-level operations of the fibre pipeline.
//
// It loads micrographs, prepares them for circle detection (grayscale,
// optional binarization, Gaussian smoothing, Canny edges), crops regions of
// interest and draws detected fibres back onto the source image. All
// operations work with standard Go image.Image types.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with (0,0) at the top-left corner, X
// increasing rightward and Y increasing downward. For regions, (x1,y1) is
// inclusive and (x2,y2) is exclusive. Geometry downstream uses Y up; the flip
// is done by the circles package, never here.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Other functions are
// stateless and return new images rather than modifying their inputs.
package imaging

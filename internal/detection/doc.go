// Package detection finds circular fibres in micrographs.
//
// Detection is driven by a Profile, a named record of calibration constants
// (blur, threshold mode, Hough parameters, radius bounds). Built-in profiles
// cover 50x optical micrographs ("x50", "x50-coarse") and low-contrast images
// that need binarizing first ("binary"); custom profiles are JSON files.
//
// # Algorithm Overview
//
//  1. Preprocess: grayscale, optional threshold at mean - offset, Gaussian blur
//  2. Canny edges with Sobel gradients
//  3. Hough gradient transform: edge pixels vote along their gradient
//  4. Centers from accumulator maxima, thinned by minimum distance
//  5. Radius from the distance histogram of edge pixels around each center
//
// The default build uses a pure-Go transform. Building with -tags opencv
// swaps step 3 onwards for OpenCV's HoughCircles through gocv, using the
// same profile.
//
// # Coordinate System
//
// Detections are in pixel coordinates: origin at the top-left, Y down.
// Converting to geometry coordinates (Y up, optional scaling) is the job of
// the circles package.
package detection

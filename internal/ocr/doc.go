// Package ocr reads the scale bar printed on micrographs.
//
// A scale bar is a solid bar with a label such as "50 µm". The label is read
// with Tesseract (through gosseract/v2), the bar is measured in pixels, and
// the two give the physical size of a pixel. Detected fibre circles can then
// be scaled to micrometres before the geometry is written.
//
// # Build Tags
//
// Text recognition needs the Tesseract C library and is only compiled with
// the "ocr" build tag:
//
//	go build -tags ocr ./cmd/fibre-mesh
//
// Without it, ReadScaleBar returns ErrOCRNotEnabled. ParseScaleLabel,
// MeasureBarLength and Calibrate are pure Go and always available, so a
// label read by a person can still be combined with a measured bar.
//
// # Prerequisites
//
// With the "ocr" tag, Tesseract and its English data must be installed:
//   - Ubuntu/Debian: apt-get install libtesseract-dev tesseract-ocr-eng
//   - macOS: brew install tesseract
package ocr

package ocr

import (
	"errors"
	"fmt"
	"image"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/ironsheep/fibre-mesh/internal/imaging"
)

// ErrOCRNotEnabled is returned by text recognition in builds without the
// "ocr" tag. Label parsing and bar measurement work in every build.
var ErrOCRNotEnabled = errors.New("ocr: text recognition not available, rebuild with -tags ocr")

// DefaultLanguage is the Tesseract language used for scale-bar labels.
const DefaultLanguage = "eng"

// unitMicrometres maps a normalised length unit to micrometres.
var unitMicrometres = map[string]float64{
	"nm": 1e-3,
	"μm": 1,
	"um": 1,
	"mm": 1e3,
	"cm": 1e4,
	"m":  1e6,
}

// labelPattern matches "50 μm", "0,5mm", "100um" and similar. Units are
// matched after NFKC normalisation, which folds the micro sign into Greek mu.
var labelPattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(nm|μm|um|mm|cm|m)\b`)

// ScaleLabel is a parsed scale-bar label.
type ScaleLabel struct {
	// Text is the label as recognised.
	Text string `json:"text"`

	// Value and Unit are the parsed length, e.g. 50 and "μm".
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`

	// Micrometres is the length converted to micrometres.
	Micrometres float64 `json:"micrometres"`
}

// ParseScaleLabel extracts a length from OCR text such as "50 µm".
//
// The text is NFKC-normalised first, so the micro sign (U+00B5) and Greek
// small mu (U+03BC) are treated alike; "u" is accepted as well. A decimal
// comma is read as a decimal point.
func ParseScaleLabel(text string) (*ScaleLabel, error) {
	normalized := norm.NFKC.String(text)
	m := labelPattern.FindStringSubmatch(normalized)
	if m == nil {
		return nil, fmt.Errorf("no length found in scale-bar label %q", strings.TrimSpace(text))
	}

	value, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid scale-bar value %q: %w", m[1], err)
	}
	if value <= 0 {
		return nil, fmt.Errorf("scale-bar value must be positive, got %g", value)
	}

	unit := strings.ToLower(m[2])
	if unit == "um" {
		unit = "μm"
	}
	return &ScaleLabel{
		Text:        strings.TrimSpace(text),
		Value:       value,
		Unit:        unit,
		Micrometres: value * unitMicrometres[unit],
	}, nil
}

// MeasureBarLength returns the length in pixels of the scale bar inside
// region: the longest horizontal run of foreground pixels.
//
// The region is binarized at its mean intensity and the minority class is
// taken as foreground, so both white bars on dark backgrounds and black bars
// on light ones are measured. An empty region means the whole image.
func MeasureBarLength(img image.Image, region imaging.Region) (int, error) {
	cropped, err := imaging.CropRegion(img, region)
	if err != nil {
		return 0, err
	}

	bin := imaging.ThresholdBelowMean(imaging.Grayscale(cropped), 0)
	b := bin.Bounds()
	if b.Empty() {
		return 0, fmt.Errorf("scale-bar region is empty")
	}

	white := 0
	for y := 0; y < b.Dy(); y++ {
		for _, v := range bin.Pix[y*bin.Stride : y*bin.Stride+b.Dx()] {
			if v != 0 {
				white++
			}
		}
	}
	var fg uint8 = 255
	if white*2 > b.Dx()*b.Dy() {
		fg = 0
	}

	longest := 0
	for y := 0; y < b.Dy(); y++ {
		run := 0
		for _, v := range bin.Pix[y*bin.Stride : y*bin.Stride+b.Dx()] {
			if v == fg {
				run++
				if run > longest {
					longest = run
				}
			} else {
				run = 0
			}
		}
	}

	if longest == 0 {
		return 0, fmt.Errorf("no scale bar found in region")
	}
	return longest, nil
}

// ScaleBar is the physical calibration derived from a micrograph's scale bar.
type ScaleBar struct {
	Label ScaleLabel `json:"label"`

	// BarPixels is the measured bar length in pixels.
	BarPixels int `json:"bar_pixels"`

	// MicrometresPerPixel converts pixel lengths to micrometres. It is the
	// Scale to pass to the circle loader for geometry in micrometres.
	MicrometresPerPixel float64 `json:"micrometres_per_pixel"`
}

// Calibrate combines a parsed label and a measured bar length.
func Calibrate(label *ScaleLabel, barPixels int) (*ScaleBar, error) {
	if barPixels <= 0 {
		return nil, fmt.Errorf("bar length must be positive, got %d", barPixels)
	}
	return &ScaleBar{
		Label:               *label,
		BarPixels:           barPixels,
		MicrometresPerPixel: label.Micrometres / float64(barPixels),
	}, nil
}

// ReadScaleBar reads the scale bar of a micrograph.
//
// labelRegion holds the text ("50 µm"), barRegion the bar itself. When
// barRegion is empty the bar is searched for in labelRegion, which suits the
// common layout of a bar drawn right above its label.
//
// # Errors
//
//   - ErrOCRNotEnabled in builds without the "ocr" tag
//   - Returns error if the label has no recognisable length
//   - Returns error if no bar is found
func ReadScaleBar(img image.Image, labelRegion, barRegion imaging.Region, language string) (*ScaleBar, error) {
	if language == "" {
		language = DefaultLanguage
	}

	labelImg, err := imaging.CropRegion(img, labelRegion)
	if err != nil {
		return nil, fmt.Errorf("label region: %w", err)
	}
	text, err := recognizeText(labelImg, language)
	if err != nil {
		return nil, err
	}
	return ScaleBarFromLabel(img, text, labelRegion, barRegion)
}

// ScaleBarFromLabel calibrates from label text that is already known, typed
// by the user or recognised earlier. Regions behave as in ReadScaleBar.
func ScaleBarFromLabel(img image.Image, text string, labelRegion, barRegion imaging.Region) (*ScaleBar, error) {
	label, err := ParseScaleLabel(text)
	if err != nil {
		return nil, err
	}

	if barRegion.Empty() {
		barRegion = labelRegion
	}
	pixels, err := MeasureBarLength(img, barRegion)
	if err != nil {
		return nil, fmt.Errorf("bar region: %w", err)
	}

	return Calibrate(label, pixels)
}

// OCRInfo describes the text recognition backend of this build.
type OCRInfo struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
	Backend   string `json:"backend"`
}

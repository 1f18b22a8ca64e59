package circles

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Circle is a fibre cross-section: center (X, Y) and radius R.
type Circle struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	R float64 `json:"r"`
}

// EmptyInputError is returned when a circle source yields no circles.
type EmptyInputError struct {
	// Source names the input (file path or "input").
	Source string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("no circles found in %s", e.Source)
}

// ParseError reports an invalid line in a circle list.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var (
	errFieldCount     = errors.New("expected three values \"x y r\"")
	errNonPositiveRad = errors.New("radius must be positive")
)

// LoadOptions controls the coordinate transform applied while loading.
type LoadOptions struct {
	// FlipHeight, when > 0, maps y to FlipHeight - y. Use the source image
	// height to turn image coordinates (Y down) into geometry coordinates (Y up).
	FlipHeight float64

	// Scale, when > 0, multiplies x, y and r after the flip.
	Scale float64
}

// Parse reads a circle list from r.
//
// Blank lines and lines starting with '#' are skipped. Every other line must
// hold exactly three numbers. The result keeps input order. An empty result
// is reported as *EmptyInputError.
func Parse(r io.Reader, opts LoadOptions) ([]Circle, error) {
	return parse(r, "input", opts)
}

// ReadFile loads a circle list from a file. See Parse.
func ReadFile(path string, opts LoadOptions) ([]Circle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open circle list: %w", err)
	}
	defer f.Close()

	return parse(f, path, opts)
}

func parse(r io.Reader, source string, opts LoadOptions) ([]Circle, error) {
	scanner := bufio.NewScanner(r)
	var list []Circle

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		c, err := parseLine(text)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Text: text, Err: err}
		}
		list = append(list, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}

	if len(list) == 0 {
		return nil, &EmptyInputError{Source: source}
	}

	return Transform(list, opts), nil
}

func parseLine(text string) (Circle, error) {
	fields := strings.Fields(text)
	if len(fields) != 3 {
		return Circle{}, errFieldCount
	}

	var v [3]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Circle{}, err
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return Circle{}, fmt.Errorf("value %q is not finite", f)
		}
		v[i] = n
	}

	if v[2] <= 0 {
		return Circle{}, errNonPositiveRad
	}
	return Circle{X: v[0], Y: v[1], R: v[2]}, nil
}

// Transform returns a copy of list with the y-flip and scale of opts applied.
func Transform(list []Circle, opts LoadOptions) []Circle {
	out := make([]Circle, len(list))
	for i, c := range list {
		if opts.FlipHeight > 0 {
			c.Y = opts.FlipHeight - c.Y
		}
		if opts.Scale > 0 && opts.Scale != 1 {
			c.X *= opts.Scale
			c.Y *= opts.Scale
			c.R *= opts.Scale
		}
		out[i] = c
	}
	return out
}

// NormalizeScale returns the factor that maps the larger image dimension to 1.
func NormalizeScale(width, height int) float64 {
	m := width
	if height > m {
		m = height
	}
	if m <= 0 {
		return 1
	}
	return 1 / float64(m)
}

// Write emits list in the "x y r" format read by Parse.
// When round is set, values are rounded to whole pixels first.
func Write(w io.Writer, list []Circle, round bool) error {
	bw := bufio.NewWriter(w)
	for _, c := range list {
		if round {
			c = Circle{X: math.Round(c.X), Y: math.Round(c.Y), R: math.Round(c.R)}
		}
		if _, err := fmt.Fprintf(bw, "%s %s %s\n", formatValue(c.X), formatValue(c.Y), formatValue(c.R)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes list to path. See Write.
func WriteFile(path string, list []Circle, round bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create circle list: %w", err)
	}
	if err := Write(f, list, round); err != nil {
		f.Close()
		return fmt.Errorf("failed to write circle list: %w", err)
	}
	return f.Close()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

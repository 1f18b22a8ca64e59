package geometry

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ironsheep/fibre-mesh/internal/circles"
)

// Options controls encoding.
type Options struct {
	// MeshSize is the characteristic length lc applied to every point.
	MeshSize float64

	// Source, when set, is named in a header comment.
	Source string
}

// Model lists the entity IDs written by Encode, grouped the way the physical
// tags group them.
type Model struct {
	Box           circles.Box `json:"box"`
	MeshSize      float64     `json:"mesh_size"`
	Fibres        []FibreIDs  `json:"fibres"`
	FibreLoops    []int       `json:"fibre_loops"`
	FibreSurfaces []int       `json:"fibre_surfaces"`
	FibreArcs     []int       `json:"fibre_arcs"`
	BoundaryLines []int       `json:"boundary_lines"`
	OuterLoop     int         `json:"outer_loop"`
	MatrixSurface int         `json:"matrix_surface"`
}

// geoWriter formats statements and keeps the first write error.
type geoWriter struct {
	w   io.Writer
	err error
}

func (g *geoWriter) printf(format string, a ...interface{}) {
	if g.err != nil {
		return
	}
	_, g.err = fmt.Fprintf(g.w, format, a...)
}

// Encode writes the .geo description of fibres to w.
//
// The list must be non-empty, hold at most MaxFibres circles and
// opts.MeshSize must be positive. Nothing is written when validation fails.
func Encode(w io.Writer, fibres []circles.Circle, opts Options) (*Model, error) {
	if len(fibres) > MaxFibres {
		return nil, &CapacityError{Count: len(fibres)}
	}
	if !(opts.MeshSize > 0) || math.IsInf(opts.MeshSize, 0) {
		return nil, fmt.Errorf("mesh size must be a positive number, got %v", opts.MeshSize)
	}
	box, err := circles.BoundingBox(fibres)
	if err != nil {
		return nil, err
	}

	g := &geoWriter{w: w}
	model := &Model{
		Box:           box,
		MeshSize:      opts.MeshSize,
		BoundaryLines: append([]int(nil), RectangleIDs[:]...),
		OuterLoop:     OuterLoopID,
		MatrixSurface: MatrixSurfaceID,
	}

	if opts.Source != "" {
		g.printf("// Generated from %s\n", opts.Source)
	}
	g.printf("lc = %s;\n\n", formatNumber(opts.MeshSize))

	for i, c := range fibres {
		ids := encodeFibre(g, i+1, c)
		model.Fibres = append(model.Fibres, ids)
		model.FibreLoops = append(model.FibreLoops, ids.Loop)
		model.FibreSurfaces = append(model.FibreSurfaces, ids.Surface)
		model.FibreArcs = append(model.FibreArcs, ids.Arcs[:]...)
	}

	encodeMatrix(g, box, model.FibreLoops)
	encodePhysicalGroups(g, model)

	if g.err != nil {
		return nil, fmt.Errorf("failed to write geometry: %w", g.err)
	}
	return model, nil
}

// EncodeString is Encode into a string.
func EncodeString(fibres []circles.Circle, opts Options) (string, *Model, error) {
	var buf bytes.Buffer
	model, err := Encode(&buf, fibres, opts)
	if err != nil {
		return "", nil, err
	}
	return buf.String(), model, nil
}

// encodeFibre writes the points, arcs, loop and surface of one fibre and
// returns the IDs it used.
func encodeFibre(g *geoWriter, index int, c circles.Circle) FibreIDs {
	ids := FibreEntityIDs(index)
	p := ids.Points

	g.printf("// Fibre %d\n", index)
	writePoint(g, p[0], c.X+c.R, c.Y)
	writePoint(g, p[1], c.X, c.Y+c.R)
	writePoint(g, p[2], c.X-c.R, c.Y)
	writePoint(g, p[3], c.X, c.Y-c.R)
	writePoint(g, p[4], c.X, c.Y)

	// Each quarter arc is {start, center, end}.
	for k, arc := range ids.Arcs {
		g.printf("Circle(%d) = {%d, %d, %d};\n", arc, p[k], ids.Center(), p[(k+1)%4])
	}

	g.printf("Curve Loop(%d) = {%s};\n", ids.Loop, joinIDs(ids.Arcs[:]))
	g.printf("Plane Surface(%d) = {%d};\n\n", ids.Surface, ids.Loop)
	return ids
}

// encodeMatrix writes the outer rectangle and the matrix surface with every
// fibre loop as a hole.
func encodeMatrix(g *geoWriter, box circles.Box, fibreLoops []int) {
	r := RectangleIDs

	g.printf("// Matrix domain\n")
	writePoint(g, r[0], box.XMin, box.YMin)
	writePoint(g, r[1], box.XMax, box.YMin)
	writePoint(g, r[2], box.XMax, box.YMax)
	writePoint(g, r[3], box.XMin, box.YMax)

	for k, line := range r {
		g.printf("Line(%d) = {%d, %d};\n", line, r[k], r[(k+1)%4])
	}
	g.printf("Curve Loop(%d) = {%s};\n\n", OuterLoopID, joinIDs(r[:]))

	loops := append([]int{OuterLoopID}, fibreLoops...)
	g.printf("Plane Surface(%d) = {%s};\n\n", MatrixSurfaceID, joinIDs(loops))
}

func encodePhysicalGroups(g *geoWriter, m *Model) {
	g.printf("// Physical tags\n\n")
	g.printf("Physical Surface(%d) = {%s};\n", PhysicalFibres, joinIDs(m.FibreSurfaces))
	g.printf("Physical Surface(%d) = {%d};\n\n", PhysicalMatrix, m.MatrixSurface)
	g.printf("Physical Curve(%d) = {%s};\n", PhysicalInterfaces, joinIDs(m.FibreArcs))
	g.printf("Physical Curve(%d) = {%s};\n", PhysicalBoundary, joinIDs(m.BoundaryLines))
}

func writePoint(g *geoWriter, id int, x, y float64) {
	g.printf("Point(%d) = {%s, %s, 0, lc};\n", id, formatNumber(x), formatNumber(y))
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ", ")
}

// formatNumber prints v in its shortest round-trip form, keeping a ".0" on
// integral values so every coordinate reads as a real number.
func formatNumber(v float64) string {
	if v == 0 {
		v = 0 // normalise -0
	}

	s := strconv.FormatFloat(v, 'e', -1, 64)
	if i := strings.IndexByte(s, 'e'); i >= 0 {
		exp, _ := strconv.Atoi(s[i+1:])
		if exp >= -4 && exp < 16 {
			s = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	if !strings.ContainsAny(s, ".eIN") {
		s += ".0"
	}
	return s
}

// WriteFile encodes fibres into path atomically: the geometry is written to
// a temporary file in the same directory and renamed into place, so path
// either holds a complete geometry or is left untouched.
func WriteFile(path string, fibres []circles.Circle, opts Options) (*Model, error) {
	var buf bytes.Buffer
	model, err := Encode(&buf, fibres, opts)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp geometry file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to write geometry: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to write geometry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to write geometry: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to move geometry into place: %w", err)
	}

	return model, nil
}

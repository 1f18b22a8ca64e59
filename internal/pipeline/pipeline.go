package pipeline

import (
	"context"
	"fmt"
	"image"
	"log"
	"path/filepath"
	"strings"

	"github.com/ironsheep/fibre-mesh/internal/circles"
	"github.com/ironsheep/fibre-mesh/internal/detection"
	"github.com/ironsheep/fibre-mesh/internal/geometry"
	"github.com/ironsheep/fibre-mesh/internal/imaging"
	"github.com/ironsheep/fibre-mesh/internal/mesher"
	"github.com/ironsheep/fibre-mesh/internal/msh"
)

// Config controls a pipeline run.
type Config struct {
	// Profile calibrates the detector.
	Profile detection.Profile

	// Region restricts detection to part of the image. Empty means the
	// whole image. Detections are reported in full-image coordinates.
	Region imaging.Region

	// OutputDir receives the output files. Empty means the image's directory.
	OutputDir string

	// Name is the base name of the output files. Empty means the image file
	// name without extension.
	Name string

	// MeshSize is the characteristic length lc written to the geometry.
	MeshSize float64

	// FlipY converts image Y-down coordinates to geometry Y-up using the
	// image height. EncodeFile, which has no image, uses FlipHeight instead.
	FlipY      bool
	FlipHeight float64

	// Scale multiplies coordinates after the flip, e.g. micrometres per
	// pixel. Normalize overrides it with 1/max(width, height).
	Scale     float64
	Normalize bool

	// Strict aborts on overlapping fibres instead of logging them.
	Strict bool

	// Overlay writes <name>_detected.png.
	Overlay      bool
	OverlayStyle imaging.OverlayStyle

	// Mesh runs Mesher on the geometry; Verify then summarises the mesh
	// and checks its physical groups.
	Mesh   bool
	Mesher *mesher.Gmsh
	Verify bool

	// Logger receives progress and warnings. Nil is silent.
	Logger *log.Logger
}

// DefaultConfig returns the configuration for profile p: its mesh size and
// flip, an overlay, no meshing.
func DefaultConfig(p detection.Profile) Config {
	meshSize := p.MeshSize
	if meshSize <= 0 {
		meshSize = 0.1
	}
	return Config{
		Profile:      p,
		MeshSize:     meshSize,
		FlipY:        p.FlipY,
		Overlay:      true,
		OverlayStyle: imaging.DefaultOverlayStyle(),
		Mesher:       mesher.New(),
		Verify:       true,
	}
}

func (c *Config) logf(format string, args ...interface{}) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}

// Result lists what a run produced.
type Result struct {
	Image        *imaging.ImageInfo `json:"image"`
	Detection    *detection.Result  `json:"detection"`
	CirclesPath  string             `json:"circles_path"`
	OverlayPath  string             `json:"overlay_path,omitempty"`
	GeometryPath string             `json:"geometry_path"`
	Model        *geometry.Model    `json:"model"`
	Overlaps     []circles.Overlap  `json:"overlaps,omitempty"`
	MeshPath     string             `json:"mesh_path,omitempty"`
	Mesh         *msh.Summary       `json:"mesh,omitempty"`
	MeshProblems []string           `json:"mesh_problems,omitempty"`
}

// outputPaths derives the output file names for an image.
type outputPaths struct {
	circles, overlay, geometry, mesh string
}

func (c *Config) paths(imagePath string) outputPaths {
	dir := c.OutputDir
	if dir == "" {
		dir = filepath.Dir(imagePath)
	}
	name := c.Name
	if name == "" {
		base := filepath.Base(imagePath)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return outputPaths{
		circles:  filepath.Join(dir, name+"_circles.txt"),
		overlay:  filepath.Join(dir, name+"_detected.png"),
		geometry: filepath.Join(dir, name+".geo"),
		mesh:     filepath.Join(dir, name+".msh"),
	}
}

// DetectImage runs the detector on img, honouring cfg.Region. Circles are in
// full-image pixel coordinates.
func DetectImage(img image.Image, cfg Config) (*detection.Result, error) {
	roi, err := imaging.CropRegion(img, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("region of interest: %w", err)
	}

	result, err := detection.Detect(roi, cfg.Profile)
	if err != nil {
		return nil, err
	}

	dx := float64(img.Bounds().Min.X)
	dy := float64(img.Bounds().Min.Y)
	if !cfg.Region.Empty() {
		dx, dy = float64(cfg.Region.X1), float64(cfg.Region.Y1)
	}
	for i := range result.Circles {
		result.Circles[i].X += dx
		result.Circles[i].Y += dy
	}
	result.Width = img.Bounds().Dx()
	result.Height = img.Bounds().Dy()
	return result, nil
}

// EncodeResult describes a geometry written by EncodeFile.
type EncodeResult struct {
	GeometryPath string            `json:"geometry_path"`
	Fibres       int               `json:"fibres"`
	Model        *geometry.Model   `json:"model"`
	Overlaps     []circles.Overlap `json:"overlaps,omitempty"`
}

// EncodeFile reads a circle list, transforms it with cfg.FlipHeight and
// cfg.Scale, checks overlaps and writes the geometry to geoPath.
//
// # Errors
//
//   - *circles.EmptyInputError or *circles.ParseError from the list
//   - *circles.OverlapError when cfg.Strict and fibres overlap
//   - *geometry.CapacityError for more than geometry.MaxFibres fibres
func EncodeFile(circlesPath, geoPath string, cfg Config) (*EncodeResult, error) {
	list, err := circles.ReadFile(circlesPath, circles.LoadOptions{
		FlipHeight: cfg.FlipHeight,
		Scale:      cfg.Scale,
	})
	if err != nil {
		return nil, err
	}
	cfg.logf("Loaded %d circles from %s", len(list), circlesPath)

	overlaps := circles.Validate(list)
	if len(overlaps) > 0 {
		if cfg.Strict {
			return nil, &circles.OverlapError{Overlaps: overlaps}
		}
		for _, o := range overlaps {
			cfg.logf("Warning: fibres %d and %d overlap by %.3g", o.A, o.B, o.Depth)
		}
	}

	model, err := geometry.WriteFile(geoPath, list, geometry.Options{
		MeshSize: cfg.MeshSize,
		Source:   filepath.Base(circlesPath),
	})
	if err != nil {
		return nil, err
	}
	cfg.logf("Wrote geometry with %d fibres to %s", len(list), geoPath)

	return &EncodeResult{
		GeometryPath: geoPath,
		Fibres:       len(list),
		Model:        model,
		Overlaps:     overlaps,
	}, nil
}

// MeshResult describes a mesh produced by MeshFile.
type MeshResult struct {
	MeshPath string       `json:"mesh_path"`
	Summary  *msh.Summary `json:"summary,omitempty"`
	Problems []string     `json:"problems,omitempty"`
	Stdout   string       `json:"stdout,omitempty"`
}

// MeshFile runs the mesher on geoPath. When cfg.Verify is set the mesh is
// read back and checked against a geometry of fibres fibres.
func MeshFile(ctx context.Context, geoPath, mshPath string, fibres int, cfg Config) (*MeshResult, error) {
	g := cfg.Mesher
	if g == nil {
		g = mesher.New()
	}

	cfg.logf("Meshing %s with %s", geoPath, g.Binary)
	run, err := g.Run(ctx, geoPath, mshPath)
	if err != nil {
		return nil, err
	}
	result := &MeshResult{MeshPath: run.MeshPath, Stdout: run.Stdout}
	cfg.logf("Mesh written to %s in %s", run.MeshPath, run.Duration)

	if !cfg.Verify {
		return result, nil
	}
	summary, err := msh.SummarizeFile(mshPath)
	if err != nil {
		return nil, err
	}
	result.Summary = summary
	result.Problems = summary.Problems(fibres)
	cfg.logf("Mesh: %d nodes, %d matrix and %d fibre triangles",
		summary.Nodes, summary.MatrixTriangles, summary.FibreTriangles)
	for _, p := range result.Problems {
		cfg.logf("Warning: mesh check: %s", p)
	}
	return result, nil
}

// Run processes one micrograph end to end.
//
// No output file is written when the detector finds no fibres: the run fails
// with *circles.EmptyInputError instead.
func Run(ctx context.Context, cache *imaging.ImageCache, imagePath string, cfg Config) (*Result, error) {
	if cache == nil {
		cache = imaging.NewImageCache()
	}
	info, err := imaging.LoadImageInfo(cache, imagePath)
	if err != nil {
		return nil, err
	}
	img, err := cache.Load(imagePath)
	if err != nil {
		return nil, err
	}
	cfg.logf("Loaded %s (%dx%d %s)", imagePath, info.Width, info.Height, info.Format)

	det, err := DetectImage(img, cfg)
	if err != nil {
		return nil, err
	}
	cfg.logf("Detected %d fibres with profile %s (%s backend)", det.Count, cfg.Profile.Name, det.Backend)
	if det.Count == 0 {
		return nil, &circles.EmptyInputError{Source: imagePath}
	}

	out := cfg.paths(imagePath)
	result := &Result{Image: info, Detection: det, CirclesPath: out.circles}

	if err := circles.WriteFile(out.circles, det.Circles, cfg.Profile.RoundToPixel); err != nil {
		return nil, err
	}
	cfg.logf("Wrote circle list to %s", out.circles)

	if cfg.Overlay {
		overlay, err := imaging.DrawCircles(img, det.Circles, cfg.OverlayStyle)
		if err != nil {
			return nil, err
		}
		if err := imaging.SaveImage(overlay, out.overlay); err != nil {
			return nil, err
		}
		result.OverlayPath = out.overlay
		cfg.logf("Wrote overlay to %s", out.overlay)
	}

	encodeCfg := cfg
	encodeCfg.FlipHeight = 0
	if cfg.FlipY {
		encodeCfg.FlipHeight = float64(info.Height)
	}
	if cfg.Normalize {
		encodeCfg.Scale = info.NormalizeScale
	}
	enc, err := EncodeFile(out.circles, out.geometry, encodeCfg)
	if err != nil {
		return nil, err
	}
	result.GeometryPath = enc.GeometryPath
	result.Model = enc.Model
	result.Overlaps = enc.Overlaps

	if !cfg.Mesh {
		return result, nil
	}
	mesh, err := MeshFile(ctx, out.geometry, out.mesh, enc.Fibres, cfg)
	if err != nil {
		return nil, err
	}
	result.MeshPath = mesh.MeshPath
	result.Mesh = mesh.Summary
	result.MeshProblems = mesh.Problems
	return result, nil
}

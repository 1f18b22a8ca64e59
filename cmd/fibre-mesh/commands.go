package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/ironsheep/fibre-mesh/internal/circles"
	"github.com/ironsheep/fibre-mesh/internal/detection"
	"github.com/ironsheep/fibre-mesh/internal/imaging"
	"github.com/ironsheep/fibre-mesh/internal/mesher"
	"github.com/ironsheep/fibre-mesh/internal/msh"
	"github.com/ironsheep/fibre-mesh/internal/ocr"
	"github.com/ironsheep/fibre-mesh/internal/pipeline"
)

// pipelineLogger returns the logger pipeline stages report through, nil
// when quiet.
func pipelineLogger(quiet bool) *log.Logger {
	if quiet {
		return nil
	}
	return log.Default()
}

// signalContext is cancelled on interrupt so a running gmsh is killed.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runPipeline(args []string) error {
	fs := newFlagSet("run", "<image>...")
	var det detectionFlags
	det.register(fs)
	var flip optionalBool
	fs.Var(&flip, "flip-y", "convert image Y-down to geometry Y-up (default: the profile's)")
	outDir := fs.String("out", "", "output directory (default: next to each image)")
	meshSize := fs.Float64("lc", 0, "characteristic mesh length (default: the profile's)")
	scale := fs.Float64("scale", 0, "multiply coordinates after the flip, e.g. micrometres per pixel")
	normalize := fs.Bool("normalize", false, "scale so the larger image side is 1")
	strict := fs.Bool("strict", false, "fail on overlapping fibres")
	noOverlay := fs.Bool("no-overlay", false, "do not write the detection overlay")
	doMesh := fs.Bool("mesh", false, "run gmsh on the geometry")
	gmsh := fs.String("gmsh", "", "gmsh binary (default $FIBRE_MESH_GMSH or gmsh)")
	format := fs.String("format", "", "gmsh output format, e.g. msh22")
	asJSON := fs.Bool("json", false, "print results as JSON")
	quiet := fs.Bool("q", false, "no progress logging")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("no image given")
	}

	profile, err := det.resolve()
	if err != nil {
		return err
	}
	if debugEnabled(*verbose) {
		log.Printf("Profile: %+v", profile)
	}

	cfg := pipeline.DefaultConfig(profile)
	cfg.Region = det.region.Region
	cfg.OutputDir = *outDir
	if *meshSize > 0 {
		cfg.MeshSize = *meshSize
	}
	if flip.set {
		cfg.FlipY = flip.value
	}
	cfg.Scale = *scale
	cfg.Normalize = *normalize
	cfg.Strict = *strict
	cfg.Overlay = !*noOverlay
	cfg.Mesh = *doMesh
	if *gmsh != "" {
		cfg.Mesher.Binary = *gmsh
	}
	cfg.Mesher.Format = *format
	cfg.Logger = pipelineLogger(*quiet)

	ctx, cancel := signalContext()
	defer cancel()

	cache := imaging.NewImageCache()
	var results []*pipeline.Result
	for _, path := range fs.Args() {
		result, err := pipeline.Run(ctx, cache, path, cfg)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		cache.Evict(path)
		results = append(results, result)

		if !*asJSON {
			fmt.Printf("%s: %d fibres -> %s", path, result.Detection.Count, result.GeometryPath)
			if result.MeshPath != "" {
				fmt.Printf(" -> %s", result.MeshPath)
			}
			fmt.Println()
		}
	}

	if *asJSON {
		return printJSON(results)
	}
	return nil
}

func runDetect(args []string) error {
	fs := newFlagSet("detect", "<image>")
	var det detectionFlags
	det.register(fs)
	output := fs.String("o", "", "circle list path (default <image>_circles.txt)")
	overlay := fs.String("overlay", "", "also write the detections drawn on the image to this path")
	outline := fs.String("color", "#00FF00", "overlay outline color (hex)")
	asJSON := fs.Bool("json", false, "print the detection result as JSON")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected one image")
	}
	path := fs.Arg(0)

	profile, err := det.resolve()
	if err != nil {
		return err
	}
	cfg := pipeline.DefaultConfig(profile)
	cfg.Region = det.region.Region

	img, err := imaging.NewImageCache().Load(path)
	if err != nil {
		return err
	}
	result, err := pipeline.DetectImage(img, cfg)
	if err != nil {
		return err
	}
	if debugEnabled(*verbose) {
		log.Printf("Detected %d fibres with %s backend, votes %v", result.Count, result.Backend, result.Votes)
	}
	if result.Count == 0 {
		return &circles.EmptyInputError{Source: path}
	}

	if *output == "" {
		*output = strings.TrimSuffix(path, filepath.Ext(path)) + "_circles.txt"
	}
	if err := circles.WriteFile(*output, result.Circles, profile.RoundToPixel); err != nil {
		return err
	}

	if *overlay != "" {
		style := imaging.DefaultOverlayStyle()
		style.OutlineColor = *outline
		drawn, err := imaging.DrawCircles(img, result.Circles, style)
		if err != nil {
			return err
		}
		if err := imaging.SaveImage(drawn, *overlay); err != nil {
			return err
		}
	}

	if *asJSON {
		return printJSON(result)
	}
	fmt.Printf("%d fibres -> %s\n", result.Count, *output)
	return nil
}

func runEncode(args []string) error {
	fs := newFlagSet("encode", "<circles.txt>")
	output := fs.String("o", "", "geometry path (default <circles>.geo)")
	meshSize := fs.Float64("lc", 0.1, "characteristic mesh length")
	flipHeight := fs.Float64("flip-height", 0, "image height for the Y flip, 0 to disable")
	image := fs.String("image", "", "take the flip height from this image")
	scale := fs.Float64("scale", 0, "multiply coordinates after the flip")
	strict := fs.Bool("strict", false, "fail on overlapping fibres")
	quiet := fs.Bool("q", false, "no progress logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected one circle list")
	}
	src := fs.Arg(0)

	if *image != "" {
		info, err := imaging.LoadImageInfo(imaging.NewImageCache(), *image)
		if err != nil {
			return err
		}
		*flipHeight = float64(info.Height)
	}
	if *output == "" {
		*output = strings.TrimSuffix(src, filepath.Ext(src)) + ".geo"
	}

	result, err := pipeline.EncodeFile(src, *output, pipeline.Config{
		MeshSize:   *meshSize,
		FlipHeight: *flipHeight,
		Scale:      *scale,
		Strict:     *strict,
		Logger:     pipelineLogger(*quiet),
	})
	if err != nil {
		return err
	}
	fmt.Printf("%d fibres -> %s\n", result.Fibres, result.GeometryPath)
	return nil
}

func runMesh(args []string) error {
	fs := newFlagSet("mesh", "<geometry.geo>")
	output := fs.String("o", "", "mesh path (default <geometry>.msh)")
	dim := fs.Int("dim", 2, "mesh dimension")
	format := fs.String("format", "", "gmsh output format, e.g. msh22")
	gmsh := fs.String("gmsh", "", "gmsh binary (default $FIBRE_MESH_GMSH or gmsh)")
	fibres := fs.Int("fibres", 0, "number of fibres, for the physical group check")
	noVerify := fs.Bool("no-verify", false, "do not read the mesh back")
	quiet := fs.Bool("q", false, "no progress logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected one geometry file")
	}
	geo := fs.Arg(0)
	if *output == "" {
		*output = mesher.MeshPathFor(geo)
	}

	g := mesher.New()
	if *gmsh != "" {
		g.Binary = *gmsh
	}
	g.Dimension = *dim
	g.Format = *format

	ctx, cancel := signalContext()
	defer cancel()

	result, err := pipeline.MeshFile(ctx, geo, *output, *fibres, pipeline.Config{
		Mesher: g,
		Verify: !*noVerify,
		Logger: pipelineLogger(*quiet),
	})
	var failure *mesher.ToolFailure
	if errors.As(err, &failure) && failure.Stderr != "" {
		fmt.Fprint(os.Stderr, failure.Stderr)
	}
	if err != nil {
		return err
	}

	fmt.Println(result.MeshPath)
	if result.Summary != nil {
		printSummary(result.Summary, result.Problems)
	}
	return nil
}

func runSummary(args []string) error {
	fs := newFlagSet("summary", "<mesh.msh>")
	fibres := fs.Int("fibres", 0, "number of fibres, for the physical group check")
	asJSON := fs.Bool("json", false, "print the summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected one mesh file")
	}

	summary, err := msh.SummarizeFile(fs.Arg(0))
	if err != nil {
		return err
	}
	problems := summary.Problems(*fibres)
	if *asJSON {
		return printJSON(map[string]interface{}{"summary": summary, "problems": problems})
	}
	printSummary(summary, problems)
	return nil
}

func printSummary(s *msh.Summary, problems []string) {
	fmt.Printf("format %s: %d nodes, %d triangles\n", s.Version, s.Nodes, s.Triangles)
	fmt.Printf("  matrix (%d):     %d triangles\n", msh.TagMatrix, s.MatrixTriangles)
	fmt.Printf("  fibres (%d):     %d triangles\n", msh.TagFibres, s.FibreTriangles)
	fmt.Printf("  interfaces (%d): %d segments\n", msh.TagInterfaces, s.InterfaceSegments)
	fmt.Printf("  boundary (%d):   %d segments\n", msh.TagBoundary, s.BoundarySegments)
	for _, p := range problems {
		fmt.Printf("  warning: %s\n", p)
	}
}

func runScaleBar(args []string) error {
	fs := newFlagSet("scalebar", "<image>")
	var labelRegion, barRegion regionFlag
	fs.Var(&labelRegion, "label-region", "region holding the label x1,y1,x2,y2 (required)")
	fs.Var(&barRegion, "bar-region", "region holding the bar (default: the label region)")
	label := fs.String("label", "", "label text to use instead of OCR, e.g. \"50 µm\"")
	lang := fs.String("lang", ocr.DefaultLanguage, "tesseract language")
	asJSON := fs.Bool("json", false, "print the calibration and OCR backend as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 || labelRegion.Empty() {
		fs.Usage()
		return fmt.Errorf("expected one image and -label-region")
	}

	info := ocr.Info()
	if *label == "" && !info.Available {
		return fmt.Errorf("%s; pass -label to skip text recognition", info.Error)
	}

	img, err := imaging.NewImageCache().Load(fs.Arg(0))
	if err != nil {
		return err
	}

	var bar *ocr.ScaleBar
	if *label == "" {
		bar, err = ocr.ReadScaleBar(img, labelRegion.Region, barRegion.Region, *lang)
	} else {
		bar, err = ocr.ScaleBarFromLabel(img, *label, labelRegion.Region, barRegion.Region)
	}
	if err != nil {
		return err
	}

	if *asJSON {
		return printJSON(map[string]interface{}{
			"scale_bar": bar,
			"ocr":       info,
		})
	}
	fmt.Printf("%g %s over %d px: %g µm/px\n", bar.Label.Value, bar.Label.Unit, bar.BarPixels, bar.MicrometresPerPixel)
	if *label == "" {
		fmt.Printf("label read by %s %s\n", info.Backend, info.Version)
	}
	return nil
}

func runProfiles(args []string) error {
	fs := newFlagSet("profiles", "")
	export := fs.String("export", "", "write the named profile (with overrides) as JSON to -o")
	output := fs.String("o", "", "output path for -export (default <name>.json)")
	asJSON := fs.Bool("json", false, "print profiles as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *export != "" {
		p, err := detection.Resolve(*export)
		if err != nil {
			return err
		}
		if *output == "" {
			*output = p.Name + ".json"
		}
		if err := detection.SaveProfile(*output, p); err != nil {
			return err
		}
		fmt.Println(*output)
		return nil
	}

	list := detection.Profiles()
	if *asJSON {
		return printJSON(list)
	}
	for _, p := range list {
		marker := " "
		if p.Name == detection.DefaultProfileName {
			marker = "*"
		}
		fmt.Printf("%s %-11s r=[%d,%d] minDist=%g param1=%g param2=%g lc=%g flip=%v  %s\n",
			marker, p.Name, p.MinRadius, p.MaxRadius, p.MinDist, p.Param1, p.Param2, p.MeshSize, p.FlipY, p.Description)
	}
	return nil
}

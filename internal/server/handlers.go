package server

import (
	"context"
	"encoding/json"
	"fmt"
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

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "fibre_detect_circles").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall runs one tool and wraps its result in MCP's content
// format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// A failing or panicking tool yields codeToolFailed with the error as data;
// the session continues.
func (s *Server) handleToolsCall(req *MCPRequest) (resp *MCPResponse) {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("tool %s panicked: %v", params.Name, r)
			resp = s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", fmt.Sprintf("internal error: %v", r))
		}
	}()

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}

	return s.result(req, map[string]interface{}{
		"content": []map[string]interface{}{
			{
				"type": "text",
				"text": mustMarshalJSON(result),
			},
		},
	})
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies default values for optional parameters
//  3. Loads images from cache as needed
//  4. Calls the pipeline package or one of its stages
//  5. Returns the result or error
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	case "fibre_image_info":
		return s.handleImageInfo(args)
	case "fibre_list_profiles":
		return s.handleListProfiles(args)
	case "fibre_detect_circles":
		return s.handleDetectCircles(args)
	case "fibre_edge_preview":
		return s.handleEdgePreview(args)
	case "fibre_encode_geometry":
		return s.handleEncodeGeometry(args)
	case "fibre_generate_mesh":
		return s.handleGenerateMesh(args)
	case "fibre_mesh_summary":
		return s.handleMeshSummary(args)
	case "fibre_read_scale_bar":
		return s.handleReadScaleBar(args)
	case "fibre_process_image":
		return s.handleProcessImage(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse builds an error response. An empty data is omitted.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	e := &MCPError{Code: code, Message: message}
	if data != "" {
		e.Data = data
	}
	return &MCPResponse{JSONRPC: "2.0", ID: id, Error: e}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Image Handlers ===

type imageInfoArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageInfo(args json.RawMessage) (interface{}, error) {
	var a imageInfoArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleListProfiles(args json.RawMessage) (interface{}, error) {
	return map[string]interface{}{
		"default":  detection.DefaultProfileName,
		"profiles": detection.Profiles(),
		"ocr":      ocr.Info(),
	}, nil
}

// === Detection Handlers ===

// detectionArgs are the detector arguments shared by several tools. Nil
// overrides keep the profile's value.
type detectionArgs struct {
	Path       string          `json:"path"`
	Profile    string          `json:"profile"`
	Region     *imaging.Region `json:"region"`
	MinRadius  *int            `json:"min_radius"`
	MaxRadius  *int            `json:"max_radius"`
	MinDist    *float64        `json:"min_dist"`
	Param1     *float64        `json:"param1"`
	Param2     *float64        `json:"param2"`
	BlurKernel *int            `json:"blur_kernel"`
}

// profile resolves the named profile and applies the overrides.
func (a *detectionArgs) profile() (detection.Profile, error) {
	p, err := detection.Resolve(a.Profile)
	if err != nil {
		return p, err
	}
	minR, maxR := p.MinRadius, p.MaxRadius
	if a.MinRadius != nil {
		minR = *a.MinRadius
	}
	if a.MaxRadius != nil {
		maxR = *a.MaxRadius
	}
	p = p.WithRadii(minR, maxR)

	if a.MinDist != nil {
		p = p.WithMinDist(*a.MinDist)
	}

	param1, param2 := p.Param1, p.Param2
	if a.Param1 != nil {
		param1 = *a.Param1
	}
	if a.Param2 != nil {
		param2 = *a.Param2
	}
	p = p.WithThresholds(param1, param2)

	if a.BlurKernel != nil {
		p = p.WithBlur(*a.BlurKernel, p.BlurSigma)
	}
	return p, p.Validate()
}

// config builds a pipeline configuration from the detector arguments.
func (a *detectionArgs) config() (pipeline.Config, error) {
	p, err := a.profile()
	if err != nil {
		return pipeline.Config{}, err
	}
	cfg := pipeline.DefaultConfig(p)
	if a.Region != nil {
		cfg.Region = *a.Region
	}
	return cfg, nil
}

type detectCirclesArgs struct {
	detectionArgs
	CirclesPath  string  `json:"circles_path"`
	Preview      bool    `json:"preview"`
	PreviewScale float64 `json:"preview_scale"`
}

// DetectCirclesResult is the result of fibre_detect_circles.
type DetectCirclesResult struct {
	*detection.Result
	CirclesPath string                 `json:"circles_path,omitempty"`
	Preview     *imaging.PreviewResult `json:"preview,omitempty"`
}

func (s *Server) handleDetectCircles(args json.RawMessage) (interface{}, error) {
	var a detectCirclesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	det, err := pipeline.DetectImage(img, cfg)
	if err != nil {
		return nil, err
	}
	result := &DetectCirclesResult{Result: det}

	if a.CirclesPath != "" {
		if det.Count == 0 {
			return nil, &circles.EmptyInputError{Source: a.Path}
		}
		if err := circles.WriteFile(a.CirclesPath, det.Circles, cfg.Profile.RoundToPixel); err != nil {
			return nil, err
		}
		result.CirclesPath = a.CirclesPath
	}

	if a.Preview {
		overlay, err := imaging.DrawCircles(img, det.Circles, cfg.OverlayStyle)
		if err != nil {
			return nil, err
		}
		if a.PreviewScale == 0 {
			a.PreviewScale = 1.0
		}
		result.Preview, err = imaging.Preview(overlay, a.PreviewScale)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

type edgePreviewArgs struct {
	detectionArgs
	OutputPath string `json:"output_path"`
}

// EdgePreviewResult is the result of fibre_edge_preview.
type EdgePreviewResult struct {
	EdgePixels int                    `json:"edge_pixels"`
	Param1     float64                `json:"param1"`
	BlurKernel int                    `json:"blur_kernel"`
	OutputPath string                 `json:"output_path,omitempty"`
	Preview    *imaging.PreviewResult `json:"preview"`
}

func (s *Server) handleEdgePreview(args json.RawMessage) (interface{}, error) {
	var a edgePreviewArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	p, err := a.profile()
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	var region imaging.Region
	if a.Region != nil {
		region = *a.Region
	}
	roi, err := imaging.CropRegion(img, region)
	if err != nil {
		return nil, fmt.Errorf("region of interest: %w", err)
	}

	edges, err := detection.EdgePreview(roi, p)
	if err != nil {
		return nil, err
	}
	edgeImg := edges.Image()

	result := &EdgePreviewResult{
		EdgePixels: edges.Count(),
		Param1:     p.Param1,
		BlurKernel: p.BlurKernel,
	}
	if a.OutputPath != "" {
		if err := imaging.SaveImage(edgeImg, a.OutputPath); err != nil {
			return nil, err
		}
		result.OutputPath = a.OutputPath
	}
	result.Preview, err = imaging.Preview(edgeImg, 1.0)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// === Geometry and Mesh Handlers ===

type encodeGeometryArgs struct {
	CirclesPath string  `json:"circles_path"`
	OutputPath  string  `json:"output_path"`
	MeshSize    float64 `json:"mesh_size"`
	FlipHeight  float64 `json:"flip_height"`
	Scale       float64 `json:"scale"`
	Strict      bool    `json:"strict"`
}

func (s *Server) handleEncodeGeometry(args json.RawMessage) (interface{}, error) {
	var a encodeGeometryArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.CirclesPath == "" {
		return nil, fmt.Errorf("circles_path is required")
	}
	if a.MeshSize == 0 {
		a.MeshSize = 0.1
	}
	if a.OutputPath == "" {
		a.OutputPath = replaceExt(a.CirclesPath, ".geo")
	}

	return pipeline.EncodeFile(a.CirclesPath, a.OutputPath, pipeline.Config{
		MeshSize:   a.MeshSize,
		FlipHeight: a.FlipHeight,
		Scale:      a.Scale,
		Strict:     a.Strict,
		Logger:     s.logger,
	})
}

type generateMeshArgs struct {
	GeometryPath string `json:"geometry_path"`
	OutputPath   string `json:"output_path"`
	Dimension    int    `json:"dimension"`
	Format       string `json:"format"`
	Fibres       int    `json:"fibres"`
}

func (s *Server) handleGenerateMesh(args json.RawMessage) (interface{}, error) {
	var a generateMeshArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.GeometryPath == "" {
		return nil, fmt.Errorf("geometry_path is required")
	}
	if a.OutputPath == "" {
		a.OutputPath = mesher.MeshPathFor(a.GeometryPath)
	}

	g := *s.mesher
	if a.Dimension != 0 {
		g.Dimension = a.Dimension
	}
	if a.Format != "" {
		g.Format = a.Format
	}

	return pipeline.MeshFile(context.Background(), a.GeometryPath, a.OutputPath, a.Fibres, pipeline.Config{
		Mesher: &g,
		Verify: true,
	})
}

type meshSummaryArgs struct {
	Path   string `json:"path"`
	Fibres int    `json:"fibres"`
}

// MeshSummaryResult is the result of fibre_mesh_summary.
type MeshSummaryResult struct {
	*msh.Summary
	Problems []string `json:"problems"`
}

func (s *Server) handleMeshSummary(args json.RawMessage) (interface{}, error) {
	var a meshSummaryArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	summary, err := msh.SummarizeFile(a.Path)
	if err != nil {
		return nil, err
	}
	problems := summary.Problems(a.Fibres)
	if problems == nil {
		problems = []string{}
	}
	return &MeshSummaryResult{Summary: summary, Problems: problems}, nil
}

// === Scale Bar Handler ===

type readScaleBarArgs struct {
	Path        string          `json:"path"`
	LabelRegion imaging.Region  `json:"label_region"`
	BarRegion   *imaging.Region `json:"bar_region"`
	Label       string          `json:"label"`
	Language    string          `json:"language"`
}

// ReadScaleBarResult is the result of fibre_read_scale_bar.
type ReadScaleBarResult struct {
	*ocr.ScaleBar
	OCR ocr.OCRInfo `json:"ocr"`
}

func (s *Server) handleReadScaleBar(args json.RawMessage) (interface{}, error) {
	var a readScaleBarArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	var bar imaging.Region
	if a.BarRegion != nil {
		bar = *a.BarRegion
	}

	result := &ReadScaleBarResult{OCR: ocr.Info()}
	if a.Label == "" {
		result.ScaleBar, err = ocr.ReadScaleBar(img, a.LabelRegion, bar, a.Language)
	} else {
		result.ScaleBar, err = ocr.ScaleBarFromLabel(img, a.Label, a.LabelRegion, bar)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// === Pipeline Handler ===

type processImageArgs struct {
	detectionArgs
	OutputDir string  `json:"output_dir"`
	MeshSize  float64 `json:"mesh_size"`
	FlipY     *bool   `json:"flip_y"`
	Scale     float64 `json:"scale"`
	Normalize bool    `json:"normalize"`
	Strict    bool    `json:"strict"`
	Mesh      bool    `json:"mesh"`
}

func (s *Server) handleProcessImage(args json.RawMessage) (interface{}, error) {
	var a processImageArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	cfg.OutputDir = a.OutputDir
	if a.MeshSize > 0 {
		cfg.MeshSize = a.MeshSize
	}
	if a.FlipY != nil {
		cfg.FlipY = *a.FlipY
	}
	cfg.Scale = a.Scale
	cfg.Normalize = a.Normalize
	cfg.Strict = a.Strict
	cfg.Mesh = a.Mesh
	cfg.Mesher = s.mesher
	cfg.Logger = s.logger

	return pipeline.Run(context.Background(), s.cache, a.Path, cfg)
}

// replaceExt swaps the extension of path for ext.
func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

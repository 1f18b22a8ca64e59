package server

import (
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/ironsheep/fibre-mesh/internal/mesher"
)

// createTestImageFile creates a test image file and returns its path
func createTestImageFile(t *testing.T, width, height int, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return writePNG(t, img)
}

// createFibreImageFile draws one bright disk of radius 28 centered at
// (60, 60) on a dark 140x130 background.
func createFibreImageFile(t *testing.T) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 140, 130))
	for y := 0; y < 130; y++ {
		for x := 0; x < 140; x++ {
			v := uint8(30)
			if math.Hypot(float64(x)-60, float64(y)-60) <= 28 {
				v = 220
			}
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return writePNG(t, img)
}

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "micrograph.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// syntheticDetection are detector overrides suited to createFibreImageFile.
var syntheticDetection = map[string]interface{}{
	"min_radius": 20,
	"max_radius": 40,
	"min_dist":   40,
	"param1":     60,
	"param2":     30,
}

func withArgs(base map[string]interface{}, extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// callTool runs a tool through tools/call and decodes the JSON text
// content of a successful response.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) map[string]interface{} {
	t.Helper()

	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}
	paramsJSON, _ := json.Marshal(params)

	resp := s.handleRequest(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		t.Fatalf("%s failed: %s: %v", name, resp.Error.Message, resp.Error.Data)
	}

	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("unexpected content: %v", content)
	}

	var out map[string]interface{}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), &out); err != nil {
		t.Fatalf("tool result is not a JSON object: %v", err)
	}
	return out
}

// callToolError runs a tool and returns the JSON-RPC error it must fail with.
func callToolError(t *testing.T, s *Server, name string, args map[string]interface{}) *MCPError {
	t.Helper()

	paramsJSON, _ := json.Marshal(map[string]interface{}{"name": name, "arguments": args})
	resp := s.handleToolsCall(&MCPRequest{JSONRPC: "2.0", ID: 1, Params: paramsJSON})
	if resp.Error == nil {
		t.Fatalf("%s should fail", name)
	}
	if resp.Error.Code != -32000 {
		t.Errorf("error code: got %d, want -32000", resp.Error.Code)
	}
	return resp.Error
}

func TestHandleToolsCall_ImageInfo(t *testing.T) {
	s := New()
	imgPath := createTestImageFile(t, 200, 150, color.RGBA{0, 255, 0, 255})

	out := callTool(t, s, "fibre_image_info", map[string]interface{}{"path": imgPath})

	if out["width"] != float64(200) || out["height"] != float64(150) {
		t.Errorf("size: got %vx%v, want 200x150", out["width"], out["height"])
	}
	if out["format"] != "png" {
		t.Errorf("format: got %v, want png", out["format"])
	}
	if out["normalize_scale"] != 1.0/200 {
		t.Errorf("normalize_scale: got %v, want %v", out["normalize_scale"], 1.0/200)
	}
}

func TestHandleToolsCall_NonExistentFile(t *testing.T) {
	s := New()
	mcpErr := callToolError(t, s, "fibre_image_info", map[string]interface{}{"path": "/nonexistent/image.png"})
	if mcpErr.Message != "Tool execution failed" {
		t.Errorf("message: got %s", mcpErr.Message)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := New()
	resp := s.handleToolsCall(&MCPRequest{JSONRPC: "2.0", ID: 1, Params: json.RawMessage(`"not an object"`)})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("error: got %+v, want -32602", resp.Error)
	}
}

func TestHandleToolsCall_ListProfiles(t *testing.T) {
	s := New()
	out := callTool(t, s, "fibre_list_profiles", map[string]interface{}{})

	if out["default"] != "x50" {
		t.Errorf("default: got %v, want x50", out["default"])
	}
	profiles := out["profiles"].([]interface{})
	if len(profiles) != 3 {
		t.Errorf("got %d profiles, want 3", len(profiles))
	}
	info, ok := out["ocr"].(map[string]interface{})
	if !ok || info["backend"] == "" {
		t.Errorf("ocr: got %v, want backend info", out["ocr"])
	}
}

func TestHandleToolsCall_DetectCircles(t *testing.T) {
	s := New()
	imgPath := createFibreImageFile(t)
	circlesPath := filepath.Join(t.TempDir(), "circles.txt")

	out := callTool(t, s, "fibre_detect_circles", withArgs(syntheticDetection, map[string]interface{}{
		"path":         imgPath,
		"circles_path": circlesPath,
		"preview":      true,
	}))

	if out["count"] != float64(1) {
		t.Fatalf("count: got %v, want 1", out["count"])
	}
	c := out["circles"].([]interface{})[0].(map[string]interface{})
	if math.Abs(c["x"].(float64)-60) > 2 || math.Abs(c["r"].(float64)-28) > 2 {
		t.Errorf("circle: got %v, want about (60, 60, 28)", c)
	}

	data, err := os.ReadFile(circlesPath)
	if err != nil {
		t.Fatalf("circle list not written: %v", err)
	}
	if len(strings.Fields(string(data))) != 3 {
		t.Errorf("circle list: %q", data)
	}

	preview, ok := out["preview"].(map[string]interface{})
	if !ok || preview["image_base64"] == "" || preview["mime_type"] != "image/png" {
		t.Errorf("preview missing: %v", out["preview"])
	}
}

func TestHandleToolsCall_DetectCircles_Errors(t *testing.T) {
	s := New()
	imgPath := createFibreImageFile(t)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"unknown profile", map[string]interface{}{"path": imgPath, "profile": "x1000"}},
		{"invalid override", map[string]interface{}{"path": imgPath, "min_radius": 50, "max_radius": 10}},
		{"region outside image", map[string]interface{}{"path": imgPath, "region": map[string]interface{}{"x1": 0, "y1": 0, "x2": 999, "y2": 10}}},
		{"empty circle list", map[string]interface{}{"path": createTestImageFile(t, 50, 50, color.Black), "circles_path": filepath.Join(t.TempDir(), "c.txt")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			callToolError(t, s, "fibre_detect_circles", tt.args)
		})
	}
}

func TestHandleToolsCall_EdgePreview(t *testing.T) {
	s := New()
	imgPath := createFibreImageFile(t)
	edgePath := filepath.Join(t.TempDir(), "edges.png")

	out := callTool(t, s, "fibre_edge_preview", withArgs(syntheticDetection, map[string]interface{}{
		"path":        imgPath,
		"output_path": edgePath,
		"blur_kernel": 5,
	}))

	if n, _ := out["edge_pixels"].(float64); n < 100 {
		t.Errorf("edge_pixels: got %v, want the disk rim", out["edge_pixels"])
	}
	if out["param1"] != float64(60) || out["blur_kernel"] != float64(5) {
		t.Errorf("overrides not applied: param1=%v blur_kernel=%v", out["param1"], out["blur_kernel"])
	}
	preview := out["preview"].(map[string]interface{})
	if preview["width"] != float64(140) || preview["height"] != float64(130) {
		t.Errorf("preview size: got %vx%v, want 140x130", preview["width"], preview["height"])
	}
	if _, err := os.Stat(edgePath); err != nil {
		t.Errorf("edge map not written: %v", err)
	}

	quiet := callTool(t, s, "fibre_edge_preview", withArgs(syntheticDetection, map[string]interface{}{
		"path":   imgPath,
		"param1": 100000,
	}))
	if quiet["edge_pixels"] != float64(0) {
		t.Errorf("edge_pixels with huge param1: got %v, want 0", quiet["edge_pixels"])
	}

	callToolError(t, s, "fibre_edge_preview", map[string]interface{}{"path": imgPath, "blur_kernel": 4})
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHandleToolsCall_EncodeGeometry(t *testing.T) {
	s := New()
	circlesPath := writeFile(t, "fibres.txt", "2 2 1\n6 2 1\n")

	out := callTool(t, s, "fibre_encode_geometry", map[string]interface{}{
		"circles_path": circlesPath,
	})

	geoPath := strings.TrimSuffix(circlesPath, ".txt") + ".geo"
	if out["geometry_path"] != geoPath {
		t.Errorf("geometry_path: got %v, want %s", out["geometry_path"], geoPath)
	}
	if out["fibres"] != float64(2) {
		t.Errorf("fibres: got %v, want 2", out["fibres"])
	}
	geo, err := os.ReadFile(geoPath)
	if err != nil {
		t.Fatalf("geometry not written: %v", err)
	}
	if !strings.Contains(string(geo), "lc = 0.1;") {
		t.Error("default mesh size not applied")
	}
}

func TestHandleToolsCall_EncodeGeometry_Strict(t *testing.T) {
	s := New()
	circlesPath := writeFile(t, "fibres.txt", "2 2 2\n4 2 2\n")

	mcpErr := callToolError(t, s, "fibre_encode_geometry", map[string]interface{}{
		"circles_path": circlesPath,
		"strict":       true,
	})
	if !strings.Contains(mcpErr.Data.(string), "overlap") {
		t.Errorf("error data: %v", mcpErr.Data)
	}

	out := callTool(t, s, "fibre_encode_geometry", map[string]interface{}{
		"circles_path": circlesPath,
	})
	if overlaps, _ := out["overlaps"].([]interface{}); len(overlaps) != 1 {
		t.Errorf("overlaps: got %v, want 1", out["overlaps"])
	}
}

// cleanMesh is a small mesh in which every physical group is present.
const cleanMesh = `$MeshFormat
2.2 0 8
$EndMeshFormat
$Nodes
4
1 0 0 0
2 1 0 0
3 1 1 0
4 0 1 0
$EndNodes
$Elements
6
1 1 2 12 1 1 2
2 1 2 12 2 2 3
3 1 2 11 6 3 4
4 1 2 11 7 4 1
5 2 2 1 2000 1 2 3
6 2 2 2 1001 1 3 4
$EndElements
`

func TestHandleToolsCall_MeshSummary(t *testing.T) {
	s := New()
	mshPath := writeFile(t, "fibres.msh", cleanMesh)

	out := callTool(t, s, "fibre_mesh_summary", map[string]interface{}{"path": mshPath, "fibres": 1})

	if out["nodes"] != float64(4) {
		t.Errorf("nodes: got %v, want 4", out["nodes"])
	}
	if problems := out["problems"].([]interface{}); len(problems) != 0 {
		t.Errorf("problems: %v", problems)
	}

	bad := writeFile(t, "bad.msh", "$MeshFormat\n9.0 0 8\n$EndMeshFormat\n")
	callToolError(t, s, "fibre_mesh_summary", map[string]interface{}{"path": bad})
}

func TestHandleToolsCall_GenerateMesh(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake gmsh needs a POSIX shell")
	}
	dir := t.TempDir()
	meshFile := writeFile(t, "mesh.txt", cleanMesh)
	script := "#!/bin/sh\nout=\"\"\nwhile [ $# -gt 0 ]; do\n\tif [ \"$1\" = \"-o\" ]; then out=\"$2\"; fi\n\tshift\ndone\ncp \"" +
		meshFile + "\" \"$out\"\n"
	gmsh := filepath.Join(dir, "gmsh")
	if err := os.WriteFile(gmsh, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	geoPath := writeFile(t, "fibres.geo", "lc = 0.1;\n")

	s := New()
	s.mesher = &mesher.Gmsh{Binary: gmsh, Dimension: 2}

	out := callTool(t, s, "fibre_generate_mesh", map[string]interface{}{
		"geometry_path": geoPath,
		"fibres":        1,
	})
	if out["mesh_path"] != strings.TrimSuffix(geoPath, ".geo")+".msh" {
		t.Errorf("mesh_path: got %v", out["mesh_path"])
	}
	summary := out["summary"].(map[string]interface{})
	if summary["matrix_triangles"] != float64(1) {
		t.Errorf("matrix_triangles: got %v, want 1", summary["matrix_triangles"])
	}

	s.mesher = &mesher.Gmsh{Binary: filepath.Join(dir, "missing"), Dimension: 2}
	mcpErr := callToolError(t, s, "fibre_generate_mesh", map[string]interface{}{"geometry_path": geoPath})
	if !strings.Contains(mcpErr.Data.(string), "gmsh.info") {
		t.Errorf("missing tool error should explain installation: %v", mcpErr.Data)
	}
}

func TestHandleToolsCall_ReadScaleBar_WithLabel(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 200, 60))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	// 100 px bar, 4 px thick.
	for y := 40; y < 44; y++ {
		for x := 50; x < 150; x++ {
			img.SetGray(x, y, color.Gray{0})
		}
	}
	imgPath := writePNG(t, img)

	s := New()
	out := callTool(t, s, "fibre_read_scale_bar", map[string]interface{}{
		"path":         imgPath,
		"label":        "50 µm",
		"label_region": map[string]interface{}{"x1": 0, "y1": 0, "x2": 200, "y2": 30},
		"bar_region":   map[string]interface{}{"x1": 0, "y1": 30, "x2": 200, "y2": 60},
	})

	if out["bar_pixels"] != float64(100) {
		t.Errorf("bar_pixels: got %v, want 100", out["bar_pixels"])
	}
	if out["micrometres_per_pixel"] != 0.5 {
		t.Errorf("micrometres_per_pixel: got %v, want 0.5", out["micrometres_per_pixel"])
	}
	if _, ok := out["ocr"].(map[string]interface{}); !ok {
		t.Errorf("ocr: got %v, want backend info", out["ocr"])
	}
}

func TestHandleToolsCall_ProcessImage(t *testing.T) {
	s := New()
	imgPath := createFibreImageFile(t)
	outDir := t.TempDir()

	out := callTool(t, s, "fibre_process_image", withArgs(syntheticDetection, map[string]interface{}{
		"path":       imgPath,
		"output_dir": outDir,
		"mesh_size":  2.5,
		"flip_y":     true,
	}))

	geoPath := filepath.Join(outDir, "micrograph.geo")
	if out["geometry_path"] != geoPath {
		t.Errorf("geometry_path: got %v, want %s", out["geometry_path"], geoPath)
	}
	geo, err := os.ReadFile(geoPath)
	if err != nil {
		t.Fatalf("geometry not written: %v", err)
	}
	if !strings.Contains(string(geo), "lc = 2.5;") {
		t.Error("mesh size override not applied")
	}
	for _, name := range []string{"micrograph_circles.txt", "micrograph_detected.png"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
}

func TestExecuteTool_UnknownTool(t *testing.T) {
	s := New()

	_, err := s.executeTool("unknown_tool", json.RawMessage(`{}`))
	if err == nil {
		t.Error("executeTool should fail for unknown tool")
	}
}

func TestExecuteTool_InvalidJSON(t *testing.T) {
	s := New()

	_, err := s.executeTool("fibre_image_info", json.RawMessage(`{invalid`))
	if err == nil {
		t.Error("executeTool should fail for invalid JSON")
	}
}

func TestExecuteTool_MissingArguments(t *testing.T) {
	s := New()

	result, err := s.executeTool("fibre_list_profiles", nil)
	if err != nil || result == nil {
		t.Errorf("fibre_list_profiles without arguments: %v, %v", result, err)
	}
	if _, err := s.executeTool("fibre_encode_geometry", nil); err == nil {
		t.Error("fibre_encode_geometry should require circles_path")
	}
}

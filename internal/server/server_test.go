package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/fibre-mesh/internal/imaging"
)

// request encodes one JSON-RPC request line.
func request(t *testing.T, id interface{}, method string, params interface{}) string {
	t.Helper()
	req := map[string]interface{}{"jsonrpc": "2.0", "method": method}
	if id != nil {
		req["id"] = id
	}
	if params != nil {
		req["params"] = params
	}
	b, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func toolCall(t *testing.T, id int, name string, args map[string]interface{}) string {
	return request(t, id, "tools/call", map[string]interface{}{"name": name, "arguments": args})
}

// serve feeds lines to a session and decodes every response written.
func serve(t *testing.T, s *Server, lines ...string) []MCPResponse {
	t.Helper()
	var out bytes.Buffer
	if err := s.Serve(strings.NewReader(strings.Join(lines, "\n")), &out); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	var responses []MCPResponse
	dec := json.NewDecoder(&out)
	for {
		var resp MCPResponse
		if err := dec.Decode(&resp); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("invalid response stream: %v\n%s", err, out.String())
		}
		responses = append(responses, resp)
	}
	return responses
}

// toolText decodes the JSON text content of a tools/call result.
func toolText(t *testing.T, resp MCPResponse) map[string]interface{} {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("id %v failed: %s: %v", resp.ID, resp.Error.Message, resp.Error.Data)
	}
	result := resp.Result.(map[string]interface{})
	content := result["content"].([]interface{})
	if len(content) != 1 {
		t.Fatalf("content: %v", content)
	}
	item := content[0].(map[string]interface{})
	if item["type"] != "text" {
		t.Fatalf("content type: %v", item["type"])
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(item["text"].(string)), &out); err != nil {
		t.Fatalf("tool text is not a JSON object: %v", err)
	}
	return out
}

func quietServer() *Server {
	s := New()
	s.logger = log.New(io.Discard, "", 0)
	return s
}

func TestNew(t *testing.T) {
	s := New()
	if s.cache == nil || s.mesher == nil || s.logger == nil {
		t.Fatalf("New() left fields unset: %+v", s)
	}
}

func TestServe_Session(t *testing.T) {
	s := quietServer()
	responses := serve(t, s,
		request(t, 1, "initialize", nil),
		request(t, nil, "notifications/initialized", nil),
		"",
		"not json",
		request(t, "two", "ping", nil),
		request(t, 3, "tools/list", nil),
		request(t, 4, "resources/list", nil),
	)

	if len(responses) != 5 {
		t.Fatalf("got %d responses, want 5", len(responses))
	}

	initResult := responses[0].Result.(map[string]interface{})
	if initResult["protocolVersion"] != protocolVersion {
		t.Errorf("protocolVersion: got %v", initResult["protocolVersion"])
	}
	info := initResult["serverInfo"].(map[string]interface{})
	if info["name"] != "fibre-mesh" || info["version"] != Version {
		t.Errorf("serverInfo: got %v", info)
	}

	if e := responses[1].Error; e == nil || e.Code != codeParseError || responses[1].ID != nil {
		t.Errorf("malformed line: got %+v id %v, want %d with null id", e, responses[1].ID, codeParseError)
	}

	if responses[2].ID != "two" || responses[2].Error != nil {
		t.Errorf("ping: got %+v", responses[2])
	}

	tools := responses[3].Result.(map[string]interface{})["tools"].([]interface{})
	if len(tools) != len(GetToolDefinitions()) {
		t.Errorf("tools/list: got %d tools, want %d", len(tools), len(GetToolDefinitions()))
	}

	if e := responses[4].Error; e == nil || e.Code != codeMethodNotFound {
		t.Errorf("unknown method: got %+v, want %d", e, codeMethodNotFound)
	}
}

func TestServe_ToolsCall(t *testing.T) {
	s := quietServer()
	dir := t.TempDir()
	circlesPath := filepath.Join(dir, "fibres.txt")
	if err := os.WriteFile(circlesPath, []byte("10 10 3\n20 12 4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	mshPath := writeFile(t, "fibres.msh", cleanMesh)

	responses := serve(t, s,
		toolCall(t, 1, "fibre_list_profiles", nil),
		toolCall(t, 2, "fibre_encode_geometry", map[string]interface{}{"circles_path": circlesPath, "mesh_size": 0.5}),
		toolCall(t, 3, "fibre_mesh_summary", map[string]interface{}{"path": mshPath, "fibres": 1}),
	)
	if len(responses) != 3 {
		t.Fatalf("got %d responses, want 3", len(responses))
	}

	if out := toolText(t, responses[0]); out["default"] != "x50" {
		t.Errorf("fibre_list_profiles: default %v", out["default"])
	}

	enc := toolText(t, responses[1])
	if enc["fibres"] != float64(2) {
		t.Errorf("fibre_encode_geometry: fibres %v, want 2", enc["fibres"])
	}
	geo, err := os.ReadFile(filepath.Join(dir, "fibres.geo"))
	if err != nil {
		t.Fatalf("geometry not written: %v", err)
	}
	if !strings.Contains(string(geo), "lc = 0.5;") {
		t.Errorf("geometry does not set lc:\n%s", geo)
	}

	if out := toolText(t, responses[2]); out["nodes"] != float64(4) {
		t.Errorf("fibre_mesh_summary: nodes %v, want 4", out["nodes"])
	}
}

func TestServe_ToolErrorsKeepSession(t *testing.T) {
	s := quietServer()
	negative := writeFile(t, "negative.msh", "$MeshFormat\n2.2 0 8\n$EndMeshFormat\n$Nodes\n-1\n$EndNodes\n")

	responses := serve(t, s,
		toolCall(t, 1, "fibre_mesh_summary", map[string]interface{}{"path": negative}),
		request(t, 2, "tools/call", "not an object"),
		toolCall(t, 3, "fibre_no_such_tool", nil),
		toolCall(t, 4, "fibre_image_info", map[string]interface{}{"path": "/nonexistent/image.png"}),
		request(t, 5, "ping", nil),
	)
	if len(responses) != 5 {
		t.Fatalf("got %d responses, want 5", len(responses))
	}

	want := []int{codeToolFailed, codeInvalidParams, codeToolFailed, codeToolFailed}
	for i, code := range want {
		if e := responses[i].Error; e == nil || e.Code != code {
			t.Errorf("response %d: got %+v, want code %d", i+1, e, code)
		}
	}
	if data, _ := responses[0].Error.Data.(string); !strings.Contains(data, "negative node count") {
		t.Errorf("negative count error: got %q", data)
	}
	if responses[4].Error != nil || responses[4].ID != float64(5) {
		t.Errorf("session did not survive tool errors: %+v", responses[4])
	}
}

func TestServe_RecoversFromToolPanic(t *testing.T) {
	// A server without a mesher dereferences nil in fibre_generate_mesh.
	s := &Server{cache: imaging.NewImageCache(), logger: log.New(io.Discard, "", 0)}
	geoPath := writeFile(t, "fibres.geo", "lc = 0.1;\n")

	responses := serve(t, s,
		toolCall(t, 1, "fibre_generate_mesh", map[string]interface{}{"geometry_path": geoPath}),
		request(t, 2, "ping", nil),
	)
	if len(responses) != 2 {
		t.Fatalf("got %d responses, want 2", len(responses))
	}
	if e := responses[0].Error; e == nil || e.Code != codeToolFailed {
		t.Errorf("panicking tool: got %+v, want %d", e, codeToolFailed)
	}
	if responses[1].Error != nil {
		t.Errorf("ping after panic: %+v", responses[1].Error)
	}
}

func TestServe_OversizedLine(t *testing.T) {
	s := quietServer()
	huge := `{"jsonrpc":"2.0","id":1,"method":"ping","params":"` + strings.Repeat("x", maxRequestLine) + `"}`
	var out bytes.Buffer
	if err := s.Serve(strings.NewReader(huge), &out); err == nil {
		t.Error("Serve should fail on a request line above the limit")
	}
}

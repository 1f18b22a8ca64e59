package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/ironsheep/fibre-mesh/internal/imaging"
	"github.com/ironsheep/fibre-mesh/internal/mesher"
)

// Version is reported in serverInfo. main overrides it with the build version.
var Version = "0.1.0"

// protocolVersion is the MCP revision the server speaks.
const protocolVersion = "2024-11-05"

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeToolFailed     = -32000
)

// maxRequestLine bounds one request line; base64 previews only flow out.
const maxRequestLine = 1024 * 1024

// Server answers MCP requests for the fibre pipeline tools. Images are
// cached across calls so a client can detect, tune and re-detect on one
// micrograph without decoding it again.
type Server struct {
	cache  *imaging.ImageCache
	mesher *mesher.Gmsh
	logger *log.Logger
}

// MCPRequest is an incoming JSON-RPC request. Requests without an ID are
// notifications.
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse carries either Result or Error.
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError is a JSON-RPC error object.
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a server. The mesher binary is taken from FIBRE_MESH_GMSH
// when set. Diagnostics go to stderr, never to the protocol stream.
func New() *Server {
	return &Server{
		cache:  imaging.NewImageCache(),
		mesher: mesher.New(),
		logger: log.New(os.Stderr, "fibre-mesh: ", log.LstdFlags),
	}
}

// Run serves stdin until EOF, answering on stdout.
func (s *Server) Run() error {
	return s.Serve(os.Stdin, os.Stdout)
}

// Serve answers newline-delimited requests from in until EOF. A malformed
// line gets a parse error response and does not end the session.
func (s *Server) Serve(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRequestLine)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var resp *MCPResponse
		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Printf("malformed request: %v", err)
			resp = s.errorResponse(nil, codeParseError, "Parse error", err.Error())
		} else {
			resp = s.handleRequest(&req)
		}
		if resp == nil {
			continue
		}
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}
	return nil
}

func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.result(req, map[string]interface{}{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "fibre-mesh",
				"version": Version,
			},
		})
	case "notifications/initialized":
		return nil
	case "tools/list":
		return s.result(req, map[string]interface{}{"tools": GetToolDefinitions()})
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return s.result(req, map[string]interface{}{})
	default:
		return s.errorResponse(req.ID, codeMethodNotFound, "Method not found: "+req.Method, "")
	}
}

func (s *Server) result(req *MCPRequest, v interface{}) *MCPResponse {
	return &MCPResponse{JSONRPC: "2.0", ID: req.ID, Result: v}
}

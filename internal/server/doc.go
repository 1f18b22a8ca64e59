// Package server implements the MCP (Model Context Protocol) server for the
// fibre meshing pipeline.
//
// The server lets an MCP client drive each pipeline step on its own: inspect
// a micrograph, detect fibres, encode the geometry, run Gmsh and check the
// resulting mesh.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - fibre_image_info: dimensions, format and normalisation scale
//   - fibre_list_profiles: built-in detection profiles
//   - fibre_detect_circles: detect fibres, optionally save the circle list
//     and return an overlay preview
//   - fibre_edge_preview: the edge map detection votes from, for tuning
//   - fibre_encode_geometry: circle list to Gmsh .geo
//   - fibre_generate_mesh: run Gmsh on a .geo file
//   - fibre_mesh_summary: count nodes and elements per physical group
//   - fibre_read_scale_bar: micrometres per pixel from the scale bar
//   - fibre_process_image: the whole pipeline for one micrograph
//
// # Image Caching
//
// Images are cached by path and reused across tool calls for the lifetime
// of the server process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with code
// -32000 and the Go error string as data; a tool that panics is reported the
// same way and the session continues. Unparseable request lines get a
// -32700 response with a null id.
//
// # Usage
//
//	srv := server.New()
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server

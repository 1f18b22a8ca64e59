package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// regionSchema describes an optional rectangle argument.
func regionSchema(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": description,
		"properties": map[string]interface{}{
			"x1": map[string]interface{}{"type": "integer", "description": "Left edge X coordinate (0-based)"},
			"y1": map[string]interface{}{"type": "integer", "description": "Top edge Y coordinate (0-based)"},
			"x2": map[string]interface{}{"type": "integer", "description": "Right edge X coordinate (exclusive)"},
			"y2": map[string]interface{}{"type": "integer", "description": "Bottom edge Y coordinate (exclusive)"},
		},
		"required": []string{"x1", "y1", "x2", "y2"},
	}
}

// detectionProperties are the detector arguments shared by the detection
// and pipeline tools.
func detectionProperties() map[string]interface{} {
	return map[string]interface{}{
		"path": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the micrograph",
		},
		"profile": map[string]interface{}{
			"type":        "string",
			"description": "Built-in profile name (x50, x50-coarse, binary) or path to a JSON profile. Default x50",
		},
		"region": regionSchema("Optional region of interest; detections are reported in full-image coordinates"),
		"min_radius": map[string]interface{}{
			"type":        "integer",
			"description": "Override the profile's minimum fibre radius in pixels",
		},
		"max_radius": map[string]interface{}{
			"type":        "integer",
			"description": "Override the profile's maximum fibre radius in pixels",
		},
		"min_dist": map[string]interface{}{
			"type":        "number",
			"description": "Override the minimum distance between fibre centers in pixels",
		},
		"param1": map[string]interface{}{
			"type":        "number",
			"description": "Override the upper Canny threshold",
		},
		"param2": map[string]interface{}{
			"type":        "number",
			"description": "Override the accumulator threshold",
		},
		"blur_kernel": map[string]interface{}{
			"type":        "integer",
			"description": "Override the Gaussian blur kernel size (odd)",
		},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	detectProps := detectionProperties()
	detectProps["circles_path"] = map[string]interface{}{
		"type":        "string",
		"description": "Optional path to save the circle list (x y r per line, pixels)",
	}
	detectProps["preview"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Return the detections drawn on the image as base64 PNG. Default false",
	}
	detectProps["preview_scale"] = map[string]interface{}{
		"type":        "number",
		"description": "Scale factor for the preview image. Default 1.0",
		"default":     1.0,
	}

	edgeProps := detectionProperties()
	edgeProps["output_path"] = map[string]interface{}{
		"type":        "string",
		"description": "Optional path to save the edge map as PNG",
	}

	processProps := detectionProperties()
	processProps["output_dir"] = map[string]interface{}{
		"type":        "string",
		"description": "Directory for the outputs. Default: the image's directory",
	}
	processProps["mesh_size"] = map[string]interface{}{
		"type":        "number",
		"description": "Characteristic mesh length lc. Default: the profile's",
	}
	processProps["flip_y"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Convert image Y-down to geometry Y-up. Default: the profile's",
	}
	processProps["scale"] = map[string]interface{}{
		"type":        "number",
		"description": "Multiply coordinates after the flip, e.g. micrometres per pixel",
	}
	processProps["normalize"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Scale so the larger image dimension is 1",
	}
	processProps["strict"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Fail on overlapping fibres instead of reporting them",
	}
	processProps["mesh"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Run Gmsh on the geometry. Default false",
	}

	return []Tool{
		{
			Name:        "fibre_image_info",
			Description: "Load a micrograph and return its dimensions, format and the scale that normalises its larger side to 1.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the micrograph",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "fibre_list_profiles",
			Description: "List the built-in detection profiles and their calibration constants.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "fibre_detect_circles",
			Description: "Detect circular fibre cross-sections in a micrograph with the Hough gradient transform. Returns centers and radii in pixels, strongest first.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": detectProps,
				"required":   []string{"path"},
			},
		},
		{
			Name:        "fibre_edge_preview",
			Description: "Show the Canny edges the circle transform votes from (edges white on black, base64 PNG) with the edge pixel count. Use it to tune param1 and blur_kernel before detecting.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": edgeProps,
				"required":   []string{"path"},
			},
		},
		{
			Name:        "fibre_encode_geometry",
			Description: "Encode a circle list (x y r per line) as a Gmsh .geo geometry: fibre disks inside a rectangular matrix with physical groups 1 (matrix), 2 (fibres), 11 (interfaces) and 12 (boundary).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"circles_path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the circle list",
					},
					"output_path": map[string]interface{}{
						"type":        "string",
						"description": "Path of the .geo file. Default: the circle list with a .geo extension",
					},
					"mesh_size": map[string]interface{}{
						"type":        "number",
						"description": "Characteristic mesh length lc. Default 0.1",
						"default":     0.1,
					},
					"flip_height": map[string]interface{}{
						"type":        "number",
						"description": "Image height for the Y flip (y' = height - y). 0 disables the flip",
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Multiply coordinates after the flip. Default 1",
					},
					"strict": map[string]interface{}{
						"type":        "boolean",
						"description": "Fail on overlapping fibres instead of reporting them",
					},
				},
				"required": []string{"circles_path"},
			},
		},
		{
			Name:        "fibre_generate_mesh",
			Description: "Run Gmsh on a .geo geometry and summarise the resulting mesh. Requires gmsh on PATH or FIBRE_MESH_GMSH.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"geometry_path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the .geo file",
					},
					"output_path": map[string]interface{}{
						"type":        "string",
						"description": "Path of the .msh file. Default: the geometry with a .msh extension",
					},
					"dimension": map[string]interface{}{
						"type":        "integer",
						"description": "Mesh dimension passed to gmsh. Default 2",
						"default":     2,
					},
					"format": map[string]interface{}{
						"type":        "string",
						"description": "Gmsh output format, e.g. msh22 or msh41",
					},
					"fibres": map[string]interface{}{
						"type":        "integer",
						"description": "Number of fibres in the geometry, for the physical group check",
					},
				},
				"required": []string{"geometry_path"},
			},
		},
		{
			Name:        "fibre_mesh_summary",
			Description: "Read an ASCII Gmsh mesh (2.2 or 4.1) and count nodes, triangles and boundary segments per physical group.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the .msh file",
					},
					"fibres": map[string]interface{}{
						"type":        "integer",
						"description": "Number of fibres expected, for the physical group check",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "fibre_read_scale_bar",
			Description: "Read a micrograph's scale bar: OCR the label (e.g. '50 µm') and measure the bar to get micrometres per pixel. OCR requires a build with -tags ocr.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the micrograph",
					},
					"label_region": regionSchema("Region holding the scale-bar label"),
					"bar_region":   regionSchema("Optional region holding the bar. Default: the label region"),
					"label": map[string]interface{}{
						"type":        "string",
						"description": "Label text to use instead of OCR, e.g. '50 µm'",
					},
					"language": map[string]interface{}{
						"type":        "string",
						"description": "Tesseract language code. Default 'eng'",
						"default":     "eng",
					},
				},
				"required": []string{"path", "label_region"},
			},
		},
		{
			Name:        "fibre_process_image",
			Description: "Run the whole pipeline on one micrograph: detect fibres, write the circle list, overlay and .geo geometry, and optionally mesh it.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": processProps,
				"required":   []string{"path"},
			},
		},
	}
}

package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// thresholdProperties are the tunables accepted by stack_load and
// stack_configure. Omitted fields keep their current value.
func thresholdProperties() map[string]interface{} {
	return map[string]interface{}{
		"peak_cutoff": map[string]interface{}{
			"type":        "number",
			"description": "Confidence a pixel must exceed to become a feature (0-1). Changing it re-extracts peaks and relinks. Default 0.34",
		},
		"distance_cutoff": map[string]interface{}{
			"type":        "number",
			"description": "Link distance in pixels for child and sibling edges. Changing it relinks only. Default 4",
		},
		"range_cutoff": map[string]interface{}{
			"type":        "number",
			"description": "Minimum local dynamic range (0-1) below which a pixel is suppressed. Changing it re-refines every frame. Default 0.25",
		},
		"intensity_floor": map[string]interface{}{
			"type":        "number",
			"description": "Locally stretched value treated as background (0-1). Changing it re-refines every frame. Default 0.2",
		},
		"search_radius": map[string]interface{}{
			"type":        "integer",
			"description": "Refinement neighbourhood radius in pixels. Changing it re-refines every frame. Default 10",
		},
		"workers": map[string]interface{}{
			"type":        "integer",
			"description": "Frames processed in parallel. 0 means one per CPU",
		},
	}
}

func withThresholds(props map[string]interface{}) map[string]interface{} {
	for k, v := range thresholdProperties() {
		props[k] = v
	}
	return props
}

var pointProperties = map[string]interface{}{
	"frame": map[string]interface{}{
		"type":        "integer",
		"description": "Frame index (0-based)",
	},
	"x": map[string]interface{}{
		"type":        "number",
		"description": "X coordinate in frame pixels (0 = left)",
	},
	"y": map[string]interface{}{
		"type":        "number",
		"description": "Y coordinate in frame pixels (0 = top)",
	},
}

func withPoint(props map[string]interface{}) map[string]interface{} {
	for k, v := range pointProperties {
		props[k] = v
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Stack Lifecycle
		{
			Name:        "stack_load",
			Description: "Load a frame stack (an animated GIF, a directory of images, or a list of PNG/JPEG/GIF/TIFF files), refine every frame, extract features and link them across time. Replaces the current stack. A saved snapshot for the same stack is reused unless snapshot is \"none\".",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withThresholds(map[string]interface{}{
					"paths": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "One GIF, one directory, or image files in time order",
					},
					"snapshot": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"trak", "sqlite", "none"},
						"description": "Where to look for a saved snapshot. Default trak",
						"default":     "trak",
					},
					"db_path": map[string]interface{}{
						"type":        "string",
						"description": "SQLite database for snapshot=sqlite",
					},
				}),
				"required": []string{"paths"},
			},
		},
		{
			Name:        "stack_info",
			Description: "Describe the loaded stack: size, thresholds, rebuild epoch and per-frame feature counts and confidence statistics.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "stack_configure",
			Description: "Change detection thresholds. Only the stages the change invalidates are recomputed. Invalid values are rejected and leave the stack untouched.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": thresholdProperties(),
			},
		},
		{
			Name:        "stack_save",
			Description: "Save the grids and feature graph so the stack can be reopened without refinement.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"store": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"trak", "sqlite"},
						"description": "trak writes <source>.trak beside the frames; sqlite writes into db_path. Default trak",
						"default":     "trak",
					},
					"db_path": map[string]interface{}{
						"type":        "string",
						"description": "SQLite database for store=sqlite",
					},
				},
			},
		},

		// Feature Queries
		{
			Name:        "frame_features",
			Description: "List the features of one frame with their positions, confidences and relations.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"frame": pointProperties["frame"],
				},
				"required": []string{"frame"},
			},
		},
		{
			Name:        "feature_nearest",
			Description: "Find the feature of a frame closest to a point.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": withPoint(map[string]interface{}{}),
				"required":   []string{"frame", "x", "y"},
			},
		},
		{
			Name:        "feature_lineage",
			Description: "Enumerate everywhere an object may be in the following frames: the feature nearest to (x, y) (or the given ids), its siblings, their children and so on, one generation per frame.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withPoint(map[string]interface{}{
					"ids": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "integer"},
						"description": "Start feature ids on frame. Overrides x and y",
					},
				}),
				"required": []string{"frame"},
			},
		},
		{
			Name:        "feature_walk",
			Description: "Collect every feature and relation reachable from a feature forward (children) or backward (parents) in time, crossing sibling edges.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withPoint(map[string]interface{}{
					"id": map[string]interface{}{
						"type":        "integer",
						"description": "Start feature id. Overrides frame, x and y",
					},
					"direction": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"forward", "backward"},
						"description": "Walk direction. Default forward",
						"default":     "forward",
					},
				}),
			},
		},
		{
			Name:        "frame_edges",
			Description: "List the child edges and sibling pairs of every feature on frames start..end (inclusive). Frames outside the stack are skipped.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"start": map[string]interface{}{
						"type":        "integer",
						"description": "First frame (inclusive)",
					},
					"end": map[string]interface{}{
						"type":        "integer",
						"description": "Last frame (inclusive)",
					},
				},
				"required": []string{"start", "end"},
			},
		},

		// Visualization
		{
			Name:        "frame_render",
			Description: "Render a frame's confidence map as base64-encoded PNG with feature paths drawn on top.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"frame": pointProperties["frame"],
					"scale": map[string]interface{}{
						"type":        "integer",
						"description": "Integer magnification. Default 6",
						"default":     6,
					},
					"paths": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"shown", "all", "range", "none"},
						"description": "shown: paths through this frame; all: every edge; range: edges of frames start..end; none. Default shown",
						"default":     "shown",
					},
					"start": map[string]interface{}{
						"type":        "integer",
						"description": "First frame for paths=range",
					},
					"end": map[string]interface{}{
						"type":        "integer",
						"description": "Last frame for paths=range",
					},
					"dots": map[string]interface{}{
						"type":        "boolean",
						"description": "Mark the features of this frame. Default true",
						"default":     true,
					},
					"labels": map[string]interface{}{
						"type":        "boolean",
						"description": "Write feature ids next to the marks",
					},
					"lineage": map[string]interface{}{
						"type":        "object",
						"description": "Highlight the lineage of the feature nearest to {frame, x, y}",
						"properties":  withPoint(map[string]interface{}{}),
					},
					"region": map[string]interface{}{
						"type":        "object",
						"description": "Crop to x1,y1 (inclusive) - x2,y2 (exclusive) in frame pixels",
						"properties": map[string]interface{}{
							"x1": map[string]interface{}{"type": "integer"},
							"y1": map[string]interface{}{"type": "integer"},
							"x2": map[string]interface{}{"type": "integer"},
							"y2": map[string]interface{}{"type": "integer"},
						},
					},
				},
				"required": []string{"frame"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}

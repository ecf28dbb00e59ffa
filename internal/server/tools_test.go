package server

import (
	"testing"
)

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	expectedTools := []string{
		"stack_load",
		"stack_info",
		"stack_configure",
		"stack_save",
		"frame_features",
		"feature_nearest",
		"feature_lineage",
		"feature_walk",
		"frame_edges",
		"frame_render",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("tool count: got %d, want %d", len(tools), len(expectedTools))
	}

	toolMap := make(map[string]Tool)
	for _, tool := range tools {
		if _, dup := toolMap[tool.Name]; dup {
			t.Errorf("duplicate tool %s", tool.Name)
		}
		toolMap[tool.Name] = tool
	}

	for _, name := range expectedTools {
		if _, ok := toolMap[name]; !ok {
			t.Errorf("Expected tool %s not found", name)
		}
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Description == "" {
				t.Error("Tool description is empty")
			}
			if tool.InputSchema["type"] != "object" {
				t.Errorf("InputSchema type: got %v, want 'object'", tool.InputSchema["type"])
			}
			props, ok := tool.InputSchema["properties"].(map[string]interface{})
			if !ok {
				t.Fatalf("InputSchema properties: got %T", tool.InputSchema["properties"])
			}

			// Every required field must be declared.
			if req, ok := tool.InputSchema["required"].([]string); ok {
				for _, field := range req {
					if _, ok := props[field]; !ok {
						t.Errorf("required field %s is not a property", field)
					}
				}
			}
		})
	}
}

func TestToolDefinitions_Thresholds(t *testing.T) {
	want := []string{"peak_cutoff", "distance_cutoff", "range_cutoff", "intensity_floor", "search_radius", "workers"}

	for _, tool := range GetToolDefinitions() {
		if tool.Name != "stack_load" && tool.Name != "stack_configure" {
			continue
		}
		props := tool.InputSchema["properties"].(map[string]interface{})
		for _, name := range want {
			if _, ok := props[name]; !ok {
				t.Errorf("%s: missing threshold %s", tool.Name, name)
			}
		}
	}
}

func TestHandleToolsList(t *testing.T) {
	s := New()
	resp := s.handleToolsList(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/list"})

	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("Result type: got %T", resp.Result)
	}
	tools, ok := result["tools"].([]Tool)
	if !ok {
		t.Fatalf("tools type: got %T", result["tools"])
	}
	if len(tools) != len(GetToolDefinitions()) {
		t.Errorf("tools: got %d", len(tools))
	}
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew(t *testing.T) {
	s := New()
	if s == nil {
		t.Fatal("New() returned nil")
	}
	if s.cache == nil {
		t.Fatal("New() did not initialize cache")
	}
	if s.logger == nil {
		t.Fatal("New() did not set a logger")
	}
}

func TestMCPRequest_Unmarshal(t *testing.T) {
	tests := []struct {
		name       string
		json       string
		wantID     interface{}
		wantMethod string
	}{
		{
			"string id",
			`{"jsonrpc":"2.0","id":"test-1","method":"tools/list"}`,
			"test-1",
			"tools/list",
		},
		{
			"number id",
			`{"jsonrpc":"2.0","id":42,"method":"ping"}`,
			float64(42), // JSON numbers decode as float64
			"ping",
		},
		{
			"null id",
			`{"jsonrpc":"2.0","id":null,"method":"initialize"}`,
			nil,
			"initialize",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req MCPRequest
			if err := json.Unmarshal([]byte(tt.json), &req); err != nil {
				t.Fatalf("Failed to unmarshal: %v", err)
			}

			if req.ID != tt.wantID {
				t.Errorf("ID: got %v (%T), want %v (%T)", req.ID, req.ID, tt.wantID, tt.wantID)
			}
			if req.Method != tt.wantMethod {
				t.Errorf("Method: got %s, want %s", req.Method, tt.wantMethod)
			}
		})
	}
}

func TestHandleRequest_Methods(t *testing.T) {
	s := New(WithLogger(quietLogger()))
	ctx := context.Background()

	tests := []struct {
		method    string
		wantNil   bool
		wantError int
	}{
		{"initialize", false, 0},
		{"notifications/initialized", true, 0},
		{"tools/list", false, 0},
		{"ping", false, 0},
		{"resources/list", false, -32601},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			resp := s.handleRequest(ctx, &MCPRequest{JSONRPC: "2.0", ID: 1, Method: tt.method})
			if tt.wantNil {
				if resp != nil {
					t.Fatalf("expected no response, got %+v", resp)
				}
				return
			}
			if resp == nil {
				t.Fatal("handleRequest returned nil")
			}
			if tt.wantError != 0 {
				if resp.Error == nil || resp.Error.Code != tt.wantError {
					t.Fatalf("Error: got %+v, want code %d", resp.Error, tt.wantError)
				}
				return
			}
			if resp.Error != nil {
				t.Fatalf("Unexpected error: %+v", resp.Error)
			}
		})
	}
}

func TestHandleInitialize(t *testing.T) {
	s := New()
	resp := s.handleInitialize(&MCPRequest{JSONRPC: "2.0", ID: "init"})

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("Result type: got %T", resp.Result)
	}
	info := result["serverInfo"].(map[string]interface{})
	if info["name"] != "dot-tracker-mcp" {
		t.Errorf("serverInfo.name: got %v", info["name"])
	}
	if info["version"] != Version {
		t.Errorf("serverInfo.version: got %v, want %s", info["version"], Version)
	}
}

func TestRun(t *testing.T) {
	in := strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		``,
		`not json`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"stack_info","arguments":{}}}`,
	}, "\n"))
	var out bytes.Buffer

	s := New(WithIO(in, &out), WithLogger(quietLogger()))
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	dec := json.NewDecoder(&out)
	var responses []MCPResponse
	for dec.More() {
		var resp MCPResponse
		if err := dec.Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		responses = append(responses, resp)
	}

	if len(responses) != 3 {
		t.Fatalf("responses: got %d, want 3", len(responses))
	}
	if responses[0].Error != nil {
		t.Errorf("ping: unexpected error %+v", responses[0].Error)
	}
	if responses[1].Error == nil || responses[1].Error.Code != -32700 {
		t.Errorf("bad line: got %+v, want parse error", responses[1].Error)
	}
	if responses[2].Error == nil || responses[2].Error.Code != -32000 {
		t.Errorf("stack_info without a stack: got %+v, want -32000", responses[2].Error)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	s := New(WithIO(strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n"), &out), WithLogger(quietLogger()))
	if err := s.Run(ctx); err == nil {
		t.Fatal("expected context error")
	}
	if out.Len() != 0 {
		t.Errorf("expected no output, got %q", out.String())
	}
}

func TestErrorResponse(t *testing.T) {
	s := New()
	resp := s.errorResponse(7, -32602, "Invalid params", "detail")

	if resp.JSONRPC != "2.0" || resp.ID != 7 {
		t.Errorf("envelope: got %+v", resp)
	}
	if resp.Error.Code != -32602 || resp.Error.Message != "Invalid params" || resp.Error.Data != "detail" {
		t.Errorf("Error: got %+v", resp.Error)
	}
	if resp.Result != nil {
		t.Error("Result should be nil on error")
	}
}

func TestMustMarshalJSON(t *testing.T) {
	got := mustMarshalJSON(map[string]int{"a": 1})
	if got != "{\n  \"a\": 1\n}" {
		t.Errorf("got %q", got)
	}
	if got := mustMarshalJSON(func() {}); got != "" {
		t.Errorf("unmarshalable value: got %q, want empty", got)
	}
}

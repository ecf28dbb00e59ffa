// Package server implements the MCP (Model Context Protocol) server for the dot tracker.
//
// This package provides a JSON-RPC 2.0 server that exposes a loaded image
// stack, its refined confidence grids and its linked feature graph through
// the MCP protocol.
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
// Stack Lifecycle:
//   - stack_load: Load frames, restore a saved graph or build one
//   - stack_info: Dimensions, thresholds and per-frame summary
//   - stack_configure: Change thresholds and rebuild only what they affect
//   - stack_save: Persist the graph to a .trak file or SQLite
//
// Feature Queries:
//   - frame_features: Features of one frame
//   - feature_nearest: Feature closest to a point
//   - feature_lineage: Descendants of a feature, generation by generation
//   - feature_walk: Every feature reachable forward or backward in time
//   - frame_edges: Relations with a source in a frame range
//
// Visualization:
//   - frame_render: Confidence grid with paths and dots as a PNG
//
// # Sessions
//
// One stack is loaded at a time. Queries read the session's current result
// and never wait for a rebuild; stack_configure swaps the result atomically
// when the rebuild succeeds and leaves it untouched when it fails.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure), -32602 (bad arguments) or
//     standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
package server

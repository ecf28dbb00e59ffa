package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/ironsheep/dot-tracker-mcp/internal/config"
	"github.com/ironsheep/dot-tracker-mcp/internal/graph"
	"github.com/ironsheep/dot-tracker-mcp/internal/imaging"
	"github.com/ironsheep/dot-tracker-mcp/internal/pipeline"
	"github.com/ironsheep/dot-tracker-mcp/internal/store"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "stack_load", "feature_nearest").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Argument decoding errors return -32602; tool execution errors return a
// JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		var ae *argsError
		if errors.As(err, &ae) {
			return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
		}
		s.logger.Debug("tool failed", slog.String("tool", params.Name), slog.String("error", err.Error()))
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// argsError marks a malformed tool argument payload.
type argsError struct{ err error }

func (e *argsError) Error() string { return "invalid arguments: " + e.err.Error() }
func (e *argsError) Unwrap() error { return e.err }

// decodeArgs unmarshals tool arguments. Empty arguments decode as {}.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return &argsError{err: err}
	}
	return nil
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies default values for optional parameters
//  3. Takes the current session result (queries never block a rebuild)
//  4. Calls the appropriate graph/pipeline/imaging function
//  5. Returns the result or error
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Stack Lifecycle
	case "stack_load":
		return s.handleStackLoad(ctx, args)
	case "stack_info":
		return s.handleStackInfo(args)
	case "stack_configure":
		return s.handleStackConfigure(ctx, args)
	case "stack_save":
		return s.handleStackSave(ctx, args)

	// Feature Queries
	case "frame_features":
		return s.handleFrameFeatures(args)
	case "feature_nearest":
		return s.handleFeatureNearest(args)
	case "feature_lineage":
		return s.handleFeatureLineage(args)
	case "feature_walk":
		return s.handleFeatureWalk(args)
	case "frame_edges":
		return s.handleFrameEdges(args)

	// Visualization
	case "frame_render":
		return s.handleFrameRender(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Stack Lifecycle Handlers ===

// thresholdArgs holds optional threshold overrides.
type thresholdArgs struct {
	PeakCutoff     *float64 `json:"peak_cutoff"`
	DistanceCutoff *float64 `json:"distance_cutoff"`
	RangeCutoff    *float64 `json:"range_cutoff"`
	IntensityFloor *float64 `json:"intensity_floor"`
	SearchRadius   *int     `json:"search_radius"`
	Workers        *int     `json:"workers"`
}

// apply returns base with every given override set.
func (a thresholdArgs) apply(base config.Config) config.Config {
	if a.PeakCutoff != nil {
		base.PeakCutoff = *a.PeakCutoff
	}
	if a.DistanceCutoff != nil {
		base.DistanceCutoff = *a.DistanceCutoff
	}
	if a.RangeCutoff != nil {
		base.RangeCutoff = *a.RangeCutoff
	}
	if a.IntensityFloor != nil {
		base.IntensityFloor = *a.IntensityFloor
	}
	if a.SearchRadius != nil {
		base.SearchRadius = *a.SearchRadius
	}
	if a.Workers != nil {
		base.Workers = *a.Workers
	}
	return base
}

type stackLoadArgs struct {
	thresholdArgs
	Paths    []string `json:"paths"`
	Snapshot string   `json:"snapshot"`
	DBPath   string   `json:"db_path"`
}

type stackResult struct {
	Source   string            `json:"source"`
	Info     imaging.StackInfo `json:"info"`
	Config   config.Config     `json:"config"`
	Epoch    uint64            `json:"epoch"`
	Restored bool              `json:"restored,omitempty"`
	Scope    string            `json:"scope,omitempty"`
	Summary  pipeline.Summary  `json:"summary"`
}

func (s *Server) handleStackLoad(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a stackLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if len(a.Paths) == 0 {
		return nil, &argsError{err: errors.New("paths is required")}
	}
	if a.Snapshot == "" {
		a.Snapshot = "trak"
	}

	cfg := a.apply(config.Default())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	stack, err := s.cache.Load(a.Paths...)
	if err != nil {
		return nil, err
	}

	snap, err := s.loadSnapshot(ctx, a.Snapshot, a.DBPath, stack.Source)
	if err != nil {
		return nil, err
	}

	sess, restored, err := pipeline.OpenSession(ctx, stack.Frames, snap, cfg,
		pipeline.WithLogger(s.logger), pipeline.WithSource(stack.Source))
	if err != nil {
		return nil, err
	}
	s.setCurrent(sess, stack)

	res, epoch := sess.Current()
	return &stackResult{
		Source:   stack.Source,
		Info:     stack.Info,
		Config:   res.Config,
		Epoch:    epoch,
		Restored: restored,
		Summary:  pipeline.Summarize(res),
	}, nil
}

// loadSnapshot returns the saved snapshot for source from the named store,
// or nil when there is none.
func (s *Server) loadSnapshot(ctx context.Context, kind, dbPath, source string) (*pipeline.Snapshot, error) {
	var st store.Store
	switch kind {
	case "none":
		return nil, nil
	case "trak":
		st = store.NewFileStore()
	case "sqlite":
		db, err := s.openSQLite(dbPath)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		st = db
	default:
		return nil, &argsError{err: fmt.Errorf("unknown snapshot store %q", kind)}
	}

	snap, err := st.Load(ctx, source)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logger.Warn("ignoring unreadable snapshot",
			slog.String("source", source),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
	return snap, nil
}

func (s *Server) openSQLite(dbPath string) (*store.SQLiteStore, error) {
	if dbPath == "" {
		dbPath = s.dbPath
	}
	if dbPath == "" {
		return nil, &argsError{err: errors.New("db_path is required for the sqlite store")}
	}
	return store.OpenSQLite(dbPath)
}

func (s *Server) handleStackInfo(args json.RawMessage) (interface{}, error) {
	sess, stack, err := s.current()
	if err != nil {
		return nil, err
	}
	res, epoch := sess.Current()
	return &stackResult{
		Source:  stack.Source,
		Info:    stack.Info,
		Config:  res.Config,
		Epoch:   epoch,
		Summary: pipeline.Summarize(res),
	}, nil
}

func (s *Server) handleStackConfigure(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a thresholdArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, stack, err := s.current()
	if err != nil {
		return nil, err
	}

	scope, err := sess.Update(ctx, a.apply)
	if err != nil {
		return nil, err
	}

	res, epoch := sess.Current()
	return &stackResult{
		Source:  stack.Source,
		Info:    stack.Info,
		Config:  res.Config,
		Epoch:   epoch,
		Scope:   scope.String(),
		Summary: pipeline.Summarize(res),
	}, nil
}

type stackSaveArgs struct {
	Store  string `json:"store"`
	DBPath string `json:"db_path"`
}

func (s *Server) handleStackSave(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a stackSaveArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, stack, err := s.current()
	if err != nil {
		return nil, err
	}

	var st store.Store
	switch a.Store {
	case "", "trak":
		a.Store = "trak"
		st = store.NewFileStore()
	case "sqlite":
		db, err := s.openSQLite(a.DBPath)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		st = db
	default:
		return nil, &argsError{err: fmt.Errorf("unknown store %q", a.Store)}
	}

	location, err := st.Save(ctx, stack.Source, sess.Snapshot())
	if err != nil {
		return nil, err
	}
	s.logger.Info("stack saved", slog.String("store", a.Store), slog.String("location", location))
	return map[string]interface{}{
		"store":    a.Store,
		"location": location,
		"epoch":    sess.Epoch(),
	}, nil
}

// === Feature Query Handlers ===

type frameArgs struct {
	Frame int `json:"frame"`
}

func (s *Server) handleFrameFeatures(args json.RawMessage) (interface{}, error) {
	var a frameArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	res, err := s.result()
	if err != nil {
		return nil, err
	}
	features, err := res.Graph.Features(a.Frame)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"frame":    a.Frame,
		"count":    len(features),
		"features": features,
	}, nil
}

type pointArgs struct {
	Frame int     `json:"frame"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

func (s *Server) handleFeatureNearest(args json.RawMessage) (interface{}, error) {
	var a pointArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	res, err := s.result()
	if err != nil {
		return nil, err
	}
	f, ok, err := res.Graph.Nearest(a.Frame, graph.Point{X: a.X, Y: a.Y})
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]interface{}{"found": false, "frame": a.Frame}, nil
	}
	return map[string]interface{}{
		"found":    true,
		"distance": f.Pos.Distance(graph.Point{X: a.X, Y: a.Y}),
		"feature":  f,
	}, nil
}

type lineageArgs struct {
	pointArgs
	IDs []graph.FeatureID `json:"ids"`
}

// lineageGeneration is one frame of a lineage expansion.
type lineageGeneration struct {
	Frame    int              `json:"frame"`
	Features []*graph.Feature `json:"features"`
}

func (s *Server) handleFeatureLineage(args json.RawMessage) (interface{}, error) {
	var a lineageArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	res, err := s.result()
	if err != nil {
		return nil, err
	}

	gens, err := lineageFrom(res.Graph, a.pointArgs, a.IDs)
	if err != nil {
		return nil, err
	}
	out := make([]lineageGeneration, len(gens))
	for i, gen := range gens {
		out[i] = lineageGeneration{Frame: a.Frame + i, Features: make([]*graph.Feature, len(gen))}
		for j, id := range gen {
			if out[i].Features[j], err = res.Graph.Feature(id); err != nil {
				return nil, err
			}
		}
	}
	return map[string]interface{}{
		"start_frame": a.Frame,
		"generations": out,
	}, nil
}

// lineageFrom expands from ids, or from the feature nearest to p when ids
// is empty. A frame without features yields an empty expansion.
func lineageFrom(g *graph.Graph, p pointArgs, ids []graph.FeatureID) ([][]graph.FeatureID, error) {
	if len(ids) == 0 {
		f, ok, err := g.Nearest(p.Frame, graph.Point{X: p.X, Y: p.Y})
		if err != nil {
			return nil, err
		}
		if !ok {
			return [][]graph.FeatureID{}, nil
		}
		ids = []graph.FeatureID{f.ID}
	}
	return g.ExpandLineage(ids, p.Frame)
}

type walkArgs struct {
	pointArgs
	ID        *graph.FeatureID `json:"id"`
	Direction string           `json:"direction"`
}

func (s *Server) handleFeatureWalk(args json.RawMessage) (interface{}, error) {
	var a walkArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	dir, err := graph.ParseDirection(a.Direction)
	if err != nil {
		return nil, &argsError{err: err}
	}
	res, err := s.result()
	if err != nil {
		return nil, err
	}

	var start graph.FeatureID
	if a.ID != nil {
		start = *a.ID
	} else {
		f, ok, err := res.Graph.Nearest(a.Frame, graph.Point{X: a.X, Y: a.Y})
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("frame %d has no features", a.Frame)
		}
		start = f.ID
	}

	walk, err := res.Graph.Walk(start, dir, graph.NewVisitSet(res.Graph))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"start":     walk.Start,
		"direction": walk.Direction.String(),
		"visited":   walk.Visited,
		"edges":     walk.Edges,
	}, nil
}

type edgesArgs struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (s *Server) handleFrameEdges(args json.RawMessage) (interface{}, error) {
	var a edgesArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	res, err := s.result()
	if err != nil {
		return nil, err
	}
	edges := res.Graph.EdgesInRange(a.Start, a.End)
	if edges == nil {
		edges = []graph.Edge{}
	}
	return map[string]interface{}{
		"start": a.Start,
		"end":   a.End,
		"count": len(edges),
		"edges": edges,
	}, nil
}

// === Visualization Handlers ===

type frameRenderArgs struct {
	Frame   int        `json:"frame"`
	Scale   int        `json:"scale"`
	Paths   string     `json:"paths"`
	Start   int        `json:"start"`
	End     int        `json:"end"`
	Dots    *bool      `json:"dots"`
	Labels  bool       `json:"labels"`
	Lineage *pointArgs `json:"lineage"`
	Region  *struct {
		X1 int `json:"x1"`
		Y1 int `json:"y1"`
		X2 int `json:"x2"`
		Y2 int `json:"y2"`
	} `json:"region"`
}

func (s *Server) handleFrameRender(args json.RawMessage) (interface{}, error) {
	var a frameRenderArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = imaging.DefaultScale
	}
	mode, err := imaging.ParsePathMode(a.Paths)
	if err != nil {
		return nil, &argsError{err: err}
	}
	res, err := s.result()
	if err != nil {
		return nil, err
	}
	if a.Frame < 0 || a.Frame >= res.FrameCount() {
		return nil, fmt.Errorf("%w: frame %d (stack has %d)", graph.ErrOutOfRange, a.Frame, res.FrameCount())
	}

	opts := imaging.OverlayOptions{
		Mode:     mode,
		Frame:    a.Frame,
		Start:    a.Start,
		End:      a.End,
		ShowDots: a.Dots == nil || *a.Dots,
		Labels:   a.Labels,
		Palette:  imaging.DefaultPalette(),
	}
	if a.Lineage != nil {
		gens, err := lineageFrom(res.Graph, *a.Lineage, nil)
		if err != nil {
			return nil, err
		}
		opts.Lineage, opts.LineageFrame = gens, a.Lineage.Frame
	}
	overlay, err := imaging.BuildOverlay(res.Graph, opts)
	if err != nil {
		return nil, err
	}

	ropts := imaging.RenderOptions{Scale: a.Scale, Overlay: overlay}
	if a.Region != nil {
		ropts.Region = image.Rect(a.Region.X1, a.Region.Y1, a.Region.X2, a.Region.Y2)
		if ropts.Region.Empty() {
			return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
		}
	}
	img, err := imaging.Render(res.Grids[a.Frame], ropts)
	if err != nil {
		return nil, err
	}
	return imaging.EncodePNG(img)
}

// result returns the current pipeline result.
func (s *Server) result() (*pipeline.Result, error) {
	sess, _, err := s.current()
	if err != nil {
		return nil, err
	}
	res, _ := sess.Current()
	return res, nil
}

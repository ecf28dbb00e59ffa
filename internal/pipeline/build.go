package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/dot-tracker-mcp/internal/config"
	"github.com/ironsheep/dot-tracker-mcp/internal/detection"
	"github.com/ironsheep/dot-tracker-mcp/internal/graph"
	"github.com/ironsheep/dot-tracker-mcp/internal/refine"
)

// Result is everything derived from one stack under one configuration.
// It is immutable once returned.
type Result struct {
	Config config.Config
	Range  refine.IntensityRange
	Width  int
	Height int

	// Grids holds one confidence grid per frame.
	Grids []*refine.ConfidenceGrid

	// Peaks holds the peaks of every frame in detection order. Feature ids
	// in Graph follow the same order, frame by frame.
	Peaks [][]detection.Peak

	Graph *graph.Graph
}

// FrameCount returns the stack length.
func (r *Result) FrameCount() int {
	return len(r.Grids)
}

// BuildStack runs every stage over frames.
//
// Parameters:
//   - ctx: Cancels refinement between frames.
//   - frames: The full stack, in time order. See refine.ValidateStack.
//   - cfg: Tunables. Must be valid.
//
// Returns:
//   - *Result: The grids, peaks and linked graph.
//   - error: ErrInvalidStackShape, ErrInvalidConfig or the context error.
func BuildStack(ctx context.Context, frames []*refine.Frame, cfg config.Config) (*Result, error) {
	ctx, span := tracer.Start(ctx, "pipeline.BuildStack",
		trace.WithAttributes(attribute.Int("frames", len(frames))),
	)
	defer span.End()

	start := time.Now()
	res, err := buildStack(ctx, frames, cfg)
	recordResult(ctx, span, "full", start, res, err)
	return res, err
}

func buildStack(ctx context.Context, frames []*refine.Frame, cfg config.Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng, err := refine.StackRange(frames)
	if err != nil {
		return nil, err
	}
	grids, err := RefineStack(ctx, frames, rng, cfg)
	if err != nil {
		return nil, err
	}
	peaks, err := ExtractStack(ctx, grids, cfg)
	if err != nil {
		return nil, err
	}
	g, err := LinkStack(ctx, peaks, cfg)
	if err != nil {
		return nil, err
	}
	return &Result{
		Config: cfg,
		Range:  rng,
		Width:  frames[0].Width,
		Height: frames[0].Height,
		Grids:  grids,
		Peaks:  peaks,
		Graph:  g,
	}, nil
}

// RefineStack refines every frame against rng with at most cfg.WorkerCount()
// frames in flight.
//
// On cancellation the returned slice still holds the grids finished so far;
// entries for frames that were never refined are nil.
func RefineStack(ctx context.Context, frames []*refine.Frame, rng refine.IntensityRange, cfg config.Config) ([]*refine.ConfidenceGrid, error) {
	ctx, span := tracer.Start(ctx, "pipeline.RefineStack")
	defer span.End()

	params := cfg.RefineParams()
	grids := make([]*refine.ConfidenceGrid, len(frames))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.WorkerCount())
	for i, f := range frames {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t := time.Now()
			grids[i] = refine.Refine(f, rng, params)
			slog.DebugContext(gctx, "frame refined",
				slog.Int("frame", i),
				slog.Duration("elapsed", time.Since(t)),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return grids, fmt.Errorf("refine stack: %w", err)
	}
	return grids, nil
}

// ExtractStack extracts the peaks of every grid.
func ExtractStack(ctx context.Context, grids []*refine.ConfidenceGrid, cfg config.Config) ([][]detection.Peak, error) {
	ctx, span := tracer.Start(ctx, "pipeline.ExtractStack")
	defer span.End()

	peaks := make([][]detection.Peak, len(grids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.WorkerCount())
	for i, grid := range grids {
		i, grid := i, grid
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if grid == nil {
				return fmt.Errorf("frame %d has no confidence grid", i)
			}
			peaks[i] = detection.ExtractPeaks(grid, cfg.PeakCutoff)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("extract peaks: %w", err)
	}
	return peaks, nil
}

// LinkStack creates one feature per peak and links the stack.
func LinkStack(ctx context.Context, peaks [][]detection.Peak, cfg config.Config) (*graph.Graph, error) {
	g := graph.New(len(peaks))
	for frame, ps := range peaks {
		for _, p := range ps {
			pos := graph.Point{X: float64(p.X), Y: float64(p.Y)}
			if _, err := g.AddFeature(frame, pos, p.Confidence); err != nil {
				return nil, err
			}
		}
	}
	if err := linkGraph(ctx, g, cfg); err != nil {
		return nil, err
	}
	return g, nil
}

// linkGraph computes the edges of every frame of g in parallel and records
// them in frame order. g must carry no relations yet.
func linkGraph(ctx context.Context, g *graph.Graph, cfg config.Config) error {
	ctx, span := tracer.Start(ctx, "pipeline.linkGraph")
	defer span.End()

	n := g.FrameCount()
	frameFeatures := make([][]*graph.Feature, n)
	for i := range frameFeatures {
		fs, err := g.Features(i)
		if err != nil {
			return err
		}
		frameFeatures[i] = fs
	}

	// perFrame[i] holds the sibling edges of frame i followed by its child
	// edges into frame i+1. Each goroutine writes only its own slot.
	perFrame := make([][]graph.Edge, n)
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(cfg.WorkerCount())
	for i := range frameFeatures {
		i := i
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			edges := graph.LinkSiblings(frameFeatures[i], cfg.DistanceCutoff)
			if i+1 < n {
				edges = append(edges, graph.LinkAdjacent(frameFeatures[i], frameFeatures[i+1], cfg.DistanceCutoff)...)
			}
			perFrame[i] = edges
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("link stack: %w", err)
	}

	for i, edges := range perFrame {
		if err := g.AddEdges(edges); err != nil {
			return fmt.Errorf("link frame %d: %w", i, err)
		}
	}
	return nil
}

// Rebuild derives a Result for cfg from prev, redoing only the stages that
// scope invalidates. frames are needed only for config.ScopeRefine.
// prev is never modified.
func Rebuild(ctx context.Context, prev *Result, frames []*refine.Frame, cfg config.Config, scope config.Scope) (*Result, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Rebuild",
		trace.WithAttributes(attribute.String("scope", scope.String())),
	)
	defer span.End()

	start := time.Now()
	res, err := rebuild(ctx, prev, frames, cfg, scope)
	recordResult(ctx, span, scope.String(), start, res, err)
	return res, err
}

func rebuild(ctx context.Context, prev *Result, frames []*refine.Frame, cfg config.Config, scope config.Scope) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	next := *prev
	next.Config = cfg

	switch {
	case scope.Includes(config.ScopeRefine):
		if len(frames) == 0 {
			return nil, ErrFramesRequired
		}
		if len(frames) != prev.FrameCount() {
			return nil, fmt.Errorf("%w: %d frames, result has %d",
				refine.ErrInvalidStackShape, len(frames), prev.FrameCount())
		}
		return buildStack(ctx, frames, cfg)

	case scope.Includes(config.ScopePeaks):
		peaks, err := ExtractStack(ctx, prev.Grids, cfg)
		if err != nil {
			return nil, err
		}
		g, err := LinkStack(ctx, peaks, cfg)
		if err != nil {
			return nil, err
		}
		next.Peaks, next.Graph = peaks, g

	case scope.Includes(config.ScopeLinks):
		g := prev.Graph.WithoutRelations()
		if err := linkGraph(ctx, g, cfg); err != nil {
			return nil, err
		}
		next.Graph = g
	}
	return &next, nil
}

func recordResult(ctx context.Context, span trace.Span, scope string, start time.Time, res *Result, err error) {
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordBuildMetrics(ctx, scope, elapsed, 0, 0, false)
		return
	}
	children, siblings := res.Graph.EdgeCounts()
	span.SetAttributes(
		attribute.Int("features", res.Graph.Len()),
		attribute.Int("child_edges", children),
		attribute.Int("sibling_pairs", siblings),
	)
	recordBuildMetrics(ctx, scope, elapsed, res.Graph.Len(), children+siblings, true)
}

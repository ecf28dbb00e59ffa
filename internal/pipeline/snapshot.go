package pipeline

import (
	"fmt"
	"time"

	"github.com/ironsheep/dot-tracker-mcp/internal/config"
	"github.com/ironsheep/dot-tracker-mcp/internal/detection"
	"github.com/ironsheep/dot-tracker-mcp/internal/graph"
	"github.com/ironsheep/dot-tracker-mcp/internal/refine"
)

// SnapshotVersion is bumped whenever the Snapshot layout changes.
const SnapshotVersion = 1

// Snapshot is the persisted form of a Result. Restoring one skips
// refinement entirely.
type Snapshot struct {
	Version   int                      `json:"version"`
	CreatedAt time.Time                `json:"created_at"`
	Frames    int                      `json:"frames"`
	Width     int                      `json:"width"`
	Height    int                      `json:"height"`
	Config    config.Config            `json:"config"`
	Range     refine.IntensityRange    `json:"range"`
	Grids     []*refine.ConfidenceGrid `json:"grids"`
	Graph     *graph.Record            `json:"graph"`
}

// Snapshot returns the persisted form of r.
func (r *Result) Snapshot() *Snapshot {
	return &Snapshot{
		Version:   SnapshotVersion,
		CreatedAt: time.Now().UTC(),
		Frames:    r.FrameCount(),
		Width:     r.Width,
		Height:    r.Height,
		Config:    r.Config,
		Range:     r.Range,
		Grids:     r.Grids,
		Graph:     r.Graph.Export(),
	}
}

// Restore rebuilds a Result from snap for a stack of frameCount frames.
//
// Returns ErrStalePersistedGraph when snap was taken for a different stack
// length; the caller is expected to rebuild from the raw frames.
func Restore(snap *Snapshot, frameCount int) (*Result, error) {
	if snap == nil {
		return nil, fmt.Errorf("restore: nil snapshot")
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: snapshot version %d, want %d",
			ErrStalePersistedGraph, snap.Version, SnapshotVersion)
	}
	if snap.Frames != frameCount {
		return nil, fmt.Errorf("%w: snapshot has %d frames, stack has %d",
			ErrStalePersistedGraph, snap.Frames, frameCount)
	}
	if len(snap.Grids) != snap.Frames || snap.Graph == nil || snap.Graph.Frames != snap.Frames {
		return nil, fmt.Errorf("restore: snapshot is incomplete")
	}
	for i, grid := range snap.Grids {
		if grid == nil || grid.Width != snap.Width || grid.Height != snap.Height ||
			len(grid.Values) != snap.Width*snap.Height {
			return nil, fmt.Errorf("restore: grid %d does not match %dx%d", i, snap.Width, snap.Height)
		}
	}

	g, err := graph.Import(snap.Graph)
	if err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	return &Result{
		Config: snap.Config,
		Range:  snap.Range,
		Width:  snap.Width,
		Height: snap.Height,
		Grids:  snap.Grids,
		Peaks:  peaksFromGraph(g),
		Graph:  g,
	}, nil
}

// CheckStack reports ErrStalePersistedGraph when frames differ in length or
// size from the stack snap was taken for.
func (snap *Snapshot) CheckStack(frames []*refine.Frame) error {
	if snap.Frames != len(frames) {
		return fmt.Errorf("%w: snapshot has %d frames, stack has %d",
			ErrStalePersistedGraph, snap.Frames, len(frames))
	}
	if len(frames) > 0 && (frames[0].Width != snap.Width || frames[0].Height != snap.Height) {
		return fmt.Errorf("%w: snapshot is %dx%d, stack is %dx%d",
			ErrStalePersistedGraph, snap.Width, snap.Height, frames[0].Width, frames[0].Height)
	}
	return nil
}

func peaksFromGraph(g *graph.Graph) [][]detection.Peak {
	peaks := make([][]detection.Peak, g.FrameCount())
	for frame := range peaks {
		fs, _ := g.Features(frame)
		ps := make([]detection.Peak, len(fs))
		for i, f := range fs {
			ps[i] = detection.Peak{X: int(f.Pos.X), Y: int(f.Pos.Y), Confidence: f.Confidence}
		}
		peaks[frame] = ps
	}
	return peaks
}

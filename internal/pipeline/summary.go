package pipeline

import (
	"gonum.org/v1/gonum/floats"
)

// FrameSummary describes one frame of a Result.
type FrameSummary struct {
	Frame          int     `json:"frame"`
	Features       int     `json:"features"`
	MeanConfidence float64 `json:"mean_confidence"`
	MaxConfidence  float64 `json:"max_confidence"`
}

// Summary describes a whole Result.
type Summary struct {
	Frames       int            `json:"frames"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	Features     int            `json:"features"`
	ChildEdges   int            `json:"child_edges"`
	SiblingPairs int            `json:"sibling_pairs"`
	PerFrame     []FrameSummary `json:"per_frame"`
}

// Summarize computes per-frame statistics of r.
func Summarize(r *Result) Summary {
	children, siblings := r.Graph.EdgeCounts()
	s := Summary{
		Frames:       r.FrameCount(),
		Width:        r.Width,
		Height:       r.Height,
		Features:     r.Graph.Len(),
		ChildEdges:   children,
		SiblingPairs: siblings,
		PerFrame:     make([]FrameSummary, r.FrameCount()),
	}
	for i, grid := range r.Grids {
		fs := FrameSummary{Frame: i}
		if i < len(r.Peaks) {
			fs.Features = len(r.Peaks[i])
		}
		if len(grid.Values) > 0 {
			fs.MeanConfidence = grid.Mean()
			fs.MaxConfidence = floats.Max(grid.Values)
		}
		s.PerFrame[i] = fs
	}
	return s
}

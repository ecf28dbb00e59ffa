package graph

import (
	"fmt"
)

// Graph is the arena of features for one stack together with their relations.
type Graph struct {
	features []Feature
	frames   [][]FeatureID
}

// New creates an empty graph for a stack of frameCount frames.
func New(frameCount int) *Graph {
	if frameCount < 0 {
		frameCount = 0
	}
	return &Graph{frames: make([][]FeatureID, frameCount)}
}

// FrameCount returns the stack length the graph was built for.
func (g *Graph) FrameCount() int {
	return len(g.frames)
}

// Len returns the number of features across all frames.
func (g *Graph) Len() int {
	return len(g.features)
}

// AddFeature appends a feature at pos on the given frame.
func (g *Graph) AddFeature(frame int, pos Point, confidence float64) (FeatureID, error) {
	if err := g.checkFrame(frame); err != nil {
		return -1, err
	}
	id := FeatureID(len(g.features))
	g.features = append(g.features, Feature{
		ID:         id,
		Frame:      frame,
		Pos:        pos,
		Confidence: confidence,
	})
	g.frames[frame] = append(g.frames[frame], id)
	return id, nil
}

// Feature returns the feature with the given id.
func (g *Graph) Feature(id FeatureID) (*Feature, error) {
	if id < 0 || int(id) >= len(g.features) {
		return nil, fmt.Errorf("%w: feature %d (graph has %d)", ErrOutOfRange, id, len(g.features))
	}
	return &g.features[id], nil
}

// FrameFeatureIDs returns the ids of the features on frame, in detection order.
func (g *Graph) FrameFeatureIDs(frame int) ([]FeatureID, error) {
	if err := g.checkFrame(frame); err != nil {
		return nil, err
	}
	return g.frames[frame], nil
}

// Features returns the features on frame, in detection order.
func (g *Graph) Features(frame int) ([]*Feature, error) {
	if err := g.checkFrame(frame); err != nil {
		return nil, err
	}
	out := make([]*Feature, len(g.frames[frame]))
	for i, id := range g.frames[frame] {
		out[i] = &g.features[id]
	}
	return out, nil
}

// AddEdges records the given relations. A child edge registers the child on
// From and the parent on To. A sibling edge registers both directions.
// Edges are validated first; on error nothing is recorded.
func (g *Graph) AddEdges(edges []Edge) error {
	for _, e := range edges {
		if err := g.checkEdge(e); err != nil {
			return err
		}
	}
	for _, e := range edges {
		from, to := &g.features[e.From], &g.features[e.To]
		switch e.Kind {
		case EdgeChild:
			from.Children = append(from.Children, e.To)
			to.Parents = append(to.Parents, e.From)
		case EdgeSibling:
			from.Siblings = append(from.Siblings, e.To)
			to.Siblings = append(to.Siblings, e.From)
		}
	}
	return nil
}

// WithoutRelations returns a copy of g holding the same features and no edges.
// It is the starting point for relinking after a distance change.
func (g *Graph) WithoutRelations() *Graph {
	out := &Graph{
		features: make([]Feature, len(g.features)),
		frames:   make([][]FeatureID, len(g.frames)),
	}
	for i, f := range g.features {
		out.features[i] = Feature{ID: f.ID, Frame: f.Frame, Pos: f.Pos, Confidence: f.Confidence}
	}
	for i, ids := range g.frames {
		out.frames[i] = append([]FeatureID(nil), ids...)
	}
	return out
}

// EdgeCounts returns the number of child edges and sibling pairs.
func (g *Graph) EdgeCounts() (children, siblings int) {
	for i := range g.features {
		children += len(g.features[i].Children)
		siblings += len(g.features[i].Siblings)
	}
	return children, siblings / 2
}

func (g *Graph) checkFrame(frame int) error {
	if frame < 0 || frame >= len(g.frames) {
		return fmt.Errorf("%w: frame %d (stack has %d)", ErrOutOfRange, frame, len(g.frames))
	}
	return nil
}

func (g *Graph) checkEdge(e Edge) error {
	from, err := g.Feature(e.From)
	if err != nil {
		return err
	}
	to, err := g.Feature(e.To)
	if err != nil {
		return err
	}
	switch e.Kind {
	case EdgeChild:
		if to.Frame != from.Frame+1 {
			return fmt.Errorf("%w: child %d on frame %d, parent %d on frame %d",
				ErrInvalidEdge, to.ID, to.Frame, from.ID, from.Frame)
		}
	case EdgeSibling:
		if e.From == e.To {
			return fmt.Errorf("%w: feature %d cannot be its own sibling", ErrInvalidEdge, e.From)
		}
		if to.Frame != from.Frame {
			return fmt.Errorf("%w: siblings %d and %d are on frames %d and %d",
				ErrInvalidEdge, from.ID, to.ID, from.Frame, to.Frame)
		}
	default:
		return fmt.Errorf("%w: kind %d", ErrInvalidEdge, int(e.Kind))
	}
	return nil
}

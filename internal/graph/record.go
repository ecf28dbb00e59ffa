package graph

import "fmt"

// FeatureRecord is the persisted form of a feature without its relations.
type FeatureRecord struct {
	Frame      int     `json:"frame"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// Record is the persisted form of a Graph. Features are listed in id order
// and Edges holds every child edge and every sibling pair once.
type Record struct {
	Frames   int             `json:"frames"`
	Features []FeatureRecord `json:"features"`
	Edges    []Edge          `json:"edges"`
}

// Export returns the persisted form of g.
func (g *Graph) Export() *Record {
	rec := &Record{
		Frames:   len(g.frames),
		Features: make([]FeatureRecord, len(g.features)),
	}
	for i, f := range g.features {
		rec.Features[i] = FeatureRecord{Frame: f.Frame, X: f.Pos.X, Y: f.Pos.Y, Confidence: f.Confidence}
	}
	rec.Edges = g.EdgesInRange(0, len(g.frames)-1)
	return rec
}

// Import rebuilds a Graph from its persisted form, re-validating every edge.
func Import(rec *Record) (*Graph, error) {
	if rec == nil {
		return nil, fmt.Errorf("import graph: nil record")
	}
	g := New(rec.Frames)
	for i, fr := range rec.Features {
		id, err := g.AddFeature(fr.Frame, Point{X: fr.X, Y: fr.Y}, fr.Confidence)
		if err != nil {
			return nil, fmt.Errorf("import feature %d: %w", i, err)
		}
		if int(id) != i {
			return nil, fmt.Errorf("import feature %d: assigned id %d", i, id)
		}
	}
	if err := g.AddEdges(rec.Edges); err != nil {
		return nil, fmt.Errorf("import edges: %w", err)
	}
	return g, nil
}

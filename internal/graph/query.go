package graph

// Nearest returns the feature on frame closest to p. Ties keep the first
// feature in detection order. ok is false when the frame has no features.
func (g *Graph) Nearest(frame int, p Point) (f *Feature, ok bool, err error) {
	ids, err := g.FrameFeatureIDs(frame)
	if err != nil {
		return nil, false, err
	}
	best := -1.0
	for _, id := range ids {
		cand := &g.features[id]
		d := cand.Pos.Distance(p)
		if best < 0 || d < best {
			best = d
			f = cand
		}
	}
	return f, f != nil, nil
}

// EdgesInRange returns the one-step relations of every feature on frames
// start..end inclusive: its child edges and its sibling edges (each sibling
// pair once). Frames outside the stack are skipped.
func (g *Graph) EdgesInRange(start, end int) []Edge {
	if start < 0 {
		start = 0
	}
	if end >= len(g.frames) {
		end = len(g.frames) - 1
	}
	var edges []Edge
	for frame := start; frame <= end; frame++ {
		for _, id := range g.frames[frame] {
			f := &g.features[id]
			for _, c := range f.Children {
				edges = append(edges, Edge{Kind: EdgeChild, From: id, To: c})
			}
			for _, s := range f.Siblings {
				if id < s {
					edges = append(edges, Edge{Kind: EdgeSibling, From: id, To: s})
				}
			}
		}
	}
	return edges
}

package graph

import "fmt"

// ExpandLineage enumerates where the objects in start may be now and in
// every later frame.
//
// Generation 0 is start plus everything reachable from it through sibling
// edges. Each following generation is the set of children of the previous
// one, again closed over siblings. Every generation lists a feature at most
// once, in discovery order. Expansion stops at the first empty generation or
// at the end of the stack, so the result has at most FrameCount()-startFrame
// entries.
//
// All start features must lie on startFrame.
func (g *Graph) ExpandLineage(start []FeatureID, startFrame int) ([][]FeatureID, error) {
	if err := g.checkFrame(startFrame); err != nil {
		return nil, err
	}
	for _, id := range start {
		f, err := g.Feature(id)
		if err != nil {
			return nil, err
		}
		if f.Frame != startFrame {
			return nil, fmt.Errorf("%w: feature %d is on frame %d, not %d",
				ErrOutOfRange, id, f.Frame, startFrame)
		}
	}

	var generations [][]FeatureID
	gen := g.siblingClosure(start)
	for frame := startFrame; len(gen) > 0 && frame < len(g.frames); frame++ {
		generations = append(generations, gen)

		next := make([]FeatureID, 0, len(gen))
		seen := make(map[FeatureID]struct{}, len(gen))
		for _, id := range gen {
			for _, c := range g.features[id].Children {
				if _, dup := seen[c]; dup {
					continue
				}
				seen[c] = struct{}{}
				next = append(next, c)
			}
		}
		gen = g.siblingClosure(next)
	}
	return generations, nil
}

// siblingClosure returns ids followed by every feature reachable from them
// through sibling edges, without duplicates.
func (g *Graph) siblingClosure(ids []FeatureID) []FeatureID {
	out := make([]FeatureID, 0, len(ids))
	seen := make(map[FeatureID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for i := 0; i < len(out); i++ {
		for _, s := range g.features[out[i]].Siblings {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

package graph

import "fmt"

// VisitSet holds per-direction visited and in-progress marks for walks over
// one graph. It replaces flags stored on the features themselves, so the
// graph stays read-only and each caller owns its own walk state.
//
// A VisitSet may be shared by several walks (for example one walk per feature
// of a frame) so that nothing is visited twice; call Reset before starting an
// independent set of walks.
type VisitSet struct {
	visited [2][]bool
	active  [2][]bool
}

// NewVisitSet returns a clean VisitSet sized for g.
func NewVisitSet(g *Graph) *VisitSet {
	n := g.Len()
	v := &VisitSet{}
	for d := range v.visited {
		v.visited[d] = make([]bool, n)
		v.active[d] = make([]bool, n)
	}
	return v
}

// Reset clears every mark in one pass.
func (v *VisitSet) Reset() {
	for d := range v.visited {
		clear(v.visited[d])
		clear(v.active[d])
	}
}

// Visited reports whether id has been fully walked in direction dir.
func (v *VisitSet) Visited(dir Direction, id FeatureID) bool {
	if dir != Forward && dir != Backward {
		return false
	}
	if id < 0 || int(id) >= len(v.visited[dir]) {
		return false
	}
	return v.visited[dir][id]
}

// WalkResult is what a directional walk reached.
type WalkResult struct {
	Start     FeatureID   `json:"start"`
	Direction Direction   `json:"-"`
	Visited   []FeatureID `json:"visited"`
	Edges     []Edge      `json:"edges"`
}

type walkFrame struct {
	id      FeatureID
	sibling bool
	next    int
}

// Walk collects everything reachable from start in direction dir, crossing
// both temporal and sibling edges.
//
// A primary neighbour (child when walking forward, parent when walking
// backward) is entered whenever it has not been visited yet. A sibling is
// entered only when it is neither visited nor currently being walked, which
// breaks sibling cycles without losing paths. Marks are kept in vs. A start
// feature already visited in vs yields an empty result.
//
// The walk uses an explicit stack, so long chains cannot exhaust the
// goroutine stack. Child edges are reported in their forward orientation
// (From is the earlier frame) regardless of direction; sibling edges are
// reported once per pair.
func (g *Graph) Walk(start FeatureID, dir Direction, vs *VisitSet) (*WalkResult, error) {
	if _, err := g.Feature(start); err != nil {
		return nil, err
	}
	if dir != Forward && dir != Backward {
		return nil, fmt.Errorf("unknown direction %d", int(dir))
	}
	if vs == nil || len(vs.visited[dir]) != len(g.features) {
		return nil, ErrForeignVisitSet
	}

	res := &WalkResult{Start: start, Direction: dir}
	visited, active := vs.visited[dir], vs.active[dir]
	if visited[start] {
		return res, nil
	}

	seenSibling := make(map[[2]FeatureID]struct{})
	stack := []walkFrame{{id: start}}
	active[start] = true
	res.Visited = append(res.Visited, start)

	for len(stack) > 0 {
		top := len(stack) - 1
		cur := g.features[stack[top].id]

		if !stack[top].sibling {
			primary := cur.Children
			if dir == Backward {
				primary = cur.Parents
			}
			if stack[top].next < len(primary) {
				n := primary[stack[top].next]
				stack[top].next++
				if dir == Forward {
					res.Edges = append(res.Edges, Edge{Kind: EdgeChild, From: cur.ID, To: n})
				} else {
					res.Edges = append(res.Edges, Edge{Kind: EdgeChild, From: n, To: cur.ID})
				}
				if !visited[n] {
					active[n] = true
					res.Visited = append(res.Visited, n)
					stack = append(stack, walkFrame{id: n})
				}
				continue
			}
			stack[top].sibling = true
			stack[top].next = 0
		}

		if stack[top].next < len(cur.Siblings) {
			s := cur.Siblings[stack[top].next]
			stack[top].next++
			key := [2]FeatureID{min(cur.ID, s), max(cur.ID, s)}
			if _, dup := seenSibling[key]; !dup {
				seenSibling[key] = struct{}{}
				res.Edges = append(res.Edges, Edge{Kind: EdgeSibling, From: key[0], To: key[1]})
			}
			if !active[s] && !visited[s] {
				active[s] = true
				res.Visited = append(res.Visited, s)
				stack = append(stack, walkFrame{id: s})
			}
			continue
		}

		visited[cur.ID] = true
		active[cur.ID] = false
		stack = stack[:top]
	}
	return res, nil
}

// WalkFrame walks every feature of frame in direction dir with one shared
// VisitSet, the way a viewer draws all paths through the current frame. The
// set is reset before returning.
func (g *Graph) WalkFrame(frame int, dir Direction, vs *VisitSet) ([]*WalkResult, error) {
	ids, err := g.FrameFeatureIDs(frame)
	if err != nil {
		return nil, err
	}
	defer vs.Reset()
	out := make([]*WalkResult, 0, len(ids))
	for _, id := range ids {
		r, err := g.Walk(id, dir, vs)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

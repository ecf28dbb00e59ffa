package graph

// LinkAdjacent returns a child edge A->B for every A in from and B in to whose
// positions are strictly closer than cutoff. It is an all-pairs O(n*m) scan:
// a feature may link to several children and receive several parents.
//
// from and to must be the features of two consecutive frames. LinkAdjacent
// does not modify them; pass the result to Graph.AddEdges.
func LinkAdjacent(from, to []*Feature, cutoff float64) []Edge {
	var edges []Edge
	for _, a := range from {
		for _, b := range to {
			if a.Distance(b) < cutoff {
				edges = append(edges, Edge{Kind: EdgeChild, From: a.ID, To: b.ID})
			}
		}
	}
	return edges
}

// LinkSiblings returns one sibling edge for every unordered pair of distinct
// features of one frame closer than cutoff. Each pair is reported once, in
// detection order.
func LinkSiblings(features []*Feature, cutoff float64) []Edge {
	var edges []Edge
	for i, a := range features {
		for _, b := range features[i+1:] {
			if a.ID != b.ID && a.Distance(b) < cutoff {
				edges = append(edges, Edge{Kind: EdgeSibling, From: a.ID, To: b.ID})
			}
		}
	}
	return edges
}

// Package graph holds the temporal feature graph of a frame stack.
//
// Every detected feature lives in an arena owned by a Graph and is addressed
// by its FeatureID. Features carry three relation lists:
//
//   - Children: features in the next frame this feature plausibly becomes.
//   - Parents: the reciprocal view of Children, features in the previous frame.
//   - Siblings: features in the same frame that are close enough to be
//     duplicate detections of one object.
//
// The graph is a multi-parent, multi-child DAG across time. Cycles are only
// possible through sibling edges, and every traversal in this package guards
// against them.
//
// # Lifecycle
//
// A typical graph lifecycle:
//  1. Create with New(frameCount)
//  2. Add features per frame with AddFeature
//  3. Compute relations with LinkAdjacent and LinkSiblings (pure functions)
//  4. Record them with AddEdges
//  5. Query with Nearest, ExpandLineage, Walk and EdgesInRange
//
// # Thread Safety
//
// Graph is NOT safe for concurrent use while it is being built. Once built it
// is only read, and all query methods may run concurrently. Walks keep their
// state in a caller-owned VisitSet instead of on the features, so concurrent
// walks never share mutable flags.
package graph

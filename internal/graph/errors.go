package graph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrOutOfRange is returned when a frame index or feature id does not
	// exist in the graph.
	ErrOutOfRange = errors.New("query out of range")

	// ErrInvalidEdge is returned when an edge would break the relation
	// invariants: children must be exactly one frame later and siblings must
	// share a frame and be distinct.
	ErrInvalidEdge = errors.New("invalid edge")

	// ErrForeignVisitSet is returned when a VisitSet sized for another graph
	// is passed to Walk.
	ErrForeignVisitSet = errors.New("visit set does not belong to this graph")
)

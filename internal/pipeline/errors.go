package pipeline

import "errors"

var (
	// ErrStalePersistedGraph is returned when a snapshot was taken for a stack
	// of a different length than the one being restored.
	ErrStalePersistedGraph = errors.New("stale persisted graph")

	// ErrNoSession is returned when an operation needs a loaded stack.
	ErrNoSession = errors.New("no stack loaded")

	// ErrFramesRequired is returned when a rebuild needs refinement but the
	// raw frames are not available.
	ErrFramesRequired = errors.New("raw frames required to refine")
)

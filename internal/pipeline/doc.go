// Package pipeline drives refinement, peak extraction and linking across a
// whole frame stack and owns the live tracking session.
//
// # Stages
//
//  1. StackRange: one pass over every frame for the global intensity range.
//  2. RefineStack: one confidence grid per frame, frames in parallel.
//  3. ExtractStack: peaks per grid, grids in parallel.
//  4. LinkStack: features are added in frame order, then the child and
//     sibling edges of every frame are computed in parallel and recorded in
//     frame order, so the resulting graph is identical for any worker count.
//
// Each stage writes into fresh buffers. A Result is never modified after it
// is returned; Rebuild produces a new Result and reuses whatever the
// configuration change left valid.
//
// # Session
//
// A Session holds the frames and the current Result of one loaded stack.
// Readers take the current Result under a read lock and may keep using it
// after a rebuild has swapped in a newer one. Rebuilds are serialized and
// bump the session epoch.
//
// # Cancellation
//
// Refinement checks the context between frames. Grids finished before the
// cancellation are returned alongside the error and stay valid.
package pipeline

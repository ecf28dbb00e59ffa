// Package refine converts raw intensity frames into confidence grids.
//
// A confidence grid holds, for every pixel, a value in [0,1] describing how
// likely the pixel is to be the centre of a bright point-like feature. The
// refinement is adaptive: each pixel is stretched against the minimum and
// maximum found in a circular neighbourhood, flat regions are suppressed, and
// a disorder penalty removes isolated salt noise.
//
// # Coordinate System
//
// Grids are stored row-major. (0,0) is the top-left pixel, X increases to the
// right and Y increases downward, matching the imaging package.
//
// # Stack Range
//
// Local ranges are compared against the intensity range of the whole stack,
// computed once with StackRange before any frame is refined, so confidence
// values are comparable across time.
//
// # Thread Safety
//
// Frames and grids are immutable after construction. Refine allocates a fresh
// grid on every call and may run concurrently on different frames.
package refine

// Package detection turns confidence grids into discrete feature points.
//
// A feature ("dot") is a pixel that is bright enough and not dominated by any
// of its immediate neighbours. The extractor does
// no sub-pixel refinement and no deduplication. Adjacent pixels with equal
// confidence are each reported, and the graph package later relates such
// near-coincident detections as siblings.
//
// # Algorithm Overview
//
//  1. Threshold: the pixel's confidence must exceed the peak cutoff.
//  2. Local maximum: the confidence must be >= each of the up to 8 neighbours.
//     Neighbours outside the grid are skipped, which makes border pixels
//     slightly easier to accept than interior ones.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//
// # Ordering
//
// Peaks are returned in column-major scan order (x outer, y inner). This order
// is observable through nearest-feature tie breaking and is kept stable.
//
// # Performance Considerations
//
// Extraction is a single O(width*height) pass and allocates only the result
// slice. It is safe to run concurrently on different grids.
package detection

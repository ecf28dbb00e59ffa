// Package config holds the tunable thresholds of the tracking pipeline.
//
// A Config is a plain value. Changing a threshold never mutates shared state:
// callers build a new Config, validate it, and ask Diff which pipeline stages
// must be recomputed to honour it.
//
// # Recompute Scope
//
//   - DistanceCutoff: relinking only (ScopeLinks)
//   - PeakCutoff: peak extraction and relinking (ScopePeaks)
//   - SearchRadius, RangeCutoff, IntensityFloor: full refinement and
//     everything downstream (ScopeRefine)
//
// Workers only bounds parallelism and never triggers a rebuild.
package config

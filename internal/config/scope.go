package config

// Scope is how much of the pipeline a configuration change invalidates.
// Larger scopes include every smaller one.
type Scope int

const (
	// ScopeNone means the existing grids and graph remain valid.
	ScopeNone Scope = iota
	// ScopeLinks means every relation must be rebuilt.
	ScopeLinks
	// ScopePeaks means features and relations must be rebuilt.
	ScopePeaks
	// ScopeRefine means confidence grids and everything derived from them
	// must be rebuilt.
	ScopeRefine
)

func (s Scope) String() string {
	switch s {
	case ScopeNone:
		return "none"
	case ScopeLinks:
		return "links"
	case ScopePeaks:
		return "peaks"
	case ScopeRefine:
		return "refine"
	default:
		return "unknown"
	}
}

// MarshalText encodes the scope by name.
func (s Scope) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Diff returns the rebuild scope needed to move from old to new.
func Diff(old, new Config) Scope {
	switch {
	case old.SearchRadius != new.SearchRadius,
		old.RangeCutoff != new.RangeCutoff,
		old.IntensityFloor != new.IntensityFloor:
		return ScopeRefine
	case old.PeakCutoff != new.PeakCutoff:
		return ScopePeaks
	case old.DistanceCutoff != new.DistanceCutoff:
		return ScopeLinks
	default:
		return ScopeNone
	}
}

// Includes reports whether s requires the work of other.
func (s Scope) Includes(other Scope) bool {
	return s >= other
}

package graph

import (
	"fmt"
	"math"
)

// FeatureID addresses a feature inside its Graph.
type FeatureID int

// Point is a position in frame pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Feature is one detected dot. Its relation lists are owned by the graph and
// must be treated as read-only by callers.
type Feature struct {
	ID         FeatureID   `json:"id"`
	Frame      int         `json:"frame"`
	Pos        Point       `json:"pos"`
	Confidence float64     `json:"confidence"`
	Children   []FeatureID `json:"children,omitempty"`
	Parents    []FeatureID `json:"parents,omitempty"`
	Siblings   []FeatureID `json:"siblings,omitempty"`
}

// Distance returns the distance between the positions of f and o, ignoring
// time.
func (f *Feature) Distance(o *Feature) float64 {
	return f.Pos.Distance(o.Pos)
}

// EdgeKind distinguishes temporal and same-frame relations.
type EdgeKind int

const (
	// EdgeChild links a feature to one in the next frame.
	EdgeChild EdgeKind = iota
	// EdgeSibling links two features of the same frame.
	EdgeSibling
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeChild:
		return "child"
	case EdgeSibling:
		return "sibling"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k EdgeKind) MarshalText() ([]byte, error) {
	switch k {
	case EdgeChild, EdgeSibling:
		return []byte(k.String()), nil
	}
	return nil, fmt.Errorf("unknown edge kind %d", int(k))
}

// UnmarshalText decodes a kind name.
func (k *EdgeKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "child":
		*k = EdgeChild
	case "sibling":
		*k = EdgeSibling
	default:
		return fmt.Errorf("unknown edge kind %q", string(b))
	}
	return nil
}

// Edge is one relation. Child edges point forward in time. Sibling edges are
// symmetric; LinkSiblings reports each pair once with From < To.
type Edge struct {
	Kind EdgeKind  `json:"kind"`
	From FeatureID `json:"from"`
	To   FeatureID `json:"to"`
}

// Direction selects which temporal relation a walk follows.
type Direction int

const (
	// Forward follows children.
	Forward Direction = iota
	// Backward follows parents.
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// ParseDirection accepts "forward"/"down" and "backward"/"up".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "forward", "down", "":
		return Forward, nil
	case "backward", "up":
		return Backward, nil
	}
	return Forward, fmt.Errorf("unknown direction %q", s)
}

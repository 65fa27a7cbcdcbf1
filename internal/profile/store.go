package profile

import "github.com/cwbudde/profilefit/internal/solver"

// Point is one accepted profile point.
type Point struct {
	// PropValue is the property value this point was traced at.
	PropValue float64 `json:"propValue"`
	// Theta is the parameter vector realizing the point.
	Theta []float64 `json:"theta"`
	// LogPost is the log-posterior at Theta.
	LogPost float64 `json:"logPost"`
	// Ratio is exp(LogPost - LogPost_MAP), the likelihood ratio.
	Ratio float64 `json:"ratio"`
	// Status is the exit flag of the solve that produced the point.
	Status solver.Status `json:"status"`
}

// Profile is a completed trace for one property, ordered by increasing
// property value with the MAP anchor somewhere inside.
type Profile struct {
	Name   string  `json:"name"`
	Index  int     `json:"index"`
	Points []Point `json:"points"`
}

// Store accumulates profile points for one property. Points found in the
// decreasing direction are held in a front list, increasing-direction points
// in a back list; the anchor sits between them. The concatenated read is
// ordered by increasing property value.
type Store struct {
	anchor Point
	front  []Point // decreasing direction, in discovery order
	back   []Point // increasing direction, in discovery order
}

// NewStore creates a store seeded with the MAP anchor point.
func NewStore(anchor Point) *Store {
	return &Store{anchor: anchor}
}

// Append records a point found while tracing in the given direction.
func (s *Store) Append(dir int, p Point) {
	if dir < 0 {
		s.front = append(s.front, p)
	} else {
		s.back = append(s.back, p)
	}
}

// Last returns the most recent point in the given direction, or the anchor
// when that direction has produced no points yet.
func (s *Store) Last(dir int) Point {
	if dir < 0 {
		if n := len(s.front); n > 0 {
			return s.front[n-1]
		}
	} else {
		if n := len(s.back); n > 0 {
			return s.back[n-1]
		}
	}
	return s.anchor
}

// Count returns the number of points traced in the given direction.
func (s *Store) Count(dir int) int {
	if dir < 0 {
		return len(s.front)
	}
	return len(s.back)
}

// Points returns the full trace in increasing property-value order:
// reversed front list, anchor, back list.
func (s *Store) Points() []Point {
	out := make([]Point, 0, len(s.front)+1+len(s.back))
	for i := len(s.front) - 1; i >= 0; i-- {
		out = append(out, s.front[i])
	}
	out = append(out, s.anchor)
	out = append(out, s.back...)
	return out
}

package profile

import (
	"testing"

	"github.com/cwbudde/profilefit/internal/solver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreOrdering(t *testing.T) {
	anchor := Point{PropValue: 0, LogPost: -1, Ratio: 1, Status: solver.Converged}
	s := NewStore(anchor)

	// Decreasing direction discovers points walking down.
	s.Append(-1, Point{PropValue: -1})
	s.Append(-1, Point{PropValue: -2.5})
	// Increasing direction walks up.
	s.Append(+1, Point{PropValue: 0.5})
	s.Append(+1, Point{PropValue: 3})

	pts := s.Points()
	require.Len(t, pts, 5)
	want := []float64{-2.5, -1, 0, 0.5, 3}
	for i, w := range want {
		assert.Equal(t, w, pts[i].PropValue, "point %d", i)
	}
	for i := 1; i < len(pts); i++ {
		assert.Less(t, pts[i-1].PropValue, pts[i].PropValue)
	}
}

func TestStoreLastAndCount(t *testing.T) {
	anchor := Point{PropValue: 1}
	s := NewStore(anchor)

	// Empty directions fall back to the anchor.
	assert.Equal(t, 1.0, s.Last(-1).PropValue)
	assert.Equal(t, 1.0, s.Last(+1).PropValue)
	assert.Equal(t, 0, s.Count(-1))

	s.Append(-1, Point{PropValue: 0.5})
	s.Append(-1, Point{PropValue: 0.2})
	assert.Equal(t, 0.2, s.Last(-1).PropValue)
	assert.Equal(t, 2, s.Count(-1))
	// The other direction is untouched.
	assert.Equal(t, 1.0, s.Last(+1).PropValue)
	assert.Equal(t, 0, s.Count(+1))
}

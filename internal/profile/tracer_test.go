package profile

import (
	"math"
	"testing"

	"github.com/cwbudde/profilefit/internal/objective"
	"github.com/cwbudde/profilefit/internal/problem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// wideGaussian has a posterior broad enough that the theta1 profile reaches
// both property bounds before the likelihood ratio floor fires.
func wideGaussian(t *testing.T) *problem.Problem {
	t.Helper()
	p, err := problem.Gaussian(
		[]float64{0, 0},
		[]float64{20, 20},
		[]float64{-10, -10},
		[]float64{10, 10},
	)
	require.NoError(t, err)
	return p
}

func narrowGaussian(t *testing.T) *problem.Problem {
	t.Helper()
	p, err := problem.Gaussian(
		[]float64{0, 0},
		[]float64{1, 1},
		[]float64{-10, -10},
		[]float64{10, 10},
	)
	require.NoError(t, err)
	return p
}

func gaussianMAP() MAP {
	return MAP{Theta: []float64{0, 0}, LogPost: 0}
}

func TestProfileSignSymmetryReachesBothBounds(t *testing.T) {
	prob := wideGaussian(t)
	cfg := DefaultConfig()
	cfg.Indices = []int{0}
	cfg.RMin = 1e-6

	profiles, err := Compute(prob, gaussianMAP(), cfg)
	require.NoError(t, err)
	require.Len(t, profiles, 1)

	pts := profiles[0].Points
	require.GreaterOrEqual(t, len(pts), 3)

	// Both ends of the trace sit within the boundary tolerance band.
	assert.LessOrEqual(t, pts[0].PropValue, -10+cfg.BoundaryTol)
	assert.GreaterOrEqual(t, pts[len(pts)-1].PropValue, 10-cfg.BoundaryTol)
}

func TestProfileMonotonicity(t *testing.T) {
	prob := wideGaussian(t)
	cfg := DefaultConfig()
	cfg.RMin = 1e-6

	profiles, err := Compute(prob, gaussianMAP(), cfg)
	require.NoError(t, err)

	for _, prof := range profiles {
		pts := prof.Points
		for i := 1; i < len(pts); i++ {
			assert.Less(t, pts[i-1].PropValue, pts[i].PropValue,
				"profile %s not strictly increasing at point %d", prof.Name, i)
		}
	}
}

func TestProfileAnchorInvariant(t *testing.T) {
	prob := narrowGaussian(t)
	cfg := DefaultConfig()
	cfg.Indices = []int{0}

	profiles, err := Compute(prob, gaussianMAP(), cfg)
	require.NoError(t, err)

	found := false
	for _, pt := range profiles[0].Points {
		if pt.PropValue == 0 {
			found = true
			assert.Equal(t, 1.0, pt.Ratio)
			assert.Equal(t, 0.0, pt.LogPost)
		}
	}
	assert.True(t, found, "anchor point missing from trace")
}

func TestProfileRatioBound(t *testing.T) {
	prob := narrowGaussian(t)
	cfg := DefaultConfig()

	profiles, err := Compute(prob, gaussianMAP(), cfg)
	require.NoError(t, err)

	const eps = 1e-9
	for _, prof := range profiles {
		for i, pt := range prof.Points {
			assert.LessOrEqual(t, pt.Ratio, 1+eps, "profile %s point %d", prof.Name, i)
		}
	}
}

func TestProfileStoppingOnRatioFloor(t *testing.T) {
	prob := narrowGaussian(t)
	cfg := DefaultConfig()
	cfg.Indices = []int{0}
	cfg.RMin = 0.5

	profiles, err := Compute(prob, gaussianMAP(), cfg)
	require.NoError(t, err)

	pts := profiles[0].Points
	// Tracing stops at most one point after the ratio drops below RMin:
	// every point except the two trace ends must still satisfy the floor,
	// and no end point sits anywhere near the distant property bounds.
	for i := 1; i < len(pts)-1; i++ {
		assert.GreaterOrEqual(t, pts[i].Ratio, cfg.RMin, "interior point %d below floor", i)
	}
	assert.Greater(t, pts[0].PropValue, -5.0)
	assert.Less(t, pts[len(pts)-1].PropValue, 5.0)
	// The trace actually went somewhere before stopping.
	assert.Less(t, pts[0].PropValue, -1.0)
	assert.Greater(t, pts[len(pts)-1].PropValue, 1.0)
}

func TestProfileParallelMatchesSequential(t *testing.T) {
	prob := wideGaussian(t)

	seqCfg := DefaultConfig()
	seqCfg.RMin = 1e-6
	seq, err := Compute(prob, gaussianMAP(), seqCfg)
	require.NoError(t, err)

	parCfg := DefaultConfig()
	parCfg.RMin = 1e-6
	parCfg.Mode = ModeParallel
	par, err := Compute(prob, gaussianMAP(), parCfg)
	require.NoError(t, err)

	require.Equal(t, len(seq), len(par))
	for k := range seq {
		require.Equal(t, len(seq[k].Points), len(par[k].Points), "profile %s", seq[k].Name)
		for i := range seq[k].Points {
			assert.InDelta(t, seq[k].Points[i].PropValue, par[k].Points[i].PropValue, 1e-9)
			assert.InDelta(t, seq[k].Points[i].LogPost, par[k].Points[i].LogPost, 1e-9)
		}
	}
}

func TestProfileWarmStartAgreesWithColdStart(t *testing.T) {
	prob := wideGaussian(t)

	cold := DefaultConfig()
	cold.Indices = []int{0}
	cold.RMin = 1e-6
	coldProfiles, err := Compute(prob, gaussianMAP(), cold)
	require.NoError(t, err)

	warm := cold
	warm.WarmStart = true
	warmProfiles, err := Compute(prob, gaussianMAP(), warm)
	require.NoError(t, err)

	// Warm starting changes iteration counts, not the traced boundary.
	cp := coldProfiles[0].Points
	wp := warmProfiles[0].Points
	assert.InDelta(t, cp[0].PropValue, wp[0].PropValue, 1e-2)
	assert.InDelta(t, cp[len(cp)-1].PropValue, wp[len(wp)-1].PropValue, 1e-2)
}

func TestProfileSurvivesNaNObjective(t *testing.T) {
	// The posterior returns NaN in a band; the robust wrapper turns those
	// evaluations into +Inf and tracing completes without panicking.
	logPost := func(theta []float64, order int) (float64, []float64, *mat.Dense, error) {
		if theta[0] > 0.8 && theta[0] < 1.2 {
			return math.NaN(), nil, nil, nil
		}
		return -0.5 * (theta[0]*theta[0] + theta[1]*theta[1]), nil, nil, nil
	}
	prob := &problem.Problem{
		Name:      "nan-band",
		Lower:     []float64{-3, -3},
		Upper:     []float64{3, 3},
		Objective: objective.NewObjective(logPost, objective.ScaleLogPosterior, 2),
		Properties: []*objective.Property{
			problem.ParameterProperty("theta1", 0, -3, 3, 2),
		},
	}

	cfg := DefaultConfig()
	cfg.RMin = 0.4
	cfg.MaxPoints = 30
	profiles, err := Compute(prob, gaussianMAP(), cfg)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.NotEmpty(t, profiles[0].Points)
}

func TestComputeValidation(t *testing.T) {
	prob := narrowGaussian(t)

	tests := []struct {
		name   string
		mangle func(*Config)
	}{
		{"bad drmax", func(c *Config) { c.DRMax = 1.5 }},
		{"bad rmin", func(c *Config) { c.RMin = 0 }},
		{"bad mode", func(c *Config) { c.Mode = "distributed" }},
		{"bad index", func(c *Config) { c.Indices = []int{7} }},
		{"bad boundary tol", func(c *Config) { c.BoundaryTol = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mangle(&cfg)
			_, err := Compute(prob, gaussianMAP(), cfg)
			require.Error(t, err)
			var cfgErr *ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}

	// Mismatched MAP dimension is fatal before any tracing.
	_, err := Compute(prob, MAP{Theta: []float64{0}, LogPost: 0}, DefaultConfig())
	require.Error(t, err)
}

type countingSink struct {
	points int
}

func (s *countingSink) AppendPoint(propertyIndex, direction int, pt Point) error {
	s.points++
	return nil
}

func TestProfileSinkReceivesEveryPoint(t *testing.T) {
	prob := narrowGaussian(t)
	sink := &countingSink{}
	cfg := DefaultConfig()
	cfg.Indices = []int{0}
	cfg.Sink = sink

	profiles, err := Compute(prob, gaussianMAP(), cfg)
	require.NoError(t, err)

	// Every non-anchor point was offered to the sink.
	assert.Equal(t, len(profiles[0].Points)-1, sink.points)
}

package sample

import (
	"math"
	"testing"

	"github.com/cwbudde/profilefit/internal/objective"
	"github.com/cwbudde/profilefit/internal/problem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func gaussianProblem(t *testing.T, sigma float64) *problem.Problem {
	t.Helper()
	prob, err := problem.Gaussian(
		[]float64{0, 0},
		[]float64{sigma, sigma},
		[]float64{-10, -10},
		[]float64{10, 10},
	)
	require.NoError(t, err)
	return prob
}

func TestRunRecoversGaussianMoments(t *testing.T) {
	prob := gaussianProblem(t, 1.0)

	cfg := DefaultConfig()
	cfg.Iterations = 4000
	cfg.BurnIn = 1000
	cfg.SwapInterval = 5

	res, err := Run(prob, []float64{0.5, -0.5}, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, res.Samples)
	require.Len(t, res.LogPost, len(res.Samples))

	sum, err := Summarize(res.Samples)
	require.NoError(t, err)
	require.Len(t, sum, 2)
	for _, s := range sum {
		assert.InDelta(t, 0.0, s.Mean, 0.15)
		assert.InDelta(t, 1.0, s.StdDev, 0.25)
		assert.Less(t, s.Q05, s.Median)
		assert.Less(t, s.Median, s.Q95)
	}
}

func TestRunSamplesStayInBounds(t *testing.T) {
	prob := gaussianProblem(t, 5.0)

	cfg := DefaultConfig()
	cfg.Iterations = 500
	cfg.BurnIn = 100

	res, err := Run(prob, []float64{0, 0}, cfg)
	require.NoError(t, err)
	for _, s := range res.Samples {
		for i, v := range s {
			assert.GreaterOrEqual(t, v, prob.Lower[i])
			assert.LessOrEqual(t, v, prob.Upper[i])
		}
	}
}

func TestRunIsDeterministicForSeed(t *testing.T) {
	prob := gaussianProblem(t, 1.0)

	cfg := DefaultConfig()
	cfg.Iterations = 200
	cfg.BurnIn = 50
	cfg.Seed = 7

	a, err := Run(prob, []float64{0.2, 0.2}, cfg)
	require.NoError(t, err)
	b, err := Run(prob, []float64{0.2, 0.2}, cfg)
	require.NoError(t, err)

	require.Equal(t, len(a.Samples), len(b.Samples))
	for i := range a.Samples {
		assert.Equal(t, a.Samples[i], b.Samples[i])
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	prob := gaussianProblem(t, 1.0)

	_, err := Run(prob, []float64{0}, DefaultConfig())
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Iterations = 0
	_, err = Run(prob, []float64{0, 0}, cfg)
	assert.Error(t, err)
}

func TestRunSurvivesNaNObjective(t *testing.T) {
	prob := gaussianProblem(t, 1.0)
	base := prob.Objective
	nan, err := problemWithNaNBand(base)
	require.NoError(t, err)
	prob.Objective = nan

	cfg := DefaultConfig()
	cfg.Iterations = 300
	cfg.BurnIn = 100

	res, err := Run(prob, []float64{0, 0}, cfg)
	require.NoError(t, err)
	for _, lp := range res.LogPost {
		assert.False(t, math.IsNaN(lp))
		assert.False(t, math.IsInf(lp, -1))
	}
}

// problemWithNaNBand wraps an objective so it returns NaN inside a band,
// exercising the robust evaluation path during sampling.
func problemWithNaNBand(base *objective.Objective) (*objective.Objective, error) {
	fn := func(theta []float64, order int) (float64, []float64, *mat.Dense, error) {
		if theta[0] > 1.0 && theta[0] < 1.5 {
			return math.NaN(), nil, nil, nil
		}
		ev := base.Evaluate(theta, order)
		return ev.Value, ev.Grad, ev.Hess, nil
	}
	return objective.NewObjective(fn, objective.ScaleNegLogPosterior, base.NPar()), nil
}

func TestSummarizeEmpty(t *testing.T) {
	_, err := Summarize(nil)
	assert.Error(t, err)
}

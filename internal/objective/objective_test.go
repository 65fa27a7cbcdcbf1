package objective

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// quadratic log-posterior centered at the origin: logp = -0.5*|theta|^2
func quadraticLogPost(theta []float64, order int) (float64, []float64, *mat.Dense, error) {
	n := len(theta)
	var v float64
	for _, t := range theta {
		v -= 0.5 * t * t
	}
	var grad []float64
	var hess *mat.Dense
	if order >= 1 {
		grad = make([]float64, n)
		for i, t := range theta {
			grad[i] = -t
		}
	}
	if order >= 2 {
		hess = mat.NewDense(n, n, nil)
		for i := 0; i < n; i++ {
			hess.Set(i, i, -1)
		}
	}
	return v, grad, hess, nil
}

func TestObjectiveSignConvention(t *testing.T) {
	theta := []float64{1, 2}

	// Log-posterior input is negated into minimization form.
	obj := NewObjective(quadraticLogPost, ScaleLogPosterior, 2)
	e := obj.Evaluate(theta, 2)
	require.False(t, e.Failed)
	assert.InDelta(t, 2.5, e.Value, 1e-12)
	assert.InDelta(t, 1.0, e.Grad[0], 1e-12)
	assert.InDelta(t, 2.0, e.Grad[1], 1e-12)
	assert.InDelta(t, 1.0, e.Hess.At(0, 0), 1e-12)

	// A negative log-posterior passes through unchanged.
	neg := NewObjective(func(th []float64, order int) (float64, []float64, *mat.Dense, error) {
		v, g, h, err := quadraticLogPost(th, order)
		if g != nil {
			for i := range g {
				g[i] = -g[i]
			}
		}
		if h != nil {
			h.Scale(-1, h)
		}
		return -v, g, h, err
	}, ScaleNegLogPosterior, 2)
	e2 := neg.Evaluate(theta, 1)
	require.False(t, e2.Failed)
	assert.InDelta(t, e.Value, e2.Value, 1e-12)
	assert.InDelta(t, e.Grad[0], e2.Grad[0], 1e-12)
}

func TestObjectiveNaNBecomesInf(t *testing.T) {
	obj := NewObjective(func(theta []float64, order int) (float64, []float64, *mat.Dense, error) {
		return math.NaN(), nil, nil, nil
	}, ScaleLogPosterior, 3)

	e := obj.Evaluate([]float64{1, 2, 3}, 2)
	assert.True(t, e.Failed)
	assert.True(t, math.IsInf(e.Value, 1))
	require.Len(t, e.Grad, 3)
	for _, g := range e.Grad {
		assert.Zero(t, g)
	}
	r, c := e.Hess.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 3, c)
	assert.Zero(t, mat.Norm(e.Hess, 1))
}

func TestObjectiveErrorAndPanicRecovered(t *testing.T) {
	failing := NewObjective(func(theta []float64, order int) (float64, []float64, *mat.Dense, error) {
		return 0, nil, nil, errors.New("model blew up")
	}, ScaleLogPosterior, 2)
	e := failing.Evaluate([]float64{0, 0}, 0)
	assert.True(t, e.Failed)
	assert.True(t, math.IsInf(e.Value, 1))

	panicking := NewObjective(func(theta []float64, order int) (float64, []float64, *mat.Dense, error) {
		panic("integration failure")
	}, ScaleNegLogPosterior, 2)
	e = panicking.Evaluate([]float64{0, 0}, 1)
	assert.True(t, e.Failed)
	assert.True(t, math.IsInf(e.Value, 1))
	require.Len(t, e.Grad, 2)
}

func TestObjectiveNaNGradientFailsWholeEval(t *testing.T) {
	obj := NewObjective(func(theta []float64, order int) (float64, []float64, *mat.Dense, error) {
		grad := []float64{1, math.NaN()}
		return 1.0, grad, nil, nil
	}, ScaleNegLogPosterior, 2)

	// Value alone is fine.
	e := obj.Evaluate([]float64{0, 0}, 0)
	assert.False(t, e.Failed)

	// Requesting the poisoned gradient fails the evaluation.
	e = obj.Evaluate([]float64{0, 0}, 1)
	assert.True(t, e.Failed)
	assert.True(t, math.IsInf(e.Value, 1))
}

func TestLogPosterior(t *testing.T) {
	obj := NewObjective(quadraticLogPost, ScaleLogPosterior, 2)
	assert.InDelta(t, -2.5, obj.LogPosterior([]float64{1, 2}), 1e-12)
	assert.InDelta(t, 0, obj.LogPosterior([]float64{0, 0}), 1e-12)
}

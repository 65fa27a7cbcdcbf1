package profile

import (
	"math"

	"github.com/cwbudde/profilefit/internal/solver"
	"gonum.org/v1/gonum/floats"
)

// UpdateMode selects how the warm-start direction vector is used.
type UpdateMode int

const (
	// MultiDimensional steps along the full direction vector.
	MultiDimensional UpdateMode = iota
	// OneDimensional zeroes all but the active dimension, a coordinate step.
	OneDimensional
)

// StepConfig tunes the warm-start line search used by the parallel tracer.
type StepConfig struct {
	Mode      UpdateMode
	ActiveDim int

	// Min and Max bracket the step length; Scale is the initial trial step,
	// typically the last accepted step.
	Min   float64
	Max   float64
	Scale float64

	// UpdateFactor is the geometric shrink/grow ratio.
	UpdateFactor float64
}

// DefaultStepConfig returns the bracket used when none is configured.
func DefaultStepConfig() StepConfig {
	return StepConfig{
		Mode:         MultiDimensional,
		Min:          1e-6,
		Max:          1.0,
		Scale:        0.1,
		UpdateFactor: 2.0,
	}
}

// ProposeStep advances theta along direction looking for the largest step
// whose objective stays at or below target while remaining feasible with
// respect to bounds and linear inequality constraints. It returns the
// proposed point and the objective value there. The result is a warm start
// only; the constrained solve that follows owns correctness.
func ProposeStep(theta, lower, upper, direction []float64, cfg StepConfig, target float64, obj func([]float64) float64, lin *solver.LinearConstraints) ([]float64, float64) {
	d := append([]float64(nil), direction...)
	if cfg.Mode == OneDimensional {
		for i := range d {
			if i != cfg.ActiveDim {
				d[i] = 0
			}
		}
	}
	norm := floats.Norm(d, 2)
	if norm == 0 {
		return append([]float64(nil), theta...), obj(theta)
	}
	floats.Scale(1/norm, d)

	// Largest step before a parameter bound is hit along the direction.
	stepBound := math.Inf(1)
	for i, di := range d {
		if di == 0 {
			continue
		}
		var span float64
		if di > 0 {
			if upper == nil {
				continue
			}
			span = (upper[i] - theta[i]) / di
		} else {
			if lower == nil {
				continue
			}
			span = (lower[i] - theta[i]) / di
		}
		if span < stepBound {
			stepBound = span
		}
	}
	if stepBound < 0 {
		stepBound = 0
	}

	at := func(c float64) []float64 {
		next := make([]float64, len(theta))
		floats.AddScaledTo(next, theta, c, d)
		return next
	}
	feasible := func(x []float64) bool {
		if !solver.InBounds(x, lower, upper) {
			return false
		}
		if lin != nil && !lin.Satisfied(x, 1e-9) {
			return false
		}
		return true
	}

	// Too close to the bound to search: snap onto it.
	if stepBound <= cfg.Min {
		next := at(stepBound)
		return next, obj(next)
	}

	maxStep := math.Min(cfg.Max, stepBound)
	c := math.Min(math.Max(cfg.Scale, cfg.Min), maxStep)

	cand := at(c)
	val := obj(cand)

	if !feasible(cand) || val > target {
		// Shrink until the point drops below the target level.
		for c > cfg.Min {
			c = math.Max(c/cfg.UpdateFactor, cfg.Min)
			cand = at(c)
			val = obj(cand)
			if feasible(cand) && val <= target {
				break
			}
		}
		return cand, val
	}

	// Below target already: grow while it stays feasible and below target.
	bestX, bestV := cand, val
	for c < maxStep {
		c = math.Min(c*cfg.UpdateFactor, maxStep)
		cand = at(c)
		val = obj(cand)
		if !feasible(cand) || val > target {
			break
		}
		bestX, bestV = cand, val
	}
	return bestX, bestV
}

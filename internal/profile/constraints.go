package profile

import (
	"github.com/cwbudde/profilefit/internal/objective"
	"github.com/cwbudde/profilefit/internal/solver"
)

// posteriorFloor builds the nonlinear constraint keeping the negative
// log-posterior at or below target: c(theta) = target - J(theta) >= 0.
// withGrad enables the analytic gradient when the user callback supplies one.
func posteriorFloor(obj *objective.Objective, target float64, withGrad bool) solver.Constraint {
	c := solver.Constraint{
		Kind: solver.Inequality,
		Eval: func(x []float64) float64 {
			return target - obj.Evaluate(x, 0).Value
		},
	}
	if withGrad {
		c.Grad = func(x, g []float64) {
			e := obj.Evaluate(x, 1)
			for i := range g {
				g[i] = -e.Grad[i]
			}
		}
	}
	return c
}

// boundaryPin builds the equality constraint pinning the property exactly at
// its domain bound for the given direction during boundary reoptimization.
func boundaryPin(prop *objective.Property, dir int, withGrad bool) solver.Constraint {
	c := solver.Constraint{
		Kind: solver.Equality,
		Eval: func(x []float64) float64 {
			return prop.BoundaryConstraint(x, dir, 0).Value
		},
	}
	if withGrad {
		c.Grad = func(x, g []float64) {
			e := prop.BoundaryConstraint(x, dir, 1)
			copy(g, e.Grad)
		}
	}
	return c
}

package solver

import "gonum.org/v1/gonum/mat"

// LinearConstraints holds a system of linear constraints A*x <= b
// (or A*x = b when used as equalities). A is m x n, B has length m.
type LinearConstraints struct {
	A *mat.Dense
	B []float64
}

// Rows returns the number of constraint rows, zero for a nil receiver.
func (lc *LinearConstraints) Rows() int {
	if lc == nil || lc.A == nil {
		return 0
	}
	r, _ := lc.A.Dims()
	return r
}

// Residual computes b_i - a_i*x for row i. Positive residuals mean the
// inequality row is satisfied with slack.
func (lc *LinearConstraints) Residual(i int, x []float64) float64 {
	row := lc.A.RawRowView(i)
	dot := 0.0
	for j, a := range row {
		dot += a * x[j]
	}
	return lc.B[i] - dot
}

// Satisfied reports whether A*x <= b holds within tol on every row.
func (lc *LinearConstraints) Satisfied(x []float64, tol float64) bool {
	for i := 0; i < lc.Rows(); i++ {
		if lc.Residual(i, x) < -tol {
			return false
		}
	}
	return true
}

// InBounds reports whether x lies elementwise within [lower, upper].
// Nil bound slices mean unbounded on that side.
func InBounds(x, lower, upper []float64) bool {
	for i, v := range x {
		if lower != nil && v < lower[i] {
			return false
		}
		if upper != nil && v > upper[i] {
			return false
		}
	}
	return true
}

// clampToBounds projects x elementwise into [lower, upper] in place.
func clampToBounds(x, lower, upper []float64) {
	for i := range x {
		if lower != nil && x[i] < lower[i] {
			x[i] = lower[i]
		}
		if upper != nil && x[i] > upper[i] {
			x[i] = upper[i]
		}
	}
}

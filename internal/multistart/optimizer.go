package multistart

// GlobalOptimizer defines a derivative-free global optimization algorithm
// used as the optional pre-search before local refinement.
type GlobalOptimizer interface {
	// Run executes the optimization.
	// eval: objective function to minimize
	// lower, upper: parameter bounds
	// dim: dimensionality of parameter space
	// Returns: best parameters and best cost
	Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64)
}

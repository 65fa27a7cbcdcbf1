// Package multistart finds the MAP estimate by local optimization from many
// random starting points, optionally seeded with a global population-based
// pre-search. Its best result anchors profile tracing and MCMC sampling.
package multistart

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"

	"github.com/cwbudde/profilefit/internal/problem"
	"golang.org/x/sync/errgroup"
)

// Config tunes a multi-start run.
type Config struct {
	// Starts is the number of local optimizations.
	Starts int
	// Seed makes start sampling reproducible.
	Seed int64
	// LocalIters caps each Nelder-Mead refinement.
	LocalIters int
	// GlobalIters enables a mayfly global pre-search when positive; its
	// result replaces the first random start.
	GlobalIters int
	// GlobalPop is the mayfly population size.
	GlobalPop int
	// Workers bounds the number of concurrent local optimizations.
	Workers int
}

// DefaultConfig returns a balanced multi-start setup.
func DefaultConfig() Config {
	return Config{
		Starts:      20,
		Seed:        42,
		LocalIters:  300,
		GlobalIters: 100,
		GlobalPop:   20,
		Workers:     4,
	}
}

// StartResult is one local optimization outcome in minimization form.
type StartResult struct {
	Start      int       `json:"start"`
	Theta      []float64 `json:"theta"`
	NegLogPost float64   `json:"negLogPost"`
}

// Results holds all start outcomes sorted best first.
type Results struct {
	Starts []StartResult `json:"starts"`
}

// Best returns the MAP estimate: the parameter vector and log-posterior of
// the best start.
func (r *Results) Best() ([]float64, float64) {
	best := r.Starts[0]
	return best.Theta, -best.NegLogPost
}

// At returns the result at the given rank (0 = best).
func (r *Results) At(index int) ([]float64, float64, error) {
	if index < 0 || index >= len(r.Starts) {
		return nil, 0, fmt.Errorf("multistart: result index %d out of range [0,%d)", index, len(r.Starts))
	}
	return r.Starts[index].Theta, -r.Starts[index].NegLogPost, nil
}

// Run executes the multi-start optimization for the problem.
func Run(prob *problem.Problem, cfg Config) (*Results, error) {
	if err := prob.Validate(); err != nil {
		return nil, err
	}
	if cfg.Starts <= 0 {
		return nil, fmt.Errorf("multistart: Starts must be positive, got %d", cfg.Starts)
	}
	if cfg.LocalIters <= 0 {
		return nil, fmt.Errorf("multistart: LocalIters must be positive, got %d", cfg.LocalIters)
	}

	n := prob.NPar()
	eval := func(x []float64) float64 { return prob.Objective.Evaluate(x, 0).Value }

	// Sample all starts up front so the run is reproducible regardless of
	// worker scheduling.
	rng := rand.New(rand.NewSource(cfg.Seed))
	starts := make([][]float64, cfg.Starts)
	for s := range starts {
		x := make([]float64, n)
		for i := range x {
			x[i] = prob.Lower[i] + rng.Float64()*(prob.Upper[i]-prob.Lower[i])
		}
		starts[s] = x
	}

	if cfg.GlobalIters > 0 {
		slog.Info("Running global pre-search", "iters", cfg.GlobalIters, "pop", cfg.GlobalPop)
		global := NewMayfly(cfg.GlobalIters, cfg.GlobalPop, cfg.Seed)
		best, cost := global.Run(eval, prob.Lower, prob.Upper, n)
		slog.Info("Global pre-search complete", "cost", cost)
		starts[0] = best
	}

	results := make([]StartResult, cfg.Starts)
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for s := range starts {
		s := s
		g.Go(func() error {
			theta, val := refineLocal(eval, starts[s], prob.Lower, prob.Upper, cfg.LocalIters)
			results[s] = StartResult{Start: s, Theta: theta, NegLogPost: val}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].NegLogPost < results[j].NegLogPost
	})

	slog.Info("Multi-start complete",
		"starts", cfg.Starts,
		"best_neg_log_post", results[0].NegLogPost,
	)
	return &Results{Starts: results}, nil
}

// Package sample draws posterior samples with a parallel-tempering
// Metropolis sampler over the robust objective. Hot chains flatten the
// posterior so the cold chain can cross between modes via replica swaps.
package sample

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/cwbudde/profilefit/internal/problem"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"
)

// Config tunes the tempered sampler.
type Config struct {
	// Iterations is the number of retained post-burn-in steps per chain.
	Iterations int
	// BurnIn steps are discarded and used for proposal adaptation.
	BurnIn int
	// Chains is the number of temperature rungs; chain 0 is the cold chain.
	Chains int
	// TempFactor is the geometric spacing of inverse temperatures.
	TempFactor float64
	// SwapInterval is the number of steps between replica swap sweeps.
	SwapInterval int
	// StepScale is the initial proposal standard deviation relative to the
	// parameter box width.
	StepScale float64
	// TargetAcceptance steers proposal adaptation during burn-in.
	TargetAcceptance float64
	Seed             uint64
}

// DefaultConfig returns sampler settings that behave well on smooth
// low-dimensional posteriors.
func DefaultConfig() Config {
	return Config{
		Iterations:       5000,
		BurnIn:           1000,
		Chains:           4,
		TempFactor:       2.0,
		SwapInterval:     20,
		StepScale:        0.05,
		TargetAcceptance: 0.3,
		Seed:             42,
	}
}

// Result is the output of a sampling run. Samples and LogPost come from the
// cold chain only.
type Result struct {
	Samples [][]float64
	LogPost []float64

	// Acceptance is the post-burn-in acceptance rate per chain.
	Acceptance []float64
	// SwapAcceptance is the swap rate per adjacent chain pair.
	SwapAcceptance []float64
}

type chain struct {
	beta    float64
	theta   []float64
	logPost float64
	scale   float64
	normal  distuv.Normal
	uniform distuv.Uniform

	accepted int
	proposed int
}

// Run samples the posterior starting every chain from start, typically the
// MAP estimate.
func Run(prob *problem.Problem, start []float64, cfg Config) (*Result, error) {
	if err := prob.Validate(); err != nil {
		return nil, err
	}
	if len(start) != prob.NPar() {
		return nil, fmt.Errorf("sample: start has %d parameters, problem has %d", len(start), prob.NPar())
	}
	if cfg.Iterations <= 0 || cfg.Chains <= 0 {
		return nil, fmt.Errorf("sample: Iterations and Chains must be positive")
	}
	if cfg.SwapInterval <= 0 {
		cfg.SwapInterval = 20
	}
	if cfg.TempFactor <= 1 {
		cfg.TempFactor = 2.0
	}

	n := prob.NPar()
	logPost := func(x []float64) float64 { return prob.Objective.LogPosterior(x) }

	width := make([]float64, n)
	for i := range width {
		width[i] = prob.Upper[i] - prob.Lower[i]
	}

	chains := make([]*chain, cfg.Chains)
	startLP := logPost(start)
	for k := range chains {
		src := rand.NewSource(cfg.Seed + uint64(k)*7919)
		chains[k] = &chain{
			beta:    math.Pow(cfg.TempFactor, -float64(k)),
			theta:   append([]float64(nil), start...),
			logPost: startLP,
			scale:   cfg.StepScale,
			normal:  distuv.Normal{Mu: 0, Sigma: 1, Src: src},
			uniform: distuv.Uniform{Min: 0, Max: 1, Src: src},
		}
	}
	swapSrc := rand.New(rand.NewSource(cfg.Seed + 104729))

	slog.Info("Starting tempered sampling",
		"chains", cfg.Chains, "burn_in", cfg.BurnIn, "iterations", cfg.Iterations)

	res := &Result{
		Samples:        make([][]float64, 0, cfg.Iterations),
		LogPost:        make([]float64, 0, cfg.Iterations),
		Acceptance:     make([]float64, cfg.Chains),
		SwapAcceptance: make([]float64, cfg.Chains-1),
	}
	swapTried := make([]int, cfg.Chains-1)
	swapDone := make([]int, cfg.Chains-1)

	total := cfg.BurnIn + cfg.Iterations
	for step := 0; step < total; step += cfg.SwapInterval {
		burnin := step < cfg.BurnIn
		sweep := cfg.SwapInterval
		if step+sweep > total {
			sweep = total - step
		}

		// Chains advance independently between swap sweeps.
		var g errgroup.Group
		for _, c := range chains {
			c := c
			g.Go(func() error {
				for i := 0; i < sweep; i++ {
					c.advance(prob, logPost, width)
				}
				if burnin {
					c.adapt(cfg.TargetAcceptance)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		// Adjacent replica swaps.
		for k := 0; k < len(chains)-1; k++ {
			a, b := chains[k], chains[k+1]
			swapTried[k]++
			logAlpha := (a.beta - b.beta) * (b.logPost - a.logPost)
			if logAlpha >= 0 || swapSrc.Float64() < math.Exp(logAlpha) {
				a.theta, b.theta = b.theta, a.theta
				a.logPost, b.logPost = b.logPost, a.logPost
				swapDone[k]++
			}
		}

		if !burnin {
			// Record the cold chain once per sweep boundary; thinning by
			// the swap interval keeps samples roughly independent.
			cold := chains[0]
			res.Samples = append(res.Samples, append([]float64(nil), cold.theta...))
			res.LogPost = append(res.LogPost, cold.logPost)
		}
	}

	for k, c := range chains {
		if c.proposed > 0 {
			res.Acceptance[k] = float64(c.accepted) / float64(c.proposed)
		}
	}
	for k := range swapTried {
		if swapTried[k] > 0 {
			res.SwapAcceptance[k] = float64(swapDone[k]) / float64(swapTried[k])
		}
	}

	slog.Info("Sampling complete",
		"samples", len(res.Samples),
		"cold_acceptance", res.Acceptance[0],
	)
	return res, nil
}

// advance performs one Metropolis step at the chain's temperature.
func (c *chain) advance(prob *problem.Problem, logPost func([]float64) float64, width []float64) {
	proposal := make([]float64, len(c.theta))
	for i := range proposal {
		proposal[i] = c.theta[i] + c.scale*width[i]*c.normal.Rand()
	}
	c.proposed++

	// Out-of-box proposals are rejected outright.
	for i := range proposal {
		if proposal[i] < prob.Lower[i] || proposal[i] > prob.Upper[i] {
			return
		}
	}

	lp := logPost(proposal)
	if math.IsInf(lp, -1) {
		return
	}
	logAlpha := c.beta * (lp - c.logPost)
	if logAlpha >= 0 || c.uniform.Rand() < math.Exp(logAlpha) {
		c.theta = proposal
		c.logPost = lp
		c.accepted++
	}
}

// adapt nudges the proposal scale toward the target acceptance rate.
func (c *chain) adapt(target float64) {
	if c.proposed == 0 {
		return
	}
	rate := float64(c.accepted) / float64(c.proposed)
	if rate > target {
		c.scale *= 1.1
	} else {
		c.scale /= 1.1
	}
	c.accepted = 0
	c.proposed = 0
}

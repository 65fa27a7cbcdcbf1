package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cwbudde/profilefit/internal/multistart"
	"github.com/cwbudde/profilefit/internal/problem"
	"github.com/spf13/cobra"
)

var (
	optProblemPath string
	optOutPath     string
	optStarts      int
	optSeed        int64
	optLocalIters  int
	optGlobalIters int
	optGlobalPop   int
	optWorkers     int
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Find the MAP estimate with multi-start optimization",
	Long: `Runs randomized multi-start local optimization over the posterior,
optionally seeded by a mayfly global pre-search, and reports the best
parameter vector found.`,
	RunE: runOptimize,
}

func init() {
	optimizeCmd.Flags().StringVar(&optProblemPath, "problem", "", "Problem definition JSON path (required)")
	optimizeCmd.Flags().StringVar(&optOutPath, "out", "", "Write the result as JSON to this path")
	optimizeCmd.Flags().IntVar(&optStarts, "starts", 20, "Number of random starts")
	optimizeCmd.Flags().Int64Var(&optSeed, "seed", 42, "Random seed")
	optimizeCmd.Flags().IntVar(&optLocalIters, "local-iters", 300, "Max iterations per local refinement")
	optimizeCmd.Flags().IntVar(&optGlobalIters, "global-iters", 100, "Mayfly pre-search iterations (0 = disabled)")
	optimizeCmd.Flags().IntVar(&optGlobalPop, "global-pop", 20, "Mayfly population size")
	optimizeCmd.Flags().IntVar(&optWorkers, "workers", 4, "Concurrent local optimizations")

	optimizeCmd.MarkFlagRequired("problem")
	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	prob, err := problem.Load(optProblemPath)
	if err != nil {
		return fmt.Errorf("failed to load problem: %w", err)
	}

	slog.Info("Starting optimization", "problem", prob.Name, "params", prob.NPar(), "starts", optStarts)

	cfg := multistart.Config{
		Starts:      optStarts,
		Seed:        optSeed,
		LocalIters:  optLocalIters,
		GlobalIters: optGlobalIters,
		GlobalPop:   optGlobalPop,
		Workers:     optWorkers,
	}

	start := time.Now()
	results, err := multistart.Run(prob, cfg)
	if err != nil {
		return fmt.Errorf("optimization failed: %w", err)
	}
	elapsed := time.Since(start)

	theta, logPost := results.Best()

	slog.Info("Optimization complete",
		"elapsed", elapsed,
		"log_post", logPost,
		"starts", len(results.Starts),
	)

	if optOutPath != "" {
		out := struct {
			Problem string    `json:"problem"`
			Theta   []float64 `json:"theta"`
			LogPost float64   `json:"logPost"`
		}{prob.Name, theta, logPost}

		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to serialize result: %w", err)
		}
		if err := os.WriteFile(optOutPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
		fmt.Printf("Wrote %s\n", optOutPath)
	}

	fmt.Printf("MAP estimate (log posterior %.6g):\n", logPost)
	for i, v := range theta {
		fmt.Printf("  theta[%d] = %.6g\n", i, v)
	}

	return nil
}

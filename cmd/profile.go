package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/profilefit/internal/multistart"
	"github.com/cwbudde/profilefit/internal/problem"
	"github.com/cwbudde/profilefit/internal/profile"
	"github.com/cwbudde/profilefit/internal/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	profProblemPath string
	profMode        string
	profIndices     []int
	profDRMax       float64
	profDJ          float64
	profRMin        float64
	profMaxPoints   int
	profWarmStart   bool
	profStarts      int
	profSeed        int64
	profDataDir     string
	profSave        bool
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Trace profile likelihoods for the problem's properties",
	Long: `Finds the MAP estimate with multi-start optimization, then traces
the profile likelihood of each selected property in both directions by
repeated constrained re-optimization.`,
	RunE: runProfile,
}

func init() {
	profileCmd.Flags().StringVar(&profProblemPath, "problem", "", "Problem definition JSON path (required)")
	profileCmd.Flags().StringVar(&profMode, "mode", "sequential", "Execution mode: sequential, parallel")
	profileCmd.Flags().IntSliceVar(&profIndices, "index", nil, "Property indices to profile (default: all)")
	profileCmd.Flags().Float64Var(&profDRMax, "drmax", 0.1, "Max likelihood-ratio drop per point")
	profileCmd.Flags().Float64Var(&profDJ, "dj", 0.5, "Step allowance damping away from the optimum")
	profileCmd.Flags().Float64Var(&profRMin, "rmin", 0.03, "Likelihood-ratio floor for stopping")
	profileCmd.Flags().IntVar(&profMaxPoints, "max-points", 200, "Max points per direction")
	profileCmd.Flags().BoolVar(&profWarmStart, "warm-start", true, "Warm-start each constrained solve")
	profileCmd.Flags().IntVar(&profStarts, "starts", 20, "Random starts for the MAP phase")
	profileCmd.Flags().Int64Var(&profSeed, "seed", 42, "Random seed")
	profileCmd.Flags().StringVar(&profDataDir, "data-dir", "./data", "Base directory for run storage")
	profileCmd.Flags().BoolVar(&profSave, "save", false, "Persist the run record and point stream")

	profileCmd.MarkFlagRequired("problem")
	rootCmd.AddCommand(profileCmd)
}

func runProfile(cmd *cobra.Command, args []string) error {
	prob, err := problem.Load(profProblemPath)
	if err != nil {
		return fmt.Errorf("failed to load problem: %w", err)
	}

	slog.Info("Starting profile run",
		"problem", prob.Name,
		"properties", len(prob.Properties),
		"mode", profMode,
	)

	// Phase 1: MAP estimate
	msCfg := multistart.DefaultConfig()
	msCfg.Starts = profStarts
	msCfg.Seed = profSeed

	results, err := multistart.Run(prob, msCfg)
	if err != nil {
		return fmt.Errorf("optimization failed: %w", err)
	}
	theta, logPost := results.Best()
	slog.Info("MAP phase complete", "log_post", logPost)

	// Phase 2: profile tracing
	cfg := profile.DefaultConfig()
	cfg.Indices = profIndices
	cfg.DRMax = profDRMax
	cfg.DJ = profDJ
	cfg.RMin = profRMin
	cfg.MaxPoints = profMaxPoints
	cfg.Mode = profile.Mode(profMode)
	cfg.WarmStart = profWarmStart
	cfg.Progress = profile.TextProgress{}

	runID := uuid.New().String()
	var runStore *store.FSStore
	if profSave {
		runStore, err = store.NewFSStore(profDataDir)
		if err != nil {
			return fmt.Errorf("failed to create run store: %w", err)
		}
		writer, err := store.NewPointWriter(profDataDir, runID, false)
		if err != nil {
			return fmt.Errorf("failed to create point writer: %w", err)
		}
		defer func() {
			if err := writer.Close(); err != nil {
				slog.Warn("Failed to close point writer", "error", err)
			}
		}()
		cfg.Sink = writer
	}

	start := time.Now()
	profiles, err := profile.Compute(prob, profile.MAP{Theta: theta, LogPost: logPost}, cfg)
	if err != nil {
		return fmt.Errorf("profiling failed: %w", err)
	}
	elapsed := time.Since(start)

	// Summary table
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROPERTY\tPOINTS\tMIN VALUE\tMAX VALUE\tMIN RATIO")
	fmt.Fprintln(w, "--------\t------\t---------\t---------\t---------")
	totalPoints := 0
	for _, p := range profiles {
		minVal := p.Points[0].PropValue
		maxVal := p.Points[len(p.Points)-1].PropValue
		minRatio := 1.0
		for _, pt := range p.Points {
			if pt.Ratio < minRatio {
				minRatio = pt.Ratio
			}
		}
		fmt.Fprintf(w, "%s\t%d\t%.6g\t%.6g\t%.4f\n", p.Name, len(p.Points), minVal, maxVal, minRatio)
		totalPoints += len(p.Points)
	}
	w.Flush()

	slog.Info("Profiling complete", "elapsed", elapsed, "points", totalPoints)

	if profSave && runStore != nil {
		record := store.NewRunRecord(runID, theta, logPost, store.RunConfig{
			ProblemPath: profProblemPath,
			Mode:        profMode,
			Starts:      profStarts,
			Seed:        profSeed,
			DRMax:       profDRMax,
			DJ:          profDJ,
			RMin:        profRMin,
			MaxPoints:   profMaxPoints,
		})
		record.Profiles = make([]store.ProfileRecord, len(profiles))
		for i, p := range profiles {
			pr := store.ProfileRecord{Name: p.Name, Index: p.Index, Points: make([]store.PointEntry, len(p.Points))}
			for j, pt := range p.Points {
				pr.Points[j] = store.PointEntry{
					PropertyIndex: p.Index,
					PropValue:     pt.PropValue,
					Theta:         pt.Theta,
					LogPost:       pt.LogPost,
					Ratio:         pt.Ratio,
					Status:        int(pt.Status),
					Timestamp:     time.Now(),
				}
			}
			record.Profiles[i] = pr
		}
		if err := runStore.SaveRun(runID, record); err != nil {
			return fmt.Errorf("failed to save run record: %w", err)
		}
		fmt.Printf("Saved run %s\n", runID)
	}

	return nil
}

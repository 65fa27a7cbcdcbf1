package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/profilefit/internal/multistart"
	"github.com/cwbudde/profilefit/internal/problem"
	"github.com/cwbudde/profilefit/internal/profile"
	"github.com/cwbudde/profilefit/internal/store"
)

// runEstimation executes an estimation run in the background: the multistart
// optimization phase first, then profile tracing for every property. If
// runStore is not nil the final record is persisted.
func runEstimation(ctx context.Context, rm *RunManager, runStore store.Store, runID string) error {
	run, exists := rm.GetRun(runID)
	if !exists {
		return fmt.Errorf("run not found: %s", runID)
	}

	err := rm.UpdateRun(runID, func(r *Run) {
		r.State = StateRunning
	})
	if err != nil {
		return err
	}

	slog.Info("Starting run", "run_id", runID, "problem", run.Config.ProblemPath)

	// Load the problem definition
	prob, err := problem.Load(run.Config.ProblemPath)
	if err != nil {
		markRunFailed(rm, runID, fmt.Errorf("failed to load problem: %w", err))
		return err
	}

	slog.Info("Problem loaded", "run_id", runID, "name", prob.Name, "params", prob.NPar(), "properties", len(prob.Properties))

	// Check for cancellation before starting the expensive phase
	select {
	case <-ctx.Done():
		markRunCancelled(rm, runID)
		return ctx.Err()
	default:
	}

	// Phase 1: multistart optimization
	start := time.Now()
	msCfg := multistart.DefaultConfig()
	if run.Config.Starts > 0 {
		msCfg.Starts = run.Config.Starts
	}
	if run.Config.Seed != 0 {
		msCfg.Seed = run.Config.Seed
	}

	results, err := multistart.Run(prob, msCfg)
	if err != nil {
		markRunFailed(rm, runID, fmt.Errorf("optimization failed: %w", err))
		return err
	}
	mapTheta, logPost := results.Best()

	rm.UpdateRun(runID, func(r *Run) {
		r.MAPTheta = mapTheta
		r.LogPost = logPost
	})
	rm.broadcaster.Broadcast(ProgressEvent{
		RunID:     runID,
		State:     StateRunning,
		Phase:     "optimize",
		LogPost:   logPost,
		Timestamp: time.Now(),
	})

	slog.Info("Optimization phase complete", "run_id", runID, "log_post", logPost, "elapsed", time.Since(start))

	select {
	case <-ctx.Done():
		markRunCancelled(rm, runID)
		return ctx.Err()
	default:
	}

	// Phase 2: profile tracing
	profCfg := profile.DefaultConfig()
	if run.Config.DRMax > 0 {
		profCfg.DRMax = run.Config.DRMax
	}
	if run.Config.DJ > 0 {
		profCfg.DJ = run.Config.DJ
	}
	if run.Config.RMin > 0 {
		profCfg.RMin = run.Config.RMin
	}
	if run.Config.MaxPoints > 0 {
		profCfg.MaxPoints = run.Config.MaxPoints
	}
	if run.Config.Mode != "" {
		profCfg.Mode = profile.Mode(run.Config.Mode)
	}
	profCfg.Progress = &broadcastProgress{rm: rm, runID: runID}

	profiles, err := profile.Compute(prob, profile.MAP{Theta: mapTheta, LogPost: logPost}, profCfg)
	if err != nil {
		markRunFailed(rm, runID, fmt.Errorf("profiling failed: %w", err))
		return err
	}

	points := 0
	for _, p := range profiles {
		points += len(p.Points)
	}

	endTime := time.Now()
	err = rm.UpdateRun(runID, func(r *Run) {
		r.State = StateCompleted
		r.Profiles = profiles
		r.Points = points
		r.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	slog.Info("Run completed",
		"run_id", runID,
		"elapsed", time.Since(start),
		"log_post", logPost,
		"points", points,
	)

	// Persist the final record
	if runStore != nil {
		if err := saveRunRecord(runStore, runID, run.Config, mapTheta, logPost, profiles); err != nil {
			slog.Warn("Failed to persist run record", "run_id", runID, "error", err)
		}
	}

	// Broadcast final completion event
	rm.broadcaster.Broadcast(ProgressEvent{
		RunID:     runID,
		State:     StateCompleted,
		Phase:     "profile",
		Points:    points,
		LogPost:   logPost,
		Timestamp: time.Now(),
	})

	return nil
}

// broadcastProgress forwards accepted profile points to SSE subscribers.
type broadcastProgress struct {
	rm    *RunManager
	runID string
}

func (bp *broadcastProgress) Point(property string, propertyIndex, direction, pointIndex int, propValue, ratio float64) {
	bp.rm.UpdateRun(bp.runID, func(r *Run) {
		r.Points++
	})
	run, _ := bp.rm.GetRun(bp.runID)
	points := 0
	if run != nil {
		points = run.Points
	}
	bp.rm.broadcaster.Broadcast(ProgressEvent{
		RunID:     bp.runID,
		State:     StateRunning,
		Phase:     "profile",
		Property:  property,
		Direction: direction,
		Points:    points,
		Ratio:     ratio,
		Timestamp: time.Now(),
	})
}

// saveRunRecord converts run results into a persistable record.
func saveRunRecord(runStore store.Store, runID string, config RunConfig, mapTheta []float64, logPost float64, profiles []*profile.Profile) error {
	record := store.NewRunRecord(runID, mapTheta, logPost, config)
	record.Profiles = make([]store.ProfileRecord, len(profiles))
	for i, p := range profiles {
		pr := store.ProfileRecord{
			Name:   p.Name,
			Index:  p.Index,
			Points: make([]store.PointEntry, len(p.Points)),
		}
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

	slog.Info("Run record saved", "run_id", runID, "profiles", len(profiles))
	return nil
}

// markRunFailed marks a run as failed with an error message
func markRunFailed(rm *RunManager, runID string, err error) {
	endTime := time.Now()
	rm.UpdateRun(runID, func(r *Run) {
		r.State = StateFailed
		r.Error = err.Error()
		r.EndTime = &endTime
	})
	slog.Error("Run failed", "run_id", runID, "error", err)
}

// markRunCancelled marks a run as cancelled
func markRunCancelled(rm *RunManager, runID string) {
	endTime := time.Now()
	rm.UpdateRun(runID, func(r *Run) {
		r.State = StateCancelled
		r.EndTime = &endTime
	})
	slog.Info("Run cancelled", "run_id", runID)
}

package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/cwbudde/profilefit/internal/profile"
	"github.com/cwbudde/profilefit/internal/store"
	"github.com/google/uuid"
)

// RunState represents the current state of an estimation run
type RunState string

const (
	StatePending   RunState = "pending"
	StateRunning   RunState = "running"
	StateCompleted RunState = "completed"
	StateFailed    RunState = "failed"
	StateCancelled RunState = "cancelled"
)

// RunConfig is an alias to avoid duplication with store.RunConfig
type RunConfig = store.RunConfig

// Run represents an estimation run
type Run struct {
	ID        string             `json:"id"`
	State     RunState           `json:"state"`
	Config    RunConfig          `json:"config"`
	MAPTheta  []float64          `json:"mapTheta,omitempty"`
	LogPost   float64            `json:"logPost"`
	Profiles  []*profile.Profile `json:"profiles,omitempty"`
	Points    int                `json:"points"`
	StartTime time.Time          `json:"startTime"`
	EndTime   *time.Time         `json:"endTime,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// RunManager manages the lifecycle of runs
type RunManager struct {
	mu          sync.RWMutex
	runs        map[string]*Run
	broadcaster *EventBroadcaster
}

// NewRunManager creates a new RunManager
func NewRunManager() *RunManager {
	return &RunManager{
		runs:        make(map[string]*Run),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateRun creates a new run with the given configuration
func (rm *RunManager) CreateRun(config RunConfig) *Run {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	run := &Run{
		ID:        uuid.New().String(),
		State:     StatePending,
		Config:    config,
		StartTime: time.Now(),
	}

	rm.runs[run.ID] = run
	return run
}

// GetRun retrieves a run by ID
func (rm *RunManager) GetRun(id string) (*Run, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	run, exists := rm.runs[id]
	return run, exists
}

// ListRuns returns all runs
func (rm *RunManager) ListRuns() []*Run {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	runs := make([]*Run, 0, len(rm.runs))
	for _, run := range rm.runs {
		runs = append(runs, run)
	}
	return runs
}

// UpdateRun atomically updates a run using the provided function
func (rm *RunManager) UpdateRun(id string, updateFn func(*Run)) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	run, exists := rm.runs[id]
	if !exists {
		return fmt.Errorf("run not found: %s", id)
	}

	updateFn(run)
	return nil
}

// GetRunningRuns returns all runs currently in the running state
func (rm *RunManager) GetRunningRuns() []*Run {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	running := make([]*Run, 0)
	for _, run := range rm.runs {
		if run.State == StateRunning {
			running = append(running, run)
		}
	}
	return running
}

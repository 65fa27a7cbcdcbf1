package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwbudde/profilefit/internal/store"
)

// Server represents the HTTP server
type Server struct {
	runManager *RunManager
	runStore   store.Store
	addr       string
	server     *http.Server
}

// NewServer creates a new HTTP server. runStore may be nil to disable
// persistence.
func NewServer(addr string, runStore store.Store) *Server {
	return &Server{
		runManager: NewRunManager(),
		runStore:   runStore,
		addr:       addr,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Register API routes
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/runs/", s.handleRunsWithID)

	// Wrap with middleware
	handler := s.loggingMiddleware(s.corsMiddleware(mux))

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: handler,
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleRuns handles /api/v1/runs
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateRun(w, r)
	case http.MethodGet:
		s.handleListRuns(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRunsWithID handles /api/v1/runs/:id/*
func (s *Server) handleRunsWithID(w http.ResponseWriter, r *http.Request) {
	// Parse run ID from path
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Run ID required", http.StatusBadRequest)
		return
	}

	runID := parts[0]

	// Route based on subpath
	if len(parts) == 1 || parts[1] == "status" {
		s.handleGetRunStatus(w, r, runID)
	} else if parts[1] == "profiles" {
		s.handleGetProfiles(w, r, runID)
	} else if parts[1] == "stream" {
		s.handleRunStream(w, r, runID)
	} else {
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateRun handles POST /api/v1/runs
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var config RunConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	// Validate config
	if config.ProblemPath == "" {
		http.Error(w, "problemPath is required", http.StatusBadRequest)
		return
	}
	if config.Starts <= 0 {
		config.Starts = 20
	}
	if config.DRMax <= 0 {
		config.DRMax = 0.1
	}
	if config.RMin <= 0 {
		config.RMin = 0.03
	}
	if config.MaxPoints <= 0 {
		config.MaxPoints = 200
	}
	if config.Mode == "" {
		config.Mode = "sequential"
	}
	if config.Mode != "sequential" && config.Mode != "parallel" {
		http.Error(w, fmt.Sprintf("unknown mode: %s", config.Mode), http.StatusBadRequest)
		return
	}

	// Create run
	run := s.runManager.CreateRun(config)

	// Start worker in background
	go runEstimation(context.Background(), s.runManager, s.runStore, run.ID)

	writeJSON(w, http.StatusCreated, run)
}

// handleListRuns handles GET /api/v1/runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runManager.ListRuns())
}

// handleGetRunStatus handles GET /api/v1/runs/:id/status
func (s *Server) handleGetRunStatus(w http.ResponseWriter, r *http.Request, runID string) {
	run, exists := s.runManager.GetRun(runID)
	if !exists {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	// Compute elapsed time
	var elapsed time.Duration
	if run.EndTime != nil {
		elapsed = run.EndTime.Sub(run.StartTime)
	} else {
		elapsed = time.Since(run.StartTime)
	}

	response := map[string]interface{}{
		"id":        run.ID,
		"state":     run.State,
		"config":    run.Config,
		"mapTheta":  run.MAPTheta,
		"logPost":   run.LogPost,
		"points":    run.Points,
		"elapsed":   elapsed.Seconds(),
		"startTime": run.StartTime,
		"endTime":   run.EndTime,
		"error":     run.Error,
	}

	writeJSON(w, http.StatusOK, response)
}

// handleGetProfiles handles GET /api/v1/runs/:id/profiles
func (s *Server) handleGetProfiles(w http.ResponseWriter, r *http.Request, runID string) {
	run, exists := s.runManager.GetRun(runID)
	if !exists {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	if run.Profiles == nil {
		http.Error(w, "No profiles yet", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, run.Profiles)
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

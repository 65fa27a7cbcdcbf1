package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTestProblem writes a small Gaussian problem spec and returns its path.
func writeTestProblem(t *testing.T) string {
	t.Helper()

	spec := []byte(`{
		"name": "test-gaussian",
		"model": "gaussian",
		"center": [0, 0],
		"sigma": [1, 1],
		"lower": [-5, -5],
		"upper": [5, 5]
	}`)

	path := filepath.Join(t.TempDir(), "gaussian.json")
	if err := os.WriteFile(path, spec, 0644); err != nil {
		t.Fatalf("Failed to write test problem: %v", err)
	}
	return path
}

func TestServer_CreateRun(t *testing.T) {
	probPath := writeTestProblem(t)

	s := NewServer(":8080", nil)

	config := RunConfig{
		ProblemPath: probPath,
		Mode:        "sequential",
		Starts:      4,
		Seed:        42,
	}

	body, _ := json.Marshal(config)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.handleCreateRun(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}

	var run Run
	if err := json.NewDecoder(w.Body).Decode(&run); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if run.ID == "" {
		t.Error("Run ID should not be empty")
	}

	// State should be pending or running (since worker starts immediately)
	if run.State != StatePending && run.State != StateRunning {
		t.Errorf("Expected pending or running state, got %s", run.State)
	}
}

func TestServer_CreateRun_MissingProblem(t *testing.T) {
	s := NewServer(":8080", nil)

	body, _ := json.Marshal(RunConfig{Mode: "sequential"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.handleCreateRun(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestServer_CreateRun_BadMode(t *testing.T) {
	s := NewServer(":8080", nil)

	body, _ := json.Marshal(RunConfig{ProblemPath: "p.json", Mode: "turbo"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.handleCreateRun(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestServer_ListRuns(t *testing.T) {
	s := NewServer(":8080", nil)

	s.runManager.CreateRun(RunConfig{ProblemPath: "a.json"})
	s.runManager.CreateRun(RunConfig{ProblemPath: "b.json"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	w := httptest.NewRecorder()

	s.handleListRuns(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var runs []*Run
	if err := json.NewDecoder(w.Body).Decode(&runs); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if len(runs) != 2 {
		t.Errorf("Expected 2 runs, got %d", len(runs))
	}
}

func TestServer_GetRunStatus(t *testing.T) {
	s := NewServer(":8080", nil)

	run := s.runManager.CreateRun(RunConfig{ProblemPath: "testdata/gaussian.json"})

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/runs/%s/status", run.ID), nil)
	w := httptest.NewRecorder()

	s.handleGetRunStatus(w, req, run.ID)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response["id"] != run.ID {
		t.Error("Response should contain run ID")
	}

	if response["state"] != string(StatePending) {
		t.Errorf("Expected pending state, got %v", response["state"])
	}
}

func TestServer_GetRunStatus_NotFound(t *testing.T) {
	s := NewServer(":8080", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/nonexistent/status", nil)
	w := httptest.NewRecorder()

	s.handleGetRunStatus(w, req, "nonexistent")

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestServer_GetProfiles_NotReady(t *testing.T) {
	s := NewServer(":8080", nil)

	run := s.runManager.CreateRun(RunConfig{ProblemPath: "testdata/gaussian.json"})

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/runs/%s/profiles", run.ID), nil)
	w := httptest.NewRecorder()

	s.handleGetProfiles(w, req, run.ID)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 before profiles exist, got %d", w.Code)
	}
}

func TestServer_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	probPath := writeTestProblem(t)

	s := NewServer("localhost:0", nil)
	srv := httptest.NewServer(s.corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/runs" && r.Method == http.MethodPost {
			s.handleCreateRun(w, r)
		} else if r.URL.Path == "/api/v1/runs" && r.Method == http.MethodGet {
			s.handleListRuns(w, r)
		} else {
			s.handleRunsWithID(w, r)
		}
	})))
	defer srv.Close()

	config := RunConfig{
		ProblemPath: probPath,
		Mode:        "sequential",
		Starts:      4,
		Seed:        42,
		MaxPoints:   20,
	}

	body, _ := json.Marshal(config)
	resp, err := http.Post(srv.URL+"/api/v1/runs", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}
	defer resp.Body.Close()

	var run Run
	json.NewDecoder(resp.Body).Decode(&run)

	// Poll status until completed
	maxAttempts := 300
	for i := 0; i < maxAttempts; i++ {
		resp, err := http.Get(srv.URL + "/api/v1/runs/" + run.ID + "/status")
		if err != nil {
			t.Fatalf("Failed to get status: %v", err)
		}

		var status map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()

		if status["state"] == string(StateCompleted) {
			break
		}

		if status["state"] == string(StateFailed) {
			t.Fatalf("Run failed: %v", status["error"])
		}

		if i == maxAttempts-1 {
			t.Fatal("Run did not complete in time")
		}

		time.Sleep(100 * time.Millisecond)
	}

	// Get profiles
	resp, err = http.Get(srv.URL + "/api/v1/runs/" + run.ID + "/profiles")
	if err != nil {
		t.Fatalf("Failed to get profiles: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}

	var profiles []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&profiles); err != nil {
		t.Fatalf("Failed to decode profiles: %v", err)
	}
	if len(profiles) == 0 {
		t.Error("Expected at least one profile")
	}
}

func TestServer_RunStream_NotFound(t *testing.T) {
	s := NewServer(":8080", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/nonexistent/stream", nil)
	w := httptest.NewRecorder()

	s.handleRunStream(w, req, "nonexistent")

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestEventBroadcaster(t *testing.T) {
	eb := NewEventBroadcaster()

	ch := eb.Subscribe("run1")
	defer eb.Unsubscribe("run1", ch)

	event := ProgressEvent{
		RunID:     "run1",
		State:     StateRunning,
		Phase:     "profile",
		Property:  "theta_0",
		Points:    10,
		Ratio:     0.42,
		Timestamp: time.Now(),
	}
	eb.Broadcast(event)

	select {
	case received := <-ch:
		if received.RunID != "run1" {
			t.Errorf("Expected runID run1, got %s", received.RunID)
		}
		if received.Points != 10 {
			t.Errorf("Expected 10 points, got %d", received.Points)
		}
		if received.Property != "theta_0" {
			t.Errorf("Expected property theta_0, got %s", received.Property)
		}
	case <-time.After(1 * time.Second):
		t.Error("Timeout waiting for event")
	}

	eb.CleanupRun("run1")
}

func TestEventBroadcaster_LastEventReplay(t *testing.T) {
	eb := NewEventBroadcaster()

	// Broadcast before anyone subscribes.
	eb.Broadcast(ProgressEvent{RunID: "run1", State: StateRunning, Points: 5})

	// A late subscriber receives the last event.
	ch := eb.Subscribe("run1")
	defer eb.Unsubscribe("run1", ch)

	select {
	case received := <-ch:
		if received.Points != 5 {
			t.Errorf("Expected replayed event with 5 points, got %d", received.Points)
		}
	case <-time.After(1 * time.Second):
		t.Error("Timeout waiting for replayed event")
	}
}

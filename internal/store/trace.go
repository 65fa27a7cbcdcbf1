package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cwbudde/profilefit/internal/profile"
)

// PointWriter streams accepted profile points to a JSONL file as tracing
// progresses, so a run that dies mid-trace still leaves its points behind.
// It implements profile.PointSink, uses buffered I/O, and is safe for
// concurrent use (parallel tracing appends from several goroutines).
type PointWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
}

// NewPointWriter creates a point writer for the given run.
// The file is created at <baseDir>/runs/<runID>/points.jsonl.
// If append is true, new entries are appended to an existing file.
func NewPointWriter(baseDir, runID string, append bool) (*PointWriter, error) {
	runDir := filepath.Join(baseDir, "runs", runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	path := filepath.Join(runDir, "points.jsonl")

	var file *os.File
	var err error
	if append {
		file, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	} else {
		file, err = os.Create(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open points file: %w", err)
	}

	return &PointWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, 64*1024),
		path:   path,
	}, nil
}

// AppendPoint writes one profile point as a JSON line. Entries are buffered
// and written out on Flush() or Close().
func (pw *PointWriter) AppendPoint(propertyIndex, direction int, pt profile.Point) error {
	entry := PointEntry{
		PropertyIndex: propertyIndex,
		Direction:     direction,
		PropValue:     pt.PropValue,
		Theta:         pt.Theta,
		LogPost:       pt.LogPost,
		Ratio:         pt.Ratio,
		Status:        int(pt.Status),
		Timestamp:     time.Now(),
	}

	pw.mu.Lock()
	defer pw.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal point entry: %w", err)
	}
	if _, err := pw.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write point entry: %w", err)
	}
	if err := pw.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	return nil
}

// Flush writes any buffered data to the file and syncs it to disk.
func (pw *PointWriter) Flush() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if err := pw.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush point writer: %w", err)
	}
	if err := pw.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync points file: %w", err)
	}
	return nil
}

// Close flushes buffered data and closes the points file.
func (pw *PointWriter) Close() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if err := pw.writer.Flush(); err != nil {
		pw.file.Close()
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := pw.file.Close(); err != nil {
		return fmt.Errorf("failed to close points file: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the points file.
func (pw *PointWriter) Path() string {
	return pw.path
}

// PointReader reads profile point entries from a JSONL file.
type PointReader struct {
	file    *os.File
	scanner *bufio.Scanner
}

// NewPointReader creates a point reader for the given run.
func NewPointReader(baseDir, runID string) (*PointReader, error) {
	path := filepath.Join(baseDir, "runs", runID, "points.jsonl")

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{RunID: runID}
		}
		return nil, fmt.Errorf("failed to open points file: %w", err)
	}

	scanner := bufio.NewScanner(file)
	// Theta payloads make lines long; allow up to 1MB.
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &PointReader{file: file, scanner: scanner}, nil
}

// Read reads the next point entry. Returns io.EOF when exhausted.
func (pr *PointReader) Read() (*PointEntry, error) {
	if !pr.scanner.Scan() {
		if err := pr.scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan points line: %w", err)
		}
		return nil, io.EOF
	}

	var entry PointEntry
	if err := json.Unmarshal(pr.scanner.Bytes(), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal point entry: %w", err)
	}
	return &entry, nil
}

// ReadAll reads all point entries from the file.
func (pr *PointReader) ReadAll() ([]PointEntry, error) {
	var entries []PointEntry
	for {
		entry, err := pr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// Close closes the point reader.
func (pr *PointReader) Close() error {
	if err := pr.file.Close(); err != nil {
		return fmt.Errorf("failed to close points file: %w", err)
	}
	return nil
}

// DeletePoints removes the points file for the given run.
// Returns nil if the file doesn't exist.
func DeletePoints(baseDir, runID string) error {
	path := filepath.Join(baseDir, "runs", runID, "points.jsonl")

	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete points file: %w", err)
	}
	return nil
}

package workflow

import (
	"bufio"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pellucid-labs/craftpilot/pkg/orchestrate"
)

// GenerateRunID creates a run ID in format YYYYMMDDTHHmmss-xxxx.
func GenerateRunID() string {
	ts := time.Now().Format("20060102T150405")
	suffix := make([]byte, 4)
	rand.Read(suffix)
	return fmt.Sprintf("%s-%x", ts, suffix)
}

// TaskEvent is one JSONL trace line: a phase transition, a resolved plan or
// a terminal outcome, with enough context to reconstruct the run timeline.
type TaskEvent struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	Phase     Phase     `json:"phase"`
	Message   string    `json:"message,omitempty"`
	Tick      int       `json:"tick,omitempty"`
}

// TraceWriter appends TaskEvents to a JSONL trace file, flushing and syncing
// at event boundaries so a crash loses at most the current line.
type TraceWriter struct {
	file   *os.File
	writer *bufio.Writer
	enc    *json.Encoder
}

// NewTraceWriter creates a trace writer that appends to the given file.
func NewTraceWriter(path string) (*TraceWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	w := bufio.NewWriter(f)
	return &TraceWriter{file: f, writer: w, enc: json.NewEncoder(w)}, nil
}

// Write appends one event and flushes to disk.
func (tw *TraceWriter) Write(event TaskEvent) error {
	if err := tw.enc.Encode(event); err != nil {
		return fmt.Errorf("encode trace event: %w", err)
	}
	if err := tw.writer.Flush(); err != nil {
		return fmt.Errorf("flush trace: %w", err)
	}
	if err := tw.file.Sync(); err != nil {
		return fmt.Errorf("sync trace: %w", err)
	}
	return nil
}

// Close flushes and closes the trace file.
func (tw *TraceWriter) Close() error {
	if err := tw.writer.Flush(); err != nil {
		return err
	}
	return tw.file.Close()
}

// SaveSnapshot persists a RunState to a JSON file.
func SaveSnapshot(state *RunState, path string) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a RunState from a JSON file.
func LoadSnapshot(path string) (*RunState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var state RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &state, nil
}

// RunManifest records the complete metadata for one run. Written as run.yaml
// when the run reaches a terminal phase or is canceled.
type RunManifest struct {
	RunID          string              `yaml:"run_id"            json:"run_id"`
	TargetItemID   string              `yaml:"target_item_id"    json:"target_item_id"`
	TargetQuantity int                 `yaml:"target_quantity"   json:"target_quantity"`
	StartedAt      string              `yaml:"started_at"        json:"started_at"`
	EndedAt        string              `yaml:"ended_at"          json:"ended_at"`
	Outcome        string              `yaml:"outcome"           json:"outcome"`
	Reason         string              `yaml:"reason,omitempty"  json:"reason,omitempty"`
	Ticks          int                 `yaml:"ticks"             json:"ticks"`
	GatherSummary  orchestrate.Summary `yaml:"gather_summary"    json:"gather_summary"`
	CraftSummary   orchestrate.Summary `yaml:"craft_summary"     json:"craft_summary"`
}

// WriteManifest serializes the manifest as YAML next to the run's trace.
func WriteManifest(m *RunManifest, dir string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	path := filepath.Join(dir, "run.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

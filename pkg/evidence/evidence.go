// Package evidence persists a JSON trail for each pipeline run: run
// metadata, per-stage records with capability call details, and the final
// output. The trail is append-only bookkeeping, not a storage API.
package evidence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// RunRecord captures run-level metadata. It is written once when the run
// starts and rewritten with the terminal state when it ends.
type RunRecord struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Pipeline     string    `json:"pipeline,omitempty"`
	PipelineFile string    `json:"pipeline_file,omitempty"`
	Request      string    `json:"request"`
	RequestHash  string    `json:"request_hash"`
	State        string    `json:"state"`
	FailedStage  string    `json:"failed_stage,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// StageRecord captures evidence for a single stage.
type StageRecord struct {
	Name             string       `json:"name"`
	Role             string       `json:"role"`
	Adapter          string       `json:"adapter,omitempty"`
	Model            string       `json:"model,omitempty"`
	PromptHash       string       `json:"prompt_hash,omitempty"`
	Output           string       `json:"output,omitempty"`
	OutputHash       string       `json:"output_hash,omitempty"`
	Contract         string       `json:"contract,omitempty"`
	ContractViolated bool         `json:"contract_violated,omitempty"`
	ModelRetries     int          `json:"model_retries,omitempty"`
	Calls            []CallRecord `json:"calls,omitempty"`
	DurationMillis   int64        `json:"duration_ms"`
}

// CallRecord captures one capability call made by a stage.
type CallRecord struct {
	Capability     string `json:"capability"`
	Input          string `json:"input"`
	Results        int    `json:"results"`
	Retries        int    `json:"retries,omitempty"`
	Error          string `json:"error,omitempty"`
	DurationMillis int64  `json:"duration_ms"`
}

// Writer writes evidence bundles to disk under baseDir/runID.
type Writer struct {
	baseDir string
	runDir  string
}

// NewWriter creates a new evidence writer rooted at baseDir/runID.
func NewWriter(baseDir, runID string) (*Writer, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if runID == "" {
		return nil, fmt.Errorf("run ID is required")
	}

	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(filepath.Join(runDir, "stages"), 0755); err != nil {
		return nil, err
	}

	return &Writer{baseDir: baseDir, runDir: runDir}, nil
}

// RunDir returns the run directory path.
func (w *Writer) RunDir() string {
	return w.runDir
}

// WriteRun writes run metadata to run.json.
func (w *Writer) WriteRun(record RunRecord) error {
	return writeJSON(filepath.Join(w.runDir, "run.json"), record)
}

// WriteStage writes a stage record to stages/<stage>.json.
func (w *Writer) WriteStage(record StageRecord) error {
	if record.Name == "" {
		return fmt.Errorf("stage name is required")
	}
	path := filepath.Join(w.runDir, "stages", fmt.Sprintf("%s.json", record.Name))
	return writeJSON(path, record)
}

// WriteFinal writes the final pipeline output to final.md.
func (w *Writer) WriteFinal(content string) error {
	return os.WriteFile(filepath.Join(w.runDir, "final.md"), []byte(content), 0644)
}

// ListRuns returns run records under baseDir, newest first.
func ListRuns(baseDir string) ([]RunRecord, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var runs []RunRecord
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(baseDir, entry.Name(), "run.json"))
		if err != nil {
			continue
		}
		var record RunRecord
		if err := json.Unmarshal(data, &record); err != nil {
			continue
		}
		runs = append(runs, record)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

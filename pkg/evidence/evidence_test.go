package evidence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterRequiresBaseDirAndRunID(t *testing.T) {
	_, err := NewWriter("", "run-1")
	assert.Error(t, err)

	_, err = NewWriter(t.TempDir(), "")
	assert.Error(t, err)
}

func TestWriterWritesRunBundle(t *testing.T) {
	base := t.TempDir()
	w, err := NewWriter(base, "run-1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "run-1"), w.RunDir())

	run := RunRecord{
		ID:          "run-1",
		Timestamp:   time.Now().UTC(),
		Pipeline:    "stock-analysis",
		Request:     "AAPL",
		RequestHash: "abc",
		State:       "completed",
	}
	require.NoError(t, w.WriteRun(run))

	stage := StageRecord{
		Name:    "market_analyst",
		Role:    "Financial Market Analyst",
		Adapter: "mock",
		Model:   "mock-1",
		Output:  "summary text",
		Calls: []CallRecord{
			{Capability: "market_data", Input: "AAPL", Results: 1, DurationMillis: 12},
		},
		DurationMillis: 40,
	}
	require.NoError(t, w.WriteStage(stage))
	require.NoError(t, w.WriteFinal("Recommendation: BUY"))

	var gotRun RunRecord
	data, err := os.ReadFile(filepath.Join(w.RunDir(), "run.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &gotRun))
	assert.Equal(t, run.ID, gotRun.ID)
	assert.Equal(t, run.Request, gotRun.Request)

	var gotStage StageRecord
	data, err = os.ReadFile(filepath.Join(w.RunDir(), "stages", "market_analyst.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &gotStage))
	assert.Equal(t, stage.Calls, gotStage.Calls)

	final, err := os.ReadFile(filepath.Join(w.RunDir(), "final.md"))
	require.NoError(t, err)
	assert.Equal(t, "Recommendation: BUY", string(final))
}

func TestWriteStageRequiresName(t *testing.T) {
	w, err := NewWriter(t.TempDir(), "run-1")
	require.NoError(t, err)
	assert.Error(t, w.WriteStage(StageRecord{}))
}

func TestListRunsNewestFirst(t *testing.T) {
	base := t.TempDir()

	older, err := NewWriter(base, "run-old")
	require.NoError(t, err)
	require.NoError(t, older.WriteRun(RunRecord{ID: "run-old", Timestamp: time.Now().Add(-time.Hour), State: "completed"}))

	newer, err := NewWriter(base, "run-new")
	require.NoError(t, err)
	require.NoError(t, newer.WriteRun(RunRecord{ID: "run-new", Timestamp: time.Now(), State: "failed", FailedStage: "trader"}))

	// A run dir without run.json is skipped, not fatal.
	require.NoError(t, os.MkdirAll(filepath.Join(base, "run-broken"), 0755))

	runs, err := ListRuns(base)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-new", runs[0].ID)
	assert.Equal(t, "run-old", runs[1].ID)
}

func TestListRunsMissingDir(t *testing.T) {
	runs, err := ListRuns(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, runs)
}

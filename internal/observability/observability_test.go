package observability

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesLLMJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "llm.jsonl")
	var out bytes.Buffer
	l := NewLogger(Options{Level: "debug", Output: &out, LLMLogPath: path})

	l.LogLLM("run-1", "task_1", []string{"hello"}, "world", nil)
	l.LogToolCall("run-1", "task_1", "read_file", `{"file_path":"a"}`)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var evt Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &evt))
		lines = append(lines, evt)
	}
	require.Len(t, lines, 1, "only llm events go to the journal")
	assert.Equal(t, EventTypeLLM, lines[0].Type)
	assert.Equal(t, "run-1", lines[0].RunID)

	assert.Contains(t, out.String(), "tool_call")
}

func TestLoggerRotatesJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "llm.jsonl")
	l := NewLogger(Options{Output: &bytes.Buffer{}, LLMLogPath: path})
	l.maxSize = 10

	l.LogLLM("r", "t", "p", "first", nil)
	l.LogLLM("r", "t", "p", "second", nil)

	_, err := os.Stat(path + ".old")
	assert.NoError(t, err)
}

func TestNopLoggerIsSilent(t *testing.T) {
	l := NewNop()
	assert.False(t, l.Enabled())
	l.LogLLM("r", "t", "p", "r", nil)
}

func TestTrackerPhases(t *testing.T) {
	tr := NewTracker()
	assert.Equal(t, PhaseIdle, tr.Snapshot().Phase)

	tr.Planning("run-1")
	assert.Equal(t, PhasePlanning, tr.Snapshot().Phase)

	tr.SetPlanGraph("graph TD")
	tr.Executing("run-1", 2, 4, "task_2")
	s := tr.Snapshot()
	assert.Equal(t, PhaseExecuting, s.Phase)
	assert.Equal(t, 2, s.Step)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, "task_2", s.TaskID)
	assert.Equal(t, "graph TD", s.PlanGraph)

	tr.Done("run-1", 4)
	s = tr.Snapshot()
	assert.Equal(t, PhaseDone, s.Phase)
	assert.WithinDuration(t, time.Now(), s.UpdatedAt, time.Second)
}

func TestMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RunFinished("ok")
	m.StepFinished("ok", time.Second)
	m.StepFinished("absorbed", time.Second)
	m.ToolCalled("write_file", "ok")
	m.PlannerFallback("planning_parse")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.steps.WithLabelValues("absorbed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("write_file", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbacks.WithLabelValues("planning_parse")))

	var nilMetrics *Metrics
	nilMetrics.RunFinished("ok")
}

func TestUsageFromGenerationInfo(t *testing.T) {
	p, c, ok := UsageFromGenerationInfo(map[string]any{"PromptTokens": 12, "CompletionTokens": 3})
	require.True(t, ok)
	assert.Equal(t, 12, p)
	assert.Equal(t, 3, c)

	_, _, ok = UsageFromGenerationInfo(nil)
	assert.False(t, ok)
}

package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rahul/sentinel/internal/observability"
	fake "github.com/rahul/sentinel/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestPlannerStructuredToolCall(t *testing.T) {
	model := fake.NewFakeModel(fake.ToolCall("call_1", "propose_tasks",
		`{"tasks": [{"id": "task_1_graph", "description": "draw"}, {"id": "task_2_report", "description": "report"}]}`))
	p := NewPlanner(model, testPrompts(t), nil, nil)

	tasks, err := p.Plan(context.Background(), "run-1", "review terraform")
	require.NoError(t, err)
	assert.Equal(t, []Task{{ID: "task_1_graph", Description: "draw"}, {ID: "task_2_report", Description: "report"}}, tasks)

	require.Equal(t, 1, model.CallCount())
	call := model.Calls[0]
	require.Len(t, call.Options.Tools, 1)
	assert.Equal(t, "propose_tasks", call.Options.Tools[0].Function.Name)
	assert.Contains(t, model.PromptText(0), "User Query: review terraform")
}

func TestPlannerFallsBackToTextScraping(t *testing.T) {
	model := fake.NewFakeModel(fake.Text("Plan:\n```json\n[{\"id\": \"a\", \"description\": \"first\"}]\n```"))
	p := NewPlanner(model, testPrompts(t), nil, nil)

	tasks, err := p.Plan(context.Background(), "run-1", "goal")
	require.NoError(t, err)
	assert.Equal(t, []Task{{ID: "a", Description: "first"}}, tasks)
}

func TestPlannerNonConformingArgumentsAreRawText(t *testing.T) {
	// the extra field fails strict decoding; the tolerant path still reads it
	model := fake.NewFakeModel(fake.ToolCall("call_1", "propose_tasks",
		`{"tasks": [{"id": "a", "description": "first", "priority": 1}]}`))
	p := NewPlanner(model, testPrompts(t), nil, nil)

	tasks, err := p.Plan(context.Background(), "run-1", "goal")
	require.NoError(t, err)
	assert.Equal(t, []Task{{ID: "a", Description: "first"}}, tasks)

	resp := interpret(&llms.ContentChoice{ToolCalls: fake.ToolCall("call_1", "propose_tasks", `{"tasks": [{"id": "a", "description": "first", "priority": 1}]}`).ToolCalls})
	raw, ok := resp.(RawText)
	require.True(t, ok)
	assert.Contains(t, raw.Text, "priority")

	resp = interpret(&llms.ContentChoice{ToolCalls: fake.ToolCall("call_1", "propose_tasks", `{"tasks": [{"id": "a"}]}`).ToolCalls})
	_, ok = resp.(RawText)
	assert.True(t, ok, "missing description is not structured")

	resp = interpret(&llms.ContentChoice{ToolCalls: fake.ToolCall("call_1", "propose_tasks", `{"tasks": [{"description": "d"}]}`).ToolCalls})
	st, ok := resp.(StructuredTasks)
	require.True(t, ok)
	assert.Equal(t, []Task{{Description: "d"}}, st.Tasks)
}

func TestPlannerModelErrorUsesFallback(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	model := fake.NewFakeModel(fake.Failure(errors.New("503 unavailable")))
	p := NewPlanner(model, testPrompts(t), nil, metrics)

	goal := "create a file named x.txt with content 'hello'"
	tasks, err := p.Plan(context.Background(), "run-1", goal)
	require.Error(t, err)
	assert.Equal(t, KindPlanningProcess, KindOf(err))
	require.Len(t, tasks, 1)
	assert.Equal(t, FallbackTaskID, tasks[0].ID)
	assert.Contains(t, tasks[0].Description, goal)
	n, err := testutil.GatherAndCount(reg, "sentinel_planner_fallbacks_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPlannerEmptyGoalSkipsModel(t *testing.T) {
	model := fake.NewFakeModel()
	p := NewPlanner(model, testPrompts(t), nil, nil)

	tasks, err := p.Plan(context.Background(), "run-1", "")
	require.Error(t, err)
	assert.Equal(t, []Task{FallbackTask("")}, tasks)
	assert.Equal(t, 0, model.CallCount())
}

func TestPlannerZeroValidTasksUsesFallback(t *testing.T) {
	model := fake.NewFakeModel(fake.Text(`{"tasks": [{"name": "no description"}]}`))
	p := NewPlanner(model, testPrompts(t), nil, nil)

	tasks, err := p.Plan(context.Background(), "run-1", "harden the VPC")
	require.Error(t, err)
	assert.Equal(t, KindPlanningProcess, KindOf(err))
	assert.Equal(t, []Task{FallbackTask("harden the VPC")}, tasks)
}

func TestPlannerUnparseableJSONUsesFallback(t *testing.T) {
	model := fake.NewFakeModel(fake.Text("```json\n{oops}\n```"))
	p := NewPlanner(model, testPrompts(t), nil, nil)

	tasks, err := p.Plan(context.Background(), "run-1", "goal")
	assert.Equal(t, KindPlanningParse, KindOf(err))
	assert.Equal(t, FallbackTaskID, tasks[0].ID)
}

func TestPlannerCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	model := fake.NewFakeModel(fake.Text("[]"))
	p := NewPlanner(model, testPrompts(t), nil, nil)

	_, err := p.Plan(ctx, "run-1", "goal")
	assert.Equal(t, KindCanceled, KindOf(err))
}

func TestFormatTasks(t *testing.T) {
	out := FormatTasks([]Task{{ID: "a", Description: "one"}, {ID: "b", Description: "two"}})
	assert.Equal(t, "1. ID: a, Description: one\n2. ID: b, Description: two\n", out)
}

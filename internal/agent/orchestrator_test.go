package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rahul/sentinel/internal/observability"
	fake "github.com/rahul/sentinel/internal/testutil"
	"github.com/rahul/sentinel/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPlanner struct {
	tasks []Task
	err   error
}

func (s stubPlanner) Plan(context.Context, string, string) ([]Task, error) {
	return s.tasks, s.err
}

type recordingRunner struct {
	seen    []StepContext
	results map[string]StepResult
}

func (r *recordingRunner) Run(_ context.Context, sc StepContext) StepResult {
	r.seen = append(r.seen, sc)
	if res, ok := r.results[sc.TaskID]; ok {
		return res
	}
	return StepResult{Output: "done " + sc.TaskID, HasOutput: true}
}

func threeTasks() []Task {
	return []Task{
		{ID: "task_1_graph", Description: "draw the original graph"},
		{ID: "task_2_report", Description: "write the report"},
		{ID: "task_3_fix", Description: "remediate"},
	}
}

func TestOrchestratorRunsTasksInOrder(t *testing.T) {
	runner := &recordingRunner{}
	o := NewOrchestrator(stubPlanner{tasks: threeTasks()}, runner, "Senior DevOps Engineer", nil)

	var planned []Task
	o.OnPlan = func(_ string, tasks []Task) { planned = tasks }

	run, err := o.Execute(context.Background(), "review the terraform")
	require.NoError(t, err)

	require.Len(t, runner.seen, 3)
	require.Len(t, run.History, 6)
	assert.Equal(t, threeTasks(), planned)

	for i, task := range threeTasks() {
		sc := runner.seen[i]
		assert.Equal(t, task.ID, sc.TaskID)
		assert.Equal(t, task.Description, sc.Description)
		assert.Len(t, sc.History, 2*i, "step %d sees all prior turns", i+1)
		assert.Contains(t, sc.Memory, "User role: Senior DevOps Engineer. Overall User Goal: review the terraform")
		assert.Contains(t, sc.Memory, fmt.Sprintf("Current step: %d/3. Focus: %s...", i+1, task.Description))
		assert.Equal(t, fmt.Sprintf("Simulated logs for task %s: System health nominal. No critical errors reported prior to this task.", task.ID), sc.LogSnippet)
		assert.Contains(t, sc.GraphSnippet, "unknown_at_start_of_task_"+task.ID)

		assert.Equal(t, ChatTurn{Role: RoleUser, Content: task.Description}, run.History[2*i])
		assert.Equal(t, ChatTurn{Role: RoleAI, Content: "done " + task.ID}, run.History[2*i+1])
	}

	assert.Equal(t, "done task_3_fix", run.FinalOutput())
	assert.Equal(t, observability.PhaseDone, o.Tracker.Snapshot().Phase)
	assert.Equal(t, 3, o.Tracker.Snapshot().Step)
}

func TestOrchestratorHistoryGrowsUnbounded(t *testing.T) {
	var tasks []Task
	for i := 1; i <= 25; i++ {
		tasks = append(tasks, Task{ID: fmt.Sprintf("task_%d", i), Description: strings.Repeat("x", 200)})
	}
	runner := &recordingRunner{}
	o := NewOrchestrator(stubPlanner{tasks: tasks}, runner, "role", nil)

	run, err := o.Execute(context.Background(), "goal")
	require.NoError(t, err)
	assert.Len(t, run.History, 50)
	assert.Len(t, runner.seen[24].History, 48)
}

func TestOrchestratorReplacesErrorPlan(t *testing.T) {
	cases := map[string]stubPlanner{
		"diagnostic task":    {tasks: []Task{{ID: ErrorParsingTaskID, Description: "Error decoding JSON"}}},
		"empty list":         {},
		"blank id":           {tasks: []Task{{Description: "no id"}}},
		"planner with error": {tasks: []Task{FallbackTask("goal")}, err: &Error{Kind: KindPlanningProcess, Message: "boom"}},
	}

	for name, planner := range cases {
		t.Run(name, func(t *testing.T) {
			runner := &recordingRunner{}
			o := NewOrchestrator(planner, runner, "role", nil)

			run, err := o.Execute(context.Background(), "goal")
			require.NoError(t, err)
			require.Len(t, run.Tasks, 1)
			assert.Equal(t, FallbackTask("goal"), run.Tasks[0])
			assert.Len(t, runner.seen, 1)
			assert.Len(t, run.History, 2)
		})
	}
}

func TestOrchestratorSubstitutesMissingOutput(t *testing.T) {
	runner := &recordingRunner{results: map[string]StepResult{
		"task_2_report": {Turns: 1},
	}}
	o := NewOrchestrator(stubPlanner{tasks: threeTasks()}, runner, "role", nil)

	run, err := o.Execute(context.Background(), "goal")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(run.History[3].Content, "No output field in response. Full response: "))
	assert.Len(t, runner.seen, 3)
}

func TestOrchestratorAbsorbsStepFailures(t *testing.T) {
	runner := &recordingRunner{results: map[string]StepResult{
		"task_1_graph": failed(newError(KindModel, "model call failed", errors.New("quota")), 1),
	}}
	o := NewOrchestrator(stubPlanner{tasks: threeTasks()}, runner, "role", nil)

	run, err := o.Execute(context.Background(), "goal")
	require.NoError(t, err)
	assert.Len(t, runner.seen, 3)
	assert.Equal(t, "An error occurred: quota", run.History[1].Content)
	assert.NotEmpty(t, run.Outputs[0].Failure)
}

func TestOrchestratorAbortDecision(t *testing.T) {
	runner := &recordingRunner{results: map[string]StepResult{
		"task_1_graph": failed(newError(KindModel, "model call failed", errors.New("quota")), 1),
	}}
	o := NewOrchestrator(stubPlanner{tasks: threeTasks()}, runner, "role", nil)
	o.Decisions[KindModel] = Abort

	run, err := o.Execute(context.Background(), "goal")
	require.Error(t, err)
	assert.Equal(t, KindModel, KindOf(err))
	assert.Len(t, runner.seen, 1)
	assert.Len(t, run.Outputs, 1)
}

func TestOrchestratorCanceledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := &recordingRunner{}
	o := NewOrchestrator(stubPlanner{tasks: threeTasks()}, runner, "role", nil)

	_, err := o.Execute(ctx, "goal")
	require.Error(t, err)
	assert.Equal(t, KindCanceled, KindOf(err))
	assert.Empty(t, runner.seen)
}

func TestMemoryBlockTruncatesFocus(t *testing.T) {
	m := NewMemoryBlock("Senior DevOps Engineer", "goal")
	desc := strings.Repeat("a", 100)
	out := m.ForStep(2, 4, desc)
	assert.Equal(t, "User role: Senior DevOps Engineer. Overall User Goal: goal Current step: 2/4. Focus: "+strings.Repeat("a", 80)+"...", out)
	assert.Equal(t, "User role: Senior DevOps Engineer. Overall User Goal: goal", m.String())
}

func TestEndToEndPlannerFailureStillCompletes(t *testing.T) {
	dir := t.TempDir()
	model := fake.NewFakeModel(
		fake.Failure(errors.New("planner unreachable")),
		fake.ToolCall("call_1", "write_file", `{"file_path": "x.txt", "text": "hello"}`),
		fake.Text("Created x.txt"),
	)
	pm := testPrompts(t)
	planner := NewPlanner(model, pm, nil, nil)
	executor := NewExecutor(model, tools.BuildRegistry(tools.Capabilities{Workspace: dir}), pm, nil)
	o := NewOrchestrator(planner, executor, "Senior DevOps Engineer", nil)

	goal := "create a file named x.txt with content 'hello'"
	var run *Run
	var err error
	require.NotPanics(t, func() { run, err = o.Execute(context.Background(), goal) })
	require.NoError(t, err)

	assert.Equal(t, FallbackTaskID, run.Tasks[0].ID)
	assert.Len(t, run.History, 2)
	assert.Equal(t, "Created x.txt", run.FinalOutput())
	assert.NotEmpty(t, run.PlanError)

	data, err := os.ReadFile(filepath.Join(dir, "x.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

package agent

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rahul/sentinel/internal/observability"
)

// TaskPlanner is satisfied by *Planner.
type TaskPlanner interface {
	Plan(ctx context.Context, runID, goal string) ([]Task, error)
}

// StepRunner is satisfied by *Executor.
type StepRunner interface {
	Run(ctx context.Context, sc StepContext) StepResult
}

// StepOutput is the recorded result of one task.
type StepOutput struct {
	TaskID  string        `json:"task_id"`
	Output  string        `json:"output"`
	Failure string        `json:"failure,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// Run is the record of one plan/execute pass.
type Run struct {
	ID         string       `json:"id"`
	Goal       string       `json:"goal"`
	Tasks      []Task       `json:"tasks"`
	History    []ChatTurn   `json:"history"`
	Outputs    []StepOutput `json:"outputs"`
	PlanError  string       `json:"plan_error,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// FinalOutput is the last step's output, or "" before any step ran.
func (r *Run) FinalOutput() string {
	if len(r.Outputs) == 0 {
		return ""
	}
	return r.Outputs[len(r.Outputs)-1].Output
}

// Orchestrator plans once and then runs every task strictly in order,
// threading the chat history and memory block between steps.
type Orchestrator struct {
	Planner   TaskPlanner
	Executor  StepRunner
	Snippets  SnippetSource
	Role      string
	Decisions DecisionTable
	Tracker   *observability.Tracker
	Logger    *observability.Logger
	Metrics   *observability.Metrics

	// OnPlan, when set, sees the final task list before execution starts.
	OnPlan func(runID string, tasks []Task)
}

func NewOrchestrator(planner TaskPlanner, executor StepRunner, role string, logger *observability.Logger) *Orchestrator {
	if logger == nil {
		logger = observability.NewNop()
	}
	return &Orchestrator{
		Planner:   planner,
		Executor:  executor,
		Snippets:  StaticSnippets{},
		Role:      role,
		Decisions: DefaultDecisions(),
		Tracker:   observability.NewTracker(),
		Logger:    logger,
	}
}

// Execute runs PLANNING -> EXECUTING(1..N) -> DONE. Step failures are absorbed
// into the step output unless the decision table says to abort, in which case
// the partial run is returned with the error.
func (o *Orchestrator) Execute(ctx context.Context, goal string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Goal:      goal,
		StartedAt: time.Now(),
	}
	o.Tracker.Planning(run.ID)
	o.Logger.Info("planning", "run", run.ID)

	tasks, err := o.Planner.Plan(ctx, run.ID, goal)
	if err != nil {
		run.PlanError = err.Error()
		if o.Decisions.Decide(err) == Abort {
			return o.finish(run, "aborted"), err
		}
		o.Logger.Warn("planning failed, continuing", "run", run.ID, "err", err)
	}
	if len(tasks) == 0 || IsErrorID(tasks[0].ID) {
		if len(tasks) > 0 {
			o.Logger.Warn("planner output", "run", run.ID, "task", tasks[0].ID, "description", tasks[0].Description)
		}
		tasks = []Task{FallbackTask(goal)}
	}
	run.Tasks = tasks
	if o.OnPlan != nil {
		o.OnPlan(run.ID, tasks)
	}

	memory := NewMemoryBlock(o.Role, goal)
	total := len(tasks)

	for i, task := range tasks {
		step := i + 1
		if err := ctx.Err(); err != nil {
			cerr := newError(KindCanceled, "run interrupted before step", err)
			if o.Decisions.Decide(cerr) == Abort {
				return o.finish(run, "aborted"), cerr
			}
		}

		o.Tracker.Executing(run.ID, step, total, task.ID)
		o.Logger.Info("executing task", "run", run.ID, "step", step, "total", total, "task", task.ID)

		logs, graph := o.Snippets.Snippets(task)
		sc := StepContext{
			RunID:        run.ID,
			TaskID:       task.ID,
			Description:  task.Description,
			LogSnippet:   logs,
			GraphSnippet: graph,
			Memory:       memory.ForStep(step, total, task.Description),
			History:      append([]ChatTurn(nil), run.History...),
		}

		start := time.Now()
		res := o.Executor.Run(ctx, sc)
		elapsed := time.Since(start)

		output := res.Output
		if !res.HasOutput {
			output = "No output field in response. Full response: " + res.String()
		}

		rec := StepOutput{TaskID: task.ID, Output: output, Elapsed: elapsed}
		outcome := "ok"
		if res.Failure != nil {
			rec.Failure = res.Failure.Error()
			outcome = "absorbed"
			if o.Decisions.Decide(res.Failure) == Abort {
				o.Metrics.StepFinished("aborted", elapsed)
				run.Outputs = append(run.Outputs, rec)
				return o.finish(run, "aborted"), res.Failure
			}
		}
		o.Metrics.StepFinished(outcome, elapsed)

		run.Outputs = append(run.Outputs, rec)
		run.History = append(run.History,
			ChatTurn{Role: RoleUser, Content: task.Description},
			ChatTurn{Role: RoleAI, Content: output},
		)
		o.Logger.LogStep(run.ID, task.ID, step, total, output)
	}

	return o.finish(run, "ok"), nil
}

func (o *Orchestrator) finish(run *Run, outcome string) *Run {
	run.FinishedAt = time.Now()
	o.Tracker.Done(run.ID, len(run.Outputs))
	o.Metrics.RunFinished(outcome)
	o.Logger.Info("run finished", "run", run.ID, "outcome", outcome, "steps", len(run.Outputs))
	return run
}

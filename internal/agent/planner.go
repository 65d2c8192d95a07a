package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rahul/sentinel/internal/observability"
	"github.com/rahul/sentinel/internal/prompts"
	"github.com/tmc/langchaingo/llms"
)

const proposeTasksTool = "propose_tasks"

// Planner turns a goal into an ordered task list with a single model call.
type Planner struct {
	Model       llms.Model
	Prompts     *prompts.Manager
	Logger      *observability.Logger
	Metrics     *observability.Metrics
	Temperature float64
}

func NewPlanner(model llms.Model, pm *prompts.Manager, logger *observability.Logger, metrics *observability.Metrics) *Planner {
	if logger == nil {
		logger = observability.NewNop()
	}
	return &Planner{Model: model, Prompts: pm, Logger: logger, Metrics: metrics}
}

func proposeTasksDefinition() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        proposeTasksTool,
			Description: "Submit the ordered list of tasks that accomplishes the user's goal.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"tasks": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"id": map[string]any{
									"type":        "string",
									"description": "Unique identifier, e.g. task_1_analyze_logs",
								},
								"description": map[string]any{
									"type":        "string",
									"description": "Clear instruction for the executing agent",
								},
							},
							"required": []string{"id", "description"},
						},
					},
				},
				"required": []string{"tasks"},
			},
		},
	}
}

// Plan always returns at least one task. When planning fails the single
// fallback task is returned together with an *Error saying why.
func (p *Planner) Plan(ctx context.Context, runID, goal string) ([]Task, error) {
	if strings.TrimSpace(goal) == "" {
		return p.fallback(runID, goal, newError(KindPlanningProcess, "empty goal", nil))
	}

	system, err := p.Prompts.Get(prompts.PlannerSystem)
	if err != nil {
		return p.fallback(runID, goal, newError(KindPlanningProcess, "loading planner prompt", err))
	}
	user, err := p.Prompts.Render(prompts.PlannerUser, map[string]string{"goal": goal})
	if err != nil {
		return p.fallback(runID, goal, newError(KindPlanningProcess, "loading planner prompt", err))
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	resp, err := p.Model.GenerateContent(ctx, messages,
		llms.WithTools([]llms.Tool{proposeTasksDefinition()}),
		llms.WithTemperature(p.Temperature),
	)
	if err != nil {
		kind := KindPlanningProcess
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			kind = KindCanceled
		}
		return p.fallback(runID, goal, newError(kind, "planner model call failed", err))
	}
	if len(resp.Choices) == 0 {
		return p.fallback(runID, goal, newError(KindPlanningProcess, "planner returned no choices", nil))
	}

	choice := resp.Choices[0]
	p.Logger.LogLLM(runID, "", messages, choice.Content, choice.ToolCalls)

	tasks, xerr := ExtractTasks(interpret(choice))
	if xerr != nil {
		var e *Error
		if errors.As(xerr, &e) {
			p.Logger.Warn("planner output unusable", "run", runID, "diagnostic", tasks[0].Description)
			return p.fallback(runID, goal, e)
		}
		return p.fallback(runID, goal, newError(KindPlanningProcess, "extracting tasks", xerr))
	}

	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	p.Logger.LogPlan(runID, goal, ids)
	return tasks, nil
}

func (p *Planner) fallback(runID, goal string, err *Error) ([]Task, error) {
	p.Metrics.PlannerFallback(string(err.Kind))
	p.Logger.Warn("using fallback task", "run", runID, "err", err)
	return []Task{FallbackTask(goal)}, err
}

// interpret maps the model's answer onto the tagged response. A propose_tasks
// call whose arguments decode strictly into the task list shape is structured;
// anything else is raw text for the tolerant path.
func interpret(choice *llms.ContentChoice) Response {
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil || tc.FunctionCall.Name != proposeTasksTool {
			continue
		}
		args := tc.FunctionCall.Arguments

		var payload struct {
			Tasks []struct {
				ID          string  `json:"id"`
				Description *string `json:"description"`
			} `json:"tasks"`
		}
		dec := json.NewDecoder(bytes.NewReader([]byte(args)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&payload); err != nil || payload.Tasks == nil {
			return RawText{Text: args}
		}

		tasks := make([]Task, 0, len(payload.Tasks))
		for _, t := range payload.Tasks {
			if t.Description == nil {
				return RawText{Text: args}
			}
			tasks = append(tasks, Task{ID: t.ID, Description: *t.Description})
		}
		return StructuredTasks{Tasks: tasks}
	}
	return RawText{Text: choice.Content}
}

// FormatTasks renders a task list the way the CLI prints it.
func FormatTasks(tasks []Task) string {
	var b strings.Builder
	for i, t := range tasks {
		fmt.Fprintf(&b, "%d. ID: %s, Description: %s\n", i+1, t.ID, t.Description)
	}
	return b.String()
}

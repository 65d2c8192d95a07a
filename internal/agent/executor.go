package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/rahul/sentinel/internal/governance"
	"github.com/rahul/sentinel/internal/observability"
	"github.com/rahul/sentinel/internal/prompts"
	"github.com/rahul/sentinel/internal/tools"
	"github.com/tmc/langchaingo/llms"
)

const (
	defaultMaxTurns  = 15
	budgetExhausted  = "Agent stopped due to iteration limit or time limit."
	notApplicable    = "N/A"
	toolDeniedPrefix = "Error: tool call denied by policy: "
)

// StepResult is the executor's answer for one task. Failures are already
// folded into Output; Failure records what went wrong for the decision table.
type StepResult struct {
	Output     string
	HasOutput  bool
	Turns      int
	ToolCalls  int
	ToolErrors []*Error
	Failure    *Error
}

func (r StepResult) String() string {
	s := fmt.Sprintf("{output: %q, turns: %d, tool_calls: %d", r.Output, r.Turns, r.ToolCalls)
	if r.Failure != nil {
		s += fmt.Sprintf(", failure: %q", r.Failure.Error())
	}
	return s + "}"
}

// Executor runs one task through a bounded tool-calling loop.
type Executor struct {
	Model       llms.Model
	Registry    *tools.Registry
	Policy      governance.PolicyEngine
	Prompts     *prompts.Manager
	Logger      *observability.Logger
	Metrics     *observability.Metrics
	ModelName   string
	MaxTurns    int
	HistoryCap  int
	Temperature float64
}

func NewExecutor(model llms.Model, registry *tools.Registry, pm *prompts.Manager, logger *observability.Logger) *Executor {
	if logger == nil {
		logger = observability.NewNop()
	}
	return &Executor{
		Model:    model,
		Registry: registry,
		Prompts:  pm,
		Logger:   logger,
		MaxTurns: defaultMaxTurns,
	}
}

func orNA(s string) string {
	if s == "" {
		return notApplicable
	}
	return s
}

func (e *Executor) messages(sc StepContext) ([]llms.MessageContent, error) {
	system, err := e.Prompts.ExecutorSystem()
	if err != nil {
		return nil, err
	}
	task, err := e.Prompts.Render(prompts.ExecutorTask, map[string]string{
		"task":          sc.Description,
		"log_snippet":   orNA(sc.LogSnippet),
		"graph_snippet": orNA(sc.GraphSnippet),
		"memory":        orNA(sc.Memory),
	})
	if err != nil {
		return nil, err
	}

	history := capHistory(sc.History, e.HistoryCap)

	msgs := make([]llms.MessageContent, 0, len(history)+2)
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, system))
	for _, turn := range history {
		role := llms.ChatMessageTypeHuman
		if turn.Role == RoleAI {
			role = llms.ChatMessageTypeAI
		}
		msgs = append(msgs, llms.TextParts(role, turn.Content))
	}
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, task))
	return msgs, nil
}

// capHistory keeps at most limit recent turns without starting on an AI
// turn whose user turn was cut off. limit <= 0 keeps everything.
func capHistory(history []ChatTurn, limit int) []ChatTurn {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	start := len(history) - limit
	for start < len(history) && history[start].Role == RoleAI {
		start++
	}
	return history[start:]
}

// Run never returns an error: every terminal state is described in the
// result's Output.
func (e *Executor) Run(ctx context.Context, sc StepContext) StepResult {
	messages, err := e.messages(sc)
	if err != nil {
		return failed(newError(KindStepParse, "building step prompt", err), 0)
	}

	defs := e.Registry.Definitions()
	maxTurns := e.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}

	res := StepResult{}
	for turn := 0; turn < maxTurns; turn++ {
		res.Turns = turn + 1

		resp, err := e.Model.GenerateContent(ctx, messages,
			llms.WithTools(defs),
			llms.WithTemperature(e.Temperature),
		)
		if err != nil {
			kind := KindModel
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				kind = KindCanceled
			}
			f := failed(newError(kind, "model call failed", err), res.Turns)
			f.ToolCalls, f.ToolErrors = res.ToolCalls, res.ToolErrors
			return f
		}
		if len(resp.Choices) == 0 {
			f := failed(newError(KindStepParse, "model returned no choices", nil), res.Turns)
			f.ToolCalls, f.ToolErrors = res.ToolCalls, res.ToolErrors
			return f
		}

		choice := resp.Choices[0]
		e.Logger.LogLLM(sc.RunID, sc.TaskID, messages, choice.Content, choice.ToolCalls)
		e.logCost(sc, messages, choice)

		var assistantParts []llms.ContentPart
		if choice.Content != "" {
			assistantParts = append(assistantParts, llms.TextContent{Text: choice.Content})
		}
		for _, tc := range choice.ToolCalls {
			assistantParts = append(assistantParts, tc)
		}
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeAI,
			Parts: assistantParts,
		})

		if len(choice.ToolCalls) == 0 {
			res.Output = choice.Content
			res.HasOutput = choice.Content != ""
			return res
		}

		for _, tc := range choice.ToolCalls {
			if tc.FunctionCall == nil {
				f := failed(newError(KindStepParse, "tool call without function", nil), res.Turns)
				f.ToolCalls, f.ToolErrors = res.ToolCalls, res.ToolErrors
				return f
			}
			res.ToolCalls++
			result, terr := e.callTool(ctx, sc, tc)
			if terr != nil {
				res.ToolErrors = append(res.ToolErrors, terr)
			}
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{
					llms.ToolCallResponse{
						ToolCallID: tc.ID,
						Name:       tc.FunctionCall.Name,
						Content:    result,
					},
				},
			})
		}
	}

	res.Output = budgetExhausted
	res.HasOutput = true
	res.Failure = newError(KindStepBudget, fmt.Sprintf("no final answer after %d turns", maxTurns), nil)
	return res
}

func failed(err *Error, turns int) StepResult {
	msg := err.Message
	if err.Err != nil {
		msg = err.Err.Error()
	}
	return StepResult{
		Output:    "An error occurred: " + msg,
		HasOutput: true,
		Turns:     turns,
		Failure:   err,
	}
}

// callTool returns the observation fed back to the model. Tool failures are
// observations too; the returned *Error only records them.
func (e *Executor) callTool(ctx context.Context, sc StepContext, tc llms.ToolCall) (string, *Error) {
	name, args := tc.FunctionCall.Name, tc.FunctionCall.Arguments

	tool := e.Registry.Get(name)
	if tool == nil {
		e.Metrics.ToolCalled(name, "unknown")
		return fmt.Sprintf("Error: Tool %s not found", name), newError(KindTool, "unknown tool "+name, nil)
	}

	if e.Policy != nil {
		decision, err := e.Policy.Evaluate(ctx, governance.Request{Tool: name, Arguments: args, RunID: sc.RunID, TaskID: sc.TaskID})
		if err != nil {
			e.Metrics.ToolCalled(name, "error")
			return fmt.Sprintf("Error: policy evaluation failed: %v", err), newError(KindTool, "policy evaluation", err)
		}
		e.Logger.LogPolicy(sc.RunID, sc.TaskID, name, string(decision.Effect), decision.Reason)
		if decision.Effect == governance.EffectDeny {
			e.Metrics.ToolCalled(name, "denied")
			return toolDeniedPrefix + decision.Reason, newError(KindTool, "denied "+name, nil)
		}
	}

	e.Logger.LogToolCall(sc.RunID, sc.TaskID, name, args)
	result, err := tool.Execute(ctx, args)
	if err != nil {
		e.Metrics.ToolCalled(name, "error")
		e.Logger.LogToolResult(sc.RunID, sc.TaskID, name, "error: "+err.Error())
		return fmt.Sprintf("Error: %v", err), newError(KindTool, name, err)
	}
	e.Metrics.ToolCalled(name, "ok")
	e.Logger.LogToolResult(sc.RunID, sc.TaskID, name, result)
	return result, nil
}

func (e *Executor) logCost(sc StepContext, messages []llms.MessageContent, choice *llms.ContentChoice) {
	if !e.Logger.Enabled() {
		return
	}
	prompt, completion, ok := observability.UsageFromGenerationInfo(choice.GenerationInfo)
	if !ok {
		var text string
		for _, m := range messages {
			for _, p := range m.Parts {
				if tp, isText := p.(llms.TextContent); isText {
					text += tp.Text
				}
			}
		}
		prompt = observability.EstimateTokens(text)
		completion = observability.EstimateTokens(choice.Content)
	}
	e.Logger.LogCost(sc.RunID, sc.TaskID, prompt, completion, e.ModelName)
}

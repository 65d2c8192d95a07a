package agent

import "strings"

// FallbackTaskID marks the task substituted when planning yields nothing usable.
const FallbackTaskID = "fallback_direct_query_task"

const (
	ErrorParsingTaskID    = "task_error_parsing"
	ErrorProcessingTaskID = "task_error_processing"
)

// Task is one planner-generated unit of work.
type Task struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// FallbackTask wraps the goal verbatim so the run can still make progress.
func FallbackTask(goal string) Task {
	return Task{
		ID:          FallbackTaskID,
		Description: "Attempt to address original query directly: " + goal,
	}
}

// IsErrorID reports whether a task id carries a planning failure.
func IsErrorID(id string) bool {
	return id == "" || strings.Contains(strings.ToLower(id), "error")
}

type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// ChatTurn is one entry of the run's conversation history.
type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// StepContext is everything the executor sees for one task. It is rebuilt
// for every step.
type StepContext struct {
	RunID        string
	TaskID       string
	Description  string
	LogSnippet   string
	GraphSnippet string
	Memory       string
	History      []ChatTurn
}

package agent

import "fmt"

const focusWidth = 80

// MemoryBlock is derived once from the goal and re-rendered per step with a
// progress marker. The model never mutates it.
type MemoryBlock struct {
	base string
}

func NewMemoryBlock(role, goal string) MemoryBlock {
	return MemoryBlock{base: fmt.Sprintf("User role: %s. Overall User Goal: %s", role, goal)}
}

func (m MemoryBlock) String() string {
	return m.base
}

// ForStep renders the block for step (1-indexed) of total.
func (m MemoryBlock) ForStep(step, total int, description string) string {
	return fmt.Sprintf("%s Current step: %d/%d. Focus: %s...", m.base, step, total, truncate(description, focusWidth))
}

// SnippetSource supplies the log and graph context for a task.
type SnippetSource interface {
	Snippets(task Task) (logs, graph string)
}

// StaticSnippets returns fixed per-task placeholders.
type StaticSnippets struct{}

func (StaticSnippets) Snippets(task Task) (string, string) {
	logs := fmt.Sprintf("Simulated logs for task %s: System health nominal. No critical errors reported prior to this task.", task.ID)
	graph := fmt.Sprintf("{'services': {'service_Y': {'status': 'unknown_at_start_of_task_%s'}}}", task.ID)
	return logs, graph
}

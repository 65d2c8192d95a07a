package observability

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/term"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeReasoning   EventType = "reasoning"
	EventTypeToolCall    EventType = "tool_call"
	EventTypeToolResult  EventType = "tool_result"
	EventTypePolicyCheck EventType = "policy_check"
	EventTypeCost        EventType = "cost"
	EventTypePlan        EventType = "plan"
	EventTypeStep        EventType = "step"
	EventTypeLLM         EventType = "llm"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	TaskID    string    `json:"task_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type Options struct {
	Level      string
	JSON       bool
	Output     io.Writer
	LLMLogPath string
}

// Logger writes operational logs through charm's logger and keeps a JSONL
// journal of every LLM exchange.
type Logger struct {
	*charmlog.Logger

	mu         sync.Mutex
	llmLogPath string
	maxSize    int64
	enabled    bool
}

func NewLogger(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	base := charmlog.NewWithOptions(out, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           parseLevel(opts.Level),
	})
	if opts.JSON || !isTerminal(out) {
		base.SetFormatter(charmlog.JSONFormatter)
	}

	return &Logger{
		Logger:     base,
		llmLogPath: opts.LLMLogPath,
		maxSize:    10 * 1024 * 1024, // 10MB
		enabled:    true,
	}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: charmlog.New(io.Discard)}
}

func parseLevel(level string) charmlog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return charmlog.DebugLevel
	case "warn":
		return charmlog.WarnLevel
	case "error":
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Log emits a structured event.
func (l *Logger) Log(evt Event) {
	if !l.enabled {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	l.Debug(string(evt.Type), "run", evt.RunID, "task", evt.TaskID, "data", evt.Data)

	if evt.Type == EventTypeLLM && l.llmLogPath != "" {
		data, err := json.Marshal(evt)
		if err != nil {
			l.Warn("failed to marshal event", "err", err)
			return
		}
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		l.Warn("failed to create log directory", "err", err)
		return
	}

	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		l.Warn("failed to open log file", "err", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		l.Warn("failed to write to log file", "err", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

func (l *Logger) LogPlan(runID string, goal string, taskIDs []string) {
	l.Log(Event{
		Type:  EventTypePlan,
		RunID: runID,
		Data: map[string]any{
			"goal":  goal,
			"tasks": taskIDs,
		},
	})
}

func (l *Logger) LogStep(runID, taskID string, index, total int, output string) {
	l.Log(Event{
		Type:   EventTypeStep,
		RunID:  runID,
		TaskID: taskID,
		Data: map[string]any{
			"step":   index,
			"total":  total,
			"output": output,
		},
	})
}

func (l *Logger) LogToolCall(runID, taskID, tool, args string) {
	l.Log(Event{
		Type:   EventTypeToolCall,
		RunID:  runID,
		TaskID: taskID,
		Data: map[string]string{
			"tool": tool,
			"args": args,
		},
	})
}

func (l *Logger) LogToolResult(runID, taskID, tool, result string) {
	l.Log(Event{
		Type:   EventTypeToolResult,
		RunID:  runID,
		TaskID: taskID,
		Data: map[string]string{
			"tool":   tool,
			"result": result,
		},
	})
}

func (l *Logger) LogPolicy(runID, taskID, tool, effect, reason string) {
	l.Log(Event{
		Type:   EventTypePolicyCheck,
		RunID:  runID,
		TaskID: taskID,
		Data: map[string]string{
			"tool":   tool,
			"effect": effect,
			"reason": reason,
		},
	})
}

func (l *Logger) LogCost(runID, taskID string, promptTokens, completionTokens int, model string) {
	l.Log(Event{
		Type:   EventTypeCost,
		RunID:  runID,
		TaskID: taskID,
		Data: map[string]any{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
			"model":             model,
		},
	})
}

func (l *Logger) LogLLM(runID, taskID string, prompt any, response string, toolCalls any) {
	l.Log(Event{
		Type:   EventTypeLLM,
		RunID:  runID,
		TaskID: taskID,
		Data: map[string]any{
			"prompt":     prompt,
			"response":   response,
			"tool_calls": toolCalls,
		},
	})
}

// Enabled reports whether events are recorded at all.
func (l *Logger) Enabled() bool {
	return l.enabled
}

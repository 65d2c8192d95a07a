package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Response is what the planner got back from the model: either tasks that
// already conform to the task list shape, or free text to be scraped.
type Response interface {
	isResponse()
}

type StructuredTasks struct {
	Tasks []Task
}

type RawText struct {
	Text string
}

func (StructuredTasks) isResponse() {}
func (RawText) isResponse()         {}

var jsonFence = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// ExtractTasks turns a planner response into an ordered task list. On failure
// it returns a single diagnostic task (id task_error_parsing or
// task_error_processing) together with the *Error describing it.
func ExtractTasks(resp Response) ([]Task, error) {
	var (
		tasks []Task
		err   *Error
	)
	switch r := resp.(type) {
	case StructuredTasks:
		tasks, err = fromStructured(r.Tasks)
	case RawText:
		tasks, err = fromText(r.Text)
	default:
		err = newError(KindPlanningProcess, fmt.Sprintf("unsupported planner response %T", resp), nil)
	}
	if err != nil {
		return []Task{diagnosticTask(err)}, err
	}
	return tasks, nil
}

func diagnosticTask(err *Error) Task {
	if err.Kind == KindPlanningParse {
		return Task{ID: ErrorParsingTaskID, Description: err.Message}
	}
	return Task{
		ID:          ErrorProcessingTaskID,
		Description: "Error generating or processing tasks. Details: " + err.Message,
	}
}

func generatedID(pos int) string {
	return fmt.Sprintf("task_%d_generated_id", pos)
}

// fromStructured accepts every item: a StructuredTasks value only exists
// when each item carried a description field, the same rule the text tier
// applies with desc.Exists().
func fromStructured(items []Task) ([]Task, *Error) {
	tasks := make([]Task, 0, len(items))
	for i, t := range items {
		if t.ID == "" {
			t.ID = generatedID(i + 1)
		}
		tasks = append(tasks, t)
	}
	if len(tasks) == 0 {
		return nil, newError(KindPlanningProcess, "No tasks found in the structured response.", nil)
	}
	return tasks, nil
}

func fromText(content string) ([]Task, *Error) {
	span, perr := candidateJSON(content)
	if perr != nil {
		return nil, perr
	}

	if !gjson.Valid(span) {
		detail := "invalid JSON"
		var v any
		if err := json.Unmarshal([]byte(span), &v); err != nil {
			detail = err.Error()
		}
		return nil, newError(KindPlanningParse,
			fmt.Sprintf("Error decoding JSON from LLM. Response: %s. Details: %s", truncate(content, 500), detail), nil)
	}

	root := gjson.Parse(span)
	var items []gjson.Result
	switch {
	case root.IsObject() && root.Get("tasks").IsArray():
		items = root.Get("tasks").Array()
	case root.IsArray():
		items = root.Array()
	default:
		return nil, newError(KindPlanningProcess, "Parsed JSON is not a list of tasks or a dict containing a 'tasks' list.", nil)
	}

	tasks := make([]Task, 0, len(items))
	for i, item := range items {
		desc := item.Get("description")
		if !item.IsObject() || !desc.Exists() {
			continue
		}
		id := item.Get("id")
		t := Task{ID: id.String(), Description: desc.String()}
		if !id.Exists() || id.Type == gjson.Null || t.ID == "" {
			t.ID = generatedID(i + 1)
		}
		tasks = append(tasks, t)
	}

	switch {
	case len(tasks) == 0 && len(items) > 0:
		return nil, newError(KindPlanningProcess, "No valid task items found after validation, though data was parsed.", nil)
	case len(tasks) == 0:
		return nil, newError(KindPlanningProcess, "No tasks found in the parsed JSON.", nil)
	}
	return tasks, nil
}

// candidateJSON returns the interior of a ```json fence, or else the balanced
// span starting at the first '{' or '['.
func candidateJSON(content string) (string, *Error) {
	if m := jsonFence.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1]), nil
	}

	start := strings.IndexAny(content, "{[")
	if start == -1 {
		return "", newError(KindPlanningProcess, "No JSON object or array found in the response.", nil)
	}

	open := content[start]
	closing := byte('}')
	if open == '[' {
		closing = ']'
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(content); i++ {
		c := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return content[start : i+1], nil
			}
		}
	}
	return "", newError(KindPlanningProcess, fmt.Sprintf("Could not find matching closing bracket/brace for '%c'.", open), nil)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

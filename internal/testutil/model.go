// Package testutil holds fakes shared by package tests.
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// ErrScriptExhausted is returned once every scripted reply has been consumed.
var ErrScriptExhausted = errors.New("fake model: no scripted response left")

// Reply is one scripted model turn. Err takes precedence over content.
type Reply struct {
	Content   string
	ToolCalls []llms.ToolCall
	Err       error
	Empty     bool // respond with zero choices
}

// Call records what the model was asked.
type Call struct {
	Messages []llms.MessageContent
	Options  llms.CallOptions
}

// FakeModel is a scripted llms.Model. Replies are served in order; when
// Repeat is set the last reply is served forever.
type FakeModel struct {
	mu      sync.Mutex
	replies []Reply
	Repeat  bool
	Calls   []Call
}

func NewFakeModel(replies ...Reply) *FakeModel {
	return &FakeModel{replies: replies}
}

// Text is a shorthand for a final text answer.
func Text(content string) Reply {
	return Reply{Content: content}
}

// ToolCall is a shorthand for a single tool invocation.
func ToolCall(id, name, args string) Reply {
	return Reply{ToolCalls: []llms.ToolCall{{
		ID:   id,
		Type: "function",
		FunctionCall: &llms.FunctionCall{
			Name:      name,
			Arguments: args,
		},
	}}}
}

// Failure is a shorthand for a model error.
func Failure(err error) Reply {
	return Reply{Err: err}
}

func (m *FakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}

	m.mu.Lock()
	m.Calls = append(m.Calls, Call{Messages: append([]llms.MessageContent(nil), messages...), Options: opts})
	r, err := m.next()
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Err != nil {
		return nil, r.Err
	}
	if r.Empty {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:   r.Content,
		ToolCalls: r.ToolCalls,
		GenerationInfo: map[string]any{
			"PromptTokens":     10,
			"CompletionTokens": 5,
		},
	}}}, nil
}

func (m *FakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *FakeModel) next() (Reply, error) {
	if len(m.replies) == 0 {
		return Reply{}, ErrScriptExhausted
	}
	r := m.replies[0]
	if len(m.replies) > 1 || !m.Repeat {
		m.replies = m.replies[1:]
	}
	return r, nil
}

// CallCount is safe to use while the model is in use.
func (m *FakeModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// PromptText concatenates every text part sent in call i.
func (m *FakeModel) PromptText(i int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out string
	for _, msg := range m.Calls[i].Messages {
		for _, p := range msg.Parts {
			if tp, ok := p.(llms.TextContent); ok {
				out += tp.Text + "\n"
			}
		}
	}
	return out
}

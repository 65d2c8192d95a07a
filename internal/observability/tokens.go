package observability

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// EstimateTokens approximates the token count of text. The cl100k encoder is
// loaded lazily; when it is unavailable (no BPE cache, no network) a four
// characters per token heuristic is used.
func EstimateTokens(text string) int {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			enc = e
		}
	})
	if enc == nil {
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// UsageFromGenerationInfo extracts provider-reported token usage. Providers use
// different key spellings.
func UsageFromGenerationInfo(info map[string]any) (prompt, completion int, ok bool) {
	if info == nil {
		return 0, 0, false
	}
	prompt, okP := intValue(info, "PromptTokens", "input_tokens", "InputTokens", "prompt_eval_count")
	completion, okC := intValue(info, "CompletionTokens", "output_tokens", "OutputTokens", "eval_count")
	return prompt, completion, okP || okC
}

func intValue(m map[string]any, keys ...string) (int, bool) {
	for _, k := range keys {
		switch v := m[k].(type) {
		case int:
			return v, true
		case int32:
			return int(v), true
		case int64:
			return int(v), true
		case float64:
			return int(v), true
		}
	}
	return 0, false
}

package governance

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/tidwall/gjson"
)

type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request describes one tool call proposed by the executor.
type Request struct {
	Tool      string
	Arguments string
	RunID     string
	TaskID    string
}

type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine decides whether a tool call may run.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// writeTools name the tools whose file_path argument is checked against
// protected files.
var writeTools = map[string]bool{"write_file": true}

// RuleEngine denies calls by tool name, by argument pattern or by writes to
// protected workspace files. Anything not denied is allowed, so the shell
// tool stays pre-approved unless a rule names it.
type RuleEngine struct {
	deniedTools map[string]bool
	patterns    []*regexp.Regexp
	protected   map[string]bool
}

func NewRuleEngine() *RuleEngine {
	return &RuleEngine{
		deniedTools: make(map[string]bool),
		protected:   make(map[string]bool),
	}
}

// NewPolicyEngine builds a RuleEngine from configured tool names, argument
// patterns and protected file names.
func NewPolicyEngine(tools, patterns, protected []string) (*RuleEngine, error) {
	e := NewRuleEngine()
	for _, t := range tools {
		e.DenyTool(t)
	}
	for _, p := range patterns {
		if err := e.DenyArguments(p); err != nil {
			return nil, fmt.Errorf("deny pattern %q: %w", p, err)
		}
	}
	e.Protect(protected...)
	return e, nil
}

func (e *RuleEngine) DenyTool(name string) {
	e.deniedTools[name] = true
}

func (e *RuleEngine) DenyArguments(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.patterns = append(e.patterns, re)
	return nil
}

// Protect marks workspace files that write tools may not overwrite.
func (e *RuleEngine) Protect(names ...string) {
	for _, n := range names {
		e.protected[filepath.Clean(n)] = true
	}
}

func (e *RuleEngine) Evaluate(_ context.Context, req Request) (Result, error) {
	if e.deniedTools[req.Tool] {
		return deny("tool '%s' is disabled for this deployment", req.Tool), nil
	}

	for _, re := range e.patterns {
		if re.MatchString(req.Arguments) {
			return deny("arguments match restricted pattern %s", re.String()), nil
		}
	}

	if writeTools[req.Tool] && len(e.protected) > 0 {
		target := gjson.Get(req.Arguments, "file_path").String()
		if target != "" && e.protected[filepath.Clean(target)] {
			return deny("%s is a protected input file", target), nil
		}
	}

	return Result{Effect: EffectAllow, Reason: "no rule matched"}, nil
}

func deny(format string, args ...any) Result {
	return Result{Effect: EffectDeny, Reason: fmt.Sprintf(format, args...)}
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/tmc/langchaingo/llms"
)

// Tool is one capability the executor can offer to the model. Execute
// receives the raw JSON arguments of the call.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, input string) (string, error)
}

// param is a single property of a tool's JSON schema.
type param struct {
	name, kind, desc string
}

func str(name, desc string) param     { return param{name, "string", desc} }
func boolean(name, desc string) param { return param{name, "boolean", desc} }

// objectSchema builds the JSON schema of a tool taking the given properties.
func objectSchema(required []string, params ...param) map[string]any {
	props := make(map[string]any, len(params))
	for _, p := range params {
		props[p.name] = map[string]any{"type": p.kind, "description": p.desc}
	}
	s := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// decodeArgs unmarshals a tool call's arguments into v.
func decodeArgs(tool, input string, v any) error {
	if err := json.Unmarshal([]byte(input), v); err != nil {
		return fmt.Errorf("%s: invalid arguments: %w", tool, err)
	}
	return nil
}

// Registry is the set of tools offered to one executor.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds t, replacing any tool with the same name.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Get returns nil for unknown names.
func (r *Registry) Get(name string) Tool {
	return r.tools[name]
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions lists the tools as function definitions, sorted by name so
// identical registries produce identical requests.
func (r *Registry) Definitions() []llms.Tool {
	names := r.Names()
	defs := make([]llms.Tool, len(names))
	for i, name := range names {
		t := r.tools[name]
		defs[i] = llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        name,
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		}
	}
	return defs
}

package diagram

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rahul/sentinel/internal/observability"
	"github.com/rahul/sentinel/internal/prompts"
	"github.com/tmc/langchaingo/llms"
)

type Kind string

const (
	KindInfrastructure Kind = "infrastructure"
	KindSecurity       Kind = "security"
)

// SecurityLegend describes the styling vocabulary of security graphs.
const SecurityLegend = "Security relationship graph. Node classes: critical (red) for internet-facing resources and wildcard permissions, " +
	"high (orange), medium (yellow), low (green), trusted (blue). Edge labels name the permission or port linking two nodes."

// Input is the body accepted by both diagram routes.
type Input struct {
	InfrastructureData json.RawMessage `json:"infrastructure_data"`
	TerraformState     json.RawMessage `json:"terraform_state"`
}

type Diagram struct {
	Kind  Kind
	Code  string
	Fixed bool
}

// Generator asks the model for one diagram in a single call.
type Generator struct {
	Model       llms.Model
	Prompts     *prompts.Manager
	Logger      *observability.Logger
	Metrics     *observability.Metrics
	Temperature float64
}

func NewGenerator(model llms.Model, pm *prompts.Manager, logger *observability.Logger, metrics *observability.Metrics) *Generator {
	if logger == nil {
		logger = observability.NewNop()
	}
	return &Generator{Model: model, Prompts: pm, Logger: logger, Metrics: metrics}
}

func (g *Generator) Generate(ctx context.Context, kind Kind, in Input) (*Diagram, error) {
	template := prompts.InfrastructureDiagram
	if kind == KindSecurity {
		template = prompts.SecurityGraph
	}

	prompt, err := g.Prompts.Render(template, map[string]string{
		"infrastructure_data": pretty(in.InfrastructureData),
		"terraform_state":     pretty(in.TerraformState),
	})
	if err != nil {
		return nil, err
	}

	raw, err := llms.GenerateFromSinglePrompt(ctx, g.Model, prompt, llms.WithTemperature(g.Temperature))
	if err != nil {
		return nil, fmt.Errorf("generating %s diagram: %w", kind, err)
	}
	g.Logger.LogLLM("", string(kind), prompt, raw, nil)

	code, fixed := Clean(raw)
	g.Metrics.DiagramGenerated(string(kind), fixed)
	if fixed {
		g.Logger.Debug("diagram cleaned", "kind", kind)
	}
	return &Diagram{Kind: kind, Code: code, Fixed: fixed}, nil
}

func pretty(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(out)
}

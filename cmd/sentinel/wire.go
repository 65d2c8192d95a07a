package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rahul/sentinel/internal/agent"
	"github.com/rahul/sentinel/internal/artifacts"
	"github.com/rahul/sentinel/internal/diagram"
	"github.com/rahul/sentinel/internal/gateway"
	"github.com/rahul/sentinel/internal/governance"
	"github.com/rahul/sentinel/internal/observability"
	"github.com/rahul/sentinel/internal/prompts"
	"github.com/rahul/sentinel/internal/provider"
	"github.com/rahul/sentinel/internal/store"
	"github.com/rahul/sentinel/internal/tools"
	"github.com/rahul/sentinel/pkg/config"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/vectorstores"
)

// app holds every component built from one configuration.
type app struct {
	cfg          *config.Config
	logger       *observability.Logger
	registry     *prometheus.Registry
	metrics      *observability.Metrics
	tracker      *observability.Tracker
	prompts      *prompts.Manager
	providerName string
	modelName    string
	client       provider.Client
	embedder     embeddings.Embedder
	index        *store.Index
	workspace    *artifacts.Workspace
	orchestrator *agent.Orchestrator
	gate         *agent.RunGate
	diagrams     *diagram.Generator
}

func loadConfig() (*config.Config, *observability.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := observability.NewLogger(observability.Options{
		Level:      cfg.Log.Level,
		JSON:       cfg.Log.JSON,
		LLMLogPath: cfg.Log.LLMLogPath,
	})
	return cfg, logger, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		registry:  prometheus.NewRegistry(),
		tracker:   observability.NewTracker(),
		workspace: artifacts.NewWorkspace(cfg.App.Workspace),
		gate:      &agent.RunGate{},
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = observability.NewMetrics(a.registry)

	a.prompts, err = prompts.NewManager(cfg.Prompts.Dir)
	if err != nil {
		return nil, err
	}

	name, client, err := provider.FromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.providerName, a.client = name, client
	a.modelName = cfg.Providers[name].Model

	a.embedder, err = provider.NewEmbedder(client)
	if err != nil {
		return nil, err
	}

	var docs vectorstores.VectorStore
	if cfg.Index.Path != "" {
		idx, err := store.OpenExisting(cfg.Index.Path, a.embedder)
		if err != nil {
			logger.Warn("document index unavailable", "path", cfg.Index.Path, "err", err)
		} else {
			a.index = idx
			docs = idx
		}
	}

	caps := tools.Capabilities{
		Workspace:    cfg.App.Workspace,
		ShellTimeout: cfg.Agent.ShellTimeout,
		Documents:    docs,
		TopK:         cfg.Index.TopK,
	}
	if search, err := tools.NewSearchTool(); err != nil {
		logger.Warn("web search unavailable", "err", err)
	} else {
		caps.Search = search
	}
	registry := tools.BuildRegistry(caps)

	policy, err := governance.NewPolicyEngine(cfg.Governance.DenyTools, cfg.Governance.DenyPatterns, cfg.Governance.ProtectedFiles)
	if err != nil {
		return nil, err
	}

	planner := agent.NewPlanner(client, a.prompts, logger, a.metrics)
	planner.Temperature = cfg.Agent.Temperature

	executor := agent.NewExecutor(client, registry, a.prompts, logger)
	executor.Policy = policy
	executor.Metrics = a.metrics
	executor.ModelName = a.modelName
	executor.MaxTurns = cfg.Agent.MaxTurns
	executor.HistoryCap = cfg.Agent.HistoryCap
	executor.Temperature = cfg.Agent.Temperature

	orch := agent.NewOrchestrator(planner, executor, cfg.Agent.Role, logger)
	orch.Tracker = a.tracker
	orch.Metrics = a.metrics
	orch.OnPlan = func(runID string, tasks []agent.Task) {
		a.tracker.SetPlanGraph(diagram.PlanGraph(tasks))
	}
	a.orchestrator = orch

	a.diagrams = diagram.NewGenerator(client, a.prompts, logger, a.metrics)
	a.diagrams.Temperature = cfg.Agent.Temperature

	logger.Debug("tools registered", "tools", registry.Names())
	return a, nil
}

// messengers builds the enabled notification gateways. The telegram gateway
// is returned separately so it can also listen for goals.
func (a *app) messengers() (gateway.Broadcast, *gateway.TelegramGateway) {
	var out gateway.Broadcast
	var tg *gateway.TelegramGateway

	if gw, ok := a.cfg.GetGateway("telegram"); ok {
		t, err := gateway.NewTelegramGateway(gw.Token, gw.ChatID, a.gate.Guard(a.orchestrator), a.logger)
		if err != nil {
			a.logger.Warn("telegram gateway disabled", "err", err)
		} else {
			tg = t
			out = append(out, t)
		}
	}
	if gw, ok := a.cfg.GetGateway("discord"); ok {
		d, err := gateway.NewDiscordNotifier(gw.Token, gw.Channel)
		if err != nil {
			a.logger.Warn("discord gateway disabled", "err", err)
		} else {
			out = append(out, d)
		}
	}
	return out, tg
}

func (a *app) Close() {
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "closing index:", err)
		}
	}
}

package container

import (
	"context"
	"fmt"

	"github.com/flowscript/orchestrator/catalog"
	"github.com/flowscript/orchestrator/cmd/orchestrator/service"
	"github.com/flowscript/orchestrator/common/bootstrap"
	"github.com/flowscript/orchestrator/executor"
	"github.com/flowscript/orchestrator/nodes"
	"github.com/flowscript/orchestrator/registry"
	"github.com/flowscript/orchestrator/relay"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	Components *bootstrap.Components

	// Engine
	Registry *registry.Registry
	Manager  *executor.Manager
	Janitor  *executor.Janitor
	Metrics  *executor.Metrics

	// Workflow catalog
	Catalog catalog.Repository

	// Event relay, nil when redis is disabled
	Relay *relay.Publisher

	// Services
	WorkflowService  *service.WorkflowService
	ExecutionService *service.ExecutionService
}

// NewContainer initializes all services and repositories once. ctx is
// the service lifetime context; executions started through the REST
// surface run under it.
func NewContainer(ctx context.Context, components *bootstrap.Components) (*Container, error) {
	cfg := components.Config
	log := components.Logger

	// Node registry with the built-in node set
	reg := registry.New(log)
	if err := nodes.Register(reg, nodes.Deps{Logger: log}); err != nil {
		return nil, fmt.Errorf("failed to register built-in nodes: %w", err)
	}

	// Workflow catalog: postgres behind a read-through cache when
	// configured, in-memory otherwise
	var repo catalog.Repository
	if components.DB != nil {
		pg := catalog.NewPostgresRepository(components.DB)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure catalog schema: %w", err)
		}
		repo = catalog.NewCachedRepository(pg, cfg.Database.CacheTTL)
	} else {
		repo = catalog.NewMemoryRepository()
	}

	if dir := cfg.Service.WorkflowsDir; dir != "" {
		n, err := catalog.LoadDir(ctx, dir, repo)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow definitions: %w", err)
		}
		log.Info("workflow definitions loaded", "dir", dir, "count", n)
	}

	var metrics *executor.Metrics
	if cfg.Telemetry.EnableMetrics {
		metrics = executor.NewMetrics(nil)
	}

	manager := executor.NewManager(reg, log, executor.Options{
		SubscribeGrace:          cfg.Engine.SubscribeGrace,
		MaxConcurrentExecutions: cfg.Engine.MaxConcurrentExecutions,
		MaxDepth:                cfg.Engine.MaxDepth,
		MaxLoopIterations:       cfg.Engine.MaxLoopIterations,
		Metrics:                 metrics,
	})

	janitor := executor.NewJanitor(manager, log).
		WithCheckInterval(cfg.Engine.CleanupInterval).
		WithRetention(cfg.Engine.RetainTerminal)

	var relayPub *relay.Publisher
	if components.Redis != nil {
		relayPub = relay.NewPublisher(components.Redis, cfg.Redis.ChannelPrefix, log)
	}

	// Initialize services (bottom-up: dependencies first)
	workflowService := service.NewWorkflowService(repo, log)
	executionService := service.NewExecutionService(ctx, manager, repo, relayPub, log)

	return &Container{
		Components:       components,
		Registry:         reg,
		Manager:          manager,
		Janitor:          janitor,
		Metrics:          metrics,
		Catalog:          repo,
		Relay:            relayPub,
		WorkflowService:  workflowService,
		ExecutionService: executionService,
	}, nil
}

package app

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/autoforgehq/autoforge/internal/common"
	"github.com/autoforgehq/autoforge/internal/handlers"
	"github.com/autoforgehq/autoforge/internal/interfaces"
	"github.com/autoforgehq/autoforge/internal/models"
	"github.com/autoforgehq/autoforge/internal/queue"
	"github.com/autoforgehq/autoforge/internal/services/events"
	"github.com/autoforgehq/autoforge/internal/services/prober"
	"github.com/autoforgehq/autoforge/internal/services/status"
	badgerstore "github.com/autoforgehq/autoforge/internal/storage/badger"
	"github.com/autoforgehq/autoforge/internal/workers"
	"github.com/autoforgehq/autoforge/internal/workers/llm"
)

// App holds all application components and dependencies.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager
	EventService   interfaces.EventService

	Registry     *queue.HandlerRegistry
	QueueService *queue.Service
	Pipeline     *workers.Pipeline
	pools        []interfaces.WorkerPool
	Monitor      *queue.Monitor

	ProberService *prober.Service
	StatusService *status.Service
	pruner        *cron.Cron

	// HTTP handlers
	APIHandler        *handlers.APIHandler
	WorkflowHandler   *handlers.WorkflowHandler
	QueueHandler      *handlers.QueueHandler
	MonitoringHandler *handlers.MonitoringHandler
	WSHandler         *handlers.WebSocketHandler
}

// New wires the application together: storage, events, the queue
// service with its per-queue worker pools, the pipeline handlers, the
// prober, and the HTTP handlers. Nothing starts running until Start.
func New(cfg *common.Config) (*App, error) {
	logger := common.GetLogger()

	storageManager, err := badgerstore.NewManager(logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	eventService := events.NewService(logger)
	registry := queue.NewHandlerRegistry(logger)
	queueService := queue.NewService(storageManager.JobStorage(), registry, eventService, logger)

	pipeline := workers.NewPipeline(
		newGenerator(cfg, logger),
		workers.StructuralTester{},
		workers.MetadataAssembler{},
		workers.LogPublisher{Logger: logger},
		workers.LogNotifier{Logger: logger},
		queueService,
		cfg.Queue.PublishRate,
		logger,
	)
	if err := pipeline.Register(registry); err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to register pipeline handlers: %w", err)
	}
	if err := registry.Validate(); err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("handler registry incomplete: %w", err)
	}

	// Jobs left active by a previous process can never finish; fail them
	// before any pool starts claiming.
	if err := queue.CleanupOrphanedJobs(context.Background(), storageManager.JobStorage(), logger); err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to clean up orphaned jobs: %w", err)
	}

	pools := make([]interfaces.WorkerPool, 0, len(models.QueueNames))
	for _, queueName := range models.QueueNames {
		pools = append(pools, queue.NewWorkerPool(
			queueName,
			cfg.Queue.ConcurrencyFor(queueName),
			cfg.Queue.PollIntervalDuration(),
			queueService,
			registry,
			logger,
		))
	}

	monitor := queue.NewMonitor(
		storageManager.JobStorage(),
		eventService,
		logger,
		cfg.Queue.StalledAfterDuration(),
		cfg.Queue.MonitorIntervalDuration(),
	)

	baseURL := fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	proberService := prober.NewService(cfg.Prober, baseURL, storageManager.ProbeStorage(), eventService, logger)
	statusService := status.NewService(proberService, storageManager.ProbeStorage(), queueService, cfg.Prober, logger)

	app := &App{
		Config:         cfg,
		Logger:         logger,
		StorageManager: storageManager,
		EventService:   eventService,
		Registry:       registry,
		QueueService:   queueService,
		Pipeline:       pipeline,
		pools:          pools,
		Monitor:        monitor,
		ProberService:  proberService,
		StatusService:  statusService,

		APIHandler:        handlers.NewAPIHandler(),
		WorkflowHandler:   handlers.NewWorkflowHandler(queueService, logger),
		QueueHandler:      handlers.NewQueueHandler(queueService, logger),
		MonitoringHandler: handlers.NewMonitoringHandler(proberService, statusService, storageManager.ProbeStorage(), logger),
		WSHandler:         handlers.NewWebSocketHandler(eventService, logger),
	}

	if err := app.schedulePruner(); err != nil {
		storageManager.Close()
		return nil, err
	}

	return app, nil
}

// newGenerator picks the workflow generator: Claude when an API key is
// configured, the local template generator otherwise.
func newGenerator(cfg *common.Config, logger arbor.ILogger) interfaces.Generator {
	if cfg.LLM.AnthropicAPIKey == "" {
		logger.Info().Msg("No Anthropic API key configured, using template workflow generator")
		return workers.TemplateGenerator{}
	}

	generator, err := llm.NewClaudeGenerator(cfg.LLM, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Claude generator unavailable, falling back to template generator")
		return workers.TemplateGenerator{}
	}
	return generator
}

// schedulePruner sets up the retention cron: trim terminal jobs beyond
// the retention counts and drop expired probe results and alerts.
func (a *App) schedulePruner() error {
	schedule := a.Config.Retention.PruneSchedule
	if schedule == "" {
		schedule = "@hourly"
	}

	a.pruner = cron.New()
	_, err := a.pruner.AddFunc(schedule, func() {
		ctx := context.Background()

		jobs, err := a.StorageManager.JobStorage().PruneTerminal(ctx, a.Config.Retention.KeepCompleted, a.Config.Retention.KeepFailed)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Terminal job pruning failed")
		}

		probes, err := a.StorageManager.ProbeStorage().PruneExpired(ctx)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Probe data pruning failed")
		}

		if jobs > 0 || probes > 0 {
			a.Logger.Info().
				Int("jobs_pruned", jobs).
				Int("probe_records_pruned", probes).
				Msg("Retention pruning completed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retention pruner: %w", err)
	}
	return nil
}

// Start launches the background components: worker pools, the stalled
// job monitor, the retention pruner, and the prober when enabled.
func (a *App) Start() error {
	for _, pool := range a.pools {
		if err := pool.Start(); err != nil {
			return fmt.Errorf("failed to start worker pool: %w", err)
		}
	}

	a.Monitor.Start()
	a.pruner.Start()

	if a.Config.Prober.Enabled {
		if err := a.ProberService.Start(); err != nil {
			return fmt.Errorf("failed to start prober: %w", err)
		}
	} else {
		a.Logger.Info().Msg("Prober disabled by configuration")
	}

	a.Logger.Info().
		Int("worker_pools", len(a.pools)).
		Bool("prober", a.Config.Prober.Enabled).
		Msg("Application components started")

	return nil
}

// Stop shuts the components down in reverse order: stop producing
// (prober), stop consuming (pools, monitor), then release storage.
func (a *App) Stop() {
	if a.Config.Prober.Enabled {
		if err := a.ProberService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Prober stop failed")
		}
	}

	a.pruner.Stop()
	a.Monitor.Stop()

	for _, pool := range a.pools {
		if err := pool.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Worker pool stop failed")
		}
	}

	if err := a.EventService.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Event service close failed")
	}
	if err := a.StorageManager.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Storage close failed")
	}

	a.Logger.Info().Msg("Application components stopped")
}

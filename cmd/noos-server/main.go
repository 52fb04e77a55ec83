package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/retailcore/noos-go/internal/adapters/artifacts"
	"github.com/retailcore/noos-go/internal/adapters/httpapi"
	"github.com/retailcore/noos-go/internal/adapters/metrics"
	"github.com/retailcore/noos-go/internal/adapters/persistence"
	"github.com/retailcore/noos-go/internal/application/admin"
	"github.com/retailcore/noos-go/internal/application/algo"
	"github.com/retailcore/noos-go/internal/application/export"
	"github.com/retailcore/noos-go/internal/application/ingest"
	"github.com/retailcore/noos-go/internal/application/mediator"
	"github.com/retailcore/noos-go/internal/application/reports"
	domainIngest "github.com/retailcore/noos-go/internal/domain/ingest"
	"github.com/retailcore/noos-go/internal/domain/shared"
	"github.com/retailcore/noos-go/internal/domain/task"
	"github.com/retailcore/noos-go/internal/engine"
	"github.com/retailcore/noos-go/internal/infrastructure/config"
	"github.com/retailcore/noos-go/internal/infrastructure/database"
	"github.com/retailcore/noos-go/internal/infrastructure/logging"
	"github.com/retailcore/noos-go/internal/infrastructure/pidfile"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: search standard locations)")
	forceFlag := flag.Bool("force", false, "Kill any existing server instance and start a new one")
	flag.Parse()

	fmt.Println("NOOS Data Service")
	fmt.Println("=================")

	cfg := config.MustLoadConfig(*configPath)

	logger, err := logging.Setup(&cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	if cfg.Server.PIDFile != "" {
		pf := pidfile.New(cfg.Server.PIDFile)
		if err := pf.Acquire(); err != nil {
			if !*forceFlag {
				log.Fatalf("Failed to acquire PID file lock: %v\nUse --force to kill the existing server", err)
			}
			if killErr := pf.KillExisting(); killErr != nil {
				log.Fatalf("Failed to kill existing server: %v", killErr)
			}
			if err := pf.Acquire(); err != nil {
				log.Fatalf("Failed to acquire PID file lock after killing existing server: %v", err)
			}
		}
		defer func() {
			if err := pf.Release(); err != nil {
				log.Printf("Warning: failed to release PID file: %v", err)
			}
		}()
	}

	if err := run(cfg, logger); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	// 1. Database
	logger.Info().Str("type", cfg.Database.Type).Msg("connecting to database")
	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}

	// 2. Repositories
	clock := shared.NewRealClock()
	taskRepo := persistence.NewTaskRepository(db)
	taskLogRepo := persistence.NewTaskLogRepository(db, clock)
	styleRepo := persistence.NewStyleRepository(db)
	storeRepo := persistence.NewStoreRepository(db)
	skuRepo := persistence.NewSKURepository(db)
	saleRepo := persistence.NewSaleRepository(db)
	resultRepo := persistence.NewNoosResultRepository(db)
	paramRepo := persistence.NewParameterSetRepository(db, clock)
	batchWriter := persistence.NewBatchWriter(db)
	wiper := persistence.NewDataWiper(db)

	// 3. Artifact store
	store, err := artifacts.NewStore(cfg.Artifacts.Root)
	if err != nil {
		return fmt.Errorf("failed to open artifact store: %w", err)
	}

	// 4. Metrics
	var observer engine.Observer = engine.NopObserver{}
	med := mediator.New()
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()

		taskMetrics := metrics.NewTaskMetricsCollector()
		if err := taskMetrics.Register(); err != nil {
			return fmt.Errorf("failed to register task metrics: %w", err)
		}
		observer = taskMetrics

		commandMetrics := metrics.NewCommandMetricsCollector()
		if err := commandMetrics.Register(); err != nil {
			return fmt.Errorf("failed to register command metrics: %w", err)
		}
		med.Use(metrics.PrometheusMiddleware(commandMetrics))
	}

	// 5. Command and query handlers
	uploadHandler := ingest.NewUploadHandler(styleRepo, storeRepo, skuRepo, batchWriter, store)
	if err := mediator.RegisterHandler[*ingest.UploadCommand](med, uploadHandler); err != nil {
		return fmt.Errorf("failed to register Upload handler: %w", err)
	}

	downloadHandler := export.NewDownloadHandler(styleRepo, storeRepo, skuRepo, saleRepo, resultRepo, store)
	if err := mediator.RegisterHandler[*export.DownloadCommand](med, downloadHandler); err != nil {
		return fmt.Errorf("failed to register Download handler: %w", err)
	}

	runNoosHandler := algo.NewRunNoosHandler(paramRepo, saleRepo, skuRepo, styleRepo, resultRepo, clock)
	if err := mediator.RegisterHandler[*algo.RunNoosCommand](med, runNoosHandler); err != nil {
		return fmt.Errorf("failed to register RunNoos handler: %w", err)
	}

	parametersHandler := algo.NewParametersHandler(paramRepo)
	if err := mediator.RegisterHandler[*algo.GetActiveParametersQuery](med, parametersHandler); err != nil {
		return fmt.Errorf("failed to register GetActiveParameters handler: %w", err)
	}
	if err := mediator.RegisterHandler[*algo.GetDefaultsQuery](med, parametersHandler); err != nil {
		return fmt.Errorf("failed to register GetDefaults handler: %w", err)
	}
	if err := mediator.RegisterHandler[*algo.GetParameterSetQuery](med, parametersHandler); err != nil {
		return fmt.Errorf("failed to register GetParameterSet handler: %w", err)
	}
	if err := mediator.RegisterHandler[*algo.ListParameterSetsQuery](med, parametersHandler); err != nil {
		return fmt.Errorf("failed to register ListParameterSets handler: %w", err)
	}
	if err := mediator.RegisterHandler[*algo.CreateParameterSetCommand](med, parametersHandler); err != nil {
		return fmt.Errorf("failed to register CreateParameterSet handler: %w", err)
	}
	if err := mediator.RegisterHandler[*algo.UpdateActiveParametersCommand](med, parametersHandler); err != nil {
		return fmt.Errorf("failed to register UpdateActiveParameters handler: %w", err)
	}
	if err := mediator.RegisterHandler[*algo.UpdateParameterSetCommand](med, parametersHandler); err != nil {
		return fmt.Errorf("failed to register UpdateParameterSet handler: %w", err)
	}
	if err := mediator.RegisterHandler[*algo.ActivateParameterSetCommand](med, parametersHandler); err != nil {
		return fmt.Errorf("failed to register ActivateParameterSet handler: %w", err)
	}

	reportsHandler := reports.NewHandler(styleRepo, storeRepo, skuRepo, saleRepo, taskRepo, clock)
	if err := mediator.RegisterHandler[*reports.GetDashboardQuery](med, reportsHandler); err != nil {
		return fmt.Errorf("failed to register GetDashboard handler: %w", err)
	}
	if err := mediator.RegisterHandler[*reports.GetFileStatusQuery](med, reportsHandler); err != nil {
		return fmt.Errorf("failed to register GetFileStatus handler: %w", err)
	}
	if err := mediator.RegisterHandler[*reports.GetNoosReportQuery](med, reportsHandler); err != nil {
		return fmt.Errorf("failed to register GetNoosReport handler: %w", err)
	}
	if err := mediator.RegisterHandler[*reports.GetHealthReportQuery](med, reportsHandler); err != nil {
		return fmt.Errorf("failed to register GetHealthReport handler: %w", err)
	}

	clearAllHandler := admin.NewClearAllHandler(wiper)
	if err := mediator.RegisterHandler[*admin.ClearAllCommand](med, clearAllHandler); err != nil {
		return fmt.Errorf("failed to register ClearAll handler: %w", err)
	}

	// 6. Task engine
	factory := engine.NewCommandFactory()
	registerBuilders(factory)

	engineCfg := engine.Config{
		Pools: map[task.Category]engine.PoolConfig{
			task.CategoryUpload: {
				Workers:    cfg.Engine.Upload.Workers,
				QueueDepth: cfg.Engine.Upload.QueueDepth,
				Budget:     cfg.Engine.Upload.Budget,
			},
			task.CategoryDownload: {
				Workers:    cfg.Engine.Download.Workers,
				QueueDepth: cfg.Engine.Download.QueueDepth,
				Budget:     cfg.Engine.Download.Budget,
			},
			task.CategoryCompute: {
				Workers:    cfg.Engine.Compute.Workers,
				QueueDepth: cfg.Engine.Compute.QueueDepth,
				Budget:     cfg.Engine.Compute.Budget,
			},
		},
		ProgressFlushInterval: cfg.Engine.ProgressFlushInterval,
		ProgressFlushDelta:    cfg.Engine.ProgressFlushDelta,
		WatchInterval:         cfg.Engine.WatchInterval,
	}

	eng := engine.New(engineCfg, taskRepo, taskLogRepo, store, med, factory, observer, clock, logger)

	// Recovery runs before the first submission can be accepted
	if err := eng.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start task engine: %w", err)
	}

	// 7. HTTP server
	srv := httpapi.NewServer(eng, med, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("address", cfg.Server.Address).Msg("http server listening")
		errCh <- srv.Start(cfg.Server.Address)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}
	if err := eng.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("task engine stop failed")
	}

	logger.Info().Msg("server stopped")
	return nil
}

// registerBuilders binds every task type to the command that executes it.
// Builders read everything from the persisted task row, so recovered tasks
// rebuild the identical command after a restart.
func registerBuilders(factory *engine.CommandFactory) {
	uploadKinds := map[task.Type]domainIngest.Kind{
		task.TypeUploadStyles: domainIngest.KindStyles,
		task.TypeUploadStores: domainIngest.KindStores,
		task.TypeUploadSkus:   domainIngest.KindSkus,
		task.TypeUploadSales:  domainIngest.KindSales,
	}
	for taskType, kind := range uploadKinds {
		k := kind
		factory.Register(taskType, func(t *task.Task, rt task.Runtime) (mediator.Request, error) {
			staged, ok := engine.StagedFilePath(t)
			if !ok {
				return nil, shared.NewError(shared.KindInternal, "upload task has no staged file")
			}
			return &ingest.UploadCommand{
				TaskID:     t.ID(),
				Kind:       k,
				FileName:   t.FileName(),
				StagedPath: staged,
				Runtime:    rt,
			}, nil
		})
	}

	downloadKinds := map[task.Type]string{
		task.TypeDownloadStyles: export.KindStyles,
		task.TypeDownloadStores: export.KindStores,
		task.TypeDownloadSkus:   export.KindSkus,
		task.TypeDownloadSales:  export.KindSales,
		task.TypeDownloadNoos:   export.KindNoos,
	}
	for taskType, kind := range downloadKinds {
		k := kind
		factory.Register(taskType, func(t *task.Task, rt task.Runtime) (mediator.Request, error) {
			return &export.DownloadCommand{
				TaskID:  t.ID(),
				Kind:    k,
				Runtime: rt,
			}, nil
		})
	}

	factory.Register(task.TypeAlgorithmRun, func(t *task.Task, rt task.Runtime) (mediator.Request, error) {
		return &algo.RunNoosCommand{
			TaskID:    t.ID(),
			Overrides: t.Parameters(),
			Runtime:   rt,
		}, nil
	})
}

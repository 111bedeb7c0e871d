package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"PolicyScanner/internal/audit"
	"PolicyScanner/internal/config"
	"PolicyScanner/internal/dedup"
	"PolicyScanner/internal/httpapi"
	"PolicyScanner/internal/infrastructure/fetcher"
	"PolicyScanner/internal/infrastructure/llm"
	"PolicyScanner/internal/infrastructure/scheduler"
	"PolicyScanner/internal/infrastructure/storage"
	"PolicyScanner/internal/infrastructure/telegram"
	"PolicyScanner/internal/logging"
	"PolicyScanner/internal/metrics"
	"PolicyScanner/internal/ports"
	"PolicyScanner/internal/source"
	"PolicyScanner/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *zap.Logger
	db        *sqlx.DB
	auditFile *audit.FileSink
	registry  *prometheus.Registry
	pipeline  *usecase.Pipeline
	policies  *storage.PolicyRepository
	logs      *storage.LogRepository
}

// New opens the database and the audit file, then builds the pipeline.
// The caller owns Close.
func New(ctx context.Context, cfg config.Config, baseLogger *zap.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	registry, err := source.NewRegistry(cfg.Definitions())
	if err != nil {
		return nil, fmt.Errorf("source registry: %w", err)
	}

	db, err := storage.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	auditFile, err := audit.OpenFileSink(cfg.Audit.File)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	policies := storage.NewPolicyRepository(db)
	logs := storage.NewLogRepository(db)

	completer := llm.NewAnthropicClient(cfg.Anthropic)
	engine := dedup.NewEngine(policies, llm.NewClassifier(completer))

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Sources:    registry,
		Fetcher:    fetcher.NewHTTPFetcher(&http.Client{Timeout: cfg.Fetcher.Timeout}, baseLogger.Named("fetcher")),
		Extractor:  llm.NewExtractor(completer),
		Dedup:      engine,
		Repository: policies,
		Audit:      audit.NewLogger(auditFile, logs, baseLogger.Named("audit")),
		Notifier:   notifier,
		Metrics:    metrics.NewPipeline(promRegistry),
		Logger:     baseLogger.Named("pipeline"),
		FailFast:   cfg.Pipeline.FailFast,
	})

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		db:        db,
		auditFile: auditFile,
		registry:  promRegistry,
		pipeline:  pipeline,
		policies:  policies,
		logs:      logs,
	}, nil
}

// Migrate applies the storage schema.
func (a *Application) Migrate(ctx context.Context) error {
	return storage.Migrate(ctx, a.db)
}

// RunOnce performs a single pipeline pass.
func (a *Application) RunOnce(ctx context.Context) (usecase.RunReport, error) {
	return a.pipeline.Run(ctx)
}

// Serve starts the scheduler and the admin API and blocks until ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.Migrate(ctx); err != nil {
		return err
	}

	runner := usecase.NewTrackedRunner(a.pipeline)

	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.Spec, a.cfg.Scheduler.Location(), a.cfg.Scheduler.StartImmediately())
	sched := usecase.NewScheduler(driver, runner, a.logger.Named("scheduler"))
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Policies:      a.policies,
		Logs:          a.logs,
		Runner:        runner,
		BearerToken:   a.cfg.HTTP.BearerToken,
		TriggerWindow: a.cfg.HTTP.TriggerWindow,
		Gatherer:      a.registry,
		Logger:        a.logger.Named("http"),
	})
	server := httpapi.NewServer(a.cfg.HTTP.Addr, router, a.logger.Named("http"))

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Start() }()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown requested")
	case runErr = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Runs are cancelled first so trigger handlers blocked on them can return.
	errs := []error{runErr}
	if err := runner.Drain(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("drain runs: %w", err))
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("scheduler stop: %w", err))
	}
	return errors.Join(errs...)
}

// Close releases the audit file and the database pool.
func (a *Application) Close() error {
	var errs []error
	if a.auditFile != nil {
		errs = append(errs, a.auditFile.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/riskibarqy/oddsline/internal/config"
	"github.com/riskibarqy/oddsline/internal/domain/snapshot"
	"github.com/riskibarqy/oddsline/internal/infrastructure/jobqueue"
	"github.com/riskibarqy/oddsline/internal/infrastructure/scraper"
	"github.com/riskibarqy/oddsline/internal/interfaces/httpapi"
	"github.com/riskibarqy/oddsline/internal/observability"
	"github.com/riskibarqy/oddsline/internal/platform/logging"
	"github.com/riskibarqy/oddsline/internal/platform/resilience"
	"github.com/riskibarqy/oddsline/internal/platform/rollinglog"
	"github.com/riskibarqy/oddsline/internal/usecase"
)

// App is the assembled service: storage, the snapshot producer, the three
// supervisors, the task queue and the HTTP control surface.
type App struct {
	cfg    config.Config
	logger *logging.Logger

	repos    Repositories
	producer *scraper.Producer
	registry *usecase.SupervisorRegistry
	queue    *jobqueue.LocalQueue
	logs     []*rollinglog.Buffer
	server   *http.Server
}

// Services are the usecases shared by the API and the one-shot binaries.
type Services struct {
	Reconciler *usecase.ReconciliationService
	Detector   *usecase.FinishDetector
	Settlement *usecase.SettlementService
	Dashboard  *usecase.DashboardService
	Accounts   *usecase.AccountService
}

func NewServices(cfg config.Config, repos Repositories, metrics usecase.PipelineMetrics, logger *logging.Logger) Services {
	settlement := usecase.NewSettlementService(
		repos.Matches,
		repos.Bets,
		usecase.SettlementConfig{MaxWorkers: cfg.Settlement.MaxWorkers, SweepBatch: cfg.Settlement.SweepBatch},
		metrics,
		logger.Named("settlement"),
	)
	return Services{
		Reconciler: usecase.NewReconciliationService(
			repos.Matches,
			repos.Teams,
			usecase.ReconcileConfig{
				RetirementWindow:    cfg.Reconcile.RetirementWindow,
				RetirementMinMisses: cfg.Reconcile.RetirementMinMisses,
				StaleSweepCooldown:  cfg.Reconcile.StaleSweepCooldown,
				StaleAfter:          cfg.Reconcile.StaleAfter,
			},
			metrics,
			logger.Named("reconcile"),
		),
		Detector: usecase.NewFinishDetector(
			repos.Matches,
			settlement,
			usecase.FinishDetectorConfig{DisappearanceMisses: cfg.Finish.DisappearanceMisses},
			metrics,
			logger.Named("finish"),
		),
		Settlement: settlement,
		Dashboard:  usecase.NewDashboardService(repos.Matches, repos.Teams, repos.Bets, cfg.CacheTTL),
		Accounts:   usecase.NewAccountService(repos.Wallets),
	}
}

func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	repos, err := OpenRepositories(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, logger: logger, repos: repos}

	var metrics usecase.PipelineMetrics = usecase.NewNoopPipelineMetrics()
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		prom := observability.NewPipelineMetrics()
		metrics = prom
		metricsHandler = prom.Handler()
	}

	producer, err := NewProducer(cfg, logger)
	if err != nil {
		_ = a.close()
		return nil, err
	}
	a.producer = producer

	services := NewServices(cfg, repos, metrics, logger)
	pipeline := usecase.NewPipelineService(producer, services.Reconciler, services.Detector, services.Settlement)

	a.registry = usecase.NewSupervisorRegistry()
	loops := []struct {
		cfg   usecase.SupervisorConfig
		cycle usecase.CycleFunc
	}{
		{usecase.SupervisorConfig{Name: usecase.SupervisorMain, Interval: cfg.Scraper.MainInterval, CycleTimeout: cfg.Scraper.CycleTimeout}, pipeline.MainCycle},
		{usecase.SupervisorConfig{Name: usecase.SupervisorLive, Interval: cfg.Scraper.LiveInterval, CycleTimeout: cfg.Scraper.CycleTimeout}, pipeline.LiveCycle},
		{usecase.SupervisorConfig{Name: usecase.SupervisorSettlement, Interval: cfg.Settlement.SweepInterval, CycleTimeout: cfg.Scraper.CycleTimeout}, pipeline.SettlementCycle},
	}
	for _, loop := range loops {
		buf, err := a.openLogBuffer(loop.cfg.Name)
		if err != nil {
			_ = a.close()
			return nil, err
		}
		s := usecase.NewSupervisor(loop.cfg, loop.cycle, buf, repos.Runs, metrics, logger.Named("supervisor"))
		if err := a.registry.Register(s); err != nil {
			_ = a.close()
			return nil, err
		}
	}

	dispatcher := usecase.NewTaskDispatcher(a.registry, services.Reconciler, services.Settlement)
	a.queue, err = jobqueue.NewLocalQueue(dispatcher, jobqueue.LocalQueueConfig{
		Workers:     cfg.TaskQueue.Workers,
		TaskTimeout: cfg.TaskQueue.TaskTimeout,
		Logger:      logger,
	})
	if err != nil {
		_ = a.close()
		return nil, err
	}

	handler := httpapi.NewHandler(a.registry, services.Dashboard, services.Settlement, services.Accounts, a.queue, logger)
	a.server = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(handler, logger, cfg.CORSAllowedOrigins, cfg.AdminToken, metricsHandler),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return a, nil
}

// NewProducer builds the snapshot producer for the configured fetch mode.
func NewProducer(cfg config.Config, logger *logging.Logger) (*scraper.Producer, error) {
	normalizer, err := snapshot.NewNormalizer(cfg.Scraper.Timezone, cfg.Scraper.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("build normalizer: %w", err)
	}

	var fetcher scraper.PageFetcher
	switch cfg.Scraper.FetchMode {
	case config.FetchModeHTTP:
		fetcher = scraper.NewHTTPFetcher(scraper.HTTPFetcherConfig{
			UserAgent: cfg.Scraper.UserAgent,
			Timeout:   cfg.Scraper.PageTimeout,
		})
	default:
		fetcher = scraper.NewBrowserFetcher(scraper.BrowserFetcherConfig{
			UserAgent:     cfg.Scraper.UserAgent,
			ReadySelector: cfg.Scraper.ReadySelector,
			Timeout:       cfg.Scraper.PageTimeout,
			ExecPath:      cfg.Scraper.ChromePath,
			Logger:        logger,
		})
	}

	return scraper.NewProducer(scraper.ProducerConfig{
		MainURL:    cfg.Scraper.MainURL,
		LiveURL:    cfg.Scraper.LiveURL,
		Fetcher:    fetcher,
		Extractor:  scraper.NewExtractor(scraper.DefaultSelectors()),
		Normalizer: normalizer,
		Logger:     logger.Named("producer"),
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.Scraper.CircuitEnabled,
			FailureThreshold: cfg.Scraper.CircuitFailureCount,
			OpenTimeout:      cfg.Scraper.CircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.Scraper.CircuitHalfOpenMaxReq,
		},
	})
}

func (a *App) openLogBuffer(name string) (*rollinglog.Buffer, error) {
	path := ""
	if a.cfg.Scraper.LogDir != "" {
		path = filepath.Join(a.cfg.Scraper.LogDir, name+".log")
	}
	buf, err := rollinglog.NewWithFile(a.cfg.Scraper.LogLines, path, int64(a.cfg.Scraper.LogMaxBytes))
	if err != nil {
		return nil, fmt.Errorf("open %s log: %w", name, err)
	}
	a.logs = append(a.logs, buf)
	return buf, nil
}

func (a *App) Server() *http.Server {
	return a.server
}

// Start launches the supervisors enabled for autostart.
func (a *App) Start(ctx context.Context) error {
	names := make([]string, 0, 3)
	if a.cfg.Scraper.Autostart {
		if a.cfg.Scraper.MainURL != "" {
			names = append(names, usecase.SupervisorMain)
		}
		if a.cfg.Scraper.LiveURL != "" {
			names = append(names, usecase.SupervisorLive)
		}
	}
	if a.cfg.Settlement.Autostart {
		names = append(names, usecase.SupervisorSettlement)
	}

	for _, name := range names {
		s, err := a.registry.Get(name)
		if err != nil {
			return err
		}
		if err := s.Start(ctx); err != nil && !errors.Is(err, usecase.ErrAlreadyRunning) {
			return fmt.Errorf("autostart %s: %w", name, err)
		}
	}
	a.logger.InfoContext(ctx, "supervisors autostarted", "names", names)
	return nil
}

// Shutdown stops serving, waits for the loops and queued tasks, then releases
// storage.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	if err := a.registry.StopAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop supervisors: %w", err))
	}
	if err := a.queue.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close task queue: %w", err))
	}
	if err := a.close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) close() error {
	var errs []error
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close producer: %w", err))
		}
	}
	for _, buf := range a.logs {
		if err := buf.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log buffer: %w", err))
		}
	}
	if err := a.repos.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	return errors.Join(errs...)
}

package main

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DukeRupert/turnover/internal"
	"github.com/DukeRupert/turnover/internal/ai"
	aigemini "github.com/DukeRupert/turnover/internal/ai/gemini"
	"github.com/DukeRupert/turnover/internal/ai/mock"
	"github.com/DukeRupert/turnover/internal/baseline"
	"github.com/DukeRupert/turnover/internal/domain"
	"github.com/DukeRupert/turnover/internal/filestore"
	fsgemini "github.com/DukeRupert/turnover/internal/filestore/gemini"
	"github.com/DukeRupert/turnover/internal/filestore/memory"
	"github.com/DukeRupert/turnover/internal/handler"
	"github.com/DukeRupert/turnover/internal/ingest"
	"github.com/DukeRupert/turnover/internal/inspection"
	"github.com/DukeRupert/turnover/internal/inventory"
	"github.com/DukeRupert/turnover/internal/jobs"
	"github.com/DukeRupert/turnover/internal/metrics"
	"github.com/DukeRupert/turnover/internal/middleware"
	"github.com/DukeRupert/turnover/internal/service"
	"github.com/DukeRupert/turnover/internal/storage"
	"github.com/DukeRupert/turnover/internal/worker"
)

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// ==========================================================================
	// AI provider and remote file store
	// ==========================================================================

	provider, files, err := newProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("AI provider ready", "provider", cfg.AIProvider)

	catalog, err := loadCatalog(cfg.InventoryFile)
	if err != nil {
		return fmt.Errorf("inventory initialization failed: %w", err)
	}

	// ==========================================================================
	// Baselines
	// ==========================================================================

	defaults := baseline.DefaultSet()
	for slug, name := range cfg.BaselineOverrides() {
		room, err := domain.ParseRoom(slug)
		if err != nil {
			return fmt.Errorf("baseline override: %w", err)
		}
		defaults[room] = name
	}
	static := baseline.NewStaticResolver(cfg.DefaultPropertyID, defaults)
	if cfg.BaselinesFile != "" {
		if err := static.LoadFile(cfg.BaselinesFile); err != nil {
			return fmt.Errorf("baselines file: %w", err)
		}
	}

	var resolver baseline.Resolver = static
	if cfg.BaselineStore != "static" {
		db, err := baseline.OpenDB(ctx, cfg.BaselineStore, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		// Run migrations
		if err := internal.RunMigrations(db, baseline.MigrationDialect(cfg.BaselineStore)); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("Database ready", "store", cfg.BaselineStore)

		resolver = baseline.NewSQLStore(db, cfg.BaselineStore, cfg.DefaultPropertyID, static, logger)
	}

	if mem, ok := files.(*memory.Store); ok {
		if err := seedPlaceholders(ctx, mem, resolver, cfg.DefaultPropertyID); err != nil {
			return err
		}
	}

	// ==========================================================================
	// Services
	// ==========================================================================

	ingestClient, err := ingest.New(files, ingest.Config{
		MaxBytes:        cfg.UploadMaxBytes,
		PollInterval:    cfg.UploadPollInterval,
		MaxPollAttempts: cfg.UploadPollMaxAttempts,
	}, logger)
	if err != nil {
		return fmt.Errorf("ingest initialization failed: %w", err)
	}

	evidence, err := storage.New(cfg.StorageProvider,
		storage.LocalConfig{BasePath: cfg.LocalStoragePath, BaseURL: cfg.LocalStorageURL},
		storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	workerCfg := worker.DefaultConfig()
	workerCfg.Concurrency = cfg.WorkerConcurrency
	workerCfg.QueueSize = cfg.WorkerQueueSize
	workerCfg.JobTimeout = cfg.WorkerJobTimeout
	queue, err := worker.New(workerCfg, logger)
	if err != nil {
		return fmt.Errorf("worker initialization failed: %w", err)
	}

	engine := inspection.New(provider, catalog, logger)

	sessionService := service.NewSessionService(service.SessionServiceParams{
		Ingest:          ingestClient,
		Files:           files,
		Engine:          engine,
		Baselines:       resolver,
		DefaultProperty: cfg.DefaultPropertyID,
		Evidence:        evidence,
		Thumbnails:      service.NewImagingProcessor(),
		Queue:           queue,
		TTL:             cfg.SessionTTL,
		Logger:          logger,
	})
	compareService := service.NewCompareService(files, resolver, engine, logger)
	baselineService := service.NewBaselineService(resolver, ingestClient, logger)

	queue.Register(jobs.NewAnalyzeSessionHandler(sessionService, logger))
	queue.Start(ctx)
	go sessionService.RunJanitor(ctx)

	// ==========================================================================
	// Middleware
	// ==========================================================================

	isSecure := cfg.Env != "development"
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	if cfg.MetricsUsername == "" && cfg.MetricsPassword == "" {
		logger.Warn("metrics endpoint is unprotected: set METRICS_USERNAME and METRICS_PASSWORD")
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow, logger)
	go limiter.Cleanup(ctx)
	rateLimitMw := middleware.NewRateLimitMiddleware(limiter, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	api := http.NewServeMux()
	handler.NewUploadHandler(ingestClient, logger).RegisterRoutes(api)
	handler.NewCompareHandler(compareService, logger).RegisterRoutes(api)
	handler.NewSessionHandler(sessionService, cfg.UploadMaxBytes, logger).RegisterRoutes(api)
	handler.NewBaselineHandler(baselineService, cfg.UploadMaxBytes, logger).RegisterRoutes(api)
	api.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		handler.NotFoundResponse(w, r, logger)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handler.Health)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))
	mux.Handle("/", rateLimitMw.Limit(api))

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           middleware.Stack(loggingMw.Handler, securityMw.Handler, metrics.Middleware)(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		// Synchronous analysis holds the response for four comparisons and a summary.
		WriteTimeout: 2*cfg.AIRequestTimeout + time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
	case err := <-serverErr:
		logger.Error("Server failed", "error", err)
	}

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	// Running analyses get the worker's shutdown timeout. Analyses still
	// queued are dropped with the in-memory sessions that asked for them.
	queue.Stop()
	cancel()

	logger.Info("Graceful shutdown complete")
	return nil
}

// newProvider builds the AI provider and the remote file store it reads
// from. The mock provider pairs with the in-memory store.
func newProvider(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (ai.Provider, filestore.Store, error) {
	if cfg.AIProvider != "gemini" {
		return mock.New(logger), memory.New(), nil
	}

	client, err := aigemini.NewClient(ctx, cfg.GoogleAPIKey, cfg.GeminiBaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("gemini client initialization failed: %w", err)
	}

	provider, err := aigemini.New(client, aigemini.Config{
		InspectionModel: cfg.GeminiInspectionModel,
		SummaryModel:    cfg.GeminiSummaryModel,
		ProviderConfig: ai.ProviderConfig{
			MaxRetries:        cfg.AIMaxRetries,
			RetryBaseDelay:    cfg.AIRetryBaseDelay,
			RequestTimeout:    cfg.AIRequestTimeout,
			RequestsPerSecond: cfg.AIRequestsPerSecond,
		},
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("gemini provider initialization failed: %w", err)
	}

	files, err := fsgemini.New(client)
	if err != nil {
		return nil, nil, fmt.Errorf("gemini file store initialization failed: %w", err)
	}
	return provider, files, nil
}

func loadCatalog(path string) (*inventory.Catalog, error) {
	if path == "" {
		return inventory.Default()
	}
	return inventory.LoadFile(path)
}

// seedPlaceholders fills the in-memory store with a flat gray photo for
// every baseline of the default property, so the mock stack can run a
// full inspection.
func seedPlaceholders(ctx context.Context, files *memory.Store, resolver baseline.Resolver, propertyID string) error {
	set, err := resolver.Resolve(ctx, propertyID)
	if err != nil {
		return fmt.Errorf("resolve default baselines: %w", err)
	}

	var buf bytes.Buffer
	img := imaging.New(64, 48, color.NRGBA{R: 128, G: 128, B: 128, A: 255})
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		return fmt.Errorf("encode placeholder: %w", err)
	}
	for _, name := range set {
		files.Seed(name, "image/jpeg", buf.Bytes())
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

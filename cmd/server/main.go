package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	purchasingapp "github.com/atelier-erp/backend/internal/application/purchasing"
	"github.com/atelier-erp/backend/internal/domain/purchasing"
	"github.com/atelier-erp/backend/internal/domain/shared"
	"github.com/atelier-erp/backend/internal/infrastructure/auth"
	"github.com/atelier-erp/backend/internal/infrastructure/cache"
	"github.com/atelier-erp/backend/internal/infrastructure/config"
	"github.com/atelier-erp/backend/internal/infrastructure/event"
	"github.com/atelier-erp/backend/internal/infrastructure/logger"
	"github.com/atelier-erp/backend/internal/infrastructure/persistence"
	"github.com/atelier-erp/backend/internal/infrastructure/telemetry"
	"github.com/atelier-erp/backend/internal/interfaces/http/handler"
	"github.com/atelier-erp/backend/internal/interfaces/http/middleware"
	"github.com/atelier-erp/backend/internal/interfaces/http/router"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/atelier-erp/backend/purchasing"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	baseLog, err := logger.New(logger.FromAppConfig(cfg.App, cfg.Log))
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() { _ = baseLog.Sync() }()

	ctx := context.Background()
	tel := cfg.Telemetry

	// Telemetry providers
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.TracerConfig{
		Enabled:           tel.Enabled,
		CollectorEndpoint: tel.CollectorEndpoint,
		SamplingRatio:     tel.SamplingRatio,
		ServiceName:       tel.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          tel.Insecure,
	}, baseLog)
	if err != nil {
		return fmt.Errorf("initialize tracer provider: %w", err)
	}
	defer shutdown(baseLog, "tracer provider", tracerProvider.Shutdown)

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           tel.Enabled,
		CollectorEndpoint: tel.CollectorEndpoint,
		ExportInterval:    tel.MetricsInterval,
		ServiceName:       tel.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          tel.Insecure,
	}, baseLog)
	if err != nil {
		return fmt.Errorf("initialize meter provider: %w", err)
	}
	defer shutdown(baseLog, "meter provider", meterProvider.Shutdown)

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           tel.LogsEnabled,
		CollectorEndpoint: tel.CollectorEndpoint,
		ServiceName:       tel.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          tel.Insecure,
	}, baseLog)
	if err != nil {
		return fmt.Errorf("initialize logger provider: %w", err)
	}
	defer shutdown(baseLog, "logger provider", loggerProvider.Shutdown)

	log := telemetry.TeeLogger(baseLog, loggerProvider, tel.ServiceName)
	log.Info("Starting purchasing service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("allocator", cfg.Purchasing.AllocatorBackend),
	)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         tel.ProfilingEnabled,
		ServerAddress:   tel.ProfilingServerAddress,
		ApplicationName: tel.ServiceName,
		ProfileTypes:    tel.ProfilingTypes,
	}, log)
	if err != nil {
		return fmt.Errorf("initialize profiler: %w", err)
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()
	if tel.SpanProfilesEnabled && profiler.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Span profiles unavailable", zap.Error(err))
		}
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(tel.DBSlowQueryThresh))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	dbTracing := telemetry.DefaultDBTracingConfig()
	dbTracing.Enabled = tel.Enabled && tel.DBTraceEnabled
	dbTracing.LogFullSQL = tel.DBLogFullSQL
	if tel.DBSlowQueryThresh > 0 {
		dbTracing.SlowQueryThresh = tel.DBSlowQueryThresh
	}
	if err := telemetry.NewDBTracingPlugin(dbTracing, log).RegisterOtelGorm(db.DB); err != nil {
		return fmt.Errorf("register database tracing: %w", err)
	}
	log.Info("Database connected")

	// Redis is only dialed when a component needs it
	var redisClient *redis.Client
	if cfg.Purchasing.AllocatorBackend == config.AllocatorRedis || cfg.Purchasing.ReconcileEnabled {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer func() { _ = redisClient.Close() }()
	}

	var allocator purchasing.DocumentNumberAllocator
	switch cfg.Purchasing.AllocatorBackend {
	case config.AllocatorRedis:
		// Missing counters resume above what postgres has already issued
		allocator = cache.NewRedisDocumentNumberAllocator(redisClient, "",
			persistence.NewGormDocumentSequenceRepository(db.DB))
	default:
		allocator = persistence.NewGormDocumentSequenceRepository(db.DB)
	}

	// Purchasing
	meter := meterProvider.Meter(instrumentationName)
	metrics, err := telemetry.NewPurchasingMetrics(telemetry.PurchasingMetricsConfig{Meter: meter, Logger: log})
	if err != nil {
		return fmt.Errorf("initialize purchasing metrics: %w", err)
	}

	orders := persistence.NewGormPurchaseOrderRepository(db.DB)
	format := purchasing.DefaultNumberFormat()
	format.PadWidth = cfg.Purchasing.NumberPadWidth
	format = format.WithPrefix(purchasing.DocumentTypePurchase, cfg.Purchasing.PrefixPurchase)

	purchaseService, err := purchasingapp.NewPurchaseService(purchasingapp.PurchaseServiceDeps{
		Allocator:    allocator,
		Orders:       orders,
		Accounts:     persistence.NewGormSettlementAccountRepository(db.DB),
		Payments:     persistence.NewGormPaymentRecorder(db.DB),
		NumberFormat: &format,
	})
	if err != nil {
		return err
	}

	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewPurchaseAuditHandler(log))
	if err := eventBus.Start(ctx); err != nil {
		return fmt.Errorf("start event bus: %w", err)
	}
	defer shutdown(log, "event bus", eventBus.Stop)

	dispatcherOpts := []purchasingapp.DispatcherOption{
		purchasingapp.WithDispatcherLogger(log),
		purchasingapp.WithJobTimeout(cfg.Purchasing.PaymentTimeout),
	}
	if workers := cfg.Purchasing.SideEffectWorkers; workers > 0 {
		dispatcher := purchasingapp.NewAsyncDispatcher(workers, cfg.Purchasing.SideEffectQueue, dispatcherOpts...)
		defer shutdown(log, "side effect dispatcher", dispatcher.Close)
		purchaseService.SetDispatcher(dispatcher)
	} else {
		purchaseService.SetDispatcher(purchasingapp.NewInlineDispatcher(dispatcherOpts...))
	}
	purchaseService.SetEventPublisher(eventBus)
	purchaseService.SetMetrics(metrics)
	purchaseService.SetLogger(log)
	purchaseService.SetTracer(tracerProvider.Tracer(instrumentationName))

	if cfg.Purchasing.ReconcileEnabled {
		var locker shared.DistributedLocker
		if redisClient != nil {
			locker = cache.NewRedisSweepLocker(redisClient)
		}
		reconciler := purchasingapp.NewOrphanReconciler(orders, locker, purchasingapp.ReconcilerConfig{
			Interval:    cfg.Purchasing.ReconcileInterval,
			GracePeriod: cfg.Purchasing.OrphanGracePeriod,
			BatchSize:   cfg.Purchasing.ReconcileBatchSize,
			LockTTL:     cfg.Purchasing.ReconcileLockTTL,
		}, log)
		reconciler.SetEventPublisher(eventBus)
		reconciler.SetMetrics(metrics)
		if err := reconciler.Start(ctx); err != nil {
			return fmt.Errorf("start orphan reconciler: %w", err)
		}
		defer shutdown(log, "orphan reconciler", reconciler.Stop)
	}

	// HTTP
	engine := router.New(router.Deps{
		Config:         cfg,
		Logger:         log,
		Meter:          meter,
		TracingEnabled: tracerProvider.IsEnabled(),
		Identity: middleware.IdentityConfig{
			JWTService:   auth.NewJWTService(cfg.JWT),
			AllowHeaders: cfg.App.IsDevelopment() && !cfg.JWT.Required,
			Logger:       log,
		},
		Purchases: handler.NewPurchaseOrderHandler(purchaseService),
		Health:    handler.NewHealthHandler(db, cfg.App.Version),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case sig := <-quit:
		log.Info("Shutting down server", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("Server exited gracefully")
	return nil
}

// shutdown runs a component's stop function with a bounded context and logs
// failures; it is meant to be deferred.
func shutdown(log *zap.Logger, name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := stop(ctx); err != nil {
		log.Error("Error stopping "+name, zap.Error(err))
	}
}

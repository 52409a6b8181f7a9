package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appaudit "github.com/vsla/backend/internal/application/audit"
	appgovernance "github.com/vsla/backend/internal/application/governance"
	appgroup "github.com/vsla/backend/internal/application/group"
	appledger "github.com/vsla/backend/internal/application/ledger"
	apploan "github.com/vsla/backend/internal/application/loan"
	appmetrics "github.com/vsla/backend/internal/application/metrics"
	"github.com/vsla/backend/internal/domain/ledger"
	"github.com/vsla/backend/internal/domain/loan"
	"github.com/vsla/backend/internal/infrastructure/cache"
	"github.com/vsla/backend/internal/infrastructure/config"
	"github.com/vsla/backend/internal/infrastructure/coordination"
	"github.com/vsla/backend/internal/infrastructure/event"
	"github.com/vsla/backend/internal/infrastructure/logger"
	"github.com/vsla/backend/internal/infrastructure/notify"
	"github.com/vsla/backend/internal/infrastructure/persistence"
	"github.com/vsla/backend/internal/infrastructure/scheduler"
	"github.com/vsla/backend/internal/infrastructure/telemetry"
	"github.com/vsla/backend/internal/interfaces/http/handler"
	"github.com/vsla/backend/internal/interfaces/http/middleware"
	"github.com/vsla/backend/internal/interfaces/http/router"
)

// coordinatorShards bounds lock table contention; writes to distinct
// groups in the same shard still serialize independently.
const coordinatorShards = 64

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting VSLA ledger backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize OpenTelemetry tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Initialize OpenTelemetry metrics
	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	// Initialize database connection
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, logger.MapGormLogLevel(cfg.Log.Level))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Register database query tracing
	if cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:          true,
			LogFullSQL:       cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh:  cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:         "postgresql",
			WithoutVariables: !cfg.Telemetry.DBLogFullSQL,
		}, log)
		if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}

	// Initialize repositories
	groupRepo := persistence.NewGormGroupRepository(db.DB)
	memberRepo := persistence.NewGormMemberRepository(db.DB)
	txRepo := persistence.NewGormTransactionRepository(db.DB)
	loanRepo := persistence.NewGormLoanRepository(db.DB)
	assignmentRepo := persistence.NewGormOfficerAssignmentRepository(db.DB)
	auditRepo := persistence.NewGormAuditRecordRepository(db.DB)

	// Projection cache and event dedupe store share the cache backend
	cacheFactory := cache.NewFactory(cfg.Cache, cfg.Redis, cache.WithLogger(log))
	projectionCache, err := cacheFactory.CreateProjectionCache()
	if err != nil {
		log.Fatal("Failed to create projection cache", zap.Error(err))
	}
	dedupeStore, err := cacheFactory.CreateIdempotencyStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := cacheFactory.Close(); err != nil {
			log.Error("Error closing cache backend", zap.Error(err))
		}
	}()

	// Per-group write serialization
	coordinator := coordination.NewGroupCoordinator(coordinatorShards)

	// Initialize application services
	groupService := appgroup.NewGroupService(groupRepo, memberRepo, cfg.Ledger.DefaultCurrency)
	ledgerService := appledger.NewLedgerService(
		groupRepo, memberRepo, txRepo, loanRepo,
		projectionCache, coordinator,
		persistence.NewGormUnitOfWork(db.DB), log,
		appledger.Config{
			InterestMethod:   loan.InterestMethod(cfg.Ledger.InterestMethod),
			RepaymentSource:  ledger.RepaymentSourcePolicy(cfg.Ledger.RepaymentSource),
			MaxAppendRetries: cfg.Ledger.MaxAppendRetries,
		},
	)
	loanService := apploan.NewLoanService(loanRepo, txRepo, coordinator, log, apploan.Config{
		InterestMethod:  loan.InterestMethod(cfg.Ledger.InterestMethod),
		GracePeriodDays: cfg.Ledger.GracePeriodDays,
	})
	governanceService := appgovernance.NewGovernanceService(
		assignmentRepo, groupRepo, memberRepo, coordinator, log,
		appgovernance.Config{AllowDualRoles: cfg.Governance.AllowDualRoles},
	)
	auditService := appaudit.NewAuditService(auditRepo, groupRepo, ledgerService, log, appaudit.Config{
		Checklist: cfg.Audit.Checklist,
	})
	metricsService := appmetrics.NewMetricsService(
		txRepo, loanRepo, assignmentRepo, groupRepo, log,
		appmetrics.Config{
			Weights:           cfg.Metrics.Weights,
			SavingsWindowDays: cfg.Metrics.SavingsWindowDays,
		},
	)

	// Initialize event bus
	eventBus := event.NewInProcBus(log)
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	groupService.SetEventPublisher(eventBus)
	ledgerService.SetEventPublisher(eventBus)
	loanService.SetEventPublisher(eventBus)
	auditService.SetEventPublisher(eventBus)

	// Statement dispatcher: ledger events fan out to member notifications
	dispatcher := notify.NewDispatcher(notify.NewLogNotifier(log), dedupeStore, cfg.Notification, log)
	dispatcher.Start(context.Background())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		dispatcher.Stop(ctx)
	}()
	eventBus.Subscribe(dispatcher)
	log.Info("Statement dispatcher started",
		zap.Int("workers", cfg.Notification.Workers),
		zap.Strings("event_types", dispatcher.EventTypes()),
	)

	// Ledger telemetry: write counters plus a periodic loan book gauge
	if meterProvider.IsEnabled() {
		ledgerMetrics, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
			Meter:            meterProvider.Meter("vsla.ledger"),
			Logger:           log,
			LoanBookProvider: loanService,
		})
		if err != nil {
			log.Warn("Failed to initialize ledger metrics", zap.Error(err))
		} else {
			ledgerService.SetMetrics(ledgerMetrics)
			ledgerMetrics.StartPeriodicCollection(context.Background(), 5*time.Minute)
			defer ledgerMetrics.Stop()
		}
	}

	// Periodic overdue loan sweep
	if cfg.Sweep.Enabled {
		sweepScheduler := scheduler.NewSweepScheduler(scheduler.SweepSchedulerConfig{
			Enabled:  cfg.Sweep.Enabled,
			Interval: cfg.Sweep.Interval,
			Timeout:  cfg.Sweep.Timeout,
		}, loanService, log)
		if err := sweepScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start sweep scheduler", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := sweepScheduler.Stop(ctx); err != nil {
				log.Error("Error stopping sweep scheduler", zap.Error(err))
			}
		}()
		log.Info("Overdue sweep scheduler started",
			zap.Duration("interval", cfg.Sweep.Interval),
		)
	}

	// Initialize HTTP handlers
	groupHandler := handler.NewGroupHandler(groupService)
	ledgerHandler := handler.NewLedgerHandler(ledgerService)
	loanHandler := handler.NewLoanHandler(loanService)
	governanceHandler := handler.NewGovernanceHandler(governanceService)
	auditHandler := handler.NewAuditHandler(auditService)
	metricsHandler := handler.NewMetricsHandler(metricsService)
	systemHandler := handler.NewSystemHandler()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Tracing - Span per request, error marking
	// 5. Metrics - HTTP request instruments
	// 6. Security - Add security headers
	// 7. CORS - Handle cross-origin requests
	// 8. BodyLimit - Limit request body size
	// 9. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		ServiceName:   cfg.Telemetry.ServiceName,
		Enabled:       cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.Secure())

	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/healthz", healthHandler(db, log))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Group lifecycle, membership, ledger, loans, governance, audits
	// and health metrics all hang off the group resource.
	groupRoutes := router.NewDomainGroup("groups", "/groups")
	groupRoutes.POST("", groupHandler.Create)
	groupRoutes.GET("", groupHandler.List)
	groupRoutes.GET("/:id", groupHandler.Get)
	groupRoutes.PUT("/:id", groupHandler.Rename)
	groupRoutes.POST("/:id/dissolve", groupHandler.Dissolve)

	// Membership
	groupRoutes.POST("/:id/members", groupHandler.RegisterMember)
	groupRoutes.GET("/:id/members", groupHandler.ListMembers)
	groupRoutes.POST("/:id/members/:memberId/exit", groupHandler.ExitMember)

	// Ledger writes and reads
	groupRoutes.POST("/:id/transactions", ledgerHandler.Record)
	groupRoutes.GET("/:id/transactions", ledgerHandler.List)
	groupRoutes.GET("/:id/transactions/:txId", ledgerHandler.Get)
	groupRoutes.GET("/:id/balance", ledgerHandler.Balance)

	// Loan book
	groupRoutes.GET("/:id/loans", loanHandler.List)
	groupRoutes.GET("/:id/loans/:loanId", loanHandler.Get)
	groupRoutes.POST("/:id/loans/rebuild", loanHandler.Rebuild)

	// Officer rotation
	groupRoutes.POST("/:id/officers", governanceHandler.Assign)
	groupRoutes.GET("/:id/officers", governanceHandler.Roster)
	groupRoutes.GET("/:id/officers/history", governanceHandler.History)

	// Audit checklist
	groupRoutes.POST("/:id/audit", auditHandler.Start)
	groupRoutes.POST("/:id/audit/steps/:step/complete", auditHandler.CompleteStep)
	groupRoutes.GET("/:id/audit", auditHandler.GetCurrent)

	// Health metrics
	groupRoutes.GET("/:id/metrics", metricsHandler.Report)

	// Administrative operations spanning all groups
	adminRoutes := router.NewDomainGroup("admin", "/admin")
	adminRoutes.POST("/loans/sweep", loanHandler.Sweep)

	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	r.Register(groupRoutes).
		Register(adminRoutes).
		Register(systemRoutes)

	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}

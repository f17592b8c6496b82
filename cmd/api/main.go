package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davidmoltin/efiling-workflows/internal/api/rest"
	"github.com/davidmoltin/efiling-workflows/internal/api/rest/handlers"
	"github.com/davidmoltin/efiling-workflows/internal/engine"
	"github.com/davidmoltin/efiling-workflows/internal/repository/cache"
	"github.com/davidmoltin/efiling-workflows/internal/repository/postgres"
	"github.com/davidmoltin/efiling-workflows/internal/services"
	"github.com/davidmoltin/efiling-workflows/internal/websocket"
	"github.com/davidmoltin/efiling-workflows/internal/workers"
	"github.com/davidmoltin/efiling-workflows/migrations"
	"github.com/davidmoltin/efiling-workflows/pkg/auth"
	"github.com/davidmoltin/efiling-workflows/pkg/config"
	"github.com/davidmoltin/efiling-workflows/pkg/database"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/davidmoltin/efiling-workflows/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	migrate := flag.Bool("migrate", false, "Apply pending schema migrations before serving")
	flag.Parse()

	if err := run(*migrate); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(migrate bool) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log, err := logger.New(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	logger.SetDefault(log)
	log.Info("Starting e-filing workflow API",
		logger.String("version", cfg.App.Version),
		logger.String("environment", cfg.App.Environment),
	)

	m := metrics.New(prometheus.DefaultRegisterer)

	// Initialize PostgreSQL
	db, err := database.NewPostgresDB(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if migrate || cfg.Database.MigrateOnStart {
		migrator, err := database.NewMigrator(db.DB, migrations.FS, migrations.Dir, log)
		if err != nil {
			return err
		}
		err = migrator.Up()
		migrator.Close()
		if err != nil {
			return err
		}
	}

	checkers := &handlers.HealthCheckers{DB: db}
	store := postgres.NewStore(db, log)

	// Redis backs the shared template cache, the reminder ledger and the
	// notification fan-out. Without it each replica keeps its own state.
	var (
		templateCache engine.TemplateCache
		ledger        services.ReminderLedger = cache.NewMemoryReminderLedger()
		broadcaster   services.Broadcaster
		subscriber    websocket.Subscriber
	)
	if cfg.Redis.Enabled {
		redis, err := database.NewRedisClient(cfg, log)
		if err != nil {
			return fmt.Errorf("failed to initialize redis: %w", err)
		}
		defer redis.Close()

		checkers.Redis = redis
		templateCache = cache.NewTemplateCache(redis, cfg.Engine.TemplateCacheTTL)
		// A reminder claim outlives any realistic stage visit
		ledger = cache.NewRedisReminderLedger(redis, 30*24*time.Hour)
		broadcaster = redis
		subscriber = redis
	} else {
		log.Warn("Redis disabled: template cache, reminder ledger and notification stream are local to this process")
	}

	// Workflow engine
	catalog := engine.NewCatalog(store, templateCache, m, log)
	authorizer := engine.NewAuthorizer(cfg.Engine.AdminRoles)

	hub := websocket.NewHub(cfg.Notification.Channel, subscriber, websocket.MarkerFunc(store.MarkNotificationRead), log)
	if broadcaster == nil {
		broadcaster = hub
	}
	notifications, err := services.NewNotificationService(&cfg.Notification, store, broadcaster, m, log)
	if err != nil {
		return fmt.Errorf("failed to initialize notification service: %w", err)
	}
	if err := hub.Start(); err != nil {
		return fmt.Errorf("failed to start notification stream: %w", err)
	}
	defer hub.Stop()

	processor := engine.NewProcessor(store, catalog, store, authorizer, log,
		engine.WithMetrics(m),
		engine.WithPublisher(notifications),
	)

	workflowService := services.NewWorkflowService(processor, store, log)
	signatureService := services.NewSignatureService(store, cfg.Engine.ResignAuthorityRoles, log)
	slaService := services.NewSLAService(store, ledger, notifications, log)

	// Background workers
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	var slaWorker *workers.SLAReminderWorker
	if cfg.Workers.SLAReminderEnabled {
		slaWorker = workers.NewSLAReminderWorker(slaService, log, m, cfg.Workers.SLAReminderInterval, cfg.Workers.SLAReminderBatch)
		slaWorker.Start(workerCtx)
	}

	// HTTP
	h := handlers.NewHandlers(log, handlers.Services{
		Workflows:     workflowService,
		Signatures:    signatureService,
		Notifications: notifications,
	}, checkers, cfg.App.Version)
	h.Stream = websocket.NewHandler(hub, cfg.Server.AllowedOrigins)

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		// Config validation already refuses this in production
		jwtSecret = "development-secret-change-me"
		log.Warn("JWT_SECRET not set, using a development default (INSECURE)")
	}
	tokens := auth.NewJWTManager(jwtSecret, cfg.Auth.Issuer)

	router := rest.NewRouter(&cfg.Server, log, h, tokens, m, prometheus.DefaultGatherer)
	router.SetupRoutes()
	go router.RateLimiter().Cleanup(workerCtx, time.Minute)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("API server listening", logger.String("address", addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", logger.String("signal", sig.String()))

		// Stop background workers first
		if slaWorker != nil {
			slaWorker.Stop()
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			server.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}

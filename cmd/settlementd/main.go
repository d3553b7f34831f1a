package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/SaiYadav1818/settlement-core/internal/admin"
	"github.com/SaiYadav1818/settlement-core/internal/alert"
	"github.com/SaiYadav1818/settlement-core/internal/audit"
	"github.com/SaiYadav1818/settlement-core/internal/cache"
	"github.com/SaiYadav1818/settlement-core/internal/config"
	"github.com/SaiYadav1818/settlement-core/internal/domain/model"
	"github.com/SaiYadav1818/settlement-core/internal/hashing"
	"github.com/SaiYadav1818/settlement-core/internal/ingest"
	"github.com/SaiYadav1818/settlement-core/internal/metrics"
	"github.com/SaiYadav1818/settlement-core/internal/routing"
	"github.com/SaiYadav1818/settlement-core/internal/settlement"
	"github.com/SaiYadav1818/settlement-core/internal/store/postgres"
	redispkg "github.com/SaiYadav1818/settlement-core/internal/store/redis"
	"github.com/SaiYadav1818/settlement-core/internal/sweeper"
	"github.com/SaiYadav1818/settlement-core/internal/tracing"
	"github.com/SaiYadav1818/settlement-core/internal/verification"
)

const dbPoolStatsInterval = 15 * time.Second

type dbStatsProvider interface {
	Stats() sql.DBStats
}

func collectDBPoolStats(db dbStatsProvider) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("db pool stats collection panicked: %v", r)
		}
	}()
	if db == nil {
		return fmt.Errorf("db stats provider is nil")
	}

	stats := db.Stats()
	metrics.DBPoolOpen.Set(float64(stats.OpenConnections))
	metrics.DBPoolInUse.Set(float64(stats.InUse))
	metrics.DBPoolIdle.Set(float64(stats.Idle))
	metrics.DBPoolWaitCount.Set(float64(stats.WaitCount))
	return nil
}

func startDBPoolStatsPump(ctx context.Context, db dbStatsProvider, logger *slog.Logger) {
	if db == nil {
		return
	}

	ticker := time.NewTicker(dbPoolStatsInterval)

	go func() {
		defer ticker.Stop()

		if err := collectDBPoolStats(db); err != nil {
			logger.Warn("failed to collect initial db pool stats", "error", err)
		}

		for {
			select {
			case <-ctx.Done():
				logger.Info("db pool stats sampler stopped", "cause", "context_done")
				return
			case <-ticker.C:
				if err := collectDBPoolStats(db); err != nil {
					logger.Warn("failed to collect db pool stats", "error", err)
				}
			}
		}
	}()
}

func buildAlerter(cfg config.AlertConfig, logger *slog.Logger) alert.Alerter {
	var channels []alert.Alerter
	if cfg.SlackWebhookURL != "" {
		channels = append(channels, alert.NewSlackAlerter(cfg.SlackWebhookURL))
	}
	if cfg.WebhookURL != "" {
		channels = append(channels, alert.NewWebhookAlerter(cfg.WebhookURL))
	}
	return alert.NewMultiAlerter(cfg.Cooldown, logger, channels...)
}

func buildAuditSink(cfg config.RedisConfig, logger *slog.Logger) (audit.Sink, func(), error) {
	logSink := audit.NewLogSink(logger)
	if !cfg.Enabled {
		return logSink, func() {}, nil
	}

	stream, err := redispkg.NewStream(cfg.URL, cfg.AuditStream)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize redis audit stream: %w", err)
	}

	sink := audit.NewMultiSink(logSink, audit.NewStreamSink(stream, logger))
	closer := func() {
		if err := stream.Close(); err != nil {
			logger.Warn("redis stream close error", "error", err)
		}
	}
	return sink, closer, nil
}

func runHTTPServer(ctx context.Context, name string, port int, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown error", "server", name, "error", err)
		}
	}()

	logger.Info("http server listening", "server", name, "port", port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("%s server: %w", name, err)
	}
	return nil
}

func healthHandler(logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func main() {
	// Setup logger
	logLevel := slog.LevelInfo
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("starting settlementd",
		"callback_port", cfg.Server.CallbackPort,
		"admin_port", cfg.Server.AdminPort,
		"health_port", cfg.Server.HealthPort,
		"sweep_interval", cfg.Sweeper.Interval,
		"stale_threshold", cfg.Sweeper.StaleThreshold,
		"audit_stream_enabled", cfg.Redis.Enabled,
	)

	// Initialize OpenTelemetry tracing
	tracingEndpoint := ""
	if cfg.Tracing.Enabled {
		tracingEndpoint = cfg.Tracing.Endpoint
	}
	shutdownTracing, err := tracing.Init(context.Background(), "settlement-core", tracingEndpoint, cfg.Tracing.Insecure)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()
	if cfg.Tracing.Enabled {
		logger.Info("tracing enabled", "endpoint", cfg.Tracing.Endpoint)
	}

	// Connect to PostgreSQL
	db, err := postgres.New(postgres.Config{
		URL:             cfg.DB.URL,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	if err := db.RunMigrations(cfg.DB.MigrationsDir); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Repositories
	txnRepo := postgres.NewTransactionRepo(db)
	ledgerRepo := postgres.NewLedgerRepo(db)
	merchantRepo := postgres.NewMerchantRepo(db)

	// Audit sinks
	auditSink, closeAudit, err := buildAuditSink(cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to initialize audit sink", "error", err, "redis_url", cfg.Redis.URL)
		os.Exit(1)
	}
	defer closeAudit()

	alerter := buildAlerter(cfg.Alert, logger)

	// Verification and routing share one merchant directory cache.
	merchantCache := cache.NewLRU[string, model.Merchant](cfg.Cache.MerchantCapacity, cfg.Cache.MerchantTTL)
	resolver := verification.NewDirectoryResolver(merchantRepo, merchantCache, hashing.Secret{
		Prefix: cfg.Gateway.SecretKey,
		Suffix: cfg.Gateway.SecretSalt,
	})
	guard := verification.NewGuard(resolver, auditSink, alerter, logger)
	router := routing.NewRouter(merchantRepo, ledgerRepo, merchantCache, auditSink, logger)
	svc := settlement.NewService(guard, txnRepo, router, logger)

	swp := sweeper.New(txnRepo, cfg.Sweeper.StaleThreshold, cfg.Sweeper.Interval, alerter, auditSink, logger)

	callbackServer := ingest.NewServer(svc, logger)
	adminServer := admin.NewServer(swp, txnRepo, merchantRepo, logger)

	// Context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runHTTPServer(gCtx, "callback", cfg.Server.CallbackPort, callbackServer.Handler(), logger)
	})
	g.Go(func() error {
		return runHTTPServer(gCtx, "admin", cfg.Server.AdminPort, adminServer.Handler(), logger)
	})
	g.Go(func() error {
		return runHTTPServer(gCtx, "health", cfg.Server.HealthPort, healthHandler(logger), logger)
	})
	g.Go(func() error {
		return swp.RunPeriodic(gCtx)
	})

	startDBPoolStatsPump(gCtx, db.DB, logger)

	// Signal handler
	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("settlementd exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("settlementd shut down gracefully")
}

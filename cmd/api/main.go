package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"washhub/internal/api"
	"washhub/internal/config"
	"washhub/internal/database"
	"washhub/internal/domain"
	"washhub/internal/events"
	"washhub/internal/export"
	"washhub/internal/google"
	"washhub/internal/logging"
	"washhub/internal/metrics"
	"washhub/internal/models"
	"washhub/internal/notifier"
	"washhub/internal/repository"
	"washhub/internal/scheduler"
	"washhub/internal/service"
	"washhub/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	eventStore := initEventStore(redisClient, &logger)

	ledgerWorker := initLedgerWorker(ctx, cfg, db, redisClient, &logger)
	telegramNotifier := initNotifier(cfg, &logger)

	eventBus := events.NewEventBus()

	var syncWorker domain.SyncWorker
	if ledgerWorker != nil {
		syncWorker = ledgerWorker
	}
	var notif domain.Notifier
	if telegramNotifier != nil {
		notif = telegramNotifier
	}

	bookingService := service.NewBookingService(db, eventBus, syncWorker, &logger)
	washerService := service.NewWasherService(db, eventBus, notif, &logger)

	assigner := scheduler.NewAssigner(db, eventBus, syncWorker, notif, &logger,
		cfg.Scheduler.StaleAfter(), cfg.Scheduler.Interval(), cfg.Scheduler.BatchSize)
	if cfg.Scheduler.Enabled {
		assigner.Start(ctx)
	} else {
		logger.Info().Msg("Auto-assignment scheduler disabled, relying on the job trigger endpoint")
	}

	startMetrics(ctx, cfg, &logger)

	exporter := export.NewExporter(db, cfg.Exports.Path, &logger)
	httpServer := api.NewHTTPServer(cfg.API, cfg.Stripe, cfg.Scheduler,
		bookingService, washerService, assigner, exporter, eventStore, &logger)
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("create database directory")
		return err
	}
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("create exports directory")
		return err
	}
	return nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initEventStore wires webhook deduplication: redis when available, with
// an in-memory fallback that also covers redis outages at runtime.
func initEventStore(redisClient *redis.Client, logger *zerolog.Logger) domain.EventStore {
	ttl := time.Duration(models.DefaultEventTTL) * time.Second
	fallback := repository.NewMemoryEventStore(ttl)
	if redisClient == nil {
		return fallback
	}
	return repository.NewFailoverEventStore(repository.NewRedisEventStore(redisClient, ttl), fallback, logger)
}

func initLedgerWorker(ctx context.Context, cfg *config.Config, db *database.DB,
	redisClient *redis.Client, logger *zerolog.Logger) *worker.LedgerWorker {
	if cfg.Google.CredentialsFile == "" || cfg.Google.LedgerSpreadsheetID == "" {
		logger.Info().Msg("google ledger not configured, sync worker disabled")
		return nil
	}

	ledger, err := google.NewLedgerService(
		cfg.Google.CredentialsFile,
		cfg.Google.LedgerSpreadsheetID,
		cfg.Google.LedgerSheetName,
	)
	if err != nil {
		logger.Warn().Err(err).Msg("google ledger init failed, continuing without sync")
		return nil
	}
	if err := ledger.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google ledger connection test failed, continuing without sync")
		return nil
	}
	serviceAccountEmail, _ := ledger.GetServiceAccountEmail(cfg.Google.CredentialsFile)
	logger.Info().Str("service_account", serviceAccountEmail).Msg("google ledger connected")

	ledgerWorker := worker.NewLedgerWorker(db, ledger, redisClient, worker.RetryPolicy{},
		cfg.Google.WorkerPollInterval(), cfg.Google.WorkerBatchSize, logger)
	go ledgerWorker.Start(ctx)
	return ledgerWorker
}

func initNotifier(cfg *config.Config, logger *zerolog.Logger) *notifier.TelegramNotifier {
	if !cfg.Telegram.Enabled {
		return nil
	}

	bot, err := notifier.NewBot(cfg.Telegram.BotToken)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return nil
	}

	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifier connected")
	return notifier.NewTelegramNotifier(bot, cfg.Telegram.OpsChatID, logger)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kursadbilgin/campaign-dispatch/internal/activity"
	"github.com/kursadbilgin/campaign-dispatch/internal/config"
	"github.com/kursadbilgin/campaign-dispatch/internal/infra/postgresql"
	"github.com/kursadbilgin/campaign-dispatch/internal/observability"
	"github.com/kursadbilgin/campaign-dispatch/internal/provider"
	"github.com/kursadbilgin/campaign-dispatch/internal/queue"
	"github.com/kursadbilgin/campaign-dispatch/internal/ratelimit"
	"github.com/kursadbilgin/campaign-dispatch/internal/repository"
	"github.com/kursadbilgin/campaign-dispatch/internal/service"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// A single job in flight keeps provider calls serialized behind the throttle.
	consumerPrefetch = 1
	shutdownTimeout  = 10 * time.Second
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck
	logger = logger.With(zap.String("service", "campaign-worker"))

	if err := run(cfg, logger); err != nil {
		logger.Fatal("campaign worker stopped with error", zap.Error(err))
	}
}

// run wires the dependencies and blocks until shutdown. Setup failures are
// returned so deferred cleanup runs before main exits.
func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	broker, err := queue.NewRabbitMQ(cfg.RabbitMQURL, cfg.DispatchQueue)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	defer broker.Close() //nolint:errcheck

	sender, err := provider.NewWhatsAppProvider(cfg.WhatsAppAPIURL, cfg.WhatsAppAccessToken, cfg.WhatsAppLanguageCode)
	if err != nil {
		return fmt.Errorf("whatsapp provider initialization failed: %w", err)
	}

	metrics := observability.NewMetrics()
	campaignRepo := repository.NewGormCampaignRepo(db)

	campaigns, err := service.NewCampaignService(
		campaignRepo,
		queue.NewRabbitMQPublisher(broker),
		cfg.DispatchQueue,
		logger.Named("campaign"),
	)
	if err != nil {
		return fmt.Errorf("campaign service initialization failed: %w", err)
	}
	campaigns.SetMetrics(metrics)

	dispatcher, err := service.NewDispatchService(
		campaignRepo,
		campaigns,
		queue.NewRabbitMQConsumer(broker, consumerPrefetch, logger.Named("consumer")),
		cfg.DispatchQueue,
		sender,
		ratelimit.NewSpacingThrottle(cfg.DispatchMinInterval),
		activity.NewRepositoryRecorder(repository.NewGormActivityRepo(db)),
		logger.Named("dispatch"),
	)
	if err != nil {
		return fmt.Errorf("dispatch service initialization failed: %w", err)
	}
	dispatcher.SetMetrics(metrics)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dispatcher.Start(groupCtx)
	})

	g.Go(func() error {
		logger.Info("metrics server started", zap.Int("port", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	logger.Info("campaign worker started",
		zap.String("queue", cfg.DispatchQueue),
		zap.Duration("minInterval", cfg.DispatchMinInterval),
	)

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("campaign worker stopped")
	return nil
}

package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
	"github.com/kursadbilgin/campaign-dispatch/internal/config"
	"github.com/kursadbilgin/campaign-dispatch/internal/handler"
	"github.com/kursadbilgin/campaign-dispatch/internal/infra/postgresql"
	"github.com/kursadbilgin/campaign-dispatch/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/campaign-dispatch/internal/infra/redis"
	"github.com/kursadbilgin/campaign-dispatch/internal/observability"
	"github.com/kursadbilgin/campaign-dispatch/internal/queue"
	"github.com/kursadbilgin/campaign-dispatch/internal/repository"
	"github.com/kursadbilgin/campaign-dispatch/internal/service"
	"github.com/kursadbilgin/campaign-dispatch/internal/transport"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

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
	logger = logger.With(zap.String("service", "campaign-api"))

	if err := run(cfg, logger); err != nil {
		logger.Fatal("campaign api stopped with error", zap.Error(err))
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

	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	scheduleLock, err := infraredis.NewScheduleLock(rdb, cfg.ScheduleLockTTL)
	if err != nil {
		return fmt.Errorf("schedule lock initialization failed: %w", err)
	}

	broker, err := queue.NewRabbitMQ(cfg.RabbitMQURL, cfg.DispatchQueue)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	publisher := queue.NewRabbitMQPublisher(broker)
	defer publisher.Close() //nolint:errcheck

	metrics := observability.NewMetrics()

	campaigns, err := service.NewCampaignService(
		repository.NewGormCampaignRepo(db),
		publisher,
		cfg.DispatchQueue,
		logger.Named("campaign"),
	)
	if err != nil {
		return fmt.Errorf("campaign service initialization failed: %w", err)
	}
	campaigns.SetLocker(scheduleLock)
	campaigns.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		AppName:               "campaign-dispatch",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger.Named("http")),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, sqlDB, rdb, broker)
	if err := handler.RegisterCampaignRoutes(app, campaigns); err != nil {
		return fmt.Errorf("route registration failed: %w", err)
	}

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("http server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("campaign api started",
		zap.Int("port", cfg.APIPort),
		zap.String("queue", cfg.DispatchQueue),
	)

	if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info("campaign api stopped")
	return nil
}

// The relay command runs outbox relay workers without the HTTP API, for
// deployments that scale event delivery independently of request serving.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"formvault/internal/config"
	"formvault/internal/database"
	"formvault/internal/database/migration"
	"formvault/internal/docstore"
	"formvault/internal/outbox"
	"formvault/internal/repository/postgres"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	mongoClient, err := docstore.NewMongoClient(ctx, cfg.Mongo)
	if err != nil {
		logger.Fatal("failed to connect to document store", zap.Error(err))
	}
	defer mongoClient.Disconnect(context.Background())
	store := docstore.NewMongoStore(mongoClient, cfg.Mongo.Database)

	reg := prometheus.NewRegistry()
	relayMetrics, err := outbox.NewMetrics(reg)
	if err != nil {
		logger.Fatal("failed to register relay metrics", zap.Error(err))
	}

	relay := outbox.NewRelay(db, postgres.NewOutboxPostgres(), outbox.NewMirrorRegistry(store), cfg.Relay, logger.Named("relay"), relayMetrics)

	// small ops surface: liveness and metrics only
	app := fiber.New()
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("ops server failed", zap.Error(err))
		}
	}()

	relay.Run(ctx)

	if err := app.Shutdown(); err != nil {
		logger.Error("ops server shutdown failed", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

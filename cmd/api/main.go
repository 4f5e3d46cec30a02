package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"formvault/internal/cache"
	"formvault/internal/config"
	"formvault/internal/database"
	"formvault/internal/database/migration"
	"formvault/internal/docstore"
	handlers "formvault/internal/http/handler"
	"formvault/internal/http/middleware"
	"formvault/internal/otel"
	"formvault/internal/outbox"
	"formvault/internal/repository/postgres"
	"formvault/internal/service"
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

	shutdownTracing, err := otel.Init(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracing(context.Background())

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

	var stateCache service.StateCache
	if cfg.Redis.Addr != "" {
		stateCache = cache.NewDocumentCache(cache.NewClient(cfg.Redis), cfg.Redis)
	}

	docRepo := postgres.NewDocumentPostgres()
	versionRepo := postgres.NewVersionPostgres()
	outboxRepo := postgres.NewOutboxPostgres()
	orderRepo := postgres.NewOrderPostgres()
	recorder := outbox.NewRecorder(outboxRepo)

	reg := prometheus.NewRegistry()

	relayMetrics, err := outbox.NewMetrics(reg)
	if err != nil {
		logger.Fatal("failed to register relay metrics", zap.Error(err))
	}
	relay := outbox.NewRelay(db, outboxRepo, outbox.NewMirrorRegistry(store), cfg.Relay, logger.Named("relay"), relayMetrics)

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		relay.Run(ctx)
	}()

	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		logger.Fatal("failed to register http metrics", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(logger.Named("http")))
	app.Use(promMiddleware.Handler())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	handlers.RegisterRoutes(app, db, handlers.Services{
		Documents: service.NewDocumentService(db, docRepo, versionRepo, recorder, store, stateCache, logger.Named("documents")),
		Versions:  service.NewVersionService(db, docRepo, versionRepo, recorder, stateCache, logger.Named("versions")),
		Orders:    service.NewOrderService(db, orderRepo, docRepo, versionRepo, recorder, logger.Named("orders")),
		Outbox:    service.NewOutboxService(db, outboxRepo),
	})

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("server shutdown failed", zap.Error(err))
		}
	}()

	addr := ":" + cfg.Port
	logger.Info("server starting", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	<-relayDone
	logger.Info("shutdown complete")
}

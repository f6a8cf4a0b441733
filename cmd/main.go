package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	mqcontracts "siteops/contracts/mq"
	"siteops/internal/config"
	"siteops/internal/handler"
	"siteops/internal/httpserver"
	"siteops/internal/inventory"
	"siteops/internal/mqhandler"
	"siteops/internal/projectregistry"
	"siteops/internal/repository"
	"siteops/internal/scheduling"
	"siteops/internal/workerpool"
	"siteops/pkg/db"
	"siteops/pkg/logger"
	"siteops/pkg/mq"
	"siteops/pkg/redis"
	"siteops/pkg/util"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting scheduler service...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("mq_url", cfg.MQ.URL),
	)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := repository.Migrate(migrateCtx, dbConn, log); err != nil {
		migrateCancel()
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	migrateCancel()

	// Redis
	rdb := redis.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	// Repositories
	taskRepo := repository.NewTaskRepository(dbConn, log)
	workerRepo := repository.NewWorkerRepository(dbConn, log)
	stockRepo := repository.NewStockRepository(dbConn, log)
	projectRepo := repository.NewProjectRepository(dbConn, log)

	// Worker pool and project registry warmed from the persisted mirrors
	pool := workerpool.NewPool(log)
	registry := projectregistry.NewRegistry(log)
	warmCtx, warmCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := pool.Warm(warmCtx, workerRepo); err != nil {
		warmCancel()
		log.Fatal("Failed to warm worker pool", zap.Error(err))
	}
	if err := registry.Warm(warmCtx, projectRepo); err != nil {
		warmCancel()
		log.Fatal("Failed to warm project registry", zap.Error(err))
	}
	warmCancel()

	// Availability checker over the redis stock cache
	stockProvider := inventory.NewRedisStockProvider(rdb, stockRepo, log)
	checker := inventory.NewChecker(stockProvider, log)

	// MQ publisher for scheduling events
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	svc := scheduling.NewService(taskRepo, pool, publisher, checker, log)

	// MQ consumers for the roster and stock feeds
	deduper := util.NewDeduper(rdb, 24*time.Hour, log)
	rosterHandler := mqhandler.NewRosterUpdatedHandler(workerRepo, pool, log)
	stockHandler := mqhandler.NewStockChangedHandler(stockRepo, stockProvider, deduper, log)
	projectHandler := mqhandler.NewProjectRegistryHandler(projectRepo, registry, log)

	rosterConsumer, err := mq.NewConsumer(cfg.MQ.URL, "scheduler.roster.q", mqcontracts.RoutingKeyRosterUpdated, log)
	if err != nil {
		log.Fatal("Failed to init roster consumer", zap.Error(err))
	}
	defer rosterConsumer.Close()
	rosterConsumer.SetHandler(rosterHandler.Handle)

	go func() {
		if err := rosterConsumer.StartConsuming(); err != nil {
			log.Fatal("Roster consumer failed", zap.Error(err))
		}
	}()

	stockConsumer, err := mq.NewConsumer(cfg.MQ.URL, "scheduler.stock.q", mqcontracts.RoutingKeyStockChanged, log)
	if err != nil {
		log.Fatal("Failed to init stock consumer", zap.Error(err))
	}
	defer stockConsumer.Close()
	stockConsumer.SetHandler(stockHandler.Handle)

	go func() {
		if err := stockConsumer.StartConsuming(); err != nil {
			log.Fatal("Stock consumer failed", zap.Error(err))
		}
	}()

	projectConsumer, err := mq.NewConsumer(cfg.MQ.URL, "scheduler.project.q", mqcontracts.RoutingKeyProjectRegistry, log)
	if err != nil {
		log.Fatal("Failed to init project consumer", zap.Error(err))
	}
	defer projectConsumer.Close()
	projectConsumer.SetHandler(projectHandler.Handle)

	go func() {
		if err := projectConsumer.StartConsuming(); err != nil {
			log.Fatal("Project consumer failed", zap.Error(err))
		}
	}()

	// HTTP server
	handlers := httpserver.Handlers{
		Tasks:          handler.NewTaskHandler(svc, registry, log),
		Assignments:    handler.NewAssignmentHandler(svc, log),
		ChangeRequests: handler.NewChangeRequestHandler(svc, log),
		Workers:        handler.NewWorkerHandler(pool, log),
	}
	router := httpserver.NewRouter(handlers, cfg.JWT.Secret, log, dbConn, publisher)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("Scheduler service is fully initialized and running",
		zap.String("http_port", cfg.Server.Port),
		zap.String("mq_queue_roster", "scheduler.roster.q"),
		zap.String("mq_queue_stock", "scheduler.stock.q"),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down scheduler service gracefully...")

	rosterConsumer.Stop()
	stockConsumer.Stop()
	projectConsumer.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("Scheduler service shutdown complete")
}

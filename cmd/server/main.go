package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/zjoart/go-databundle-store/cmd/routes"
	"github.com/zjoart/go-databundle-store/internal/reconcile"
	"github.com/zjoart/go-databundle-store/internal/schema"
	"github.com/zjoart/go-databundle-store/pkg/config"
	"github.com/zjoart/go-databundle-store/pkg/database"
	"github.com/zjoart/go-databundle-store/pkg/events"
	"github.com/zjoart/go-databundle-store/pkg/logger"
	"github.com/zjoart/go-databundle-store/pkg/metrics"
)

func main() {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", logger.WithError(err))
	}
	metrics.Init()

	database.Connect(cfg.DBUrl)
	if err := schema.Migrate(database.DB); err != nil {
		logger.Fatal("Failed to migrate database", logger.WithError(err))
	}

	var (
		queue      events.Queue
		localQueue *events.LocalQueue
	)
	if cfg.RedisURL != "" {
		redisClient := events.NewRedisClient(cfg.RedisURL, cfg.RedisPassword)
		defer redisClient.Close()
		queue = redisClient
	} else {
		logger.Warn("REDIS_URL not set, webhooks are processed in-process and lost on restart")
		localQueue = events.NewLocalQueue(1024)
		queue = localQueue
	}

	svc, err := routes.NewServices(database.DB, cfg, queue)
	if err != nil {
		logger.Fatal("Failed to build services", logger.WithError(err))
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	// start background worker
	worker := reconcile.NewWebhookWorker(queue, svc.Reconciler, cfg.WebhookWorkers)
	worker.Start(workerCtx)

	if err := svc.Sweeper.Start(cfg.SweepSchedule); err != nil {
		logger.Fatal("Invalid sweep schedule", logger.Merge(logger.WithError(err), logger.Fields{"schedule": cfg.SweepSchedule}))
	}

	r := mux.NewRouter()
	handler := routes.RegisterRoutes(r, cfg, svc)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ProviderTimeout + 15*time.Second,
	}

	go func() {
		logger.Info("Server starting", logger.Fields{"port": cfg.Port, "env": cfg.Env})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Could not listen", logger.Fields{"port": cfg.Port, "error": err.Error()})
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	server.Shutdown(ctx)

	<-svc.Sweeper.Stop().Done()
	if localQueue != nil {
		// no new webhooks arrive once the server is down; let the workers finish the backlog
		if pending := localQueue.Drain(ctx); pending > 0 {
			logger.Error("CRITICAL: acknowledged webhooks dropped at shutdown", logger.Fields{"pending": pending})
		}
	}
	stopWorkers()
	worker.Wait()
	logger.Info("Server gracefully shut down")
}

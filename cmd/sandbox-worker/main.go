package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentdock/backend/internal/config"
	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/infrastructure/db"
	"github.com/agentdock/backend/internal/infrastructure/logger"
	"github.com/agentdock/backend/internal/infrastructure/queue"
	"github.com/agentdock/backend/internal/infrastructure/sandbox"
	"github.com/agentdock/backend/internal/worker"
	"gorm.io/gorm"
)

func main() {
	configPath := flag.String("config", "", "path to sandbox-worker.yaml")
	flag.Parse()

	cfg, err := worker.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(config.LoggerConfig{Level: cfg.LogLevel, Encoding: "json"})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var database *gorm.DB
	var repo ports.QueueRepository
	if cfg.QueueBackend == "postgres" {
		database, err = db.OpenDSN(cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		repo = db.NewQueueRepository(database, log.Named("queue"))
	}

	channels, err := queue.Open(ctx, cfg.QueueConfig(), repo)
	if err != nil {
		log.Fatalf("failed to open queues: %v", err)
	}

	runner := sandbox.NewShellRunner(cfg.Shell, cfg.CommandTimeout)
	processor := worker.NewProcessor(runner, cfg.ProjectsDir, log.Named("processor"))
	w := worker.New(channels.Commands, channels.Responses, processor, *cfg, log.Named("worker"))

	app := worker.NewServer(w, processor, cfg.Shell)
	go func() {
		if err := app.Listen(cfg.ListenAddr); err != nil {
			log.Errorf("http server stopped: %v", err)
		}
	}()

	log.Infow("sandbox worker started",
		"queue_backend", cfg.QueueBackend,
		"command_queue", cfg.CommandQueue,
		"response_queue", cfg.ResponseQueue,
		"listen", cfg.ListenAddr,
	)

	w.Run(ctx)

	log.Info("shutting down sandbox worker...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Errorf("server forced to shutdown: %v", err)
	}
	if err := db.Close(database); err != nil {
		log.Errorf("failed to close database connection: %v", err)
	}
}

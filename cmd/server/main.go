package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/agentdock/backend/internal/config"
	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/core/services"
	"github.com/agentdock/backend/internal/domain"
	"github.com/agentdock/backend/internal/infrastructure/anchor"
	"github.com/agentdock/backend/internal/infrastructure/browser"
	"github.com/agentdock/backend/internal/infrastructure/db"
	"github.com/agentdock/backend/internal/infrastructure/llm"
	"github.com/agentdock/backend/internal/infrastructure/logger"
	"github.com/agentdock/backend/internal/infrastructure/metrics"
	"github.com/agentdock/backend/internal/infrastructure/queue"
	"github.com/agentdock/backend/internal/infrastructure/remote"
	"github.com/agentdock/backend/internal/infrastructure/sandbox"
	"github.com/agentdock/backend/internal/infrastructure/vector"
	transporthttp "github.com/agentdock/backend/internal/transport/http"
	httpmw "github.com/agentdock/backend/internal/transport/http/middleware"
	"github.com/agentdock/backend/internal/worker"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = "config/config.yaml"
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = "../config/config.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	var database *gorm.DB
	if cfg.Database.Host != "" {
		database, err = db.NewPostgresConnection(cfg.Database)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		log.Info("database connection established")

		if err := db.RunMigrations(database); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		log.Info("database migrations completed")
	} else if cfg.Queue.Backend == "postgres" {
		log.Fatal("queue backend postgres needs database.host")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	var background sync.WaitGroup

	// Queue channels
	var queueRepo ports.QueueRepository
	if database != nil {
		queueRepo = db.NewQueueRepository(database, log.Named("queue"))
	}
	channels, err := queue.Open(baseCtx, cfg.Queue, queueRepo)
	if err != nil {
		log.Fatalf("failed to open queues: %v", err)
	}

	// Executor backends
	var local ports.CommandRunner
	if cfg.Executor.Container != "" {
		local = sandbox.NewDockerRunner(cfg.Executor.Container, cfg.Executor.CommandTimeout)
	} else {
		local = sandbox.NewShellRunner("bash", cfg.Executor.CommandTimeout)
	}
	backends := services.ExecutorBackends{
		Local:      local,
		Correlator: services.NewQueueCorrelator(channels.Commands, channels.Responses, cfg.Queue, log.Named("correlator"), m),
	}
	var fileWriter ports.FileWriter
	if cfg.Executor.SSH.Host != "" {
		sshClient := remote.NewSSHClient(remote.FromConfig(cfg.Executor.SSH))
		backends.SSH = sshClient
		fileWriter = remote.NewSFTPWriter(sshClient)
	}
	defaultBackend, ok := domain.ParseExecutorBackend(cfg.Executor.Backend)
	if !ok {
		log.Fatalf("unknown executor backend %q", cfg.Executor.Backend)
	}
	executor := services.NewCommandExecutor(backends, defaultBackend, cfg.Executor.ProjectsDir, log.Named("executor"), m)

	// Journal
	var journal ports.JournalRepository
	if database != nil && cfg.Features.EnableJournal {
		journal = db.NewJournalRepository(database, log.Named("journal"))
		cleaner := services.NewJournalCleaner(journal, cfg.Features.JournalRetention, log.Named("journal"))
		background.Add(1)
		go func() {
			defer background.Done()
			cleaner.Run(baseCtx)
		}()
	}

	// Model clients
	llmClient := llm.NewClient(cfg.LLM)
	embedder, err := llm.NewCachedEmbedder(llmClient, cfg.LLM.CacheSize)
	if err != nil {
		log.Fatalf("failed to build embedding cache: %v", err)
	}
	taskModel := cfg.TaskLoop.Model
	if taskModel == "" {
		cfg.TaskLoop.Model = cfg.LLM.Model
		taskModel = cfg.LLM.Model
	}
	driver := services.NewTaskLoopDriver(executor, llmClient, journal, cfg.TaskLoop, log.Named("task_loop"), m)

	// Browser fan-out
	anchorClient, err := anchor.NewClient(cfg.Anchor, log.Named("anchor"))
	if err != nil {
		log.Fatalf("failed to build browser provider: %v", err)
	}
	collector := browser.NewCollector(browser.DialCDP, llmClient, cfg.LLM.Model, cfg.Browser, log.Named("collector"))
	sessions := services.NewSessionStore(cfg.Session, m)
	background.Add(1)
	go func() {
		defer background.Done()
		sessions.Run(baseCtx)
	}()
	relay := services.NewStreamingRelay(log.Named("relay"), m)
	fanout := services.NewFanOutManager(baseCtx, sessions, anchorClient, collector, relay, cfg.Browser, log.Named("fanout"), m)
	jobs := services.NewJobTracker()

	// Memory index
	var memory ports.MemoryService
	if cfg.Memory.Enabled {
		if database == nil {
			log.Warn("memory index disabled: no database configured")
		} else {
			index, err := vector.NewStore(cfg.Memory.PersistPath, embedder)
			if err != nil {
				log.Fatalf("failed to open memory index: %v", err)
			}
			memory = services.NewMemoryService(db.NewMemoryRepository(database, log.Named("memory")), index, embedder, cfg.Memory, log.Named("memory"))
		}
	}

	publisher := services.NewDocPublisher(fileWriter, executor, cfg.Executor.ProjectsDir, log.Named("publisher"))
	orchestrator := services.NewOrchestrator(fanout, publisher, log.Named("orchestrator"))

	// Embedded sandbox worker for single-process deployments
	if cfg.Queue.Backend == "memory" {
		wcfg := worker.Config{
			QueueBackend:      "memory",
			CommandQueue:      cfg.Queue.CommandQueue,
			ResponseQueue:     cfg.Queue.ResponseQueue,
			ProjectsDir:       cfg.Executor.ProjectsDir,
			Shell:             "bash",
			PollInterval:      time.Second,
			VisibilityTimeout: cfg.Queue.VisibilityTimeout,
			CommandTimeout:    cfg.Executor.CommandTimeout,
		}
		wcfg.SetDefaults()
		processor := worker.NewProcessor(local, wcfg.ProjectsDir, log.Named("worker"))
		w := worker.New(channels.Commands, channels.Responses, processor, wcfg, log.Named("worker"))
		background.Add(1)
		go func() {
			defer background.Done()
			w.Run(baseCtx)
		}()
		log.Info("embedded sandbox worker started")
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		ErrorHandler:          httpmw.ErrorHandler(log),
		DisableStartupMessage: true,
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	allowedOrigins := "*"
	if len(cfg.Auth.AllowedOrigins) > 0 {
		allowedOrigins = strings.Join(cfg.Auth.AllowedOrigins, ",")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key, " + cfg.Features.RequestIDHeader,
		AllowMethods: "GET, POST, HEAD, DELETE",
	}))

	app.Use(httpmw.RequestID(cfg.Features.RequestIDHeader))
	if cfg.Features.EnableRequestLogging {
		app.Use(httpmw.AccessLog(log))
	}

	transporthttp.SetupRoutes(app, transporthttp.RouterConfig{
		Config:       cfg,
		Logger:       log,
		Gatherer:     registry,
		TaskLoop:     driver,
		FanOut:       fanout,
		Relay:        relay,
		Jobs:         jobs,
		Orchestrator: orchestrator,
		Memory:       memory,
		Journal:      journal,
		BaseCtx:      baseCtx,
		Background:   &background,
	})

	go func() {
		if err := app.Listen(cfg.Server.Address()); err != nil {
			log.Fatalf("server failed to start: %v", err)
		}
	}()
	log.Infof("server started on %s (executor=%s, queue=%s, model=%s)", cfg.Server.Address(), defaultBackend, cfg.Queue.Backend, taskModel)

	gracefulShutdown(app, database, log, cancelBase, &background, fanout)
}

func gracefulShutdown(app *fiber.App, database *gorm.DB, log *logger.Logger, cancelBase context.CancelFunc, background *sync.WaitGroup, fanout services.FanOutManager) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Errorf("server forced to shutdown: %v", err)
	}

	// release remote browsers before background work is cancelled
	if err := fanout.EndAllSessions(ctx); err != nil {
		log.Warnf("failed to end browser sessions: %v", err)
	}

	cancelBase()
	done := make(chan struct{})
	go func() {
		background.Wait()
		fanout.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn("background work did not finish before the shutdown deadline")
	}

	if err := db.Close(database); err != nil {
		log.Errorf("failed to close database connection: %v", err)
	}

	log.Info("server exited gracefully")
}

package http

import (
	"context"
	"sync"

	"github.com/agentdock/backend/internal/config"
	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/core/services"
	"github.com/agentdock/backend/internal/infrastructure/logger"
	"github.com/agentdock/backend/internal/transport/http/dto"
	"github.com/agentdock/backend/internal/transport/http/handlers"
	httpmw "github.com/agentdock/backend/internal/transport/http/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	Config   *config.Config
	Logger   *logger.Logger
	Gatherer prometheus.Gatherer

	TaskLoop     ports.TaskLoopDriver
	FanOut       ports.FanOutManager
	Relay        ports.StreamingRelay
	Jobs         ports.JobTracker
	Orchestrator ports.Orchestrator
	// optional
	Memory  ports.MemoryService
	Journal ports.JournalRepository

	// BaseCtx bounds background work started by handlers; Background
	// tracks it for shutdown.
	BaseCtx    context.Context
	Background *sync.WaitGroup
}

func SetupRoutes(app *fiber.App, cfg RouterConfig) {
	if cfg.BaseCtx == nil {
		cfg.BaseCtx = context.Background()
	}
	if cfg.Background == nil {
		cfg.Background = &sync.WaitGroup{}
	}

	taskHandler := handlers.NewTaskHandler(cfg.TaskLoop, cfg.Jobs, cfg.BaseCtx, cfg.Background, cfg.Logger)
	browserHandler := handlers.NewBrowserHandler(cfg.FanOut, cfg.Jobs, cfg.Relay, cfg.BaseCtx, cfg.Background, cfg.Logger)
	orchestratorHandler := handlers.NewOrchestratorHandler(cfg.Orchestrator, cfg.Logger)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	if cfg.Gatherer != nil && cfg.Config.Features.EnableMetrics {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	auth := httpmw.APIKey(cfg.Config)

	// Websocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	}, auth)
	app.Get("/ws/web-agent/:session_id", websocket.New(browserHandler.WebAgent))
	app.Get("/ws/commands", websocket.New(taskHandler.Commands))

	// Task loop routes
	app.Post("/clone", auth, taskHandler.Clone)
	app.Post("/execute", auth, taskHandler.Execute)

	api := app.Group("/api", auth)

	// Browser routes
	api.Post("/run-browser-task", browserHandler.RunBrowserTask)
	api.Post("/run-browser-task-async", browserHandler.RunBrowserTaskAsync)
	api.Get("/task-status/:id", browserHandler.TaskStatus)
	api.Get("/browser-session/:id", browserHandler.GetSession)
	api.Post("/shutdown-all", browserHandler.ShutdownAll)
	api.Post("/orchestrator", orchestratorHandler.Orchestrate)

	// Memory routes
	memory := api.Group("/memory")
	if cfg.Memory != nil {
		memoryHandler := handlers.NewMemoryHandler(cfg.Memory, cfg.Logger)
		memory.Post("/", memoryHandler.Insert)
		memory.Get("/users/:name", memoryHandler.FindUser)
		memory.Post("/query", memoryHandler.Query)
	} else {
		memory.Use(func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Error: services.ErrMemoryDisabled.Error()})
		})
	}

	// Journal routes
	if cfg.Journal != nil {
		journalHandler := handlers.NewJournalHandler(cfg.Journal)
		api.Get("/journal", journalHandler.GetEntries)
	}
}

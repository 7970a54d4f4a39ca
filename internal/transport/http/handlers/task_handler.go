package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/core/services"
	"github.com/agentdock/backend/internal/domain"
	"github.com/agentdock/backend/internal/infrastructure/logger"
	"github.com/agentdock/backend/internal/transport/http/dto"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type TaskHandler struct {
	driver  ports.TaskLoopDriver
	jobs    ports.JobTracker
	baseCtx context.Context
	wg      *sync.WaitGroup
	logger  *logger.Logger
}

// NewTaskHandler serves the task loop. Async runs are bound to baseCtx and
// tracked in wg so shutdown can wait for them.
func NewTaskHandler(driver ports.TaskLoopDriver, jobs ports.JobTracker, baseCtx context.Context, wg *sync.WaitGroup, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{driver: driver, jobs: jobs, baseCtx: baseCtx, wg: wg, logger: logger}
}

func (h *TaskHandler) Clone(c *fiber.Ctx) error {
	var req dto.CloneRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Warnw("clone_body_parse_failed", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if errs := req.Validate(); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "validation failed", Details: errs})
	}

	h.logger.Infow("clone_request", "repo_url", req.RepoURL, "project_name", req.ProjectName)
	res := h.driver.Clone(c.UserContext(), ports.CloneInput{
		RepoURL:     req.RepoURL,
		ProjectName: req.ProjectName,
		Backend:     dto.Backend(req.ContainerType),
	})
	if !res.Success {
		h.logger.Warnw("clone_failed", "repo_url", req.RepoURL, "error", res.Error)
		return c.Status(fiber.StatusInternalServerError).JSON(res)
	}
	return c.JSON(res)
}

// Execute runs the task loop. With ?async=true it returns a job id at once.
func (h *TaskHandler) Execute(c *fiber.Ctx) error {
	var req dto.ExecuteRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Warnw("execute_body_parse_failed", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if errs := req.Validate(); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "validation failed", Details: errs})
	}
	input := taskInput(req)

	if c.QueryBool("async") {
		job := h.jobs.Create(domain.JobTypeTaskLoop)
		h.logger.Infow("execute_async_request", "job_id", job.ID, "task", req.Task)
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			_ = h.jobs.Update(job.ID, domain.JobStatusRunning, 0, "Task loop running")
			res, err := h.driver.Run(h.baseCtx, input)
			if err != nil {
				_ = h.jobs.Fail(job.ID, err.Error())
				return
			}
			_ = h.jobs.Complete(job.ID, dto.ExecuteToResponse(res))
		}()
		return c.Status(fiber.StatusAccepted).JSON(dto.AsyncResponse{TaskID: job.ID, Status: string(domain.JobStatusRunning)})
	}

	h.logger.Infow("execute_request", "task", req.Task, "repo_url", req.RepoURL)
	res, err := h.driver.Run(c.UserContext(), input)
	if err != nil {
		if errors.Is(err, services.ErrTaskInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
		}
		h.logger.Errorw("execute_failed", "task", req.Task, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.ExecuteToResponse(res))
}

// Commands streams task loop events. The first frame carries the request;
// closing the socket cancels the run.
func (h *TaskHandler) Commands(conn *websocket.Conn) {
	defer conn.Close()

	var req dto.ExecuteRequest
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		_ = conn.WriteJSON(fiber.Map{"type": domain.TaskEventError, "error": "invalid request"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		_ = conn.WriteJSON(fiber.Map{"type": domain.TaskEventError, "error": "validation failed", "details": errs})
		return
	}

	ctx, cancel := context.WithCancel(h.baseCtx)
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.logger.Infow("commands_ws_started", "task", req.Task)
	res, err := h.driver.RunStream(ctx, taskInput(req), func(ev domain.TaskEvent) {
		if err := conn.WriteJSON(ev); err != nil {
			cancel()
		}
	})
	if err != nil {
		_ = conn.WriteJSON(fiber.Map{"type": domain.TaskEventError, "error": err.Error()})
		return
	}
	_ = conn.WriteJSON(fiber.Map{"type": "result", "result": dto.ExecuteToResponse(res)})
}

func taskInput(req dto.ExecuteRequest) ports.TaskInput {
	return ports.TaskInput{
		TaskName:    req.Task,
		RepoURL:     req.RepoURL,
		ProjectName: req.ProjectName,
		Backend:     dto.Backend(req.ContainerType),
	}
}

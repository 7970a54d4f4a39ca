package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/core/services"
	"github.com/agentdock/backend/internal/domain"
	"github.com/agentdock/backend/internal/infrastructure/logger"
	"github.com/agentdock/backend/internal/transport/http/dto"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type BrowserHandler struct {
	fanout  ports.FanOutManager
	jobs    ports.JobTracker
	relay   ports.StreamingRelay
	baseCtx context.Context
	wg      *sync.WaitGroup
	logger  *logger.Logger
}

func NewBrowserHandler(fanout ports.FanOutManager, jobs ports.JobTracker, relay ports.StreamingRelay, baseCtx context.Context, wg *sync.WaitGroup, logger *logger.Logger) *BrowserHandler {
	return &BrowserHandler{fanout: fanout, jobs: jobs, relay: relay, baseCtx: baseCtx, wg: wg, logger: logger}
}

// RunBrowserTask acquires the browsers and returns while they collect.
func (h *BrowserHandler) RunBrowserTask(c *fiber.Ctx) error {
	var req dto.BrowserTaskRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Warnw("browser_task_body_parse_failed", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if errs := req.Validate(); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "validation failed", Details: errs})
	}

	h.logger.Infow("browser_task_request", "question", req.UserQuestion, "browser_count", req.BrowserCount)
	res, err := h.fanout.StartSessions(c.UserContext(), ports.StartSessionsInput{
		Task:         req.UserQuestion,
		BrowserCount: req.BrowserCount,
		UserName:     req.UserName,
		Mode:         domain.FanOutAsync,
	})
	if err != nil {
		return h.fanOutError(c, err, "Error running browser task")
	}
	return c.JSON(dto.FanOutToResponse(res))
}

// RunBrowserTaskAsync runs the whole fan-out in the background and
// records the documentation on the job.
func (h *BrowserHandler) RunBrowserTaskAsync(c *fiber.Ctx) error {
	var req dto.BrowserTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if errs := req.Validate(); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "validation failed", Details: errs})
	}

	job := h.jobs.Create(domain.JobTypeBrowserTask)
	h.logger.Infow("browser_task_async_request", "job_id", job.ID, "question", req.UserQuestion)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		_ = h.jobs.Update(job.ID, domain.JobStatusRunning, 10, "Starting browser sessions")
		res, err := h.fanout.StartSessions(h.baseCtx, ports.StartSessionsInput{
			Task:         req.UserQuestion,
			BrowserCount: req.BrowserCount,
			UserName:     req.UserName,
			Mode:         domain.FanOutSync,
		})
		if res != nil {
			_ = h.jobs.Attach(job.ID, res.SessionID)
		}
		if err != nil {
			_ = h.jobs.Fail(job.ID, err.Error())
			return
		}
		_ = h.jobs.Complete(job.ID, res)
	}()

	return c.Status(fiber.StatusAccepted).JSON(dto.AsyncResponse{TaskID: job.ID, Status: string(domain.JobStatusRunning)})
}

func (h *BrowserHandler) TaskStatus(c *fiber.Ctx) error {
	id := c.Params("id")
	job, err := h.jobs.Get(id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: fmt.Sprintf("Task %s not found", id)})
	}
	return c.JSON(job)
}

func (h *BrowserHandler) GetSession(c *fiber.Ctx) error {
	rec, err := h.fanout.GetSession(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "Session not found"})
	}
	return c.JSON(rec)
}

func (h *BrowserHandler) ShutdownAll(c *fiber.Ctx) error {
	h.logger.Infow("shutdown_all_request")
	if err := h.fanout.EndAllSessions(c.UserContext()); err != nil {
		h.logger.Errorw("shutdown_all_failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: "Error shutting down all browser sessions: " + err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "success", "message": "All sessions terminated successfully"})
}

// WebAgent registers the socket as the session's step listener until the
// client goes away. Disconnecting does not stop collection.
func (h *BrowserHandler) WebAgent(conn *websocket.Conn) {
	sessionID := conn.Params("session_id")
	l := &socketListener{conn: conn}
	h.relay.Register(sessionID, l)
	h.logger.Infow("web_agent_ws_connected", "session_id", sessionID)
	defer func() {
		h.relay.Deregister(sessionID, l)
		conn.Close()
		h.logger.Infow("web_agent_ws_closed", "session_id", sessionID)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *BrowserHandler) fanOutError(c *fiber.Ctx, err error, prefix string) error {
	if errors.Is(err, services.ErrEmptyTask) || errors.Is(err, services.ErrInvalidBrowserCount) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	h.logger.Errorw("browser_task_failed", "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: prefix + ": " + err.Error()})
}

// socketListener adapts a websocket to ports.Listener.
type socketListener struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (l *socketListener) Send(message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteMessage(websocket.TextMessage, []byte(message))
}

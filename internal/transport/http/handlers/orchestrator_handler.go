package handlers

import (
	"errors"

	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/core/services"
	"github.com/agentdock/backend/internal/infrastructure/logger"
	"github.com/agentdock/backend/internal/transport/http/dto"
	"github.com/gofiber/fiber/v2"
)

type OrchestratorHandler struct {
	orchestrator ports.Orchestrator
	logger       *logger.Logger
}

func NewOrchestratorHandler(orchestrator ports.Orchestrator, logger *logger.Logger) *OrchestratorHandler {
	return &OrchestratorHandler{orchestrator: orchestrator, logger: logger}
}

func (h *OrchestratorHandler) Orchestrate(c *fiber.Ctx) error {
	var req dto.OrchestratorRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	out, err := h.orchestrator.Orchestrate(c.UserContext(), ports.OrchestratorInput{
		Task:                   req.Task,
		BrowserCount:           req.BrowserCount,
		UserName:               req.UserName,
		RepoInfo:               req.RepoInfo,
		Documentation:          req.Documentation,
		PullRequestMessage:     req.PullRequestMessage,
		PullRequestDescription: req.PullRequestDescription,
	})
	if err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, services.ErrNothingToOrchestrate) || errors.Is(err, services.ErrEmptyTask) {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(out)
	}
	return c.JSON(out)
}

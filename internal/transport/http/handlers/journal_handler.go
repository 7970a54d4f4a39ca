package handlers

import (
	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/transport/http/dto"
	"github.com/gofiber/fiber/v2"
)

type JournalHandler struct {
	repo ports.JournalRepository
}

func NewJournalHandler(repo ports.JournalRepository) *JournalHandler {
	return &JournalHandler{repo: repo}
}

func (h *JournalHandler) GetEntries(c *fiber.Ctx) error {
	if runID := c.Query("run_id"); runID != "" {
		entries, err := h.repo.GetByRun(c.UserContext(), runID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
		}
		return c.JSON(entries)
	}
	entries, err := h.repo.GetAll(c.UserContext(), c.QueryInt("limit", 50))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(entries)
}

package handlers

import (
	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/domain"
	"github.com/agentdock/backend/internal/infrastructure/logger"
	"github.com/agentdock/backend/internal/transport/http/dto"
	"github.com/gofiber/fiber/v2"
)

type MemoryHandler struct {
	service ports.MemoryService
	logger  *logger.Logger
}

func NewMemoryHandler(service ports.MemoryService, logger *logger.Logger) *MemoryHandler {
	return &MemoryHandler{service: service, logger: logger}
}

func (h *MemoryHandler) Insert(c *fiber.Ctx) error {
	var req dto.MemoryInsertRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if errs := req.Validate(); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "validation failed", Details: errs})
	}

	memory, err := h.service.Insert(c.UserContext(), req.UserName, req.TopicText, req.InsightsText)
	if err != nil {
		h.logger.Errorw("memory_insert_failed", "user_name", req.UserName, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(memory)
}

func (h *MemoryHandler) FindUser(c *fiber.Ctx) error {
	res := h.service.FindUser(c.UserContext(), c.Params("name"))
	return c.Status(lookupStatus(res.Status)).JSON(res)
}

func (h *MemoryHandler) Query(c *fiber.Ctx) error {
	var req dto.MemoryQueryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	res := h.service.Query(c.UserContext(), req.UserName, req.Question, req.K)
	return c.Status(lookupStatus(res.Status)).JSON(res)
}

func lookupStatus(s domain.LookupStatus) int {
	switch s {
	case domain.LookupFound:
		return fiber.StatusOK
	case domain.LookupNotFound:
		return fiber.StatusNotFound
	}
	return fiber.StatusInternalServerError
}

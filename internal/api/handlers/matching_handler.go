package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newsradar/backend/internal/matching"
	"github.com/newsradar/backend/pkg/logger"
)

type MatchingRunner interface {
	Run(ctx context.Context) (*matching.RunStats, error)
	MatchProfile(ctx context.Context, profileID uuid.UUID) (*matching.RunStats, error)
}

type MatchingHandler struct {
	runner MatchingRunner
}

func NewMatchingHandler(runner MatchingRunner) *MatchingHandler {
	return &MatchingHandler{
		runner: runner,
	}
}

// TriggerRun starts a full matching pass over all profiles.
func (h *MatchingHandler) TriggerRun(c *fiber.Ctx) error {
	stats, err := h.runner.Run(c.Context())
	if err != nil {
		logger.Error("Matching pass failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Matching pass failed",
		})
	}

	return c.JSON(stats)
}

// MatchProfile runs matching for a single profile.
func (h *MatchingHandler) MatchProfile(c *fiber.Ctx) error {
	profileID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid profile id",
		})
	}

	stats, err := h.runner.MatchProfile(c.Context(), profileID)
	if err != nil {
		if errors.Is(err, matching.ErrProfileNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Profile not found",
			})
		}
		logger.Error("Profile matching failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Profile matching failed",
		})
	}

	return c.JSON(stats)
}

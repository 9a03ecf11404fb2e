package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newsradar/backend/internal/matchquery"
	"github.com/newsradar/backend/pkg/logger"
)

type MatchService interface {
	GetArticleMatches(ctx context.Context, profileID uuid.UUID, req matchquery.Request) (*matchquery.Overview, error)
	GetMatchDetail(ctx context.Context, profileID, matchID uuid.UUID) (*matchquery.Detail, error)
	UpdateMatchFeedback(ctx context.Context, profileID, matchID uuid.UUID, comment, reason string, ranking int) (bool, error)
}

type MatchHandler struct {
	service MatchService
}

func NewMatchHandler(service MatchService) *MatchHandler {
	return &MatchHandler{
		service: service,
	}
}

func (h *MatchHandler) GetArticleMatches(c *fiber.Ctx) error {
	profileID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid profile id",
		})
	}

	from, err := parseDate(c.Query("from"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "from is required (RFC3339 or YYYY-MM-DD)",
		})
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "to is required (RFC3339 or YYYY-MM-DD)",
		})
	}

	subscriptionIDs, err := parseUUIDList(c.Query("subscriptions"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid subscription id",
		})
	}
	topicIDs, err := parseUUIDList(c.Query("topics"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid topic id",
		})
	}

	req := matchquery.Request{
		SearchTerm:      c.Query("search_term"),
		From:            from,
		To:              to,
		SubscriptionIDs: subscriptionIDs,
		TopicIDs:        topicIDs,
		Sort:            matchquery.SortMode(strings.ToUpper(c.Query("sort"))),
		Limit:           c.QueryInt("limit", 50),
		Offset:          c.QueryInt("offset", 0),
	}

	overview, err := h.service.GetArticleMatches(c.Context(), profileID, req)
	if err != nil {
		logger.Error("Failed to get article matches", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get article matches",
		})
	}

	return c.JSON(overview)
}

func (h *MatchHandler) GetMatchDetail(c *fiber.Ctx) error {
	profileID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid profile id",
		})
	}
	matchID, err := uuid.Parse(c.Params("matchID"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid match id",
		})
	}

	detail, err := h.service.GetMatchDetail(c.Context(), profileID, matchID)
	if err != nil {
		logger.Error("Failed to get match detail", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get match detail",
		})
	}
	if detail == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Match not found",
		})
	}

	return c.JSON(detail)
}

func (h *MatchHandler) UpdateMatchFeedback(c *fiber.Ctx) error {
	profileID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid profile id",
		})
	}
	matchID, err := uuid.Parse(c.Params("matchID"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid match id",
		})
	}

	var req struct {
		Comment string `json:"comment"`
		Reason  string `json:"reason"`
		Ranking int    `json:"ranking"`
	}
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	ok, err := h.service.UpdateMatchFeedback(c.Context(), profileID, matchID, req.Comment, req.Reason, req.Ranking)
	if err != nil {
		logger.Error("Failed to update match feedback", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update match feedback",
		})
	}
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Match not found",
		})
	}

	return c.JSON(fiber.Map{
		"updated": true,
	})
}

func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func parseUUIDList(value string) ([]uuid.UUID, error) {
	if value == "" {
		return nil, nil
	}

	parts := strings.Split(value, ",")
	ids := make([]uuid.UUID, 0, len(parts))
	for _, part := range parts {
		id, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newsradar/backend/pkg/logger"
)

type Ingestor interface {
	ProcessFeed(ctx context.Context, feedURL string, subscriptionID uuid.UUID) (int, error)
	ProcessArticle(ctx context.Context, url, htmlContent string, subscriptionID uuid.UUID) error
}

type ArticleHandler struct {
	ingestor Ingestor
}

func NewArticleHandler(ingestor Ingestor) *ArticleHandler {
	return &ArticleHandler{
		ingestor: ingestor,
	}
}

type ingestFeedRequest struct {
	FeedURL        string `json:"feed_url"`
	SubscriptionID string `json:"subscription_id"`
}

type ingestArticleRequest struct {
	URL            string `json:"url"`
	HTML           string `json:"html"`
	SubscriptionID string `json:"subscription_id"`
}

// IngestFeed pulls one feed and stores its new items.
func (h *ArticleHandler) IngestFeed(c *fiber.Ctx) error {
	var req ingestFeedRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.FeedURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "feed_url is required",
		})
	}

	subscriptionID, err := uuid.Parse(req.SubscriptionID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid subscription_id",
		})
	}

	ingested, err := h.ingestor.ProcessFeed(c.Context(), req.FeedURL, subscriptionID)
	if err != nil {
		logger.Error("Feed ingestion failed", zap.String("feed_url", req.FeedURL), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Feed ingestion failed",
		})
	}

	return c.JSON(fiber.Map{
		"ingested": ingested,
	})
}

// IngestArticle stores a single scraped page.
func (h *ArticleHandler) IngestArticle(c *fiber.Ctx) error {
	var req ingestArticleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.URL == "" || req.HTML == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "url and html are required",
		})
	}

	subscriptionID, err := uuid.Parse(req.SubscriptionID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid subscription_id",
		})
	}

	if err := h.ingestor.ProcessArticle(c.Context(), req.URL, req.HTML, subscriptionID); err != nil {
		logger.Error("Article ingestion failed", zap.String("url", req.URL), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Article ingestion failed",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status": "ingested",
	})
}

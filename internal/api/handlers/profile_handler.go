package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newsradar/backend/internal/storage/models"
	"github.com/newsradar/backend/pkg/logger"
)

type ProfileStore interface {
	InsertProfile(profile *models.SearchProfile) error
	GetProfile(id uuid.UUID) (*models.SearchProfile, error)
	FetchProfiles(limit, offset int) ([]models.SearchProfile, error)
	SyncTopics(profileID uuid.UUID, topics []models.Topic) error
}

type ProfileHandler struct {
	store ProfileStore
}

func NewProfileHandler(store ProfileStore) *ProfileHandler {
	return &ProfileHandler{
		store: store,
	}
}

type topicRequest struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

func (h *ProfileHandler) CreateProfile(c *fiber.Ctx) error {
	var req struct {
		Name            string         `json:"name"`
		OrganizationID  string         `json:"organization_id"`
		OwnerID         string         `json:"owner_id"`
		Public          bool           `json:"public"`
		Language        string         `json:"language"`
		SubscriptionIDs []string       `json:"subscription_ids"`
		Topics          []topicRequest `json:"topics"`
	}
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Name == "" || req.OrganizationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name and organization_id are required",
		})
	}

	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid organization id",
		})
	}

	profile := &models.SearchProfile{
		ID:             uuid.New(),
		Name:           req.Name,
		OrganizationID: orgID,
		Public:         req.Public,
		Language:       req.Language,
	}
	if profile.Language == "" {
		profile.Language = "en"
	}
	if req.OwnerID != "" {
		ownerID, err := uuid.Parse(req.OwnerID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid owner id",
			})
		}
		profile.OwnerID = ownerID
	}
	for _, raw := range req.SubscriptionIDs {
		subID, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid subscription id",
			})
		}
		profile.SubscriptionIDs = append(profile.SubscriptionIDs, subID)
	}
	profile.Topics = buildTopics(profile.ID, req.Topics)

	if err := h.store.InsertProfile(profile); err != nil {
		logger.Error("Failed to create profile", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create profile",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id": profile.ID,
	})
}

func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid profile id",
		})
	}

	profile, err := h.store.GetProfile(id)
	if err != nil {
		logger.Error("Failed to get profile", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get profile",
		})
	}
	if profile == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Profile not found",
		})
	}

	return c.JSON(profile)
}

func (h *ProfileHandler) ListProfiles(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	profiles, err := h.store.FetchProfiles(limit, offset)
	if err != nil {
		logger.Error("Failed to list profiles", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list profiles",
		})
	}

	return c.JSON(fiber.Map{
		"profiles": profiles,
	})
}

// SyncTopics replaces the profile's topic set. Orphaned keywords are
// garbage-collected by the store after every sync.
func (h *ProfileHandler) SyncTopics(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid profile id",
		})
	}

	var req struct {
		Topics []topicRequest `json:"topics"`
	}
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	profile, err := h.store.GetProfile(id)
	if err != nil {
		logger.Error("Failed to get profile", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get profile",
		})
	}
	if profile == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Profile not found",
		})
	}

	if err := h.store.SyncTopics(id, buildTopics(id, req.Topics)); err != nil {
		logger.Error("Failed to sync topics", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to sync topics",
		})
	}

	return c.JSON(fiber.Map{
		"synced": len(req.Topics),
	})
}

func buildTopics(profileID uuid.UUID, reqs []topicRequest) []models.Topic {
	topics := make([]models.Topic, 0, len(reqs))
	for _, tr := range reqs {
		topic := models.Topic{
			SearchProfileID: profileID,
			Name:            tr.Name,
		}
		if id, err := uuid.Parse(tr.ID); err == nil {
			topic.ID = id
		} else {
			topic.ID = uuid.New()
		}
		for _, name := range tr.Keywords {
			topic.Keywords = append(topic.Keywords, models.Keyword{
				ID:   uuid.New(),
				Name: name,
			})
		}
		topics = append(topics, topic)
	}
	return topics
}

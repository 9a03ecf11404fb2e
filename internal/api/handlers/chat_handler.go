package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newsradar/backend/internal/chatbot"
	"github.com/newsradar/backend/pkg/logger"
)

type ChatHandler struct {
	bot *chatbot.Bot
}

func NewChatHandler(bot *chatbot.Bot) *ChatHandler {
	return &ChatHandler{
		bot: bot,
	}
}

func (h *ChatHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("Chat connection established")

	defer func() {
		c.Close()
		logger.Info("Chat connection closed")
	}()

	for {
		var msg struct {
			Type      string `json:"type"`
			Content   string `json:"content"`
			ProfileID string `json:"profile_id"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Error("Failed to read chat message", zap.Error(err))
			break
		}

		if msg.Type != "question" {
			continue
		}

		profileID, err := uuid.Parse(msg.ProfileID)
		if err != nil {
			h.sendError(c, "Invalid profile_id")
			continue
		}

		logger.Info("Processing chat question", zap.String("profile_id", msg.ProfileID))

		err = h.answer(c, profileID, msg.Content)
		if err != nil {
			logger.Error("Failed to answer question", zap.Error(err))
			h.sendError(c, "Failed to answer question")
		}
	}
}

func (h *ChatHandler) answer(c *websocket.Conn, profileID uuid.UUID, question string) error {
	ctx := context.Background()

	err := h.sendChunk(c, "status", "Looking up your matches...")
	if err != nil {
		return err
	}

	answer, err := h.bot.Answer(ctx, profileID, question)
	if err != nil {
		return err
	}

	words := splitIntoWords(answer)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}

		err := h.sendChunk(c, "chunk", chunk)
		if err != nil {
			return err
		}
	}

	return c.WriteJSON(map[string]interface{}{
		"type": "complete",
	})
}

func (h *ChatHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	msg := map[string]interface{}{
		"type":    msgType,
		"content": content,
	}

	return c.WriteJSON(msg)
}

func (h *ChatHandler) sendError(c *websocket.Conn, errorMsg string) {
	msg := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	c.WriteJSON(msg)
}

func splitIntoWords(text string) []string {
	words := []string{}
	currentWord := ""

	for _, char := range text {
		if char == ' ' || char == '\n' {
			if currentWord != "" {
				words = append(words, currentWord)
				currentWord = ""
			}
			if char == '\n' {
				words = append(words, "\n")
			}
		} else {
			currentWord += string(char)
		}
	}

	if currentWord != "" {
		words = append(words, currentWord)
	}

	return words
}

package chatbot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newsradar/backend/internal/matchquery"
	"github.com/newsradar/backend/pkg/logger"
)

const (
	contextWindow  = 30 * 24 * time.Hour
	contextMatches = 10
)

type MatchReader interface {
	GetArticleMatches(ctx context.Context, profileID uuid.UUID, req matchquery.Request) (*matchquery.Overview, error)
}

type Answerer interface {
	AnswerQuestion(ctx context.Context, question, matchContext string) (string, error)
}

// Bot answers follow-up questions about a profile's report, grounded in the
// profile's highest-ranked recent matches.
type Bot struct {
	matches MatchReader
	llm     Answerer
}

func NewBot(matches MatchReader, llm Answerer) *Bot {
	return &Bot{
		matches: matches,
		llm:     llm,
	}
}

func (b *Bot) Answer(ctx context.Context, profileID uuid.UUID, question string) (string, error) {
	now := time.Now()
	overview, err := b.matches.GetArticleMatches(ctx, profileID, matchquery.Request{
		From:  now.Add(-contextWindow),
		To:    now,
		Sort:  matchquery.SortRelevance,
		Limit: contextMatches,
	})
	if err != nil {
		return "", fmt.Errorf("failed to load matches for chat context: %w", err)
	}

	if len(overview.Items) == 0 {
		return "There are no matched articles for this profile in the last 30 days.", nil
	}

	answer, err := b.llm.AnswerQuestion(ctx, question, formatContext(overview.Items))
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}

	logger.Info("Chat question answered",
		zap.String("profile_id", profileID.String()),
		zap.Int("context_matches", len(overview.Items)),
	)

	return answer, nil
}

func formatContext(items []matchquery.ArticleMatchView) string {
	var builder strings.Builder
	for i, item := range items {
		builder.WriteString(fmt.Sprintf("[%d] %s (%s, score %.2f)\n",
			i+1,
			item.Title,
			item.PublishedAt.Format("2006-01-02"),
			item.Score,
		))
		if item.Summary != "" {
			builder.WriteString(item.Summary)
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}
	return builder.String()
}

package matching

import (
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newsradar/backend/internal/storage/models"
	"github.com/newsradar/backend/pkg/logger"
)

// MatchStore is the write side of match persistence. InsertMatch reports
// inserted=false when the (profile, article) pair already has a match; the
// unique constraint is the dedup signal, not a separate existence check.
type MatchStore interface {
	InsertMatch(m *models.Match) (bool, error)
}

type Persister struct {
	store MatchStore
}

func NewPersister(store MatchStore) *Persister {
	return &Persister{store: store}
}

// PersistRanked writes the ranked matches in score order. sorting_order is
// the running count of actual insertions: skipped articles do not consume a
// slot. A single failed insert is logged and skipped; the batch continues.
// Stored matches are never updated by later runs; first match wins.
func (p *Persister) PersistRanked(
	profileID uuid.UUID,
	ranked []RankedMatch,
	explanations map[uuid.UUID]Explanation,
	run *models.MatchingRun,
) (inserted, skipped int) {
	for _, candidate := range ranked {
		comment, err := json.Marshal(explanations[candidate.ArticleID])
		if err != nil {
			logger.Error("Failed to marshal match explanation",
				zap.String("article_id", candidate.ArticleID.String()),
				zap.Error(err),
			)
			skipped++
			continue
		}

		match := &models.Match{
			ID:              uuid.New(),
			ArticleID:       candidate.ArticleID,
			SearchProfileID: profileID,
			TopicID:         candidate.TopicID,
			MatchingRunID:   run.ID,
			SortingOrder:    inserted,
			Score:           candidate.Score,
			Comment:         string(comment),
		}

		ok, err := p.store.InsertMatch(match)
		if err != nil {
			logger.Error("Failed to insert match",
				zap.String("profile_id", profileID.String()),
				zap.String("article_id", candidate.ArticleID.String()),
				zap.Error(err),
			)
			skipped++
			continue
		}
		if !ok {
			skipped++
			continue
		}
		inserted++
	}

	logger.Info("Matches persisted",
		zap.String("profile_id", profileID.String()),
		zap.String("run_id", run.ID.String()),
		zap.Int("inserted", inserted),
		zap.Int("skipped", skipped),
	)

	return inserted, skipped
}

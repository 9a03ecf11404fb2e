package similarity

import (
	"context"

	"github.com/google/uuid"
)

// ScoredDocument is one candidate article returned by a similarity query.
// Score is in [0,1], higher is more similar.
type ScoredDocument struct {
	ArticleID uuid.UUID
	Score     float64
}

// Source answers free-text similarity queries against the article index.
// Implementations must be safe for concurrent use; errors propagate to the
// caller unchanged.
type Source interface {
	RetrieveBySimilarity(ctx context.Context, query string, scoreThreshold float64) ([]ScoredDocument, error)
}

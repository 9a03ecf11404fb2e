package matching

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newsradar/backend/internal/similarity"
	"github.com/newsradar/backend/internal/storage/models"
	"github.com/newsradar/backend/pkg/logger"
)

// Config carries the scoring weights and thresholds. These are fixed per
// deployment; the algorithm version string derives from them so every
// matching run records which weights produced it.
type Config struct {
	TopicWeight      float64
	KeywordWeight    float64
	TopicThreshold   float64
	KeywordThreshold float64
}

func DefaultConfig() Config {
	return Config{
		TopicWeight:      0.7,
		KeywordWeight:    0.3,
		TopicThreshold:   0.45,
		KeywordThreshold: 0.1,
	}
}

func (c Config) AlgorithmVersion() string {
	return fmt.Sprintf("V1_TOPIC_WEIGHTS_%.1f_KEYWORD_WEIGHTS_%.1f", c.TopicWeight, c.KeywordWeight)
}

// RankedMatch attributes an article to the topic that produced its best
// combined score.
type RankedMatch struct {
	ArticleID uuid.UUID
	TopicID   uuid.UUID
	Score     float64
}

type KeywordScore struct {
	KeywordID   uuid.UUID `json:"keyword_id"`
	KeywordName string    `json:"keyword_name"`
	Score       float64   `json:"score"`
}

type TopicScore struct {
	TopicID   uuid.UUID      `json:"topic_id"`
	TopicName string         `json:"topic_name"`
	Score     float64        `json:"score"`
	Keywords  []KeywordScore `json:"keywords"`
}

// Explanation is the per-article score provenance persisted as the match
// comment. It lists every candidate topic, not only the winning one.
type Explanation struct {
	ArticleID uuid.UUID    `json:"article_id"`
	Topics    []TopicScore `json:"topics"`
}

type Scorer struct {
	source similarity.Source
	cfg    Config
}

func NewScorer(source similarity.Source, cfg Config) *Scorer {
	return &Scorer{
		source: source,
		cfg:    cfg,
	}
}

// topicCandidates keeps the source return order so ranking ties resolve
// deterministically (topic-major, then first occurrence).
type topicCandidates struct {
	topic  models.Topic
	order  []uuid.UUID
	scores map[uuid.UUID]float64
}

// Score runs the three scoring phases for one profile and returns the
// ranked, article-deduplicated match list along with the per-article
// explanation payloads. A similarity failure aborts the whole profile; no
// partial result is returned.
func (s *Scorer) Score(ctx context.Context, profile *models.SearchProfile) ([]RankedMatch, map[uuid.UUID]Explanation, error) {
	candidates, err := s.matchTopics(ctx, profile)
	if err != nil {
		return nil, nil, err
	}

	keywordAvgs, keywordBreakdown, err := s.matchKeywords(ctx, candidates)
	if err != nil {
		return nil, nil, err
	}

	ranked, explanations := s.finalize(candidates, keywordAvgs, keywordBreakdown)

	logger.Info("Profile scored",
		zap.String("profile_id", profile.ID.String()),
		zap.Int("topics", len(profile.Topics)),
		zap.Int("matches", len(ranked)),
	)

	return ranked, explanations, nil
}

// Phase 1: one similarity query per topic over the topic's full keyword set.
// Articles below the topic threshold never become candidates.
func (s *Scorer) matchTopics(ctx context.Context, profile *models.SearchProfile) ([]topicCandidates, error) {
	candidates := make([]topicCandidates, 0, len(profile.Topics))

	for _, topic := range profile.Topics {
		docs, err := s.source.RetrieveBySimilarity(ctx, topicQuery(topic), s.cfg.TopicThreshold)
		if err != nil {
			return nil, fmt.Errorf("topic similarity query failed for %q: %w", topic.Name, err)
		}

		tc := topicCandidates{
			topic:  topic,
			scores: make(map[uuid.UUID]float64, len(docs)),
		}
		for _, doc := range docs {
			if _, seen := tc.scores[doc.ArticleID]; seen {
				continue
			}
			tc.order = append(tc.order, doc.ArticleID)
			tc.scores[doc.ArticleID] = doc.Score
		}
		candidates = append(candidates, tc)
	}

	return candidates, nil
}

// Phase 2: one similarity query per keyword, narrowing within each topic's
// phase-1 candidate set. Keyword queries never introduce new articles.
func (s *Scorer) matchKeywords(ctx context.Context, candidates []topicCandidates) (
	map[uuid.UUID]map[uuid.UUID]float64,
	map[uuid.UUID]map[uuid.UUID][]KeywordScore,
	error,
) {
	avgs := make(map[uuid.UUID]map[uuid.UUID]float64)
	breakdown := make(map[uuid.UUID]map[uuid.UUID][]KeywordScore)

	for _, tc := range candidates {
		if len(tc.order) == 0 {
			continue
		}

		perKeyword := make(map[uuid.UUID]map[uuid.UUID][]float64)

		for _, kw := range tc.topic.Keywords {
			docs, err := s.source.RetrieveBySimilarity(ctx, kw.Name, s.cfg.KeywordThreshold)
			if err != nil {
				return nil, nil, fmt.Errorf("keyword similarity query failed for %q: %w", kw.Name, err)
			}

			for _, doc := range docs {
				if _, isCandidate := tc.scores[doc.ArticleID]; !isCandidate {
					continue
				}
				if perKeyword[doc.ArticleID] == nil {
					perKeyword[doc.ArticleID] = make(map[uuid.UUID][]float64)
				}
				perKeyword[doc.ArticleID][kw.ID] = append(perKeyword[doc.ArticleID][kw.ID], doc.Score)
			}
		}

		avgs[tc.topic.ID] = make(map[uuid.UUID]float64)
		breakdown[tc.topic.ID] = make(map[uuid.UUID][]KeywordScore)

		for articleID, scoresByKeyword := range perKeyword {
			var keywordMeans []float64
			var scores []KeywordScore

			// Keywords with no similarity hit are excluded from the
			// average rather than counted as zero.
			for _, kw := range tc.topic.Keywords {
				raw := scoresByKeyword[kw.ID]
				if len(raw) == 0 {
					continue
				}
				m := mean(raw)
				keywordMeans = append(keywordMeans, m)
				scores = append(scores, KeywordScore{
					KeywordID:   kw.ID,
					KeywordName: kw.Name,
					Score:       m,
				})
			}

			if len(keywordMeans) == 0 {
				continue
			}
			avgs[tc.topic.ID][articleID] = mean(keywordMeans)
			breakdown[tc.topic.ID][articleID] = scores
		}
	}

	return avgs, breakdown, nil
}

// Phase 3: combine, rank, and deduplicate by article. The stable sort plus
// topic-major collection order means an article matched via several topics
// is attributed to the topic with its highest combined score.
func (s *Scorer) finalize(
	candidates []topicCandidates,
	keywordAvgs map[uuid.UUID]map[uuid.UUID]float64,
	keywordBreakdown map[uuid.UUID]map[uuid.UUID][]KeywordScore,
) ([]RankedMatch, map[uuid.UUID]Explanation) {
	var triples []RankedMatch
	explanations := make(map[uuid.UUID]Explanation)

	for _, tc := range candidates {
		for _, articleID := range tc.order {
			keywordAvg := keywordAvgs[tc.topic.ID][articleID]
			combined := tc.scores[articleID]*s.cfg.TopicWeight + keywordAvg*s.cfg.KeywordWeight

			triples = append(triples, RankedMatch{
				ArticleID: articleID,
				TopicID:   tc.topic.ID,
				Score:     combined,
			})

			exp := explanations[articleID]
			exp.ArticleID = articleID
			exp.Topics = append(exp.Topics, TopicScore{
				TopicID:   tc.topic.ID,
				TopicName: tc.topic.Name,
				Score:     combined,
				Keywords:  keywordBreakdown[tc.topic.ID][articleID],
			})
			explanations[articleID] = exp
		}
	}

	sort.SliceStable(triples, func(i, j int) bool {
		return triples[i].Score > triples[j].Score
	})

	seen := make(map[uuid.UUID]bool, len(triples))
	ranked := triples[:0]
	for _, t := range triples {
		if seen[t.ArticleID] {
			continue
		}
		seen[t.ArticleID] = true
		ranked = append(ranked, t)
	}

	return ranked, explanations
}

func topicQuery(topic models.Topic) string {
	names := make([]string, len(topic.Keywords))
	for i, kw := range topic.Keywords {
		names[i] = kw.Name
	}
	return fmt.Sprintf("Topic %s: %s", topic.Name, strings.Join(names, ", "))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

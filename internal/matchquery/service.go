package matchquery

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/newsradar/backend/internal/matching"
	"github.com/newsradar/backend/internal/metrics"
	"github.com/newsradar/backend/internal/storage/models"
	"github.com/newsradar/backend/pkg/logger"
	"github.com/newsradar/backend/pkg/utils"
)

type SortMode string

const (
	SortRelevance SortMode = "RELEVANCE"
	SortRecency   SortMode = "RECENCY"
)

// Request filters previously persisted matches. The date range is required;
// everything else is optional and applied as an independent AND condition.
type Request struct {
	SearchTerm      string
	From            time.Time
	To              time.Time
	SubscriptionIDs []uuid.UUID
	TopicIDs        []uuid.UUID
	Sort            SortMode
	Limit           int
	Offset          int
}

type TopicScoreView struct {
	TopicID   uuid.UUID `json:"topic_id"`
	TopicName string    `json:"topic_name"`
	Score     float64   `json:"score"`
}

// ArticleMatchView is one article's entry in the overview. Text is nil when
// the requesting profile's organization lacks subscription access to the
// article's source. Redaction, not an error.
type ArticleMatchView struct {
	MatchID     uuid.UUID        `json:"match_id"`
	ArticleID   uuid.UUID        `json:"article_id"`
	Title       string           `json:"title"`
	TitleEN     string           `json:"title_en,omitempty"`
	TitleDE     string           `json:"title_de,omitempty"`
	Summary     string           `json:"summary"`
	Text        *string          `json:"text"`
	URL         string           `json:"url"`
	ImageURL    string           `json:"image_url,omitempty"`
	PublishedAt time.Time        `json:"published_at"`
	Score       float64          `json:"score"`
	Relevance   float64          `json:"relevance"`
	Topics      []TopicScoreView `json:"topics"`
}

type Overview struct {
	Items []ArticleMatchView `json:"items"`
	Total int                `json:"total"`
}

type Detail struct {
	ArticleMatchView
	MatchingRunID uuid.UUID `json:"matching_run_id"`
	SortingOrder  int       `json:"sorting_order"`
	UserComment   string    `json:"user_comment,omitempty"`
	UserReason    string    `json:"user_reason,omitempty"`
	UserRanking   int       `json:"user_ranking,omitempty"`
}

// Store is the persistence surface the read path depends on. Lookups are
// batched; the service never issues per-row queries.
type Store interface {
	GetProfile(id uuid.UUID) (*models.SearchProfile, error)
	GetMatchesBySearchProfile(profileID uuid.UUID) ([]models.Match, error)
	GetMatchesByProfileAndArticle(profileID, articleID uuid.UUID) ([]models.Match, error)
	GetMatch(matchID uuid.UUID) (*models.Match, error)
	UpdateMatchFeedback(matchID uuid.UUID, comment, reason string, ranking int) (bool, error)
	GetArticlesByIDs(ids []uuid.UUID) (map[uuid.UUID]models.Article, error)
	GetTopicNamesByIDs(ids []uuid.UUID) (map[uuid.UUID]string, error)
	ActiveSubscriptionIDs(organizationID uuid.UUID) (map[uuid.UUID]bool, error)
}

// Cache holds computed overviews keyed by profile and request. Optional.
type Cache interface {
	GetOverview(ctx context.Context, profileID uuid.UUID, requestHash string, out interface{}) (bool, error)
	SetOverview(ctx context.Context, profileID uuid.UUID, requestHash string, value interface{}, ttl time.Duration) error
}

type Service struct {
	store Store
	cache Cache
}

func NewService(store Store, cache Cache) *Service {
	return &Service{
		store: store,
		cache: cache,
	}
}

// GetArticleMatches returns the filtered, sorted, paginated overview of a
// profile's persisted matches. A missing profile yields an empty overview.
func (s *Service) GetArticleMatches(ctx context.Context, profileID uuid.UUID, req Request) (*Overview, error) {
	start := time.Now()
	defer func() {
		metrics.QueryDuration.WithLabelValues("overview").Observe(time.Since(start).Seconds())
	}()

	requestHash := hashRequest(req)
	if s.cache != nil {
		var cached Overview
		hit, err := s.cache.GetOverview(ctx, profileID, requestHash, &cached)
		if err != nil {
			logger.Warn("Overview cache lookup failed", zap.Error(err))
		} else if hit {
			metrics.CacheHits.WithLabelValues("overview").Inc()
			return &cached, nil
		}
		metrics.CacheMisses.WithLabelValues("overview").Inc()
	}

	profile, err := s.store.GetProfile(profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile == nil {
		return &Overview{Items: []ArticleMatchView{}}, nil
	}

	matches, err := s.store.GetMatchesBySearchProfile(profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load matches: %w", err)
	}

	articleIDs := make([]uuid.UUID, 0, len(matches))
	seen := make(map[uuid.UUID]bool, len(matches))
	for _, m := range matches {
		if !seen[m.ArticleID] {
			seen[m.ArticleID] = true
			articleIDs = append(articleIDs, m.ArticleID)
		}
	}

	articles, err := s.store.GetArticlesByIDs(articleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load articles: %w", err)
	}

	searchTokens := tokenize(req.SearchTerm)
	subscriptionSet := uuidSet(req.SubscriptionIDs)
	topicSet := uuidSet(req.TopicIDs)

	filtered := matches[:0]
	for _, m := range matches {
		article, ok := articles[m.ArticleID]
		if !ok {
			continue
		}
		if article.PublishedAt.Before(req.From) || article.PublishedAt.After(req.To) {
			continue
		}
		if len(subscriptionSet) > 0 && !subscriptionSet[article.SubscriptionID] {
			continue
		}
		if len(topicSet) > 0 && !topicSet[m.TopicID] {
			continue
		}
		if len(searchTokens) > 0 && !containsAllTokens(&article, searchTokens) {
			continue
		}
		filtered = append(filtered, m)
	}

	activeSubs, err := s.store.ActiveSubscriptionIDs(profile.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}

	groups := groupByArticle(filtered)
	items := make([]ArticleMatchView, 0, len(groups))
	for _, group := range groups {
		article := articles[group[0].ArticleID]
		items = append(items, buildView(group, &article, activeSubs))
	}

	switch req.Sort {
	case SortRelevance:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Score > items[j].Score
		})
	default:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].PublishedAt.After(items[j].PublishedAt)
		})
	}

	total := len(items)
	items = paginate(items, req.Limit, req.Offset)

	overview := &Overview{Items: items, Total: total}

	if s.cache != nil {
		if err := s.cache.SetOverview(ctx, profileID, requestHash, overview, 5*time.Minute); err != nil {
			logger.Warn("Failed to cache overview", zap.Error(err))
		}
	}

	return overview, nil
}

// GetMatchDetail returns nil without error when the match, its article, or
// the profile association is missing.
func (s *Service) GetMatchDetail(ctx context.Context, profileID, matchID uuid.UUID) (*Detail, error) {
	start := time.Now()
	defer func() {
		metrics.QueryDuration.WithLabelValues("detail").Observe(time.Since(start).Seconds())
	}()

	match, err := s.store.GetMatch(matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load match: %w", err)
	}
	if match == nil || match.SearchProfileID != profileID {
		return nil, nil
	}

	profile, err := s.store.GetProfile(profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile == nil {
		return nil, nil
	}

	articles, err := s.store.GetArticlesByIDs([]uuid.UUID{match.ArticleID})
	if err != nil {
		return nil, fmt.Errorf("failed to load article: %w", err)
	}
	article, ok := articles[match.ArticleID]
	if !ok {
		return nil, nil
	}

	group, err := s.store.GetMatchesByProfileAndArticle(profileID, match.ArticleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load match group: %w", err)
	}
	if len(group) == 0 {
		group = []models.Match{*match}
	}

	activeSubs, err := s.store.ActiveSubscriptionIDs(profile.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}

	view := buildView(group, &article, activeSubs)
	view.Topics = bestTopicScores(group)
	view.MatchID = match.ID
	view.Score = match.Score

	// Comment payloads carry topic names as of match time; resolve current
	// names so renames show through. Deleted topics keep the stored name.
	if err := s.refreshTopicNames(view.Topics); err != nil {
		return nil, fmt.Errorf("failed to resolve topic names: %w", err)
	}

	return &Detail{
		ArticleMatchView: view,
		MatchingRunID:    match.MatchingRunID,
		SortingOrder:     match.SortingOrder,
		UserComment:      match.UserComment,
		UserReason:       match.UserReason,
		UserRanking:      match.UserRanking,
	}, nil
}

func (s *Service) refreshTopicNames(topics []TopicScoreView) error {
	if len(topics) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(topics))
	for i, t := range topics {
		ids[i] = t.TopicID
	}

	names, err := s.store.GetTopicNamesByIDs(ids)
	if err != nil {
		return err
	}
	for i := range topics {
		if name, ok := names[topics[i].TopicID]; ok {
			topics[i].TopicName = name
		}
	}
	return nil
}

// UpdateMatchFeedback stores user feedback and reports whether the match
// belongs to the profile and exists.
func (s *Service) UpdateMatchFeedback(ctx context.Context, profileID, matchID uuid.UUID, comment, reason string, ranking int) (bool, error) {
	match, err := s.store.GetMatch(matchID)
	if err != nil {
		return false, fmt.Errorf("failed to load match: %w", err)
	}
	if match == nil || match.SearchProfileID != profileID {
		return false, nil
	}

	return s.store.UpdateMatchFeedback(matchID, comment, reason, ranking)
}

// groupByArticle preserves input order of first occurrence. The dedup
// invariant makes groups of size one the norm; grouping is defensive against
// historical duplicates.
func groupByArticle(matches []models.Match) [][]models.Match {
	index := make(map[uuid.UUID]int)
	var groups [][]models.Match
	for _, m := range matches {
		if i, ok := index[m.ArticleID]; ok {
			groups[i] = append(groups[i], m)
			continue
		}
		index[m.ArticleID] = len(groups)
		groups = append(groups, []models.Match{m})
	}
	return groups
}

func buildView(group []models.Match, article *models.Article, activeSubs map[uuid.UUID]bool) ArticleMatchView {
	topics := firstSeenTopicScores(group)

	relevance := 0.0
	if len(topics) > 0 {
		for _, t := range topics {
			relevance += t.Score
		}
		relevance /= float64(len(topics))
	}

	best := group[0]
	for _, m := range group[1:] {
		if m.Score > best.Score {
			best = m
		}
	}

	view := ArticleMatchView{
		MatchID:     best.ID,
		ArticleID:   article.ID,
		Title:       article.Title,
		TitleEN:     article.TitleEN,
		TitleDE:     article.TitleDE,
		Summary:     article.Summary,
		URL:         article.URL,
		ImageURL:    article.ImageURL,
		PublishedAt: article.PublishedAt,
		Score:       best.Score,
		Relevance:   relevance,
		Topics:      topics,
	}

	if activeSubs[article.SubscriptionID] {
		text := article.Content
		view.Text = &text
	}

	return view
}

// firstSeenTopicScores flattens the group's explanation payloads,
// deduplicating topics by id and keeping the first seen entry.
func firstSeenTopicScores(group []models.Match) []TopicScoreView {
	seen := make(map[uuid.UUID]bool)
	var topics []TopicScoreView
	for _, m := range group {
		for _, t := range parseExplanation(m).Topics {
			if seen[t.TopicID] {
				continue
			}
			seen[t.TopicID] = true
			topics = append(topics, TopicScoreView{
				TopicID:   t.TopicID,
				TopicName: t.TopicName,
				Score:     t.Score,
			})
		}
	}
	return topics
}

// bestTopicScores keeps the maximum score per topic across the group.
func bestTopicScores(group []models.Match) []TopicScoreView {
	index := make(map[uuid.UUID]int)
	var topics []TopicScoreView
	for _, m := range group {
		for _, t := range parseExplanation(m).Topics {
			if i, ok := index[t.TopicID]; ok {
				if t.Score > topics[i].Score {
					topics[i].Score = t.Score
				}
				continue
			}
			index[t.TopicID] = len(topics)
			topics = append(topics, TopicScoreView{
				TopicID:   t.TopicID,
				TopicName: t.TopicName,
				Score:     t.Score,
			})
		}
	}
	return topics
}

func parseExplanation(m models.Match) matching.Explanation {
	var exp matching.Explanation
	if m.Comment == "" {
		return exp
	}
	if err := json.Unmarshal([]byte(m.Comment), &exp); err != nil {
		logger.Warn("Unparseable match comment", zap.String("match_id", m.ID.String()), zap.Error(err))
	}
	return exp
}

// tokenize splits a search term into lowercase tokens. This query-time token
// filter is intentionally independent of the creation-time vector search.
func tokenize(term string) []string {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil
	}

	doc, err := prose.NewDocument(term, prose.WithExtraction(false), prose.WithTagging(false), prose.WithSegmentation(false))
	if err != nil {
		logger.Warn("Failed to tokenize search term, falling back to fields", zap.Error(err))
		return strings.Fields(strings.ToLower(term))
	}

	var tokens []string
	for _, tok := range doc.Tokens() {
		t := strings.ToLower(strings.TrimSpace(tok.Text))
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// containsAllTokens requires every search token to appear in the article's
// bilingual title/summary fields.
func containsAllTokens(article *models.Article, tokens []string) bool {
	haystack := strings.ToLower(strings.Join([]string{
		article.Title, article.TitleEN, article.TitleDE,
		article.Summary, article.SummaryEN, article.SummaryDE,
	}, " "))

	for _, token := range tokens {
		if !strings.Contains(haystack, token) {
			return false
		}
	}
	return true
}

func uuidSet(ids []uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func paginate(items []ArticleMatchView, limit, offset int) []ArticleMatchView {
	if offset >= len(items) {
		return []ArticleMatchView{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func hashRequest(req Request) string {
	raw, _ := json.Marshal(req)
	return utils.HashString(string(raw))
}

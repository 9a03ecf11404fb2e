package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newsradar/backend/internal/storage/models"
	"github.com/newsradar/backend/pkg/logger"
)

// CreateMatchingRun appends a new run row. The counter comes from the
// autoincrement rowid and is strictly increasing across all runs.
func (c *Client) CreateMatchingRun(algorithmVersion string) (*models.MatchingRun, error) {
	run := &models.MatchingRun{
		ID:               uuid.New(),
		RunAt:            time.Now(),
		AlgorithmVersion: algorithmVersion,
	}

	res, err := c.db.Exec(
		`INSERT INTO matching_runs (id, run_at, algorithm_version) VALUES (?, ?, ?)`,
		run.ID.String(), run.RunAt.Unix(), run.AlgorithmVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create matching run: %w", err)
	}

	run.Counter, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read run counter: %w", err)
	}

	logger.Info("Matching run created",
		zap.String("run_id", run.ID.String()),
		zap.Int64("counter", run.Counter),
		zap.String("algorithm_version", run.AlgorithmVersion),
	)

	return run, nil
}

func (c *Client) MatchExists(profileID, articleID uuid.UUID) (bool, error) {
	var one int
	err := c.db.QueryRow(
		`SELECT 1 FROM matches WHERE search_profile_id = ? AND article_id = ?`,
		profileID.String(), articleID.String(),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check match existence: %w", err)
	}
	return true, nil
}

// InsertMatch writes a match row. The unique (search_profile_id, article_id)
// constraint is the dedup signal: a conflicting insert is silently dropped
// and reported as inserted=false, never as an error.
func (c *Client) InsertMatch(m *models.Match) (bool, error) {
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := c.db.Exec(
		`INSERT INTO matches (id, article_id, search_profile_id, topic_id, matching_run_id,
			sorting_order, score, comment, user_comment, user_reason, user_ranking, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(search_profile_id, article_id) DO NOTHING`,
		m.ID.String(), m.ArticleID.String(), m.SearchProfileID.String(), m.TopicID.String(),
		m.MatchingRunID.String(), m.SortingOrder, m.Score, m.Comment, m.UserComment,
		m.UserReason, m.UserRanking, createdAt.Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert match: %w", err)
	}

	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

func (c *Client) GetMatchesBySearchProfile(profileID uuid.UUID) ([]models.Match, error) {
	rows, err := c.db.Query(matchSelect+` WHERE search_profile_id = ?`, profileID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}
	defer rows.Close()

	return scanMatches(rows)
}

func (c *Client) GetMatchesByProfileAndArticle(profileID, articleID uuid.UUID) ([]models.Match, error) {
	rows, err := c.db.Query(
		matchSelect+` WHERE search_profile_id = ? AND article_id = ?`,
		profileID.String(), articleID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}
	defer rows.Close()

	return scanMatches(rows)
}

// GetMatch returns nil without error when the match does not exist.
func (c *Client) GetMatch(matchID uuid.UUID) (*models.Match, error) {
	row := c.db.QueryRow(matchSelect+` WHERE id = ?`, matchID.String())

	match, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return match, nil
}

// UpdateMatchFeedback stores user feedback on an existing match and reports
// whether the match existed.
func (c *Client) UpdateMatchFeedback(matchID uuid.UUID, comment, reason string, ranking int) (bool, error) {
	res, err := c.db.Exec(
		`UPDATE matches SET user_comment = ?, user_reason = ?, user_ranking = ? WHERE id = ?`,
		comment, reason, ranking, matchID.String(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update match feedback: %w", err)
	}

	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// GetTopicNamesByIDs batch-resolves topic names.
func (c *Client) GetTopicNamesByIDs(ids []uuid.UUID) (map[uuid.UUID]string, error) {
	result := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}

	rows, err := c.db.Query(
		`SELECT id, name FROM topics WHERE id IN (`+placeholders(len(args))+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get topic names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw, name string
		if err := rows.Scan(&raw, &name); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid topic id %q: %w", raw, err)
		}
		result[id] = name
	}

	return result, rows.Err()
}

const matchSelect = `SELECT id, article_id, search_profile_id, topic_id, matching_run_id,
	sorting_order, score, comment, user_comment, user_reason, user_ranking, created_at FROM matches`

func scanMatches(rows *sql.Rows) ([]models.Match, error) {
	var matches []models.Match
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		matches = append(matches, *match)
	}
	return matches, rows.Err()
}

func scanMatch(row rowScanner) (*models.Match, error) {
	var (
		m                                 models.Match
		id, articleID, profileID, topicID string
		runID                             string
		createdAt                         int64
	)

	err := row.Scan(&id, &articleID, &profileID, &topicID, &runID, &m.SortingOrder, &m.Score,
		&m.Comment, &m.UserComment, &m.UserReason, &m.UserRanking, &createdAt)
	if err != nil {
		return nil, err
	}

	m.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid match id %q: %w", id, err)
	}
	m.ArticleID, _ = uuid.Parse(articleID)
	m.SearchProfileID, _ = uuid.Parse(profileID)
	m.TopicID, _ = uuid.Parse(topicID)
	m.MatchingRunID, _ = uuid.Parse(runID)
	m.CreatedAt = time.Unix(createdAt, 0)

	return &m, nil
}

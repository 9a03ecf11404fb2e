package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newsradar/backend/internal/storage/models"
	"github.com/newsradar/backend/pkg/logger"
)

// InsertArticle stores a new article. Articles are unique by url; a duplicate
// url is not an error and reports inserted=false.
func (c *Client) InsertArticle(a *models.Article) (bool, error) {
	categories, _ := json.Marshal(a.Categories)
	authors, _ := json.Marshal(a.Authors)

	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := c.db.Exec(
		`INSERT INTO articles (id, url, title, title_en, title_de, content, content_en, content_de,
			summary, summary_en, summary_de, published_at, subscription_id, status, categories,
			authors, language, image_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO NOTHING`,
		a.ID.String(), a.URL, a.Title, a.TitleEN, a.TitleDE, a.Content, a.ContentEN, a.ContentDE,
		a.Summary, a.SummaryEN, a.SummaryDE, a.PublishedAt.Unix(), a.SubscriptionID.String(),
		string(a.Status), string(categories), string(authors), a.Language, a.ImageURL,
		createdAt.Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert article: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		logger.Debug("Article already known", zap.String("url", a.URL))
		return false, nil
	}

	return true, nil
}

// GetArticle returns nil without error when the article does not exist.
func (c *Client) GetArticle(id uuid.UUID) (*models.Article, error) {
	row := c.db.QueryRow(articleSelect+` WHERE id = ?`, id.String())

	article, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return article, nil
}

// GetArticlesByIDs batch-loads articles keyed by id.
func (c *Client) GetArticlesByIDs(ids []uuid.UUID) (map[uuid.UUID]models.Article, error) {
	result := make(map[uuid.UUID]models.Article, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}

	rows, err := c.db.Query(articleSelect+` WHERE id IN (`+placeholders(len(args))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get articles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result[article.ID] = *article
	}

	return result, rows.Err()
}

func (c *Client) UpdateArticleSummary(id uuid.UUID, summary string, status models.ArticleStatus) error {
	_, err := c.db.Exec(
		`UPDATE articles SET summary = ?, status = ? WHERE id = ?`,
		summary, string(status), id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update article summary: %w", err)
	}
	return nil
}

func (c *Client) UpdateArticleTranslations(id uuid.UUID, titleEN, titleDE, summaryEN, summaryDE string) error {
	_, err := c.db.Exec(
		`UPDATE articles SET title_en = ?, title_de = ?, summary_en = ?, summary_de = ?, status = ? WHERE id = ?`,
		titleEN, titleDE, summaryEN, summaryDE, string(models.StatusTranslated), id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update article translations: %w", err)
	}
	return nil
}

const articleSelect = `SELECT id, url, title, title_en, title_de, content, content_en, content_de,
	summary, summary_en, summary_de, published_at, subscription_id, status, categories, authors,
	language, image_url, created_at FROM articles`

func scanArticle(row rowScanner) (*models.Article, error) {
	var (
		a                      models.Article
		id, subscriptionID     string
		status                 string
		categories, authors    string
		publishedAt, createdAt int64
	)

	err := row.Scan(&id, &a.URL, &a.Title, &a.TitleEN, &a.TitleDE, &a.Content, &a.ContentEN,
		&a.ContentDE, &a.Summary, &a.SummaryEN, &a.SummaryDE, &publishedAt, &subscriptionID,
		&status, &categories, &authors, &a.Language, &a.ImageURL, &createdAt)
	if err != nil {
		return nil, err
	}

	a.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid article id %q: %w", id, err)
	}
	a.SubscriptionID, _ = uuid.Parse(subscriptionID)
	a.Status = models.ArticleStatus(status)
	a.PublishedAt = time.Unix(publishedAt, 0)
	a.CreatedAt = time.Unix(createdAt, 0)
	json.Unmarshal([]byte(categories), &a.Categories)
	json.Unmarshal([]byte(authors), &a.Authors)

	return &a, nil
}

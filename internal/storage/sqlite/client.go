package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/newsradar/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS organizations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		name TEXT NOT NULL,
		url TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		FOREIGN KEY (organization_id) REFERENCES organizations(id)
	);
	CREATE INDEX IF NOT EXISTS idx_subscriptions_org ON subscriptions(organization_id);

	CREATE TABLE IF NOT EXISTS search_profiles (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		organization_id TEXT NOT NULL,
		owner_id TEXT,
		public INTEGER NOT NULL DEFAULT 0,
		language TEXT NOT NULL DEFAULT 'en',
		created_at INTEGER NOT NULL,
		FOREIGN KEY (organization_id) REFERENCES organizations(id)
	);
	CREATE INDEX IF NOT EXISTS idx_profiles_org ON search_profiles(organization_id);

	CREATE TABLE IF NOT EXISTS search_profile_subscriptions (
		search_profile_id TEXT NOT NULL,
		subscription_id TEXT NOT NULL,
		PRIMARY KEY (search_profile_id, subscription_id),
		FOREIGN KEY (search_profile_id) REFERENCES search_profiles(id) ON DELETE CASCADE,
		FOREIGN KEY (subscription_id) REFERENCES subscriptions(id)
	);

	CREATE TABLE IF NOT EXISTS topics (
		id TEXT PRIMARY KEY,
		search_profile_id TEXT NOT NULL,
		name TEXT NOT NULL,
		FOREIGN KEY (search_profile_id) REFERENCES search_profiles(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_topics_profile ON topics(search_profile_id);

	CREATE TABLE IF NOT EXISTS keywords (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS topic_keywords (
		topic_id TEXT NOT NULL,
		keyword_id TEXT NOT NULL,
		PRIMARY KEY (topic_id, keyword_id),
		FOREIGN KEY (topic_id) REFERENCES topics(id) ON DELETE CASCADE,
		FOREIGN KEY (keyword_id) REFERENCES keywords(id)
	);
	CREATE INDEX IF NOT EXISTS idx_topic_keywords_keyword ON topic_keywords(keyword_id);

	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL UNIQUE,
		title TEXT,
		title_en TEXT,
		title_de TEXT,
		content TEXT,
		content_en TEXT,
		content_de TEXT,
		summary TEXT,
		summary_en TEXT,
		summary_de TEXT,
		published_at INTEGER,
		subscription_id TEXT,
		status TEXT NOT NULL DEFAULT 'SCRAPED',
		categories TEXT,
		authors TEXT,
		language TEXT,
		image_url TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (subscription_id) REFERENCES subscriptions(id)
	);
	CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published_at);
	CREATE INDEX IF NOT EXISTS idx_articles_subscription ON articles(subscription_id);
	CREATE INDEX IF NOT EXISTS idx_articles_status ON articles(status);

	CREATE TABLE IF NOT EXISTS matching_runs (
		counter INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		run_at INTEGER NOT NULL,
		algorithm_version TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS matches (
		id TEXT PRIMARY KEY,
		article_id TEXT NOT NULL,
		search_profile_id TEXT NOT NULL,
		topic_id TEXT NOT NULL,
		matching_run_id TEXT NOT NULL,
		sorting_order INTEGER NOT NULL,
		score REAL NOT NULL,
		comment TEXT,
		user_comment TEXT,
		user_reason TEXT,
		user_ranking INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		UNIQUE (search_profile_id, article_id),
		FOREIGN KEY (article_id) REFERENCES articles(id),
		FOREIGN KEY (search_profile_id) REFERENCES search_profiles(id) ON DELETE CASCADE,
		FOREIGN KEY (topic_id) REFERENCES topics(id) ON DELETE CASCADE,
		FOREIGN KEY (matching_run_id) REFERENCES matching_runs(id)
	);
	CREATE INDEX IF NOT EXISTS idx_matches_profile ON matches(search_profile_id);
	CREATE INDEX IF NOT EXISTS idx_matches_article ON matches(article_id);
	CREATE INDEX IF NOT EXISTS idx_matches_run ON matches(matching_run_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

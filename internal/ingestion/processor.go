package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/newsradar/backend/internal/llm"
	"github.com/newsradar/backend/internal/metrics"
	"github.com/newsradar/backend/internal/similarity/milvus"
	"github.com/newsradar/backend/internal/storage/models"
	"github.com/newsradar/backend/internal/storage/sqlite"
	"github.com/newsradar/backend/pkg/logger"
)

type Processor struct {
	db        *sqlite.Client
	index     *milvus.Client
	llmClient *llm.Client
	parser    *gofeed.Parser
}

func NewProcessor(db *sqlite.Client, index *milvus.Client, llmClient *llm.Client) *Processor {
	return &Processor{
		db:        db,
		index:     index,
		llmClient: llmClient,
		parser:    gofeed.NewParser(),
	}
}

// ProcessFeed pulls one RSS/Atom feed and ingests every new item as an
// article of the given subscription. Known urls are skipped silently.
func (p *Processor) ProcessFeed(ctx context.Context, feedURL string, subscriptionID uuid.UUID) (int, error) {
	feed, err := p.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to parse feed: %w", err)
	}

	logger.Info("Feed fetched", zap.String("url", feedURL), zap.Int("items", len(feed.Items)))

	ingested := 0
	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}

		publishedAt := time.Now()
		if item.PublishedParsed != nil {
			publishedAt = *item.PublishedParsed
		}

		var authors []string
		for _, a := range item.Authors {
			authors = append(authors, a.Name)
		}

		article := &models.Article{
			ID:             uuid.New(),
			URL:            item.Link,
			Title:          item.Title,
			Content:        stripHTML(item.Content),
			Summary:        stripHTML(item.Description),
			PublishedAt:    publishedAt,
			SubscriptionID: subscriptionID,
			Status:         models.StatusScraped,
			Categories:     item.Categories,
			Authors:        authors,
			Language:       feed.Language,
		}

		ok, err := p.ingestArticle(ctx, article)
		if err != nil {
			logger.Error("Failed to ingest article", zap.String("url", item.Link), zap.Error(err))
			continue
		}
		if ok {
			ingested++
		}
	}

	logger.Info("Feed processed", zap.String("url", feedURL), zap.Int("ingested", ingested))

	return ingested, nil
}

// ProcessArticle ingests a single scraped page.
func (p *Processor) ProcessArticle(ctx context.Context, url, htmlContent string, subscriptionID uuid.UUID) error {
	text, title := cleanHTML(htmlContent)
	if text == "" {
		return fmt.Errorf("no content extracted from HTML")
	}

	article := &models.Article{
		ID:             uuid.New(),
		URL:            url,
		Title:          title,
		Content:        text,
		PublishedAt:    time.Now(),
		SubscriptionID: subscriptionID,
		Status:         models.StatusScraped,
	}

	_, err := p.ingestArticle(ctx, article)
	return err
}

func (p *Processor) ingestArticle(ctx context.Context, article *models.Article) (bool, error) {
	inserted, err := p.db.InsertArticle(article)
	if err != nil {
		return false, fmt.Errorf("failed to store article: %w", err)
	}
	if !inserted {
		return false, nil
	}

	// A missing summary is not fatal; the article stays SCRAPED and can be
	// summarized on a later pass.
	summarySource := article.Content
	if summarySource == "" {
		summarySource = article.Summary
	}
	if summarySource != "" {
		summary, err := p.llmClient.SummarizeArticle(ctx, article.Title, truncate(summarySource, 4000))
		if err != nil {
			logger.Warn("Failed to summarize article", zap.String("url", article.URL), zap.Error(err))
		} else {
			article.Summary = summary
			if err := p.db.UpdateArticleSummary(article.ID, summary, models.StatusSummarized); err != nil {
				logger.Warn("Failed to store summary", zap.Error(err))
			}
		}
	}

	p.translateArticle(ctx, article)

	embedding, err := p.llmClient.GenerateEmbedding(ctx, embeddingText(article))
	if err != nil {
		return false, fmt.Errorf("failed to embed article: %w", err)
	}

	err = p.index.Insert(ctx, []milvus.ArticleEmbedding{{
		ArticleID:   article.ID,
		Embedding:   embedding,
		Title:       article.Title,
		PublishedAt: article.PublishedAt,
	}})
	if err != nil {
		return false, fmt.Errorf("failed to index article: %w", err)
	}

	metrics.ArticlesIngested.Inc()
	logger.Info("Article ingested",
		zap.String("article_id", article.ID.String()),
		zap.String("url", article.URL),
	)

	return true, nil
}

// translateArticle fills the English and German renditions of title and
// summary. Translation failures leave the fields empty; reports fall back to
// the source language.
func (p *Processor) translateArticle(ctx context.Context, article *models.Article) {
	// Feed language codes come as "de" or "de-DE".
	isGerman := strings.HasPrefix(strings.ToLower(article.Language), "de")
	if isGerman {
		article.TitleDE = article.Title
		article.SummaryDE = article.Summary
	} else {
		article.TitleEN = article.Title
		article.SummaryEN = article.Summary
	}

	target := "de"
	if isGerman {
		target = "en"
	}

	title, err := p.llmClient.Translate(ctx, article.Title, target)
	if err != nil {
		logger.Warn("Failed to translate title", zap.String("url", article.URL), zap.Error(err))
		return
	}
	summary := ""
	if article.Summary != "" {
		summary, err = p.llmClient.Translate(ctx, article.Summary, target)
		if err != nil {
			logger.Warn("Failed to translate summary", zap.String("url", article.URL), zap.Error(err))
			return
		}
	}

	if target == "de" {
		article.TitleDE = title
		article.SummaryDE = summary
	} else {
		article.TitleEN = title
		article.SummaryEN = summary
	}

	err = p.db.UpdateArticleTranslations(article.ID, article.TitleEN, article.TitleDE, article.SummaryEN, article.SummaryDE)
	if err != nil {
		logger.Warn("Failed to store translations", zap.Error(err))
	}
}

func embeddingText(article *models.Article) string {
	parts := []string{article.Title}
	if article.Summary != "" {
		parts = append(parts, article.Summary)
	} else if article.Content != "" {
		parts = append(parts, truncate(article.Content, 2000))
	}
	return strings.Join(parts, "\n")
}

func cleanHTML(htmlContent string) (text, title string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", ""
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("script, style, nav, footer, header, aside").Remove()

	var builder strings.Builder
	doc.Find("p, h1, h2, h3, li").Each(func(_ int, s *goquery.Selection) {
		t := strings.TrimSpace(s.Text())
		if t != "" {
			builder.WriteString(t)
			builder.WriteString("\n")
		}
	})

	return strings.TrimSpace(builder.String()), title
}

func stripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/newsradar/backend/internal/ingestion"
	"github.com/newsradar/backend/internal/llm"
	"github.com/newsradar/backend/internal/metrics"
	"github.com/newsradar/backend/internal/similarity/milvus"
	"github.com/newsradar/backend/internal/storage/sqlite"
	"github.com/newsradar/backend/pkg/config"
	appLogger "github.com/newsradar/backend/pkg/logger"
)

// Pulls every subscribed feed once and ingests its new items. Meant to run
// from cron. When crawler.feedUrls is set in the config, only those feeds
// are crawled.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting NewsRadar crawler")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
	)

	milvusClient, err := milvus.NewClient(
		cfg.Milvus.Endpoint,
		cfg.Milvus.APIKey,
		cfg.Milvus.CollectionName,
		cfg.Milvus.VectorDim,
		cfg.Milvus.TopK,
		llmClient,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	err = milvusClient.CreateCollection(context.Background())
	if err != nil {
		appLogger.Fatal("Failed to create collection", zap.Error(err))
	}

	processor := ingestion.NewProcessor(sqliteClient, milvusClient, llmClient)

	subs, err := sqliteClient.FetchFeedSubscriptions()
	if err != nil {
		appLogger.Fatal("Failed to load feed subscriptions", zap.Error(err))
	}

	allowed := make(map[string]bool, len(cfg.Crawler.FeedURLs))
	for _, url := range cfg.Crawler.FeedURLs {
		allowed[url] = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		appLogger.Info("Shutdown requested, stopping crawl")
		cancel()
	}()

	timeout := time.Duration(cfg.Crawler.TimeoutSec) * time.Second
	crawled, ingested := 0, 0

	for _, sub := range subs {
		if ctx.Err() != nil {
			break
		}
		if len(allowed) > 0 && !allowed[sub.URL] {
			continue
		}

		feedCtx, feedCancel := context.WithTimeout(ctx, timeout)
		n, err := processor.ProcessFeed(feedCtx, sub.URL, sub.ID)
		feedCancel()
		if err != nil {
			appLogger.Error("Failed to process feed",
				zap.String("feed_url", sub.URL),
				zap.String("subscription_id", sub.ID.String()),
				zap.Error(err),
			)
			continue
		}

		crawled++
		ingested += n
	}

	appLogger.Info("Crawl finished",
		zap.Int("feeds_crawled", crawled),
		zap.Int("articles_ingested", ingested),
	)
}

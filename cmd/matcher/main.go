package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/newsradar/backend/internal/cache/redis"
	"github.com/newsradar/backend/internal/llm"
	"github.com/newsradar/backend/internal/matching"
	"github.com/newsradar/backend/internal/metrics"
	"github.com/newsradar/backend/internal/similarity/milvus"
	"github.com/newsradar/backend/internal/storage/sqlite"
	"github.com/newsradar/backend/pkg/config"
	appLogger "github.com/newsradar/backend/pkg/logger"
)

// One-shot matching pass over every profile. Meant to run from cron or a
// scheduler; exits non-zero when the pass itself fails, not when individual
// profiles do.
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

	appLogger.Info("Starting NewsRadar matcher")

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

	redisClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		appLogger.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()

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
	milvusClient.WithEmbeddingCache(redisClient)

	scorer := matching.NewScorer(milvusClient, matching.Config{
		TopicWeight:      cfg.Matching.TopicWeight,
		KeywordWeight:    cfg.Matching.KeywordWeight,
		TopicThreshold:   cfg.Matching.TopicThreshold,
		KeywordThreshold: cfg.Matching.KeywordThreshold,
	})
	persister := matching.NewPersister(sqliteClient)
	orchestrator := matching.NewOrchestrator(
		sqliteClient,
		sqliteClient,
		scorer,
		persister,
		redisClient,
		cfg.Matching.ProfilePageSize,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		appLogger.Info("Shutdown requested, cancelling pass")
		cancel()
	}()

	stats, err := orchestrator.Run(ctx)
	if err != nil {
		appLogger.Fatal("Matching pass failed", zap.Error(err))
	}

	appLogger.Info("Matching pass finished",
		zap.String("run_id", stats.RunID.String()),
		zap.Int("profiles_processed", stats.ProfilesProcessed),
		zap.Int("profiles_failed", stats.ProfilesFailed),
		zap.Int("matches_inserted", stats.MatchesInserted),
		zap.Int("matches_skipped", stats.MatchesSkipped),
	)
}

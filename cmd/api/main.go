package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/newsradar/backend/internal/api/handlers"
	"github.com/newsradar/backend/internal/cache/redis"
	"github.com/newsradar/backend/internal/chatbot"
	"github.com/newsradar/backend/internal/ingestion"
	"github.com/newsradar/backend/internal/llm"
	"github.com/newsradar/backend/internal/matching"
	"github.com/newsradar/backend/internal/matchquery"
	"github.com/newsradar/backend/internal/metrics"
	"github.com/newsradar/backend/internal/middleware/ratelimit"
	"github.com/newsradar/backend/internal/middleware/security"
	"github.com/newsradar/backend/internal/middleware/validation"
	"github.com/newsradar/backend/internal/similarity/milvus"
	"github.com/newsradar/backend/internal/storage/sqlite"
	"github.com/newsradar/backend/pkg/config"
	appLogger "github.com/newsradar/backend/pkg/logger"
)

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

	appLogger.Info("Starting NewsRadar API Server")

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

	err = milvusClient.CreateCollection(context.Background())
	if err != nil {
		appLogger.Fatal("Failed to create collection", zap.Error(err))
	}

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

	queryService := matchquery.NewService(sqliteClient, redisClient)
	processor := ingestion.NewProcessor(sqliteClient, milvusClient, llmClient)
	bot := chatbot.NewBot(queryService, llmClient)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Organization-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IsDevelopment:  cfg.Server.IsDevelopment(),
	}))

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.GetLogger()})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{Logger: appLogger.GetLogger()}))

	matchHandler := handlers.NewMatchHandler(queryService)
	profileHandler := handlers.NewProfileHandler(sqliteClient)
	matchingHandler := handlers.NewMatchingHandler(orchestrator)
	articleHandler := handlers.NewArticleHandler(processor)
	chatHandler := handlers.NewChatHandler(bot)

	api := app.Group("/api/v1")

	api.Post("/profiles", profileHandler.CreateProfile)
	api.Get("/profiles", profileHandler.ListProfiles)
	api.Get("/profiles/:id", profileHandler.GetProfile)
	api.Put("/profiles/:id/topics", profileHandler.SyncTopics)

	api.Get("/profiles/:id/matches", matchHandler.GetArticleMatches)
	api.Get("/profiles/:id/matches/:matchID", matchHandler.GetMatchDetail)
	api.Put("/profiles/:id/matches/:matchID/feedback", matchHandler.UpdateMatchFeedback)

	api.Post("/matching/run", matchingHandler.TriggerRun)
	api.Post("/profiles/:id/matching", matchingHandler.MatchProfile)

	api.Post("/articles/feed", articleHandler.IngestFeed)
	api.Post("/articles", articleHandler.IngestArticle)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(chatHandler.HandleConnection))

	app.Get("/metrics", metrics.MetricsHandler())

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}

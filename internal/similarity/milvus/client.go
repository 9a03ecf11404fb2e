package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/newsradar/backend/internal/metrics"
	"github.com/newsradar/backend/internal/similarity"
	"github.com/newsradar/backend/pkg/logger"
	"github.com/newsradar/backend/pkg/utils"
)

// Embedder turns text into a vector. Satisfied by the LLM client.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingCache stores query embeddings. Topic and keyword queries repeat
// across profiles, so caching saves most embedding calls during a pass.
// Optional; a nil cache disables it.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error
}

type Client struct {
	client         client.Client
	embedder       Embedder
	cache          EmbeddingCache
	collectionName string
	vectorDim      int
	topK           int
}

// ArticleEmbedding is one article's entry in the vector index.
type ArticleEmbedding struct {
	ArticleID   uuid.UUID
	Embedding   []float32
	Title       string
	PublishedAt time.Time
}

func NewClient(endpoint, apiKey, collectionName string, vectorDim, topK int, embedder Embedder) (*Client, error) {
	c, err := client.NewGrpcClient(
		context.Background(),
		endpoint,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		embedder:       embedder,
		collectionName: collectionName,
		vectorDim:      vectorDim,
		topK:           topK,
	}, nil
}

// WithEmbeddingCache enables query embedding caching.
func (m *Client) WithEmbeddingCache(cache EmbeddingCache) *Client {
	m.cache = cache
	return m
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) CreateCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Article embeddings",
		Fields: []*entity.Field{
			{
				Name:       "article_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:     "title",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "1024",
				},
			},
			{
				Name:     "published_at",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.IP, 1024)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	err = m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

// Insert upserts article embeddings into the index.
func (m *Client) Insert(ctx context.Context, articles []ArticleEmbedding) error {
	if len(articles) == 0 {
		return nil
	}

	ids := make([]string, len(articles))
	embeddings := make([][]float32, len(articles))
	titles := make([]string, len(articles))
	publishedAts := make([]int64, len(articles))

	for i, a := range articles {
		ids[i] = a.ArticleID.String()
		embeddings[i] = a.Embedding
		titles[i] = a.Title
		publishedAts[i] = a.PublishedAt.Unix()
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("article_id", ids),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnInt64("published_at", publishedAts),
	)
	if err != nil {
		return fmt.Errorf("failed to insert embeddings: %w", err)
	}

	err = m.client.Flush(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Article embeddings inserted", zap.Int("count", len(articles)))

	return nil
}

// RetrieveBySimilarity embeds the query and returns candidate articles above
// the score threshold, ranked by similarity.
func (m *Client) RetrieveBySimilarity(ctx context.Context, query string, scoreThreshold float64) ([]similarity.ScoredDocument, error) {
	embedding, err := m.queryEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		"",
		[]string{"article_id"},
		[]entity.Vector{entity.FloatVector(embedding)},
		"embedding",
		entity.IP,
		m.topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]similarity.ScoredDocument, 0)
	for _, sr := range searchResult {
		idCol := sr.Fields.GetColumn("article_id")
		for i := 0; i < sr.ResultCount; i++ {
			score := float64(sr.Scores[i])
			if score < scoreThreshold {
				continue
			}

			raw, err := idCol.Get(i)
			if err != nil {
				return nil, fmt.Errorf("failed to read result column: %w", err)
			}
			articleID, err := uuid.Parse(raw.(string))
			if err != nil {
				return nil, fmt.Errorf("invalid article id in index %q: %w", raw, err)
			}

			results = append(results, similarity.ScoredDocument{
				ArticleID: articleID,
				Score:     score,
			})
		}
	}

	metrics.SimilarityResults.Observe(float64(len(results)))

	logger.Debug("Similarity search completed",
		zap.String("query", query),
		zap.Float64("threshold", scoreThreshold),
		zap.Int("results", len(results)),
	)

	return results, nil
}

func (m *Client) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	if m.cache == nil {
		return m.embedder.GenerateEmbedding(ctx, query)
	}

	hash := utils.HashString(query)
	cached, hit, err := m.cache.GetEmbedding(ctx, hash)
	if err != nil {
		logger.Warn("Embedding cache lookup failed", zap.Error(err))
	} else if hit {
		metrics.CacheHits.WithLabelValues("embedding").Inc()
		return cached, nil
	}
	metrics.CacheMisses.WithLabelValues("embedding").Inc()

	embedding, err := m.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	if err := m.cache.SetEmbedding(ctx, hash, embedding, time.Hour); err != nil {
		logger.Warn("Failed to cache embedding", zap.Error(err))
	}

	return embedding, nil
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/newsradar/backend/pkg/logger"
)

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func matchKey(profileID uuid.UUID, requestHash string) string {
	return fmt.Sprintf("matches:%s:%s", profileID.String(), requestHash)
}

// SetOverview caches a computed match overview for one profile and request.
func (c *Client) SetOverview(ctx context.Context, profileID uuid.UUID, requestHash string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal overview: %w", err)
	}

	err = c.client.Set(ctx, matchKey(profileID, requestHash), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set overview cache: %w", err)
	}

	logger.Debug("Overview cached", zap.String("profile_id", profileID.String()), zap.Duration("ttl", ttl))
	return nil
}

func (c *Client) GetOverview(ctx context.Context, profileID uuid.UUID, requestHash string, out interface{}) (bool, error) {
	data, err := c.client.Get(ctx, matchKey(profileID, requestHash)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get overview cache: %w", err)
	}

	err = json.Unmarshal(data, out)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal overview: %w", err)
	}

	logger.Debug("Overview cache hit", zap.String("profile_id", profileID.String()))
	return true, nil
}

// InvalidateMatches drops every cached overview for the profile. Called after
// a matching pass gives the profile new matches.
func (c *Client) InvalidateMatches(ctx context.Context, profileID uuid.UUID) error {
	pattern := fmt.Sprintf("matches:%s:*", profileID.String())

	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		err := c.client.Del(ctx, iter.Val()).Err()
		if err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	return nil
}

func (c *Client) SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	err = c.client.Set(ctx, fmt.Sprintf("embedding:%s", textHash), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set embedding cache: %w", err)
	}

	return nil
}

func (c *Client) GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("embedding:%s", textHash)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get embedding cache: %w", err)
	}

	var embedding []float32
	err = json.Unmarshal(data, &embedding)
	if err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}

	return embedding, true, nil
}

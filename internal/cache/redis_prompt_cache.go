package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"prompt-service/internal/interfaces"
	"prompt-service/internal/models"
)

const (
	latestKeyPrefix     = "prompt:latest:"
	versionKeyPrefix    = "prompt:latest_version:"
	generationKeyPrefix = "prompt:generation:"
)

// DefaultTTL is used when the cache is created with a non-positive TTL.
const DefaultTTL = 10 * time.Minute

var _ interfaces.PromptCache = (*RedisPromptCache)(nil)

// setLatestScript writes a cache entry only while the model generation still equals
// ARGV[5] and the cached version (if any) is lower than ARGV[3].
//
// KEYS: latest hash, version hash, generation counter.
// ARGV: name, json prompt, version, ttl in ms, expected generation.
var setLatestScript = redis.NewScript(`
local generation = tonumber(redis.call('GET', KEYS[3]) or '0')
if generation ~= tonumber(ARGV[5]) then
	return 0
end
local cached = tonumber(redis.call('HGET', KEYS[2], ARGV[1]) or '0')
if cached >= tonumber(ARGV[3]) then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
redis.call('PEXPIRE', KEYS[2], ARGV[4])
return 1
`)

// RedisPromptCache keeps the latest version of every prompt in hashes per model:
//
//	prompt:latest:<model_name>         -> { <name>: <json prompt> }
//	prompt:latest_version:<model_name> -> { <name>: <version> }
//	prompt:generation:<model_name>     -> invalidation counter, no TTL
type RedisPromptCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisPromptCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisPromptCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisPromptCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisPromptCache"),
	}
}

func latestKey(modelName string) string {
	return latestKeyPrefix + modelName
}

func versionKey(modelName string) string {
	return versionKeyPrefix + modelName
}

func generationKey(modelName string) string {
	return generationKeyPrefix + modelName
}

// GetLatest returns (nil, nil) on a cache miss.
func (c *RedisPromptCache) GetLatest(ctx context.Context, name, modelName string) (*models.Prompt, error) {
	raw, err := c.client.HGet(ctx, latestKey(modelName), name).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached prompt: %w", err)
	}

	var prompt models.Prompt
	if err := json.Unmarshal(raw, &prompt); err != nil {
		// Битая запись: удаляем и считаем промахом.
		c.logger.Warn("Dropping undecodable cache entry", zap.String("name", name), zap.String("model", modelName), zap.Error(err))
		pipe := c.client.TxPipeline()
		pipe.HDel(ctx, latestKey(modelName), name)
		pipe.HDel(ctx, versionKey(modelName), name)
		_, _ = pipe.Exec(ctx)
		return nil, nil
	}
	return &prompt, nil
}

// Generation returns 0 for a model that was never invalidated.
func (c *RedisPromptCache) Generation(ctx context.Context, modelName string) (int64, error) {
	generation, err := c.client.Get(ctx, generationKey(modelName)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read cache generation: %w", err)
	}
	return generation, nil
}

func (c *RedisPromptCache) SetLatest(ctx context.Context, prompt *models.Prompt, generation int64) (bool, error) {
	raw, err := json.Marshal(prompt)
	if err != nil {
		return false, fmt.Errorf("failed to marshal prompt for cache: %w", err)
	}

	keys := []string{latestKey(prompt.ModelName), versionKey(prompt.ModelName), generationKey(prompt.ModelName)}
	written, err := setLatestScript.Run(ctx, c.client, keys,
		prompt.Name, raw, prompt.Version, c.ttl.Milliseconds(), generation).Int()
	if err != nil {
		return false, fmt.Errorf("failed to cache prompt: %w", err)
	}
	if written == 0 {
		c.logger.Debug("Skipped stale cache fill", zap.String("name", prompt.Name), zap.String("model", prompt.ModelName), zap.Int("version", prompt.Version), zap.Int64("generation", generation))
		return false, nil
	}
	c.logger.Debug("Cached latest prompt", zap.String("name", prompt.Name), zap.String("model", prompt.ModelName), zap.Int("version", prompt.Version))
	return true, nil
}

// Invalidate drops the entry and bumps the model generation so in-flight fills are discarded.
func (c *RedisPromptCache) Invalidate(ctx context.Context, name, modelName string) error {
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, generationKey(modelName))
	pipe.HDel(ctx, latestKey(modelName), name)
	pipe.HDel(ctx, versionKey(modelName), name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to invalidate cached prompt: %w", err)
	}
	return nil
}

func (c *RedisPromptCache) InvalidateModel(ctx context.Context, modelName string) error {
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, generationKey(modelName))
	pipe.Del(ctx, latestKey(modelName), versionKey(modelName))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to invalidate cached model prompts: %w", err)
	}
	return nil
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"prompt-service/internal/models"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisPromptCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisPromptCache(client, time.Minute, zap.NewNop())
}

func setLatest(t *testing.T, c *RedisPromptCache, p *models.Prompt, generation int64) {
	t.Helper()
	stored, err := c.SetLatest(context.Background(), p, generation)
	require.NoError(t, err)
	require.True(t, stored)
}

func TestRedisPromptCache_MissReturnsNil(t *testing.T) {
	_, c := setupTestRedis(t)

	got, err := c.GetLatest(context.Background(), "greet", "m1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisPromptCache_SetAndGet(t *testing.T) {
	mr, c := setupTestRedis(t)
	ctx := context.Background()
	p := &models.Prompt{ID: 3, Name: "greet", ModelName: "m1", Prompt: "hi {user}", Version: 2, LastUpdated: time.Now().UTC().Truncate(time.Second)}

	stored, err := c.SetLatest(ctx, p, 0)
	require.NoError(t, err)
	assert.True(t, stored)

	got, err := c.GetLatest(ctx, "greet", "m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.Version, got.Version)
	assert.Equal(t, p.Prompt, got.Prompt)
	assert.True(t, p.LastUpdated.Equal(got.LastUpdated))

	assert.True(t, mr.Exists("prompt:latest:m1"))
	assert.Equal(t, time.Minute, mr.TTL("prompt:latest:m1"))
}

func TestRedisPromptCache_TTLExpires(t *testing.T) {
	mr, c := setupTestRedis(t)
	ctx := context.Background()
	setLatest(t, c, &models.Prompt{Name: "greet", ModelName: "m1", Version: 1}, 0)

	mr.FastForward(2 * time.Minute)

	got, err := c.GetLatest(ctx, "greet", "m1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisPromptCache_Invalidate(t *testing.T) {
	_, c := setupTestRedis(t)
	ctx := context.Background()
	setLatest(t, c, &models.Prompt{Name: "a", ModelName: "m1", Version: 1}, 0)
	setLatest(t, c, &models.Prompt{Name: "b", ModelName: "m1", Version: 1}, 0)
	setLatest(t, c, &models.Prompt{Name: "a", ModelName: "m2", Version: 1}, 0)

	require.NoError(t, c.Invalidate(ctx, "a", "m1"))
	got, err := c.GetLatest(ctx, "a", "m1")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = c.GetLatest(ctx, "b", "m1")
	require.NoError(t, err)
	assert.NotNil(t, got)

	require.NoError(t, c.InvalidateModel(ctx, "m1"))
	got, err = c.GetLatest(ctx, "b", "m1")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = c.GetLatest(ctx, "a", "m2")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestRedisPromptCache_CorruptEntryIsMiss(t *testing.T) {
	mr, c := setupTestRedis(t)
	mr.HSet("prompt:latest:m1", "greet", "{not json")

	got, err := c.GetLatest(context.Background(), "greet", "m1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, mr.Exists("prompt:latest:m1"))
}

func TestRedisPromptCache_ConnectionError(t *testing.T) {
	mr, c := setupTestRedis(t)
	mr.Close()

	_, err := c.GetLatest(context.Background(), "greet", "m1")
	assert.Error(t, err)
}

func TestRedisPromptCache_OlderVersionNotWritten(t *testing.T) {
	_, c := setupTestRedis(t)
	ctx := context.Background()
	setLatest(t, c, &models.Prompt{Name: "greet", ModelName: "m1", Prompt: "v2", Version: 2}, 0)

	for _, version := range []int{1, 2} {
		stored, err := c.SetLatest(ctx, &models.Prompt{Name: "greet", ModelName: "m1", Prompt: "old", Version: version}, 0)
		require.NoError(t, err)
		assert.False(t, stored, "version %d", version)
	}

	setLatest(t, c, &models.Prompt{Name: "greet", ModelName: "m1", Prompt: "v3", Version: 3}, 0)
	got, err := c.GetLatest(ctx, "greet", "m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "v3", got.Prompt)
}

func TestRedisPromptCache_GenerationGuardsFill(t *testing.T) {
	_, c := setupTestRedis(t)
	ctx := context.Background()

	gen, err := c.Generation(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)

	setLatest(t, c, &models.Prompt{Name: "greet", ModelName: "m1", Version: 3}, gen)
	require.NoError(t, c.Invalidate(ctx, "greet", "m1"))

	// Fill that started before the invalidation.
	stored, err := c.SetLatest(ctx, &models.Prompt{Name: "greet", ModelName: "m1", Version: 3}, gen)
	require.NoError(t, err)
	assert.False(t, stored)
	got, err := c.GetLatest(ctx, "greet", "m1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// A fresh generation may reuse the freed version number.
	gen, err = c.Generation(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
	setLatest(t, c, &models.Prompt{Name: "greet", ModelName: "m1", Version: 3}, gen)

	require.NoError(t, c.InvalidateModel(ctx, "m1"))
	stored, err = c.SetLatest(ctx, &models.Prompt{Name: "other", ModelName: "m1", Version: 1}, gen)
	require.NoError(t, err)
	assert.False(t, stored)

	gen, err = c.Generation(ctx, "m2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen, "generations are per model")
}

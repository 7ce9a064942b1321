// Package app wires configuration into a ready PromptService for the binaries.
package app

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"prompt-service/internal/cache"
	"prompt-service/internal/config"
	"prompt-service/internal/database"
	"prompt-service/internal/interfaces"
	"prompt-service/internal/messaging"
	"prompt-service/internal/service"
)

// Deps holds everything built from Config. Close releases it in reverse order.
type Deps struct {
	Service service.PromptService
	closers []func()
}

func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

// Build connects the store, cache and event publisher selected by cfg.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Deps, error) {
	deps := &Deps{}
	fail := func(err error) (*Deps, error) {
		deps.Close()
		return nil, err
	}

	repo, err := setupStore(ctx, cfg, logger, deps)
	if err != nil {
		return fail(err)
	}

	var promptCache interfaces.PromptCache
	if cfg.RedisAddr != "" {
		rdb, err := setupRedis(ctx, cfg, logger)
		if err != nil {
			return fail(err)
		}
		deps.closers = append(deps.closers, func() { _ = rdb.Close() })
		promptCache = cache.NewRedisPromptCache(rdb, cfg.CacheTTL, logger)
	} else {
		logger.Info("REDIS_ADDR not set, latest-prompt cache disabled")
	}

	var publisher interfaces.PromptEventPublisher = messaging.NoopPromptPublisher{}
	if cfg.RabbitMQURL != "" {
		conn, err := connectRabbitMQ(cfg.RabbitMQURL, logger)
		if err != nil {
			return fail(fmt.Errorf("failed to connect to RabbitMQ: %w", err))
		}
		deps.closers = append(deps.closers, func() { _ = conn.Close() })
		pub, err := messaging.NewRabbitMQPromptPublisher(conn)
		if err != nil {
			return fail(err)
		}
		deps.closers = append(deps.closers, func() { _ = pub.Close() })
		publisher = pub
	} else {
		logger.Info("RABBITMQ_URL not set, prompt events disabled")
	}

	deps.Service = service.NewPromptService(
		service.Config{VersionMaxAttempts: cfg.VersionMaxAttempts},
		repo, promptCache, publisher, logger,
	)
	return deps, nil
}

func setupStore(ctx context.Context, cfg *config.Config, logger *zap.Logger, deps *Deps) (interfaces.PromptRepository, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("Using in-memory prompt store, data is lost on restart")
		return database.NewMemoryPromptRepository(), nil
	}

	logger.Info("Connecting to PostgreSQL", zap.String("dsn", cfg.RedactedDSN()))
	pool, err := database.NewPool(ctx, database.PoolConfig{
		DSN:             cfg.GetDSN(),
		MaxConns:        cfg.DBMaxConns,
		MaxConnIdleTime: cfg.DBIdleTimeout,
	})
	if err != nil {
		return nil, err
	}
	deps.closers = append(deps.closers, pool.Close)

	if cfg.DBAutoMigrate {
		if err := database.ApplyMigrations(ctx, pool); err != nil {
			return nil, err
		}
	}
	return database.NewPgPromptRepository(pool), nil
}

func setupRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
	}
	logger.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.CacheTTL))
	return rdb, nil
}

func connectRabbitMQ(url string, logger *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	maxRetries := 5
	retryDelay := 5 * time.Second
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			logger.Info("Connected to RabbitMQ")
			return conn, nil
		}
		logger.Warn("Не удалось подключиться к RabbitMQ",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_delay", retryDelay),
			zap.Error(err),
		)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	return nil, err
}

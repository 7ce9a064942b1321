package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"prompt-service/internal/interfaces"
	"prompt-service/internal/models"
	"prompt-service/internal/validation"
)

// DefaultVersionMaxAttempts bounds the compute-then-insert loop in CreateNewVersion.
const DefaultVersionMaxAttempts = 3

// PromptService определяет бизнес-логику версионирования промптов.
type PromptService interface {
	ListLatest(ctx context.Context) ([]*models.Prompt, error)
	Get(ctx context.Context, name, modelName string, version int) (*models.Prompt, error)
	GetLatest(ctx context.Context, name, modelName string) (*models.Prompt, error)
	GetAllVersions(ctx context.Context, name, modelName string) ([]*models.Prompt, error)
	CreateNewVersion(ctx context.Context, req models.PromptCreateRequest) (*models.Prompt, error)
	Delete(ctx context.Context, name, modelName string, version int) (bool, error)
	DeleteAllForModel(ctx context.Context, modelName string) (bool, error)
}

// Config tunes PromptServiceImpl.
type Config struct {
	VersionMaxAttempts int
}

type PromptServiceImpl struct {
	repo        interfaces.PromptRepository
	cache       interfaces.PromptCache // nil disables caching
	publisher   interfaces.PromptEventPublisher
	logger      *zap.Logger
	maxAttempts int
	now         func() time.Time
}

var _ PromptService = (*PromptServiceImpl)(nil)

func NewPromptService(
	cfg Config,
	repo interfaces.PromptRepository,
	cache interfaces.PromptCache,
	publisher interfaces.PromptEventPublisher,
	logger *zap.Logger,
) *PromptServiceImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	if repo == nil {
		logger.Fatal("PromptRepository is nil for PromptService")
	}
	if publisher == nil {
		logger.Fatal("PromptEventPublisher is nil for PromptService")
	}
	maxAttempts := cfg.VersionMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultVersionMaxAttempts
	}
	return &PromptServiceImpl{
		repo:        repo,
		cache:       cache,
		publisher:   publisher,
		logger:      logger.Named("PromptService"),
		maxAttempts: maxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *PromptServiceImpl) ListLatest(ctx context.Context) ([]*models.Prompt, error) {
	prompts, err := s.repo.ListLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest prompts: %w", err)
	}
	return prompts, nil
}

func (s *PromptServiceImpl) Get(ctx context.Context, name, modelName string, version int) (*models.Prompt, error) {
	prompt, err := s.repo.Get(ctx, name, modelName, version)
	if err != nil {
		if errors.Is(err, models.ErrPromptNotFound) {
			s.logger.Debug("Prompt version not found", zap.String("name", name), zap.String("model", modelName), zap.Int("version", version))
			return nil, err
		}
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}
	return prompt, nil
}

// GetLatest reads through the cache when one is configured. The cache generation is
// read before the store, so a fill that raced a write or delete is dropped by the cache.
func (s *PromptServiceImpl) GetLatest(ctx context.Context, name, modelName string) (*models.Prompt, error) {
	log := s.logger.With(zap.String("name", name), zap.String("model", modelName))

	var (
		generation int64
		fill       bool
	)
	if s.cache != nil {
		cached, err := s.cache.GetLatest(ctx, name, modelName)
		switch {
		case err != nil:
			log.Warn("Cache lookup failed, falling back to store", zap.Error(err))
		case cached != nil:
			promptCacheLookupsTotal.WithLabelValues("hit").Inc()
			return cached, nil
		default:
			promptCacheLookupsTotal.WithLabelValues("miss").Inc()
		}
		generation, fill = s.cacheGeneration(ctx, modelName)
	}

	prompt, err := s.repo.GetLatest(ctx, name, modelName)
	if err != nil {
		if errors.Is(err, models.ErrPromptNotFound) {
			log.Debug("Prompt not found")
			return nil, err
		}
		return nil, fmt.Errorf("failed to get latest prompt: %w", err)
	}

	if fill {
		if _, err := s.cache.SetLatest(ctx, prompt, generation); err != nil {
			log.Warn("Failed to cache latest prompt", zap.Error(err))
		}
	}
	return prompt, nil
}

func (s *PromptServiceImpl) GetAllVersions(ctx context.Context, name, modelName string) ([]*models.Prompt, error) {
	prompts, err := s.repo.ListVersions(ctx, name, modelName)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompt versions: %w", err)
	}
	return prompts, nil
}

// CreateNewVersion validates the request and stores it as latest+1 (or 1 for a new key).
// A lost race on the (name, model_name, version) uniqueness constraint is retried with a
// recomputed version until the attempt budget runs out, then models.ErrVersionConflict
// is returned.
func (s *PromptServiceImpl) CreateNewVersion(ctx context.Context, req models.PromptCreateRequest) (*models.Prompt, error) {
	log := s.logger.With(zap.String("name", req.Name), zap.String("model", req.ModelName))

	if err := validation.Validate(req.Name, req.Prompt, req.ModelName); err != nil {
		var vErr *validation.ValidationError
		if errors.As(err, &vErr) {
			promptValidationFailuresTotal.WithLabelValues(string(vErr.Rule)).Inc()
		}
		log.Info("Prompt rejected by validation", zap.Error(err))
		return nil, err
	}

	generation, fill := s.cacheGeneration(ctx, req.ModelName)

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next, err := s.nextVersion(ctx, req.Name, req.ModelName)
		if err != nil {
			return nil, err
		}

		prompt := &models.Prompt{
			Name:        req.Name,
			Prompt:      req.Prompt,
			ModelName:   req.ModelName,
			Version:     next,
			LastUpdated: s.now(),
		}
		err = s.repo.Insert(ctx, prompt)
		if err == nil {
			promptVersionsCreatedTotal.Inc()
			log.Info("Prompt version created", zap.Int("version", prompt.Version), zap.Int64("id", prompt.ID))
			s.cacheCreated(ctx, prompt, generation, fill)
			s.publish(ctx, models.PromptEvent{
				EventType:  models.PromptEventTypeCreated,
				ID:         prompt.ID,
				Name:       prompt.Name,
				ModelName:  prompt.ModelName,
				Version:    prompt.Version,
				Prompt:     prompt.Prompt,
				OccurredAt: prompt.LastUpdated,
			})
			return prompt, nil
		}
		if !errors.Is(err, models.ErrVersionConflict) {
			return nil, fmt.Errorf("failed to insert prompt version: %w", err)
		}

		promptVersionConflictsTotal.Inc()
		log.Warn("Prompt version conflict, recomputing", zap.Int("version", next), zap.Int("attempt", attempt))
	}

	log.Error("Prompt version conflict not resolved", zap.Int("attempts", s.maxAttempts))
	return nil, models.ErrVersionConflict
}

func (s *PromptServiceImpl) nextVersion(ctx context.Context, name, modelName string) (int, error) {
	latest, err := s.repo.GetLatest(ctx, name, modelName)
	if err != nil {
		if errors.Is(err, models.ErrPromptNotFound) {
			return 1, nil
		}
		return 0, fmt.Errorf("failed to read latest prompt version: %w", err)
	}
	return latest.Version + 1, nil
}

// Delete removes one exact version. Remaining versions are not renumbered.
func (s *PromptServiceImpl) Delete(ctx context.Context, name, modelName string, version int) (bool, error) {
	deleted, err := s.repo.Delete(ctx, name, modelName, version)
	if err != nil {
		return false, fmt.Errorf("failed to delete prompt version: %w", err)
	}
	if !deleted {
		s.logger.Debug("Nothing deleted", zap.String("name", name), zap.String("model", modelName), zap.Int("version", version))
		return false, nil
	}

	s.logger.Info("Prompt version deleted", zap.String("name", name), zap.String("model", modelName), zap.Int("version", version))
	promptDeletesTotal.WithLabelValues("version").Inc()
	s.invalidate(ctx, name, modelName)
	s.publish(ctx, models.PromptEvent{
		EventType:  models.PromptEventTypeDeleted,
		Name:       name,
		ModelName:  modelName,
		Version:    version,
		OccurredAt: s.now(),
	})
	return true, nil
}

func (s *PromptServiceImpl) DeleteAllForModel(ctx context.Context, modelName string) (bool, error) {
	n, err := s.repo.DeleteByModel(ctx, modelName)
	if err != nil {
		return false, fmt.Errorf("failed to delete prompts for model: %w", err)
	}
	if n == 0 {
		s.logger.Debug("Nothing deleted for model", zap.String("model", modelName))
		return false, nil
	}

	s.logger.Info("Deleted prompts for model", zap.String("model", modelName), zap.Int64("count", n))
	promptDeletesTotal.WithLabelValues("model").Inc()
	if s.cache != nil {
		if err := s.cache.InvalidateModel(ctx, modelName); err != nil {
			s.logger.Warn("Failed to invalidate cached model prompts", zap.String("model", modelName), zap.Error(err))
		}
	}
	s.publish(ctx, models.PromptEvent{
		EventType:  models.PromptEventTypeModelDeleted,
		ModelName:  modelName,
		OccurredAt: s.now(),
	})
	return true, nil
}

// cacheGeneration reports ok=false when there is no cache or it cannot be read.
func (s *PromptServiceImpl) cacheGeneration(ctx context.Context, modelName string) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	generation, err := s.cache.Generation(ctx, modelName)
	if err != nil {
		s.logger.Warn("Failed to read cache generation", zap.String("model", modelName), zap.Error(err))
		return 0, false
	}
	return generation, true
}

// cacheCreated writes a new version through the cache. If the write is refused or
// fails, the entry is invalidated so an older cached version cannot outlive it.
func (s *PromptServiceImpl) cacheCreated(ctx context.Context, prompt *models.Prompt, generation int64, fill bool) {
	if s.cache == nil {
		return
	}
	if fill {
		stored, err := s.cache.SetLatest(ctx, prompt, generation)
		if err == nil && stored {
			return
		}
		if err != nil {
			s.logger.Warn("Failed to cache created prompt", zap.String("name", prompt.Name), zap.String("model", prompt.ModelName), zap.Error(err))
		}
	}
	s.invalidate(ctx, prompt.Name, prompt.ModelName)
}

// Запись уже сохранена: ошибки кэша и публикации только логируются.
func (s *PromptServiceImpl) invalidate(ctx context.Context, name, modelName string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, name, modelName); err != nil {
		s.logger.Warn("Failed to invalidate cached prompt", zap.String("name", name), zap.String("model", modelName), zap.Error(err))
	}
}

func (s *PromptServiceImpl) publish(ctx context.Context, event models.PromptEvent) {
	if err := s.publisher.PublishPromptEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish prompt event",
			zap.String("eventType", string(event.EventType)),
			zap.String("name", event.Name),
			zap.String("model", event.ModelName),
			zap.Error(err),
		)
	}
}

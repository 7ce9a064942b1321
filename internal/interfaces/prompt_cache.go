package interfaces

import (
	"context"

	"prompt-service/internal/models"
)

// PromptCache caches the latest version per (name, model_name).
// A miss is reported as (nil, nil).
//
// Every model has a generation counter that Invalidate and InvalidateModel bump.
// Callers read the generation before loading from the store and hand it to
// SetLatest, so a fill that raced an invalidation is discarded.
type PromptCache interface {
	GetLatest(ctx context.Context, name, modelName string) (*models.Prompt, error)
	Generation(ctx context.Context, modelName string) (int64, error)
	// SetLatest stores prompt unless the generation has moved on or the cache already
	// holds the same or a newer version. It reports whether the entry was written.
	SetLatest(ctx context.Context, prompt *models.Prompt, generation int64) (bool, error)
	Invalidate(ctx context.Context, name, modelName string) error
	InvalidateModel(ctx context.Context, modelName string) error
}

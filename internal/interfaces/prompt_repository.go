package interfaces

import (
	"context"

	"prompt-service/internal/models"
)

// PromptRepository defines the interface for prompt version storage.
//
// Implementations must enforce uniqueness of (name, model_name, version) and
// report a violation from Insert as models.ErrVersionConflict.
type PromptRepository interface {
	// ListLatest returns the max-version record of every (name, model_name), ordered by name, model_name.
	ListLatest(ctx context.Context) ([]*models.Prompt, error)

	// Get returns one exact version or models.ErrPromptNotFound.
	Get(ctx context.Context, name, modelName string, version int) (*models.Prompt, error)

	// GetLatest returns the max-version record for the key or models.ErrPromptNotFound.
	GetLatest(ctx context.Context, name, modelName string) (*models.Prompt, error)

	// ListVersions returns every version for the key, newest first.
	ListVersions(ctx context.Context, name, modelName string) ([]*models.Prompt, error)

	// Insert stores a new version. ID (and LastUpdated when zero) are filled in.
	Insert(ctx context.Context, prompt *models.Prompt) error

	// Delete removes one exact version and reports whether a row was removed.
	Delete(ctx context.Context, name, modelName string, version int) (bool, error)

	// DeleteByModel removes every version of every prompt for the model and returns the row count.
	DeleteByModel(ctx context.Context, modelName string) (int64, error)
}

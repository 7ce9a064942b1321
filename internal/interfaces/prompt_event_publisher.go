package interfaces

import (
	"context"

	"prompt-service/internal/models"
)

// PromptEventPublisher defines the interface for publishing prompt change events.
type PromptEventPublisher interface {
	PublishPromptEvent(ctx context.Context, event models.PromptEvent) error
}

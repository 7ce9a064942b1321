package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"prompt-service/internal/interfaces"
	"prompt-service/internal/models"
)

// Mock PromptEventPublisher
type PromptEventPublisher struct {
	mock.Mock
}

func (m *PromptEventPublisher) PublishPromptEvent(ctx context.Context, event models.PromptEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// Mock PromptCache
type PromptCache struct {
	mock.Mock
}

func (m *PromptCache) GetLatest(ctx context.Context, name, modelName string) (*models.Prompt, error) {
	args := m.Called(ctx, name, modelName)
	p, _ := args.Get(0).(*models.Prompt)
	return p, args.Error(1)
}
func (m *PromptCache) Generation(ctx context.Context, modelName string) (int64, error) {
	args := m.Called(ctx, modelName)
	return args.Get(0).(int64), args.Error(1)
}
func (m *PromptCache) SetLatest(ctx context.Context, prompt *models.Prompt, generation int64) (bool, error) {
	args := m.Called(ctx, prompt, generation)
	return args.Bool(0), args.Error(1)
}
func (m *PromptCache) Invalidate(ctx context.Context, name, modelName string) error {
	args := m.Called(ctx, name, modelName)
	return args.Error(0)
}
func (m *PromptCache) InvalidateModel(ctx context.Context, modelName string) error {
	args := m.Called(ctx, modelName)
	return args.Error(0)
}

var (
	_ interfaces.PromptEventPublisher = (*PromptEventPublisher)(nil)
	_ interfaces.PromptCache          = (*PromptCache)(nil)
)

package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"prompt-service/internal/interfaces"
	"prompt-service/internal/models"
)

var _ interfaces.PromptRepository = (*MemoryPromptRepository)(nil)

type promptKey struct {
	name      string
	modelName string
}

// MemoryPromptRepository keeps prompt versions in process memory.
// The mutex is held only for the duration of a single call.
type MemoryPromptRepository struct {
	mu     sync.RWMutex
	nextID int64
	byKey  map[promptKey]map[int]*models.Prompt
}

func NewMemoryPromptRepository() *MemoryPromptRepository {
	return &MemoryPromptRepository{byKey: make(map[promptKey]map[int]*models.Prompt)}
}

func (r *MemoryPromptRepository) ListLatest(_ context.Context) ([]*models.Prompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Prompt, 0, len(r.byKey))
	for _, versions := range r.byKey {
		if latest := latestOf(versions); latest != nil {
			out = append(out, clonePrompt(latest))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ModelName < out[j].ModelName
	})
	return out, nil
}

func (r *MemoryPromptRepository) Get(_ context.Context, name, modelName string, version int) (*models.Prompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byKey[promptKey{name, modelName}][version]
	if !ok {
		return nil, models.ErrPromptNotFound
	}
	return clonePrompt(p), nil
}

func (r *MemoryPromptRepository) GetLatest(_ context.Context, name, modelName string) (*models.Prompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	latest := latestOf(r.byKey[promptKey{name, modelName}])
	if latest == nil {
		return nil, models.ErrPromptNotFound
	}
	return clonePrompt(latest), nil
}

func (r *MemoryPromptRepository) ListVersions(_ context.Context, name, modelName string) ([]*models.Prompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.byKey[promptKey{name, modelName}]
	out := make([]*models.Prompt, 0, len(versions))
	for _, p := range versions {
		out = append(out, clonePrompt(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (r *MemoryPromptRepository) Insert(_ context.Context, prompt *models.Prompt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := promptKey{prompt.Name, prompt.ModelName}
	versions, ok := r.byKey[key]
	if !ok {
		versions = make(map[int]*models.Prompt)
		r.byKey[key] = versions
	}
	if _, taken := versions[prompt.Version]; taken {
		return models.ErrVersionConflict
	}

	r.nextID++
	prompt.ID = r.nextID
	if prompt.LastUpdated.IsZero() {
		prompt.LastUpdated = time.Now().UTC()
	}
	versions[prompt.Version] = clonePrompt(prompt)
	return nil
}

func (r *MemoryPromptRepository) Delete(_ context.Context, name, modelName string, version int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := promptKey{name, modelName}
	versions := r.byKey[key]
	if _, ok := versions[version]; !ok {
		return false, nil
	}
	delete(versions, version)
	if len(versions) == 0 {
		delete(r.byKey, key)
	}
	return true, nil
}

func (r *MemoryPromptRepository) DeleteByModel(_ context.Context, modelName string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for key, versions := range r.byKey {
		if key.modelName != modelName {
			continue
		}
		n += int64(len(versions))
		delete(r.byKey, key)
	}
	return n, nil
}

func latestOf(versions map[int]*models.Prompt) *models.Prompt {
	var latest *models.Prompt
	for _, p := range versions {
		if latest == nil || p.Version > latest.Version {
			latest = p
		}
	}
	return latest
}

func clonePrompt(p *models.Prompt) *models.Prompt {
	c := *p
	return &c
}

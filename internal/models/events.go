package models

import "time"

// PromptEventType represents the type of prompt event.
type PromptEventType string

const (
	PromptEventTypeCreated      PromptEventType = "created"
	PromptEventTypeDeleted      PromptEventType = "deleted"
	PromptEventTypeModelDeleted PromptEventType = "model_deleted"
)

// PromptEvent is broadcast after every successful write to the prompt store.
type PromptEvent struct {
	EventType  PromptEventType `json:"eventType"`
	ID         int64           `json:"id,omitempty"`
	Name       string          `json:"name,omitempty"` // empty for model_deleted
	ModelName  string          `json:"modelName"`
	Version    int             `json:"version,omitempty"`
	Prompt     string          `json:"prompt,omitempty"` // omitted for deletes
	OccurredAt time.Time       `json:"occurredAt"`
}

package models

import "time"

// Prompt is a single immutable version of a prompt template for a (name, model_name) key.
type Prompt struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Prompt      string    `db:"prompt" json:"prompt"`
	ModelName   string    `db:"model_name" json:"model_name"`
	Version     int       `db:"version" json:"version"`
	LastUpdated time.Time `db:"last_updated" json:"last_updated"`
}

// PromptCreateRequest is the payload for creating a new prompt version.
type PromptCreateRequest struct {
	Name      string `json:"name" binding:"required"`
	Prompt    string `json:"prompt"`
	ModelName string `json:"model_name" binding:"required"`
}

// PromptDeleteRequest addresses one exact prompt version.
type PromptDeleteRequest struct {
	Name      string `json:"name" binding:"required"`
	ModelName string `json:"model_name" binding:"required"`
	Version   int    `json:"version" binding:"required,min=1"`
}

// ListPromptsResponse wraps the latest version of every prompt.
type ListPromptsResponse struct {
	Prompts []*Prompt `json:"prompts"`
}

// DeleteResponse is returned by delete endpoints.
type DeleteResponse struct {
	Message map[string]bool `json:"message"`
}

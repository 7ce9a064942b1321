package models

import "errors"

// Application-wide standard errors
var (
	// Store
	ErrPromptNotFound  = errors.New("prompt not found")
	ErrVersionConflict = errors.New("prompt version already exists")

	// General Request/Server Errors
	ErrInternalServer = errors.New("internal server error")
)

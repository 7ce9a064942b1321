package models

// ErrorResponse is the JSON body of every failed HTTP request.
type ErrorResponse struct {
	Error string `json:"error"`
}

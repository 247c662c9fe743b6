package models

import "time"

// HealthResponse is returned by the health endpoint
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is a JSON error body
type ErrorResponse struct {
	Error string `json:"error"`
}

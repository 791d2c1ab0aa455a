package model

import "time"

// Run records one execution of a saved program. Output is stored as returned
// to the caller, already capped by the harness.
type Run struct {
	ID            string    `json:"id"`
	ProgramID     string    `json:"programId"`
	ClientID      string    `json:"clientId,omitempty"`
	Success       bool      `json:"success"`
	Output        string    `json:"output,omitempty"`
	Error         string    `json:"error,omitempty"`
	ErrorType     string    `json:"errorType,omitempty"`
	ExecutionTime float64   `json:"executionTime"`
	CreatedAt     time.Time `json:"createdAt"`
}

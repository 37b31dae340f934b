package types

import (
	"time"
)

// HealthStatus represents the health status of a service
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Sport identifies a league category with its own scoring exponent and
// qualification thresholds
type Sport string

const (
	SportCollegeFootball Sport = "college-football"
	SportProFootball     Sport = "pro-football"
	SportBaseball        Sport = "baseball"
)

// ProgressUpdate represents a progress update for a running simulation batch
type ProgressUpdate struct {
	Type        string    `json:"type"`     // "simulation" or "projection"
	Progress    float64   `json:"progress"` // 0.0 to 1.0
	Message     string    `json:"message"`
	CurrentStep string    `json:"current_step"`
	TotalSteps  int       `json:"total_steps"`
	Timestamp   time.Time `json:"timestamp"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

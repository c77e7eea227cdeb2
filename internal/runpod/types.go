// Package runpod provides an HTTP client for RunPod serverless image-to-video endpoints.
package runpod

import "encoding/json"

// Status represents the status of a RunPod job.
type Status string

// RunPod job statuses aligned with the RunPod API.
const (
	StatusInQueue    Status = "IN_QUEUE"
	StatusRunning    Status = "RUNNING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
	StatusTimedOut   Status = "TIMED_OUT"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	default:
		return false
	}
}

// SubmitOptions contains optional parameters for submitting a job to RunPod.
type SubmitOptions struct {
	Prompt   string // Motion prompt
	Duration int    // Clip length in seconds
	FPS      int    // Output frame rate
	Seed     int    // Sampling seed
}

// DefaultSubmitOptions returns the default options for submitting a job.
func DefaultSubmitOptions() SubmitOptions {
	return SubmitOptions{
		Duration: 10,
		FPS:      8,
		Seed:     42,
	}
}

// runRequest represents the request body for RunPod's /run endpoint.
type runRequest struct {
	Input runInput `json:"input"`
}

// runInput represents the input field in a RunPod run request.
type runInput struct {
	Image    string `json:"image"`
	Prompt   string `json:"prompt,omitempty"`
	Duration int    `json:"duration,omitempty"`
	FPS      int    `json:"fps,omitempty"`
	Seed     int    `json:"seed"`
}

// runResponse represents the response from RunPod's /run endpoint.
type runResponse struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// statusResponse represents the response from RunPod's /status endpoint.
type statusResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// PollResult contains the result of polling a job's status.
type PollResult struct {
	Status Status
	// Output is the raw handler output (only set when Status is StatusCompleted).
	Output json.RawMessage
	// Error is the failure message (only set when Status is StatusFailed).
	Error string
}

// Package server provides the HTTP server for the slideshow API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// CreateJobRequest is the HTTP request body for creating a render job.
type CreateJobRequest struct {
	// ImageBase64 is the base64-encoded source image, plain or as a data URL.
	ImageBase64 string `json:"imageBase64" validate:"required"`
	// Prompt generates the scenario when no scenes are given.
	Prompt string `json:"prompt" validate:"required_without=Scenes,max=2000"`
	// Scenes are the captions to render, in order.
	Scenes []string `json:"scenes" validate:"omitempty,max=12,dive,max=500"`
	// DurationSec is the total video length in seconds.
	DurationSec int `json:"durationSec" validate:"omitempty,min=1,max=120"`
	// PushToS3 indicates whether to publish the final video to S3.
	PushToS3 bool `json:"pushToS3"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	ID             string   `json:"id"`
	Status         string   `json:"status"`
	Progress       int      `json:"progress"`
	FramesRendered int      `json:"framesRendered"`
	FramesTotal    int      `json:"framesTotal"`
	DurationSec    int      `json:"durationSec"`
	Prompt         string   `json:"prompt,omitempty"`
	Scenario       string   `json:"scenario,omitempty"`
	Scenes         []string `json:"scenes,omitempty"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
	// VideoURL is the S3 URL of the output video (if pushToS3=true and completed).
	VideoURL string `json:"videoUrl,omitempty"`
	// DownloadURL is the API path serving the local copy of the video.
	DownloadURL string    `json:"downloadUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	CompletedAt time.Time `json:"completedAt,omitzero"`
}

// ListJobsResponse is the HTTP response for listing jobs.
type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// ScenarioRequest is the HTTP request body for generating a scenario.
type ScenarioRequest struct {
	Prompt string `json:"prompt" validate:"required,max=2000"`
}

// ScenarioResponse carries a generated scenario and its parsed scenes.
type ScenarioResponse struct {
	Success  bool     `json:"success"`
	Scenario string   `json:"scenario"`
	Scenes   []string `json:"scenes"`
	// Source names the model service that wrote the scenario.
	Source string `json:"source"`
}

// MediaRequest is the HTTP request body for fetching generated media.
type MediaRequest struct {
	// ImageBase64 is required for image-to-video.
	ImageBase64 string `json:"imageBase64" validate:"required_if=Type image-to-video"`
	Prompt      string `json:"prompt" validate:"required,max=2000"`
	Type        string `json:"type" validate:"required,oneof=text-to-image text-to-video image-to-video"`
	Style       string `json:"style,omitempty"`
	// Provider selects a registered provider; empty picks the default.
	Provider string `json:"provider,omitempty"`
}

// MediaResult is the generated media descriptor.
type MediaResult struct {
	URL      string `json:"url"`
	Provider string `json:"provider"`
	Type     string `json:"type"`
}

// MediaResponse is the HTTP response for a media request.
type MediaResponse struct {
	Success bool        `json:"success"`
	Result  MediaResult `json:"result"`
	// VideoURL repeats Result.URL for video kinds.
	VideoURL string `json:"videoUrl,omitempty"`
}

// ProvidersResponse lists the registered media providers.
type ProvidersResponse struct {
	Providers []string `json:"providers"`
	Default   string   `json:"default"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
	// Details is an optional operator hint, e.g. which credential to check.
	Details string `json:"details,omitempty"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}

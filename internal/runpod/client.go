package runpod

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/maauso/slideshow-api/internal/remote"
)

// Static errors for RunPod client operations.
var (
	// ErrEndpointIDRequired is returned when the endpoint ID is not provided.
	ErrEndpointIDRequired = errors.New("runpod: endpoint ID is required")
	// ErrAPIKeyNotSet is returned when the RUNPOD_API_KEY environment variable is not set.
	ErrAPIKeyNotSet = errors.New("runpod: RUNPOD_API_KEY environment variable is not set")
	// ErrJobIDRequired is returned when the job ID is not provided.
	ErrJobIDRequired = errors.New("runpod: job ID is required")
	// ErrImageRequired is returned when no image is submitted.
	ErrImageRequired = errors.New("runpod: image is required")
	// ErrNoJobIDReturned is returned when the submit response contains no job ID.
	ErrNoJobIDReturned = errors.New("runpod: submit failed: no job ID returned")
	// ErrSubmitFailed is returned when the submit operation fails.
	ErrSubmitFailed = errors.New("runpod: submit failed")
)

// Client defines the interface for interacting with the RunPod API.
type Client interface {
	// Submit sends an image-to-video job to RunPod and returns the job ID.
	Submit(ctx context.Context, imageB64 string, opts SubmitOptions) (jobID string, err error)

	// Poll checks the status of a job and returns the result.
	Poll(ctx context.Context, jobID string) (PollResult, error)

	// Cancel asks RunPod to stop a queued or running job.
	Cancel(ctx context.Context, jobID string) error
}

// HTTPClient is the HTTP implementation of the RunPod Client interface.
type HTTPClient struct {
	apiKey      string
	endpointID  string
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
	logger      *slog.Logger

	client *remote.Client
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the RunPod API.
func WithBaseURL(url string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = strings.TrimRight(url, "/")
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(hc *HTTPClient) {
		hc.logger = logger
	}
}

// NewClient creates a new RunPod HTTP client.
// The API key can be set via the WithAPIKey option. If not provided,
// it is read from the environment variable RUNPOD_API_KEY.
// The endpoint ID must be provided.
func NewClient(endpointID string, opts ...ClientOption) (*HTTPClient, error) {
	if endpointID == "" {
		return nil, ErrEndpointIDRequired
	}

	c := &HTTPClient{
		endpointID:  endpointID,
		baseURL:     "https://api.runpod.ai/v2",
		baseBackoff: 1 * time.Second,
	}

	// Apply options first to allow WithAPIKey to set the API key
	for _, opt := range opts {
		opt(c)
	}

	// If API key was not set via option, try environment variable
	if c.apiKey == "" {
		c.apiKey = os.Getenv("RUNPOD_API_KEY")
	}

	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	c.client = remote.NewClient("runpod",
		remote.WithBearerToken(c.apiKey),
		remote.WithHTTPClient(c.httpClient),
		remote.WithMaxRetries(c.maxRetries),
		remote.WithBaseBackoff(c.baseBackoff),
		remote.WithDetails("check that RUNPOD_API_KEY and RUNPOD_ENDPOINT_ID are configured correctly"),
		remote.WithLogger(c.logger),
	)

	return c, nil
}

// Submit sends an image-to-video job to RunPod and returns the job ID.
func (c *HTTPClient) Submit(ctx context.Context, imageB64 string, opts SubmitOptions) (string, error) {
	if imageB64 == "" {
		return "", ErrImageRequired
	}

	// Apply defaults if not set
	defaults := DefaultSubmitOptions()
	if opts.Duration <= 0 {
		opts.Duration = defaults.Duration
	}
	if opts.FPS <= 0 {
		opts.FPS = defaults.FPS
	}
	if opts.Seed == 0 {
		opts.Seed = defaults.Seed
	}

	reqBody := runRequest{
		Input: runInput{
			Image:    imageB64,
			Prompt:   opts.Prompt,
			Duration: opts.Duration,
			FPS:      opts.FPS,
			Seed:     opts.Seed,
		},
	}

	url := fmt.Sprintf("%s/%s/run", c.baseURL, c.endpointID)

	var resp runResponse
	if err := c.client.DoJSON(ctx, http.MethodPost, url, reqBody, &resp); err != nil {
		return "", err
	}

	if resp.ID == "" {
		if resp.Error != "" {
			return "", fmt.Errorf("%w: %s", ErrSubmitFailed, resp.Error)
		}
		return "", fmt.Errorf("%w: %w", remote.ErrResponseShape, ErrNoJobIDReturned)
	}

	return resp.ID, nil
}

// Poll checks the status of a job and returns the result.
func (c *HTTPClient) Poll(ctx context.Context, jobID string) (PollResult, error) {
	if jobID == "" {
		return PollResult{}, ErrJobIDRequired
	}

	url := fmt.Sprintf("%s/%s/status/%s", c.baseURL, c.endpointID, jobID)

	var resp statusResponse
	if err := c.client.DoJSON(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return PollResult{}, err
	}

	result := PollResult{
		Status: Status(strings.ToUpper(resp.Status)),
	}

	switch result.Status {
	case StatusCompleted:
		result.Output = resp.Output
	case StatusFailed, StatusTimedOut, StatusCancelled:
		result.Error = resp.Error
	}

	return result, nil
}

// Cancel asks RunPod to stop a queued or running job.
func (c *HTTPClient) Cancel(ctx context.Context, jobID string) error {
	if jobID == "" {
		return ErrJobIDRequired
	}

	url := fmt.Sprintf("%s/%s/cancel/%s", c.baseURL, c.endpointID, jobID)
	return c.client.DoJSON(ctx, http.MethodPost, url, nil, nil)
}

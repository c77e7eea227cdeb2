package beam

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

// Static errors for Beam client operations.
var (
	// ErrQueueURLRequired is returned when the queue URL is not provided.
	ErrQueueURLRequired = errors.New("beam: queue URL is required")
	// ErrTokenNotSet is returned when the BEAM_TOKEN is not provided.
	ErrTokenNotSet = errors.New("beam: token is required")
	// ErrTaskIDRequired is returned when the task ID is not provided.
	ErrTaskIDRequired = errors.New("beam: task ID is required")
	// ErrNoTaskIDReturned is returned when the submit response contains no task ID.
	ErrNoTaskIDReturned = errors.New("beam: submit failed: no task ID returned")
	// ErrSubmitFailed is returned when the submit operation fails.
	ErrSubmitFailed = errors.New("beam: submit failed")
	// ErrNoOutputURL is returned when a completed task has no output URL.
	ErrNoOutputURL = errors.New("beam: no output URL in completed task")
)

// Client defines the interface for interacting with the Beam Task Queue API.
type Client interface {
	// Submit sends a generation task to Beam and returns the task ID.
	Submit(ctx context.Context, imageB64 string, opts SubmitOptions) (taskID string, err error)

	// Poll checks the status of a task and returns the result.
	Poll(ctx context.Context, taskID string) (PollResult, error)
}

// HTTPClient is the HTTP implementation of the Beam Client interface.
type HTTPClient struct {
	token       string
	queueURL    string
	apiURL      string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
	logger      *slog.Logger

	client *remote.Client
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithToken sets the API token for authentication.
func WithToken(token string) ClientOption {
	return func(hc *HTTPClient) {
		hc.token = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithAPIURL sets the base URL of the task status API.
func WithAPIURL(url string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiURL = strings.TrimRight(url, "/")
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

// NewClient creates a new Beam HTTP client.
// The token can be set via the WithToken option. If not provided,
// it is read from the environment variable BEAM_TOKEN.
// The queue URL must be provided.
func NewClient(queueURL string, opts ...ClientOption) (*HTTPClient, error) {
	if queueURL == "" {
		return nil, ErrQueueURLRequired
	}

	c := &HTTPClient{
		queueURL:    queueURL,
		apiURL:      "https://api.beam.cloud",
		baseBackoff: 1 * time.Second,
	}

	// Apply options first to allow WithToken to set the token
	for _, opt := range opts {
		opt(c)
	}

	// If token was not set via option, try environment variable
	if c.token == "" {
		c.token = os.Getenv("BEAM_TOKEN")
	}

	if c.token == "" {
		return nil, ErrTokenNotSet
	}

	c.client = remote.NewClient("beam",
		remote.WithBearerToken(c.token),
		remote.WithHTTPClient(c.httpClient),
		remote.WithMaxRetries(c.maxRetries),
		remote.WithBaseBackoff(c.baseBackoff),
		remote.WithDetails("check that BEAM_TOKEN and BEAM_QUEUE_URL are configured correctly"),
		remote.WithLogger(c.logger),
	)

	return c, nil
}

// Submit sends a generation task to Beam and returns the task ID.
// imageB64 may be empty for text-only tasks.
func (c *HTTPClient) Submit(ctx context.Context, imageB64 string, opts SubmitOptions) (string, error) {
	reqBody := taskRequest{
		Prompt:      opts.Prompt,
		Duration:    opts.Duration,
		Width:       opts.Width,
		Height:      opts.Height,
		ImageBase64: imageB64,
	}

	var resp taskResponse
	if err := c.client.DoJSON(ctx, http.MethodPost, c.queueURL, reqBody, &resp); err != nil {
		return "", err
	}

	if resp.TaskID == "" {
		if resp.Error != "" {
			return "", fmt.Errorf("%w: %s", ErrSubmitFailed, resp.Error)
		}
		return "", fmt.Errorf("%w: %w", remote.ErrResponseShape, ErrNoTaskIDReturned)
	}

	return resp.TaskID, nil
}

// Poll checks the status of a task and returns the result.
func (c *HTTPClient) Poll(ctx context.Context, taskID string) (PollResult, error) {
	if taskID == "" {
		return PollResult{}, ErrTaskIDRequired
	}

	url := fmt.Sprintf("%s/v2/task/%s/", c.apiURL, taskID)

	var resp statusResponse
	if err := c.client.DoJSON(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return PollResult{}, err
	}

	// Map Beam status
	mapped := Status(strings.ToUpper(resp.Status))
	if mapped == StatusComplete {
		mapped = StatusCompleted
	}

	result := PollResult{
		Status: mapped,
	}

	switch {
	case mapped.Succeeded():
		// Extract output URL
		if len(resp.Outputs) > 0 && resp.Outputs[0].URL != "" {
			result.OutputURL = resp.Outputs[0].URL
		} else {
			result.Error = ErrNoOutputURL.Error()
		}
	case mapped.IsTerminal():
		result.Error = resp.Error
	}

	return result, nil
}

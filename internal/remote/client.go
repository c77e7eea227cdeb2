package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// maxMessageLen bounds the response body echoed in error messages.
const maxMessageLen = 512

// Client performs HTTP calls to a single external provider and maps failures
// onto the package error taxonomy.
type Client struct {
	provider    string
	httpClient  *http.Client
	header      http.Header
	details     string
	maxRetries  int
	baseBackoff time.Duration
	logger      *slog.Logger
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBearerToken authenticates every request with an Authorization bearer token.
func WithBearerToken(token string) ClientOption {
	return func(c *Client) {
		c.header.Set("Authorization", "Bearer "+token)
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.header.Set(key, value)
	}
}

// WithDetails sets the operator hint attached to request errors.
func WithDetails(details string) ClientOption {
	return func(c *Client) {
		c.details = details
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
// The default is zero: failures surface to the caller unretried.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		c.baseBackoff = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Client for the named provider.
func NewClient(provider string, opts ...ClientOption) *Client {
	c := &Client{
		provider:    provider,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		header:      http.Header{},
		baseBackoff: 1 * time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provider returns the provider name used in errors.
func (c *Client) Provider() string {
	return c.provider
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ContentType returns the media type of the response without parameters.
func (r *Response) ContentType() string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

// DoJSON sends in as a JSON body (when non-nil) and decodes a 2xx response into out (when non-nil).
func (c *Client) DoJSON(ctx context.Context, method, url string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("%s: marshal request: %w", c.provider, err)
		}
	}

	resp, err := c.Do(ctx, method, url, body, "application/json")
	if err != nil {
		return err
	}

	if out != nil {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return fmt.Errorf("%w: %s: decode response: %w", ErrResponseShape, c.provider, err)
		}
	}
	return nil
}

// Do performs a request with exponential backoff retry on network failures,
// 429 and 5xx responses. Non-2xx responses are returned as *Error.
func (c *Client) Do(ctx context.Context, method, url string, body []byte, contentType string) (*Response, error) {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%s: context cancelled: %w", c.provider, ctx.Err())
			case <-time.After(backoff):
				backoff *= 2 // Exponential backoff
			}
		}

		resp, err := c.doOnce(ctx, method, url, body, contentType)
		if err == nil {
			return resp, nil
		}

		// Check if error is retryable
		if !isRetryable(err) || ctx.Err() != nil {
			return nil, unwrapRetryable(err)
		}

		if attempt < c.maxRetries {
			c.logger.Warn("remote request failed, retrying",
				slog.String("provider", c.provider),
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()),
			)
		}
		lastErr = err
	}

	return nil, unwrapRetryable(lastErr)
}

// doOnce performs a single HTTP request.
func (c *Client) doOnce(ctx context.Context, method, url string, body []byte, contentType string) (*Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", c.provider, err)
	}

	for k, v := range c.header {
		req.Header[k] = v
	}
	if body != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &retryableError{err: &Error{
			Provider: c.provider,
			Message:  "request failed",
			Details:  c.details,
			Err:      err,
		}}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &retryableError{err: &Error{
			Provider: c.provider,
			Message:  "read response",
			Details:  c.details,
			Err:      err,
		}}
	}

	// Handle non-2xx status codes
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rerr := &Error{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody),
			Details:    c.details,
		}
		// 5xx and 429 (rate limit) are retryable
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, &retryableError{err: rerr}
		}
		return nil, rerr
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// errorMessage picks a readable message out of an error body.
func errorMessage(body []byte) string {
	var obj map[string]any
	if json.Unmarshal(body, &obj) == nil {
		for _, key := range []string{"error", "detail", "message", "title"} {
			switch v := obj[key].(type) {
			case string:
				if v != "" {
					return v
				}
			case map[string]any:
				if msg, ok := v["message"].(string); ok && msg != "" {
					return msg
				}
			}
		}
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > maxMessageLen {
		cut := maxMessageLen
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut] + "..."
	}
	if msg == "" {
		msg = "empty response body"
	}
	return msg
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

func unwrapRetryable(err error) error {
	var re *retryableError
	if errors.As(err, &re) {
		return re.err
	}
	return err
}

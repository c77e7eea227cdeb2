package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/maauso/slideshow-api/internal/remote"
)

// DeepSeek defaults.
const (
	DefaultDeepSeekBaseURL = "https://api.deepseek.com/v1"
	DefaultDeepSeekModel   = "deepseek-chat"
)

// DeepSeekClient fetches scenarios from an OpenAI-compatible chat completions API.
type DeepSeekClient struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	maxRetries  int
	logger      *slog.Logger

	client *remote.Client
}

// DeepSeekOption configures a DeepSeekClient.
type DeepSeekOption func(*DeepSeekClient)

// WithDeepSeekAPIKey sets the API key for authentication.
func WithDeepSeekAPIKey(key string) DeepSeekOption {
	return func(c *DeepSeekClient) {
		c.apiKey = key
	}
}

// WithDeepSeekBaseURL sets a custom base URL.
func WithDeepSeekBaseURL(url string) DeepSeekOption {
	return func(c *DeepSeekClient) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithDeepSeekModel sets the chat model.
func WithDeepSeekModel(model string) DeepSeekOption {
	return func(c *DeepSeekClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithDeepSeekHTTPClient sets a custom HTTP client.
func WithDeepSeekHTTPClient(hc *http.Client) DeepSeekOption {
	return func(c *DeepSeekClient) {
		c.httpClient = hc
	}
}

// WithDeepSeekMaxRetries sets the maximum number of retries for transient failures.
func WithDeepSeekMaxRetries(n int) DeepSeekOption {
	return func(c *DeepSeekClient) {
		c.maxRetries = n
	}
}

// WithDeepSeekLogger sets the logger.
func WithDeepSeekLogger(logger *slog.Logger) DeepSeekOption {
	return func(c *DeepSeekClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewDeepSeekClient creates a DeepSeekClient.
// The API key can be set via WithDeepSeekAPIKey. If not provided,
// it is read from the environment variable DEEPSEEK_API_KEY.
func NewDeepSeekClient(opts ...DeepSeekOption) (*DeepSeekClient, error) {
	c := &DeepSeekClient{
		baseURL:     DefaultDeepSeekBaseURL,
		model:       DefaultDeepSeekModel,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("DEEPSEEK_API_KEY")
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: DEEPSEEK_API_KEY", ErrAPIKeyNotSet)
	}

	c.client = remote.NewClient("deepseek",
		remote.WithBearerToken(c.apiKey),
		remote.WithHTTPClient(c.httpClient),
		remote.WithMaxRetries(c.maxRetries),
		remote.WithDetails("check that the DeepSeek API key is configured correctly"),
		remote.WithLogger(c.logger),
	)
	return c, nil
}

// Name implements Source.
func (c *DeepSeekClient) Name() string {
	return "deepseek"
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// FetchScenario implements Source.
func (c *DeepSeekClient) FetchScenario(ctx context.Context, prompt string) (Scenario, error) {
	prompt, err := checkPrompt(prompt)
	if err != nil {
		return Scenario{}, err
	}

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: userPrompt(prompt)},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	c.logger.Debug("requesting scenario", slog.String("provider", c.Name()), slog.String("model", c.model))

	var resp chatResponse
	if err := c.client.DoJSON(ctx, http.MethodPost, c.baseURL+"/chat/completions", req, &resp); err != nil {
		return Scenario{}, err
	}

	if len(resp.Choices) == 0 {
		return Scenario{}, fmt.Errorf("%w: deepseek: no choices in response", remote.ErrResponseShape)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return Scenario{}, fmt.Errorf("%w: deepseek: empty message content", remote.ErrResponseShape)
	}

	return newScenario(text), nil
}

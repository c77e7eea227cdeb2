package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"google.golang.org/genai"

	"github.com/maauso/slideshow-api/internal/remote"
)

// DefaultGeminiModel is the Gemini model used for scenarios.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiClient fetches scenarios from the Gemini API.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
	logger      *slog.Logger
}

// GeminiOption configures a GeminiClient.
type GeminiOption func(*geminiSettings)

type geminiSettings struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// WithGeminiAPIKey sets the API key for authentication.
func WithGeminiAPIKey(key string) GeminiOption {
	return func(s *geminiSettings) {
		s.apiKey = key
	}
}

// WithGeminiModel sets the generation model.
func WithGeminiModel(model string) GeminiOption {
	return func(s *geminiSettings) {
		if model != "" {
			s.model = model
		}
	}
}

// WithGeminiBaseURL overrides the API endpoint.
func WithGeminiBaseURL(url string) GeminiOption {
	return func(s *geminiSettings) {
		s.baseURL = url
	}
}

// WithGeminiHTTPClient sets a custom HTTP client.
func WithGeminiHTTPClient(hc *http.Client) GeminiOption {
	return func(s *geminiSettings) {
		s.httpClient = hc
	}
}

// WithGeminiLogger sets the logger.
func WithGeminiLogger(logger *slog.Logger) GeminiOption {
	return func(s *geminiSettings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewGeminiClient creates a GeminiClient.
// The API key can be set via WithGeminiAPIKey. If not provided,
// it is read from the environment variable GEMINI_API_KEY.
func NewGeminiClient(ctx context.Context, opts ...GeminiOption) (*GeminiClient, error) {
	s := &geminiSettings{
		model:  DefaultGeminiModel,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.apiKey == "" {
		s.apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if s.apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY", ErrAPIKeyNotSet)
	}

	cfg := &genai.ClientConfig{
		APIKey:     s.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: s.httpClient,
	}
	if s.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: s.baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("scenario: create gemini client: %w", err)
	}

	return &GeminiClient{
		client:      client,
		model:       s.model,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		logger:      s.logger,
	}, nil
}

// Name implements Source.
func (c *GeminiClient) Name() string {
	return "gemini"
}

// FetchScenario implements Source.
func (c *GeminiClient) FetchScenario(ctx context.Context, prompt string) (Scenario, error) {
	prompt, err := checkPrompt(prompt)
	if err != nil {
		return Scenario{}, err
	}

	contents := []*genai.Content{
		genai.NewContentFromText(userPrompt(prompt), genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(c.temperature),
		MaxOutputTokens:   c.maxTokens,
	}

	c.logger.Debug("requesting scenario", slog.String("provider", c.Name()), slog.String("model", c.model))

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return Scenario{}, geminiError(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return Scenario{}, fmt.Errorf("%w: gemini: no text in response", remote.ErrResponseShape)
	}

	return newScenario(text), nil
}

// geminiError maps genai failures onto the remote error taxonomy.
func geminiError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("gemini: %w", err)
	}

	rerr := &remote.Error{
		Provider: "gemini",
		Message:  err.Error(),
		Details:  "check that the Gemini API key is configured correctly",
		Err:      err,
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		rerr.StatusCode = apiErr.Code
		rerr.Message = apiErr.Message
	}
	return rerr
}

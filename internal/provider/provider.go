// Package provider fetches generated media (images and short clips) from
// remote generation services. Every service is a Provider variant behind the
// same FetchMedia contract; a Registry picks one by name and kind.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"

	"github.com/maauso/slideshow-api/internal/remote"
)

// Static errors for provider operations.
var (
	// ErrUnknownProvider is returned when no provider is registered under a name.
	ErrUnknownProvider = errors.New("provider: unknown provider")
	// ErrUnsupportedKind is returned when a provider cannot produce the requested kind.
	ErrUnsupportedKind = errors.New("provider: unsupported media kind")
	// ErrNoProviders is returned when the registry is empty.
	ErrNoProviders = errors.New("provider: no providers configured")
	// ErrPromptRequired is returned when a request carries no prompt.
	ErrPromptRequired = errors.New("provider: prompt is required")
	// ErrImageRequired is returned when an image-to-video request carries no image.
	ErrImageRequired = errors.New("provider: image is required for image-to-video")
)

// Kind is the type of media requested from a provider.
type Kind string

// Supported media kinds.
const (
	KindTextToImage  Kind = "text-to-image"
	KindTextToVideo  Kind = "text-to-video"
	KindImageToVideo Kind = "image-to-video"
)

// Kinds lists every media kind.
var Kinds = []Kind{KindTextToImage, KindTextToVideo, KindImageToVideo}

// ParseKind converts s into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Kinds, k) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
	}
	return k, nil
}

// Request describes the media to generate.
type Request struct {
	// ImageBase64 is the source image, plain base64 or a data URL. Only used by image-to-video.
	ImageBase64 string `json:"imageBase64,omitempty"`
	Prompt      string `json:"prompt"`
	Kind        Kind   `json:"type"`
	// Style is a provider-specific style preset, e.g. "realistic".
	Style string `json:"style,omitempty"`
}

// Result is the outcome of a successful generation.
type Result struct {
	// URL is an http(s) URL or a base64 data URL.
	URL      string `json:"url"`
	Provider string `json:"provider"`
	Kind     Kind   `json:"type"`
}

// Provider is a remote media generation service.
type Provider interface {
	// Name returns the registry name, e.g. "replicate".
	Name() string
	// Supports reports whether the provider can produce kind.
	Supports(kind Kind) bool
	// FetchMedia generates media for req and returns where it can be fetched.
	FetchMedia(ctx context.Context, req Request) (Result, error)
}

// validate checks req against what p can serve.
func validate(p Provider, req Request) error {
	if !p.Supports(req.Kind) {
		return fmt.Errorf("%w: %s does not support %q", ErrUnsupportedKind, p.Name(), req.Kind)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return ErrPromptRequired
	}
	if req.Kind == KindImageToVideo && strings.TrimSpace(req.ImageBase64) == "" {
		return ErrImageRequired
	}
	return nil
}

// settings holds the options shared by every provider constructor.
type settings struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	poller     remote.Poller
	maxRetries int
	logger     *slog.Logger
	models     map[Kind]string
	style      string
}

func newSettings(baseURL, apiKeyEnv string, opts []Option) settings {
	s := settings{
		baseURL: baseURL,
		poller:  remote.DefaultPoller(),
		logger:  slog.Default(),
		models:  map[Kind]string{},
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.apiKey == "" && apiKeyEnv != "" {
		s.apiKey = os.Getenv(apiKeyEnv)
	}
	return s
}

// Option configures a provider.
type Option func(*settings)

// WithAPIKey sets the API key. Without it the provider reads its environment variable.
func WithAPIKey(key string) Option {
	return func(s *settings) {
		s.apiKey = key
	}
}

// WithBaseURL overrides the provider API base URL.
func WithBaseURL(url string) Option {
	return func(s *settings) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) {
		s.httpClient = c
	}
}

// WithPoller sets the status polling budget of asynchronous providers.
func WithPoller(p remote.Poller) Option {
	return func(s *settings) {
		s.poller = p
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) Option {
	return func(s *settings) {
		s.maxRetries = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithModel overrides the model used for kind. Ignored by providers without model selection.
func WithModel(kind Kind, model string) Option {
	return func(s *settings) {
		if model != "" {
			s.models[kind] = model
		}
	}
}

// WithStyle sets the default style preset. Ignored by providers without styles.
func WithStyle(style string) Option {
	return func(s *settings) {
		s.style = style
	}
}

func (s settings) remoteClient(name, details string, extra ...remote.ClientOption) *remote.Client {
	opts := []remote.ClientOption{
		remote.WithHTTPClient(s.httpClient),
		remote.WithMaxRetries(s.maxRetries),
		remote.WithDetails(details),
		remote.WithLogger(s.logger),
	}
	if s.apiKey != "" {
		opts = append(opts, remote.WithBearerToken(s.apiKey))
	}
	return remote.NewClient(name, append(opts, extra...)...)
}

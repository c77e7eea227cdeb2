// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrUnknownJobStore is returned when JOB_STORE is neither memory nor redis.
	ErrUnknownJobStore = errors.New("config: JOB_STORE must be memory or redis")
	// ErrUnknownScenarioSource is returned when SCENARIO_SOURCE is not recognised.
	ErrUnknownScenarioSource = errors.New("config: SCENARIO_SOURCE must be auto, deepseek, gemini or none")
	// ErrDeepSeekAPIKeyRequired is returned when SCENARIO_SOURCE=deepseek without DEEPSEEK_API_KEY.
	ErrDeepSeekAPIKeyRequired = errors.New("config: DEEPSEEK_API_KEY is required")
	// ErrGeminiAPIKeyRequired is returned when SCENARIO_SOURCE=gemini without GEMINI_API_KEY.
	ErrGeminiAPIKeyRequired = errors.New("config: GEMINI_API_KEY is required")
	// ErrRunPodEndpointIDRequired is returned when RUNPOD_API_KEY is set without RUNPOD_ENDPOINT_ID.
	ErrRunPodEndpointIDRequired = errors.New("config: RUNPOD_ENDPOINT_ID is required")
	// ErrBeamQueueURLRequired is returned when BEAM_TOKEN is set without BEAM_QUEUE_URL.
	ErrBeamQueueURLRequired = errors.New("config: BEAM_QUEUE_URL is required")
	// ErrInvalidDuration is returned when DEFAULT_DURATION_SEC is not positive.
	ErrInvalidDuration = errors.New("config: DEFAULT_DURATION_SEC must be positive")
)

// Scenario sources.
const (
	ScenarioSourceAuto     = "auto"
	ScenarioSourceDeepSeek = "deepseek"
	ScenarioSourceGemini   = "gemini"
	ScenarioSourceNone     = "none"
)

// Job stores.
const (
	JobStoreMemory = "memory"
	JobStoreRedis  = "redis"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port           int      `env:"PORT, default=8080" json:"port"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS, default=*" json:"allowed_origins"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/slideshow" json:"temp_dir"`

	// Job store settings
	JobStore       string        `env:"JOB_STORE, default=memory" json:"job_store"` // "memory" or "redis"
	RedisAddr      string        `env:"REDIS_ADDR, default=localhost:6379" json:"redis_addr"`
	RedisPassword  string        `env:"REDIS_PASSWORD" json:"-"` // Masked in JSON
	RedisDB        int           `env:"REDIS_DB, default=0" json:"redis_db"`
	RedisKeyPrefix string        `env:"REDIS_KEY_PREFIX, default=slideshow" json:"redis_key_prefix"`
	JobTTL         time.Duration `env:"JOB_TTL, default=168h" json:"job_ttl"`

	// Render settings
	FFmpegPath         string  `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFmpegPreset       string  `env:"FFMPEG_PRESET, default=veryfast" json:"ffmpeg_preset"`
	RenderRealtime     bool    `env:"RENDER_REALTIME, default=true" json:"render_realtime"`
	FontSize           float64 `env:"FONT_SIZE" json:"font_size,omitempty"`
	DefaultDurationSec int     `env:"DEFAULT_DURATION_SEC, default=12" json:"default_duration_sec"`

	// Scenario source settings
	ScenarioSource string `env:"SCENARIO_SOURCE, default=auto" json:"scenario_source"`
	DeepSeekAPIKey string `env:"DEEPSEEK_API_KEY" json:"-"` // Masked in JSON
	DeepSeekModel  string `env:"DEEPSEEK_MODEL" json:"deepseek_model,omitempty"`
	GeminiAPIKey   string `env:"GEMINI_API_KEY" json:"-"` // Masked in JSON
	GeminiModel    string `env:"GEMINI_MODEL" json:"gemini_model,omitempty"`

	// Media provider settings
	MediaProvider    string `env:"MEDIA_PROVIDER" json:"media_provider,omitempty"`
	ReplicateAPIKey  string `env:"REPLICATE_API_KEY" json:"-"` // Masked in JSON
	RunPodAPIKey     string `env:"RUNPOD_API_KEY" json:"-"`    // Masked in JSON
	RunPodEndpointID string `env:"RUNPOD_ENDPOINT_ID" json:"runpod_endpoint_id,omitempty"`
	BeamToken        string `env:"BEAM_TOKEN" json:"-"` // Masked in JSON
	BeamQueueURL     string `env:"BEAM_QUEUE_URL" json:"beam_queue_url,omitempty"`
	VyroAPIKey       string `env:"VYRO_API_KEY" json:"-"` // Masked in JSON
	VyroStyle        string `env:"VYRO_STYLE" json:"vyro_style,omitempty"`

	// Remote call settings
	PollInterval     time.Duration `env:"POLL_INTERVAL, default=10s" json:"poll_interval"`
	PollMaxAttempts  int           `env:"POLL_MAX_ATTEMPTS, default=30" json:"poll_max_attempts"`
	RemoteMaxRetries int           `env:"REMOTE_MAX_RETRIES, default=0" json:"remote_max_retries"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3PublicBaseURL    string `env:"S3_PUBLIC_BASE_URL" json:"s3_public_base_url,omitempty"`
	S3VideoPrefix      string `env:"S3_VIDEO_PREFIX, default=videos/" json:"s3_video_prefix"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// RedisEnabled returns true if jobs are stored in Redis.
func (c *Config) RedisEnabled() bool {
	return strings.EqualFold(c.JobStore, JobStoreRedis)
}

// ReplicateEnabled returns true if the Replicate provider is configured.
func (c *Config) ReplicateEnabled() bool {
	return c.ReplicateAPIKey != ""
}

// RunPodEnabled returns true if the RunPod provider is configured.
func (c *Config) RunPodEnabled() bool {
	return c.RunPodAPIKey != "" && c.RunPodEndpointID != ""
}

// BeamEnabled returns true if the Beam provider is configured.
func (c *Config) BeamEnabled() bool {
	return c.BeamToken != "" && c.BeamQueueURL != ""
}

// VyroEnabled returns true if the Vyro provider is configured.
func (c *Config) VyroEnabled() bool {
	return c.VyroAPIKey != ""
}

// ResolvedScenarioSource returns the scenario source to use. "auto" picks
// DeepSeek, then Gemini, by which API key is set, and "none" if neither is.
func (c *Config) ResolvedScenarioSource() string {
	src := strings.ToLower(c.ScenarioSource)
	if src != ScenarioSourceAuto && src != "" {
		return src
	}
	switch {
	case c.DeepSeekAPIKey != "":
		return ScenarioSourceDeepSeek
	case c.GeminiAPIKey != "":
		return ScenarioSourceGemini
	default:
		return ScenarioSourceNone
	}
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	return LoadWithLookuper(envconfig.OsLookuper())
}

// LoadWithLookuper reads configuration from l, which lets tests supply a map
// instead of the process environment.
func LoadWithLookuper(l envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is consistent.
func (c *Config) Validate() error {
	switch strings.ToLower(c.JobStore) {
	case JobStoreMemory, JobStoreRedis:
	default:
		return fmt.Errorf("%w: got %q", ErrUnknownJobStore, c.JobStore)
	}

	switch c.ResolvedScenarioSource() {
	case ScenarioSourceDeepSeek:
		if c.DeepSeekAPIKey == "" {
			return ErrDeepSeekAPIKeyRequired
		}
	case ScenarioSourceGemini:
		if c.GeminiAPIKey == "" {
			return ErrGeminiAPIKeyRequired
		}
	case ScenarioSourceNone:
	default:
		return fmt.Errorf("%w: got %q", ErrUnknownScenarioSource, c.ScenarioSource)
	}

	if c.RunPodAPIKey != "" && c.RunPodEndpointID == "" {
		return ErrRunPodEndpointIDRequired
	}
	if c.BeamToken != "" && c.BeamQueueURL == "" {
		return ErrBeamQueueURLRequired
	}
	if c.DefaultDurationSec <= 0 {
		return ErrInvalidDuration
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo is NewLogger writing to w.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, JobStore: %s, RedisAddr: %s, ScenarioSource: %s, MediaProvider: %s, "+
			"Providers: [%s], RenderRealtime: %t, PollInterval: %s, PollMaxAttempts: %d, S3Bucket: %s, S3Region: %s, "+
			"LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.JobStore,
		c.RedisAddr,
		c.ResolvedScenarioSource(),
		c.MediaProvider,
		strings.Join(c.EnabledProviders(), ","),
		c.RenderRealtime,
		c.PollInterval,
		c.PollMaxAttempts,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// EnabledProviders lists the media providers that have credentials, in
// registration order.
func (c *Config) EnabledProviders() []string {
	var names []string
	if c.ReplicateEnabled() {
		names = append(names, "replicate")
	}
	if c.RunPodEnabled() {
		names = append(names, "runpod")
	}
	if c.BeamEnabled() {
		names = append(names, "beam")
	}
	if c.VyroEnabled() {
		names = append(names, "vyro")
	}
	return names
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

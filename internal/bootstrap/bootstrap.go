// Package bootstrap provides dependency initialization for the slideshow API.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maauso/slideshow-api/internal/beam"
	"github.com/maauso/slideshow-api/internal/config"
	"github.com/maauso/slideshow-api/internal/job"
	"github.com/maauso/slideshow-api/internal/media"
	"github.com/maauso/slideshow-api/internal/provider"
	"github.com/maauso/slideshow-api/internal/remote"
	"github.com/maauso/slideshow-api/internal/runpod"
	"github.com/maauso/slideshow-api/internal/scenario"
	"github.com/maauso/slideshow-api/internal/slideshow"
	"github.com/maauso/slideshow-api/internal/storage"
)

// redisPingTimeout bounds the startup connectivity check.
const redisPingTimeout = 5 * time.Second

// Dependencies holds all initialized dependencies for the HTTP server and CLI.
type Dependencies struct {
	RenderService *job.RenderService
	// Scenarios is nil when no scenario source is configured.
	Scenarios scenario.Source
	// Media is empty when no provider has credentials.
	Media   *provider.Registry
	Encoder slideshow.Encoder
	Storage storage.Storage

	closers []func() error
}

// Close releases connections opened by NewDependencies.
func (d *Dependencies) Close() error {
	var errs []error
	for _, c := range d.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}
	deps.Storage = store

	repo, err := initRepository(ctx, cfg, logger, deps)
	if err != nil {
		return nil, err
	}

	scenarios, err := NewScenarioSource(ctx, cfg, logger)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}
	deps.Scenarios = scenarios

	registry, err := NewMediaRegistry(cfg, logger)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}
	deps.Media = registry

	deps.Encoder = media.NewFFmpegEncoder(cfg.FFmpegPath,
		media.WithTempDir(cfg.TempDir),
		media.WithPreset(cfg.FFmpegPreset),
		media.WithEncoderLogger(logger),
	)

	renderOpts := []slideshow.Option{slideshow.WithLogger(logger), slideshow.WithFontSize(cfg.FontSize)}
	if !cfg.RenderRealtime {
		renderOpts = append(renderOpts, slideshow.WithPacer(slideshow.NoPacing))
	}

	svcOpts := []job.ServiceOption{
		job.WithServiceLogger(logger),
		job.WithRenderOptions(renderOpts...),
		job.WithDefaultDuration(cfg.DefaultDurationSec),
		job.WithVideoPrefix(cfg.S3VideoPrefix),
	}
	if scenarios != nil {
		svcOpts = append(svcOpts, job.WithScenarioSource(scenarios))
	}
	deps.RenderService = job.NewRenderService(repo, store, deps.Encoder, svcOpts...)

	return deps, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			PublicBaseURL:   cfg.S3PublicBaseURL,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}

// initRepository selects the job store. A Redis client is registered for
// closing on deps.
func initRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps *Dependencies) (job.Repository, error) {
	if !cfg.RedisEnabled() {
		logger.Info("in-memory job store configured",
			slog.Duration("ttl", cfg.JobTTL),
		)
		return job.NewMemoryRepository(job.WithRetention(cfg.JobTTL)), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	deps.closers = append(deps.closers, rdb.Close)

	logger.Info("redis job store configured",
		slog.String("addr", cfg.RedisAddr),
		slog.String("prefix", cfg.RedisKeyPrefix),
		slog.Duration("ttl", cfg.JobTTL),
	)
	return job.NewRedisRepository(rdb,
		job.WithKeyPrefix(cfg.RedisKeyPrefix),
		job.WithTTL(cfg.JobTTL),
	), nil
}

// NewScenarioSource builds the configured scenario source. It returns nil
// when none is configured.
func NewScenarioSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (scenario.Source, error) {
	switch cfg.ResolvedScenarioSource() {
	case config.ScenarioSourceDeepSeek:
		opts := []scenario.DeepSeekOption{
			scenario.WithDeepSeekAPIKey(cfg.DeepSeekAPIKey),
			scenario.WithDeepSeekMaxRetries(cfg.RemoteMaxRetries),
			scenario.WithDeepSeekLogger(logger),
		}
		if cfg.DeepSeekModel != "" {
			opts = append(opts, scenario.WithDeepSeekModel(cfg.DeepSeekModel))
		}
		client, err := scenario.NewDeepSeekClient(opts...)
		if err != nil {
			return nil, fmt.Errorf("create DeepSeek client: %w", err)
		}
		logger.Info("scenario source configured", slog.String("source", client.Name()))
		return client, nil

	case config.ScenarioSourceGemini:
		opts := []scenario.GeminiOption{
			scenario.WithGeminiAPIKey(cfg.GeminiAPIKey),
			scenario.WithGeminiLogger(logger),
		}
		if cfg.GeminiModel != "" {
			opts = append(opts, scenario.WithGeminiModel(cfg.GeminiModel))
		}
		client, err := scenario.NewGeminiClient(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create Gemini client: %w", err)
		}
		logger.Info("scenario source configured", slog.String("source", client.Name()))
		return client, nil

	default:
		logger.Warn("no scenario source configured, prompt-only jobs are disabled")
		return nil, nil
	}
}

// NewMediaRegistry registers every media provider that has credentials.
func NewMediaRegistry(cfg *config.Config, logger *slog.Logger) (*provider.Registry, error) {
	poller := remote.Poller{Interval: cfg.PollInterval, MaxAttempts: cfg.PollMaxAttempts}
	common := []provider.Option{
		provider.WithPoller(poller),
		provider.WithMaxRetries(cfg.RemoteMaxRetries),
		provider.WithLogger(logger),
	}
	registry := provider.NewRegistry()

	if cfg.ReplicateEnabled() {
		p, err := provider.NewReplicate(append(common, provider.WithAPIKey(cfg.ReplicateAPIKey))...)
		if err != nil {
			return nil, fmt.Errorf("create Replicate provider: %w", err)
		}
		registry.Register(p)
	}

	if cfg.RunPodEnabled() {
		client, err := runpod.NewClient(cfg.RunPodEndpointID,
			runpod.WithAPIKey(cfg.RunPodAPIKey),
			runpod.WithMaxRetries(cfg.RemoteMaxRetries),
			runpod.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("create RunPod client: %w", err)
		}
		registry.Register(provider.NewRunPod(client, common...))
	}

	if cfg.BeamEnabled() {
		client, err := beam.NewClient(cfg.BeamQueueURL,
			beam.WithToken(cfg.BeamToken),
			beam.WithMaxRetries(cfg.RemoteMaxRetries),
			beam.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("create Beam client: %w", err)
		}
		registry.Register(provider.NewBeam(client, common...))
	}

	if cfg.VyroEnabled() {
		p, err := provider.NewVyro(append(common,
			provider.WithAPIKey(cfg.VyroAPIKey),
			provider.WithStyle(cfg.VyroStyle),
		)...)
		if err != nil {
			return nil, fmt.Errorf("create Vyro provider: %w", err)
		}
		registry.Register(p)
	}

	if cfg.MediaProvider != "" {
		if err := registry.SetDefault(cfg.MediaProvider); err != nil {
			return nil, fmt.Errorf("select default media provider: %w", err)
		}
	}

	logger.Info("media providers configured",
		slog.Any("providers", registry.Names()),
		slog.String("default", registry.Default()),
	)
	return registry, nil
}

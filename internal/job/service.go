package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maauso/slideshow-api/internal/remote"
	"github.com/maauso/slideshow-api/internal/scenario"
	"github.com/maauso/slideshow-api/internal/slideshow"
	"github.com/maauso/slideshow-api/internal/storage"
)

// Static errors for render jobs.
var (
	// ErrImageRequired is returned when a job is created without a source image.
	ErrImageRequired = errors.New("job: image is required")
	// ErrScenesOrPromptRequired is returned when a job has neither scenes nor a prompt.
	ErrScenesOrPromptRequired = errors.New("job: scenes or prompt is required")
	// ErrNoScenarioSource is returned when a prompt-only job is created but no
	// scenario source is configured.
	ErrNoScenarioSource = errors.New("job: no scenario source configured")
	// ErrJobCancelled is the cancellation cause of a manually cancelled job.
	ErrJobCancelled = errors.New("job: cancelled")
	// ErrVideoNotAvailable is returned when a job has no rendered video.
	ErrVideoNotAvailable = errors.New("job: video not available")
)

// Defaults for render jobs.
const (
	DefaultDurationSec = 12
	DefaultVideoPrefix = "videos/"
)

// RenderInput contains the input parameters for a render job.
type RenderInput struct {
	// ImageBase64 is the base64-encoded source image, optionally a data URL.
	ImageBase64 string
	// Prompt is used to generate a scenario when Scenes is empty.
	Prompt string
	// Scenes are the captions to render, in order.
	Scenes []string
	// DurationSec is the total video length. Zero selects the service default.
	DurationSec int
	// PushToS3 indicates whether to publish the final video to object storage.
	PushToS3 bool
}

// ServiceOption configures a RenderService.
type ServiceOption func(*RenderService)

// WithScenarioSource sets the source used for prompt-only jobs.
func WithScenarioSource(src scenario.Source) ServiceOption {
	return func(s *RenderService) {
		s.scenarios = src
	}
}

// WithRenderOptions adds options applied to every job's renderer.
func WithRenderOptions(opts ...slideshow.Option) ServiceOption {
	return func(s *RenderService) {
		s.renderOpts = append(s.renderOpts, opts...)
	}
}

// WithDefaultDuration sets the duration used when a job does not ask for one.
func WithDefaultDuration(sec int) ServiceOption {
	return func(s *RenderService) {
		if sec > 0 {
			s.defaultDuration = sec
		}
	}
}

// WithVideoPrefix sets the object key prefix of published videos.
func WithVideoPrefix(prefix string) ServiceOption {
	return func(s *RenderService) {
		s.videoPrefix = prefix
	}
}

// WithServiceLogger sets the logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *RenderService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// activeJob tracks a job rendering in this process.
type activeJob struct {
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// RenderService orchestrates slideshow render jobs.
// It coordinates the scenario source, the slideshow renderer and storage,
// and persists every state change through the Repository.
type RenderService struct {
	repo       Repository
	store      storage.Storage
	encoder    slideshow.Encoder
	scenarios  scenario.Source
	renderOpts []slideshow.Option

	defaultDuration int
	videoPrefix     string
	logger          *slog.Logger

	// mu serializes job start and cancellation and guards active.
	mu     sync.Mutex
	active map[string]*activeJob
	wg     sync.WaitGroup
}

// NewRenderService creates a new RenderService.
func NewRenderService(repo Repository, store storage.Storage, enc slideshow.Encoder, opts ...ServiceOption) *RenderService {
	s := &RenderService{
		repo:            repo,
		store:           store,
		encoder:         enc,
		defaultDuration: DefaultDurationSec,
		videoPrefix:     DefaultVideoPrefix,
		logger:          slog.Default(),
		active:          make(map[string]*activeJob),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob validates the input, stores the source image and persists a new
// job in IN_QUEUE status, ready for processing.
func (s *RenderService) CreateJob(ctx context.Context, input RenderInput) (*Job, error) {
	if input.ImageBase64 == "" {
		return nil, ErrImageRequired
	}
	script := slideshow.NewScript(input.Scenes...)
	if script.Len() == 0 {
		if input.Prompt == "" {
			return nil, ErrScenesOrPromptRequired
		}
		if s.scenarios == nil {
			return nil, ErrNoScenarioSource
		}
	}

	data, err := slideshow.DecodeBase64(input.ImageBase64)
	if err != nil {
		return nil, err
	}
	_, format, err := slideshow.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	job := New()
	job.Prompt = input.Prompt
	job.Scenes = script.Texts()
	job.DurationSec = orDefault(input.DurationSec, s.defaultDuration)
	job.PushToS3 = input.PushToS3

	path, err := s.store.SaveTemp(ctx, job.ID+"-input."+format, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("job: save input image: %w", err)
	}
	job.InputImagePath = path

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.Int("scenes", len(job.Scenes)),
		slog.Int("duration_sec", job.DurationSec),
		slog.Bool("push_to_s3", job.PushToS3),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		_ = s.store.CleanupTemp(ctx, []string{path})
		return nil, err
	}

	return job, nil
}

// orDefault returns v if positive, otherwise def.
func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// Process creates a job and renders it synchronously.
func (s *RenderService) Process(ctx context.Context, input RenderInput) (*Job, error) {
	job, err := s.CreateJob(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := s.ProcessExistingJob(ctx, job.ID); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, job.ID)
}

// ProcessExistingJob renders a job previously created with CreateJob.
// Failures of the render itself are recorded on the job; the returned error
// only reports jobs that could not be started or persisted.
func (s *RenderService) ProcessExistingJob(ctx context.Context, jobID string) error {
	job, run, ctx, err := s.start(ctx, jobID)
	if err != nil {
		return err
	}
	defer func() {
		s.mu.Lock()
		delete(s.active, jobID)
		s.mu.Unlock()
		run.cancel(nil)
		close(run.done)
		s.wg.Done()
	}()

	logger := s.logger.With(slog.String("job_id", jobID))
	logger.Info("job started", slog.Int("duration_sec", job.DurationSec))

	renderErr := s.render(ctx, job, logger)

	// Terminal updates must land even when ctx is cancelled.
	saveCtx := context.WithoutCancel(ctx)
	defer func() {
		if job.InputImagePath != "" {
			if err := s.store.CleanupTemp(saveCtx, []string{job.InputImagePath}); err != nil {
				logger.Warn("failed to remove input image", slog.String("error", err.Error()))
			}
		}
	}()

	switch {
	case renderErr == nil:
		_ = job.Complete()
		logger.Info("job completed",
			slog.String("video_path", job.OutputVideoPath),
			slog.String("video_url", job.VideoURL),
		)
	case errors.Is(context.Cause(ctx), ErrJobCancelled):
		_ = job.Cancel()
		logger.Info("job cancelled")
	case errors.Is(renderErr, remote.ErrPollTimeout):
		_ = job.Timeout(renderErr.Error())
		logger.Warn("job timed out", slog.String("error", renderErr.Error()))
	default:
		_ = job.Fail(renderErr.Error())
		logger.Error("job failed", slog.String("error", renderErr.Error()))
	}

	if err := s.repo.Save(saveCtx, job); err != nil {
		return fmt.Errorf("job: save %s: %w", jobID, err)
	}
	return nil
}

// start moves a queued job to RUNNING and registers it for cancellation.
func (s *RenderService) start(ctx context.Context, jobID string) (*Job, *activeJob, context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := job.Start(); err != nil {
		return nil, nil, nil, fmt.Errorf("job: start %s (%s): %w", jobID, job.GetStatus(), err)
	}
	if err := s.repo.Save(ctx, job); err != nil {
		return nil, nil, nil, err
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	run := &activeJob{cancel: cancel, done: make(chan struct{})}
	s.active[jobID] = run
	s.wg.Add(1)
	return job, run, runCtx, nil
}

func (s *RenderService) render(ctx context.Context, job *Job, logger *slog.Logger) error {
	snapshot := job.Clone()

	var (
		img    slideshow.SourceImage
		script slideshow.Script
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		img, err = s.loadImage(gctx, snapshot.InputImagePath)
		return err
	})
	g.Go(func() error {
		var err error
		script, err = s.resolveScript(gctx, job, snapshot)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, job); err != nil {
		logger.Warn("failed to save scenario", slog.String("error", err.Error()))
	}

	lastPct := -1
	renderer := slideshow.NewRenderer(s.encoder, append(slices.Clone(s.renderOpts),
		slideshow.WithLogger(logger),
		slideshow.WithProgress(func(done, total int) {
			job.UpdateFrames(done, total)
			pct := done * 100 / total
			if pct == lastPct || ctx.Err() != nil {
				return
			}
			lastPct = pct
			if err := s.repo.Save(ctx, job); err != nil {
				logger.Debug("failed to save progress", slog.String("error", err.Error()))
			}
		}),
	)...)

	started := time.Now()
	video, err := renderer.Render(ctx, img, script, slideshow.DefaultConfig(time.Duration(snapshot.DurationSec)*time.Second))
	if err != nil {
		return err
	}
	logger.Info("video rendered",
		slog.Int("frames", video.Frames),
		slog.Int("bytes", len(video.Data)),
		slog.Duration("elapsed", time.Since(started)),
	)

	return s.storeVideo(ctx, job, video)
}

func (s *RenderService) loadImage(ctx context.Context, path string) (slideshow.SourceImage, error) {
	rc, err := s.store.LoadTemp(ctx, path)
	if err != nil {
		return slideshow.SourceImage{}, fmt.Errorf("job: load input image: %w", err)
	}
	defer rc.Close()
	return slideshow.DecodeImage(rc)
}

// resolveScript returns the job's scenes, generating them from the prompt
// when none were given.
func (s *RenderService) resolveScript(ctx context.Context, job, snapshot *Job) (slideshow.Script, error) {
	if len(snapshot.Scenes) > 0 {
		return slideshow.NewScript(snapshot.Scenes...), nil
	}
	if s.scenarios == nil {
		return slideshow.Script{}, ErrNoScenarioSource
	}

	sc, err := s.scenarios.FetchScenario(ctx, snapshot.Prompt)
	if err != nil {
		return slideshow.Script{}, fmt.Errorf("job: generate scenario with %s: %w", s.scenarios.Name(), err)
	}
	job.SetScenario(sc.Text, sc.Script.Texts())
	if err := sc.Script.Validate(); err != nil {
		return slideshow.Script{}, err
	}
	return sc.Script, nil
}

func (s *RenderService) storeVideo(ctx context.Context, job *Job, video *slideshow.RenderedVideo) error {
	name := job.ID + ".mp4"
	path, err := s.store.SaveTemp(ctx, name, bytes.NewReader(video.Data))
	if err != nil {
		return fmt.Errorf("job: save video: %w", err)
	}

	var url, key string
	if job.PushToS3 {
		key = s.videoPrefix + name
		url, err = s.store.Publish(ctx, key, video.MIMEType, bytes.NewReader(video.Data))
		if err != nil {
			_ = s.store.CleanupTemp(context.WithoutCancel(ctx), []string{path})
			return fmt.Errorf("job: publish video: %w", err)
		}
	}

	job.SetOutput(path, url, key)
	return nil
}

// GetJob retrieves a job by ID.
func (s *RenderService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns every job, newest first.
func (s *RenderService) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// CancelJob cancels a queued or running job. A running job's render is
// aborted and the call waits until the job has been persisted as CANCELLED.
// Returns ErrInvalidTransition if the job already finished.
func (s *RenderService) CancelJob(ctx context.Context, id string) (*Job, error) {
	s.mu.Lock()
	run, ok := s.active[id]
	if !ok {
		defer s.mu.Unlock()
		job, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := job.Cancel(); err != nil {
			return nil, err
		}
		if err := s.repo.Save(ctx, job); err != nil {
			return nil, err
		}
		if job.InputImagePath != "" {
			_ = s.store.CleanupTemp(ctx, []string{job.InputImagePath})
		}
		s.logger.Info("job cancelled", slog.String("job_id", id))
		return job, nil
	}
	s.mu.Unlock()

	run.cancel(ErrJobCancelled)
	select {
	case <-run.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.repo.FindByID(ctx, id)
}

// OpenVideo opens the rendered video of a completed job.
// The caller is responsible for closing the returned ReadCloser.
func (s *RenderService) OpenVideo(ctx context.Context, id string) (io.ReadCloser, *Job, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if job.GetStatus() != StatusCompleted || job.OutputVideoPath == "" {
		return nil, nil, ErrVideoNotAvailable
	}
	rc, err := s.store.LoadTemp(ctx, job.OutputVideoPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrVideoNotAvailable, err)
	}
	return rc, job, nil
}

// DeleteJobVideo removes a job's local video and its published copy.
// The job itself is kept, with its output cleared.
func (s *RenderService) DeleteJobVideo(ctx context.Context, id string) (*Job, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.OutputVideoPath == "" && job.VideoKey == "" {
		return nil, ErrVideoNotAvailable
	}

	if job.OutputVideoPath != "" {
		if err := s.store.CleanupTemp(ctx, []string{job.OutputVideoPath}); err != nil {
			return nil, fmt.Errorf("job: delete video: %w", err)
		}
	}
	if job.VideoKey != "" {
		if err := s.store.Unpublish(ctx, job.VideoKey); err != nil {
			return nil, fmt.Errorf("job: unpublish video: %w", err)
		}
	}

	job.ClearOutput()
	if err := s.repo.Save(ctx, job); err != nil {
		return nil, err
	}
	s.logger.Info("job video deleted", slog.String("job_id", id))
	return job, nil
}

// Shutdown cancels every running job and waits for them to be persisted,
// or for ctx to end.
func (s *RenderService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, run := range s.active {
		run.cancel(context.Canceled)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

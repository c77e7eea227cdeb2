package slideshow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Renderer turns a SourceImage and a Script into a RenderedVideo.
// A Renderer holds no per-render state and may be shared; every Render call
// owns its own frame buffer, font face, pacer and capture pipeline.
type Renderer struct {
	encoder  Encoder
	pacer    PacerFactory
	fontSize float64
	progress func(done, total int)
	logger   *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithPacer overrides the frame pacing. The default paces in real time.
func WithPacer(f PacerFactory) Option {
	return func(r *Renderer) {
		r.pacer = f
	}
}

// WithFontSize sets the caption font size in pixels.
func WithFontSize(size float64) Option {
	return func(r *Renderer) {
		if size > 0 {
			r.fontSize = size
		}
	}
}

// WithProgress registers a callback invoked after every submitted frame.
func WithProgress(fn func(done, total int)) Option {
	return func(r *Renderer) {
		r.progress = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRenderer creates a Renderer that encodes through enc.
func NewRenderer(enc Encoder, opts ...Option) *Renderer {
	r := &Renderer{
		encoder:  enc,
		pacer:    NewRealtimePacer,
		fontSize: DefaultFontSize,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render draws every frame of every scene, submits them to a fresh capture
// pipeline and returns the encoded video. It blocks until the pipeline has
// finished or failed. Any failure, including ctx cancellation, aborts the
// pipeline and returns no partial output.
func (r *Renderer) Render(ctx context.Context, img SourceImage, script Script, cfg Config) (*RenderedVideo, error) {
	if err := img.validate(); err != nil {
		return nil, err
	}
	if err := script.Validate(); err != nil {
		return nil, err
	}
	script = script.usable()
	cfg = cfg.withDefaults()
	if err := cfg.Validate(script.Len()); err != nil {
		return nil, err
	}
	if r.encoder == nil {
		return nil, fmt.Errorf("%w: no encoder configured", ErrPipelineInit)
	}

	perScene := FramesPerScene(cfg.TotalDuration, script.Len(), cfg.FPS)
	total := perScene * script.Len()

	comp, err := newCompositor(img, script, cfg, r.fontSize)
	if err != nil {
		return nil, err
	}
	defer func() { _ = comp.Close() }()

	capture, err := r.encoder.Open(ctx, StreamSpec{Width: cfg.Width, Height: cfg.Height, FPS: cfg.FPS})
	if err != nil {
		if !errors.Is(err, ErrPipelineInit) {
			err = fmt.Errorf("%w: %w", ErrPipelineInit, err)
		}
		return nil, err
	}
	finished := false
	defer func() {
		if !finished {
			capture.Abort()
		}
	}()

	pacer := r.pacer(cfg.FrameInterval())
	defer pacer.Stop()

	start := time.Now()
	r.logger.Debug("render started",
		slog.Int("scenes", script.Len()),
		slog.Int("frames_per_scene", perScene),
		slog.Int("width", cfg.Width),
		slog.Int("height", cfg.Height),
		slog.Duration("target_duration", cfg.TotalDuration),
	)

	done := 0
	for s := range script.Scenes {
		for f := 0; f < perScene; f++ {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("slideshow: render cancelled: %w", err)
			}
			frame := comp.Compose(s, f, perScene)
			if err := capture.WriteFrame(ctx, frame); err != nil {
				return nil, fmt.Errorf("slideshow: submit frame %d of scene %d: %w", f, s+1, err)
			}
			done++
			if r.progress != nil {
				r.progress(done, total)
			}
			// The wait after the last frame leaves it one full interval to be
			// sampled before the pipeline is finalized.
			if err := pacer.Wait(ctx); err != nil {
				return nil, err
			}
		}
	}

	finished = true
	data, err := capture.Finish(ctx)
	if err != nil {
		return nil, fmt.Errorf("slideshow: finalize capture: %w", err)
	}

	video := &RenderedVideo{
		Data:           data,
		MIMEType:       r.encoder.MIMEType(),
		Frames:         total,
		FramesPerScene: perScene,
		Duration:       time.Duration(int64(total) * int64(time.Second) / int64(cfg.FPS)),
		Width:          cfg.Width,
		Height:         cfg.Height,
		FPS:            cfg.FPS,
	}

	r.logger.Debug("render finished",
		slog.Int("frames", total),
		slog.Int("bytes", len(data)),
		slog.Duration("elapsed", time.Since(start)),
	)

	return video, nil
}

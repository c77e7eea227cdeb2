package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/slideshow-api/internal/beam"
	"github.com/maauso/slideshow-api/internal/remote"
)

const beamDetails = "check that BEAM_TOKEN and BEAM_QUEUE_URL are configured correctly"

// Beam generates clips on a Beam.cloud task queue.
type Beam struct {
	client beam.Client
	poller remote.Poller
	logger *slog.Logger
}

// NewBeam adapts a Beam client. Only the poller and logger options apply.
func NewBeam(client beam.Client, opts ...Option) *Beam {
	s := newSettings("", "", opts)
	return &Beam{client: client, poller: s.poller, logger: s.logger}
}

// Name implements Provider.
func (a *Beam) Name() string { return "beam" }

// Supports implements Provider.
func (a *Beam) Supports(kind Kind) bool {
	return kind == KindImageToVideo || kind == KindTextToVideo
}

// FetchMedia implements Provider.
func (a *Beam) FetchMedia(ctx context.Context, req Request) (Result, error) {
	if err := validate(a, req); err != nil {
		return Result{}, err
	}

	opts := beam.DefaultSubmitOptions()
	opts.Prompt = req.Prompt

	image := ""
	if req.Kind == KindImageToVideo {
		image = req.ImageBase64
	}

	taskID, err := a.client.Submit(ctx, image, opts)
	if err != nil {
		return Result{}, fmt.Errorf("beam adapter submit: %w", err)
	}

	a.logger.Info("beam task submitted", slog.String("task_id", taskID))

	job := asyncJob{
		provider: a.Name(),
		id:       taskID,
		details:  beamDetails,
		check: func(ctx context.Context) (jobState, error) {
			res, err := a.client.Poll(ctx, taskID)
			if err != nil {
				return jobState{}, fmt.Errorf("beam adapter poll: %w", err)
			}
			st := jobState{
				Status:   string(res.Status),
				Terminal: res.Status.IsTerminal(),
				Failed:   res.Status.IsTerminal() && !res.Status.Succeeded(),
				Message:  res.Error,
			}
			if res.OutputURL != "" {
				st.Output = res.OutputURL
			}
			return st, nil
		},
	}

	st, err := awaitJob(ctx, a.poller, a.logger, job)
	if err != nil {
		return Result{}, err
	}

	if st.Output == nil {
		return Result{}, fmt.Errorf("%w: %w", remote.ErrResponseShape, beam.ErrNoOutputURL)
	}
	u, err := outputURL(job, st)
	if err != nil {
		return Result{}, err
	}
	return Result{URL: u, Provider: a.Name(), Kind: req.Kind}, nil
}

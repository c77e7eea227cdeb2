package provider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/maauso/slideshow-api/internal/remote"
)

// cancelTimeout bounds the best-effort remote cancel issued after polling gives up.
const cancelTimeout = 10 * time.Second

// jobState is one observation of an asynchronous remote job.
type jobState struct {
	Status   string
	Terminal bool
	Failed   bool
	// Message is the provider's failure text.
	Message string
	// Output is the decoded job output, searched for a media URL on success.
	Output any
}

type checkJob func(ctx context.Context) (jobState, error)

type cancelJob func(ctx context.Context) error

// asyncJob describes a submitted job to wait for.
type asyncJob struct {
	provider string
	id       string
	details  string
	check    checkJob
	// cancel is optional; it is called when polling stops before the job finished.
	cancel cancelJob
}

// awaitJob polls job until it reaches a terminal state. A failed job yields a
// *remote.Error wrapping remote.ErrJobFailed; an exhausted budget yields
// *remote.PollTimeoutError after the remote job was asked to stop.
func awaitJob(ctx context.Context, poller remote.Poller, logger *slog.Logger, job asyncJob) (jobState, error) {
	var last jobState
	err := poller.Poll(ctx, job.provider, job.id, func(ctx context.Context) (string, bool, error) {
		st, err := job.check(ctx)
		if err != nil {
			return "", false, err
		}
		last = st
		logger.Debug("remote job status",
			slog.String("provider", job.provider),
			slog.String("job_id", job.id),
			slog.String("status", st.Status),
		)
		return st.Status, st.Terminal, nil
	})

	if err != nil {
		if job.cancel != nil && (errors.Is(err, remote.ErrPollTimeout) || ctx.Err() != nil) {
			cancelRemote(ctx, logger, job)
		}
		return jobState{}, err
	}

	if last.Failed {
		msg := last.Message
		if msg == "" {
			msg = "job " + job.id + " ended with status " + last.Status
		}
		return last, &remote.Error{
			Provider: job.provider,
			Message:  msg,
			Details:  job.details,
			Err:      remote.ErrJobFailed,
		}
	}

	return last, nil
}

func cancelRemote(ctx context.Context, logger *slog.Logger, job asyncJob) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()

	if err := job.cancel(cctx); err != nil {
		logger.Warn("failed to cancel remote job",
			slog.String("provider", job.provider),
			slog.String("job_id", job.id),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Info("cancelled remote job",
		slog.String("provider", job.provider),
		slog.String("job_id", job.id),
	)
}

// outputURL finds the media URL in a finished job's output.
func outputURL(job asyncJob, st jobState) (string, error) {
	u, err := remote.URLFromValue(st.Output)
	if err != nil {
		if msg := errorField(st.Output); msg != "" {
			return "", &remote.Error{
				Provider: job.provider,
				Message:  msg,
				Details:  job.details,
				Err:      remote.ErrJobFailed,
			}
		}
		return "", err
	}
	return u, nil
}

// errorField returns a top-level or nested "error" string from a decoded output.
func errorField(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	if s, ok := m["error"].(string); ok {
		return s
	}
	if inner, ok := m["output"]; ok {
		return errorField(inner)
	}
	return ""
}

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maauso/slideshow-api/internal/remote"
	"github.com/maauso/slideshow-api/internal/runpod"
)

const runpodDetails = "check that RUNPOD_API_KEY and RUNPOD_ENDPOINT_ID are configured correctly"

// RunPod animates images on a RunPod serverless endpoint.
type RunPod struct {
	client runpod.Client
	poller remote.Poller
	logger *slog.Logger
}

// NewRunPod adapts a RunPod client. Only the poller and logger options apply.
func NewRunPod(client runpod.Client, opts ...Option) *RunPod {
	s := newSettings("", "", opts)
	return &RunPod{client: client, poller: s.poller, logger: s.logger}
}

// Name implements Provider.
func (a *RunPod) Name() string { return "runpod" }

// Supports implements Provider.
func (a *RunPod) Supports(kind Kind) bool { return kind == KindImageToVideo }

// FetchMedia implements Provider.
func (a *RunPod) FetchMedia(ctx context.Context, req Request) (Result, error) {
	if err := validate(a, req); err != nil {
		return Result{}, err
	}

	jobID, err := a.client.Submit(ctx, req.ImageBase64, runpod.SubmitOptions{Prompt: req.Prompt})
	if err != nil {
		return Result{}, fmt.Errorf("runpod adapter submit: %w", err)
	}

	a.logger.Info("runpod job submitted", slog.String("job_id", jobID))

	job := asyncJob{
		provider: a.Name(),
		id:       jobID,
		details:  runpodDetails,
		check: func(ctx context.Context) (jobState, error) {
			res, err := a.client.Poll(ctx, jobID)
			if err != nil {
				return jobState{}, fmt.Errorf("runpod adapter poll: %w", err)
			}
			return runpodState(res)
		},
		cancel: func(ctx context.Context) error {
			return a.client.Cancel(ctx, jobID)
		},
	}

	st, err := awaitJob(ctx, a.poller, a.logger, job)
	if err != nil {
		return Result{}, err
	}

	u, err := outputURL(job, st)
	if err != nil {
		return Result{}, err
	}
	return Result{URL: u, Provider: a.Name(), Kind: req.Kind}, nil
}

func runpodState(res runpod.PollResult) (jobState, error) {
	st := jobState{
		Status:   string(res.Status),
		Terminal: res.Status.IsTerminal(),
		Message:  res.Error,
	}
	st.Failed = st.Terminal && res.Status != runpod.StatusCompleted

	if res.Status == runpod.StatusCompleted && len(res.Output) > 0 {
		var out any
		if err := json.Unmarshal(res.Output, &out); err != nil {
			return jobState{}, fmt.Errorf("%w: runpod output: %w", remote.ErrResponseShape, err)
		}
		st.Output = inlineVideo(out)
	}
	return st, nil
}

// inlineVideo rewrites bare base64 video payloads, returned by handlers that
// skip uploading, into data URLs so they can be located like any other URL.
func inlineVideo(v any) any {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" && !strings.ContainsAny(s, " :") {
			return "data:video/mp4;base64," + s
		}
	case map[string]any:
		for _, field := range []string{"video", "output"} {
			if inner, ok := t[field]; ok {
				t[field] = inlineVideo(inner)
			}
		}
	}
	return v
}

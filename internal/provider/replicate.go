package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/maauso/slideshow-api/internal/remote"
)

// ErrReplicateKeyNotSet is returned when no Replicate API key is configured.
var ErrReplicateKeyNotSet = errors.New("provider: REPLICATE_API_KEY is not set")

// Default Replicate models per kind.
const (
	DefaultReplicateImageModel     = "black-forest-labs/flux-schnell"
	DefaultReplicateTextVideoModel = "minimax/video-01"
	DefaultReplicateAnimateModel   = "minimax/hailuo-02"
)

// replicateClipSeconds is the image-to-video clip length. Longer clips are
// restricted to lower resolutions by the model.
const replicateClipSeconds = 6

const replicateDetails = "check that REPLICATE_API_KEY is configured correctly"

// Replicate generates media through Replicate model predictions.
type Replicate struct {
	s      settings
	client *remote.Client
}

// NewReplicate creates a Replicate provider. The key falls back to REPLICATE_API_KEY.
func NewReplicate(opts ...Option) (*Replicate, error) {
	s := newSettings("https://api.replicate.com/v1", "REPLICATE_API_KEY", opts)
	if s.apiKey == "" {
		return nil, ErrReplicateKeyNotSet
	}

	defaults := map[Kind]string{
		KindTextToImage:  DefaultReplicateImageModel,
		KindTextToVideo:  DefaultReplicateTextVideoModel,
		KindImageToVideo: DefaultReplicateAnimateModel,
	}
	for kind, model := range defaults {
		if _, ok := s.models[kind]; !ok {
			s.models[kind] = model
		}
	}

	return &Replicate{
		s:      s,
		client: s.remoteClient("replicate", replicateDetails),
	}, nil
}

// Name implements Provider.
func (r *Replicate) Name() string { return "replicate" }

// Supports implements Provider.
func (r *Replicate) Supports(kind Kind) bool {
	_, ok := r.s.models[kind]
	return ok
}

type replicateRequest struct {
	Input map[string]any `json:"input"`
}

type replicatePrediction struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Output any    `json:"output"`
	Error  any    `json:"error"`
}

func (p replicatePrediction) state() jobState {
	st := jobState{Status: p.Status, Output: p.Output}
	switch p.Status {
	case "succeeded":
		st.Terminal = true
	case "failed", "canceled":
		st.Terminal = true
		st.Failed = true
		if p.Error != nil {
			st.Message = fmt.Sprint(p.Error)
		}
	}
	return st
}

// FetchMedia implements Provider.
func (r *Replicate) FetchMedia(ctx context.Context, req Request) (Result, error) {
	if err := validate(r, req); err != nil {
		return Result{}, err
	}

	input := map[string]any{"prompt": req.Prompt}
	if req.Kind == KindImageToVideo {
		input["image"] = imageDataURL(req.ImageBase64)
		input["duration"] = replicateClipSeconds
	}

	model := r.s.models[req.Kind]
	url := fmt.Sprintf("%s/models/%s/predictions", r.s.baseURL, model)

	var created replicatePrediction
	if err := r.client.DoJSON(ctx, http.MethodPost, url, replicateRequest{Input: input}, &created); err != nil {
		return Result{}, err
	}
	if created.ID == "" {
		return Result{}, fmt.Errorf("%w: replicate prediction has no id", remote.ErrResponseShape)
	}

	r.s.logger.Info("replicate prediction created",
		slog.String("prediction_id", created.ID),
		slog.String("model", model),
		slog.String("kind", string(req.Kind)),
	)

	job := asyncJob{
		provider: r.Name(),
		id:       created.ID,
		details:  replicateDetails,
		check: func(ctx context.Context) (jobState, error) {
			var p replicatePrediction
			err := r.client.DoJSON(ctx, http.MethodGet, r.s.baseURL+"/predictions/"+created.ID, nil, &p)
			return p.state(), err
		},
		cancel: func(ctx context.Context) error {
			return r.client.DoJSON(ctx, http.MethodPost, r.s.baseURL+"/predictions/"+created.ID+"/cancel", nil, nil)
		},
	}

	// Predictions created with a synchronous wait may already be finished.
	st := created.state()
	if !st.Terminal {
		var err error
		if st, err = awaitJob(ctx, r.s.poller, r.s.logger, job); err != nil {
			return Result{}, err
		}
	} else if st.Failed {
		return Result{}, &remote.Error{Provider: r.Name(), Message: st.Message, Details: replicateDetails, Err: remote.ErrJobFailed}
	}

	u, err := outputURL(job, st)
	if err != nil {
		return Result{}, err
	}
	return Result{URL: u, Provider: r.Name(), Kind: req.Kind}, nil
}

// imageDataURL turns plain base64 into a data URL, sniffing the image type.
func imageDataURL(b64 string) string {
	b64 = strings.TrimSpace(b64)
	if strings.HasPrefix(b64, "data:") {
		return b64
	}
	head, err := base64.StdEncoding.DecodeString(b64[:min(len(b64), 64)&^3])
	if err != nil {
		return "data:image/png;base64," + b64
	}
	return "data:" + http.DetectContentType(head) + ";base64," + b64
}

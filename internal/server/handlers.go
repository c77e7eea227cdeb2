package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/slideshow-api/internal/job"
	"github.com/maauso/slideshow-api/internal/provider"
	"github.com/maauso/slideshow-api/internal/scenario"
)

// maxBodyBytes bounds request bodies, which carry base64 images.
const maxBodyBytes = 32 << 20

// MediaFetcher resolves a provider and fetches generated media.
// It is satisfied by *provider.Registry.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, name string, req provider.Request) (provider.Result, error)
	Names() []string
	Default() string
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.RenderService
	scenarios          scenario.Source
	media              MediaFetcher
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateJob only creates the job and returns immediately
// without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithScenarioSource enables POST /scenarios.
func WithScenarioSource(src scenario.Source) HandlerOption {
	return func(h *Handlers) {
		h.scenarios = src
	}
}

// WithMedia enables POST /media.
func WithMedia(m MediaFetcher) HandlerOption {
	return func(h *Handlers) {
		h.media = m
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.RenderService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		validator:          validator.New(),
		logger:             logger,
		enableAsyncProcess: true, // Default to enabled
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// decodeAndValidate reads a JSON body into dst and validates it.
// It writes the error response and returns false on failure.
func (h *Handlers) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

// GenerateScenario handles POST /scenarios requests.
func (h *Handlers) GenerateScenario(w http.ResponseWriter, r *http.Request) {
	if h.scenarios == nil {
		writeError(w, http.StatusServiceUnavailable, "no scenario source configured", "SCENARIO_SOURCE_UNAVAILABLE")
		return
	}

	var req ScenarioRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	sc, err := h.scenarios.FetchScenario(r.Context(), req.Prompt)
	if err != nil {
		h.writeServiceError(w, err, "failed to generate scenario", "SCENARIO_FAILED")
		return
	}

	h.logger.Info("scenario generated",
		slog.String("source", h.scenarios.Name()),
		slog.Int("scenes", sc.Script.Len()),
	)

	writeJSON(w, http.StatusOK, ScenarioResponse{
		Success:  true,
		Scenario: sc.Text,
		Scenes:   sc.Script.Texts(),
		Source:   h.scenarios.Name(),
	})
}

// FetchMedia handles POST /media requests.
func (h *Handlers) FetchMedia(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		writeError(w, http.StatusServiceUnavailable, "no media providers configured", "NO_MEDIA_PROVIDERS")
		return
	}

	var req MediaRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	kind, err := provider.ParseKind(req.Type)
	if err != nil {
		h.writeServiceError(w, err, "failed to fetch media", "MEDIA_FAILED")
		return
	}

	res, err := h.media.FetchMedia(r.Context(), req.Provider, provider.Request{
		ImageBase64: req.ImageBase64,
		Prompt:      req.Prompt,
		Kind:        kind,
		Style:       req.Style,
	})
	if err != nil {
		h.writeServiceError(w, err, "failed to fetch media", "MEDIA_FAILED")
		return
	}

	h.logger.Info("media fetched",
		slog.String("provider", res.Provider),
		slog.String("type", string(res.Kind)),
	)

	resp := MediaResponse{
		Success: true,
		Result: MediaResult{
			URL:      res.URL,
			Provider: res.Provider,
			Type:     string(res.Kind),
		},
	}
	if res.Kind != provider.KindTextToImage {
		resp.VideoURL = res.URL
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListProviders handles GET /media/providers requests.
func (h *Handlers) ListProviders(w http.ResponseWriter, r *http.Request) {
	resp := ProvidersResponse{Providers: []string{}}
	if h.media != nil {
		resp.Providers = h.media.Names()
		resp.Default = h.media.Default()
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateJob handles POST /jobs requests.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	createdJob, err := h.service.CreateJob(r.Context(), job.RenderInput{
		ImageBase64: req.ImageBase64,
		Prompt:      req.Prompt,
		Scenes:      req.Scenes,
		DurationSec: req.DurationSec,
		PushToS3:    req.PushToS3,
	})
	if err != nil {
		h.writeServiceError(w, err, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	// Start processing in background with a detached context
	// Use context.WithoutCancel to prevent cancellation when the request ends
	if h.enableAsyncProcess {
		go func(ctx context.Context, jobID string) {
			if err := h.service.ProcessExistingJob(ctx, jobID); err != nil {
				h.logger.Error("background processing failed",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), createdJob.ID)
	}

	h.logger.Info("job created",
		slog.String("job_id", createdJob.ID),
		slog.Int("scenes", len(createdJob.Scenes)),
		slog.Int("duration_sec", createdJob.DurationSec),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     createdJob.ID,
		Status: string(createdJob.Status),
	})
}

// ListJobs handles GET /jobs requests.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to list jobs", "JOB_FETCH_FAILED")
		return
	}
	resp := ListJobsResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(w, r)
	if !ok {
		return
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		h.writeServiceError(w, err, "failed to get job", "JOB_FETCH_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(foundJob))
}

// GetJobVideo handles GET /jobs/{id}/video requests by streaming the local video.
func (h *Handlers) GetJobVideo(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(w, r)
	if !ok {
		return
	}

	rc, _, err := h.service.OpenVideo(r.Context(), jobID)
	if err != nil {
		h.writeServiceError(w, err, "failed to open video", "VIDEO_FETCH_FAILED")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(jobID+".mp4"))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("failed to stream video",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// CancelJob handles POST /jobs/{id}/cancel requests.
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(w, r)
	if !ok {
		return
	}

	cancelled, err := h.service.CancelJob(r.Context(), jobID)
	if err != nil {
		h.writeServiceError(w, err, "failed to cancel job", "JOB_CANCEL_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(cancelled))
}

// DeleteJobVideo handles DELETE /jobs/{id}/video requests.
func (h *Handlers) DeleteJobVideo(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(w, r)
	if !ok {
		return
	}

	updated, err := h.service.DeleteJobVideo(r.Context(), jobID)
	if err != nil {
		h.writeServiceError(w, err, "failed to delete video", "VIDEO_DELETE_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(updated))
}

func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return "", false
	}
	return jobID, true
}

func toJobResponse(j *job.Job) JobResponse {
	snap := j.Clone()
	resp := JobResponse{
		ID:             snap.ID,
		Status:         string(snap.Status),
		Progress:       snap.Progress,
		FramesRendered: snap.FramesRendered,
		FramesTotal:    snap.FramesTotal,
		DurationSec:    snap.DurationSec,
		Prompt:         snap.Prompt,
		Scenario:       snap.Scenario,
		Scenes:         snap.Scenes,
		Error:          snap.Error,
		VideoURL:       snap.VideoURL,
		CreatedAt:      snap.CreatedAt,
		UpdatedAt:      snap.UpdatedAt,
		CompletedAt:    snap.CompletedAt,
	}
	if snap.Status == job.StatusCompleted && snap.OutputVideoPath != "" {
		resp.DownloadURL = "/jobs/" + snap.ID + "/video"
	}
	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

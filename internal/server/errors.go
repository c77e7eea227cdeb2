package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/maauso/slideshow-api/internal/job"
	"github.com/maauso/slideshow-api/internal/provider"
	"github.com/maauso/slideshow-api/internal/remote"
	"github.com/maauso/slideshow-api/internal/scenario"
	"github.com/maauso/slideshow-api/internal/slideshow"
	"github.com/maauso/slideshow-api/internal/storage"
)

// errorMapping binds a domain error to its HTTP status and error code.
type errorMapping struct {
	err    error
	status int
	code   string
}

// errorMappings is checked in order; the first match wins.
var errorMappings = []errorMapping{
	{job.ErrJobNotFound, http.StatusNotFound, "JOB_NOT_FOUND"},
	{job.ErrVideoNotAvailable, http.StatusNotFound, "VIDEO_NOT_AVAILABLE"},
	{job.ErrInvalidTransition, http.StatusConflict, "INVALID_JOB_STATE"},
	{job.ErrImageRequired, http.StatusBadRequest, "VALIDATION_ERROR"},
	{job.ErrScenesOrPromptRequired, http.StatusBadRequest, "VALIDATION_ERROR"},
	{job.ErrNoScenarioSource, http.StatusServiceUnavailable, "SCENARIO_SOURCE_UNAVAILABLE"},
	{scenario.ErrPromptRequired, http.StatusBadRequest, "VALIDATION_ERROR"},
	{provider.ErrPromptRequired, http.StatusBadRequest, "VALIDATION_ERROR"},
	{provider.ErrImageRequired, http.StatusBadRequest, "VALIDATION_ERROR"},
	{provider.ErrUnknownProvider, http.StatusBadRequest, "UNKNOWN_PROVIDER"},
	{provider.ErrUnsupportedKind, http.StatusBadRequest, "UNSUPPORTED_MEDIA_TYPE"},
	{provider.ErrNoProviders, http.StatusServiceUnavailable, "NO_MEDIA_PROVIDERS"},
	{slideshow.ErrDecode, http.StatusBadRequest, "INVALID_IMAGE"},
	{slideshow.ErrInvalidConfig, http.StatusBadRequest, "INVALID_RENDER_CONFIG"},
	{slideshow.ErrEmptyScript, http.StatusUnprocessableEntity, "EMPTY_SCRIPT"},
	{slideshow.ErrPipelineInit, http.StatusServiceUnavailable, "PIPELINE_UNAVAILABLE"},
	{storage.ErrS3NotConfigured, http.StatusServiceUnavailable, "S3_NOT_CONFIGURED"},
	{remote.ErrPollTimeout, http.StatusGatewayTimeout, "REMOTE_TIMEOUT"},
	{remote.ErrResponseShape, http.StatusBadGateway, "REMOTE_RESPONSE_INVALID"},
	{remote.ErrJobFailed, http.StatusBadGateway, "REMOTE_JOB_FAILED"},
	{remote.ErrRemoteRequest, http.StatusBadGateway, "REMOTE_REQUEST_FAILED"},
}

// statusFor returns the HTTP status and code for err, or false if err is not
// a known domain error.
func statusFor(err error) (int, string, bool) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code, true
		}
	}
	return 0, "", false
}

// writeServiceError maps err to a response. Unknown errors are logged and
// answered with 500 and fallbackCode.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error, fallbackMsg, fallbackCode string) {
	status, code, ok := statusFor(err)
	if !ok {
		h.logger.Error(fallbackMsg, slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, fallbackMsg, fallbackCode)
		return
	}
	if status >= http.StatusInternalServerError {
		h.logger.Warn(fallbackMsg,
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, status, ErrorResponse{
		Error:   err.Error(),
		Code:    code,
		Details: remote.DetailsOf(err),
	})
}

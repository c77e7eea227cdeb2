// Package job provides the Job aggregate for slideshow render jobs.
// It includes the Job entity with its state machine, the repository port
// with in-memory and Redis adapters, and the RenderService use case.
package job

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/maauso/slideshow-api/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job is waiting to be rendered.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the job is being rendered.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the video was rendered and stored.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the render or one of its inputs failed.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was manually cancelled.
	StatusCancelled Status = "CANCELLED"
	// StatusTimedOut indicates a remote dependency did not answer in time.
	StatusTimedOut Status = "TIMED_OUT"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled, StatusTimedOut},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
	StatusTimedOut:  {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// Job represents a slideshow render job aggregate.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string `json:"id"`
	// Status is the current job state.
	Status Status `json:"status"`
	// Prompt is the idea the scenario is generated from when no scenes are given.
	Prompt string `json:"prompt,omitempty"`
	// Scenario is the raw scenario text returned by the scenario source.
	Scenario string `json:"scenario,omitempty"`
	// Scenes are the captions rendered in order.
	Scenes []string `json:"scenes,omitempty"`
	// DurationSec is the requested total video length.
	DurationSec int `json:"durationSec"`
	// FramesRendered is the number of frames submitted so far.
	FramesRendered int `json:"framesRendered"`
	// FramesTotal is the frame budget of the whole video.
	FramesTotal int `json:"framesTotal"`
	// Progress is the percentage of completion (0-100).
	Progress int `json:"progress"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
	// InputImagePath is the path to the uploaded source image.
	InputImagePath string `json:"inputImagePath,omitempty"`
	// OutputVideoPath is the path to the rendered video.
	OutputVideoPath string `json:"outputVideoPath,omitempty"`
	// PushToS3 indicates whether to publish the result to object storage.
	PushToS3 bool `json:"pushToS3"`
	// VideoURL is the published URL if PushToS3 was true.
	VideoURL string `json:"videoUrl,omitempty"`
	// VideoKey is the object key of the published video.
	VideoKey string `json:"videoKey,omitempty"`
	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time `json:"updatedAt"`
	// StartedAt is when rendering started.
	StartedAt time.Time `json:"startedAt,omitzero"`
	// CompletedAt is when the job reached a terminal state.
	CompletedAt time.Time `json:"completedAt,omitzero"`
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
// Useful for testing or when ID needs to be externally generated.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusInQueue,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted:
		j.Progress = 100
		j.CompletedAt = j.UpdatedAt
	case StatusFailed, StatusCancelled, StatusTimedOut:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED state.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	return j.endWithError(StatusFailed, errMsg)
}

// Cancel transitions the job to CANCELLED state.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// Timeout transitions the job to TIMED_OUT state with an error message.
func (j *Job) Timeout(errMsg string) error {
	return j.endWithError(StatusTimedOut, errMsg)
}

func (j *Job) endWithError(status Status, errMsg string) error {
	if err := j.TransitionTo(status); err != nil {
		return err
	}
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return nil
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetScenario records the scenario text and the scenes that will be rendered.
func (j *Job) SetScenario(text string, scenes []string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Scenario = text
	j.Scenes = slices.Clone(scenes)
	j.UpdatedAt = time.Now()
}

// UpdateFrames records render progress. Progress stays below 100 until the
// video has been stored and the job completes.
func (j *Job) UpdateFrames(done, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.FramesRendered = done
	j.FramesTotal = total
	if total > 0 {
		j.Progress = min(done*100/total, 99)
	}
	j.UpdatedAt = time.Now()
}

// UpdateProgress sets the progress percentage (0-100).
func (j *Job) UpdateProgress(progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress = max(0, min(progress, 100))
	j.UpdatedAt = time.Now()
}

// SetOutput sets the output video path and the optional published URL and key.
func (j *Job) SetOutput(videoPath, videoURL, videoKey string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputVideoPath = videoPath
	j.VideoURL = videoURL
	j.VideoKey = videoKey
	j.UpdatedAt = time.Now()
}

// ClearOutput clears the output video path, URL and key.
// This is used when deleting the job's video.
func (j *Job) ClearOutput() {
	j.SetOutput("", "", "")
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(validTransitions[j.Status]) == 0
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:              j.ID,
		Status:          j.Status,
		Prompt:          j.Prompt,
		Scenario:        j.Scenario,
		Scenes:          slices.Clone(j.Scenes),
		DurationSec:     j.DurationSec,
		FramesRendered:  j.FramesRendered,
		FramesTotal:     j.FramesTotal,
		Progress:        j.Progress,
		Error:           j.Error,
		InputImagePath:  j.InputImagePath,
		OutputVideoPath: j.OutputVideoPath,
		PushToS3:        j.PushToS3,
		VideoURL:        j.VideoURL,
		VideoKey:        j.VideoKey,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
	}
}

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/slideshow-api/internal/remote"
	"github.com/maauso/slideshow-api/internal/runpod"
)

// mockRunPodClient is a simple mock for testing the RunPod provider.
type mockRunPodClient struct {
	mock.Mock
}

func (m *mockRunPodClient) Submit(ctx context.Context, imageB64 string, opts runpod.SubmitOptions) (string, error) {
	args := m.Called(ctx, imageB64, opts)
	return args.String(0), args.Error(1)
}

func (m *mockRunPodClient) Poll(ctx context.Context, jobID string) (runpod.PollResult, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).(runpod.PollResult), args.Error(1)
}

func (m *mockRunPodClient) Cancel(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func animateRequest() Request {
	return Request{ImageBase64: "base64image", Prompt: "gentle sway", Kind: KindImageToVideo}
}

func TestRunPod_FetchMedia(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockRunPodClient{}
	p := NewRunPod(mockClient, WithPoller(fastPoller(5)))

	mockClient.On("Submit", ctx, "base64image", mock.MatchedBy(func(o runpod.SubmitOptions) bool {
		return o.Prompt == "gentle sway"
	})).Return("job-123", nil)
	mockClient.On("Poll", mock.Anything, "job-123").
		Return(runpod.PollResult{Status: runpod.StatusInProgress}, nil).Once()
	mockClient.On("Poll", mock.Anything, "job-123").
		Return(runpod.PollResult{
			Status: runpod.StatusCompleted,
			Output: json.RawMessage(`{"output":{"video_url":"https://cdn.example.com/clip.mp4","frames_generated":25}}`),
		}, nil).Once()

	res, err := p.FetchMedia(ctx, animateRequest())
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/clip.mp4", res.URL)
	assert.Equal(t, "runpod", res.Provider)
	mockClient.AssertExpectations(t)
	mockClient.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
}

func TestRunPod_FetchMedia_InlineVideo(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockRunPodClient{}
	p := NewRunPod(mockClient, WithPoller(fastPoller(5)))

	mockClient.On("Submit", ctx, mock.Anything, mock.Anything).Return("job-1", nil)
	mockClient.On("Poll", mock.Anything, "job-1").Return(runpod.PollResult{
		Status: runpod.StatusCompleted,
		Output: json.RawMessage(`{"video":"AAAAGGZ0eXBtcDQy"}`),
	}, nil)

	res, err := p.FetchMedia(ctx, animateRequest())
	require.NoError(t, err)
	assert.Equal(t, "data:video/mp4;base64,AAAAGGZ0eXBtcDQy", res.URL)
}

func TestRunPod_FetchMedia_HandlerError(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockRunPodClient{}
	p := NewRunPod(mockClient, WithPoller(fastPoller(5)))

	mockClient.On("Submit", ctx, mock.Anything, mock.Anything).Return("job-1", nil)
	mockClient.On("Poll", mock.Anything, "job-1").Return(runpod.PollResult{
		Status: runpod.StatusCompleted,
		Output: json.RawMessage(`{"error":"Video generation failed: CUDA out of memory"}`),
	}, nil)

	_, err := p.FetchMedia(ctx, animateRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrJobFailed)
	assert.Contains(t, err.Error(), "CUDA out of memory")
}

func TestRunPod_FetchMedia_Failed(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockRunPodClient{}
	p := NewRunPod(mockClient, WithPoller(fastPoller(5)))

	mockClient.On("Submit", ctx, mock.Anything, mock.Anything).Return("job-1", nil)
	mockClient.On("Poll", mock.Anything, "job-1").Return(runpod.PollResult{
		Status: runpod.StatusFailed,
		Error:  "worker crashed",
	}, nil)

	_, err := p.FetchMedia(ctx, animateRequest())
	assert.ErrorIs(t, err, remote.ErrJobFailed)
	assert.Equal(t, runpodDetails, remote.DetailsOf(err))
}

func TestRunPod_FetchMedia_TimeoutCancelsJob(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockRunPodClient{}
	p := NewRunPod(mockClient, WithPoller(fastPoller(3)))

	mockClient.On("Submit", ctx, mock.Anything, mock.Anything).Return("job-1", nil)
	mockClient.On("Poll", mock.Anything, "job-1").Return(runpod.PollResult{Status: runpod.StatusInQueue}, nil)
	mockClient.On("Cancel", mock.Anything, "job-1").Return(nil).Once()

	_, err := p.FetchMedia(ctx, animateRequest())
	require.ErrorIs(t, err, remote.ErrPollTimeout)
	mockClient.AssertNumberOfCalls(t, "Poll", 3)
	mockClient.AssertExpectations(t)
}

func TestRunPod_FetchMedia_SubmitError(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockRunPodClient{}
	p := NewRunPod(mockClient)

	mockClient.On("Submit", ctx, mock.Anything, mock.Anything).Return("", errors.New("submit failed"))

	_, err := p.FetchMedia(ctx, animateRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runpod adapter submit")
}

func TestRunPod_FetchMedia_PollError(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockRunPodClient{}
	p := NewRunPod(mockClient, WithPoller(fastPoller(3)))

	pollErr := &remote.Error{Provider: "runpod", StatusCode: 500, Message: "boom"}
	mockClient.On("Submit", ctx, mock.Anything, mock.Anything).Return("job-1", nil)
	mockClient.On("Poll", mock.Anything, "job-1").Return(runpod.PollResult{}, pollErr)

	_, err := p.FetchMedia(ctx, animateRequest())
	assert.ErrorIs(t, err, remote.ErrRemoteRequest)
	assert.Contains(t, err.Error(), "runpod adapter poll")
}

func TestRunPod_Supports(t *testing.T) {
	p := NewRunPod(&mockRunPodClient{})
	assert.True(t, p.Supports(KindImageToVideo))
	assert.False(t, p.Supports(KindTextToImage))
	assert.False(t, p.Supports(KindTextToVideo))

	_, err := p.FetchMedia(context.Background(), Request{Prompt: "x", Kind: KindTextToImage})
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestInlineVideo(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/a.mp4", inlineVideo("https://cdn.example.com/a.mp4"))
	assert.Equal(t, "data:video/mp4;base64,AAAA", inlineVideo("AAAA"))
	assert.Equal(t, "data:video/webm;base64,AAAA", inlineVideo("data:video/webm;base64,AAAA"))
	assert.Equal(t, "something went wrong", inlineVideo("something went wrong"))
}

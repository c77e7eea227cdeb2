package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/slideshow-api/internal/beam"
	"github.com/maauso/slideshow-api/internal/remote"
)

// mockBeamClient is a simple mock for testing the Beam provider.
type mockBeamClient struct {
	mock.Mock
}

func (m *mockBeamClient) Submit(ctx context.Context, imageB64 string, opts beam.SubmitOptions) (string, error) {
	args := m.Called(ctx, imageB64, opts)
	return args.String(0), args.Error(1)
}

func (m *mockBeamClient) Poll(ctx context.Context, taskID string) (beam.PollResult, error) {
	args := m.Called(ctx, taskID)
	return args.Get(0).(beam.PollResult), args.Error(1)
}

func TestBeam_FetchMedia_ImageToVideo(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockBeamClient{}
	p := NewBeam(mockClient, WithPoller(fastPoller(5)))

	mockClient.On("Submit", ctx, "base64image", mock.MatchedBy(func(o beam.SubmitOptions) bool {
		return o.Prompt == "gentle sway" && o.Duration == beam.DefaultSubmitOptions().Duration
	})).Return("task-123", nil)
	mockClient.On("Poll", mock.Anything, "task-123").
		Return(beam.PollResult{Status: beam.StatusRunning}, nil).Once()
	mockClient.On("Poll", mock.Anything, "task-123").
		Return(beam.PollResult{Status: beam.StatusCompleted, OutputURL: "https://beam.example.com/out.mp4"}, nil).Once()

	res, err := p.FetchMedia(ctx, animateRequest())
	require.NoError(t, err)
	assert.Equal(t, "https://beam.example.com/out.mp4", res.URL)
	assert.Equal(t, "beam", res.Provider)
	mockClient.AssertExpectations(t)
}

func TestBeam_FetchMedia_TextToVideoSendsNoImage(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockBeamClient{}
	p := NewBeam(mockClient, WithPoller(fastPoller(5)))

	mockClient.On("Submit", ctx, "", mock.Anything).Return("task-1", nil)
	mockClient.On("Poll", mock.Anything, "task-1").
		Return(beam.PollResult{Status: beam.StatusCompleted, OutputURL: "https://beam.example.com/t.mp4"}, nil)

	res, err := p.FetchMedia(ctx, Request{ImageBase64: "ignored", Prompt: "city at night", Kind: KindTextToVideo})
	require.NoError(t, err)
	assert.Equal(t, KindTextToVideo, res.Kind)
	mockClient.AssertExpectations(t)
}

func TestBeam_FetchMedia_Failed(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockBeamClient{}
	p := NewBeam(mockClient, WithPoller(fastPoller(5)))

	mockClient.On("Submit", ctx, mock.Anything, mock.Anything).Return("task-1", nil)
	mockClient.On("Poll", mock.Anything, "task-1").
		Return(beam.PollResult{Status: beam.StatusError, Error: "out of memory"}, nil)

	_, err := p.FetchMedia(ctx, animateRequest())
	require.ErrorIs(t, err, remote.ErrJobFailed)
	assert.Contains(t, err.Error(), "out of memory")
}

func TestBeam_FetchMedia_CompletedWithoutOutput(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockBeamClient{}
	p := NewBeam(mockClient, WithPoller(fastPoller(5)))

	mockClient.On("Submit", ctx, mock.Anything, mock.Anything).Return("task-1", nil)
	mockClient.On("Poll", mock.Anything, "task-1").
		Return(beam.PollResult{Status: beam.StatusCompleted, Error: beam.ErrNoOutputURL.Error()}, nil)

	_, err := p.FetchMedia(ctx, animateRequest())
	assert.ErrorIs(t, err, remote.ErrResponseShape)
	assert.ErrorIs(t, err, beam.ErrNoOutputURL)
}

func TestBeam_FetchMedia_Timeout(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockBeamClient{}
	p := NewBeam(mockClient, WithPoller(fastPoller(2)))

	mockClient.On("Submit", ctx, mock.Anything, mock.Anything).Return("task-1", nil)
	mockClient.On("Poll", mock.Anything, "task-1").Return(beam.PollResult{Status: beam.StatusPending}, nil)

	_, err := p.FetchMedia(ctx, animateRequest())
	require.ErrorIs(t, err, remote.ErrPollTimeout)
	mockClient.AssertNumberOfCalls(t, "Poll", 2)
}

func TestBeam_Supports(t *testing.T) {
	p := NewBeam(&mockBeamClient{})
	assert.True(t, p.Supports(KindImageToVideo))
	assert.True(t, p.Supports(KindTextToVideo))
	assert.False(t, p.Supports(KindTextToImage))
}

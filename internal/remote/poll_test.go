package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPoller(attempts int) Poller {
	return Poller{Interval: time.Millisecond, MaxAttempts: attempts}
}

func TestPoll_TimeoutAfterExactlyMaxAttempts(t *testing.T) {
	for _, maxAttempts := range []int{1, 3, 30} {
		calls := 0
		err := fastPoller(maxAttempts).Poll(context.Background(), "test", "job-1", func(context.Context) (string, bool, error) {
			calls++
			return "processing", false, nil
		})

		require.ErrorIs(t, err, ErrPollTimeout)
		assert.Equal(t, maxAttempts, calls)

		var pte *PollTimeoutError
		require.ErrorAs(t, err, &pte)
		assert.Equal(t, maxAttempts, pte.Attempts)
		assert.Equal(t, "processing", pte.LastStatus)
		assert.Equal(t, "job-1", pte.JobID)
	}
}

func TestPoll_StopsWhenDone(t *testing.T) {
	calls := 0
	err := fastPoller(10).Poll(context.Background(), "test", "job-1", func(context.Context) (string, bool, error) {
		calls++
		return "succeeded", calls == 3, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPoll_ReturnsCheckError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := fastPoller(10).Poll(context.Background(), "test", "job-1", func(context.Context) (string, bool, error) {
		calls++
		return "", false, boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestPoll_WaitsBeforeFirstCheck(t *testing.T) {
	p := Poller{Interval: 30 * time.Millisecond, MaxAttempts: 1}
	start := time.Now()
	var firstCheck time.Duration

	_ = p.Poll(context.Background(), "test", "job-1", func(context.Context) (string, bool, error) {
		firstCheck = time.Since(start)
		return "done", true, nil
	})

	assert.GreaterOrEqual(t, firstCheck, 30*time.Millisecond)
}

func TestPoll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := fastPoller(100).Poll(ctx, "test", "job-1", func(context.Context) (string, bool, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return "processing", false, nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, calls)
	assert.NotErrorIs(t, err, ErrPollTimeout)
}

func TestPoller_Defaults(t *testing.T) {
	p := Poller{}.withDefaults()
	assert.Equal(t, DefaultPollInterval, p.Interval)
	assert.Equal(t, DefaultPollMaxAttempts, p.MaxAttempts)
	assert.Equal(t, p, DefaultPoller())
}

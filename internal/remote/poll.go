package remote

import (
	"context"
	"fmt"
	"time"
)

// Default poll budget: 30 checks at 10s, five minutes in total.
const (
	DefaultPollInterval    = 10 * time.Second
	DefaultPollMaxAttempts = 30
)

// CheckFunc performs one status request. It reports done once the job has
// reached a terminal state; state is the raw provider status.
type CheckFunc func(ctx context.Context) (state string, done bool, err error)

// Poller repeats a status check at a fixed interval with a bounded number of attempts.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPoller returns a Poller with the default budget.
func DefaultPoller() Poller {
	return Poller{Interval: DefaultPollInterval, MaxAttempts: DefaultPollMaxAttempts}
}

func (p Poller) withDefaults() Poller {
	if p.Interval <= 0 {
		p.Interval = DefaultPollInterval
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPollMaxAttempts
	}
	return p
}

// Poll waits one interval before every call to check and calls it at most
// MaxAttempts times. It returns nil once check reports done, the first error
// check returns, or *PollTimeoutError when the budget is exhausted.
func (p Poller) Poll(ctx context.Context, provider, jobID string, check CheckFunc) error {
	p = p.withDefaults()

	timer := time.NewTimer(p.Interval)
	defer timer.Stop()

	var state string
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: polling job %s cancelled: %w", provider, jobID, err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: polling job %s cancelled: %w", provider, jobID, ctx.Err())
		case <-timer.C:
		}

		var (
			done bool
			err  error
		)
		state, done, err = check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if attempt < p.MaxAttempts {
			timer.Reset(p.Interval)
		}
	}

	return &PollTimeoutError{
		Provider:   provider,
		JobID:      jobID,
		Attempts:   p.MaxAttempts,
		LastStatus: state,
	}
}

// Package remote holds the plumbing shared by every external adapter: the
// HTTP client with its retry loop, the error taxonomy, the bounded status
// poller and the response-shape URL extractor.
package remote

import (
	"errors"
	"fmt"
)

// Static errors for remote adapter operations.
var (
	// ErrRemoteRequest is returned for non-2xx responses and network failures.
	ErrRemoteRequest = errors.New("remote: request failed")
	// ErrResponseShape is returned when an expected field cannot be located in a response.
	ErrResponseShape = errors.New("remote: unexpected response shape")
	// ErrPollTimeout is returned when an asynchronous job stays pending for the whole attempt budget.
	ErrPollTimeout = errors.New("remote: job did not finish in time")
	// ErrJobFailed is returned when an asynchronous job reaches a failed terminal state.
	ErrJobFailed = errors.New("remote: job failed")
)

// Error describes a failed call to an external provider.
type Error struct {
	// Provider names the external service, e.g. "replicate".
	Provider string
	// StatusCode is the HTTP status, or 0 for network failures and failed jobs.
	StatusCode int
	// Message is the provider's error text or response body.
	Message string
	// Details is a human hint for the operator, e.g. which key to check.
	Details string
	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Unwrap exposes ErrRemoteRequest and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRemoteRequest}
	}
	return []error{ErrRemoteRequest, e.Err}
}

// PollTimeoutError is returned by Poller.Poll when the attempt budget is exhausted.
type PollTimeoutError struct {
	Provider string
	JobID    string
	Attempts int
	// LastStatus is the status reported by the final check.
	LastStatus string
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("%s: job %s still %q after %d status checks", e.Provider, e.JobID, e.LastStatus, e.Attempts)
}

// Is reports ErrPollTimeout.
func (e *PollTimeoutError) Is(target error) bool {
	return target == ErrPollTimeout
}

// DetailsOf returns the operator hint carried by err, if any.
func DetailsOf(err error) string {
	var re *Error
	if errors.As(err, &re) {
		return re.Details
	}
	return ""
}

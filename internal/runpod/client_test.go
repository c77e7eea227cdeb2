package runpod

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maauso/slideshow-api/internal/remote"
)

// setTestEnv sets the RUNPOD_API_KEY env var for the test.
func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("RUNPOD_API_KEY", "test-key")
}

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusInQueue, false},
		{StatusRunning, false},
		{StatusInProgress, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusCancelled, true},
		{StatusTimedOut, true},
		{Status("UNKNOWN"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("Status(%q).IsTerminal() = %v, want %v", tt.status, got, tt.terminal)
			}
		})
	}
}

func TestNewClient_MissingEndpointID(t *testing.T) {
	setTestEnv(t)

	_, err := NewClient("")
	if !errors.Is(err, ErrEndpointIDRequired) {
		t.Errorf("expected ErrEndpointIDRequired, got %v", err)
	}
}

func TestNewClient_MissingAPIKey(t *testing.T) {
	t.Setenv("RUNPOD_API_KEY", "")

	_, err := NewClient("test-endpoint")
	if !errors.Is(err, ErrAPIKeyNotSet) {
		t.Errorf("expected ErrAPIKeyNotSet, got %v", err)
	}
}

func TestNewClient_WithAPIKeyOptionOverridesEnv(t *testing.T) {
	setTestEnv(t)

	client, err := NewClient("test-endpoint", WithAPIKey("explicit-api-key"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// WithAPIKey should be used instead of env
	if client.apiKey != "explicit-api-key" {
		t.Errorf("expected apiKey to be 'explicit-api-key', got '%s'", client.apiKey)
	}
}

func TestSubmit_Success(t *testing.T) {
	setTestEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Verify request
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/test-endpoint/run" {
			t.Errorf("expected /test-endpoint/run, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("expected Bearer test-key, got %s", r.Header.Get("Authorization"))
		}

		// Verify request body
		var req runRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if req.Input.Image != "image-data" {
			t.Errorf("expected image-data, got %s", req.Input.Image)
		}
		if req.Input.Prompt != "clouds drift" {
			t.Errorf("expected prompt 'clouds drift', got %q", req.Input.Prompt)
		}

		_ = json.NewEncoder(w).Encode(runResponse{ID: "job-123"})
	}))
	defer server.Close()

	client, _ := NewClient("test-endpoint", WithBaseURL(server.URL))

	opts := DefaultSubmitOptions()
	opts.Prompt = "clouds drift"
	jobID, err := client.Submit(context.Background(), "image-data", opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobID != "job-123" {
		t.Errorf("expected job-123, got %s", jobID)
	}
}

func TestSubmit_DefaultOptions(t *testing.T) {
	setTestEnv(t)

	var receivedReq runRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&receivedReq)
		_ = json.NewEncoder(w).Encode(runResponse{ID: "job-123"})
	}))
	defer server.Close()

	client, _ := NewClient("test-endpoint", WithBaseURL(server.URL))

	if _, err := client.Submit(context.Background(), "image", SubmitOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receivedReq.Input.Duration != 10 || receivedReq.Input.FPS != 8 || receivedReq.Input.Seed != 42 {
		t.Errorf("expected defaults 10s/8fps/seed 42, got %+v", receivedReq.Input)
	}
}

func TestSubmit_Errors(t *testing.T) {
	setTestEnv(t)

	t.Run("error in body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(runResponse{Error: "invalid input"})
		}))
		defer server.Close()

		client, _ := NewClient("test-endpoint", WithBaseURL(server.URL))
		_, err := client.Submit(context.Background(), "image-data", DefaultSubmitOptions())
		if !errors.Is(err, ErrSubmitFailed) {
			t.Errorf("expected ErrSubmitFailed, got %v", err)
		}
	})

	t.Run("no job id", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		client, _ := NewClient("test-endpoint", WithBaseURL(server.URL))
		_, err := client.Submit(context.Background(), "image-data", DefaultSubmitOptions())
		if !errors.Is(err, remote.ErrResponseShape) {
			t.Errorf("expected ErrResponseShape, got %v", err)
		}
	})

	t.Run("no image", func(t *testing.T) {
		client, _ := NewClient("test-endpoint")
		_, err := client.Submit(context.Background(), "", DefaultSubmitOptions())
		if !errors.Is(err, ErrImageRequired) {
			t.Errorf("expected ErrImageRequired, got %v", err)
		}
	})

	t.Run("unauthorized", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		client, _ := NewClient("test-endpoint", WithBaseURL(server.URL))
		_, err := client.Submit(context.Background(), "image-data", DefaultSubmitOptions())
		if !errors.Is(err, remote.ErrRemoteRequest) {
			t.Errorf("expected ErrRemoteRequest, got %v", err)
		}
		if remote.DetailsOf(err) == "" {
			t.Error("expected an operator hint in the error details")
		}
	})
}

func TestSubmit_ContextCancelled(t *testing.T) {
	setTestEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done() // Simulate slow response
	}))
	defer server.Close()

	client, _ := NewClient("test-endpoint", WithBaseURL(server.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.Submit(ctx, "image-data", DefaultSubmitOptions())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestPoll_AllStatuses(t *testing.T) {
	setTestEnv(t)

	tests := []struct {
		name           string
		response       string
		expectedStatus Status
		expectedOutput string
		expectedError  string
	}{
		{
			name:           "IN_QUEUE",
			response:       `{"id":"job-1","status":"IN_QUEUE"}`,
			expectedStatus: StatusInQueue,
		},
		{
			name:           "IN_PROGRESS",
			response:       `{"id":"job-1","status":"IN_PROGRESS"}`,
			expectedStatus: StatusInProgress,
		},
		{
			name:           "COMPLETED",
			response:       `{"id":"job-1","status":"COMPLETED","output":{"output":{"video_url":"https://cdn/v.mp4"}}}`,
			expectedStatus: StatusCompleted,
			expectedOutput: `{"output":{"video_url":"https://cdn/v.mp4"}}`,
		},
		{
			name:           "FAILED",
			response:       `{"id":"job-1","status":"FAILED","error":"processing failed"}`,
			expectedStatus: StatusFailed,
			expectedError:  "processing failed",
		},
		{
			name:           "CANCELLED",
			response:       `{"id":"job-1","status":"CANCELLED"}`,
			expectedStatus: StatusCancelled,
		},
		{
			name:           "TIMED_OUT",
			response:       `{"id":"job-1","status":"TIMED_OUT"}`,
			expectedStatus: StatusTimedOut,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET, got %s", r.Method)
				}
				if r.URL.Path != "/test-endpoint/status/job-1" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				_, _ = w.Write([]byte(tt.response))
			}))
			defer server.Close()

			client, _ := NewClient("test-endpoint", WithBaseURL(server.URL))

			result, err := client.Poll(context.Background(), "job-1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Status != tt.expectedStatus {
				t.Errorf("expected status %v, got %v", tt.expectedStatus, result.Status)
			}
			if string(result.Output) != tt.expectedOutput {
				t.Errorf("expected output %q, got %q", tt.expectedOutput, result.Output)
			}
			if result.Error != tt.expectedError {
				t.Errorf("expected error %q, got %q", tt.expectedError, result.Error)
			}
		})
	}
}

func TestPoll_EmptyJobID(t *testing.T) {
	setTestEnv(t)

	client, _ := NewClient("test-endpoint")

	_, err := client.Poll(context.Background(), "")
	if !errors.Is(err, ErrJobIDRequired) {
		t.Errorf("expected ErrJobIDRequired, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	setTestEnv(t)

	var called atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/test-endpoint/cancel/job-1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		called.Store(true)
		_, _ = w.Write([]byte(`{"id":"job-1","status":"CANCELLED"}`))
	}))
	defer server.Close()

	client, _ := NewClient("test-endpoint", WithBaseURL(server.URL))
	if err := client.Cancel(context.Background(), "job-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called.Load() {
		t.Error("cancel endpoint was not called")
	}
}

func TestRetry_TransientFailure(t *testing.T) {
	setTestEnv(t)

	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := atomic.AddInt32(&attempts, 1)
		if count < 3 {
			// First two attempts fail with 503
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("service unavailable"))
			return
		}
		// Third attempt succeeds
		_, _ = w.Write([]byte(`{"id":"job-1","status":"COMPLETED"}`))
	}))
	defer server.Close()

	client, _ := NewClient("test-endpoint",
		WithBaseURL(server.URL),
		WithMaxRetries(3),
		WithBaseBackoff(10*time.Millisecond),
	)

	result, err := client.Poll(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusCompleted {
		t.Errorf("expected COMPLETED, got %v", result.Status)
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_DisabledByDefault(t *testing.T) {
	setTestEnv(t)

	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, _ := NewClient("test-endpoint", WithBaseURL(server.URL))

	if _, err := client.Poll(context.Background(), "job-1"); err == nil {
		t.Error("expected error")
	}
	if atomic.LoadInt32(&attempts) != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

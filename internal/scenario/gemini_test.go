package scenario

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/slideshow-api/internal/remote"
)

func newGeminiServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/"+DefaultGeminiModel+":generateContent"), r.URL.Path)

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req map[string]any
		require.NoError(t, json.Unmarshal(raw, &req))
		assert.Contains(t, req, "systemInstruction")
		assert.Contains(t, string(raw), "a cat on a roof")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewGeminiClient_MissingAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	_, err := NewGeminiClient(context.Background())
	require.ErrorIs(t, err, ErrAPIKeyNotSet)
}

func TestGeminiClient_FetchScenario(t *testing.T) {
	server := newGeminiServer(t, http.StatusOK, `{
		"candidates": [{
			"content": {"role": "model", "parts": [{"text": "Scène 1: A cat sleeps.\nScène 2: It wakes up."}]},
			"finishReason": "STOP"
		}]
	}`)

	c, err := NewGeminiClient(context.Background(),
		WithGeminiAPIKey("test-key"),
		WithGeminiBaseURL(server.URL),
	)
	require.NoError(t, err)
	assert.Equal(t, "gemini", c.Name())

	sc, err := c.FetchScenario(context.Background(), "a cat on a roof")
	require.NoError(t, err)
	assert.Equal(t, []string{"A cat sleeps.", "It wakes up."}, sc.Script.Texts())
}

func TestGeminiClient_APIError(t *testing.T) {
	server := newGeminiServer(t, http.StatusForbidden, `{
		"error": {"code": 403, "message": "API key not valid", "status": "PERMISSION_DENIED"}
	}`)

	c, err := NewGeminiClient(context.Background(),
		WithGeminiAPIKey("test-key"),
		WithGeminiBaseURL(server.URL),
	)
	require.NoError(t, err)

	_, err = c.FetchScenario(context.Background(), "a cat on a roof")
	require.ErrorIs(t, err, remote.ErrRemoteRequest)
	assert.NotEmpty(t, remote.DetailsOf(err))
}

func TestGeminiClient_EmptyCandidates(t *testing.T) {
	server := newGeminiServer(t, http.StatusOK, `{"candidates": []}`)

	c, err := NewGeminiClient(context.Background(),
		WithGeminiAPIKey("test-key"),
		WithGeminiBaseURL(server.URL),
	)
	require.NoError(t, err)

	_, err = c.FetchScenario(context.Background(), "a cat on a roof")
	require.ErrorIs(t, err, remote.ErrResponseShape)
}

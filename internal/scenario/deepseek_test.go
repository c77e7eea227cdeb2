package scenario

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/slideshow-api/internal/remote"
)

func newDeepSeekServer(t *testing.T, status int, body string) (*httptest.Server, *chatRequest) {
	t.Helper()
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &got
}

func TestNewDeepSeekClient_MissingAPIKey(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "")

	_, err := NewDeepSeekClient()
	require.ErrorIs(t, err, ErrAPIKeyNotSet)
}

func TestNewDeepSeekClient_EnvFallback(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "env-key")

	c, err := NewDeepSeekClient()
	require.NoError(t, err)
	assert.Equal(t, "env-key", c.apiKey)
	assert.Equal(t, DefaultDeepSeekModel, c.model)
}

func TestDeepSeekClient_FetchScenario(t *testing.T) {
	server, got := newDeepSeekServer(t, http.StatusOK, `{
		"choices": [{"message": {"role": "assistant", "content": "Scene 1: A robot walks.\nScene 2: It finds a door."}}]
	}`)

	c, err := NewDeepSeekClient(WithDeepSeekAPIKey("test-key"), WithDeepSeekBaseURL(server.URL+"/"))
	require.NoError(t, err)

	sc, err := c.FetchScenario(context.Background(), "a robot in a forest")
	require.NoError(t, err)

	assert.Equal(t, "Scene 1: A robot walks.\nScene 2: It finds a door.", sc.Text)
	assert.Equal(t, []string{"A robot walks.", "It finds a door."}, sc.Script.Texts())

	assert.Equal(t, DefaultDeepSeekModel, got.Model)
	assert.InDelta(t, 0.7, got.Temperature, 1e-9)
	assert.Equal(t, 200, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, SystemPrompt, got.Messages[0].Content)
	assert.Contains(t, got.Messages[1].Content, "a robot in a forest")
}

func TestDeepSeekClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"Authentication Fails"}}`, remote.ErrRemoteRequest},
		{"server error", http.StatusInternalServerError, `oops`, remote.ErrRemoteRequest},
		{"no choices", http.StatusOK, `{"choices":[]}`, remote.ErrResponseShape},
		{"empty content", http.StatusOK, `{"choices":[{"message":{"content":"  "}}]}`, remote.ErrResponseShape},
		{"malformed body", http.StatusOK, `{"choices":`, remote.ErrResponseShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newDeepSeekServer(t, tt.status, tt.body)
			c, err := NewDeepSeekClient(WithDeepSeekAPIKey("test-key"), WithDeepSeekBaseURL(server.URL))
			require.NoError(t, err)

			_, err = c.FetchScenario(context.Background(), "prompt")
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDeepSeekClient_ErrorDetails(t *testing.T) {
	server, _ := newDeepSeekServer(t, http.StatusUnauthorized, `{"error":{"message":"Authentication Fails"}}`)
	c, err := NewDeepSeekClient(WithDeepSeekAPIKey("test-key"), WithDeepSeekBaseURL(server.URL))
	require.NoError(t, err)

	_, err = c.FetchScenario(context.Background(), "prompt")

	var re *remote.Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusUnauthorized, re.StatusCode)
	assert.Equal(t, "Authentication Fails", re.Message)
	assert.Contains(t, re.Details, "DeepSeek API key")
}

func TestDeepSeekClient_EmptyPrompt(t *testing.T) {
	c, err := NewDeepSeekClient(WithDeepSeekAPIKey("test-key"))
	require.NoError(t, err)

	_, err = c.FetchScenario(context.Background(), "   ")
	require.ErrorIs(t, err, ErrPromptRequired)
}

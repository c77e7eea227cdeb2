package provider

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/slideshow-api/internal/remote"
)

func TestNewVyro_RequiresKey(t *testing.T) {
	t.Setenv("VYRO_API_KEY", "")
	_, err := NewVyro()
	assert.ErrorIs(t, err, ErrVyroKeyNotSet)
}

func TestVyro_FetchMedia_BinaryImage(t *testing.T) {
	pngHeader := []byte("\x89PNG\r\n\x1a\nfake")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/image/generations", r.URL.Path)
		assert.Equal(t, "Bearer vyro-key", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "a red fox", r.FormValue("prompt"))
		assert.Equal(t, "anime", r.FormValue("style"))

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngHeader)
	}))
	defer server.Close()

	v, err := NewVyro(WithAPIKey("vyro-key"), WithBaseURL(server.URL))
	require.NoError(t, err)

	res, err := v.FetchMedia(context.Background(), Request{Prompt: "a red fox", Kind: KindTextToImage, Style: "anime"})
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(pngHeader), res.URL)
	assert.Equal(t, "vyro", res.Provider)
}

func TestVyro_FetchMedia_DefaultStyle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, DefaultVyroStyle, r.FormValue("style"))
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte{0xff, 0xd8, 0xff})
	}))
	defer server.Close()

	v, err := NewVyro(WithAPIKey("vyro-key"), WithBaseURL(server.URL))
	require.NoError(t, err)

	res, err := v.FetchMedia(context.Background(), Request{Prompt: "a red fox", Kind: KindTextToImage})
	require.NoError(t, err)
	assert.Equal(t, "data:image/jpeg;base64,/9j/", res.URL)
}

func TestVyro_FetchMedia_EmptyBinary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
	}))
	defer server.Close()

	v, err := NewVyro(WithAPIKey("vyro-key"), WithBaseURL(server.URL))
	require.NoError(t, err)

	_, err = v.FetchMedia(context.Background(), Request{Prompt: "a red fox", Kind: KindTextToImage})
	assert.ErrorIs(t, err, remote.ErrResponseShape)
}

func TestVyro_FetchMedia_JSONURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"image_url":"https://cdn.vyro.ai/x.png"}`))
	}))
	defer server.Close()

	v, err := NewVyro(WithAPIKey("vyro-key"), WithBaseURL(server.URL), WithStyle("kawaii"))
	require.NoError(t, err)

	res, err := v.FetchMedia(context.Background(), Request{Prompt: "a red fox", Kind: KindTextToImage})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.vyro.ai/x.png", res.URL)
}

func TestVyro_FetchMedia_RemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":"insufficient credits"}`))
	}))
	defer server.Close()

	v, err := NewVyro(WithAPIKey("vyro-key"), WithBaseURL(server.URL))
	require.NoError(t, err)

	_, err = v.FetchMedia(context.Background(), Request{Prompt: "a red fox", Kind: KindTextToImage})
	require.ErrorIs(t, err, remote.ErrRemoteRequest)
	assert.Contains(t, err.Error(), "insufficient credits")
	assert.Equal(t, vyroDetails, remote.DetailsOf(err))
}

func TestVyro_Supports(t *testing.T) {
	v, err := NewVyro(WithAPIKey("k"))
	require.NoError(t, err)
	assert.True(t, v.Supports(KindTextToImage))
	assert.False(t, v.Supports(KindImageToVideo))
}

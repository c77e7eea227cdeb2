package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/maauso/slideshow-api/internal/remote"
)

// ErrVyroKeyNotSet is returned when no Vyro API key is configured.
var ErrVyroKeyNotSet = errors.New("provider: VYRO_API_KEY is not set")

// DefaultVyroStyle is the style preset used when neither request nor options set one.
const DefaultVyroStyle = "realistic"

const vyroDetails = "check that VYRO_API_KEY is configured correctly"

// Vyro generates still images synchronously through the Vyro (Imagine) API.
type Vyro struct {
	s      settings
	client *remote.Client
}

// NewVyro creates a Vyro provider. The key falls back to VYRO_API_KEY.
func NewVyro(opts ...Option) (*Vyro, error) {
	s := newSettings("https://api.vyro.ai/v2", "VYRO_API_KEY", opts)
	if s.apiKey == "" {
		return nil, ErrVyroKeyNotSet
	}
	if s.style == "" {
		s.style = DefaultVyroStyle
	}
	return &Vyro{s: s, client: s.remoteClient("vyro", vyroDetails)}, nil
}

// Name implements Provider.
func (v *Vyro) Name() string { return "vyro" }

// Supports implements Provider.
func (v *Vyro) Supports(kind Kind) bool { return kind == KindTextToImage }

// FetchMedia implements Provider.
func (v *Vyro) FetchMedia(ctx context.Context, req Request) (Result, error) {
	if err := validate(v, req); err != nil {
		return Result{}, err
	}

	style := req.Style
	if style == "" {
		style = v.s.style
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("prompt", req.Prompt); err != nil {
		return Result{}, fmt.Errorf("vyro: build form: %w", err)
	}
	if err := mw.WriteField("style", style); err != nil {
		return Result{}, fmt.Errorf("vyro: build form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Result{}, fmt.Errorf("vyro: build form: %w", err)
	}

	resp, err := v.client.Do(ctx, http.MethodPost, v.s.baseURL+"/image/generations", body.Bytes(), mw.FormDataContentType())
	if err != nil {
		return Result{}, err
	}

	v.s.logger.Info("vyro image generated",
		slog.String("style", style),
		slog.String("content_type", resp.ContentType()),
		slog.Int("bytes", len(resp.Body)),
	)

	u, err := remote.ExtractURL(resp.Body, resp.ContentType())
	if err != nil {
		return Result{}, err
	}
	return Result{URL: u, Provider: v.Name(), Kind: req.Kind}, nil
}

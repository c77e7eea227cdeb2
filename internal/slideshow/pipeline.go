package slideshow

import (
	"context"
	"fmt"
	"image"
	"time"
)

// StreamSpec describes the raw frames a Capture will receive.
type StreamSpec struct {
	Width  int
	Height int
	FPS    int
}

// Encoder opens capture pipelines.
type Encoder interface {
	// Open starts a pipeline for one render. Errors should wrap ErrPipelineInit.
	Open(ctx context.Context, spec StreamSpec) (Capture, error)

	// MIMEType is the media type of the bytes returned by Capture.Finish.
	MIMEType() string
}

// Capture consumes frames for a single render and encodes them.
// Exactly one of Finish or Abort ends its life.
type Capture interface {
	// WriteFrame submits a frame. The image may be reused by the caller
	// after WriteFrame returns.
	WriteFrame(ctx context.Context, frame *image.RGBA) error

	// Finish flushes the pipeline and returns the encoded bytes.
	Finish(ctx context.Context) ([]byte, error)

	// Abort tears the pipeline down and discards partial output.
	Abort()
}

// Pacer spaces frame submissions.
type Pacer interface {
	// Wait blocks until the next frame may be composed.
	Wait(ctx context.Context) error
	// Stop releases the pacer's timer.
	Stop()
}

// PacerFactory builds a pacer for a frame interval.
type PacerFactory func(interval time.Duration) Pacer

type realtimePacer struct {
	ticker *time.Ticker
}

// NewRealtimePacer returns a pacer that releases one frame per interval of
// wall-clock time, for capture pipelines that sample a surface on their own
// cadence.
func NewRealtimePacer(interval time.Duration) Pacer {
	return &realtimePacer{ticker: time.NewTicker(interval)}
}

func (p *realtimePacer) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("slideshow: pacing cancelled: %w", ctx.Err())
	case <-p.ticker.C:
		return nil
	}
}

func (p *realtimePacer) Stop() {
	p.ticker.Stop()
}

type noPacer struct{}

// NoPacing returns a pacer that never waits; suitable for encoders that
// consume frames on demand.
func NoPacing(time.Duration) Pacer {
	return noPacer{}
}

func (noPacer) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("slideshow: pacing cancelled: %w", err)
	}
	return nil
}

func (noPacer) Stop() {}

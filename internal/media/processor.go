// Package media encodes slideshow frames into MP4 video with the ffmpeg CLI
// and inspects encoded files with ffprobe.
package media

import (
	"context"
	"time"
)

// Prober inspects encoded media files.
type Prober interface {
	// Duration returns the container duration of the file at path.
	Duration(ctx context.Context, path string) (time.Duration, error)

	// Inspect returns the size, frame count and duration of the first video
	// stream of the file at path.
	Inspect(ctx context.Context, path string) (VideoInfo, error)
}

// VideoInfo describes the first video stream of a file.
type VideoInfo struct {
	Width    int
	Height   int
	Frames   int
	Duration time.Duration
}

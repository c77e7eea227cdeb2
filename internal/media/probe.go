package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Probe implements Prober using the ffprobe CLI.
type Probe struct {
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
}

// NewProbe creates a new Probe.
// If ffprobePath is empty, it defaults to "ffprobe" (found via PATH).
func NewProbe(ffprobePath string) *Probe {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Probe{ffprobePath: ffprobePath}
}

// Duration returns the container duration of a media file.
func (p *Probe) Duration(ctx context.Context, path string) (time.Duration, error) {
	var stdout bytes.Buffer
	err := runTool(ctx, p.ffprobePath, []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}, &stdout)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFFprobeExecution, err)
	}

	return parseSeconds(strings.TrimSpace(stdout.String()))
}

type probeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		NbReadFrames string `json:"nb_read_frames"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Inspect decodes the whole first video stream to count its frames.
func (p *Probe) Inspect(ctx context.Context, path string) (VideoInfo, error) {
	var stdout bytes.Buffer
	err := runTool(ctx, p.ffprobePath, []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-count_frames",
		"-show_entries", "stream=width,height,nb_read_frames:format=duration",
		"-of", "json",
		path,
	}, &stdout)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("%w: %w", ErrFFprobeExecution, err)
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return VideoInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return VideoInfo{}, fmt.Errorf("%w: no video stream in %s", ErrFFprobeExecution, path)
	}

	s := out.Streams[0]
	info := VideoInfo{Width: s.Width, Height: s.Height}
	if s.NbReadFrames != "" {
		if info.Frames, err = strconv.Atoi(s.NbReadFrames); err != nil {
			return VideoInfo{}, fmt.Errorf("parse frame count: %w", err)
		}
	}
	if out.Format.Duration != "" {
		if info.Duration, err = parseSeconds(out.Format.Duration); err != nil {
			return VideoInfo{}, err
		}
	}
	return info, nil
}

func parseSeconds(s string) (time.Duration, error) {
	var seconds float64
	if _, err := fmt.Sscanf(s, "%f", &seconds); err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

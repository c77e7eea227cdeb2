// Package slideshow renders a still image and a short scene script into an
// animated slideshow video. Frames are composed on a CPU-backed *image.RGBA
// surface (pan, zoom, brightness pulse, caption band, per-scene transition)
// and handed to a capture pipeline that encodes them.
package slideshow

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"time"
)

// Fixed output characteristics.
const (
	DefaultFPS    = 30
	DefaultWidth  = 1280
	DefaultHeight = 720

	// TransitionFrames is the number of frames at the start of every scene
	// after the first during which the black cross-fade overlay is drawn.
	TransitionFrames = 15
)

// Static errors for render operations.
var (
	// ErrDecode is returned when the source image cannot be decoded.
	ErrDecode = errors.New("slideshow: cannot decode image")
	// ErrEmptyScript is returned when a script has no usable scene.
	ErrEmptyScript = errors.New("slideshow: script has no scenes")
	// ErrPipelineInit is returned when the capture/encoding pipeline cannot be started.
	ErrPipelineInit = errors.New("slideshow: capture pipeline unavailable")
	// ErrInvalidConfig is returned when the render configuration violates its invariants.
	ErrInvalidConfig = errors.New("slideshow: invalid render config")
)

// SourceImage is a decoded raster owned by a single render.
type SourceImage struct {
	// Image holds the decoded pixels.
	Image *image.RGBA
	// Width is the natural width of the image in pixels.
	Width int
	// Height is the natural height of the image in pixels.
	Height int
}

func (s SourceImage) validate() error {
	if s.Image == nil || s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: empty image", ErrDecode)
	}
	return nil
}

// Scene is one caption unit of a script.
type Scene struct {
	Text string `json:"text" yaml:"text"`
}

// Script is an ordered list of scenes; scene 1 plays before scene 2.
type Script struct {
	Scenes []Scene `json:"scenes" yaml:"scenes"`
}

// NewScript builds a script from raw texts, trimming whitespace and dropping
// empty entries while keeping order.
func NewScript(texts ...string) Script {
	scenes := make([]Scene, 0, len(texts))
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		scenes = append(scenes, Scene{Text: t})
	}
	return Script{Scenes: scenes}
}

// Len returns the number of scenes.
func (s Script) Len() int {
	return len(s.Scenes)
}

// Texts returns the scene texts in order.
func (s Script) Texts() []string {
	out := make([]string, len(s.Scenes))
	for i, sc := range s.Scenes {
		out[i] = sc.Text
	}
	return out
}

// Validate returns ErrEmptyScript unless at least one scene has text.
func (s Script) Validate() error {
	for _, sc := range s.Scenes {
		if strings.TrimSpace(sc.Text) != "" {
			return nil
		}
	}
	return ErrEmptyScript
}

// usable returns the scenes that carry text.
func (s Script) usable() Script {
	return NewScript(s.Texts()...)
}

// Config describes the output of a render.
type Config struct {
	// TotalDuration is the target length of the video. Each scene gets an
	// equal share; frame truncation may shorten the result slightly.
	TotalDuration time.Duration
	// FPS is the output frame rate.
	FPS int
	// Width and Height are the output frame size in pixels.
	Width  int
	Height int
}

// DefaultConfig returns a 1280x720, 30 fps config for the given duration.
func DefaultConfig(total time.Duration) Config {
	return Config{
		TotalDuration: total,
		FPS:           DefaultFPS,
		Width:         DefaultWidth,
		Height:        DefaultHeight,
	}
}

func (c Config) withDefaults() Config {
	if c.FPS == 0 {
		c.FPS = DefaultFPS
	}
	if c.Width == 0 {
		c.Width = DefaultWidth
	}
	if c.Height == 0 {
		c.Height = DefaultHeight
	}
	return c
}

// FrameInterval is the wall-clock time between two frames.
func (c Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.FPS)
}

// Validate checks the config against a script of sceneCount scenes.
func (c Config) Validate(sceneCount int) error {
	if c.TotalDuration <= 0 {
		return fmt.Errorf("%w: total duration must be positive, got %s", ErrInvalidConfig, c.TotalDuration)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("%w: fps must be positive, got %d", ErrInvalidConfig, c.FPS)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: frame size must be positive, got %dx%d", ErrInvalidConfig, c.Width, c.Height)
	}
	if sceneCount <= 0 {
		return ErrEmptyScript
	}
	if FramesPerScene(c.TotalDuration, sceneCount, c.FPS) < 1 {
		return fmt.Errorf("%w: %s split over %d scenes is shorter than one frame", ErrInvalidConfig, c.TotalDuration, sceneCount)
	}
	return nil
}

// RenderedVideo is the encoded result of a successful render.
type RenderedVideo struct {
	// Data is the encoded container bytes.
	Data []byte
	// MIMEType is the container media type, e.g. "video/mp4".
	MIMEType string
	// Frames is the number of frames submitted to the capture pipeline.
	Frames int
	// FramesPerScene is the frame budget of every scene.
	FramesPerScene int
	// Duration is Frames at FPS.
	Duration time.Duration
	Width    int
	Height   int
	FPS      int
}

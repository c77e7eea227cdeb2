package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/maauso/slideshow-api/internal/slideshow"
)

// Static errors for media operations.
var (
	// ErrInvalidDimensions is returned when the stream dimensions are not positive.
	ErrInvalidDimensions = errors.New("media: invalid dimensions: width, height and fps must be positive")
	// ErrFrameSize is returned when a submitted frame does not match the stream size.
	ErrFrameSize = errors.New("media: frame size does not match stream")
	// ErrCaptureClosed is returned when frames are written after Finish or Abort.
	ErrCaptureClosed = errors.New("media: capture already closed")
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("media: ffprobe execution failed")
	// ErrEncoderUnavailable is returned when the ffmpeg build lacks the video encoder.
	ErrEncoderUnavailable = errors.New("media: video encoder not available")
)

const (
	// queueDepth is the number of frames buffered between the renderer and ffmpeg.
	queueDepth = 4
	videoCodec = "libx264"
)

// FFmpegEncoder implements slideshow.Encoder by piping raw RGBA frames into
// an ffmpeg process that writes H.264 MP4.
type FFmpegEncoder struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// tempDir receives the intermediate MP4 file. Defaults to os.TempDir().
	tempDir string
	preset  string
	logger  *slog.Logger

	mu           sync.Mutex
	encoderReady bool
}

// EncoderOption configures an FFmpegEncoder.
type EncoderOption func(*FFmpegEncoder)

// WithTempDir sets the directory for intermediate output files.
func WithTempDir(dir string) EncoderOption {
	return func(e *FFmpegEncoder) {
		e.tempDir = dir
	}
}

// WithPreset sets the libx264 preset.
func WithPreset(preset string) EncoderOption {
	return func(e *FFmpegEncoder) {
		if preset != "" {
			e.preset = preset
		}
	}
}

// WithEncoderLogger sets the logger.
func WithEncoderLogger(logger *slog.Logger) EncoderOption {
	return func(e *FFmpegEncoder) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewFFmpegEncoder creates a new FFmpegEncoder.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegEncoder(ffmpegPath string, opts ...EncoderOption) *FFmpegEncoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	e := &FFmpegEncoder{
		ffmpegPath: ffmpegPath,
		preset:     "veryfast",
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MIMEType implements slideshow.Encoder.
func (e *FFmpegEncoder) MIMEType() string {
	return "video/mp4"
}

// Open implements slideshow.Encoder. It starts one ffmpeg process per call.
func (e *FFmpegEncoder) Open(ctx context.Context, spec slideshow.StreamSpec) (slideshow.Capture, error) {
	if spec.Width <= 0 || spec.Height <= 0 || spec.FPS <= 0 {
		return nil, fmt.Errorf("%w: %w: %dx%d@%d", slideshow.ErrPipelineInit, ErrInvalidDimensions, spec.Width, spec.Height, spec.FPS)
	}

	bin, err := exec.LookPath(e.ffmpegPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", slideshow.ErrPipelineInit, err)
	}
	if err := e.checkEncoder(ctx, bin); err != nil {
		return nil, err
	}

	out, err := os.CreateTemp(e.tempDir, "slideshow-*.mp4")
	if err != nil {
		return nil, fmt.Errorf("%w: create output file: %w", slideshow.ErrPipelineInit, err)
	}
	outPath := out.Name()
	_ = out.Close()

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y", // Overwrite the placeholder temp file
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", spec.Width, spec.Height),
		"-r", strconv.Itoa(spec.FPS),
		"-i", "pipe:0",
		"-an",
		"-c:v", videoCodec,
		"-preset", e.preset,
		"-pix_fmt", "yuv420p", // Pixel format for compatibility
		"-movflags", "+faststart",
		outPath,
	}

	// The process outlives the caller's deadline only until Abort or Finish.
	procCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(procCtx, bin, args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		_ = os.Remove(outPath)
		return nil, fmt.Errorf("%w: stdin pipe: %w", slideshow.ErrPipelineInit, err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		_ = os.Remove(outPath)
		return nil, fmt.Errorf("%w: start ffmpeg: %w", slideshow.ErrPipelineInit, err)
	}

	g, gctx := errgroup.WithContext(procCtx)
	s := &ffmpegStream{
		spec:      spec,
		frameSize: spec.Width * spec.Height * 4,
		args:      args,
		outPath:   outPath,
		cmd:       cmd,
		stderr:    stderr,
		cancel:    cancel,
		g:         g,
		gctx:      gctx,
		queue:     make(chan []byte, queueDepth),
		free:      make(chan []byte, queueDepth+1),
		logger:    e.logger,
	}
	g.Go(func() error {
		return s.writeLoop(stdin)
	})

	e.logger.Debug("ffmpeg capture started",
		slog.String("output", outPath),
		slog.Int("width", spec.Width),
		slog.Int("height", spec.Height),
		slog.Int("fps", spec.FPS),
	)

	return s, nil
}

// checkEncoder asks ffmpeg for its encoder list and fails with
// ErrPipelineInit when libx264 is missing. A successful check is remembered.
func (e *FFmpegEncoder) checkEncoder(ctx context.Context, bin string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.encoderReady {
		return nil
	}

	var out bytes.Buffer
	if err := runTool(ctx, bin, []string{"-hide_banner", "-encoders"}, &out); err != nil {
		return fmt.Errorf("%w: list encoders: %w", slideshow.ErrPipelineInit, err)
	}
	if !hasEncoder(out.String(), videoCodec) {
		return fmt.Errorf("%w: %w: %s", slideshow.ErrPipelineInit, ErrEncoderUnavailable, videoCodec)
	}
	e.encoderReady = true
	return nil
}

// hasEncoder reports whether the output of "ffmpeg -encoders" lists name.
// Each encoder line reads " V....D libx264   description".
func hasEncoder(list, name string) bool {
	for _, line := range strings.Split(list, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == name {
			return true
		}
	}
	return false
}

// missingEncoder reports whether ffmpeg's stderr says it could not load the
// requested encoder.
func missingEncoder(stderr string) bool {
	return strings.Contains(stderr, "Unknown encoder") || strings.Contains(stderr, "Encoder not found")
}

// ffmpegStream is the Capture for one ffmpeg process. WriteFrame, Finish and
// Abort must be called from a single goroutine.
type ffmpegStream struct {
	spec      slideshow.StreamSpec
	frameSize int
	args      []string
	outPath   string

	cmd    *exec.Cmd
	stderr *bytes.Buffer
	cancel context.CancelFunc

	g    *errgroup.Group
	gctx context.Context

	queue     chan []byte
	free      chan []byte
	allocated int

	closeOnce sync.Once
	closed    bool
	logger    *slog.Logger
}

// writeLoop drains the frame queue into ffmpeg's stdin and closes it once the
// queue is closed, signalling end of stream.
func (s *ffmpegStream) writeLoop(stdin io.WriteCloser) error {
	defer func() { _ = stdin.Close() }()
	for buf := range s.queue {
		_, err := stdin.Write(buf)
		select {
		case s.free <- buf:
		default:
		}
		if err != nil {
			return fmt.Errorf("media: write frame to ffmpeg: %w", err)
		}
	}
	return nil
}

// WriteFrame implements slideshow.Capture. The frame is copied before
// WriteFrame returns.
func (s *ffmpegStream) WriteFrame(ctx context.Context, frame *image.RGBA) error {
	if s.closed {
		return ErrCaptureClosed
	}
	b := frame.Bounds()
	if b.Dx() != s.spec.Width || b.Dy() != s.spec.Height {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrFrameSize, b.Dx(), b.Dy(), s.spec.Width, s.spec.Height)
	}

	buf, err := s.buffer(ctx)
	if err != nil {
		return err
	}

	row := s.spec.Width * 4
	for y := 0; y < s.spec.Height; y++ {
		off := frame.PixOffset(b.Min.X, b.Min.Y+y)
		copy(buf[y*row:(y+1)*row], frame.Pix[off:off+row])
	}

	select {
	case s.queue <- buf:
		return nil
	case <-s.gctx.Done():
		return s.writerFailure()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// buffer returns a free frame buffer, allocating up to queueDepth+1 of them
// and blocking on the writer after that.
func (s *ffmpegStream) buffer(ctx context.Context) ([]byte, error) {
	select {
	case buf := <-s.free:
		return buf, nil
	default:
	}
	if s.allocated < cap(s.free) {
		s.allocated++
		return make([]byte, s.frameSize), nil
	}
	select {
	case buf := <-s.free:
		return buf, nil
	case <-s.gctx.Done():
		return nil, s.writerFailure()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// writerFailure reports why the writer stopped. Stderr is only safe to read
// after the process has been waited for, so it is left to Finish.
func (s *ffmpegStream) writerFailure() error {
	return fmt.Errorf("media: ffmpeg stopped accepting frames: %w", context.Cause(s.gctx))
}

func (s *ffmpegStream) closeQueue() {
	s.closeOnce.Do(func() {
		s.closed = true
		close(s.queue)
	})
}

// Finish implements slideshow.Capture. It flushes the queued frames, waits for
// ffmpeg to exit and returns the encoded MP4 bytes.
func (s *ffmpegStream) Finish(ctx context.Context) ([]byte, error) {
	if s.closed {
		return nil, ErrCaptureClosed
	}
	s.closeQueue()
	defer s.cancel()
	defer func() { _ = os.Remove(s.outPath) }()

	done := make(chan error, 1)
	go func() {
		writeErr := s.g.Wait()
		waitErr := s.cmd.Wait()
		done <- errors.Join(writeErr, waitErr)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		s.cancel()
		<-done
		return nil, fmt.Errorf("media: finish cancelled: %w", ctx.Err())
	}
	if err != nil {
		stderr := s.stderr.String()
		if missingEncoder(stderr) {
			err = fmt.Errorf("%w: %w: %w", slideshow.ErrPipelineInit, ErrEncoderUnavailable, err)
		}
		return nil, &FFmpegError{Args: s.args, Stderr: stderr, Err: err}
	}

	data, err := os.ReadFile(s.outPath)
	if err != nil {
		return nil, fmt.Errorf("media: read encoded video: %w", err)
	}

	s.logger.Debug("ffmpeg capture finished", slog.Int("bytes", len(data)))
	return data, nil
}

// Abort implements slideshow.Capture. It kills ffmpeg and removes partial output.
func (s *ffmpegStream) Abort() {
	s.cancel()
	s.closeQueue()
	_ = s.g.Wait()
	_ = s.cmd.Wait()
	_ = os.Remove(s.outPath)
	s.logger.Debug("ffmpeg capture aborted", slog.String("output", s.outPath))
}

// runTool executes a tool with the given arguments and returns an error
// containing stderr output if the command fails.
func runTool(ctx context.Context, bin string, args []string, stdout *bytes.Buffer) error {
	// #nosec G204 - bin is set by the application, not user input
	cmd := exec.CommandContext(ctx, bin, args...)

	var stderr bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Check if context was cancelled
		if ctx.Err() != nil {
			return fmt.Errorf("%s cancelled: %w", bin, ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

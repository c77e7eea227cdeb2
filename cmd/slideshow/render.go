package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/maauso/slideshow-api/internal/media"
	"github.com/maauso/slideshow-api/internal/scenario"
	"github.com/maauso/slideshow-api/internal/slideshow"
)

var errVerifyMismatch = errors.New("encoded video does not match the render")

type renderOptions struct {
	scenes     []string
	scriptPath string
	prompt     string
	duration   time.Duration
	output     string
	realtime   bool
	verify     bool
	ffmpeg     string
	ffprobe    string
}

func newRenderCmd(a *app) *cobra.Command {
	var o renderOptions

	cmd := &cobra.Command{
		Use:   "render <image>",
		Short: "Render a slideshow video from an image and a script",
		Long: `Render a slideshow video from an image and a script.

The script comes from exactly one of:
  --scene   one caption per scene, repeat the flag for each scene
  --script  a YAML script file with "duration" and "scenes" keys
  --prompt  a prompt sent to the configured scenario source

Frames are paced in wall-clock time unless --realtime=false is given or
RENDER_REALTIME=false is set.`,
		Example: `  slideshow render photo.jpg --scene "A robot wakes up." --scene "It walks into the forest." -o robot.mp4
  slideshow render photo.jpg --script story.yaml --realtime=false --verify
  slideshow render photo.jpg --prompt "a lighthouse in a storm" --duration 15s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRender(cmd, args[0], o)
		},
	}

	f := cmd.Flags()
	f.StringArrayVar(&o.scenes, "scene", nil, "scene caption, repeat for each scene")
	f.StringVar(&o.scriptPath, "script", "", "YAML script file")
	f.StringVarP(&o.prompt, "prompt", "p", "", "prompt for the scenario source")
	f.DurationVarP(&o.duration, "duration", "d", 0, "total video duration (default DEFAULT_DURATION_SEC)")
	f.StringVarP(&o.output, "output", "o", "slideshow.mp4", "output MP4 file")
	f.BoolVar(&o.realtime, "realtime", true, "pace frames in wall-clock time (default RENDER_REALTIME)")
	f.BoolVar(&o.verify, "verify", false, "inspect the written file with ffprobe")
	f.StringVar(&o.ffmpeg, "ffmpeg", "", "ffmpeg binary (default FFMPEG_PATH)")
	f.StringVar(&o.ffprobe, "ffprobe", "ffprobe", "ffprobe binary used by --verify")

	cmd.MarkFlagsMutuallyExclusive("scene", "script", "prompt")
	cmd.MarkFlagsOneRequired("scene", "script", "prompt")
	_ = cmd.MarkFlagFilename("script", "yaml", "yml")

	return cmd
}

func (a *app) runRender(cmd *cobra.Command, imagePath string, o renderOptions) error {
	ctx := cmd.Context()

	img, err := loadImage(imagePath)
	if err != nil {
		return err
	}

	script, fileDuration, err := a.loadScript(ctx, o)
	if err != nil {
		return err
	}

	duration := time.Duration(a.cfg.DefaultDurationSec) * time.Second
	switch {
	case cmd.Flags().Changed("duration"):
		duration = o.duration
	case fileDuration > 0:
		duration = fileDuration
	}

	realtime := a.cfg.RenderRealtime
	if cmd.Flags().Changed("realtime") {
		realtime = o.realtime
	}

	ffmpegPath := cmp.Or(o.ffmpeg, a.cfg.FFmpegPath)
	var enc slideshow.Encoder
	if a.encoder != nil {
		enc = a.encoder(ffmpegPath)
	} else {
		enc = media.NewFFmpegEncoder(ffmpegPath,
			media.WithPreset(a.cfg.FFmpegPreset),
			media.WithEncoderLogger(a.logger),
		)
	}

	opts := []slideshow.Option{
		slideshow.WithLogger(a.logger),
		slideshow.WithFontSize(a.cfg.FontSize),
		slideshow.WithProgress(progressPrinter(cmd.ErrOrStderr())),
	}
	if !realtime {
		opts = append(opts, slideshow.WithPacer(slideshow.NoPacing))
	}

	a.logger.Info("rendering slideshow",
		slog.String("image", imagePath),
		slog.Int("scenes", script.Len()),
		slog.Duration("duration", duration),
		slog.Bool("realtime", realtime),
	)

	video, err := slideshow.NewRenderer(enc, opts...).Render(ctx, img, script, slideshow.DefaultConfig(duration))
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	if err := os.WriteFile(o.output, video.Data, 0o644); err != nil { // #nosec G306 - rendered videos are meant to be shared
		return fmt.Errorf("write video: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d frames, %dx%d, %s\n",
		o.output, video.Frames, video.Width, video.Height, video.Duration)

	if o.verify {
		return verifyVideo(ctx, cmd.OutOrStdout(), media.NewProbe(o.ffprobe), o.output, video)
	}
	return nil
}

func (a *app) loadScript(ctx context.Context, o renderOptions) (slideshow.Script, time.Duration, error) {
	switch {
	case o.scriptPath != "":
		f, err := scenario.LoadScriptFile(o.scriptPath)
		if err != nil {
			return slideshow.Script{}, 0, err
		}
		return f.Script(), f.Duration, nil

	case len(o.scenes) > 0:
		return slideshow.NewScript(o.scenes...), 0, nil

	default:
		sc, _, err := a.fetchScenario(ctx, o.prompt)
		if err != nil {
			return slideshow.Script{}, 0, err
		}
		return sc.Script, 0, nil
	}
}

func loadImage(path string) (slideshow.SourceImage, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from the operator's command line
	if err != nil {
		return slideshow.SourceImage{}, fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	return slideshow.DecodeImage(f)
}

// progressPrinter reports whole-percent progress on a single terminal line.
func progressPrinter(w io.Writer) func(done, total int) {
	last := -1
	return func(done, total int) {
		pct := done * 100 / total
		if pct == last {
			return
		}
		last = pct
		fmt.Fprintf(w, "\rrendering: %3d%% (%d/%d frames)", pct, done, total)
		if done == total {
			fmt.Fprintln(w)
		}
	}
}

func verifyVideo(ctx context.Context, w io.Writer, prober media.Prober, path string, video *slideshow.RenderedVideo) error {
	info, err := prober.Inspect(ctx, path)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	fmt.Fprintf(w, "verified %s: %d frames, %dx%d, %s\n", path, info.Frames, info.Width, info.Height, info.Duration)

	if info.Frames != video.Frames || info.Width != video.Width || info.Height != video.Height {
		return fmt.Errorf("%w: want %d frames at %dx%d, got %d at %dx%d", errVerifyMismatch,
			video.Frames, video.Width, video.Height, info.Frames, info.Width, info.Height)
	}
	return nil
}

// Command slideshow renders captioned slideshow videos and talks to the
// scenario and media services from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maauso/slideshow-api/internal/bootstrap"
	"github.com/maauso/slideshow-api/internal/config"
	"github.com/maauso/slideshow-api/internal/provider"
	"github.com/maauso/slideshow-api/internal/scenario"
	"github.com/maauso/slideshow-api/internal/slideshow"
)

var errNoScenarioSource = errors.New("no scenario source configured: set DEEPSEEK_API_KEY or GEMINI_API_KEY")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(&app{}).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the state shared by every subcommand. Fields left nil are
// built from the environment configuration on first use.
type app struct {
	verbose bool

	cfg    *config.Config
	logger *slog.Logger

	scenarios func(ctx context.Context) (scenario.Source, error)
	providers func() (*provider.Registry, error)
	encoder   func(ffmpegPath string) slideshow.Encoder
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "slideshow",
		Short: "Render captioned slideshow videos from a single image",
		Long: `slideshow turns one still image and a short multi-scene script into a
1280x720, 30 fps MP4 with a slow zoom, pan and captioned scenes.

Configuration is read from the same environment variables as the API server
(FFMPEG_PATH, DEEPSEEK_API_KEY, GEMINI_API_KEY, REPLICATE_API_KEY, ...).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newRenderCmd(a), newScenarioCmd(a), newMediaCmd(a))
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	if a.cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		a.cfg = cfg
	}
	if a.verbose {
		a.cfg.LogLevel = "debug"
	}
	if a.logger == nil {
		a.logger = a.cfg.NewLoggerTo(cmd.ErrOrStderr())
	}
	if a.scenarios == nil {
		a.scenarios = func(ctx context.Context) (scenario.Source, error) {
			return bootstrap.NewScenarioSource(ctx, a.cfg, a.logger)
		}
	}
	if a.providers == nil {
		a.providers = func() (*provider.Registry, error) {
			return bootstrap.NewMediaRegistry(a.cfg, a.logger)
		}
	}
	return nil
}

// fetchScenario asks the configured source for a scenario.
func (a *app) fetchScenario(ctx context.Context, prompt string) (scenario.Scenario, string, error) {
	src, err := a.scenarios(ctx)
	if err != nil {
		return scenario.Scenario{}, "", err
	}
	if src == nil {
		return scenario.Scenario{}, "", errNoScenarioSource
	}

	sc, err := src.FetchScenario(ctx, prompt)
	if err != nil {
		return scenario.Scenario{}, "", fmt.Errorf("fetch scenario from %s: %w", src.Name(), err)
	}
	a.logger.Debug("scenario fetched",
		slog.String("source", src.Name()),
		slog.Int("scenes", sc.Script.Len()),
	)
	return sc, src.Name(), nil
}

package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maauso/slideshow-api/internal/provider"
)

type mediaOptions struct {
	kind      string
	provider  string
	imagePath string
	style     string
	list      bool
	asJSON    bool
}

func newMediaCmd(a *app) *cobra.Command {
	var o mediaOptions

	cmd := &cobra.Command{
		Use:   "media [prompt]",
		Short: "Generate an image or video with a remote media provider",
		Long: `Generate media with one of the configured providers and print its URL.

Providers are enabled by their credentials (REPLICATE_API_KEY, RUNPOD_API_KEY,
BEAM_TOKEN, VYRO_API_KEY). Without --provider the MEDIA_PROVIDER default is
used, falling back to the first provider that supports the media type.`,
		Example: `  slideshow media --type text-to-image "a red fox in the snow"
  slideshow media --type image-to-video --image fox.png --provider runpod "the fox runs"
  slideshow media --list`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMedia(cmd, strings.Join(args, " "), o)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.kind, "type", "t", string(provider.KindTextToVideo),
		"media type: text-to-image, text-to-video or image-to-video")
	f.StringVar(&o.provider, "provider", "", "provider name (default MEDIA_PROVIDER)")
	f.StringVar(&o.imagePath, "image", "", "source image for image-to-video")
	f.StringVar(&o.style, "style", "", "provider-specific style preset")
	f.BoolVar(&o.list, "list", false, "list configured providers and exit")
	f.BoolVar(&o.asJSON, "json", false, "print JSON")
	_ = cmd.MarkFlagFilename("image", "png", "jpg", "jpeg", "webp")

	return cmd
}

func (a *app) runMedia(cmd *cobra.Command, prompt string, o mediaOptions) error {
	registry, err := a.providers()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()

	if o.list {
		for _, name := range registry.Names() {
			marker := ""
			if name == registry.Default() {
				marker = " (default)"
			}
			fmt.Fprintf(w, "%s%s\n", name, marker)
		}
		return nil
	}

	kind, err := provider.ParseKind(o.kind)
	if err != nil {
		return err
	}
	req := provider.Request{Prompt: prompt, Kind: kind, Style: o.style}
	if o.imagePath != "" {
		req.ImageBase64, err = imageDataURL(o.imagePath)
		if err != nil {
			return err
		}
	}

	result, err := registry.FetchMedia(cmd.Context(), o.provider, req)
	if err != nil {
		return fmt.Errorf("fetch media: %w", err)
	}

	if o.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Fprintln(w, result.URL)
	return nil
}

// imageDataURL reads an image file into a base64 data URL.
func imageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from the operator's command line
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	return "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

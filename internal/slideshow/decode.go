package slideshow

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"strings"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// DecodeImage decodes any registered raster format into a SourceImage.
func DecodeImage(r io.Reader) (SourceImage, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return SourceImage{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	b := img.Bounds()
	if b.Empty() {
		return SourceImage{}, fmt.Errorf("%w: %s image has no pixels", ErrDecode, format)
	}

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Bounds().Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	return SourceImage{
		Image:  rgba,
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// DecodeConfig reads only the header of an image, reporting its format and size.
func DecodeConfig(r io.Reader) (image.Config, string, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return image.Config{}, "", fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return image.Config{}, "", fmt.Errorf("%w: %s image has no pixels", ErrDecode, format)
	}
	return cfg, format, nil
}

// DecodeBase64 decodes a base64 payload, optionally prefixed with a
// "data:<mime>;base64," header.
func DecodeBase64(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		if i := strings.IndexByte(s, ','); i >= 0 {
			s = s[i+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %w", ErrDecode, err)
	}
	return data, nil
}

// DecodeBase64Image decodes a base64 image, optionally prefixed with a
// "data:image/...;base64," header.
func DecodeBase64Image(s string) (SourceImage, error) {
	data, err := DecodeBase64(s)
	if err != nil {
		return SourceImage{}, err
	}
	return DecodeImage(bytes.NewReader(data))
}

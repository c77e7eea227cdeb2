package slideshow

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
)

const (
	// bandFraction is the share of the frame height covered by the caption band.
	bandFraction = 0.28
	// captionMargin is the horizontal margin on each side of the caption text.
	captionMargin = 60
	// lineSpacing multiplies the font height to get the distance between baselines.
	lineSpacing = 1.25
	// DefaultFontSize is the caption size in pixels at 72 DPI.
	DefaultFontSize = 40
	// minFontSize is the smallest size a long caption is shrunk to.
	minFontSize  = 14
	fontSizeStep = 2
	// maxCaptionLines bounds a caption so that its last line, whose fade
	// starts at 0.2*(maxCaptionLines-1) of the scene, is opaque before the
	// scene ends.
	maxCaptionLines = 4
	ellipsis        = "..."
)

var parseCaptionFont = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(goregular.TTF)
})

// compositor draws frames for one render. It owns its font face and frame
// buffer, neither of which is safe for concurrent use.
type compositor struct {
	cfg   Config
	src   *image.RGBA
	face  font.Face
	frame *image.RGBA

	fit        float64
	band       image.Rectangle
	lineHeight int
	ascent     int
	// lines holds the wrapped caption of every scene.
	lines [][]string
}

func newCompositor(img SourceImage, script Script, cfg Config, fontSize float64) (*compositor, error) {
	f, err := parseCaptionFont()
	if err != nil {
		return nil, fmt.Errorf("slideshow: parse caption font: %w", err)
	}

	bandHeight := int(math.Round(bandFraction * float64(cfg.Height)))
	fit, _, _ := ContainFit(img.Width, img.Height, cfg.Width, cfg.Height)

	c := &compositor{
		cfg:   cfg,
		src:   img.Image,
		frame: image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height)),
		fit:   fit,
		band:  image.Rect(0, cfg.Height-bandHeight, cfg.Width, cfg.Height),
	}

	// Shrink the face until the longest caption fits the band.
	size := fontSize
	for {
		if err := c.setFace(f, size); err != nil {
			return nil, err
		}
		c.wrap(script)
		if c.fits() || size <= minFontSize {
			break
		}
		_ = c.face.Close()
		size = math.Max(minFontSize, size-fontSizeStep)
	}
	if !c.fits() {
		c.truncate()
	}
	return c, nil
}

func (c *compositor) setFace(f *opentype.Font, size float64) error {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("slideshow: create caption face: %w", err)
	}
	metrics := face.Metrics()
	c.face = face
	c.lineHeight = int(math.Ceil(float64(metrics.Height.Ceil()) * lineSpacing))
	c.ascent = metrics.Ascent.Ceil()
	return nil
}

func (c *compositor) wrap(script Script) {
	maxWidth := c.cfg.Width - 2*captionMargin
	c.lines = make([][]string, script.Len())
	for i, sc := range script.Scenes {
		c.lines[i] = WrapText(sc.Text, maxWidth, c.measure)
	}
}

// maxLines is the number of caption lines the band can show.
func (c *compositor) maxLines() int {
	n := 0
	if c.lineHeight > 0 {
		n = c.band.Dy() / c.lineHeight
	}
	return min(n, maxCaptionLines)
}

func (c *compositor) fits() bool {
	n := c.maxLines()
	for _, lines := range c.lines {
		if len(lines) > n {
			return false
		}
	}
	return true
}

// truncate drops the lines that do not fit and marks the cut with an
// ellipsis on the last kept line.
func (c *compositor) truncate() {
	n := max(c.maxLines(), 1)
	maxWidth := c.cfg.Width - 2*captionMargin
	for i, lines := range c.lines {
		if len(lines) <= n {
			continue
		}
		kept := append([]string(nil), lines[:n]...)
		last := kept[n-1]
		for last != "" && c.measure(last+ellipsis) > maxWidth {
			_, size := utf8.DecodeLastRuneInString(last)
			last = last[:len(last)-size]
		}
		kept[n-1] = strings.TrimRight(last, " ") + ellipsis
		c.lines[i] = kept
	}
}

func (c *compositor) measure(s string) int {
	return font.MeasureString(c.face, s).Ceil()
}

// Close releases the font face.
func (c *compositor) Close() error {
	return c.face.Close()
}

// Compose draws frame f of scene s, where frames is the scene's frame budget.
// The returned image is reused by the next call.
func (c *compositor) Compose(scene, frame, frames int) *image.RGBA {
	p := Progress(frame, frames)
	dst := c.frame

	draw.Draw(dst, dst.Bounds(), image.Black, image.Point{}, draw.Src)
	c.drawImage(p)
	applyBrightness(dst, BrightnessMultiplier(p))
	fill(dst, c.band, BandOpacity(p))
	c.drawCaption(c.lines[scene], p)
	if a := TransitionAlpha(scene, frame); a > 0 {
		fill(dst, dst.Bounds(), a)
	}
	return dst
}

// drawImage places the source contain-fit, zoomed around the frame center and
// shifted by the pan offset.
func (c *compositor) drawImage(p float64) {
	b := c.src.Bounds()
	s := c.fit * ZoomFactor(p)
	dx, dy := PanOffset(p)

	w := float64(b.Dx()) * s
	h := float64(b.Dy()) * s
	tx := (float64(c.cfg.Width)-w)/2 + dx - s*float64(b.Min.X)
	ty := (float64(c.cfg.Height)-h)/2 + dy - s*float64(b.Min.Y)

	m := f64.Aff3{
		s, 0, tx,
		0, s, ty,
	}
	draw.ApproxBiLinear.Transform(c.frame, m, c.src, b, draw.Over, nil)
}

func (c *compositor) drawCaption(lines []string, p float64) {
	captionAlpha := CaptionAlpha(p)
	if captionAlpha == 0 || len(lines) == 0 {
		return
	}

	block := len(lines) * c.lineHeight
	top := c.band.Min.Y + (c.band.Dy()-block)/2

	for i, line := range lines {
		a := captionAlpha * LineAlpha(p, i)
		if a == 0 {
			continue
		}
		width := c.measure(line)
		d := font.Drawer{
			Dst:  c.frame,
			Src:  image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: alpha8(a)}),
			Face: c.face,
			Dot: fixed.P(
				(c.cfg.Width-width)/2,
				top+i*c.lineHeight+c.ascent,
			),
		}
		d.DrawString(line)
	}
}

// fill composites black at alpha a over r.
func fill(dst *image.RGBA, r image.Rectangle, a float64) {
	if a <= 0 {
		return
	}
	src := image.NewUniform(color.NRGBA{A: alpha8(a)})
	draw.Draw(dst, r, src, image.Point{}, draw.Over)
}

// applyBrightness scales the color channels of dst by k.
func applyBrightness(dst *image.RGBA, k float64) {
	var lut [256]uint8
	for i := range lut {
		lut[i] = uint8(math.Min(255, math.Round(float64(i)*k)))
	}
	pix := dst.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i] = lut[pix[i]]
		pix[i+1] = lut[pix[i+1]]
		pix[i+2] = lut[pix[i+2]]
	}
}

package slideshow

import (
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captionOfLength joins words into a caption of at most n bytes.
func captionOfLength(n int) string {
	words := []string{"a", "lantern", "glows", "beside", "the", "quiet", "river", "while", "robots", "wander"}
	var b strings.Builder
	for i := 0; ; i++ {
		w := words[i%len(words)]
		if b.Len()+len(w)+1 > n {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
	}
	return b.String()
}

// assertCaptionInBand checks that the wrapped caption block sits inside the band.
func assertCaptionInBand(t *testing.T, c *compositor, lines []string) {
	t.Helper()
	block := len(lines) * c.lineHeight
	top := c.band.Min.Y + (c.band.Dy()-block)/2
	assert.GreaterOrEqual(t, top, c.band.Min.Y, "caption starts above the band")
	assert.LessOrEqual(t, top+block, c.band.Max.Y, "caption ends below the frame")
	assert.LessOrEqual(t, len(lines), maxCaptionLines)
}

func TestCompositor_ShortCaptionKeepsFontSize(t *testing.T) {
	cfg := DefaultConfig(3 * time.Second)
	c, err := newCompositor(solidImage(64, 64, color.Black), NewScript("A cat sleeps."), cfg, DefaultFontSize)
	require.NoError(t, err)
	defer c.Close()

	f, err := parseCaptionFont()
	require.NoError(t, err)
	ref := &compositor{}
	require.NoError(t, ref.setFace(f, DefaultFontSize))
	defer ref.Close()

	assert.Equal(t, ref.lineHeight, c.lineHeight)
	assert.Equal(t, [][]string{{"A cat sleeps."}}, c.lines)
}

func TestCompositor_LongCaptionFitsBand(t *testing.T) {
	text := captionOfLength(500)
	require.Greater(t, len(text), 480)

	cfg := DefaultConfig(3 * time.Second)
	c, err := newCompositor(solidImage(64, 64, color.Black), NewScript(text), cfg, DefaultFontSize)
	require.NoError(t, err)
	defer c.Close()

	lines := c.lines[0]
	require.NotEmpty(t, lines)
	assertCaptionInBand(t, c, lines)
	assert.Equal(t, text, strings.Join(lines, " "), "no words dropped")

	// Every line is drawn by the last frame of the scene.
	frames := FramesPerScene(cfg.TotalDuration, 1, cfg.FPS)
	frame := c.Compose(0, frames-1, frames)

	block := len(lines) * c.lineHeight
	top := c.band.Min.Y + (c.band.Dy()-block)/2
	for i := range lines {
		lit := false
		for y := top + i*c.lineHeight; y < top+(i+1)*c.lineHeight && !lit; y++ {
			for x := 0; x < cfg.Width; x++ {
				if frame.RGBAAt(x, y).R > 128 {
					lit = true
					break
				}
			}
		}
		assert.True(t, lit, "line %d is not visible", i)
	}

	// Nothing is drawn above the band on a black source.
	for x := 0; x < cfg.Width; x++ {
		require.Equal(t, uint8(0), frame.RGBAAt(x, c.band.Min.Y-1).R)
	}
}

func TestCompositor_TruncatesOverlongCaption(t *testing.T) {
	text := captionOfLength(3000)

	cfg := DefaultConfig(3 * time.Second)
	c, err := newCompositor(solidImage(64, 64, color.Black), NewScript("Short one.", text), cfg, DefaultFontSize)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, []string{"Short one."}, c.lines[0])

	lines := c.lines[1]
	assertCaptionInBand(t, c, lines)
	require.Len(t, lines, c.maxLines())
	assert.True(t, strings.HasSuffix(lines[len(lines)-1], ellipsis))
	for _, line := range lines {
		assert.LessOrEqual(t, c.measure(line), cfg.Width-2*captionMargin)
	}
}

func TestCompositor_LineAlphaScaledByCaptionAlpha(t *testing.T) {
	cfg := DefaultConfig(3 * time.Second)
	c, err := newCompositor(solidImage(64, 64, color.Black), NewScript("A cat sleeps."), cfg, DefaultFontSize)
	require.NoError(t, err)
	defer c.Close()

	// At p=0.1 both the caption and its first line are at 0.3.
	frames := FramesPerScene(cfg.TotalDuration, 1, cfg.FPS)
	frame := c.Compose(0, frames/10, frames)

	var brightest uint8
	for y := c.band.Min.Y; y < c.band.Max.Y; y++ {
		for x := 0; x < cfg.Width; x++ {
			brightest = max(brightest, frame.RGBAAt(x, y).R)
		}
	}
	assert.Greater(t, brightest, uint8(0))
	assert.LessOrEqual(t, brightest, alpha8(0.3*0.3)+1)
}

package slideshow

import (
	"math"
	"time"
)

// FramesPerScene returns floor(sceneDuration / frameInterval) where
// sceneDuration = total / scenes and frameInterval = 1s / fps. The quotient is
// evaluated in integer nanoseconds so that 10s over 2 scenes at 30 fps is
// exactly 150 frames.
func FramesPerScene(total time.Duration, scenes, fps int) int {
	if total <= 0 || scenes <= 0 || fps <= 0 {
		return 0
	}
	return int(int64(total) * int64(fps) / (int64(scenes) * int64(time.Second)))
}

// Progress is the fraction of the scene's frame budget already elapsed, in [0,1).
func Progress(frame, frames int) float64 {
	if frames <= 0 || frame <= 0 {
		return 0
	}
	return float64(frame) / float64(frames)
}

// ZoomFactor is the periodic zoom applied on top of the contain-fit scale.
func ZoomFactor(progress float64) float64 {
	return 1 + 0.1*math.Sin(2*math.Pi*progress)
}

// PanOffset is the periodic pan in pixels.
func PanOffset(progress float64) (dx, dy float64) {
	return 20 * math.Sin(math.Pi*progress), 10 * math.Cos(math.Pi*progress)
}

// BrightnessMultiplier scales the RGB channels of the image layer.
func BrightnessMultiplier(progress float64) float64 {
	return 0.8 + 0.2*math.Sin(math.Pi*progress)
}

// BandOpacity is the opacity of the caption band.
func BandOpacity(progress float64) float64 {
	return clamp01(0.4 + 0.1*math.Sin(4*math.Pi*progress))
}

// CaptionAlpha fades the caption in over the first third of the scene.
func CaptionAlpha(progress float64) float64 {
	return clamp01(math.Min(1, 3*progress))
}

// LineAlpha is the alpha of wrapped line index line; each line starts its
// fade 0.2 of a scene after the previous one.
func LineAlpha(progress float64, line int) float64 {
	return clamp01(3 * (progress - 0.2*float64(line)))
}

// TransitionAlpha is the alpha of the black overlay drawn over the first
// TransitionFrames frames of every scene except the first.
func TransitionAlpha(scene, frame int) float64 {
	if scene <= 0 || frame < 0 || frame >= TransitionFrames {
		return 0
	}
	return clamp01(1 - float64(frame)/TransitionFrames)
}

// ContainFit scales a srcW x srcH box to fit inside dstW x dstH without
// cropping and returns the scale and the offsets that center it.
func ContainFit(srcW, srcH, dstW, dstH int) (scale, offX, offY float64) {
	if srcW <= 0 || srcH <= 0 {
		return 0, 0, 0
	}
	scale = math.Min(float64(dstW)/float64(srcW), float64(dstH)/float64(srcH))
	offX = (float64(dstW) - float64(srcW)*scale) / 2
	offY = (float64(dstH) - float64(srcH)*scale) / 2
	return scale, offX, offY
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// alpha8 converts a [0,1] alpha to an 8-bit channel value.
func alpha8(a float64) uint8 {
	return uint8(math.Round(clamp01(a) * 255))
}

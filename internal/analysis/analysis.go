package analysis

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"

	"github.com/scrolland/cuestionario-videos/internal/services"
)

// AspectClass buckets the width/height ratio of an image.
type AspectClass string

const (
	AspectHorizontalWide AspectClass = "horizontal_wide"
	AspectHorizontal     AspectClass = "horizontal"
	AspectSquare         AspectClass = "square"
	AspectVertical       AspectClass = "vertical"
)

// BrightnessClass buckets the global mean luminance.
type BrightnessClass string

const (
	BrightnessDark   BrightnessClass = "dark"
	BrightnessMedium BrightnessClass = "medium"
	BrightnessBright BrightnessClass = "bright"
)

// ColorClass describes the dominant color family.
type ColorClass string

const (
	ColorNeutral ColorClass = "neutral"
	ColorWarm    ColorClass = "warm"
	ColorCool    ColorClass = "cool"
	ColorNatural ColorClass = "natural"
)

// TemperatureClass describes the warm/cool balance of the image center.
type TemperatureClass string

const (
	TemperatureWarm    TemperatureClass = "warm"
	TemperatureCool    TemperatureClass = "cool"
	TemperatureNeutral TemperatureClass = "neutral"
)

// CompositionClass names the horizontal third carrying the most detail.
type CompositionClass string

const (
	CompositionTop    CompositionClass = "top_focused"
	CompositionCenter CompositionClass = "center_focused"
	CompositionBottom CompositionClass = "bottom_focused"
)

// Analysis holds the per-image features that drive prompt composition.
// Computed once per uploaded image and never persisted.
type Analysis struct {
	AspectRatio      AspectClass
	Brightness       BrightnessClass
	DominantColor    ColorClass
	ColorTemperature TemperatureClass
	HasFaceRegion    bool
	Composition      CompositionClass
}

// faceVarianceThreshold is the upper-half luminance variance above which a
// concentrated subject (likely a face) is assumed.
const faceVarianceThreshold = 500

// AnalyzeBytes decodes raw image bytes and runs Analyze.
func AnalyzeBytes(data []byte) (Analysis, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Analysis{}, services.Wrap(services.ErrUnsupportedFormat, "analysis", "decode", "", err)
	}
	return Analyze(img), nil
}

// Analyze computes cheap per-pixel statistics over the image.
func Analyze(img image.Image) Analysis {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	return Analysis{
		AspectRatio:      classifyAspect(width, height),
		Brightness:       classifyBrightness(img),
		DominantColor:    classifyDominantColor(img),
		ColorTemperature: classifyTemperature(img, width, height),
		HasFaceRegion:    detectFaceRegion(img, width, height),
		Composition:      classifyComposition(img, width, height),
	}
}

func classifyAspect(width, height int) AspectClass {
	ratio := float64(width) / float64(height)
	switch {
	case ratio > 1.5:
		return AspectHorizontalWide
	case ratio > 1.2:
		return AspectHorizontal
	case ratio > 0.9:
		return AspectSquare
	default:
		return AspectVertical
	}
}

func classifyBrightness(img image.Image) BrightnessClass {
	mean, _ := grayStats(img)
	switch {
	case mean < 85:
		return BrightnessDark
	case mean < 170:
		return BrightnessMedium
	default:
		return BrightnessBright
	}
}

func classifyDominantColor(img image.Image) ColorClass {
	small := imaging.Resize(img, 50, 50, imaging.NearestNeighbor)
	var rSum, gSum, bSum float64
	var count float64
	bounds := small.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b := rgb8(small.At(x, y).RGBA())
			rSum += r
			gSum += g
			bSum += b
			count++
		}
	}
	if count == 0 {
		return ColorNeutral
	}
	r, g, b := rSum/count, gSum/count, bSum/count

	maxCh := max3(r, g, b)
	minCh := min3(r, g, b)
	switch {
	case maxCh-minCh < 30:
		return ColorNeutral
	case r > g && r > b:
		return ColorWarm
	case b > r && b > g:
		return ColorCool
	default:
		return ColorNatural
	}
}

func classifyTemperature(img image.Image, width, height int) TemperatureClass {
	centerX, centerY := width/2, height/2
	sample := min(width, height) / 4
	if sample == 0 {
		return TemperatureNeutral
	}
	region := imaging.Crop(img, image.Rect(centerX-sample, centerY-sample, centerX+sample, centerY+sample))

	var rSum, bSum, count float64
	bounds := region.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, _, b := rgb8(region.At(x, y).RGBA())
			rSum += r
			bSum += b
			count++
		}
	}
	if count == 0 {
		return TemperatureNeutral
	}
	rAvg, bAvg := rSum/count, bSum/count
	switch {
	case rAvg > bAvg+10:
		return TemperatureWarm
	case bAvg > rAvg+10:
		return TemperatureCool
	default:
		return TemperatureNeutral
	}
}

func detectFaceRegion(img image.Image, width, height int) bool {
	upper := imaging.Crop(img, image.Rect(0, 0, width, height/2))
	_, variance := grayStats(upper)
	// High variance in the upper half suggests a concentrated subject.
	return variance > faceVarianceThreshold
}

func classifyComposition(img image.Image, width, height int) CompositionClass {
	third := height / 3

	_, topVar := grayStats(imaging.Crop(img, image.Rect(0, 0, width, third)))
	_, midVar := grayStats(imaging.Crop(img, image.Rect(0, third, width, third*2)))
	_, bottomVar := grayStats(imaging.Crop(img, image.Rect(0, third*2, width, height)))

	maxVar := max3(topVar, midVar, bottomVar)
	// Ties resolve in scan order: top, then middle, then bottom.
	switch maxVar {
	case topVar:
		return CompositionTop
	case midVar:
		return CompositionCenter
	default:
		return CompositionBottom
	}
}

// grayStats returns the mean and variance of the image luminance on the
// 0-255 scale, matching an 8-bit grayscale conversion.
func grayStats(img image.Image) (mean, variance float64) {
	bounds := img.Bounds()
	var sum, count float64
	values := make([]float64, 0, bounds.Dx()*bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b := rgb8(img.At(x, y).RGBA())
			l := 0.299*r + 0.587*g + 0.114*b
			values = append(values, l)
			sum += l
			count++
		}
	}
	if count == 0 {
		return 0, 0
	}
	mean = sum / count
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, sq / count
}

func rgb8(r, g, b, _ uint32) (float64, float64, float64) {
	return float64(r >> 8), float64(g >> 8), float64(b >> 8)
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

package imageprep

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/scrolland/cuestionario-videos/internal/services"
)

// The generation service rejects requests over 5 MB. The image is sent
// base64-encoded (~4/3 inflation), so raw bytes must stay under 3.3 MB.
const (
	MaxAspectRatio = 2.0
	MaxImageMB     = 3.3
)

// Format identifies a recognized image encoding.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
)

// Normalized is the result of geometry normalization: bytes ready to be
// base64-encoded for submission, plus the detected format and final geometry.
type Normalized struct {
	Data     []byte
	Format   Format
	MIMEType string
	Width    int
	Height   int
	Cropped  bool
}

// SizeMB returns the final payload size in megabytes.
func (n *Normalized) SizeMB() float64 {
	return float64(len(n.Data)) / (1024 * 1024)
}

// DataURI renders the normalized image as a base64 data URI.
func (n *Normalized) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", n.MIMEType, base64.StdEncoding.EncodeToString(n.Data))
}

// Normalize validates and adjusts raw image bytes for submission to the
// generation service. Images wider than 2:1 are center-cropped to exactly
// 2:1 and re-encoded in their original format. The result must fit under
// MaxImageMB or ErrImageTooLarge is returned.
func Normalize(data []byte) (*Normalized, error) {
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrValidation, "imageprep", "normalize", "empty image data", nil)
	}

	format, mimeType, ok := sniffFormat(data)
	if !ok {
		return nil, services.Wrap(services.ErrUnsupportedFormat, "imageprep", "normalize", "unrecognized image signature", nil)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, services.Wrap(services.ErrUnsupportedFormat, "imageprep", "decode", "", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, services.Wrap(services.ErrValidation, "imageprep", "decode", "image has zero dimension", nil)
	}

	cropped := false
	if float64(width)/float64(height) > MaxAspectRatio {
		newWidth := int(float64(height) * MaxAspectRatio)
		left := (width - newWidth) / 2
		img = imaging.Crop(img, image.Rect(left, 0, left+newWidth, height))
		width = img.Bounds().Dx()
		height = img.Bounds().Dy()
		cropped = true

		data, err = encode(img, format)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "imageprep", "re-encode", string(format), err)
		}
	}

	result := &Normalized{
		Data:     data,
		Format:   format,
		MIMEType: mimeType,
		Width:    width,
		Height:   height,
		Cropped:  cropped,
	}

	if result.SizeMB() > MaxImageMB {
		return nil, services.Wrap(
			services.ErrImageTooLarge,
			"imageprep", "normalize",
			fmt.Sprintf("%.2f MB exceeds %.1f MB limit (becomes 5 MB after base64 encoding)", result.SizeMB(), MaxImageMB),
			nil,
		)
	}
	return result, nil
}

func sniffFormat(data []byte) (Format, string, bool) {
	switch {
	case bytes.HasPrefix(data, []byte{0xff, 0xd8, 0xff}):
		return FormatJPEG, "image/jpg", true
	case bytes.HasPrefix(data, []byte("\x89PNG")):
		return FormatPNG, "image/png", true
	case bytes.HasPrefix(data, []byte("GIF")):
		return FormatGIF, "image/gif", true
	default:
		return "", "", false
	}
}

func encode(img image.Image, format Format) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatJPEG:
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
			return nil, err
		}
	case FormatPNG:
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, err
		}
	case FormatGIF:
		if err := imaging.Encode(&buf, img, imaging.GIF); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	return buf.Bytes(), nil
}

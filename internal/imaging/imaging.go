// Package imaging holds the raster operations the renderers need: decoding
// rasterized PDF pages, trimming whitespace, cropping and bounded downscaling.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/anthonynsimon/bild/transform"
	pnm "github.com/jbuchbinder/gopnm"
	"github.com/nfnt/resize"

	// Additional source formats accepted by the raster image path.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// blankThreshold is the minimum 16-bit channel value counted as background.
const blankThreshold = 0xf000

// DecodePNM decodes a PPM/PGM/PBM image as produced by pdftoppm.
func DecodePNM(r io.Reader) (image.Image, error) {
	img, err := pnm.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode PNM image: %w", err)
	}
	return img, nil
}

// Decode decodes any registered raster format.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// DecodeConfig returns dimensions and format without decoding pixel data.
func DecodeConfig(data []byte) (image.Config, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("failed to read image header: %w", err)
	}
	return cfg, format, nil
}

// IsBlank reports whether c counts as background: transparent or near white.
func IsBlank(c color.Color) bool {
	r, g, b, a := c.RGBA()
	if a < 0x1000 {
		return true
	}
	return r >= blankThreshold && g >= blankThreshold && b >= blankThreshold
}

// ContentBounds returns the smallest rectangle within area that contains
// every non-blank pixel. ok is false if area is entirely blank.
func ContentBounds(img image.Image, area image.Rectangle) (bounds image.Rectangle, ok bool) {
	area = area.Intersect(img.Bounds())
	minX, minY := area.Max.X, area.Max.Y
	maxX, maxY := area.Min.X-1, area.Min.Y-1

	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			if IsBlank(img.At(x, y)) {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	if maxX < minX || maxY < minY {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// Trim crops away the blank border of img.
func Trim(img image.Image) (image.Image, error) {
	bounds, ok := ContentBounds(img, img.Bounds())
	if !ok {
		return nil, fmt.Errorf("image is entirely blank")
	}
	return Crop(img, bounds), nil
}

// Crop returns the given region of img, re-based at the origin.
func Crop(img image.Image, rect image.Rectangle) image.Image {
	return transform.Crop(img, rect)
}

// Fit scales img down so that neither side exceeds maxDimension, keeping the
// aspect ratio. Images that already fit are returned unchanged with
// scaled=false.
func Fit(img image.Image, maxDimension int) (out image.Image, scaled bool) {
	b := img.Bounds()
	if maxDimension <= 0 || (b.Dx() <= maxDimension && b.Dy() <= maxDimension) {
		return img, false
	}
	return resize.Thumbnail(uint(maxDimension), uint(maxDimension), img, resize.Lanczos3), true
}

// Encode serializes img in the given format (png, jpeg or gif).
func Encode(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	var err error

	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg", "jpg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

package signature

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Canvas dimensions oversized signature uploads are shrunk onto.
const (
	CanvasWidth  = 600
	CanvasHeight = 200
)

// Uploads declaring more than MaxDimension pixels on a side, or more than
// MaxPixels in total, are refused before any pixel buffer is allocated.
const (
	MaxDimension = 4096
	MaxPixels    = 16 << 20
)

// ErrImageDecode is returned for uploads that are not a supported raster.
var ErrImageDecode = errors.New("signature: cannot decode image")

// Decode parses a PNG, JPEG, GIF, BMP or WebP image and reports its format.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty", ErrImageDecode)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	if cfg.Width > MaxDimension || cfg.Height > MaxDimension || cfg.Width*cfg.Height > MaxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %dx%d", ErrImageDecode, cfg.Width, cfg.Height, MaxDimension, MaxDimension)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, "", fmt.Errorf("%w: zero-sized image", ErrImageDecode)
	}
	return img, format, nil
}

// Normalize returns img unchanged when it fits within CanvasWidth x
// CanvasHeight, so a drawn signature keeps its native size. Larger uploads are
// shrunk, preserving aspect ratio, and centered on a white canvas.
func Normalize(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= CanvasWidth && b.Dy() <= CanvasHeight {
		return img
	}

	scale := min(float64(CanvasWidth)/float64(b.Dx()), float64(CanvasHeight)/float64(b.Dy()))
	w := max(int(float64(b.Dx())*scale), 1)
	h := max(int(float64(b.Dy())*scale), 1)
	x0 := (CanvasWidth - w) / 2
	y0 := (CanvasHeight - h) / 2

	canvas := image.NewRGBA(image.Rect(0, 0, CanvasWidth, CanvasHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(canvas, image.Rect(x0, y0, x0+w, y0+h), img, b, draw.Over, nil)
	return canvas
}

// EncodePNG re-encodes a raster for embedding.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("signature: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

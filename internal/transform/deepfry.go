package transform

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
)

const (
	// MaxImageBytes caps the size of images accepted for frying.
	MaxImageBytes = 8 << 20
	// MaxImagePixels caps the decoded size. Compressed size says little about it.
	MaxImagePixels = 4096 * 4096
)

var (
	ErrNotImage      = errors.New("not a supported image")
	ErrImageTooLarge = errors.New("image dimensions too large")
)

// DeepFry oversaturates, boosts contrast and crushes the image through low quality JPEG.
// The input may be PNG or JPEG; the output is always JPEG.
func DeepFry(data []byte) ([]byte, error) {
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("image too large: %d bytes", len(data))
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := dst.Pix[(y-bounds.Min.Y)*dst.Stride:]
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := fry(src.At(x, y))
			i := (x - bounds.Min.X) * 4
			row[i], row[i+1], row[i+2], row[i+3] = c.R, c.G, c.B, c.A
		}
	}

	var out bytes.Buffer
	// two passes at terrible quality for the artifacts
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: 8}); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	again, err := jpeg.Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("re-decode: %w", err)
	}
	out.Reset()
	if err := jpeg.Encode(&out, again, &jpeg.Options{Quality: 5}); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return out.Bytes(), nil
}

func fry(c color.Color) color.RGBA {
	r, g, b, a := c.RGBA()
	rf, gf, bf := float64(r>>8), float64(g>>8), float64(b>>8)

	// saturation around the luma
	l := 0.299*rf + 0.587*gf + 0.114*bf
	rf, gf, bf = l+(rf-l)*2.5, l+(gf-l)*2.5, l+(bf-l)*2.5

	// contrast and a warm push
	rf = (rf-128)*1.6 + 128 + 20
	gf = (gf-128)*1.6 + 128
	bf = (bf-128)*1.6 + 128 - 20

	return color.RGBA{R: clamp(rf), G: clamp(gf), B: clamp(bf), A: uint8(a >> 8)}
}

func clamp(v float64) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v)
	}
}

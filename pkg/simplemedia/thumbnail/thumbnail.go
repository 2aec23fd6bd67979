// Package thumbnail renders JPEG thumbnails with a cover fit: the source is
// scaled until it fills the target box and the overflow is center-cropped.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"math"

	"github.com/gabriel-vasile/mimetype"
	"github.com/nfnt/resize"
	"github.com/tendant/simple-media/pkg/simplemedia"
)

var supportedMimeTypes = []string{"image/jpeg", "image/png"}

// DefaultMaxPixels caps the decoded size of a source image at 16384x16384.
const DefaultMaxPixels = 16384 * 16384

// Generator implements simplemedia.Thumbnailer with nfnt/resize.
type Generator struct {
	interpolation resize.InterpolationFunction
	maxPixels     int
}

// Option configures a Generator.
type Option func(*Generator)

// WithInterpolation overrides the resampling function (Lanczos3 by default).
func WithInterpolation(fn resize.InterpolationFunction) Option {
	return func(g *Generator) {
		g.interpolation = fn
	}
}

// WithMaxPixels sets the largest width*height the generator will decode.
// Values <= 0 keep DefaultMaxPixels.
func WithMaxPixels(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxPixels = n
		}
	}
}

// New creates a thumbnail generator
func New(opts ...Option) *Generator {
	g := &Generator{interpolation: resize.Lanczos3, maxPixels: DefaultMaxPixels}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateThumbnail renders input into a Width x Height JPEG. Empty input
// fails with simplemedia.ErrEmptyImage. Images whose header declares more
// pixels than the limit fail with simplemedia.ErrImageTooLarge before any
// pixel data is decoded.
func (g *Generator) GenerateThumbnail(ctx context.Context, input []byte, opts simplemedia.ThumbnailOptions) ([]byte, error) {
	if len(input) == 0 {
		return nil, simplemedia.ErrEmptyImage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = opts.WithDefaults()

	detected := mimetype.Detect(input)
	if !mimetype.EqualsAny(detected.String(), supportedMimeTypes...) {
		return nil, fmt.Errorf("unsupported image format %s", detected.String())
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Width > g.maxPixels/cfg.Height {
		return nil, fmt.Errorf("%w: %dx%d", simplemedia.ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := g.cover(src, opts.Width, opts.Height)

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, thumb, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *Generator) cover(src image.Image, width, height int) image.Image {
	b := src.Bounds()
	scale := math.Max(float64(width)/float64(b.Dx()), float64(height)/float64(b.Dy()))
	scaledW := uint(math.Ceil(float64(b.Dx()) * scale))
	scaledH := uint(math.Ceil(float64(b.Dy()) * scale))

	scaled := resize.Resize(scaledW, scaledH, src, g.interpolation)
	sb := scaled.Bounds()
	offset := image.Pt(sb.Min.X+(sb.Dx()-width)/2, sb.Min.Y+(sb.Dy()-height)/2)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), scaled, offset, draw.Src)
	return dst
}

package imageopt

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/webp"

	"github.com/postora/postora-server/internal/domain/upload"
)

// decodable lists the formats imaging can decode once the webp decoder is registered.
// Vector and AVIF images are stored as uploaded.
var decodable = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
	"image/bmp":  {},
	"image/tiff": {},
}

// Optimizer downsizes raster images to fit the policy bounds and re-encodes them
// as JPEG.
type Optimizer struct {
	log zerolog.Logger
}

func NewOptimizer(log zerolog.Logger) *Optimizer {
	return &Optimizer{log: log.With().Str("component", "image-optimizer").Logger()}
}

func (o *Optimizer) Supports(contentType string) bool {
	_, ok := decodable[upload.NormalizeContentType(contentType)]
	return ok
}

func (o *Optimizer) Extension() string {
	return ".jpg"
}

// Optimize reads src and writes the optimized image to dst. dst is written through
// a temp file in the same directory so a partial image is never visible.
func (o *Optimizer) Optimize(ctx context.Context, src, dst string, opts upload.OptimizeOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	if needsResize(bounds, opts) {
		img = imaging.Fit(img, boundOrSelf(opts.MaxWidth, bounds.Dx()), boundOrSelf(opts.MaxHeight, bounds.Dy()), imaging.Lanczos)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// JPEG has no alpha channel: composite onto white instead of letting
	// transparent pixels turn black.
	flat := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), color.White)
	flat = imaging.Overlay(flat, img, image.Pt(0, 0), 1.0)

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".optimize-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	quality := opts.Quality
	if quality < 1 || quality > 100 {
		quality = 80
	}
	if err := imaging.Encode(tmp, flat, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode jpeg: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync optimized image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close optimized image: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod optimized image: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("move optimized image: %w", err)
	}

	o.log.Debug().
		Int("src_width", bounds.Dx()).
		Int("src_height", bounds.Dy()).
		Int("width", flat.Bounds().Dx()).
		Int("height", flat.Bounds().Dy()).
		Int("quality", quality).
		Msg("image re-encoded")
	return nil
}

func needsResize(bounds image.Rectangle, opts upload.OptimizeOptions) bool {
	return (opts.MaxWidth > 0 && bounds.Dx() > opts.MaxWidth) ||
		(opts.MaxHeight > 0 && bounds.Dy() > opts.MaxHeight)
}

func boundOrSelf(limit, size int) int {
	if limit <= 0 {
		return size
	}
	return limit
}

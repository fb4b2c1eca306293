package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/disintegration/imaging"

	"github.com/ketabi/ketabi/internal/epub"
)

const (
	defaultCoverMaxWidth  = 1600
	defaultCoverMaxHeight = 2560
	defaultCoverQuality   = 90
	defaultMaxPixels      = 100 * 1000 * 1000 // 100 megapixels
)

// coverOptimizer turns an arbitrary raster image into the JPEG cover
// stored in the book.
type coverOptimizer struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
	MaxPixels int // Total pixel count limit for decode (width * height)
}

func newCoverOptimizer(opts Options) coverOptimizer {
	o := coverOptimizer{
		MaxWidth:  opts.CoverMaxWidth,
		MaxHeight: opts.CoverMaxHeight,
		Quality:   opts.CoverQuality,
		MaxPixels: defaultMaxPixels,
	}
	if o.MaxWidth <= 0 {
		o.MaxWidth = defaultCoverMaxWidth
	}
	if o.MaxHeight <= 0 {
		o.MaxHeight = defaultCoverMaxHeight
	}
	if o.Quality <= 0 {
		o.Quality = defaultCoverQuality
	}
	if o.Quality > 100 {
		o.Quality = 100
	}
	return o
}

// Load reads the image at path, shrinks it to fit the configured bounds and
// encodes it as JPEG. Transparent areas are flattened onto white.
func (o coverOptimizer) Load(path string) (epub.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return epub.Image{}, fmt.Errorf("failed to read cover: %w", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return epub.Image{}, fmt.Errorf("failed to decode cover: %w", err)
	}
	pixels := uint64(cfg.Width) * uint64(cfg.Height)
	if o.MaxPixels > 0 && pixels > uint64(o.MaxPixels) {
		return epub.Image{}, fmt.Errorf("cover too large to decode: %dx%d (%d pixels)", cfg.Width, cfg.Height, pixels)
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return epub.Image{}, fmt.Errorf("failed to decode cover: %w", err)
	}

	processed := src
	if b := src.Bounds(); b.Dx() > o.MaxWidth || b.Dy() > o.MaxHeight {
		processed = imaging.Fit(src, o.MaxWidth, o.MaxHeight, imaging.Lanczos)
	}
	if hasAlpha(processed) {
		b := processed.Bounds()
		bg := imaging.New(b.Dx(), b.Dy(), color.White)
		processed = imaging.Overlay(bg, processed, image.Pt(0, 0), 1.0)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, processed, imaging.JPEG, imaging.JPEGQuality(o.Quality)); err != nil {
		return epub.Image{}, fmt.Errorf("jpeg encode failed: %w", err)
	}

	return epub.Image{
		Filename:  "cover.jpg",
		MediaType: "image/jpeg",
		Data:      buf.Bytes(),
	}, nil
}

func hasAlpha(img image.Image) bool {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if a < 0xFFFF {
				return true
			}
		}
	}
	return false
}

package metadata

import (
	"image"
	"os"

	// Register decoders for the formats the standard image package can size.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/archivum/archivum/internal/types"
)

// ExifExtractor produces the fixed image side-record. Implementations must
// treat unreadable or non-conforming images as an error; callers translate
// any error into a missing record.
type ExifExtractor interface {
	Extract(path string) (*types.ExifData, error)
}

// ImageExtractor is the built-in EXIF sub-extractor. It captures image
// dimensions via the registered decoders; richer tag parsing is a pluggable
// concern and deliberately out of the core pipeline.
type ImageExtractor struct{}

// Extract reads the image header of path and returns its dimensions.
func (ImageExtractor) Extract(path string) (*types.ExifData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, err
	}
	return &types.ExifData{Width: cfg.Width, Height: cfg.Height}, nil
}

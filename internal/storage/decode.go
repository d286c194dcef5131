package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/webp"

	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
	"github.com/anime-shed/plant-inspector-go/pkg/models"
)

// MaxImageDimension bounds the width and height of a fetched image
const MaxImageDimension = 8192

// FetchedImage is a decoded image with what was learned while fetching it
type FetchedImage struct {
	Image    image.Image
	Metadata models.ImageMetadata
}

// ImageFetcher loads and decodes an image from a remote location
type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) (*FetchedImage, error)
}

// DecodeImage reads at most limit bytes from r and decodes a JPEG, PNG, GIF
// or WebP image. Bodies over the limit are rejected without decoding.
func DecodeImage(r io.Reader, limit int64) (*FetchedImage, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, apperrors.NewNetworkError("failed to read image body", err)
	}
	if int64(len(data)) > limit {
		return nil, apperrors.NewValidationError(fmt.Sprintf("image exceeds %d bytes", limit), nil)
	}
	return DecodeBytes(data)
}

// DecodeBytes decodes an in-memory image, checking its header first so
// oversized images are rejected before their pixels are allocated.
func DecodeBytes(data []byte) (*FetchedImage, error) {
	if len(data) == 0 {
		return nil, apperrors.NewValidationError("image is empty", nil)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewValidationError("unsupported image format", err)
	}
	if cfg.Width > MaxImageDimension || cfg.Height > MaxImageDimension {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("image %dx%d exceeds %dpx limit", cfg.Width, cfg.Height, MaxImageDimension), nil)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewValidationError("failed to decode image", err)
	}
	return &FetchedImage{
		Image: img,
		Metadata: models.ImageMetadata{
			ContentLength: int64(len(data)),
			Width:         cfg.Width,
			Height:        cfg.Height,
			Format:        format,
		},
	}, nil
}

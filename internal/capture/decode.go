package capture

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// MaxFrameDimension bounds the width and height of a pushed frame
const MaxFrameDimension = 4096

// DecodeFrame decodes a JPEG, PNG or WebP frame, rejecting oversized images
// before their pixels are allocated.
func DecodeFrame(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty frame payload")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to read frame header: %w", err)
	}
	if cfg.Width > MaxFrameDimension || cfg.Height > MaxFrameDimension {
		return nil, fmt.Errorf("frame %dx%d exceeds %dpx limit", cfg.Width, cfg.Height, MaxFrameDimension)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s frame: %w", format, err)
	}
	return img, nil
}

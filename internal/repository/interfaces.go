package repository

import (
	"context"

	"github.com/anime-shed/plant-inspector-go/internal/storage"
)

// ImageRepository defines the interface for leaf image access
type ImageRepository interface {
	// FetchImage retrieves and decodes an image from a URL
	FetchImage(ctx context.Context, imageURL string) (*storage.FetchedImage, error)

	// ValidateImageURL validates if the provided URL is acceptable
	ValidateImageURL(imageURL string) error
}

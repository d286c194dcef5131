package repository

import (
	"context"

	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
	"github.com/anime-shed/plant-inspector-go/internal/storage"
	"github.com/anime-shed/plant-inspector-go/pkg/validation"
)

// RoutingImageRepository sends Azure blob URLs to the blob fetcher and
// everything else to the HTTP fetcher.
type RoutingImageRepository struct {
	http      storage.ImageFetcher
	blob      storage.ImageFetcher
	validator *validation.URLValidator
}

// NewImageRepository creates a repository. blob may be nil, in which case
// blob URLs are fetched over plain HTTP.
func NewImageRepository(http, blob storage.ImageFetcher, validator *validation.URLValidator) *RoutingImageRepository {
	if validator == nil {
		validator = validation.NewURLValidator()
	}
	return &RoutingImageRepository{http: http, blob: blob, validator: validator}
}

// FetchImage validates imageURL and retrieves it from the matching store
func (r *RoutingImageRepository) FetchImage(ctx context.Context, imageURL string) (*storage.FetchedImage, error) {
	if err := r.ValidateImageURL(imageURL); err != nil {
		return nil, err
	}
	fetcher := r.http
	if r.blob != nil && storage.IsAzureBlobURL(imageURL) {
		fetcher = r.blob
	}
	if fetcher == nil {
		return nil, apperrors.NewInternalError("no image fetcher configured", ErrRepositoryUnavailable)
	}
	return fetcher.FetchImage(ctx, imageURL)
}

// ValidateImageURL validates if the provided URL is acceptable
func (r *RoutingImageRepository) ValidateImageURL(imageURL string) error {
	if err := r.validator.ValidateImageURL(imageURL); err != nil {
		if appErr, ok := err.(*apperrors.AppError); ok && appErr.Cause == nil {
			appErr.Cause = ErrInvalidImageURL
		}
		return err
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"image"
	"testing"

	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
	"github.com/anime-shed/plant-inspector-go/internal/storage"
)

type stubFetcher struct {
	name string
	urls []string
}

func (s *stubFetcher) FetchImage(_ context.Context, imageURL string) (*storage.FetchedImage, error) {
	s.urls = append(s.urls, imageURL)
	return &storage.FetchedImage{Image: image.NewRGBA(image.Rect(0, 0, 1, 1))}, nil
}

func TestRoutingImageRepository_Routes(t *testing.T) {
	httpFetcher := &stubFetcher{name: "http"}
	blobFetcher := &stubFetcher{name: "blob"}
	repo := NewImageRepository(httpFetcher, blobFetcher, nil)

	ctx := context.Background()
	if _, err := repo.FetchImage(ctx, "https://farmstore.blob.core.windows.net/leaves/a.jpg"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := repo.FetchImage(ctx, "https://example.com/a.jpg"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(blobFetcher.urls) != 1 || len(httpFetcher.urls) != 1 {
		t.Fatalf("expected one fetch each, got blob=%v http=%v", blobFetcher.urls, httpFetcher.urls)
	}
}

func TestRoutingImageRepository_BlobFallsBackToHTTP(t *testing.T) {
	httpFetcher := &stubFetcher{}
	repo := NewImageRepository(httpFetcher, nil, nil)

	if _, err := repo.FetchImage(context.Background(), "https://farmstore.blob.core.windows.net/leaves/a.jpg"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(httpFetcher.urls) != 1 {
		t.Errorf("expected the HTTP fetcher to serve the blob URL")
	}
}

func TestRoutingImageRepository_InvalidURL(t *testing.T) {
	httpFetcher := &stubFetcher{}
	repo := NewImageRepository(httpFetcher, nil, nil)

	for _, raw := range []string{"", "ftp://example.com/a.jpg", "https:///a.jpg"} {
		_, err := repo.FetchImage(context.Background(), raw)
		if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			t.Errorf("%q: expected validation error, got %v", raw, err)
		}
		if !errors.Is(err, ErrInvalidImageURL) {
			t.Errorf("%q: expected ErrInvalidImageURL in chain", raw)
		}
	}
	if len(httpFetcher.urls) != 0 {
		t.Errorf("invalid URLs must not be fetched")
	}
}

func TestRoutingImageRepository_NoFetcher(t *testing.T) {
	repo := NewImageRepository(nil, nil, nil)
	_, err := repo.FetchImage(context.Background(), "https://example.com/a.jpg")
	if !errors.Is(err, ErrRepositoryUnavailable) {
		t.Fatalf("expected ErrRepositoryUnavailable, got %v", err)
	}
}

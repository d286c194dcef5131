package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
)

// HTTPConfig tunes the HTTP image fetcher
type HTTPConfig struct {
	Timeout  time.Duration
	MaxBytes int64
	Attempts int
	// Backoff is multiplied by the attempt number between retries
	Backoff time.Duration
}

// DefaultHTTPConfig returns the fetcher defaults
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:  30 * time.Second,
		MaxBytes: 10 * 1024 * 1024,
		Attempts: 3,
		Backoff:  time.Second,
	}
}

// HTTPImageFetcher downloads leaf photos over HTTP(S)
type HTTPImageFetcher struct {
	client *http.Client
	cfg    HTTPConfig
}

// NewHTTPImageFetcher creates an HTTP image fetcher. Zero config fields take
// their defaults.
func NewHTTPImageFetcher(cfg HTTPConfig) *HTTPImageFetcher {
	def := DefaultHTTPConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = def.MaxBytes
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = def.Attempts
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}

	transport := &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPImageFetcher{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
	}
}

// statusError is a non-200 response
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	if e.code >= 500 {
		return fmt.Sprintf("server error: status code %d", e.code)
	}
	return fmt.Sprintf("client error: status code %d", e.code)
}

// FetchImage downloads and decodes the image at imageURL. Network errors and
// 5xx responses are retried; 4xx responses are not.
func (h *HTTPImageFetcher) FetchImage(ctx context.Context, imageURL string) (*FetchedImage, error) {
	var lastErr error
	for attempt := 0; attempt < h.cfg.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, apperrors.NewTimeoutError("image fetch cancelled", ctx.Err())
			case <-time.After(time.Duration(attempt) * h.cfg.Backoff):
			}
		}

		img, err := h.fetchOnce(ctx, imageURL)
		if err == nil {
			return img, nil
		}
		lastErr = err

		var se *statusError
		if errors.As(err, &se) && se.code < 500 {
			break
		}
		if apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, apperrors.NewTimeoutError("image fetch timed out", ctx.Err())
		}
	}

	var se *statusError
	if errors.As(lastErr, &se) {
		switch {
		case se.code == http.StatusNotFound:
			return nil, apperrors.NewNotFoundError("image not found", lastErr)
		case se.code < 500:
			return nil, apperrors.NewValidationError("image URL rejected by server", lastErr)
		}
	}
	return nil, apperrors.NewNetworkError(
		fmt.Sprintf("failed to fetch image after %d attempts", h.cfg.Attempts), lastErr)
}

func (h *HTTPImageFetcher) fetchOnce(ctx context.Context, imageURL string) (*FetchedImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid URL", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, image/gif, */*")
	req.Header.Set("User-Agent", "PlantInspector/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}
	if resp.ContentLength > h.cfg.MaxBytes {
		return nil, apperrors.NewValidationError(fmt.Sprintf("image exceeds %d bytes", h.cfg.MaxBytes), nil)
	}

	img, err := DecodeImage(resp.Body, h.cfg.MaxBytes)
	if err != nil {
		return nil, err
	}
	img.Metadata.ContentType = resp.Header.Get("Content-Type")
	return img, nil
}

// Package diagnosis sends scanned frames to a multimodal model for a
// disease diagnosis and splits the answer into display sections.
package diagnosis

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotConfigured is returned by clients that have no credentials
var ErrNotConfigured = errors.New("vision client not configured")

// ImageInput is an encoded image sent to the model
type ImageInput struct {
	Data     []byte
	MimeType string
}

// VisionClient is a multimodal text generation service
type VisionClient interface {
	AnalyzeImage(ctx context.Context, img ImageInput, prompt string) (string, error)
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// APIError is a non-success answer from the model service
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vision API error (status %d): %s", e.StatusCode, e.Message)
}

package diagnosis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"strings"
	"sync/atomic"
	"time"

	xdraw "golang.org/x/image/draw"

	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
	"github.com/anime-shed/plant-inspector-go/internal/i18n"
	"github.com/anime-shed/plant-inspector-go/internal/logger"
	"github.com/anime-shed/plant-inspector-go/pkg/models"
)

const (
	// JPEGQuality is the encoder quality for frames sent to the model
	JPEGQuality = 90
	// DefaultMaxDimension bounds the longer side of an uploaded frame
	DefaultMaxDimension = 1280
	diagnosisLines      = 3
)

// BridgeConfig configures a Bridge
type BridgeConfig struct {
	Timeout      time.Duration
	MaxDimension int
}

// Bridge turns a frame into a localized AI diagnosis
type Bridge struct {
	client       VisionClient
	timeout      time.Duration
	maxDimension int
	inFlight     atomic.Int32
}

// NewBridge creates a bridge around client
func NewBridge(client VisionClient, cfg BridgeConfig) *Bridge {
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = DefaultMaxDimension
	}
	return &Bridge{client: client, timeout: cfg.Timeout, maxDimension: cfg.MaxDimension}
}

// Analyzing reports whether a diagnosis is in flight
func (b *Bridge) Analyzing() bool {
	return b.inFlight.Load() > 0
}

// Client returns the underlying vision client
func (b *Bridge) Client() VisionClient {
	return b.client
}

// Diagnose encodes frame as JPEG, asks the model for a diagnosis in lang and
// splits the answer. Failures are returned as localized AppErrors and are
// not retried.
func (b *Bridge) Diagnose(ctx context.Context, frame image.Image, lang string) (*models.DiagnosisResult, error) {
	lang = i18n.Normalize(lang)
	if frame == nil || frame.Bounds().Empty() {
		return nil, apperrors.NewValidationError(i18n.Message(i18n.MsgNoFrame, lang), nil)
	}

	b.inFlight.Add(1)
	defer b.inFlight.Add(-1)

	data, err := EncodeJPEG(frame, b.maxDimension)
	if err != nil {
		return nil, apperrors.NewProcessingError(i18n.Message(i18n.MsgAnalysisFailed, lang), err)
	}

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := b.client.AnalyzeImage(ctx, ImageInput{Data: data, MimeType: "image/jpeg"}, i18n.Message(i18n.MsgDiagnosisPrompt, lang))
	if err != nil {
		logger.WithError(err).WithField("language", lang).Error("Diagnosis request failed")
		return nil, mapError(err, lang)
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewProcessingError(i18n.Message(i18n.MsgAnalysisFailed, lang), errors.New("empty model response"))
	}

	logger.WithFields(map[string]interface{}{
		"language":        lang,
		"bytes":           len(data),
		"processing_time": time.Since(start),
	}).Info("Diagnosis completed")

	diagnosis, treatment := ParseDiagnosis(text)
	return &models.DiagnosisResult{
		Diagnosis: diagnosis,
		Treatment: treatment,
		Raw:       text,
		Language:  lang,
		CreatedAt: time.Now(),
	}, nil
}

// ParseDiagnosis drops blank lines and returns the first three lines as the
// diagnosis and the rest as the treatment, both newline-joined.
func ParseDiagnosis(text string) (diagnosis, treatment string) {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) <= diagnosisLines {
		return strings.Join(lines, "\n"), ""
	}
	return strings.Join(lines[:diagnosisLines], "\n"), strings.Join(lines[diagnosisLines:], "\n")
}

// EncodeJPEG encodes img at JPEGQuality, first downscaling so that neither
// side exceeds maxDim. maxDim <= 0 disables scaling.
func EncodeJPEG(img image.Image, maxDim int) ([]byte, error) {
	src := img
	b := img.Bounds()
	if maxDim > 0 && (b.Dx() > maxDim || b.Dy() > maxDim) {
		w, h := b.Dx(), b.Dy()
		if w >= h {
			h = h * maxDim / w
			w = maxDim
		} else {
			w = w * maxDim / h
			h = maxDim
		}
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
		src = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func mapError(err error, lang string) error {
	var apiErr *APIError
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperrors.NewTimeoutError(i18n.Message(i18n.MsgAnalysisTimeout, lang), err)
	case errors.Is(err, ErrNotConfigured):
		return apperrors.NewInternalError(i18n.Message(i18n.MsgAnalysisFailed, lang), err)
	case errors.As(err, &apiErr):
		return apperrors.NewProcessingError(i18n.Message(i18n.MsgAnalysisFailed, lang), err)
	default:
		return apperrors.NewNetworkError(i18n.Message(i18n.MsgAnalysisNetwork, lang), err)
	}
}

package service

import (
	"context"
	"encoding/base64"
	"image"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
	"github.com/anime-shed/plant-inspector-go/internal/i18n"
	"github.com/anime-shed/plant-inspector-go/internal/logger"
	"github.com/anime-shed/plant-inspector-go/internal/observer"
	"github.com/anime-shed/plant-inspector-go/internal/overlay"
	"github.com/anime-shed/plant-inspector-go/internal/repository"
	"github.com/anime-shed/plant-inspector-go/internal/storage"
	"github.com/anime-shed/plant-inspector-go/internal/strategy"
	"github.com/anime-shed/plant-inspector-go/pkg/models"
	"github.com/anime-shed/plant-inspector-go/pkg/services"
	"github.com/anime-shed/plant-inspector-go/pkg/validation"
)

// ScanInput selects the image and how to scan it. Upload takes precedence
// over URL.
type ScanInput struct {
	URL         string
	Upload      []byte
	Preset      string
	Sensitivity *int
	Language    string
	WithOverlay bool
	Diagnose    bool
}

// Diagnoser runs the AI diagnosis of a frame
type Diagnoser interface {
	Diagnose(ctx context.Context, frame image.Image, lang string) (*models.DiagnosisResult, error)
}

// ScanService scans still photos of leaves
type ScanService interface {
	ScanImage(ctx context.Context, in ScanInput) (*models.ScanResponse, error)
	DiagnoseImage(ctx context.Context, in ScanInput) (*models.DiagnosisResult, error)
	ValidateImageURL(imageURL string) error
}

type scanService struct {
	imageRepo  repository.ImageRepository
	strategies *strategy.Registry
	diagnoser  Diagnoser
	events     observer.Subject
	now        func() time.Time
}

// NewScanService creates the static scan service. diagnoser may be nil when
// no AI key is configured.
func NewScanService(
	imageRepository repository.ImageRepository,
	strategies *strategy.Registry,
	diagnoser Diagnoser,
	events observer.Subject,
) ScanService {
	if events == nil {
		events = observer.Nop{}
	}
	return &scanService{
		imageRepo:  imageRepository,
		strategies: strategies,
		diagnoser:  diagnoser,
		events:     events,
		now:        time.Now,
	}
}

// ScanImage loads the image, runs the colour scan for the requested preset
// and optionally renders the overlay and asks for a diagnosis. A failed
// diagnosis is reported as a warning; the scan itself still succeeds.
func (s *scanService) ScanImage(ctx context.Context, in ScanInput) (*models.ScanResponse, error) {
	start := s.now()
	lang := i18n.Normalize(in.Language)

	strat, err := s.strategies.ForPreset(in.Preset)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid scan preset", err)
	}
	opts := strat.Options().WithLanguage(lang)
	if in.Sensitivity != nil {
		if *in.Sensitivity < 0 || *in.Sensitivity > 100 {
			return nil, apperrors.NewValidationError("sensitivity must be within 0..100", nil)
		}
		opts = opts.Tune(*in.Sensitivity)
	}

	img, err := s.load(ctx, in)
	if err != nil {
		return nil, err
	}

	scanStart := s.now()
	result := strat.Scan(img.Image, opts)
	scanTime := s.now().Sub(scanStart)

	bounds := img.Image.Bounds()
	size := image.Pt(bounds.Dx(), bounds.Dy())

	s.events.NotifyObservers(ctx, observer.ScanEvent{
		EventType:      observer.FrameAnalyzed,
		Timestamp:      s.now(),
		Source:         observer.SourceStatic,
		ImageURL:       in.URL,
		ProcessingTime: scanTime,
		Success:        true,
		Detections:     result.Detections,
		Metadata:       map[string]interface{}{"strategy": strat.GetStrategyName()},
	})

	resp := &models.ScanResponse{
		ImageURL:   in.URL,
		Timestamp:  start.Format(time.RFC3339),
		Width:      size.X,
		Height:     size.Y,
		Detections: result.Detections,
		Summary:    services.Summarize(result.Detections, size),
		Metrics:    result.Metrics,
		Warnings:   validation.Messages(result.Issues),
	}

	if in.WithOverlay {
		png, err := renderOverlay(strat.RenderOptions(), result.Detections, size)
		if err != nil {
			return nil, apperrors.NewProcessingError("failed to render overlay", err)
		}
		resp.OverlayPNG = base64.StdEncoding.EncodeToString(png)
	}

	if in.Diagnose {
		diag, err := s.diagnose(ctx, img.Image, lang)
		if err != nil {
			resp.Warnings = append(resp.Warnings, apperrors.UserMessage(err, i18n.Message(i18n.MsgAnalysisFailed, lang)))
		} else {
			resp.Diagnosis = diag
		}
	}

	resp.ProcessingTimeSec = s.now().Sub(start).Seconds()
	logger.WithFields(logrus.Fields{
		"strategy":   strat.GetStrategyName(),
		"detections": len(result.Detections),
		"score":      resp.Summary.HealthScore,
		"duration":   resp.ProcessingTimeSec,
	}).Info("Static scan completed")
	return resp, nil
}

// DiagnoseImage loads the image and asks the AI model for a diagnosis
func (s *scanService) DiagnoseImage(ctx context.Context, in ScanInput) (*models.DiagnosisResult, error) {
	img, err := s.load(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.diagnose(ctx, img.Image, in.Language)
}

// ValidateImageURL validates the image URL
func (s *scanService) ValidateImageURL(imageURL string) error {
	return s.imageRepo.ValidateImageURL(imageURL)
}

func (s *scanService) diagnose(ctx context.Context, img image.Image, lang string) (*models.DiagnosisResult, error) {
	if s.diagnoser == nil {
		return nil, apperrors.NewInternalError(i18n.Message(i18n.MsgAnalysisFailed, i18n.Normalize(lang)), nil).
			WithDetails("AI diagnosis is not configured")
	}
	res, err := s.diagnoser.Diagnose(ctx, img, lang)
	if err != nil {
		s.events.NotifyObservers(ctx, observer.ScanEvent{
			EventType:    observer.DiagnosisFailed,
			Timestamp:    s.now(),
			Source:       observer.SourceStatic,
			ErrorMessage: err.Error(),
		})
		return nil, err
	}
	s.events.NotifyObservers(ctx, observer.ScanEvent{
		EventType: observer.DiagnosisCompleted,
		Timestamp: s.now(),
		Source:    observer.SourceStatic,
		Success:   true,
	})
	return res, nil
}

func (s *scanService) load(ctx context.Context, in ScanInput) (*storage.FetchedImage, error) {
	if len(in.Upload) > 0 {
		return storage.DecodeBytes(in.Upload)
	}
	if in.URL == "" {
		return nil, apperrors.NewValidationError("an image URL or upload is required", nil)
	}

	start := s.now()
	img, err := s.imageRepo.FetchImage(ctx, in.URL)
	event := observer.ScanEvent{
		EventType:      observer.ImageFetched,
		Timestamp:      s.now(),
		Source:         observer.SourceStatic,
		ImageURL:       in.URL,
		ProcessingTime: s.now().Sub(start),
		Success:        err == nil,
	}
	if err != nil {
		event.EventType = observer.ImageFetchFailed
		event.ErrorMessage = err.Error()
		s.events.NotifyObservers(ctx, event)
		if _, ok := err.(*apperrors.AppError); ok {
			return nil, err
		}
		return nil, apperrors.NewNetworkError("failed to fetch image", err)
	}
	s.events.NotifyObservers(ctx, event)
	return img, nil
}

func renderOverlay(opts overlay.Options, detections []models.Detection, size image.Point) ([]byte, error) {
	canvas := overlay.NewCanvas()
	overlay.NewRenderer(opts).Render(canvas, detections, size)
	return overlay.EncodePNG(canvas)
}


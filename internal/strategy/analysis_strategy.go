package strategy

import (
	"fmt"
	"image"
	"strings"

	"github.com/anime-shed/plant-inspector-go/internal/analyzer"
	"github.com/anime-shed/plant-inspector-go/internal/overlay"
	"github.com/anime-shed/plant-inspector-go/pkg/models"
	"github.com/anime-shed/plant-inspector-go/pkg/validation"
)

// Result is what a strategy learned about one image
type Result struct {
	Detections []models.Detection
	Metrics    models.FrameMetrics
	Issues     []validation.QualityIssue
}

// ScanStrategy bundles scan options, overlay style and the checks run
// around the colour scan
type ScanStrategy interface {
	Options() analyzer.AnalysisOptions
	RenderOptions() overlay.Options
	Scan(img image.Image, opts analyzer.AnalysisOptions) Result
	GetStrategyName() string
}

// LiveScanStrategy mirrors the camera loop: 80 px grid, fixed thresholds,
// no frame quality checks.
type LiveScanStrategy struct {
	analyzer analyzer.FrameAnalyzer
	metrics  analyzer.MetricsCalculator
}

// NewLiveScanStrategy creates the live strategy
func NewLiveScanStrategy(a analyzer.FrameAnalyzer, m analyzer.MetricsCalculator) ScanStrategy {
	return &LiveScanStrategy{analyzer: a, metrics: m}
}

func (s *LiveScanStrategy) Options() analyzer.AnalysisOptions { return analyzer.DefaultOptions() }

func (s *LiveScanStrategy) RenderOptions() overlay.Options { return overlay.DefaultOptions() }

// Scan analyzes img and reports its metrics
func (s *LiveScanStrategy) Scan(img image.Image, opts analyzer.AnalysisOptions) Result {
	return Result{
		Detections: s.analyzer.Analyze(img, opts),
		Metrics:    s.metrics.Calculate(img),
	}
}

func (s *LiveScanStrategy) GetStrategyName() string {
	return "live"
}

// PhotoScanStrategy is used for uploaded photos: dense preset with
// sensitivity-scaled thresholds, and frame quality validation.
type PhotoScanStrategy struct {
	analyzer  analyzer.FrameAnalyzer
	metrics   analyzer.MetricsCalculator
	validator *validation.FrameValidator
}

// NewPhotoScanStrategy creates the photo strategy
func NewPhotoScanStrategy(a analyzer.FrameAnalyzer, m analyzer.MetricsCalculator, v *validation.FrameValidator) ScanStrategy {
	if v == nil {
		v = validation.NewFrameValidator()
	}
	return &PhotoScanStrategy{analyzer: a, metrics: m, validator: v}
}

func (s *PhotoScanStrategy) Options() analyzer.AnalysisOptions { return analyzer.DenseOptions() }

func (s *PhotoScanStrategy) RenderOptions() overlay.Options { return overlay.DenseOptions() }

// Scan analyzes img, then checks the frame for conditions that make the
// detections unreliable
func (s *PhotoScanStrategy) Scan(img image.Image, opts analyzer.AnalysisOptions) Result {
	metrics := s.metrics.Calculate(img)
	b := img.Bounds()
	return Result{
		Detections: s.analyzer.Analyze(img, opts),
		Metrics:    metrics,
		Issues:     s.validator.ValidateFrame(metrics, b.Dx(), b.Dy()),
	}
}

func (s *PhotoScanStrategy) GetStrategyName() string {
	return "photo"
}

// Registry resolves preset names to strategies
type Registry struct {
	strategies map[string]ScanStrategy
	fallback   ScanStrategy
}

// NewRegistry registers the live and photo strategies. Photo is the default
// for requests without a preset.
func NewRegistry(a analyzer.FrameAnalyzer, m analyzer.MetricsCalculator, v *validation.FrameValidator) *Registry {
	live := NewLiveScanStrategy(a, m)
	photo := NewPhotoScanStrategy(a, m, v)
	return &Registry{
		strategies: map[string]ScanStrategy{
			"live":    live,
			"default": live,
			"photo":   photo,
			"dense":   photo,
		},
		fallback: photo,
	}
}

// ForPreset returns the strategy registered for name
func (r *Registry) ForPreset(name string) (ScanStrategy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return r.fallback, nil
	}
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown scan preset %q", name)
	}
	return s, nil
}

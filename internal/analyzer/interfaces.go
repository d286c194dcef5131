package analyzer

import (
	"image"

	"github.com/anime-shed/plant-inspector-go/pkg/models"
)

// FrameAnalyzer scans one frame and returns detections in scan order
type FrameAnalyzer interface {
	Analyze(img image.Image, options AnalysisOptions) []Detection
}

// MetricsCalculator computes frame-level colour and sharpness statistics
type MetricsCalculator interface {
	Calculate(img image.Image) models.FrameMetrics
}

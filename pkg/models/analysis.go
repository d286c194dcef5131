package models

import "time"

// Severity is the health classification of a scanned leaf region
type Severity string

const (
	SeverityHealthy  Severity = "healthy"
	SeverityModerate Severity = "moderate"
	SeverityDiseased Severity = "diseased"
)

// Rank orders severities from healthy (0) to diseased (2)
func (s Severity) Rank() int {
	switch s {
	case SeverityDiseased:
		return 2
	case SeverityModerate:
		return 1
	default:
		return 0
	}
}

// Detection is one scanned block that passed the plant gate and was classified.
// Coordinates are in source-frame pixels.
type Detection struct {
	X          int      `json:"x"`
	Y          int      `json:"y"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	Severity   Severity `json:"severity"`
	Confidence float64  `json:"confidence"`
	Label      string   `json:"label"`
}

// FrameMetrics summarises a frame's colour statistics.
// Used to warn about frames that are unlikely to give useful detections.
type FrameMetrics struct {
	AvgLuminance   float64    `json:"average_luminance"`
	AvgSaturation  float64    `json:"average_saturation"`
	ChannelBalance [3]float64 `json:"channel_balance"`
	GreenCoverage  float64    `json:"green_coverage"`
	Sharpness      float64    `json:"laplacian_variance"`
	Resolution     string     `json:"resolution,omitempty"`
}

// ScanSummary aggregates a detection list
type ScanSummary struct {
	Total            int      `json:"total"`
	Healthy          int      `json:"healthy"`
	Moderate         int      `json:"moderate"`
	Diseased         int      `json:"diseased"`
	DominantSeverity Severity `json:"dominant_severity,omitempty"`
	HealthScore      float64  `json:"health_score"`
	Grade            string   `json:"grade"`
}

// DiagnosisResult is the AI diagnosis split into display sections
type DiagnosisResult struct {
	Diagnosis  string    `json:"diagnosis"`
	Treatment  string    `json:"treatment"`
	Raw        string    `json:"raw"`
	Language   string    `json:"language"`
	Generation uint64    `json:"generation,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ImageMetadata contains metadata about a fetched image
type ImageMetadata struct {
	ContentType   string `json:"content_type"`
	ContentLength int64  `json:"content_length"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Format        string `json:"format"`
}

// ValidationError represents a structured validation error
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

package validation

import (
	"math"

	"github.com/anime-shed/plant-inspector-go/pkg/models"
)

// Issue severities
const (
	IssueError   = "error"
	IssueWarning = "warning"
)

// FrameThresholds defines the limits a leaf photo is checked against
type FrameThresholds struct {
	// Laplacian variance of the grayscale frame
	MinSharpness float64

	// HSV value averaged over the frame, 0..1
	MinLuminance float64
	MaxLuminance float64

	MinSaturation float64

	// Share of green-dominant pixels below which no leaf is assumed in view
	MinGreenCoverage float64

	// Blue or red mean exceeding green by more than this suggests coloured light
	MaxColorCast float64

	MinWidth  int
	MinHeight int
}

// DefaultFrameThresholds returns thresholds tuned for close-up leaf photos
func DefaultFrameThresholds() FrameThresholds {
	return FrameThresholds{
		MinSharpness:     30.0,
		MinLuminance:     0.15,
		MaxLuminance:     0.95,
		MinSaturation:    0.08,
		MinGreenCoverage: 0.05,
		MaxColorCast:     0.12,
		MinWidth:         240,
		MinHeight:        240,
	}
}

// FrameValidator reports conditions that make the colour scan unreliable
type FrameValidator struct {
	thresholds FrameThresholds
}

// NewFrameValidator creates a validator with default thresholds
func NewFrameValidator() *FrameValidator {
	return &FrameValidator{thresholds: DefaultFrameThresholds()}
}

// NewFrameValidatorWithThresholds creates a validator with custom thresholds
func NewFrameValidatorWithThresholds(thresholds FrameThresholds) *FrameValidator {
	return &FrameValidator{thresholds: thresholds}
}

// QualityIssue represents a frame quality problem
type QualityIssue struct {
	Type        string  `json:"type"`
	Message     string  `json:"message"`
	Severity    string  `json:"severity"`
	ActualValue float64 `json:"actual_value,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// isBlurry treats a low Laplacian variance as blur unless the frame is well
// lit and mostly leaf, where smooth uniform tissue also scores low.
func (fv *FrameValidator) isBlurry(m models.FrameMetrics) bool {
	if m.Sharpness >= fv.thresholds.MinSharpness {
		return false
	}
	if m.Sharpness < 1.0 {
		return true
	}
	luminanceOK := m.AvgLuminance >= 0.3 && m.AvgLuminance <= 0.85
	return !(luminanceOK && m.GreenCoverage >= 0.6)
}

// ValidateFrame checks a frame of width x height with the given metrics
func (fv *FrameValidator) ValidateFrame(m models.FrameMetrics, width, height int) []QualityIssue {
	var issues []QualityIssue
	t := fv.thresholds

	if width < t.MinWidth || height < t.MinHeight {
		issues = append(issues, QualityIssue{
			Type:        "low_resolution",
			Message:     "Photo is too small. Move closer to the leaf or use a higher camera resolution.",
			Severity:    IssueError,
			ActualValue: float64(width * height),
			Threshold:   float64(t.MinWidth * t.MinHeight),
		})
	}

	if fv.isBlurry(m) {
		issues = append(issues, QualityIssue{
			Type:        "blurriness",
			Message:     "Photo is blurry. Hold the camera steady and tap to focus on the leaf.",
			Severity:    IssueError,
			ActualValue: m.Sharpness,
			Threshold:   t.MinSharpness,
		})
	}

	if m.AvgLuminance <= t.MinLuminance {
		issues = append(issues, QualityIssue{
			Type:        "low_luminance",
			Message:     "Photo is too dark. Scan in daylight.",
			Severity:    IssueError,
			ActualValue: m.AvgLuminance,
			Threshold:   t.MinLuminance,
		})
	} else if m.AvgLuminance >= t.MaxLuminance {
		issues = append(issues, QualityIssue{
			Type:        "high_luminance",
			Message:     "Photo is too bright. Avoid direct sunlight on the leaf.",
			Severity:    IssueError,
			ActualValue: m.AvgLuminance,
			Threshold:   t.MaxLuminance,
		})
	}

	if m.AvgSaturation <= t.MinSaturation {
		issues = append(issues, QualityIssue{
			Type:        "low_saturation",
			Message:     "Colours look faded. Yellow and brown patches may be missed.",
			Severity:    IssueWarning,
			ActualValue: m.AvgSaturation,
			Threshold:   t.MinSaturation,
		})
	}

	if m.GreenCoverage < t.MinGreenCoverage {
		issues = append(issues, QualityIssue{
			Type:        "no_leaf",
			Message:     "No green leaf found. Point the camera at the plant.",
			Severity:    IssueWarning,
			ActualValue: m.GreenCoverage,
			Threshold:   t.MinGreenCoverage,
		})
	}

	r, g, b := m.ChannelBalance[0], m.ChannelBalance[1], m.ChannelBalance[2]
	if cast := math.Max(r, b) - g; cast > t.MaxColorCast {
		issues = append(issues, QualityIssue{
			Type:        "color_cast",
			Message:     "Colours look odd. Don't use filters or coloured lights.",
			Severity:    IssueWarning,
			ActualValue: cast,
			Threshold:   t.MaxColorCast,
		})
	}

	return issues
}

// Messages flattens issues to their user-facing messages
func Messages(issues []QualityIssue) []string {
	var messages []string
	for _, issue := range issues {
		messages = append(messages, issue.Message)
	}
	return messages
}

// HasCriticalIssues checks if any issue has error severity
func HasCriticalIssues(issues []QualityIssue) bool {
	for _, issue := range issues {
		if issue.Severity == IssueError {
			return true
		}
	}
	return false
}

package validation

import (
	"testing"

	"github.com/anime-shed/plant-inspector-go/pkg/models"
)

func goodLeaf() models.FrameMetrics {
	return models.FrameMetrics{
		AvgLuminance:   0.55,
		AvgSaturation:  0.45,
		ChannelBalance: [3]float64{0.30, 0.55, 0.25},
		GreenCoverage:  0.7,
		Sharpness:      250,
	}
}

func issueTypes(issues []QualityIssue) map[string]QualityIssue {
	out := make(map[string]QualityIssue, len(issues))
	for _, i := range issues {
		out[i.Type] = i
	}
	return out
}

func TestValidateFrame_GoodLeaf(t *testing.T) {
	issues := NewFrameValidator().ValidateFrame(goodLeaf(), 1280, 720)
	if len(issues) != 0 {
		t.Errorf("Expected no issues for a well-lit leaf, got: %v", issues)
	}
	if HasCriticalIssues(issues) {
		t.Error("Expected no critical issues")
	}
}

func TestValidateFrame_Issues(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*models.FrameMetrics)
		width    int
		wantType string
		severity string
	}{
		{"dark", func(m *models.FrameMetrics) { m.AvgLuminance = 0.1 }, 1280, "low_luminance", IssueError},
		{"bright", func(m *models.FrameMetrics) { m.AvgLuminance = 0.97 }, 1280, "high_luminance", IssueError},
		{"faded", func(m *models.FrameMetrics) { m.AvgSaturation = 0.05 }, 1280, "low_saturation", IssueWarning},
		{"no leaf", func(m *models.FrameMetrics) { m.GreenCoverage = 0.01 }, 1280, "no_leaf", IssueWarning},
		{"blue light", func(m *models.FrameMetrics) { m.ChannelBalance = [3]float64{0.3, 0.4, 0.6} }, 1280, "color_cast", IssueWarning},
		{"small", func(m *models.FrameMetrics) {}, 200, "low_resolution", IssueError},
		{"blurry", func(m *models.FrameMetrics) { m.Sharpness = 0.5 }, 1280, "blurriness", IssueError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := goodLeaf()
			tt.mutate(&m)
			issues := issueTypes(NewFrameValidator().ValidateFrame(m, tt.width, 720))
			issue, ok := issues[tt.wantType]
			if !ok {
				t.Fatalf("Expected %s issue, got: %v", tt.wantType, issues)
			}
			if issue.Severity != tt.severity {
				t.Errorf("Expected %s severity, got %s", tt.severity, issue.Severity)
			}
		})
	}
}

func TestValidateFrame_SmoothLeafIsNotBlurry(t *testing.T) {
	m := goodLeaf()
	m.Sharpness = 12
	issues := issueTypes(NewFrameValidator().ValidateFrame(m, 1280, 720))
	if _, ok := issues["blurriness"]; ok {
		t.Error("A well-lit frame filled with leaf should not be flagged as blurry")
	}

	m.GreenCoverage = 0.2
	issues = issueTypes(NewFrameValidator().ValidateFrame(m, 1280, 720))
	if _, ok := issues["blurriness"]; !ok {
		t.Error("Low variance with little leaf in view should be flagged as blurry")
	}
}

func TestCustomThresholds(t *testing.T) {
	v := NewFrameValidatorWithThresholds(FrameThresholds{MinWidth: 2000, MinHeight: 10})
	issues := issueTypes(v.ValidateFrame(goodLeaf(), 1280, 720))
	if _, ok := issues["low_resolution"]; !ok {
		t.Error("Expected custom resolution threshold to apply")
	}
}

func TestMessages(t *testing.T) {
	issues := []QualityIssue{
		{Type: "a", Message: "first", Severity: IssueWarning},
		{Type: "b", Message: "second", Severity: IssueError},
	}
	msgs := Messages(issues)
	if len(msgs) != 2 || msgs[0] != "first" || msgs[1] != "second" {
		t.Errorf("Unexpected messages: %v", msgs)
	}
	if !HasCriticalIssues(issues) {
		t.Error("Expected critical issue to be detected")
	}
	if Messages(nil) != nil {
		t.Error("Expected nil for no issues")
	}
}

package services

import (
	"image"
	"testing"

	"github.com/anime-shed/plant-inspector-go/pkg/models"
)

func det(sev models.Severity, w, h int) models.Detection {
	return models.Detection{Width: w, Height: h, Severity: sev}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, image.Pt(640, 480))
	if s.Total != 0 || s.DominantSeverity != "" {
		t.Errorf("unexpected summary for no detections: %+v", s)
	}
	if s.HealthScore != 100 || s.Grade != "A" {
		t.Errorf("expected 100/A, got %.1f/%s", s.HealthScore, s.Grade)
	}
}

func TestSummarize_AreaWeighted(t *testing.T) {
	dets := []models.Detection{
		det(models.SeverityDiseased, 80, 80),
		det(models.SeverityModerate, 80, 80),
		det(models.SeverityModerate, 80, 80),
	}
	// 160x160 frame: diseased covers 0.25, two moderates 0.5 at half weight
	s := Summarize(dets, image.Pt(160, 160))

	if s.Total != 3 || s.Diseased != 1 || s.Moderate != 2 || s.Healthy != 0 {
		t.Errorf("wrong counts: %+v", s)
	}
	if s.DominantSeverity != models.SeverityModerate {
		t.Errorf("expected moderate dominant, got %s", s.DominantSeverity)
	}
	if s.HealthScore != 50 {
		t.Errorf("expected score 50, got %.1f", s.HealthScore)
	}
	if s.Grade != "D" {
		t.Errorf("expected grade D, got %s", s.Grade)
	}
}

func TestSummarize_TieGoesToWorse(t *testing.T) {
	dets := []models.Detection{
		det(models.SeverityHealthy, 10, 10),
		det(models.SeverityDiseased, 10, 10),
	}
	s := Summarize(dets, image.Point{})
	if s.DominantSeverity != models.SeverityDiseased {
		t.Errorf("expected diseased on tie, got %s", s.DominantSeverity)
	}
	// Count fallback: 1.0 damage over 2 detections
	if s.HealthScore != 50 {
		t.Errorf("expected 50, got %.1f", s.HealthScore)
	}
}

func TestSummarize_ClampsDamage(t *testing.T) {
	dets := []models.Detection{det(models.SeverityDiseased, 200, 200)}
	s := Summarize(dets, image.Pt(100, 100))
	if s.HealthScore != 0 || s.Grade != "F" {
		t.Errorf("expected 0/F, got %.1f/%s", s.HealthScore, s.Grade)
	}
}

func TestGrade(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{100, "A"}, {85, "A"}, {84.9, "B"}, {70, "B"}, {69, "C"}, {55, "C"}, {54, "D"}, {40, "D"}, {39.9, "F"}, {0, "F"},
	}
	for _, tt := range tests {
		if got := Grade(tt.score); got != tt.want {
			t.Errorf("Grade(%.1f) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

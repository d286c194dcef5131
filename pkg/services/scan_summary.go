// Package services holds pure aggregations over scan results.
package services

import (
	"image"
	"math"

	"github.com/anime-shed/plant-inspector-go/pkg/models"
)

// Weights applied to the area of each detection when scoring a frame
const (
	diseasedWeight = 1.0
	moderateWeight = 0.5
)

// Summarize counts detections per severity and scores the frame.
//
// With a known frame size the health score is 100 minus the weighted share
// of the frame covered by detections. Without one it falls back to the
// weighted share of detections.
func Summarize(detections []models.Detection, frame image.Point) models.ScanSummary {
	summary := models.ScanSummary{Total: len(detections)}

	var weightedArea, weightedCount float64
	for _, d := range detections {
		area := float64(d.Width * d.Height)
		switch d.Severity {
		case models.SeverityDiseased:
			summary.Diseased++
			weightedArea += area * diseasedWeight
			weightedCount += diseasedWeight
		case models.SeverityModerate:
			summary.Moderate++
			weightedArea += area * moderateWeight
			weightedCount += moderateWeight
		default:
			summary.Healthy++
		}
	}

	summary.DominantSeverity = dominant(summary)

	damage := 0.0
	switch {
	case frame.X > 0 && frame.Y > 0:
		damage = weightedArea / float64(frame.X*frame.Y)
	case summary.Total > 0:
		damage = weightedCount / float64(summary.Total)
	}
	summary.HealthScore = math.Round(100*(1-math.Min(1, damage))*10) / 10
	summary.Grade = Grade(summary.HealthScore)
	return summary
}

// Grade maps a 0-100 health score to A-F
func Grade(score float64) string {
	switch {
	case score >= 85:
		return "A"
	case score >= 70:
		return "B"
	case score >= 55:
		return "C"
	case score >= 40:
		return "D"
	default:
		return "F"
	}
}

// dominant is the most frequent severity; ties go to the more severe one
func dominant(s models.ScanSummary) models.Severity {
	if s.Total == 0 {
		return ""
	}
	best, bestCount := models.SeverityHealthy, s.Healthy
	if s.Moderate >= bestCount {
		best, bestCount = models.SeverityModerate, s.Moderate
	}
	if s.Diseased >= bestCount {
		best = models.SeverityDiseased
	}
	return best
}

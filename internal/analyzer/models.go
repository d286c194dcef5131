package analyzer

import (
	"github.com/anime-shed/plant-inspector-go/pkg/models"
)

// Detection and Severity are aliases to the shared models so callers outside
// the analyzer do not need to import it for the types alone.
type (
	Detection = models.Detection
	Severity  = models.Severity
)

const (
	SeverityHealthy  = models.SeverityHealthy
	SeverityModerate = models.SeverityModerate
	SeverityDiseased = models.SeverityDiseased
)

// blockStats accumulates the sampled pixels of one grid block
type blockStats struct {
	sumR, sumG, sumB    float64
	count               int
	yellow, brown, dark int
}

func (s blockStats) averages() (r, g, b float64) {
	n := float64(s.count)
	return s.sumR / n, s.sumG / n, s.sumB / n
}

func (s blockStats) diseaseRatio() float64 {
	return float64(s.yellow+s.brown+s.dark) / float64(s.count)
}

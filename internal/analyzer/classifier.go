package analyzer

import (
	"math"
	"math/rand"
)

const (
	fixedDiseasedRatio = 0.15
	fixedModerateRatio = 0.05
	healthyConfidence  = 0.9
	jitterProbability  = 0.3
)

// Classifier maps a block's disease ratio to a severity and confidence.
// A Classifier in HealthyJitter mode owns a random source and is not safe for
// concurrent use; the other modes are pure.
type Classifier struct {
	Profile        Profile
	Sensitivity    int
	HealthyRegions HealthyMode
	rand           *rand.Rand
}

// NewClassifier builds the classifier described by opts
func NewClassifier(opts AnalysisOptions) *Classifier {
	c := &Classifier{
		Profile:        opts.Profile,
		Sensitivity:    opts.Sensitivity,
		HealthyRegions: opts.HealthyRegions,
	}
	if c.HealthyRegions == HealthyJitter {
		c.rand = rand.New(rand.NewSource(opts.JitterSeed))
	}
	return c
}

// Classify returns the severity and confidence for ratio, or ok=false when the
// block should not produce a detection. Bands are checked most severe first.
func (c *Classifier) Classify(ratio float64) (Severity, float64, bool) {
	if math.IsNaN(ratio) || ratio < 0 {
		ratio = 0
	}
	if c.Profile == ProfileScaled {
		return c.classifyScaled(ratio)
	}
	return c.classifyFixed(ratio)
}

func (c *Classifier) classifyFixed(ratio float64) (Severity, float64, bool) {
	switch {
	case ratio > fixedDiseasedRatio:
		return SeverityDiseased, clamp01(math.Min(ratio*5, 0.95)), true
	case ratio > fixedModerateRatio:
		return SeverityModerate, clamp01(ratio * 3), true
	}

	switch c.HealthyRegions {
	case HealthyAlways:
		return SeverityHealthy, healthyConfidence, true
	case HealthyJitter:
		if c.rand != nil && c.rand.Float64() < jitterProbability {
			return SeverityHealthy, healthyConfidence, true
		}
	}
	return "", 0, false
}

// classifyScaled applies thresholds proportional to t = sensitivity/100.
// Ratios at or below the 0.2t noise floor produce nothing, so anything that
// passes is at least moderate and the healthy branch is kept only as the
// terminal case of the band order.
func (c *Classifier) classifyScaled(ratio float64) (Severity, float64, bool) {
	t := float64(c.Sensitivity) / 100
	if ratio <= 0.2*t {
		return "", 0, false
	}
	switch {
	case ratio > 0.4*t:
		return SeverityDiseased, clamp01(math.Min(ratio*2.5, 0.98)), true
	case ratio > 0.1*t:
		return SeverityModerate, clamp01(ratio * 3), true
	default:
		return SeverityHealthy, clamp01(math.Max(0.9-ratio*2, 0)), true
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

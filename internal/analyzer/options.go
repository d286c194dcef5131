package analyzer

import (
	"fmt"
	"strings"

	"github.com/anime-shed/plant-inspector-go/internal/i18n"
)

// Profile selects the severity thresholds used by the classifier
type Profile string

const (
	// ProfileFixed uses constant ratio thresholds (0.15 / 0.05)
	ProfileFixed Profile = "fixed"
	// ProfileScaled scales thresholds with Sensitivity and drops a noise floor
	ProfileScaled Profile = "scaled"
)

// HealthyMode controls what a fixed-profile block below the moderate threshold reports
type HealthyMode string

const (
	HealthyNone   HealthyMode = "none"
	HealthyAlways HealthyMode = "always"
	HealthyJitter HealthyMode = "jitter"
)

// Bounds is an exclusive channel range: Above < v < Below
type Bounds struct {
	Above int
	Below int
}

func (b Bounds) contains(v int) bool {
	return v > b.Above && v < b.Below
}

// ColorBand matches a pixel when all three channels fall in their bounds
type ColorBand struct {
	R, G, B Bounds
}

// Match reports whether the 8-bit pixel (r, g, b) lies in the band
func (c ColorBand) Match(r, g, b int) bool {
	return c.R.contains(r) && c.G.contains(g) && c.B.contains(b)
}

var (
	// YellowBand matches chlorotic (yellowing) leaf tissue
	YellowBand = ColorBand{R: Bounds{150, 256}, G: Bounds{120, 256}, B: Bounds{-1, 100}}
	// BrownBand matches necrotic (brown) tissue
	BrownBand = ColorBand{R: Bounds{100, 150}, G: Bounds{80, 130}, B: Bounds{-1, 80}}
	// DenseBrownBand is the wider brown band of the dense preset
	DenseBrownBand = ColorBand{R: Bounds{80, 140}, G: Bounds{60, 120}, B: Bounds{-1, 80}}
	// DarkBand matches dark lesions
	DarkBand = ColorBand{R: Bounds{-1, 60}, G: Bounds{-1, 60}, B: Bounds{-1, 60}}
)

const (
	DefaultGridSize    = 80
	DenseGridSize      = 100
	DefaultSensitivity = 70
)

// AnalysisOptions provides flexible configuration for the colour scan
type AnalysisOptions struct {
	// Grid
	GridSize       int
	SamplingStride int

	// Plant gate: avgG > avgR*GreenMargin && avgG > avgB && avgG > MinGreen
	GreenMargin float64
	MinGreen    float64

	// Discoloration bands
	Yellow         ColorBand
	Brown          ColorBand
	Dark           ColorBand
	CountDarkSpots bool

	// Classification
	Profile        Profile
	Sensitivity    int
	HealthyRegions HealthyMode
	JitterSeed     int64

	// Label language (en, kn, hi)
	Language string

	// Performance options
	UseWorkerPool bool
	MaxWorkers    int
}

// DefaultOptions returns the live-scan preset: 80 px grid, every pixel sampled,
// fixed thresholds.
func DefaultOptions() AnalysisOptions {
	return AnalysisOptions{
		GridSize:       DefaultGridSize,
		SamplingStride: 1,
		GreenMargin:    1.0,
		MinGreen:       50,
		Yellow:         YellowBand,
		Brown:          BrownBand,
		Dark:           DarkBand,
		CountDarkSpots: false,
		Profile:        ProfileFixed,
		Sensitivity:    DefaultSensitivity,
		HealthyRegions: HealthyNone,
		Language:       i18n.English,
		UseWorkerPool:  true,
		MaxWorkers:     0, // Use default CPU count
	}
}

// DenseOptions returns the photo-scan preset: 100 px grid sampled every second
// pixel, wider brown band, dark spots counted, sensitivity-scaled thresholds.
func DenseOptions() AnalysisOptions {
	opts := DefaultOptions()
	opts.GridSize = DenseGridSize
	opts.SamplingStride = 2
	opts.GreenMargin = 1.1
	opts.MinGreen = 40
	opts.Brown = DenseBrownBand
	opts.CountDarkSpots = true
	opts.Profile = ProfileScaled
	return opts
}

// PresetOptions resolves a preset name; empty means default
func PresetOptions(name string) (AnalysisOptions, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default", "live":
		return DefaultOptions(), nil
	case "dense", "photo":
		return DenseOptions(), nil
	default:
		return AnalysisOptions{}, fmt.Errorf("unknown scan preset %q", name)
	}
}

// WithSensitivity sets the sensitivity used by the scaled profile, clamped to 0..100
func (opts AnalysisOptions) WithSensitivity(sensitivity int) AnalysisOptions {
	if sensitivity < 0 {
		sensitivity = 0
	}
	if sensitivity > 100 {
		sensitivity = 100
	}
	opts.Sensitivity = sensitivity
	return opts
}

// Tune applies a user sensitivity. The fixed profile ignores sensitivity, so
// tuning switches to the scaled profile.
func (opts AnalysisOptions) Tune(sensitivity int) AnalysisOptions {
	return opts.WithProfile(ProfileScaled).WithSensitivity(sensitivity)
}

// WithProfile switches the classification profile
func (opts AnalysisOptions) WithProfile(p Profile) AnalysisOptions {
	opts.Profile = p
	return opts
}

// WithLanguage sets the label language
func (opts AnalysisOptions) WithLanguage(lang string) AnalysisOptions {
	opts.Language = i18n.Normalize(lang)
	return opts
}

// WithHealthyRegions sets how low-ratio plant blocks are reported.
// The seed is only used by HealthyJitter.
func (opts AnalysisOptions) WithHealthyRegions(mode HealthyMode, seed int64) AnalysisOptions {
	opts.HealthyRegions = mode
	opts.JitterSeed = seed
	return opts
}

// ForFrame derives the options for one frame. In HealthyJitter mode the frame
// sequence is mixed into the seed so consecutive ticks draw different jitter
// while a replayed frame draws the same.
func (opts AnalysisOptions) ForFrame(seq uint64) AnalysisOptions {
	if opts.HealthyRegions == HealthyJitter {
		opts.JitterSeed ^= int64(seq * 0x9E3779B97F4A7C15)
	}
	return opts
}

// WithGrid overrides grid size and sampling stride
func (opts AnalysisOptions) WithGrid(gridSize, stride int) AnalysisOptions {
	opts.GridSize = gridSize
	opts.SamplingStride = stride
	return opts
}

// WithoutWorkerPool forces a sequential scan
func (opts AnalysisOptions) WithoutWorkerPool() AnalysisOptions {
	opts.UseWorkerPool = false
	return opts
}

// Validate checks that the options describe a scannable grid
func (opts AnalysisOptions) Validate() error {
	if opts.GridSize <= 0 {
		return fmt.Errorf("grid size must be positive, got %d", opts.GridSize)
	}
	if opts.SamplingStride <= 0 {
		return fmt.Errorf("sampling stride must be positive, got %d", opts.SamplingStride)
	}
	if opts.SamplingStride > opts.GridSize {
		return fmt.Errorf("sampling stride %d exceeds grid size %d", opts.SamplingStride, opts.GridSize)
	}
	if opts.Sensitivity < 0 || opts.Sensitivity > 100 {
		return fmt.Errorf("sensitivity must be within 0..100, got %d", opts.Sensitivity)
	}
	switch opts.Profile {
	case ProfileFixed, ProfileScaled:
	default:
		return fmt.Errorf("unknown profile %q", opts.Profile)
	}
	switch opts.HealthyRegions {
	case HealthyNone, HealthyAlways, HealthyJitter, "":
	default:
		return fmt.Errorf("unknown healthy-region mode %q", opts.HealthyRegions)
	}
	return nil
}

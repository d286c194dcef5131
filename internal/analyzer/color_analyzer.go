package analyzer

import (
	"image"
	"image/draw"

	"github.com/anime-shed/plant-inspector-go/internal/i18n"
)

// ColorAnalyzer scans a frame on a square grid and reports blocks whose
// colour statistics look like leaf tissue with yellow, brown or dark patches.
type ColorAnalyzer struct {
	pool *WorkerPool
}

// NewColorAnalyzer creates an analyzer. A nil pool scans sequentially.
func NewColorAnalyzer(pool *WorkerPool) *ColorAnalyzer {
	return &ColorAnalyzer{pool: pool}
}

// Analyze runs a sequential scan with no worker pool
func Analyze(img image.Image, opts AnalysisOptions) []Detection {
	return (&ColorAnalyzer{}).Analyze(img, opts)
}

// Analyze scans every block that fits fully inside the frame, left to right
// and top to bottom, and returns the classified blocks in that order.
// Large frames are split by block row across the worker pool; the merged
// result is identical to a sequential scan.
func (a *ColorAnalyzer) Analyze(img image.Image, opts AnalysisOptions) []Detection {
	if img == nil || opts.GridSize <= 0 {
		return []Detection{}
	}
	if opts.SamplingStride <= 0 {
		opts.SamplingStride = 1
	}

	frame := ToRGBA(img)
	if frame == nil {
		return []Detection{}
	}

	grid := opts.GridSize
	rows := frame.Rect.Dy() / grid
	cols := frame.Rect.Dx() / grid
	if rows == 0 || cols == 0 {
		return []Detection{}
	}

	classifier := NewClassifier(opts)
	labels := map[Severity]string{
		SeverityDiseased: i18n.SeverityLabel(SeverityDiseased, opts.Language),
		SeverityModerate: i18n.SeverityLabel(SeverityModerate, opts.Language),
		SeverityHealthy:  i18n.SeverityLabel(SeverityHealthy, opts.Language),
	}

	perRow := make([][]Detection, rows)
	scan := func(row int) {
		perRow[row] = scanRow(frame, row*grid, cols, opts, classifier, labels)
	}

	if a.parallel(opts, rows) {
		jobs := make([]func(), rows)
		for i := range jobs {
			row := i
			jobs[i] = func() { scan(row) }
		}
		a.pool.RunAll(jobs)
	} else {
		for row := 0; row < rows; row++ {
			scan(row)
		}
	}

	total := 0
	for _, dets := range perRow {
		total += len(dets)
	}
	out := make([]Detection, 0, total)
	for _, dets := range perRow {
		out = append(out, dets...)
	}
	return out
}

// parallel reports whether the scan may be split across the pool. Jitter mode
// draws from one random source in scan order and always runs sequentially.
func (a *ColorAnalyzer) parallel(opts AnalysisOptions, rows int) bool {
	return a != nil && a.pool != nil && opts.UseWorkerPool &&
		opts.HealthyRegions != HealthyJitter && rows > 1
}

func scanRow(frame *image.RGBA, y0, cols int, opts AnalysisOptions, c *Classifier, labels map[Severity]string) []Detection {
	grid := opts.GridSize
	var dets []Detection
	for col := 0; col < cols; col++ {
		x0 := col * grid
		stats := sampleBlock(frame, x0, y0, opts)
		if stats.count == 0 {
			continue
		}

		avgR, avgG, avgB := stats.averages()
		if !(avgG > avgR*opts.GreenMargin && avgG > avgB && avgG > opts.MinGreen) {
			continue
		}

		severity, confidence, ok := c.Classify(stats.diseaseRatio())
		if !ok {
			continue
		}
		dets = append(dets, Detection{
			X:          x0,
			Y:          y0,
			Width:      grid,
			Height:     grid,
			Severity:   severity,
			Confidence: confidence,
			Label:      labels[severity],
		})
	}
	return dets
}

func sampleBlock(frame *image.RGBA, x0, y0 int, opts AnalysisOptions) blockStats {
	var s blockStats
	grid, stride := opts.GridSize, opts.SamplingStride
	for dy := 0; dy < grid; dy += stride {
		rowOff := (y0+dy)*frame.Stride + x0*4
		for dx := 0; dx < grid; dx += stride {
			i := rowOff + dx*4
			r := int(frame.Pix[i])
			g := int(frame.Pix[i+1])
			b := int(frame.Pix[i+2])

			s.sumR += float64(r)
			s.sumG += float64(g)
			s.sumB += float64(b)
			s.count++

			if opts.Yellow.Match(r, g, b) {
				s.yellow++
			}
			if opts.Brown.Match(r, g, b) {
				s.brown++
			}
			if opts.CountDarkSpots && opts.Dark.Match(r, g, b) {
				s.dark++
			}
		}
	}
	return s
}

// ToRGBA returns img as an *image.RGBA whose bounds start at the origin,
// copying only when needed. Empty images yield nil.
func ToRGBA(img image.Image) *image.RGBA {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	if b.Empty() {
		return nil
	}
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

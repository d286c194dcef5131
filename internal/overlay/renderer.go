// Package overlay draws detection boxes and confidence chips onto a
// transparent canvas laid over the camera frame.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/anime-shed/plant-inspector-go/internal/i18n"
	"github.com/anime-shed/plant-inspector-go/pkg/models"
)

var (
	ColorDiseased = color.RGBA{0xEF, 0x44, 0x44, 0xFF}
	ColorModerate = color.RGBA{0xF5, 0x9E, 0x0B, 0xFF}
	ColorHealthy  = color.RGBA{0x10, 0xB9, 0x81, 0xFF}
	ColorNeutral  = color.RGBA{0x3B, 0x82, 0xF6, 0xFF}
	colorText     = color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
)

// Options controls what Render draws
type Options struct {
	ShowBoundingBoxes bool
	ShowConfidence    bool
	ColorCoding       bool
	FillAlpha         float64
	LineWidth         int
	ChipHeight        int
	ChipPadding       int
}

// DefaultOptions matches the live camera overlay
func DefaultOptions() Options {
	return Options{
		ShowBoundingBoxes: true,
		ShowConfidence:    true,
		ColorCoding:       true,
		FillAlpha:         0.20,
		LineWidth:         3,
		ChipHeight:        25,
		ChipPadding:       5,
	}
}

// DenseOptions matches the photo-scan overlay: heavier fill and border
func DenseOptions() Options {
	return Options{
		ShowBoundingBoxes: true,
		ShowConfidence:    true,
		ColorCoding:       true,
		FillAlpha:         0.25,
		LineWidth:         4,
		ChipHeight:        30,
		ChipPadding:       6,
	}
}

// SeverityColor returns the box colour for sev
func SeverityColor(sev models.Severity, colorCoding bool) color.RGBA {
	if !colorCoding {
		return ColorNeutral
	}
	switch sev {
	case models.SeverityDiseased:
		return ColorDiseased
	case models.SeverityModerate:
		return ColorModerate
	default:
		return ColorHealthy
	}
}

// Renderer draws detections onto a Canvas
type Renderer struct {
	mu   sync.RWMutex
	opts Options
	face font.Face
}

// NewRenderer creates a renderer with the bitmap label font
func NewRenderer(opts Options) *Renderer {
	return &Renderer{opts: opts, face: basicfont.Face7x13}
}

// Options returns the current render options
func (r *Renderer) Options() Options {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.opts
}

// SetOptions replaces the render options used by subsequent calls
func (r *Renderer) SetOptions(opts Options) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts = opts
}

// Render resizes canvas to size, clears it, and draws every detection in
// slice order. A nil canvas is a no-op. With bounding boxes disabled the
// canvas is left cleared.
func (r *Renderer) Render(canvas *Canvas, detections []models.Detection, size image.Point) {
	if canvas == nil {
		return
	}
	opts := r.Options()

	canvas.mu.Lock()
	defer canvas.mu.Unlock()

	canvas.resize(size)
	clear(canvas.img.Pix)

	if !opts.ShowBoundingBoxes {
		return
	}
	for _, det := range detections {
		r.drawDetection(canvas.img, det, opts)
	}
}

func (r *Renderer) drawDetection(dst *image.RGBA, det models.Detection, opts Options) {
	col := SeverityColor(det.Severity, opts.ColorCoding)
	box := image.Rect(det.X, det.Y, det.X+det.Width, det.Y+det.Height)

	fill := color.NRGBA{R: col.R, G: col.G, B: col.B, A: alpha8(opts.FillAlpha)}
	draw.Draw(dst, box.Intersect(dst.Rect), image.NewUniform(fill), image.Point{}, draw.Over)

	strokeRect(dst, box, opts.LineWidth, col)

	if !opts.ShowConfidence {
		return
	}
	text := fmt.Sprintf("%s %d%%", r.chipLabel(det), int(math.Round(det.Confidence*100)))
	textWidth := font.MeasureString(r.face, text).Ceil()

	chip := image.Rect(det.X, det.Y-opts.ChipHeight, det.X+textWidth+2*opts.ChipPadding, det.Y)
	draw.Draw(dst, chip.Intersect(dst.Rect), image.NewUniform(col), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(colorText),
		Face: r.face,
		Dot:  fixed.P(det.X+opts.ChipPadding, det.Y-(opts.ChipHeight-r.face.Metrics().Ascent.Ceil())/2),
	}
	d.DrawString(text)
}

// chipLabel returns det.Label when the font has a glyph for every rune and
// the English severity label otherwise. The bitmap face only covers Latin.
func (r *Renderer) chipLabel(det models.Detection) string {
	for _, ch := range det.Label {
		if _, ok := r.face.GlyphAdvance(ch); !ok {
			return i18n.SeverityLabel(det.Severity, i18n.English)
		}
	}
	if det.Label == "" {
		return i18n.SeverityLabel(det.Severity, i18n.English)
	}
	return det.Label
}

// strokeRect draws a border of width w inside box
func strokeRect(dst *image.RGBA, box image.Rectangle, w int, col color.RGBA) {
	if w <= 0 {
		return
	}
	src := image.NewUniform(col)
	edges := []image.Rectangle{
		image.Rect(box.Min.X, box.Min.Y, box.Max.X, box.Min.Y+w),
		image.Rect(box.Min.X, box.Max.Y-w, box.Max.X, box.Max.Y),
		image.Rect(box.Min.X, box.Min.Y, box.Min.X+w, box.Max.Y),
		image.Rect(box.Max.X-w, box.Min.Y, box.Max.X, box.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Rect), src, image.Point{}, draw.Src)
	}
}

func alpha8(a float64) uint8 {
	if a <= 0 {
		return 0
	}
	if a >= 1 {
		return 0xFF
	}
	return uint8(math.Round(a * 255))
}

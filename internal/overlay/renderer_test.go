package overlay

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anime-shed/plant-inspector-go/pkg/models"
)

func sampleDetections() []models.Detection {
	return []models.Detection{
		{X: 80, Y: 80, Width: 80, Height: 80, Severity: models.SeverityDiseased, Confidence: 0.95, Label: "Diseased"},
		{X: 160, Y: 160, Width: 80, Height: 80, Severity: models.SeverityModerate, Confidence: 0.3, Label: "Moderate"},
	}
}

func TestRender_DrawsFillAndBorder(t *testing.T) {
	canvas := NewCanvas()
	r := NewRenderer(DefaultOptions())

	r.Render(canvas, sampleDetections(), image.Pt(320, 240))

	img := canvas.Snapshot()
	assert.Equal(t, image.Pt(320, 240), canvas.Size())

	// Border pixel carries the opaque severity colour
	assert.Equal(t, ColorDiseased, img.RGBAAt(80, 120))
	assert.Equal(t, ColorModerate, img.RGBAAt(239, 200))

	// Interior is a translucent fill
	center := img.RGBAAt(120, 120)
	assert.Equal(t, uint8(51), center.A)
	assert.Greater(t, center.R, center.G)

	// Outside every box stays transparent
	assert.Equal(t, color.RGBA{}, img.RGBAAt(10, 10))
}

func TestRender_EmptyClearsCanvas(t *testing.T) {
	canvas := NewCanvas()
	r := NewRenderer(DefaultOptions())

	r.Render(canvas, sampleDetections(), image.Pt(320, 240))
	require.False(t, canvas.Empty())

	r.Render(canvas, nil, image.Pt(320, 240))
	assert.True(t, canvas.Empty())
}

func TestRender_BoundingBoxesDisabled(t *testing.T) {
	canvas := NewCanvas()
	opts := DefaultOptions()
	opts.ShowBoundingBoxes = false
	r := NewRenderer(opts)

	r.Render(canvas, sampleDetections(), image.Pt(320, 240))
	assert.True(t, canvas.Empty())
	assert.Equal(t, image.Pt(320, 240), canvas.Size())
}

func TestRender_NilCanvas(t *testing.T) {
	r := NewRenderer(DefaultOptions())
	assert.NotPanics(t, func() {
		r.Render(nil, sampleDetections(), image.Pt(320, 240))
	})
}

func TestRender_NeutralColour(t *testing.T) {
	canvas := NewCanvas()
	opts := DefaultOptions()
	opts.ColorCoding = false
	r := NewRenderer(opts)

	r.Render(canvas, sampleDetections(), image.Pt(320, 240))
	img := canvas.Snapshot()
	assert.Equal(t, ColorNeutral, img.RGBAAt(80, 120))
	assert.Equal(t, ColorNeutral, img.RGBAAt(239, 200))
}

func TestRender_ConfidenceChip(t *testing.T) {
	canvas := NewCanvas()
	r := NewRenderer(DefaultOptions())
	r.Render(canvas, sampleDetections()[:1], image.Pt(320, 240))

	// Chip spans the 25 px above the box
	assert.Equal(t, uint8(0xFF), canvas.Snapshot().RGBAAt(81, 60).A)

	opts := DefaultOptions()
	opts.ShowConfidence = false
	r.SetOptions(opts)
	r.Render(canvas, sampleDetections()[:1], image.Pt(320, 240))
	assert.Equal(t, uint8(0), canvas.Snapshot().RGBAAt(81, 60).A)
}

func TestRender_ResizesCanvas(t *testing.T) {
	canvas := NewCanvas()
	r := NewRenderer(DenseOptions())

	r.Render(canvas, nil, image.Pt(1280, 720))
	assert.Equal(t, image.Pt(1280, 720), canvas.Size())

	r.Render(canvas, nil, image.Pt(640, 480))
	assert.Equal(t, image.Pt(640, 480), canvas.Size())
}

func TestChipLabel_FallsBackForUnsupportedScript(t *testing.T) {
	r := NewRenderer(DefaultOptions())

	kn := models.Detection{Severity: models.SeverityModerate, Label: "ಮಧ್ಯಮ"}
	assert.Equal(t, "Moderate", r.chipLabel(kn))

	en := models.Detection{Severity: models.SeverityHealthy, Label: "Healthy"}
	assert.Equal(t, "Healthy", r.chipLabel(en))
}

func TestSeverityColor(t *testing.T) {
	assert.Equal(t, ColorDiseased, SeverityColor(models.SeverityDiseased, true))
	assert.Equal(t, ColorModerate, SeverityColor(models.SeverityModerate, true))
	assert.Equal(t, ColorHealthy, SeverityColor(models.SeverityHealthy, true))
	assert.Equal(t, ColorNeutral, SeverityColor(models.SeverityDiseased, false))
}

func TestEncodePNG(t *testing.T) {
	canvas := NewCanvas()
	NewRenderer(DefaultOptions()).Render(canvas, sampleDetections(), image.Pt(320, 240))

	data, err := EncodePNG(canvas)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 320, decoded.Bounds().Dx())
	assert.Equal(t, 240, decoded.Bounds().Dy())
}

func TestComposite(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for i := range frame.Pix {
		frame.Pix[i] = 0xFF
	}
	canvas := NewCanvas()
	NewRenderer(DefaultOptions()).Render(canvas, sampleDetections(), image.Pt(320, 240))

	out := Composite(frame, canvas)
	assert.Equal(t, ColorDiseased, out.RGBAAt(80, 120))
	assert.Equal(t, color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}, out.RGBAAt(10, 10))

	tinted := out.RGBAAt(120, 120)
	assert.Less(t, tinted.G, uint8(0xFF))
	assert.Equal(t, uint8(0xFF), tinted.A)
}

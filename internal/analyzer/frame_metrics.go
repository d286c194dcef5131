package analyzer

import (
	"fmt"
	"image"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/anime-shed/plant-inspector-go/pkg/models"
)

// frameMetrics implements MetricsCalculator
type frameMetrics struct {
	slicePool sync.Pool
}

// NewMetricsCalculator creates a frame metrics calculator
func NewMetricsCalculator() MetricsCalculator {
	return &frameMetrics{
		slicePool: sync.Pool{
			New: func() interface{} {
				return make([]float64, 0, 1024)
			},
		},
	}
}

// Calculate computes average luminance and saturation (HSV value and
// saturation, 0..1), per-channel means, the share of green-dominant pixels and
// the Laplacian variance of the grayscale frame.
func (fm *frameMetrics) Calculate(img image.Image) models.FrameMetrics {
	frame := ToRGBA(img)
	if frame == nil {
		return models.FrameMetrics{}
	}
	width, height := frame.Rect.Dx(), frame.Rect.Dy()

	var lum, sat, r, g, b float64
	green := 0
	gray := make([]float64, width*height)

	for y := 0; y < height; y++ {
		off := y * frame.Stride
		for x := 0; x < width; x++ {
			i := off + x*4
			rf := float64(frame.Pix[i]) / 255
			gf := float64(frame.Pix[i+1]) / 255
			bf := float64(frame.Pix[i+2]) / 255

			s, v := saturationValue(rf, gf, bf)
			sat += s
			lum += v
			r += rf
			g += gf
			b += bf
			if gf > rf && gf > bf {
				green++
			}
			gray[y*width+x] = 0.299*rf*255 + 0.587*gf*255 + 0.114*bf*255
		}
	}

	n := float64(width * height)
	return models.FrameMetrics{
		AvgLuminance:   lum / n,
		AvgSaturation:  sat / n,
		ChannelBalance: [3]float64{r / n, g / n, b / n},
		GreenCoverage:  float64(green) / n,
		Sharpness:      fm.laplacianVariance(gray, width, height),
		Resolution:     fmt.Sprintf("%dx%d", width, height),
	}
}

// laplacianVariance applies the 4-neighbour Laplacian kernel and returns the
// variance of the response. Low values indicate a blurred frame.
func (fm *frameMetrics) laplacianVariance(gray []float64, width, height int) float64 {
	if width < 3 || height < 3 {
		return 0
	}

	data := fm.slicePool.Get().([]float64)
	defer func() { fm.slicePool.Put(data[:0]) }()
	if cap(data) < (width-2)*(height-2) {
		data = make([]float64, 0, (width-2)*(height-2))
	}

	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			c := y*width + x
			laplacian := -4*gray[c] + gray[c-width] + gray[c+width] + gray[c-1] + gray[c+1]
			data = append(data, laplacian)
		}
	}
	return stat.Variance(data, nil)
}

func saturationValue(r, g, b float64) (s, v float64) {
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	v = max
	if max > 0 {
		s = (max - min) / max
	}
	return s, v
}

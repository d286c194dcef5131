package overlay

import (
	"bytes"
	"image"
	"image/draw"
	"image/png"
	"sync"
)

// Canvas is a transparent drawing surface sized to the frame it annotates.
// It is safe for concurrent use; Render holds the lock while drawing and
// Snapshot/EncodePNG read a consistent copy.
type Canvas struct {
	mu  sync.RWMutex
	img *image.RGBA
}

// NewCanvas creates an empty canvas
func NewCanvas() *Canvas {
	return &Canvas{img: image.NewRGBA(image.Rectangle{})}
}

// Size returns the current canvas dimensions
func (c *Canvas) Size() image.Point {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.img.Rect.Size()
}

// Clear resets every pixel to transparent
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.img.Pix)
}

// resize reallocates the backing image when size changes. Caller holds mu.
func (c *Canvas) resize(size image.Point) {
	if size.X < 0 {
		size.X = 0
	}
	if size.Y < 0 {
		size.Y = 0
	}
	if c.img.Rect.Size() == size {
		return
	}
	c.img = image.NewRGBA(image.Rectangle{Max: size})
}

// Snapshot returns a copy of the canvas pixels
func (c *Canvas) Snapshot() *image.RGBA {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := image.NewRGBA(c.img.Rect)
	copy(out.Pix, c.img.Pix)
	return out
}

// Empty reports whether no pixel has been drawn
func (c *Canvas) Empty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := 3; i < len(c.img.Pix); i += 4 {
		if c.img.Pix[i] != 0 {
			return false
		}
	}
	return true
}

// EncodePNG encodes the canvas as a transparent PNG
func EncodePNG(c *Canvas) ([]byte, error) {
	return EncodeImage(c.Snapshot())
}

// EncodeImage encodes an overlay copy taken with Snapshot
func EncodeImage(img *image.RGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Composite draws the canvas over frame and returns the result. The canvas is
// anchored at the frame's top-left corner.
func Composite(frame image.Image, c *Canvas) *image.RGBA {
	b := frame.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), frame, b.Min, draw.Src)
	if c != nil {
		overlay := c.Snapshot()
		draw.Draw(out, out.Bounds(), overlay, image.Point{}, draw.Over)
	}
	return out
}

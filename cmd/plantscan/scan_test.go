package main

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLeaf(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 300, 300))
	for y := 0; y < 300; y++ {
		for x := 0; x < 300; x++ {
			c := color.RGBA{50, 140, 40, 255}
			if x < 100 && y < 100 {
				c = color.RGBA{120, 140, 40, 255}
				if (x+y)%3 == 0 {
					c = color.RGBA{200, 170, 60, 255}
				}
			}
			img.Set(x, y, c)
		}
	}
	path := filepath.Join(dir, "leaf.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestScanFile(t *testing.T) {
	dir := t.TempDir()
	path := writeLeaf(t, dir)
	out := filepath.Join(dir, "overlay.png")

	resp, err := scanFile(path, scanFlags{preset: "photo", sensitivity: 70, language: "kn", overlayPath: out})
	require.NoError(t, err)

	assert.Equal(t, 300, resp.Width)
	assert.Equal(t, 300, resp.Height)
	assert.Equal(t, len(resp.Detections), resp.Summary.Total)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Width)
}

func TestScanFile_Errors(t *testing.T) {
	dir := t.TempDir()
	path := writeLeaf(t, dir)

	_, err := scanFile(path, scanFlags{preset: "infrared", sensitivity: 70})
	assert.Error(t, err)

	_, err = scanFile(path, scanFlags{preset: "photo", sensitivity: 101})
	assert.Error(t, err)

	_, err = scanFile(filepath.Join(dir, "missing.png"), scanFlags{preset: "photo", sensitivity: 70})
	assert.Error(t, err)

	notImage := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notImage, []byte("not an image"), 0o600))
	_, err = scanFile(notImage, scanFlags{preset: "photo", sensitivity: 70})
	assert.Error(t, err)
}

func TestScanFile_LiveSensitivity(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 80, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < 80; x++ {
			c := color.RGBA{40, 180, 40, 255}
			if y < 8 {
				c = color.RGBA{200, 200, 50, 255}
			}
			img.Set(x, y, c)
		}
	}
	path := filepath.Join(dir, "leaf.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	eager, err := scanFile(path, scanFlags{preset: "live", sensitivity: 0, tuned: true})
	require.NoError(t, err)
	strict, err := scanFile(path, scanFlags{preset: "live", sensitivity: 100, tuned: true})
	require.NoError(t, err)

	assert.Len(t, eager.Detections, 1)
	assert.Empty(t, strict.Detections)
}

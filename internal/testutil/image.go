// Package testutil generates synthetic pet portraits for tests. The
// portraits are deterministic, so tests built on them are reproducible.
package testutil

import (
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pupring/engrave/internal/utils"
)

// edgeRamp is the width in pixels over which shape edges fade. Soft edges
// give gradient-based filters realistic transitions to latch onto.
const edgeRamp = 6.0

// Portrait renders a stylized pet head: a dark disc with two bright eyes on
// a light background.
func Portrait(size int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))

	cx := float64(size) / 2
	cy := float64(size) / 2
	headRadius := float64(size) * 0.35
	eyeRadius := float64(size) * 0.06
	eyeOffsetX := headRadius * 0.4
	eyeOffsetY := headRadius * 0.25

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			fx, fy := float64(x), float64(y)

			v := shade(math.Hypot(fx-cx, fy-cy), headRadius, 40, 230)

			leftEye := math.Hypot(fx-(cx-eyeOffsetX), fy-(cy-eyeOffsetY))
			rightEye := math.Hypot(fx-(cx+eyeOffsetX), fy-(cy-eyeOffsetY))
			v = shade(leftEye, eyeRadius, 220, v)
			v = shade(rightEye, eyeRadius, 220, v)

			g := uint8(math.Round(v))
			img.SetNRGBA(x, y, color.NRGBA{R: g, G: g, B: g, A: 255})
		}
	}
	return img
}

// shade returns inside within the disc, outside beyond it, and a linear
// blend across the edge ramp.
func shade(dist, radius, inside, outside float64) float64 {
	switch {
	case dist <= radius-edgeRamp:
		return inside
	case dist >= radius+edgeRamp:
		return outside
	default:
		t := (dist - (radius - edgeRamp)) / (2 * edgeRamp)
		return inside + (outside-inside)*t
	}
}

// PortraitPNG returns a PNG-encoded portrait.
func PortraitPNG(t *testing.T, size int) []byte {
	t.Helper()
	data, err := utils.EncodePNG(Portrait(size))
	require.NoError(t, err)
	return data
}

// WritePortraitFile writes a PNG portrait into dir and returns its path.
func WritePortraitFile(t *testing.T, dir string, size int) string {
	t.Helper()
	path := filepath.Join(dir, "portrait.png")
	require.NoError(t, os.WriteFile(path, PortraitPNG(t, size), 0o600))
	return path
}

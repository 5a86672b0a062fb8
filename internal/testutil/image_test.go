package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pupring/engrave/internal/utils"
)

func TestPortraitGeometry(t *testing.T) {
	img := Portrait(200)

	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 200, img.Bounds().Dy())

	// Corners are light background, the head center is dark.
	assert.EqualValues(t, 230, img.NRGBAAt(2, 2).R)
	assert.EqualValues(t, 40, img.NRGBAAt(100, 130).R)

	// Eyes are bright against the head.
	left := img.NRGBAAt(72, 82).R
	assert.EqualValues(t, 220, left)
}

func TestPortraitDeterminism(t *testing.T) {
	a := Portrait(128)
	b := Portrait(128)
	assert.Equal(t, a.Pix, b.Pix)
}

func TestPortraitPNGRoundTrip(t *testing.T) {
	data := PortraitPNG(t, 96)

	img, format, err := utils.DecodeImage(data)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 96, img.Bounds().Dx())
}

func TestWritePortraitFile(t *testing.T) {
	dir := t.TempDir()
	path := WritePortraitFile(t, dir, 64)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

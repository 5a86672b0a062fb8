package utils

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupportedImage(t *testing.T) {
	assert.True(t, IsSupportedImage("photo.jpg"))
	assert.True(t, IsSupportedImage("photo.JPEG"))
	assert.True(t, IsSupportedImage("photo.png"))
	assert.True(t, IsSupportedImage("photo.webp"))
	assert.False(t, IsSupportedImage("photo.gif"))
	assert.False(t, IsSupportedImage("photo"))
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.png")
	img := imaging.New(32, 16, color.NRGBA{R: 200, G: 150, B: 100, A: 255})
	require.NoError(t, imaging.Save(img, path))

	loaded, meta, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, 32, loaded.Bounds().Dx())
	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, 32, meta.Width)
	assert.Equal(t, 16, meta.Height)
	assert.InDelta(t, 2.0, meta.AspectRatio, 1e-9)
	assert.Positive(t, meta.SizeBytes)
}

func TestLoadImage_Errors(t *testing.T) {
	_, _, err := LoadImage("")
	require.Error(t, err)

	_, _, err = LoadImage("missing.txt")
	require.Error(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "corrupt.png")
	require.NoError(t, os.WriteFile(path, []byte("not a png"), 0o600))
	_, _, err = LoadImage(path)
	require.Error(t, err)
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	img := imaging.New(8, 8, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	data, err := EncodePNG(img)
	require.NoError(t, err)

	decoded, format, err := DecodeImage(data)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 8, decoded.Bounds().Dx())
}

func TestDecodeImage_Corrupt(t *testing.T) {
	_, _, err := DecodeImage(nil)
	require.Error(t, err)

	_, _, err = DecodeImage([]byte{0x00, 0x01, 0x02})
	require.Error(t, err)

	var procErr *ImageProcessingError
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, "decode", procErr.Operation)
}

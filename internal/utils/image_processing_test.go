package utils

import (
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitInside(t *testing.T) {
	tests := []struct {
		name       string
		width      int
		height     int
		maxSize    int
		wantWidth  int
		wantHeight int
	}{
		{
			name:  "landscape shrinks to long edge",
			width: 2000, height: 1000, maxSize: 1000,
			wantWidth: 1000, wantHeight: 500,
		},
		{
			name:  "portrait shrinks to long edge",
			width: 500, height: 2000, maxSize: 1000,
			wantWidth: 250, wantHeight: 1000,
		},
		{
			name:  "small image is never upscaled",
			width: 300, height: 200, maxSize: 1000,
			wantWidth: 300, wantHeight: 200,
		},
		{
			name:  "exact fit unchanged",
			width: 1000, height: 800, maxSize: 1000,
			wantWidth: 1000, wantHeight: 800,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := imaging.New(tt.width, tt.height, color.White)
			resized, err := FitInside(img, tt.maxSize)
			require.NoError(t, err)
			assert.Equal(t, tt.wantWidth, resized.Bounds().Dx())
			assert.Equal(t, tt.wantHeight, resized.Bounds().Dy())
		})
	}
}

func TestFitInside_InvalidInput(t *testing.T) {
	_, err := FitInside(nil, 1000)
	require.Error(t, err)

	img := imaging.New(10, 10, color.White)
	_, err = FitInside(img, 0)
	require.Error(t, err)
}

func TestLimitSize(t *testing.T) {
	img := imaging.New(2400, 1800, color.White)
	limited, err := LimitSize(img, 1200, 1200)
	require.NoError(t, err)
	assert.LessOrEqual(t, limited.Bounds().Dx(), 1200)
	assert.LessOrEqual(t, limited.Bounds().Dy(), 1200)

	small := imaging.New(400, 300, color.White)
	unchanged, err := LimitSize(small, 1200, 1200)
	require.NoError(t, err)
	assert.Equal(t, 400, unchanged.Bounds().Dx())
	assert.Equal(t, 300, unchanged.Bounds().Dy())
}

func TestGrayPlaneFromImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
		}
	}

	plane, err := GrayPlaneFromImage(img)
	require.NoError(t, err)
	assert.Equal(t, 4, plane.Width)
	assert.Equal(t, 2, plane.Height)
	assert.Len(t, plane.Pix, 8)
	for _, v := range plane.Pix {
		assert.Equal(t, uint8(100), v)
	}
}

func TestGrayPlane_AtClamps(t *testing.T) {
	plane := NewGrayPlane(3, 3)
	plane.Pix[0] = 42
	plane.Pix[8] = 99

	assert.Equal(t, uint8(42), plane.At(-5, -5))
	assert.Equal(t, uint8(99), plane.At(10, 10))
}

func TestGrayPlane_Normalize(t *testing.T) {
	plane := NewGrayPlane(2, 2)
	plane.Pix = []uint8{50, 100, 150, 200}
	plane.Normalize()
	assert.Equal(t, uint8(0), plane.Pix[0])
	assert.Equal(t, uint8(255), plane.Pix[3])

	flat := NewGrayPlane(2, 1)
	flat.Pix = []uint8{77, 77}
	flat.Normalize()
	assert.Equal(t, []uint8{77, 77}, flat.Pix)
}

func TestRaster_PixelOps(t *testing.T) {
	r := NewTransparentRaster(4, 4)
	idx := r.Offset(2, 1)
	assert.Equal(t, (1*4+2)*4, idx)

	assert.False(t, r.IsBlack(idx))
	r.SetBlack(idx)
	assert.True(t, r.IsBlack(idx))
	assert.Equal(t, uint8(255), r.Pix[idx+3])

	r.SetTransparent(idx)
	assert.False(t, r.IsBlack(idx))
	assert.Equal(t, uint8(0), r.Pix[idx+3])
}

func TestRaster_ImageSharesBacking(t *testing.T) {
	r := NewTransparentRaster(2, 2)
	img := r.Image()
	r.SetBlack(r.Offset(1, 1))
	c := img.NRGBAAt(1, 1)
	assert.Equal(t, uint8(255), c.A)
	assert.Equal(t, uint8(0), c.R)
}

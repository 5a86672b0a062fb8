package facecrop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_CenteredDetection(t *testing.T) {
	box := BoundingBox{CenterX: 500, CenterY: 500, Width: 400, Height: 400, Confidence: 0.9}
	region, err := Normalize(box, 1000, 1000, StandardProfile())
	require.NoError(t, err)

	// 400 * 1.4 = 560 padded, shifted up by 8% of 400 = 32.
	assert.Equal(t, 560, region.Width)
	assert.Equal(t, 560, region.Height)
	assert.Equal(t, 220, region.X)
	assert.Equal(t, 188, region.Y)
}

func TestNormalize_RegionStaysInBounds(t *testing.T) {
	tests := []struct {
		name        string
		box         BoundingBox
		imageW      int
		imageH      int
	}{
		{
			name:   "detection near top-left corner",
			box:    BoundingBox{CenterX: 30, CenterY: 20, Width: 100, Height: 100},
			imageW: 800, imageH: 600,
		},
		{
			name:   "detection near bottom-right corner",
			box:    BoundingBox{CenterX: 790, CenterY: 590, Width: 120, Height: 90},
			imageW: 800, imageH: 600,
		},
		{
			name:   "detection larger than image after padding",
			box:    BoundingBox{CenterX: 400, CenterY: 300, Width: 700, Height: 550},
			imageW: 800, imageH: 600,
		},
		{
			name:   "tiny detection in large image",
			box:    BoundingBox{CenterX: 50, CenterY: 50, Width: 10, Height: 10},
			imageW: 4000, imageH: 3000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			region, err := Normalize(tt.box, tt.imageW, tt.imageH, StandardProfile())
			require.NoError(t, err)
			assert.GreaterOrEqual(t, region.X, 0)
			assert.GreaterOrEqual(t, region.Y, 0)
			assert.Positive(t, region.Width)
			assert.Positive(t, region.Height)
			assert.LessOrEqual(t, region.X+region.Width, tt.imageW)
			assert.LessOrEqual(t, region.Y+region.Height, tt.imageH)
		})
	}
}

func TestNormalize_ShiftsInwardInsteadOfShrinking(t *testing.T) {
	// Detection hugging the right edge: the padded region would overflow, so
	// it must slide left and keep the full padded width.
	box := BoundingBox{CenterX: 950, CenterY: 500, Width: 300, Height: 300}
	region, err := Normalize(box, 1000, 1000, StandardProfile())
	require.NoError(t, err)

	assert.Equal(t, 420, region.Width) // 300 * 1.4
	assert.Equal(t, 580, region.X)     // shifted inward from 950-210=740
}

func TestNormalize_InvalidInputs(t *testing.T) {
	_, err := Normalize(BoundingBox{}, 100, 100, StandardProfile())
	require.Error(t, err)

	_, err = Normalize(BoundingBox{CenterX: 10, CenterY: 10, Width: -5, Height: 10}, 100, 100, StandardProfile())
	require.Error(t, err)

	_, err = Normalize(BoundingBox{CenterX: 10, CenterY: 10, Width: 5, Height: 5}, 0, 100, StandardProfile())
	require.Error(t, err)
}

// Small detections must receive strictly more padding than large ones.
func TestPaddingFactor_TwoTierRule(t *testing.T) {
	profile := StandardProfile()

	small := BoundingBox{CenterX: 500, CenterY: 500, Width: 100, Height: 100}
	large := BoundingBox{CenterX: 500, CenterY: 500, Width: 400, Height: 400}

	smallFactor := profile.PaddingFactor(small, 1000, 1000) // size factor 0.1
	largeFactor := profile.PaddingFactor(large, 1000, 1000) // size factor 0.4

	assert.Equal(t, profile.SmallPadding, smallFactor)
	assert.Equal(t, profile.BasePadding, largeFactor)
	assert.Greater(t, smallFactor, largeFactor)
}

func TestPaddingFactor_CutoffBoundary(t *testing.T) {
	profile := StandardProfile()

	// Exactly at the cutoff uses base padding; just below switches.
	at := BoundingBox{CenterX: 500, CenterY: 500, Width: 250, Height: 250}
	below := BoundingBox{CenterX: 500, CenterY: 500, Width: 249, Height: 249}

	assert.Equal(t, profile.BasePadding, profile.PaddingFactor(at, 1000, 1000))
	assert.Equal(t, profile.SmallPadding, profile.PaddingFactor(below, 1000, 1000))
}

func TestProfessionalProfile_StrongerVerticalShift(t *testing.T) {
	std := StandardProfile()
	pro := ProfessionalProfile()
	assert.Greater(t, pro.VerticalShift, std.VerticalShift)

	box := BoundingBox{CenterX: 500, CenterY: 500, Width: 300, Height: 300}
	stdRegion, err := Normalize(box, 1000, 1000, std)
	require.NoError(t, err)
	proRegion, err := Normalize(box, 1000, 1000, pro)
	require.NoError(t, err)
	assert.Less(t, proRegion.Y, stdRegion.Y)
}

// Package facecrop converts raw face detections into padded, in-bounds crop
// regions suitable for pendant engraving.
package facecrop

import (
	"errors"
	"fmt"
	"math"
)

// BoundingBox is a center-based detection rectangle with a confidence score.
type BoundingBox struct {
	CenterX    float64 `json:"x" validate:"gt=0"`
	CenterY    float64 `json:"y" validate:"gt=0"`
	Width      float64 `json:"width" validate:"gt=0"`
	Height     float64 `json:"height" validate:"gt=0"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// Valid reports whether the box has positive dimensions.
func (b BoundingBox) Valid() bool {
	return b.Width > 0 && b.Height > 0
}

// CropRegion is a top-left rectangle clipped to the source image bounds.
type CropRegion struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Profile tunes how much context is padded around a detection and how far the
// crop is biased upward to exclude neck and torso.
type Profile struct {
	// BasePadding is the multiplier applied to the detection dimensions.
	BasePadding float64
	// SmallPadding replaces BasePadding when the detection is small relative
	// to the image; small faces need proportionally more context so ears and
	// chin survive the crop.
	SmallPadding float64
	// SmallCutoff is the size-factor boundary below which SmallPadding applies.
	SmallCutoff float64
	// VerticalShift is the fraction of detection height the crop is moved up.
	VerticalShift float64
}

// StandardProfile is the default crop tuning used by the pipeline.
func StandardProfile() Profile {
	return Profile{
		BasePadding:   1.4,
		SmallPadding:  1.6,
		SmallCutoff:   0.25,
		VerticalShift: 0.08,
	}
}

// ProfessionalProfile crops tighter around the face with a stronger upward
// bias, used by the professional engraving flow.
func ProfessionalProfile() Profile {
	return Profile{
		BasePadding:   1.35,
		SmallPadding:  1.5,
		SmallCutoff:   0.3,
		VerticalShift: 0.20,
	}
}

// PaddingFactor returns the multiplier the profile selects for the given
// detection and image dimensions.
func (p Profile) PaddingFactor(box BoundingBox, imageWidth, imageHeight int) float64 {
	minImage := math.Min(float64(imageWidth), float64(imageHeight))
	if minImage <= 0 {
		return p.BasePadding
	}
	sizeFactor := math.Min(box.Width, box.Height) / minImage
	if sizeFactor < p.SmallCutoff {
		return p.SmallPadding
	}
	return p.BasePadding
}

// Normalize computes the padded crop region for a detection. The region is
// guaranteed to lie fully inside the image: when padding would overflow a
// border the region is shifted inward so the requested dimensions are
// preserved where possible, and only shrunk when the padded size exceeds the
// image itself.
func Normalize(box BoundingBox, imageWidth, imageHeight int, profile Profile) (CropRegion, error) {
	if imageWidth <= 0 || imageHeight <= 0 {
		return CropRegion{}, fmt.Errorf("invalid image dimensions: %dx%d", imageWidth, imageHeight)
	}
	if !box.Valid() {
		return CropRegion{}, errors.New("bounding box has non-positive dimensions")
	}

	centerX := int(math.Round(box.CenterX))
	centerY := int(math.Round(box.CenterY))
	detWidth := int(math.Round(box.Width))
	detHeight := int(math.Round(box.Height))

	factor := profile.PaddingFactor(box, imageWidth, imageHeight)
	paddedWidth := int(math.Round(float64(detWidth) * factor))
	paddedHeight := int(math.Round(float64(detHeight) * factor))

	// Bias the crop upward so the face stays while the torso is dropped.
	neckShift := int(math.Round(float64(detHeight) * profile.VerticalShift))

	x := centerX - paddedWidth/2
	y := centerY - paddedHeight/2 - neckShift

	// Shift inward rather than clamping size so the padded dimensions survive
	// near the borders.
	if x+paddedWidth > imageWidth {
		x = imageWidth - paddedWidth
	}
	if y+paddedHeight > imageHeight {
		y = imageHeight - paddedHeight
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}

	width := paddedWidth
	if x+width > imageWidth {
		width = imageWidth - x
	}
	height := paddedHeight
	if y+height > imageHeight {
		height = imageHeight - y
	}

	return CropRegion{X: x, Y: y, Width: width, Height: height}, nil
}

package utils

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// FitInside resizes an image so its longer edge does not exceed maxSize while
// preserving aspect ratio. Images already within bounds are returned unscaled;
// this only ever shrinks, never upscales. Uses Lanczos resampling for quality.
func FitInside(img image.Image, maxSize int) (image.Image, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	if maxSize <= 0 {
		return nil, &ImageProcessingError{Operation: "resize", Err: fmt.Errorf("invalid target size: %d", maxSize)}
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, &ImageProcessingError{Operation: "resize", Err: errors.New("invalid image dimensions")}
	}

	scale := math.Min(float64(maxSize)/float64(width), float64(maxSize)/float64(height))
	if scale >= 1.0 {
		return img, nil
	}

	newWidth := int(float64(width) * scale)
	newHeight := int(float64(height) * scale)
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}
	return imaging.Resize(img, newWidth, newHeight, imaging.Lanczos), nil
}

// LimitSize shrinks an image to fit within width x height, never upscaling.
// Used by the final optimization stage.
func LimitSize(img image.Image, width, height int) (image.Image, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "limit", Err: errors.New("input image is nil")}
	}
	if width <= 0 || height <= 0 {
		return nil, &ImageProcessingError{Operation: "limit", Err: fmt.Errorf("invalid target dimensions: %dx%d", width, height)}
	}
	b := img.Bounds()
	if b.Dx() <= width && b.Dy() <= height {
		return img, nil
	}
	return imaging.Fit(img, width, height, imaging.Lanczos), nil
}

// GrayPlane is a single-channel raster stored as a flat byte slice.
// Index (x, y) lives at y*Width + x.
type GrayPlane struct {
	Pix    []uint8
	Width  int
	Height int
}

// NewGrayPlane allocates a zeroed grayscale plane.
func NewGrayPlane(width, height int) *GrayPlane {
	return &GrayPlane{
		Pix:    make([]uint8, width*height),
		Width:  width,
		Height: height,
	}
}

// GrayPlaneFromImage converts an image into a flat grayscale plane using the
// standard luma weights applied by imaging.Grayscale.
func GrayPlaneFromImage(img image.Image) (*GrayPlane, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "grayscale", Err: errors.New("input image is nil")}
	}
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	width := b.Dx()
	height := b.Dy()
	if width <= 0 || height <= 0 {
		return nil, &ImageProcessingError{Operation: "grayscale", Err: errors.New("invalid image dimensions")}
	}

	plane := NewGrayPlane(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			// NRGBA after Grayscale has R == G == B.
			plane.Pix[y*width+x] = gray.Pix[gray.PixOffset(x, y)]
		}
	}
	return plane, nil
}

// At returns the gray value at (x, y). Out-of-range coordinates are clamped
// to the nearest edge pixel, matching extend-edge convolution semantics.
func (p *GrayPlane) At(x, y int) uint8 {
	if x < 0 {
		x = 0
	} else if x >= p.Width {
		x = p.Width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= p.Height {
		y = p.Height - 1
	}
	return p.Pix[y*p.Width+x]
}

// Clone returns a deep copy of the plane.
func (p *GrayPlane) Clone() *GrayPlane {
	out := NewGrayPlane(p.Width, p.Height)
	copy(out.Pix, p.Pix)
	return out
}

// Normalize stretches the plane's intensity range to the full 0-255 span.
// A constant plane is left unchanged.
func (p *GrayPlane) Normalize() {
	minV, maxV := uint8(255), uint8(0)
	for _, v := range p.Pix {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	if maxV <= minV {
		return
	}
	span := float64(maxV - minV)
	for i, v := range p.Pix {
		p.Pix[i] = uint8(math.Round(float64(v-minV) / span * 255))
	}
}

// Raster is a flat RGBA pixel arena used by the engraving inner loops.
// Pixels are addressed through Offset rather than per-coordinate objects.
type Raster struct {
	Pix    []uint8
	Width  int
	Height int
}

// NewTransparentRaster allocates a raster with every pixel fully transparent.
func NewTransparentRaster(width, height int) *Raster {
	return &Raster{
		Pix:    make([]uint8, width*height*4),
		Width:  width,
		Height: height,
	}
}

// Offset returns the index of the R byte for pixel (x, y).
func (r *Raster) Offset(x, y int) int { return (y*r.Width + x) * 4 }

// SetBlack makes the pixel at byte offset i fully opaque black.
func (r *Raster) SetBlack(i int) {
	r.Pix[i] = 0
	r.Pix[i+1] = 0
	r.Pix[i+2] = 0
	r.Pix[i+3] = 255
}

// SetTransparent makes the pixel at byte offset i fully transparent.
func (r *Raster) SetTransparent(i int) {
	r.Pix[i] = 255
	r.Pix[i+1] = 255
	r.Pix[i+2] = 255
	r.Pix[i+3] = 0
}

// IsBlack reports whether the pixel at byte offset i is an opaque line pixel.
func (r *Raster) IsBlack(i int) bool { return r.Pix[i+3] == 255 && r.Pix[i] == 0 }

// Clone returns a deep copy of the raster.
func (r *Raster) Clone() *Raster {
	out := &Raster{
		Pix:    make([]uint8, len(r.Pix)),
		Width:  r.Width,
		Height: r.Height,
	}
	copy(out.Pix, r.Pix)
	return out
}

// Image wraps the raster in an image.NRGBA sharing the same backing slice.
func (r *Raster) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    r.Pix,
		Stride: r.Width * 4,
		Rect:   image.Rect(0, 0, r.Width, r.Height),
	}
}

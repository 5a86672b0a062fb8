package engraving

import (
	"errors"
	"image"

	"github.com/pupring/engrave/internal/utils"
)

// AdaptiveParams tunes the uniform (adaptive-threshold) filter, which renders
// shading as ordered dither bands instead of pure edge lines.
type AdaptiveParams struct {
	WorkingSize     int
	WindowSize      int     // local-average window (odd)
	ThresholdFactor float64 // fraction of the local average used as cutoff
	MinNeighbors    int
}

// DefaultAdaptiveParams returns the production tuning for the uniform filter.
func DefaultAdaptiveParams() AdaptiveParams {
	return AdaptiveParams{
		WorkingSize:     1500,
		WindowSize:      11,
		ThresholdFactor: 0.85,
		MinNeighbors:    2,
	}
}

// adaptiveFilter implements StyleFilter using local-window thresholding.
type adaptiveFilter struct {
	name   string
	params AdaptiveParams
}

// NewAdaptiveFilter builds a uniform-style filter.
func NewAdaptiveFilter(name string, params AdaptiveParams) StyleFilter {
	return &adaptiveFilter{name: name, params: params}
}

func (f *adaptiveFilter) Name() string { return f.name }

func (f *adaptiveFilter) Apply(img image.Image) (*utils.Raster, error) {
	return applyAdaptive(img, f.params)
}

// applyAdaptive thresholds each pixel against a fraction of its local window
// average, drawing darker bands densely and lighter bands as sparse ordered
// patterns. Integral-image sums keep the window scan linear.
func applyAdaptive(img image.Image, p AdaptiveParams) (*utils.Raster, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	size := p.WorkingSize
	if size <= 0 {
		size = 1500
	}
	resized, err := utils.FitInside(img, size)
	if err != nil {
		return nil, err
	}
	plane, err := utils.GrayPlaneFromImage(resized)
	if err != nil {
		return nil, err
	}
	plane.Normalize()

	width, height := plane.Width, plane.Height
	integral := buildIntegral(plane)
	half := p.WindowSize / 2
	if half < 1 {
		half = 5
	}

	r := utils.NewTransparentRaster(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			localAvg := windowMean(integral, width, height, x, y, half)
			threshold := localAvg * p.ThresholdFactor
			v := float64(plane.Pix[y*width+x])

			draw := false
			switch {
			case v < threshold*0.3:
				draw = true
			case v < threshold*0.5:
				draw = (x+y)%2 == 0
			case v < threshold*0.7:
				draw = (x%3)+(y%3) == 0
			case v < threshold:
				draw = x%4 == 0 && y%4 == 0
			}

			idx := r.Offset(x, y)
			if draw {
				r.SetBlack(idx)
			} else {
				r.SetTransparent(idx)
			}
		}
	}

	removeIsolated(r, p.MinNeighbors)
	return r, nil
}

// buildIntegral computes a (width+1)x(height+1) summed-area table.
func buildIntegral(p *utils.GrayPlane) []uint64 {
	w, h := p.Width, p.Height
	integral := make([]uint64, (w+1)*(h+1))
	for y := 1; y <= h; y++ {
		var rowSum uint64
		for x := 1; x <= w; x++ {
			rowSum += uint64(p.Pix[(y-1)*w+(x-1)])
			integral[y*(w+1)+x] = integral[(y-1)*(w+1)+x] + rowSum
		}
	}
	return integral
}

// windowMean returns the mean intensity of the clamped window around (x, y).
func windowMean(integral []uint64, width, height, x, y, half int) float64 {
	x0 := max(x-half, 0)
	y0 := max(y-half, 0)
	x1 := min(x+half+1, width)
	y1 := min(y+half+1, height)

	stride := width + 1
	sum := integral[y1*stride+x1] - integral[y0*stride+x1] - integral[y1*stride+x0] + integral[y0*stride+x0]
	area := (x1 - x0) * (y1 - y0)
	return float64(sum) / float64(area)
}

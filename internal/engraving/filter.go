package engraving

import (
	"errors"
	"image"

	"github.com/pupring/engrave/internal/utils"
)

// StyleFilter is the capability every engraving style implements. Apply is
// deterministic: identical input pixels and parameters yield a byte-identical
// raster. Every pixel of the result is either opaque black or fully
// transparent; no partial alpha survives.
type StyleFilter interface {
	Name() string
	Apply(img image.Image) (*utils.Raster, error)
}

// paramsFilter runs the shared filter pipeline with a fixed knob set.
type paramsFilter struct {
	name   string
	params StyleParams
}

// NewStyleFilter builds a filter from an explicit parameter set.
func NewStyleFilter(name string, params StyleParams) StyleFilter {
	return &paramsFilter{name: name, params: params}
}

func (f *paramsFilter) Name() string { return f.name }

func (f *paramsFilter) Apply(img image.Image) (*utils.Raster, error) {
	return applyParams(img, f.params)
}

// applyParams is the consolidated edge/line extraction pipeline. Stages:
// fit-inside resize, normalize, style pre-adjustment, edge convolution
// (optionally fused fine+major passes), binary threshold, morphological
// cleanup, gap filling, optional line bridging, and isolation removal.
func applyParams(img image.Image, p StyleParams) (*utils.Raster, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	size := p.WorkingSize
	if size <= 0 {
		size = 1000
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

	prepared := blur(plane, p.PreBlurSigma)
	adjust(prepared, p.Brightness, p.Contrast)

	var mask *utils.GrayPlane
	if p.DualPass {
		// Fine pass keeps eyes and nose texture, the blurred major pass keeps
		// the outline and ears; fusing them multiplicatively preserves both.
		fine := binarize(convolve3x3(prepared, KernelLaplace8.Coefficients()), p.EdgeThreshold)
		major := binarize(convolve3x3(blur(prepared, p.MajorBlurSigma), KernelLaplace4.Coefficients()), p.MajorThreshold)
		mask = fuse(fine, major)
	} else {
		mask = binarize(convolve3x3(prepared, p.Kernel.Coefficients()), p.EdgeThreshold)
	}

	switch p.Cleanup {
	case CleanupMedian:
		mask = majorityFilter(mask, p.MedianRadius)
	case CleanupDilate:
		mask = crossDilate(mask)
	case CleanupMedianClose:
		mask = majorityFilter(mask, p.MedianRadius)
		mask = boxClose(mask)
	}

	raster := maskToRaster(mask)
	fillGaps(raster, p.GapRadius, p.GapNear, p.GapTotal)
	bridgeLines(raster, p.BridgeRadius)
	removeIsolated(raster, p.MinNeighbors)
	return raster, nil
}

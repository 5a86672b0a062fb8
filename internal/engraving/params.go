// Package engraving turns pet photos into black-line-on-transparent rasters
// suitable for laser engraving previews. A single parameterized filter
// pipeline covers all named styles; styles differ only in numeric knobs.
package engraving

// EdgeKernel selects the 3x3 convolution used for edge response.
type EdgeKernel int

const (
	// KernelLaplace4 is the 4-connected discrete Laplacian (center 4).
	KernelLaplace4 EdgeKernel = iota
	// KernelLaplace8 is the 8-connected discrete Laplacian (center 8).
	KernelLaplace8
	// KernelWeighted12 weights diagonals lighter with a center of 12,
	// producing slightly thicker responses.
	KernelWeighted12
	// KernelDiagonal4 is the diagonal-neighbor Laplacian (center 4),
	// responding to diagonal texture the axis-aligned kernels miss.
	KernelDiagonal4
)

// Coefficients returns the kernel taps in row-major order.
func (k EdgeKernel) Coefficients() [9]int {
	switch k {
	case KernelLaplace4:
		return [9]int{0, -1, 0, -1, 4, -1, 0, -1, 0}
	case KernelLaplace8:
		return [9]int{-1, -1, -1, -1, 8, -1, -1, -1, -1}
	case KernelWeighted12:
		return [9]int{-1, -2, -1, -2, 12, -2, -1, -2, -1}
	case KernelDiagonal4:
		return [9]int{-1, 0, -1, 0, 4, 0, -1, 0, -1}
	default:
		return [9]int{-1, -1, -1, -1, 8, -1, -1, -1, -1}
	}
}

// CleanupMode selects the morphological cleanup applied after thresholding.
type CleanupMode int

const (
	// CleanupMedian removes isolated noise with a median filter.
	CleanupMedian CleanupMode = iota
	// CleanupDilate thickens lines via box-sum convolution and re-threshold.
	CleanupDilate
	// CleanupMedianClose runs a median pass followed by a closing box pass.
	CleanupMedianClose
)

// StyleParams is the full knob set for one engraving style.
type StyleParams struct {
	// WorkingSize is the fit-inside bound applied before filtering.
	WorkingSize int

	// PreBlurSigma controls line weight: more blur yields bolder lines,
	// less preserves fine detail. Zero disables the pre-blur.
	PreBlurSigma float64
	// Brightness and Contrast are multiplicative adjustments applied after
	// normalization (1.0 = unchanged).
	Brightness float64
	Contrast   float64

	// Kernel picks the edge-response convolution.
	Kernel EdgeKernel
	// EdgeThreshold converts the edge response to binary; lower values mark
	// more pixels as edges and produce a bolder look.
	EdgeThreshold uint8

	// DualPass fuses a fine pass (no blur, Laplace8) with a major pass
	// (blurred, Laplace4) multiplicatively so both texture and silhouette
	// survive. MajorBlurSigma and MajorThreshold tune the second pass.
	DualPass       bool
	MajorBlurSigma float64
	MajorThreshold uint8

	// Cleanup selects the post-threshold morphology.
	Cleanup       CleanupMode
	MedianRadius  int
	DilateCut     uint8 // re-threshold after box dilation (CleanupDilate)
	CloseCut      uint8 // re-threshold after box closing (CleanupMedianClose)

	// GapRadius is the neighborhood radius of the gap-filling pass; zero
	// disables it. GapNear/GapTotal are the clustering thresholds: a
	// transparent pixel becomes a line pixel when at least GapNear opaque
	// pixels sit in its immediate 8-neighborhood and at least GapTotal within
	// GapRadius.
	GapRadius int
	GapNear   int
	GapTotal  int

	// BridgeRadius enables Bresenham-style bridging of line pixels within the
	// given radius; zero disables it.
	BridgeRadius int

	// MinNeighbors is the isolation cutoff: opaque pixels with fewer opaque
	// 8-neighbors are reverted to transparent.
	MinNeighbors int
}

// Style names form a closed enumeration; new styles are added by registering
// params under a new name, not by branching on strings.
const (
	StyleStandard = "standard"
	StyleBold     = "bold"
	StyleDetailed = "detailed"
)

// StandardParams is the balanced default style.
func StandardParams() StyleParams {
	return StyleParams{
		WorkingSize:    1000,
		PreBlurSigma:   0.8,
		Brightness:     1.15,
		Contrast:       2.2,
		Kernel:         KernelLaplace8,
		EdgeThreshold:  50,
		DualPass:       true,
		MajorBlurSigma: 1.0,
		MajorThreshold: 40,
		Cleanup:        CleanupMedianClose,
		MedianRadius:   1,
		CloseCut:       220,
		GapRadius:      2,
		GapNear:        2,
		GapTotal:       3,
		MinNeighbors:   1,
	}
}

// BoldParams favors thick continuous lines over texture.
func BoldParams() StyleParams {
	return StyleParams{
		WorkingSize:    1000,
		PreBlurSigma:   1.2,
		Brightness:     1.1,
		Contrast:       2.5,
		Kernel:         KernelLaplace8,
		EdgeThreshold:  50,
		DualPass:       true,
		MajorBlurSigma: 1.0,
		MajorThreshold: 40,
		Cleanup:        CleanupDilate,
		DilateCut:      200,
		GapRadius:      2,
		GapNear:        2,
		GapTotal:       3,
		MinNeighbors:   1,
	}
}

// DetailedParams keeps fine fur and feature texture.
func DetailedParams() StyleParams {
	return StyleParams{
		WorkingSize:    1000,
		PreBlurSigma:   0.5,
		Brightness:     1.2,
		Contrast:       2.0,
		Kernel:         KernelLaplace8,
		EdgeThreshold:  50,
		DualPass:       true,
		MajorBlurSigma: 1.0,
		MajorThreshold: 40,
		Cleanup:        CleanupMedian,
		MedianRadius:   1,
		GapRadius:      3,
		GapNear:        2,
		GapTotal:       3,
		MinNeighbors:   1,
	}
}

// featureParams returns the single-kernel per-style presets of the feature
// strategy, which trades the dual-pass fusion for Bresenham bridging.
func featureParams(style string) StyleParams {
	p := StyleParams{
		WorkingSize:  1000,
		Brightness:   1.1,
		Contrast:     1.4,
		Cleanup:      CleanupMedian,
		MedianRadius: 1,
		GapRadius:    1,
		GapNear:      2,
		GapTotal:     2,
		BridgeRadius: 3,
		MinNeighbors: 1,
	}
	switch style {
	case StyleBold:
		p.Kernel = KernelWeighted12
		p.PreBlurSigma = 0.6
		p.Contrast = 1.8
		p.EdgeThreshold = 160
	case StyleDetailed:
		p.Kernel = KernelDiagonal4
		p.EdgeThreshold = 70
	default:
		p.Kernel = KernelLaplace8
		p.PreBlurSigma = 0.3
		p.EdgeThreshold = 180
	}
	return p
}

package engraving

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/pupring/engrave/internal/mempool"
	"github.com/pupring/engrave/internal/utils"
)

// adjust applies brightness and contrast multipliers to a gray plane in place.
// Contrast pivots around mid-gray, brightness scales the result.
func adjust(p *utils.GrayPlane, brightness, contrast float64) {
	if brightness == 0 {
		brightness = 1
	}
	if contrast == 0 {
		contrast = 1
	}
	var lut [256]uint8
	for v := 0; v < 256; v++ {
		f := (float64(v)/255.0-0.5)*contrast + 0.5
		f *= brightness
		lut[v] = clampUnit(f)
	}
	for i, v := range p.Pix {
		p.Pix[i] = lut[v]
	}
}

func clampUnit(f float64) uint8 {
	switch {
	case f <= 0:
		return 0
	case f >= 1:
		return 255
	default:
		return uint8(f*255 + 0.5)
	}
}

// blur applies a Gaussian blur with the given sigma to a gray plane.
func blur(p *utils.GrayPlane, sigma float64) *utils.GrayPlane {
	if sigma <= 0 {
		return p
	}
	img := image.NewGray(image.Rect(0, 0, p.Width, p.Height))
	copy(img.Pix, p.Pix)
	blurred := imaging.Blur(img, sigma)

	out := utils.NewGrayPlane(p.Width, p.Height)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			out.Pix[y*p.Width+x] = blurred.Pix[blurred.PixOffset(x, y)]
		}
	}
	return out
}

// convolve3x3 computes the clamped edge response of a 3x3 kernel over the
// plane using extend-edge sampling. Negative responses clamp to zero.
func convolve3x3(p *utils.GrayPlane, kernel [9]int) *utils.GrayPlane {
	out := utils.NewGrayPlane(p.Width, p.Height)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			sum := 0
			ki := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					sum += kernel[ki] * int(p.At(x+dx, y+dy))
					ki++
				}
			}
			switch {
			case sum < 0:
				sum = 0
			case sum > 255:
				sum = 255
			}
			out.Pix[y*p.Width+x] = uint8(sum)
		}
	}
	return out
}

// binarize maps the plane to a mask: values >= cut become line pixels (255).
func binarize(p *utils.GrayPlane, cut uint8) *utils.GrayPlane {
	out := utils.NewGrayPlane(p.Width, p.Height)
	for i, v := range p.Pix {
		if v >= cut {
			out.Pix[i] = 255
		}
	}
	return out
}

// fuse keeps line pixels present in both masks (multiplicative combination of
// the fine and major edge passes).
func fuse(a, b *utils.GrayPlane) *utils.GrayPlane {
	out := utils.NewGrayPlane(a.Width, a.Height)
	for i := range a.Pix {
		if a.Pix[i] == 255 && b.Pix[i] == 255 {
			out.Pix[i] = 255
		}
	}
	return out
}

// majorityFilter is a median filter specialized for thin line masks. The rule
// is asymmetric: an existing line pixel survives unless it is isolated in its
// window, while a background pixel fills only when line pixels hold a strict
// majority. A symmetric majority vote would erode the one- and two-pixel-wide
// lines the edge passes emit.
func majorityFilter(p *utils.GrayPlane, radius int) *utils.GrayPlane {
	if radius <= 0 {
		return p
	}
	out := utils.NewGrayPlane(p.Width, p.Height)
	window := (2*radius + 1) * (2*radius + 1)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			count := 0
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					if p.At(x+dx, y+dy) == 255 {
						count++
					}
				}
			}
			if p.At(x, y) == 255 {
				// count includes the pixel itself, so 2 means one neighbor.
				if count >= 2 {
					out.Pix[y*p.Width+x] = 255
				}
			} else if count*2 > window {
				out.Pix[y*p.Width+x] = 255
			}
		}
	}
	return out
}

// crossDilate thickens lines: a pixel becomes a line pixel when at least two
// of its 4-cross neighborhood (center included) are line pixels.
func crossDilate(p *utils.GrayPlane) *utils.GrayPlane {
	out := utils.NewGrayPlane(p.Width, p.Height)
	offsets := [5][2]int{{0, 0}, {0, -1}, {0, 1}, {-1, 0}, {1, 0}}
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			count := 0
			for _, o := range offsets {
				if p.At(x+o[0], y+o[1]) == 255 {
					count++
				}
			}
			if count >= 2 {
				out.Pix[y*p.Width+x] = 255
			}
		}
	}
	return out
}

// boxClose fills pinholes: a pixel becomes a line pixel when at least two
// pixels of its 3x3 neighborhood already are.
func boxClose(p *utils.GrayPlane) *utils.GrayPlane {
	out := utils.NewGrayPlane(p.Width, p.Height)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			count := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if p.At(x+dx, y+dy) == 255 {
						count++
					}
				}
			}
			if count >= 2 {
				out.Pix[y*p.Width+x] = 255
			}
		}
	}
	return out
}

// maskToRaster converts a binary line mask into the hard-alpha RGBA arena:
// line pixels become opaque black, everything else fully transparent.
func maskToRaster(mask *utils.GrayPlane) *utils.Raster {
	r := utils.NewTransparentRaster(mask.Width, mask.Height)
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			i := r.Offset(x, y)
			if mask.Pix[y*mask.Width+x] == 255 {
				r.SetBlack(i)
			} else {
				r.SetTransparent(i)
			}
		}
	}
	return r
}

// fillGaps connects fragmented features: a transparent pixel becomes a line
// pixel when at least near opaque pixels sit in its 8-neighborhood and at
// least total within the given radius. Reads from a snapshot so the pass is
// order-independent and deterministic.
func fillGaps(r *utils.Raster, radius, near, total int) {
	if radius <= 0 {
		return
	}
	snap := mempool.GetBytes(len(r.Pix))
	defer mempool.PutBytes(snap)
	copy(snap, r.Pix)

	isLine := func(x, y int) bool {
		if x < 0 || x >= r.Width || y < 0 || y >= r.Height {
			return false
		}
		i := (y*r.Width + x) * 4
		return snap[i+3] == 255 && snap[i] == 0
	}

	for y := 1; y < r.Height-1; y++ {
		for x := 1; x < r.Width-1; x++ {
			idx := r.Offset(x, y)
			if r.Pix[idx+3] != 0 {
				continue
			}
			nearCount := 0
			totalCount := 0
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					if isLine(x+dx, y+dy) {
						totalCount++
						if dx >= -1 && dx <= 1 && dy >= -1 && dy <= 1 {
							nearCount++
						}
					}
				}
			}
			if nearCount >= near && totalCount >= total {
				r.SetBlack(idx)
			}
		}
	}
}

// bridgeLines draws straight pixel paths between pairs of nearby line pixels,
// closing gaps the neighborhood fill cannot reach.
func bridgeLines(r *utils.Raster, radius int) {
	if radius <= 0 {
		return
	}
	snap := mempool.GetBytes(len(r.Pix))
	defer mempool.PutBytes(snap)
	copy(snap, r.Pix)

	isLine := func(x, y int) bool {
		i := (y*r.Width + x) * 4
		return snap[i+3] == 255 && snap[i] == 0
	}

	for y := radius; y < r.Height-radius; y++ {
		for x := radius; x < r.Width-radius; x++ {
			if !isLine(x, y) {
				continue
			}
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					if isLine(x+dx, y+dy) {
						drawLine(r, x, y, x+dx, y+dy)
					}
				}
			}
		}
	}
}

// drawLine fills transparent pixels along the segment from (x1,y1) to (x2,y2).
func drawLine(r *utils.Raster, x1, y1, x2, y2 int) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	steps := dx
	if dy > steps {
		steps = dy
	}
	for i := 0; i <= steps; i++ {
		t := 0.0
		if steps > 0 {
			t = float64(i) / float64(steps)
		}
		x := x1 + int(float64(x2-x1)*t+0.5)
		y := y1 + int(float64(y2-y1)*t+0.5)
		idx := r.Offset(x, y)
		if r.Pix[idx+3] == 0 {
			r.SetBlack(idx)
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// removeIsolated reverts speckle: opaque pixels with fewer than minNeighbors
// opaque 8-neighbors become transparent again.
func removeIsolated(r *utils.Raster, minNeighbors int) {
	if minNeighbors <= 0 {
		return
	}
	snap := mempool.GetBytes(len(r.Pix))
	defer mempool.PutBytes(snap)
	copy(snap, r.Pix)

	for y := 1; y < r.Height-1; y++ {
		for x := 1; x < r.Width-1; x++ {
			idx := r.Offset(x, y)
			if snap[idx+3] != 255 || snap[idx] != 0 {
				continue
			}
			neighbors := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					ni := ((y+dy)*r.Width + (x + dx)) * 4
					if snap[ni+3] == 255 && snap[ni] == 0 {
						neighbors++
					}
				}
			}
			if neighbors < minNeighbors {
				r.SetTransparent(idx)
			}
		}
	}
}

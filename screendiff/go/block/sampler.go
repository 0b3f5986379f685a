// Package block contains the primitives of block-based screenshot comparison: sampling 16x16
// pixel blocks out of an image and deciding whether two blocks are equal within a tolerance.
package block

import (
	"image"
	"image/draw"
	"math"

	"github.com/nfnt/resize"
)

const (
	// Size is the width and height of a block in pixels.
	Size = 16

	// Pixels is the number of pixels in a full block, and the required length of a sample buffer.
	Pixels = Size * Size
)

// NewBuffer returns a scratch buffer large enough for any block.
func NewBuffer() []uint32 {
	return make([]uint32, Pixels)
}

// Sample copies the block with top-left corner (x, y) into buf as packed ARGB values, row-major
// with a stride of w. Pixels outside img are not sampled, so the returned w and h are smaller
// than Size for blocks on the right and bottom edges; only buf[:w*h] is valid afterwards.
// buf is not retained.
func Sample(img *image.NRGBA, x, y int, buf []uint32) (w, h int) {
	b := img.Bounds()
	x += b.Min.X
	y += b.Min.Y
	w = min(Size, b.Max.X-x)
	h = min(Size, b.Max.Y-y)
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	i := 0
	for row := 0; row < h; row++ {
		off := img.PixOffset(x, y+row)
		for col := 0; col < w; col++ {
			p := img.Pix[off : off+4 : off+4]
			buf[i] = uint32(p[3])<<24 | uint32(p[0])<<16 | uint32(p[1])<<8 | uint32(p[2])
			off += 4
			i++
		}
	}
	return w, h
}

// SamplingPolicy maps a captured image onto logical pixels. Screenshots taken on HiDPI displays
// have several physical pixels per logical (CSS) pixel, while references are usually stored at
// logical size.
type SamplingPolicy interface {
	// Logical returns img as an NRGBA image in logical pixels, with bounds starting at (0, 0).
	// The returned image may share memory with img and must not be modified.
	Logical(img image.Image) *image.NRGBA
}

// Exact treats every physical pixel as one logical pixel.
type Exact struct{}

// Logical implements SamplingPolicy.
func (Exact) Logical(img image.Image) *image.NRGBA {
	return ToNRGBA(img)
}

// BoxAverage averages every Ratio x Ratio square of physical pixels into one logical pixel.
// Squares cut off by the right or bottom edge average the pixels that exist.
type BoxAverage struct {
	Ratio int
}

// Logical implements SamplingPolicy.
func (p BoxAverage) Logical(img image.Image) *image.NRGBA {
	src := ToNRGBA(img)
	if p.Ratio <= 1 {
		return src
	}
	sw, sh := src.Rect.Dx(), src.Rect.Dy()
	dw := (sw + p.Ratio - 1) / p.Ratio
	dh := (sh + p.Ratio - 1) / p.Ratio
	dst := image.NewNRGBA(image.Rect(0, 0, dw, dh))
	for dy := 0; dy < dh; dy++ {
		for dx := 0; dx < dw; dx++ {
			var r, g, b, a, n uint32
			for sy := dy * p.Ratio; sy < min((dy+1)*p.Ratio, sh); sy++ {
				off := src.PixOffset(dx*p.Ratio, sy)
				for sx := dx * p.Ratio; sx < min((dx+1)*p.Ratio, sw); sx++ {
					r += uint32(src.Pix[off])
					g += uint32(src.Pix[off+1])
					b += uint32(src.Pix[off+2])
					a += uint32(src.Pix[off+3])
					off += 4
					n++
				}
			}
			d := dst.PixOffset(dx, dy)
			dst.Pix[d] = uint8((r + n/2) / n)
			dst.Pix[d+1] = uint8((g + n/2) / n)
			dst.Pix[d+2] = uint8((b + n/2) / n)
			dst.Pix[d+3] = uint8((a + n/2) / n)
		}
	}
	return dst
}

// Resample scales the image down by a fractional Ratio using the given interpolation.
type Resample struct {
	Ratio         float64
	Interpolation resize.InterpolationFunction
}

// Logical implements SamplingPolicy.
func (p Resample) Logical(img image.Image) *image.NRGBA {
	src := ToNRGBA(img)
	if p.Ratio <= 1 {
		return src
	}
	w := uint(math.Round(float64(src.Rect.Dx()) / p.Ratio))
	h := uint(math.Round(float64(src.Rect.Dy()) / p.Ratio))
	return ToNRGBA(resize.Resize(w, h, src, p.Interpolation))
}

// PolicyForRatio returns the policy for a capture with the given device pixel ratio: Exact for
// ratios up to 1, BoxAverage for integral ratios and bilinear Resample otherwise.
func PolicyForRatio(ratio float64) SamplingPolicy {
	if ratio <= 1 {
		return Exact{}
	}
	if ratio == math.Trunc(ratio) {
		return BoxAverage{Ratio: int(ratio)}
	}
	return Resample{Ratio: ratio, Interpolation: resize.Bilinear}
}

// ToNRGBA returns img as an *image.NRGBA whose bounds start at (0, 0). If img already is one,
// it is returned without copying.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	ret := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(ret, ret.Rect, img, b.Min, draw.Src)
	return ret
}

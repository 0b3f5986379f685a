package imgcmp

import (
	"image"
	"image/color"
	"image/draw"

	"go.skia.org/screendiff/go/skerr"
	"go.skia.org/screendiff/screendiff/go/block"
)

// CursorConfig tunes the cursor-blink filter. A text caret that blinks between the reference and
// the candidate shows up as a thin vertical stroke that is dark in one image and bright in the
// other.
type CursorConfig struct {
	// DarkLuminance and BrightLuminance are the luminance thresholds, in [0, 255], a pixel must
	// be below in one image and above in the other to be part of the caret.
	DarkLuminance   float64 `json:"dark_luminance"`
	BrightLuminance float64 `json:"bright_luminance"`

	// MinRunLength is the minimum height in pixels of the caret stroke in a pixel column. Shorter
	// runs still count if they touch the top or bottom of the examined region.
	MinRunLength int `json:"min_run_length"`

	// MaxBlockHeight is the maximum number of vertically adjacent failing blocks.
	MaxBlockHeight int `json:"max_block_height"`

	// MaxWidth is the maximum width of the caret in pixels.
	MaxWidth int `json:"max_width"`
}

// DefaultCursorConfig returns the thresholds that work for the carets of common browsers.
func DefaultCursorConfig() CursorConfig {
	return CursorConfig{
		DarkLuminance:   80,
		BrightLuminance: 150,
		MinRunLength:    5,
		MaxBlockHeight:  3,
		MaxWidth:        3,
	}
}

// Validate returns an error if the thresholds can't describe a caret.
func (c CursorConfig) Validate() error {
	if c.DarkLuminance < 0 || c.BrightLuminance > 255 || c.DarkLuminance >= c.BrightLuminance {
		return skerr.Fmt("cursor luminance thresholds must satisfy 0 <= dark < bright <= 255, got dark=%g bright=%g", c.DarkLuminance, c.BrightLuminance)
	}
	if c.MinRunLength < 1 || c.MaxBlockHeight < 1 || c.MaxWidth < 1 {
		return skerr.Fmt("cursor run length, block height and width must be positive, got %d, %d, %d", c.MinRunLength, c.MaxBlockHeight, c.MaxWidth)
	}
	return nil
}

// OnlyCursorDiffers returns true if every failing block in p.Diff can be explained by a text
// caret that is visible in only one of the images. It never modifies p.Reference, p.Candidate or
// p.Diff. Anything ambiguous returns false.
func (c CursorConfig) OnlyCursorDiffers(p *Params) bool {
	region, ok := c.candidateRegion(p)
	if !ok {
		return false
	}
	ref := clone(p.Reference, region)
	cand := clone(p.Candidate, region)
	caret, ok := c.findCaret(ref, cand)
	if !ok {
		return false
	}
	// Paint the reference over the caret and check whether anything else differs.
	for _, r := range caret {
		draw.Draw(cand, r, ref, r.Min, draw.Src)
	}
	return regionEqual(p, ref, cand)
}

// candidateRegion returns the pixel region spanned by the failing blocks, if they all lie in one
// block column and span at most MaxBlockHeight block rows. Passing blocks between failing ones
// are part of the region.
func (c CursorConfig) candidateRegion(p *Params) (image.Rectangle, bool) {
	failing := p.Diff.Blocks()
	if len(failing) == 0 {
		return image.Rectangle{}, false
	}
	// Blocks() is ordered row by row, so the first and last block bound the span.
	col, top, bottom := failing[0].X, failing[0].Y, failing[len(failing)-1].Y
	for _, b := range failing {
		if b.X != col {
			return image.Rectangle{}, false
		}
	}
	if bottom-top+1 > c.MaxBlockHeight {
		return image.Rectangle{}, false
	}
	r := image.Rect(col*block.Size, top*block.Size, (col+1)*block.Size, (bottom+1)*block.Size)
	return r.Intersect(image.Rect(0, 0, p.Width, p.Height)), true
}

// findCaret returns the caret stroke as one rectangle per pixel column, relative to the region.
// The columns must be adjacent and their runs must share at least one row.
func (c CursorConfig) findCaret(ref, cand *image.NRGBA) ([]image.Rectangle, bool) {
	w, h := ref.Rect.Dx(), ref.Rect.Dy()
	var runs []image.Rectangle
	top, bottom := 0, h
	for x := 0; x < w; x++ {
		start, length := c.longestRun(ref, cand, x, h)
		if length == 0 {
			continue
		}
		if length < c.MinRunLength && start != 0 && start+length != h {
			continue
		}
		if len(runs) > 0 && x != runs[len(runs)-1].Min.X+1 {
			return nil, false
		}
		top = max(top, start)
		bottom = min(bottom, start+length)
		if top >= bottom {
			return nil, false
		}
		runs = append(runs, image.Rect(x, start, x+1, start+length))
	}
	if len(runs) == 0 || len(runs) > c.MaxWidth {
		return nil, false
	}
	return runs, true
}

// longestRun returns the start and length of the longest run of caret pixels in column x.
func (c CursorConfig) longestRun(ref, cand *image.NRGBA, x, h int) (int, int) {
	bestStart, bestLen := 0, 0
	start, length := 0, 0
	for y := 0; y < h; y++ {
		if !c.isCaretPixel(ref.NRGBAAt(x, y), cand.NRGBAAt(x, y)) {
			length = 0
			continue
		}
		if length == 0 {
			start = y
		}
		length++
		if length > bestLen {
			bestStart, bestLen = start, length
		}
	}
	return bestStart, bestLen
}

func (c CursorConfig) isCaretPixel(a, b color.NRGBA) bool {
	la, lb := luminance(a), luminance(b)
	return (la < c.DarkLuminance && lb > c.BrightLuminance) || (lb < c.DarkLuminance && la > c.BrightLuminance)
}

// luminance returns the Rec. 601 luma of an sRGB pixel, in [0, 255].
func luminance(p color.NRGBA) float64 {
	return 0.299*float64(p.R) + 0.587*float64(p.G) + 0.114*float64(p.B)
}

// clone copies region r of img into a new image with bounds starting at (0, 0).
func clone(img *image.NRGBA, r image.Rectangle) *image.NRGBA {
	ret := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(ret, ret.Rect, img, r.Min.Add(img.Rect.Min), draw.Src)
	return ret
}

// Package imgcmp compares a freshly captured screenshot with a reference image block by block,
// tolerating small rendering noise and a blinking text cursor.
package imgcmp

import (
	"image"
	"math"

	"go.skia.org/screendiff/go/skerr"
	"go.skia.org/screendiff/screendiff/go/block"
)

// DefaultTolerance allows a mean RGB deviation of 2.5% per block.
const DefaultTolerance = 0.025

// Options control a comparison.
type Options struct {
	// Tolerance is the maximum normalized RGB difference of a block, in [0, 1].
	Tolerance float64

	// ReferencePolicy and CandidatePolicy map the images onto logical pixels. nil means
	// block.Exact.
	ReferencePolicy block.SamplingPolicy
	CandidatePolicy block.SamplingPolicy

	// Cursor enables the cursor-blink filter. nil disables it.
	Cursor *CursorConfig
}

// DefaultOptions returns the default tolerance with the cursor filter enabled.
func DefaultOptions() Options {
	c := DefaultCursorConfig()
	return Options{
		Tolerance: DefaultTolerance,
		Cursor:    &c,
	}
}

// Validate returns an error if the options are unusable.
func (o Options) Validate() error {
	if math.IsNaN(o.Tolerance) || o.Tolerance < 0 || o.Tolerance > 1 {
		return skerr.Fmt("tolerance must be in [0, 1], was %g", o.Tolerance)
	}
	if o.Cursor != nil {
		if err := o.Cursor.Validate(); err != nil {
			return skerr.Wrap(err)
		}
	}
	return nil
}

// Result describes the outcome of a comparison.
type Result struct {
	// SizesDiffer is true if the images have different logical dimensions. Only their shared
	// top-left region is compared.
	SizesDiffer   bool
	ReferenceSize image.Point
	CandidateSize image.Point

	// Diff marks the blocks that differ beyond the tolerance. It is left intact when the cursor
	// filter forgives the difference.
	Diff *DifferenceMap

	// BlocksEqual is true if no block differs, or the only difference is a text cursor.
	BlocksEqual bool

	// CursorForgiven is true if the differing blocks were attributed to a text cursor.
	CursorForgiven bool
}

// Equal returns true if the images have the same size and equal content.
func (r *Result) Equal() bool {
	return r.BlocksEqual && !r.SizesDiffer
}

// Compare compares the candidate screenshot against the reference. The only errors are invalid
// options or missing images; differences are reported in the Result.
func Compare(ref, cand image.Image, opts Options) (*Result, error) {
	if ref == nil || cand == nil {
		return nil, skerr.Fmt("both a reference and a candidate image are required")
	}
	if err := opts.Validate(); err != nil {
		return nil, skerr.Wrap(err)
	}
	refImg := logical(opts.ReferencePolicy, ref)
	candImg := logical(opts.CandidatePolicy, cand)

	p := NewParams(refImg, candImg, opts.Tolerance)
	res := &Result{
		ReferenceSize: refImg.Rect.Size(),
		CandidateSize: candImg.Rect.Size(),
		Diff:          p.Diff,
	}
	res.SizesDiffer = res.ReferenceSize != res.CandidateSize
	res.BlocksEqual = CompareBlocks(p)
	if !res.BlocksEqual && opts.Cursor != nil && opts.Cursor.OnlyCursorDiffers(p) {
		res.BlocksEqual = true
		res.CursorForgiven = true
	}
	return res, nil
}

func logical(policy block.SamplingPolicy, img image.Image) *image.NRGBA {
	if policy == nil {
		policy = block.Exact{}
	}
	return policy.Logical(img)
}

// CompareBlocks compares every block of p.Reference and p.Candidate, filling in p.Diff. It
// returns true if no block differs.
func CompareBlocks(p *Params) bool {
	equal := true
	for by := 0; by < p.YBlocks; by++ {
		for bx := 0; bx < p.XBlocks; bx++ {
			differs := !blockEqual(p, p.Reference, p.Candidate, bx*block.Size, by*block.Size)
			p.Diff.Set(bx, by, differs)
			if differs {
				equal = false
			}
		}
	}
	return equal
}

// regionEqual compares two images of the same size block by block using the scratch buffers of
// p, without touching p.Diff.
func regionEqual(p *Params, ref, cand *image.NRGBA) bool {
	for y := 0; y < ref.Rect.Dy(); y += block.Size {
		for x := 0; x < ref.Rect.Dx(); x += block.Size {
			if !blockEqual(p, ref, cand, x, y) {
				return false
			}
		}
	}
	return true
}

func blockEqual(p *Params, ref, cand *image.NRGBA, x, y int) bool {
	w, h := block.Sample(ref, x, y, p.RefBlock)
	block.Sample(cand, x, y, p.CandBlock)
	n := w * h
	return block.Equal(p.RefBlock[:n], p.CandBlock[:n], p.Tolerance)
}

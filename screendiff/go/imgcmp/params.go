package imgcmp

import (
	"fmt"
	"image"
	"strings"

	"go.skia.org/screendiff/screendiff/go/block"
)

// DifferenceMap records which blocks of a comparison differ beyond the tolerance.
type DifferenceMap struct {
	Cols  int
	Rows  int
	cells []bool
}

// NewDifferenceMap returns a map with every block marked equal.
func NewDifferenceMap(cols, rows int) *DifferenceMap {
	return &DifferenceMap{
		Cols:  cols,
		Rows:  rows,
		cells: make([]bool, cols*rows),
	}
}

// Get returns true if block (x, y) differs.
func (d *DifferenceMap) Get(x, y int) bool {
	return d.cells[y*d.Cols+x]
}

// Set marks block (x, y) as differing or not.
func (d *DifferenceMap) Set(x, y int, differs bool) {
	d.cells[y*d.Cols+x] = differs
}

// Count returns the number of differing blocks.
func (d *DifferenceMap) Count() int {
	n := 0
	for _, c := range d.cells {
		if c {
			n++
		}
	}
	return n
}

// Blocks returns the block coordinates of the differing blocks, row by row.
func (d *DifferenceMap) Blocks() []image.Point {
	var ret []image.Point
	for y := 0; y < d.Rows; y++ {
		for x := 0; x < d.Cols; x++ {
			if d.Get(x, y) {
				ret = append(ret, image.Pt(x, y))
			}
		}
	}
	return ret
}

// String renders the map one row per line, with X for differing blocks.
func (d *DifferenceMap) String() string {
	var sb strings.Builder
	for y := 0; y < d.Rows; y++ {
		for x := 0; x < d.Cols; x++ {
			if d.Get(x, y) {
				sb.WriteByte('X')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Rect returns the pixel rectangle covered by block p, clipped to bounds.
func (d *DifferenceMap) Rect(p image.Point, bounds image.Rectangle) image.Rectangle {
	r := image.Rect(p.X*block.Size, p.Y*block.Size, (p.X+1)*block.Size, (p.Y+1)*block.Size)
	return r.Add(bounds.Min).Intersect(bounds)
}

// Params carries the state of a single comparison through the block pipeline so that the
// thousands of block comparisons of a large screenshot don't allocate. A Params is owned by one
// call and must not be shared between goroutines.
type Params struct {
	// Reference and Candidate are the logical-pixel images, cropped to the region they share.
	Reference *image.NRGBA
	Candidate *image.NRGBA

	// Width and Height of the shared region.
	Width  int
	Height int

	// XBlocks and YBlocks are the number of block columns and rows, including partial blocks at
	// the right and bottom edges.
	XBlocks int
	YBlocks int

	// RefBlock and CandBlock are scratch buffers for the block sampler.
	RefBlock  []uint32
	CandBlock []uint32

	Diff      *DifferenceMap
	Tolerance float64
}

// NewParams crops ref and cand to their shared top-left region and allocates the scratch state.
func NewParams(ref, cand *image.NRGBA, tolerance float64) *Params {
	w := min(ref.Rect.Dx(), cand.Rect.Dx())
	h := min(ref.Rect.Dy(), cand.Rect.Dy())
	xBlocks := (w + block.Size - 1) / block.Size
	yBlocks := (h + block.Size - 1) / block.Size
	return &Params{
		Reference: crop(ref, w, h),
		Candidate: crop(cand, w, h),
		Width:     w,
		Height:    h,
		XBlocks:   xBlocks,
		YBlocks:   yBlocks,
		RefBlock:  block.NewBuffer(),
		CandBlock: block.NewBuffer(),
		Diff:      NewDifferenceMap(xBlocks, yBlocks),
		Tolerance: tolerance,
	}
}

func crop(img *image.NRGBA, w, h int) *image.NRGBA {
	if img.Rect.Dx() == w && img.Rect.Dy() == h {
		return img
	}
	return img.SubImage(image.Rect(0, 0, w, h).Add(img.Rect.Min)).(*image.NRGBA)
}

func (p *Params) String() string {
	return fmt.Sprintf("%dx%d (%dx%d blocks, tolerance %g)", p.Width, p.Height, p.XBlocks, p.YBlocks, p.Tolerance)
}

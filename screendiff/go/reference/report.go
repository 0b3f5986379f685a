package reference

import (
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fogleman/gg"
	"go.skia.org/screendiff/go/fileutil"
	"go.skia.org/screendiff/go/now"
	"go.skia.org/screendiff/go/skerr"
	"go.skia.org/screendiff/go/util"
	"go.skia.org/screendiff/screendiff/go/imgcmp"
)

const (
	diffSuffix   = ".diff.png"
	reportSuffix = ".json"
)

// Report is the JSON sidecar written next to an archived screenshot.
type Report struct {
	Name string `json:"name"`

	// Missing is true if no reference existed.
	Missing bool `json:"missing"`

	// Reference is the path of the closest reference the screenshot was compared against.
	Reference string `json:"reference,omitempty"`

	ReferenceSize  image.Point   `json:"reference_size"`
	CandidateSize  image.Point   `json:"candidate_size"`
	SizesDiffer    bool          `json:"sizes_differ"`
	FailingBlocks  []image.Point `json:"failing_blocks,omitempty"`
	CursorForgiven bool          `json:"cursor_forgiven"`

	Timestamp time.Time `json:"timestamp"`
}

// Reporter archives failed screenshots into an error directory.
type Reporter struct {
	dir string
}

// NewReporter returns a Reporter that writes into dir, creating it on first use.
func NewReporter(dir string) *Reporter {
	return &Reporter{dir: dir}
}

// Dir returns the error directory.
func (r *Reporter) Dir() string {
	return r.dir
}

// ScreenshotPath returns the path the screenshot for the named reference is archived at.
func (r *Reporter) ScreenshotPath(name string) string {
	return filepath.Join(r.dir, name+Ext)
}

// DiffPath returns the path of the difference overlay for the named reference.
func (r *Reporter) DiffPath(name string) string {
	return filepath.Join(r.dir, name+diffSuffix)
}

// ReportPath returns the path of the JSON sidecar for the named reference.
func (r *Reporter) ReportPath(name string) string {
	return filepath.Join(r.dir, name+reportSuffix)
}

// WriteMissing archives a screenshot for which no reference exists.
func (r *Reporter) WriteMissing(ctx context.Context, name string, img image.Image) error {
	if _, err := fileutil.EnsureDirExists(r.dir); err != nil {
		return skerr.Wrap(err)
	}
	if err := writePNG(r.ScreenshotPath(name), img); err != nil {
		return skerr.Wrap(err)
	}
	util.Remove(r.DiffPath(name))
	b := img.Bounds().Size()
	return r.writeReport(&Report{
		Name:          name,
		Missing:       true,
		CandidateSize: b,
		Timestamp:     now.Now(ctx),
	})
}

// WriteFailure archives a screenshot that matched none of the references, with an overlay that
// outlines the failing blocks of the comparison against the closest reference.
func (r *Reporter) WriteFailure(ctx context.Context, name string, img image.Image, reference string, res *imgcmp.Result) error {
	if _, err := fileutil.EnsureDirExists(r.dir); err != nil {
		return skerr.Wrap(err)
	}
	if err := writePNG(r.ScreenshotPath(name), img); err != nil {
		return skerr.Wrap(err)
	}
	if err := writePNG(r.DiffPath(name), DiffOverlay(img, res)); err != nil {
		return skerr.Wrap(err)
	}
	return r.writeReport(&Report{
		Name:           name,
		Reference:      reference,
		ReferenceSize:  res.ReferenceSize,
		CandidateSize:  res.CandidateSize,
		SizesDiffer:    res.SizesDiffer,
		FailingBlocks:  res.Diff.Blocks(),
		CursorForgiven: res.CursorForgiven,
		Timestamp:      now.Now(ctx),
	})
}

// Clear removes any archived artifacts for the named reference, e.g. after it passes.
func (r *Reporter) Clear(name string) error {
	for _, p := range []string{r.ScreenshotPath(name), r.DiffPath(name), r.ReportPath(name)} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return skerr.Wrapf(err, "clearing %s", p)
		}
	}
	return nil
}

// ReadReport reads the JSON sidecar for the named reference.
func (r *Reporter) ReadReport(name string) (*Report, error) {
	var ret Report
	err := util.WithReadFile(r.ReportPath(name), func(f io.Reader) error {
		return json.NewDecoder(f).Decode(&ret)
	})
	if err != nil {
		return nil, skerr.Wrapf(err, "reading report for %s", name)
	}
	return &ret, nil
}

func (r *Reporter) writeReport(rep *Report) error {
	p := r.ReportPath(rep.Name)
	err := util.WithWriteFile(p, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	})
	return skerr.Wrapf(err, "writing report %s", p)
}

// DiffOverlay returns a copy of img with a red outline around every failing block of res.
func DiffOverlay(img image.Image, res *imgcmp.Result) image.Image {
	dc := gg.NewContextForImage(img)
	shared := image.Rect(0, 0, min(res.ReferenceSize.X, res.CandidateSize.X), min(res.ReferenceSize.Y, res.CandidateSize.Y))
	dc.SetRGB(1, 0, 0)
	dc.SetLineWidth(1)
	for _, p := range res.Diff.Blocks() {
		rect := res.Diff.Rect(p, shared)
		dc.DrawRectangle(float64(rect.Min.X)+0.5, float64(rect.Min.Y)+0.5, float64(rect.Dx()-1), float64(rect.Dy()-1))
	}
	dc.Stroke()
	return dc.Image()
}

func writePNG(path string, img image.Image) error {
	err := util.WithWriteFile(path, func(w io.Writer) error {
		encoder := png.Encoder{CompressionLevel: png.BestSpeed}
		return encoder.Encode(w, img)
	})
	return skerr.Wrapf(err, "writing %s", path)
}

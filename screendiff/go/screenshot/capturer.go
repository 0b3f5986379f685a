// Package screenshot connects screenshot sources, such as a WebDriver session, to the reference
// verifier, and retries flaky captures the way a UI test would.
package screenshot

import (
	"context"
	"image"
	_ "image/png"
	"io"

	"go.skia.org/screendiff/go/skerr"
	"go.skia.org/screendiff/go/util"
	_ "go.skia.org/screendiff/screendiff/go/image/text"
)

// Capturer takes a screenshot of the current state of the page under test.
type Capturer interface {
	Capture(ctx context.Context) (image.Image, error)
}

// CapturerFunc adapts a function to the Capturer interface.
type CapturerFunc func(ctx context.Context) (image.Image, error)

// Capture implements Capturer.
func (f CapturerFunc) Capture(ctx context.Context) (image.Image, error) {
	return f(ctx)
}

// FileCapturer "captures" an image that was saved to disk by another tool, either as a PNG or
// in the SKTEXTSIMPLE text format.
type FileCapturer struct {
	Path string
}

// Capture implements Capturer.
func (f FileCapturer) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, skerr.Wrap(err)
	}
	var img image.Image
	err := util.WithReadFile(f.Path, func(r io.Reader) error {
		var err error
		img, _, err = image.Decode(r)
		return err
	})
	if err != nil {
		return nil, skerr.Wrapf(err, "reading screenshot %s", f.Path)
	}
	return img, nil
}

var _ Capturer = FileCapturer{}
var _ Capturer = CapturerFunc(nil)

package screenshot

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/tebeka/selenium"
	"go.skia.org/screendiff/go/skerr"
	"go.skia.org/screendiff/screendiff/go/reference"
)

// Session is the part of selenium.WebDriver needed to take and identify screenshots.
type Session interface {
	Screenshot() ([]byte, error)
	Capabilities() (selenium.Capabilities, error)
}

var _ Session = selenium.WebDriver(nil)

// WebDriverCapturer captures the viewport of a WebDriver session.
type WebDriverCapturer struct {
	session Session
}

// NewWebDriverCapturer returns a Capturer for the given session, usually a selenium.WebDriver.
func NewWebDriverCapturer(session Session) *WebDriverCapturer {
	return &WebDriverCapturer{session: session}
}

// Capture implements Capturer.
func (w *WebDriverCapturer) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, skerr.Wrap(err)
	}
	b, err := w.session.Screenshot()
	if err != nil {
		return nil, skerr.Wrapf(err, "taking screenshot")
	}
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, skerr.Wrapf(err, "decoding screenshot")
	}
	return img, nil
}

// Descriptor returns the reference descriptor for the screenshot id in this session.
func (w *WebDriverCapturer) Descriptor(id string) (reference.Descriptor, error) {
	caps, err := w.session.Capabilities()
	if err != nil {
		return reference.Descriptor{}, skerr.Wrapf(err, "reading session capabilities")
	}
	return DescriptorFromCapabilities(id, caps), nil
}

// DescriptorFromCapabilities builds a reference descriptor from WebDriver capabilities. Both
// the W3C names (platformName, browserVersion) and the legacy ones (platform, version) are
// understood.
func DescriptorFromCapabilities(id string, caps selenium.Capabilities) reference.Descriptor {
	return reference.Descriptor{
		ID:       id,
		Browser:  capability(caps, "browserName"),
		Platform: capability(caps, "platformName", "platform"),
		Version:  capability(caps, "browserVersion", "version"),
	}
}

func capability(caps selenium.Capabilities, keys ...string) string {
	for _, k := range keys {
		v, ok := caps[k]
		if !ok || v == nil {
			continue
		}
		s := fmt.Sprint(v)
		if s != "" {
			return s
		}
	}
	return ""
}

var _ Capturer = (*WebDriverCapturer)(nil)

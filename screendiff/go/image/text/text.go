// Package text contains an image plain text file format encoder and decoder, used to write
// screenshot fixtures inline in tests.
//
// The format looks like:
//
//	! SKTEXTSIMPLE
//	width height
//	0x000000ff 0xffffffff ...
//	0xddddddff 0xffffff88 ...
//
// Where the pixel values are encoded as 0xRRGGBBAA. Grayscale opaque pixels can be written as
// 0xXX, so "0xaa" is the same pixel as "0xaaaaaaff".
package text

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"io"
	"strconv"
	"strings"

	"go.skia.org/screendiff/go/skerr"
	"go.skia.org/screendiff/screendiff/go/block"
)

const skTextHeader = "! SKTEXTSIMPLE"

// lines returns the non-empty lines of r with surrounding whitespace removed, so fixtures can be
// indented inline in tests.
func lines(r io.Reader) ([]string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, skerr.Wrapf(err, "reading SKTEXT file")
	}
	var ret []string
	for _, l := range strings.Split(string(b), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			ret = append(ret, l)
		}
	}
	return ret, nil
}

// dim parses the header and returns the dimensions of the image.
func dim(lines []string) (int, int, error) {
	if len(lines) < 2 || lines[0] != skTextHeader {
		return 0, 0, skerr.Fmt("not a valid SKTEXT file: missing %q header or dimensions", skTextHeader)
	}
	var width, height int
	if n, err := fmt.Sscanf(lines[1], "%d %d", &width, &height); err != nil || n != 2 {
		return 0, 0, skerr.Fmt("not a valid SKTEXT file: bad dimensions %q", lines[1])
	}
	return width, height, nil
}

func parsePixel(h string) (color.NRGBA, error) {
	if !strings.HasPrefix(h, "0x") || (len(h) != 4 && len(h) != 10) {
		return color.NRGBA{}, skerr.Fmt("invalid pixel format, must be 0xRRGGBBAA or 0xXX, got %q", h)
	}
	pixel, err := strconv.ParseUint(h, 0, 32)
	if err != nil {
		return color.NRGBA{}, skerr.Wrapf(err, "parsing pixel %q", h)
	}
	if len(h) == 4 {
		v := uint8(pixel)
		return color.NRGBA{R: v, G: v, B: v, A: 0xff}, nil
	}
	return color.NRGBA{
		R: uint8(pixel >> 24),
		G: uint8(pixel >> 16),
		B: uint8(pixel >> 8),
		A: uint8(pixel),
	}, nil
}

// Decode reads an SKTEXT image from r. The returned image is always an *image.NRGBA.
func Decode(r io.Reader) (image.Image, error) {
	ls, err := lines(r)
	if err != nil {
		return nil, err
	}
	width, height, err := dim(ls)
	if err != nil {
		return nil, err
	}
	rows := ls[2:]
	if len(rows) != height {
		return nil, skerr.Fmt("got %d rows, want %d", len(rows), height)
	}
	ret := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y, row := range rows {
		fields := strings.Fields(row)
		if len(fields) != width {
			return nil, skerr.Fmt("row %d has %d pixels, want %d", y, len(fields), width)
		}
		for x, f := range fields {
			c, err := parsePixel(f)
			if err != nil {
				return nil, skerr.Wrapf(err, "row %d", y)
			}
			ret.SetNRGBA(x, y, c)
		}
	}
	return ret, nil
}

// DecodeConfig returns the color model and dimensions of SKTEXT image without
// decoding the pixels.
func DecodeConfig(r io.Reader) (image.Config, error) {
	ls, err := lines(r)
	if err != nil {
		return image.Config{}, err
	}
	width, height, err := dim(ls)
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{
		ColorModel: color.NRGBAModel,
		Width:      width,
		Height:     height,
	}, nil
}

// Encode writes img in SKTEXT format.
func Encode(w io.Writer, img image.Image) error {
	m := block.ToNRGBA(img)
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\n%d %d\n", skTextHeader, m.Rect.Dx(), m.Rect.Dy())
	for y := 0; y < m.Rect.Dy(); y++ {
		for x := 0; x < m.Rect.Dx(); x++ {
			if x > 0 {
				bw.WriteByte(' ')
			}
			c := m.NRGBAAt(x, y)
			fmt.Fprintf(bw, "0x%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
		}
		bw.WriteByte('\n')
	}
	return skerr.Wrap(bw.Flush())
}

func init() {
	image.RegisterFormat("sktext", skTextHeader, Decode, DecodeConfig)
}

// MustToNRGBA returns an *image.NRGBA from a given string, which is assumed to be an image in the
// SKTEXTSIMPLE "codec". It panics if the string cannot be processed into an image, suitable only
// for testing code.
func MustToNRGBA(s string) *image.NRGBA {
	img, err := Decode(strings.NewReader(s))
	if err != nil {
		// This indicates an error with the static test data.
		panic(fmt.Sprintf("Failed to decode a valid image: %s", err))
	}
	return img.(*image.NRGBA)
}

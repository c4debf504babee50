// Package imaging turns uploaded bytes into the upright, opaque RGB image the
// similarity model scores.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	apperrors "challenge-verifier/internal/common/errors"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image is a decoded upload.
type Image struct {
	// RGBA is upright, origin-anchored and fully opaque.
	RGBA        *image.RGBA
	Format      string
	Orientation int
}

func (i *Image) Width() int  { return i.RGBA.Bounds().Dx() }
func (i *Image) Height() int { return i.RGBA.Bounds().Dy() }

// Limits bounds the pixel dimensions Decode accepts. A zero field is not
// enforced.
type Limits struct {
	MaxSide   int
	MaxPixels int64
}

// DefaultLimits admits 50 megapixel phone photos.
func DefaultLimits() Limits {
	return Limits{MaxSide: 10000, MaxPixels: 50_000_000}
}

func (l Limits) check(w, h int) error {
	if l.MaxSide > 0 && (w > l.MaxSide || h > l.MaxSide) {
		return fmt.Errorf("%dx%d exceeds the %d pixel side limit", w, h, l.MaxSide)
	}
	if l.MaxPixels > 0 && int64(w)*int64(h) > l.MaxPixels {
		return fmt.Errorf("%dx%d exceeds the %d pixel limit", w, h, l.MaxPixels)
	}
	return nil
}

// Decode reads any supported format (jpeg, png, gif, webp, bmp, tiff), applies
// the EXIF orientation and flattens the result to opaque RGB. Bytes that are
// not an image, or whose header declares dimensions beyond limits, yield an
// INVALID_INPUT error before any pixel buffer is allocated.
func Decode(data []byte, limits Limits) (*Image, error) {
	if len(data) == 0 {
		return nil, apperrors.NewInvalidInputError("invalid image", "empty upload")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewInvalidInputError("invalid image", err.Error())
	}
	if err := limits.check(cfg.Width, cfg.Height); err != nil {
		return nil, apperrors.NewInvalidInputError("image too large", fmt.Sprintf("%s image %v", format, err))
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewInvalidInputError("invalid image", err.Error())
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, apperrors.NewInvalidInputError("invalid image", fmt.Sprintf("%s image has no pixels", format))
	}

	orientation := ReadOrientation(data, format)
	rgba := Orient(ToRGB(src), orientation)

	return &Image{RGBA: rgba, Format: format, Orientation: orientation}, nil
}

// ToRGB copies img into an origin-anchored RGBA with alpha dropped. Each pixel
// keeps its stored, unpremultiplied colour, so a transparent pixel shows the
// colour it carries rather than a background.
func ToRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	}

	if src, ok := img.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			s := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			d := dst.Pix[dst.PixOffset(0, y):]
			for x := 0; x < b.Dx(); x++ {
				i := x * 4
				d[i], d[i+1], d[i+2], d[i+3] = s[i], s[i+1], s[i+2], 0xff
			}
		}
		return dst
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			dst.SetRGBA(x-b.Min.X, y-b.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return dst
}

package imaging

import (
	"bytes"
	"image"

	"github.com/bep/imagemeta"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

const orientationNormal = 1

var metaFormats = map[string]imagemeta.ImageFormat{
	"jpeg": imagemeta.JPEG,
	"png":  imagemeta.PNG,
	"webp": imagemeta.WebP,
	"tiff": imagemeta.TIFF,
}

// ReadOrientation returns the EXIF orientation (1-8) of an encoded image, or 1
// when the format carries no EXIF or the tag is missing or unreadable.
func ReadOrientation(data []byte, format string) int {
	imgFormat, ok := metaFormats[format]
	if !ok {
		return orientationNormal
	}

	orientation := orientationNormal
	_, err := imagemeta.Decode(imagemeta.Options{
		R:           bytes.NewReader(data),
		ImageFormat: imgFormat,
		Sources:     imagemeta.EXIF,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			return ti.Tag == "Orientation"
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			if v, ok := tagInt(ti.Value); ok && v >= 1 && v <= 8 {
				orientation = v
			}
			return nil
		},
	})
	if err != nil {
		return orientationNormal
	}
	return orientation
}

func tagInt(v any) (int, bool) {
	switch n := v.(type) {
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint8:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case []uint16:
		if len(n) > 0 {
			return int(n[0]), true
		}
	}
	return 0, false
}

// Orient returns img turned upright for the given EXIF orientation. img must
// be anchored at the origin.
func Orient(img *image.RGBA, orientation int) *image.RGBA {
	if orientation <= orientationNormal || orientation > 8 {
		return img
	}
	w := float64(img.Bounds().Dx())
	h := float64(img.Bounds().Dy())

	var s2d f64.Aff3
	swap := false
	switch orientation {
	case 2: // mirror horizontal
		s2d = f64.Aff3{-1, 0, w, 0, 1, 0}
	case 3: // rotate 180
		s2d = f64.Aff3{-1, 0, w, 0, -1, h}
	case 4: // mirror vertical
		s2d = f64.Aff3{1, 0, 0, 0, -1, h}
	case 5: // transpose
		s2d, swap = f64.Aff3{0, 1, 0, 1, 0, 0}, true
	case 6: // rotate 90 clockwise
		s2d, swap = f64.Aff3{0, -1, h, 1, 0, 0}, true
	case 7: // transverse
		s2d, swap = f64.Aff3{0, -1, h, -1, 0, w}, true
	case 8: // rotate 90 counter-clockwise
		s2d, swap = f64.Aff3{0, 1, 0, -1, 0, w}, true
	}

	dw, dh := img.Bounds().Dx(), img.Bounds().Dy()
	if swap {
		dw, dh = dh, dw
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.NearestNeighbor.Transform(dst, s2d, img, img.Bounds(), draw.Src, nil)
	return dst
}

package oracle

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// CLIP image normalisation constants (RGB order).
var (
	clipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	clipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// preprocessImage resizes the shorter side of img to size with bicubic
// filtering, centre-crops a size x size square and returns the pixels as a
// normalised CHW float32 tensor.
func preprocessImage(img image.Image, size int) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return make([]float32, 3*size*size)
	}

	scale := float64(size) / float64(min(w, h))
	rw := max(size, int(math.Round(float64(w)*scale)))
	rh := max(size, int(math.Round(float64(h)*scale)))

	resized := image.NewRGBA(image.Rect(0, 0, rw, rh))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, b, draw.Src, nil)

	x0 := (rw - size) / 2
	y0 := (rh - size) / 2
	plane := size * size
	out := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		row := resized.Pix[(y0+y)*resized.Stride:]
		for x := 0; x < size; x++ {
			px := row[(x0+x)*4:]
			i := y*size + x
			for c := 0; c < 3; c++ {
				out[c*plane+i] = (float32(px[c])/255 - clipMean[c]) / clipStd[c]
			}
		}
	}
	return out
}

func l2Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

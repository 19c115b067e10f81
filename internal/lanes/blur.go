package lanes

import (
	"math"

	"github.com/MeKo-Tech/lanedetect/internal/mempool"
)

// gaussianKernel returns a normalized 1-D kernel with radius ceil(3σ).
func gaussianKernel(sigma float64) []float32 {
	radius := int(math.Ceil(3 * sigma))
	if radius < 1 {
		radius = 1
	}
	k := make([]float32, 2*radius+1)
	var sum float64
	denom := 2 * sigma * sigma
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / denom)
		k[i+radius] = float32(v)
		sum += v
	}
	for i := range k {
		k[i] = float32(float64(k[i]) / sum)
	}
	return k
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// GaussianBlur smooths g with a separable kernel of standard deviation sigma.
// Borders replicate the nearest pixel, so a uniform image passes through unchanged.
// A non-positive sigma returns a plain copy.
func GaussianBlur(g *GrayImage, sigma float64) *FloatImage {
	out := NewFloatImage(g.Width, g.Height)
	for i, v := range g.Pix {
		out.Pix[i] = float32(v)
	}
	if sigma <= 0 {
		return out
	}
	return blurFloat(out, sigma)
}

// blurFloat overwrites src with its smoothed values and returns it.
func blurFloat(src *FloatImage, sigma float64) *FloatImage {
	w, h := src.Width, src.Height
	k := gaussianKernel(sigma)
	r := len(k) / 2

	tmp := mempool.GetFloat32(w * h)
	defer mempool.PutFloat32(tmp)

	for y := range h {
		row := src.Pix[y*w : (y+1)*w]
		dst := tmp[y*w : (y+1)*w]
		for x := range w {
			var acc float32
			for i, kv := range k {
				acc += kv * row[clampIndex(x+i-r, w)]
			}
			dst[x] = acc
		}
	}
	for y := range h {
		for x := range w {
			var acc float32
			for i, kv := range k {
				acc += kv * tmp[clampIndex(y+i-r, h)*w+x]
			}
			src.Pix[y*w+x] = acc
		}
	}
	return src
}

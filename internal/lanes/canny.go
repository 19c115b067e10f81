package lanes

import (
	"math"

	"github.com/MeKo-Tech/lanedetect/internal/mempool"
)

// CannyOptions configures the edge extractor. Thresholds apply to the
// unnormalized 3×3 Sobel gradient magnitude.
type CannyOptions struct {
	Low       float64 `mapstructure:"low" yaml:"low" json:"low"`
	High      float64 `mapstructure:"high" yaml:"high" json:"high"`
	BlurSigma float64 `mapstructure:"blur_sigma" yaml:"blur_sigma" json:"blur_sigma"`
}

// DefaultCannyOptions returns the 50/150 hysteresis pair with a light pre-blur.
func DefaultCannyOptions() CannyOptions {
	return CannyOptions{Low: 50, High: 150, BlurSigma: 1.4}
}

// gradient sectors used by non-maximum suppression
const (
	sectorHorizontal uint8 = iota // compare left and right
	sectorDiagDown                // compare (x+1,y+1) and (x-1,y-1)
	sectorVertical                // compare above and below
	sectorDiagUp                  // compare (x-1,y+1) and (x+1,y-1)
)

func gradientSector(gx, gy float32) uint8 {
	angle := math.Atan2(float64(gy), float64(gx)) * 180 / math.Pi
	if angle < 0 {
		angle += 180
	}
	switch {
	case angle < 22.5 || angle >= 157.5:
		return sectorHorizontal
	case angle < 67.5:
		return sectorDiagDown
	case angle < 112.5:
		return sectorVertical
	default:
		return sectorDiagUp
	}
}

// Canny returns a binary edge map (0 or 255) of the same size as g.
// The one pixel border never carries edges.
func Canny(g *GrayImage, opts CannyOptions) *GrayImage {
	w, h := g.Width, g.Height
	out := NewGrayImage(w, h)
	if w < 3 || h < 3 {
		return out
	}

	src := NewFloatImage(w, h)
	for i, v := range g.Pix {
		src.Pix[i] = float32(v)
	}
	if opts.BlurSigma > 0 {
		blurFloat(src, opts.BlurSigma)
	}

	n := w * h
	mag := mempool.GetFloat32(n)
	defer mempool.PutFloat32(mag)
	clear(mag)
	sectors := make([]uint8, n)

	p := src.Pix
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			gx := -p[i-w-1] + p[i-w+1] - 2*p[i-1] + 2*p[i+1] - p[i+w-1] + p[i+w+1]
			gy := -p[i-w-1] - 2*p[i-w] - p[i-w+1] + p[i+w-1] + 2*p[i+w] + p[i+w+1]
			m := float32(math.Sqrt(float64(gx*gx + gy*gy)))
			mag[i] = m
			if m > 0 {
				sectors[i] = gradientSector(gx, gy)
			}
		}
	}

	thin := mempool.GetFloat32(n)
	defer mempool.PutFloat32(thin)
	clear(thin)
	low := float32(opts.Low)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			m := mag[i]
			if m < low || m == 0 {
				continue
			}
			var before, after float32
			switch sectors[i] {
			case sectorHorizontal:
				before, after = mag[i-1], mag[i+1]
			case sectorDiagDown:
				before, after = mag[i-w-1], mag[i+w+1]
			case sectorVertical:
				before, after = mag[i-w], mag[i+w]
			default:
				before, after = mag[i-w+1], mag[i+w-1]
			}
			// Ties go to the pixel further along the gradient.
			if m > before && m >= after {
				thin[i] = m
			}
		}
	}

	traceHysteresis(thin, out, float32(opts.High))
	return out
}

// traceHysteresis marks every pixel at or above high and grows the marking
// through 8-connected neighbors that survived suppression.
func traceHysteresis(thin []float32, out *GrayImage, high float32) {
	w, h := out.Width, out.Height
	stack := make([]int, 0, 256)
	for seed, m := range thin {
		if m < high || out.Pix[seed] != 0 {
			continue
		}
		out.Pix[seed] = 255
		stack = append(stack[:0], seed)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%w, i/w
			for dy := -1; dy <= 1; dy++ {
				ny := y + dy
				if ny < 1 || ny >= h-1 {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					nx := x + dx
					if (dx == 0 && dy == 0) || nx < 1 || nx >= w-1 {
						continue
					}
					j := ny*w + nx
					if thin[j] > 0 && out.Pix[j] == 0 {
						out.Pix[j] = 255
						stack = append(stack, j)
					}
				}
			}
		}
	}
}

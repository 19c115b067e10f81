// Package lanes implements single-frame lane-line detection on BGR frames.
//
// The pipeline is a chain of pure stages: color reduction, Gaussian smoothing,
// trapezoid region masking, Canny edge extraction and a Hough line vote that is
// reduced to at most one left and one right lane segment. Every stage allocates
// its own output, so a Detector can be shared between goroutines.
package lanes

import (
	"image"
	"math"
)

// Channels is the number of interleaved color channels in a Frame (B, G, R).
const Channels = 3

// Frame is a row-major height × width × 3 buffer in blue-green-red order.
// The pipeline only reads Data.
type Frame struct {
	Height   int
	Width    int
	Channels int
	Data     []uint8
}

// NewFrame wraps a BGR buffer without copying it.
func NewFrame(data []uint8, width, height int) Frame {
	return Frame{Height: height, Width: width, Channels: Channels, Data: data}
}

// Validate reports a *DimensionError for degenerate frames.
func (f Frame) Validate() error {
	if f.Height <= 0 || f.Width <= 0 {
		return &DimensionError{Height: f.Height, Width: f.Width, Channels: f.Channels,
			Reason: "height and width must be positive"}
	}
	if f.Channels != Channels {
		return &DimensionError{Height: f.Height, Width: f.Width, Channels: f.Channels,
			Reason: "frame must have 3 channels"}
	}
	if f.Width > math.MaxInt/Channels/f.Height {
		return &DimensionError{Height: f.Height, Width: f.Width, Channels: f.Channels,
			Reason: "frame size overflows", Length: len(f.Data)}
	}
	if len(f.Data) != f.Height*f.Width*Channels {
		return &DimensionError{Height: f.Height, Width: f.Width, Channels: f.Channels,
			Reason: "buffer length does not match dimensions", Length: len(f.Data)}
	}
	return nil
}

// At returns the blue, green and red values at (x, y).
func (f Frame) At(x, y int) (b, g, r uint8) {
	i := (y*f.Width + x) * Channels
	return f.Data[i], f.Data[i+1], f.Data[i+2]
}

// GrayImage is an 8-bit single channel image.
type GrayImage struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewGrayImage allocates a zeroed gray image.
func NewGrayImage(width, height int) *GrayImage {
	return &GrayImage{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// At returns the intensity at (x, y).
func (g *GrayImage) At(x, y int) uint8 { return g.Pix[y*g.Width+x] }

// Set stores v at (x, y).
func (g *GrayImage) Set(x, y int, v uint8) { g.Pix[y*g.Width+x] = v }

// CountNonZero returns the number of non-zero pixels.
func (g *GrayImage) CountNonZero() int {
	n := 0
	for _, v := range g.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// ToImage copies the buffer into an *image.Gray.
func (g *GrayImage) ToImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.Width, g.Height))
	for y := range g.Height {
		copy(img.Pix[y*img.Stride:y*img.Stride+g.Width], g.Pix[y*g.Width:(y+1)*g.Width])
	}
	return img
}

// FloatImage is a single channel image kept in float32 between stages.
type FloatImage struct {
	Width  int
	Height int
	Pix    []float32
}

// NewFloatImage allocates a zeroed float image.
func NewFloatImage(width, height int) *FloatImage {
	return &FloatImage{Width: width, Height: height, Pix: make([]float32, width*height)}
}

// At returns the value at (x, y).
func (f *FloatImage) At(x, y int) float32 { return f.Pix[y*f.Width+x] }

// ToGray rounds and clamps every value into an 8-bit image.
func (f *FloatImage) ToGray() *GrayImage {
	out := NewGrayImage(f.Width, f.Height)
	for i, v := range f.Pix {
		out.Pix[i] = clampUint8(v)
	}
	return out
}

func clampUint8(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

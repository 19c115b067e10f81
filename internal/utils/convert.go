package utils

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ImageToBGR flattens img into a row-major blue-green-red buffer. Alpha is ignored.
func ImageToBGR(img image.Image) ([]uint8, int, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]uint8, w*h*3)

	switch src := img.(type) {
	case *image.NRGBA:
		for y := range h {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			row := src.Pix[off : off+w*4]
			o := out[y*w*3:]
			for x := range w {
				o[x*3], o[x*3+1], o[x*3+2] = row[x*4+2], row[x*4+1], row[x*4]
			}
		}
	case *image.RGBA:
		for y := range h {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			row := src.Pix[off : off+w*4]
			o := out[y*w*3:]
			for x := range w {
				o[x*3], o[x*3+1], o[x*3+2] = unpremul(row[x*4+2], row[x*4+3]),
					unpremul(row[x*4+1], row[x*4+3]), unpremul(row[x*4], row[x*4+3])
			}
		}
	default:
		i := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c, _ := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				out[i], out[i+1], out[i+2] = c.B, c.G, c.R
				i += 3
			}
		}
	}
	return out, w, h
}

func unpremul(v, a uint8) uint8 {
	switch a {
	case 255:
		return v
	case 0:
		return 0
	}
	return uint8((uint32(v)*255 + uint32(a)/2) / uint32(a))
}

// BGRToImage wraps a blue-green-red buffer as an opaque *image.NRGBA.
func BGRToImage(data []uint8, width, height int) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 || width > math.MaxInt/3/height || len(data) != width*height*3 {
		return nil, &ImageProcessingError{
			Operation: "convert",
			Err:       fmt.Errorf("buffer of %d bytes does not hold %dx%dx3", len(data), width, height),
		}
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i, j := 0, 0; i < len(data); i, j = i+3, j+4 {
		img.Pix[j], img.Pix[j+1], img.Pix[j+2], img.Pix[j+3] = data[i+2], data[i+1], data[i], 255
	}
	return img, nil
}

// ResizeExact scales img to width×height with Lanczos resampling, ignoring
// aspect ratio. Images already at that size are returned unchanged.
func ResizeExact(img image.Image, width, height int) (image.Image, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	if width <= 0 || height <= 0 {
		return nil, &ImageProcessingError{
			Operation: "resize",
			Err:       fmt.Errorf("target size %dx%d must be positive", width, height),
		}
	}
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img, nil
	}
	return imaging.Resize(img, width, height, imaging.Lanczos), nil
}

// ParseSize parses "WIDTHxHEIGHT" such as "1280x720".
func ParseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid size %q: want WIDTHxHEIGHT", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid width in %q: %w", s, err)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid height in %q: %w", s, err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid size %q: dimensions must be positive", s)
	}
	return w, h, nil
}

package utils

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageToBGR_ChannelOrder(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 4, G: 5, B: 6, A: 255})

	data, w, h := ImageToBGR(img)
	assert.Equal(t, 2, w)
	assert.Equal(t, 1, h)
	assert.Equal(t, []uint8{3, 2, 1, 6, 5, 4}, data)
}

func TestImageToBGR_SubImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(2, 2, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	sub := img.SubImage(image.Rect(2, 2, 4, 4))

	data, w, h := ImageToBGR(sub)
	require.Equal(t, 2, w)
	require.Equal(t, 2, h)
	assert.Equal(t, []uint8{50, 100, 200}, data[:3])
}

func TestBGRToImage(t *testing.T) {
	img, err := BGRToImage([]uint8{3, 2, 1}, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 1, G: 2, B: 3, A: 255}, img.NRGBAAt(0, 0))

	_, err = BGRToImage([]uint8{1, 2}, 1, 1)
	assert.Error(t, err)
	_, err = BGRToImage(nil, 0, 1)
	assert.Error(t, err)
	_, err = BGRToImage([]uint8{1, 2, 3}, math.MaxInt, math.MaxInt)
	assert.Error(t, err)
}

// TestImageToBGR_FastPathsMatchGeneric verifies the typed fast paths agree
// with the color model conversion for opaque images.
func TestImageToBGR_FastPathsMatchGeneric(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("rgba, nrgba and generic conversions agree", prop.ForAll(
		func(w, h int, seed uint8) bool {
			rgba := image.NewRGBA(image.Rect(0, 0, w, h))
			nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
			ycc := image.NewGray(image.Rect(0, 0, w, h))
			for y := range h {
				for x := range w {
					c := color.NRGBA{R: uint8(x*7) + seed, G: uint8(y*13) + seed, B: uint8(x+y) ^ seed, A: 255}
					rgba.Set(x, y, c)
					nrgba.SetNRGBA(x, y, c)
					ycc.Set(x, y, c)
				}
			}
			a, _, _ := ImageToBGR(rgba)
			b, _, _ := ImageToBGR(nrgba)
			if string(a) != string(b) {
				return false
			}
			back, err := BGRToImage(b, w, h)
			if err != nil {
				return false
			}
			if string(back.Pix) != string(nrgba.Pix) {
				return false
			}
			g, _, _ := ImageToBGR(ycc)
			return len(g) == w*h*3 && g[0] == g[1] && g[1] == g[2]
		},
		gen.IntRange(1, 24),
		gen.IntRange(1, 24),
		gen.UInt8(),
	))

	properties.TestingRun(t)
}

func TestResizeExact(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 48))

	out, err := ResizeExact(img, 128, 72)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 128, 72), out.Bounds())

	same, err := ResizeExact(img, 64, 48)
	require.NoError(t, err)
	assert.Same(t, img, same)

	_, err = ResizeExact(nil, 10, 10)
	assert.Error(t, err)
	_, err = ResizeExact(img, 0, 10)
	assert.Error(t, err)
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		w, h    int
		wantErr bool
	}{
		{"1280x720", 1280, 720, false},
		{" 640X480 ", 640, 480, false},
		{"640", 0, 0, true},
		{"ax480", 0, 0, true},
		{"640xb", 0, 0, true},
		{"0x480", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			w, h, err := ParseSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.w, w)
			assert.Equal(t, tt.h, h)
		})
	}
}

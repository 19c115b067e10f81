package utils

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countColor(img *image.RGBA, c color.RGBA) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y) == c {
				n++
			}
		}
	}
	return n
}

func TestDrawLine(t *testing.T) {
	green := color.RGBA{G: 255, A: 255}

	t.Run("thin diagonal", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 10, 10))
		DrawLine(img, Point{0, 0}, Point{9, 9}, green, 1)
		assert.Equal(t, 10, countColor(img, green))
		assert.Equal(t, green, img.RGBAAt(5, 5))
	})

	t.Run("thick line widens", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 40, 40))
		DrawLine(img, Point{20, 5}, Point{20, 35}, green, 10)
		assert.Equal(t, green, img.RGBAAt(24, 20))
		assert.Equal(t, green, img.RGBAAt(16, 20))
		assert.NotEqual(t, green, img.RGBAAt(27, 20))
	})

	t.Run("clipped to bounds", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 10, 10))
		assert.NotPanics(t, func() {
			DrawLine(img, Point{-20, -20}, Point{30, 30}, green, 5)
		})
		assert.Equal(t, green, img.RGBAAt(0, 0))
	})
}

func TestDrawPolygon(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))

	DrawPolygon(img, []Point{{2, 2}, {17, 2}, {17, 17}, {2, 17}}, red, 1)
	assert.Equal(t, red, img.RGBAAt(2, 10), "closing edge")
	assert.Equal(t, red, img.RGBAAt(10, 17))
	assert.NotEqual(t, red, img.RGBAAt(10, 10))

	empty := image.NewRGBA(image.Rect(0, 0, 5, 5))
	DrawPolygon(empty, []Point{{1, 1}}, red, 1)
	assert.Zero(t, countColor(empty, red))
}

func TestToRGBA_CopiesAtOrigin(t *testing.T) {
	src := image.NewNRGBA(image.Rect(5, 5, 8, 7))
	src.SetNRGBA(5, 5, color.NRGBA{R: 9, A: 255})

	dst := ToRGBA(src)
	assert.Equal(t, image.Rect(0, 0, 3, 2), dst.Bounds())
	assert.Equal(t, uint8(9), dst.RGBAAt(0, 0).R)
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#00ff00")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{G: 255, A: 255}, c)

	c, err = ParseHexColor("11223380")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0x11, G: 0x22, B: 0x33, A: 0x80}, c)

	for _, bad := range []string{"", "#fff", "#gg0000", "#1234567"} {
		_, err := ParseHexColor(bad)
		assert.Error(t, err, bad)
	}
}

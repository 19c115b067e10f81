package utils

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"
	"strings"
)

// Point represents a 2D coordinate in float space.
type Point struct {
	X float64
	Y float64
}

// ToRGBA copies img into a fresh *image.RGBA anchored at the origin.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// DrawLine draws a thick line between two float points.
func DrawLine(dst *image.RGBA, a, b Point, col color.Color, thickness int) {
	drawLine(dst, roundPoint(a), roundPoint(b), col, thickness)
}

// DrawPolygon draws connected line segments and closes the polygon.
func DrawPolygon(dst *image.RGBA, pts []Point, col color.Color, thickness int) {
	if len(pts) < 2 {
		return
	}
	for i := range pts {
		drawLine(dst, roundPoint(pts[i]), roundPoint(pts[(i+1)%len(pts)]), col, thickness)
	}
}

func roundPoint(p Point) image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}

// drawLine walks the pixels from a to b with Bresenham's algorithm.
func drawLine(dst *image.RGBA, a, b image.Point, col color.Color, thickness int) {
	x0, y0 := a.X, a.Y
	x1, y1 := b.X, b.Y
	dx := absInt(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -absInt(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		drawThickPoint(dst, x0, y0, col, thickness)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// drawThickPoint fills a disc of the given diameter centered on (x, y).
func drawThickPoint(dst *image.RGBA, x, y int, col color.Color, thickness int) {
	if thickness <= 1 {
		if image.Pt(x, y).In(dst.Bounds()) {
			dst.Set(x, y, col)
		}
		return
	}
	r := float64(thickness) / 2
	ri := int(math.Ceil(r))
	for yy := y - ri; yy <= y+ri; yy++ {
		for xx := x - ri; xx <= x+ri; xx++ {
			ddx, ddy := float64(xx-x), float64(yy-y)
			if ddx*ddx+ddy*ddy > r*r {
				continue
			}
			if image.Pt(xx, yy).In(dst.Bounds()) {
				dst.Set(xx, yy, col)
			}
		}
	}
}

// ParseHexColor parses "#RRGGBB" or "#RRGGBBAA".
func ParseHexColor(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 && len(h) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: want #RRGGBB or #RRGGBBAA", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	if len(h) == 6 {
		v = v<<8 | 0xff
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

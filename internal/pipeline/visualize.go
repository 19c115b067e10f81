package pipeline

import (
	"errors"
	"image"
	"image/color"

	"github.com/MeKo-Tech/lanedetect/internal/lanes"
	"github.com/MeKo-Tech/lanedetect/internal/utils"
)

// OverlayOptions controls how lane segments are drawn.
type OverlayOptions struct {
	Color     color.Color
	Thickness int
	DrawROI   bool
	ROIColor  color.Color
}

// DefaultOverlayOptions draws green lanes ten pixels wide and skips the region outline.
func DefaultOverlayOptions() OverlayOptions {
	return OverlayOptions{
		Color:     color.RGBA{G: 255, A: 255},
		Thickness: 10,
		ROIColor:  color.RGBA{R: 255, G: 255, A: 255},
	}
}

// RenderOverlay draws the result's segments on a copy of img. Zero segments
// are not drawn. Coordinates are scaled back to img when the frame was resized.
func RenderOverlay(img image.Image, res *FrameResult, opts OverlayOptions) (*image.RGBA, error) {
	if img == nil || res == nil {
		return nil, errors.New("nil image or result")
	}
	if opts.Color == nil {
		opts.Color = DefaultOverlayOptions().Color
	}
	if opts.Thickness <= 0 {
		opts.Thickness = 1
	}
	out := utils.ToRGBA(img)

	scale := func(p lanes.Point) utils.Point {
		x, y := res.ScaleToOriginal(p.X, p.Y)
		return utils.Point{X: x, Y: y}
	}

	if opts.DrawROI && res.ROI.Width > 0 {
		col := opts.ROIColor
		if col == nil {
			col = DefaultOverlayOptions().ROIColor
		}
		verts := res.ROI.Vertices()
		pts := make([]utils.Point, len(verts))
		for i, v := range verts {
			pts[i] = scale(v)
		}
		utils.DrawPolygon(out, pts, col, 1)
	}

	for _, s := range res.Segments {
		if s.IsZero() {
			continue
		}
		a := scale(lanes.Point{X: s.X1, Y: s.Y1})
		b := scale(lanes.Point{X: s.X2, Y: s.Y2})
		utils.DrawLine(out, a, b, opts.Color, opts.Thickness)
	}
	return out, nil
}

package lanes

import (
	"errors"
	"fmt"
	"math"
)

// Point is a position in pixel coordinates, x to the right and y down.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ROIConfig expresses the trapezoid as fractions of the frame size.
// Y fractions are measured from the top edge.
type ROIConfig struct {
	BottomY   float64 `mapstructure:"bottom_y" yaml:"bottom_y" json:"bottom_y"`
	TopY      float64 `mapstructure:"top_y" yaml:"top_y" json:"top_y"`
	TopLeftX  float64 `mapstructure:"top_left_x" yaml:"top_left_x" json:"top_left_x"`
	TopRightX float64 `mapstructure:"top_right_x" yaml:"top_right_x" json:"top_right_x"`
}

// DefaultROIConfig spans the full width at half height and narrows to the
// middle fifth of the frame at one fifth of the height.
func DefaultROIConfig() ROIConfig {
	return ROIConfig{BottomY: 0.5, TopY: 0.2, TopLeftX: 0.4, TopRightX: 0.6}
}

// Validate checks the fractions describe a non-degenerate trapezoid.
func (c ROIConfig) Validate() error {
	if c.TopY < 0 || c.BottomY > 1 || c.TopY >= c.BottomY {
		return fmt.Errorf("roi: need 0 <= top_y < bottom_y <= 1, got top_y=%v bottom_y=%v", c.TopY, c.BottomY)
	}
	if c.TopLeftX < 0 || c.TopRightX > 1 || c.TopLeftX >= c.TopRightX {
		return fmt.Errorf("roi: need 0 <= top_left_x < top_right_x <= 1, got %v and %v", c.TopLeftX, c.TopRightX)
	}
	return nil
}

// ROI is the trapezoid for one frame size.
type ROI struct {
	Width       int   `json:"width"`
	Height      int   `json:"height"`
	BottomLeft  Point `json:"bottom_left"`
	BottomRight Point `json:"bottom_right"`
	TopRight    Point `json:"top_right"`
	TopLeft     Point `json:"top_left"`
}

// NewROI places the trapezoid for a width × height frame. The bottom edge
// spans x in [0, width] and the top edge [TopLeftX·width, TopRightX·width].
// Fractional corners are floored to whole pixels, so a 481 row frame has its
// bottom edge on row 240.
func NewROI(width, height int, cfg ROIConfig) (ROI, error) {
	if width <= 0 || height <= 0 {
		return ROI{}, errors.New("roi: frame size must be positive")
	}
	if err := cfg.Validate(); err != nil {
		return ROI{}, err
	}
	yb, yt := pixelFloor(cfg.BottomY, height), pixelFloor(cfg.TopY, height)
	return ROI{
		Width:       width,
		Height:      height,
		BottomLeft:  Point{0, yb},
		BottomRight: Point{float64(width), yb},
		TopRight:    Point{pixelFloor(cfg.TopRightX, width), yt},
		TopLeft:     Point{pixelFloor(cfg.TopLeftX, width), yt},
	}, nil
}

// pixelFloor returns floor(frac·n). The epsilon keeps products such as
// 0.6·5 from landing just below a whole pixel.
func pixelFloor(frac float64, n int) float64 {
	return math.Floor(frac*float64(n) + 1e-9)
}

// Vertices returns the corners in bottom-left, bottom-right, top-right, top-left order.
func (r ROI) Vertices() []Point {
	return []Point{r.BottomLeft, r.BottomRight, r.TopRight, r.TopLeft}
}

// BottomY is the image row where lane segments start.
func (r ROI) BottomY() float64 { return r.BottomLeft.Y }

// TopY is the image row where lane segments end.
func (r ROI) TopY() float64 { return r.TopLeft.Y }

// interpX returns the x of the edge a-b at row y. An edge with no vertical
// extent matches nothing.
func interpX(a, b Point, y float64) (float64, bool) {
	dy := b.Y - a.Y
	if dy == 0 {
		return 0, false
	}
	return a.X + (b.X-a.X)*(y-a.Y)/dy, true
}

// span returns the inclusive x range of the trapezoid at row y.
func (r ROI) span(y float64) (lo, hi float64, ok bool) {
	if y < r.TopY() || y > r.BottomY() {
		return 0, 0, false
	}
	lo, okL := interpX(r.BottomLeft, r.TopLeft, y)
	hi, okR := interpX(r.BottomRight, r.TopRight, y)
	return lo, hi, okL && okR
}

// Contains reports whether (x, y) lies inside or on the trapezoid boundary.
func (r ROI) Contains(x, y float64) bool {
	lo, hi, ok := r.span(y)
	return ok && x >= lo && x <= hi
}

// MaskRegion keeps pixels whose centers fall inside the trapezoid and zeroes
// the rest. Kept values are rounded and clamped to 8 bits.
func MaskRegion(src *FloatImage, r ROI) *GrayImage {
	out := NewGrayImage(src.Width, src.Height)
	for y := range src.Height {
		lo, hi, ok := r.span(float64(y))
		if !ok {
			continue
		}
		x0 := max(int(math.Ceil(lo)), 0)
		x1 := min(int(math.Floor(hi)), src.Width-1)
		row := y * src.Width
		for x := x0; x <= x1; x++ {
			out.Pix[row+x] = clampUint8(src.Pix[row+x])
		}
	}
	return out
}

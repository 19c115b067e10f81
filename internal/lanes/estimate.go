package lanes

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Lane sides.
const (
	SideLeft  = "left"
	SideRight = "right"
)

// SingleSidePolicy decides what happens when only one side has candidates.
type SingleSidePolicy string

const (
	// SingleSideKeep returns the one segment that was found.
	SingleSideKeep SingleSidePolicy = "keep"
	// SingleSideDrop returns no segments unless both sides are present.
	SingleSideDrop SingleSidePolicy = "drop"
)

// Validate rejects unknown policies.
func (p SingleSidePolicy) Validate() error {
	switch p {
	case SingleSideKeep, SingleSideDrop:
		return nil
	default:
		return fmt.Errorf("unknown single side policy %q (want keep or drop)", p)
	}
}

// Segment is a lane boundary clipped to the region of interest, in pixels.
// (X1, Y1) lies on the bottom edge and (X2, Y2) on the top edge.
type Segment struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// IsZero reports whether all four coordinates are zero, as in the fallback pair.
func (s Segment) IsZero() bool {
	return s == Segment{}
}

// Slope is dy/dx of the segment, ±Inf for vertical segments and NaN for a point.
func (s Segment) Slope() float64 {
	dx, dy := s.X2-s.X1, s.Y2-s.Y1
	if dx == 0 {
		if dy == 0 {
			return math.NaN()
		}
		return math.Copysign(math.Inf(1), dy)
	}
	return dy / dx
}

// Lane is the representative line for one side, written as x = DxDy·y + Intercept.
type Lane struct {
	Side       string  `json:"side"`
	DxDy       float64 `json:"dx_dy"`
	Intercept  float64 `json:"intercept"`
	Votes      int     `json:"votes"`
	Candidates int     `json:"candidates"`
	Segment    Segment `json:"segment"`
}

// EstimateOptions configures classification of Hough lines.
type EstimateOptions struct {
	// MinAbsSlope discards lines whose |dy/dx| is below it.
	MinAbsSlope float64
	SingleSide  SingleSidePolicy
}

// DefaultEstimateOptions returns the 0.3 horizon cutoff and keeps single sides.
func DefaultEstimateOptions() EstimateOptions {
	return EstimateOptions{MinAbsSlope: 0.3, SingleSide: SingleSideKeep}
}

// Estimate is the outcome of reducing Hough lines to lane segments.
type Estimate struct {
	Lanes      []Lane
	Segments   []Segment
	Candidates int
	Fallback   bool
}

// FallbackSegments is returned when the vote produced no lines at all.
func FallbackSegments() []Segment {
	return []Segment{{}, {}}
}

type sideAccumulator struct {
	dxdy    []float64
	offsets []float64
	weights []float64
	votes   int
}

func (s *sideAccumulator) add(dxdy, offset float64, votes int) {
	s.dxdy = append(s.dxdy, dxdy)
	s.offsets = append(s.offsets, offset)
	s.weights = append(s.weights, float64(votes))
	s.votes += votes
}

func (s *sideAccumulator) lane(side string, roi ROI) (Lane, bool) {
	if len(s.weights) == 0 {
		return Lane{}, false
	}
	a := stat.Mean(s.dxdy, s.weights)
	b := stat.Mean(s.offsets, s.weights)
	yb, yt := roi.BottomY(), roi.TopY()
	return Lane{
		Side:       side,
		DxDy:       a,
		Intercept:  b,
		Votes:      s.votes,
		Candidates: len(s.weights),
		Segment:    Segment{X1: a*yb + b, Y1: yb, X2: a*yt + b, Y2: yt},
	}, true
}

// EstimateLanes classifies lines by slope sign, averages each side weighted by
// votes and clips the result to the vertical extent of roi. Negative slopes in
// image coordinates are left lanes. Lines flatter than MinAbsSlope are noise.
// With no lines at all the result is the two zero segments of FallbackSegments.
func EstimateLanes(lines []PolarLine, roi ROI, opts EstimateOptions) Estimate {
	if len(lines) == 0 {
		return Estimate{Segments: FallbackSegments(), Fallback: true}
	}

	var left, right sideAccumulator
	for _, l := range lines {
		sin, cos := math.Sincos(l.Theta)
		switch {
		case math.Abs(cos) < 1e-9:
			// horizontal
			continue
		case math.Abs(sin) < 1e-9:
			x := l.Rho / cos
			if x < float64(roi.Width)/2 {
				left.add(0, x, l.Votes)
			} else {
				right.add(0, x, l.Votes)
			}
			continue
		}
		slope := -cos / sin
		if math.Abs(slope) < opts.MinAbsSlope {
			continue
		}
		dxdy, offset := -sin/cos, l.Rho/cos
		if slope < 0 {
			left.add(dxdy, offset, l.Votes)
		} else {
			right.add(dxdy, offset, l.Votes)
		}
	}

	est := Estimate{Candidates: len(left.weights) + len(right.weights)}
	l, hasLeft := left.lane(SideLeft, roi)
	r, hasRight := right.lane(SideRight, roi)
	if hasLeft != hasRight && opts.SingleSide == SingleSideDrop {
		return est
	}
	if hasLeft {
		est.Lanes = append(est.Lanes, l)
	}
	if hasRight {
		est.Lanes = append(est.Lanes, r)
	}
	for _, lane := range est.Lanes {
		est.Segments = append(est.Segments, lane.Segment)
	}
	return est
}
